package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/cloudpane/bucketcache/internal/errors"
	"github.com/cloudpane/bucketcache/pkg/bucket"
	"github.com/cloudpane/bucketcache/pkg/cachestore"
	"github.com/cloudpane/bucketcache/pkg/match"
)

// revalidateTimeout bounds the background refresh triggered by cache hits.
const revalidateTimeout = 30 * time.Second

// BucketProvider is the slice of the cache provider the handlers use.
type BucketProvider interface {
	Snapshot(scope bucket.Scope) (cachestore.Entry, error)
	EnsureFetched(ctx context.Context, scope bucket.Scope) error
	Refresh(ctx context.Context, scope bucket.Scope) error
	CreateBucket(ctx context.Context, scope bucket.Scope, b bucket.Bucket) (bucket.Bucket, error)
}

// BucketsHandler serves the bucket listing and creation endpoints backed by
// the cache provider.
type BucketsHandler struct {
	provider BucketProvider
	scope    bucket.Scope
	log      *zap.Logger

	// base is the lifetime context for background revalidation goroutines.
	base context.Context
}

// NewBucketsHandler creates a handler serving the given scope. base bounds
// background refreshes and should be the server's lifetime context.
func NewBucketsHandler(base context.Context, provider BucketProvider, scope bucket.Scope, log *zap.Logger) *BucketsHandler {
	if base == nil {
		base = context.Background()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &BucketsHandler{
		provider: provider,
		scope:    scope,
		log:      log,
		base:     base,
	}
}

// List serves GET /api/v2/buckets. A cold cache is filled synchronously;
// a warm cache is served as-is while a refresh runs in the background.
func (h *BucketsHandler) List(w http.ResponseWriter, r *http.Request) {
	matcher, err := matcherFromQuery(r)
	if err != nil {
		apperrors.WriteError(w, http.StatusBadRequest, apperrors.CodeBadRequest,
			"invalid match pattern", map[string]any{"error": err.Error()})
		return
	}

	entry, err := h.provider.Snapshot(h.scope)
	if err != nil {
		apperrors.WriteError(w, http.StatusInternalServerError, apperrors.CodeInternal,
			"reading bucket cache failed", map[string]any{"error": err.Error()})
		return
	}

	switch entry.State {
	case cachestore.StateNotStarted:
		if err := h.provider.EnsureFetched(r.Context(), h.scope); err != nil {
			h.log.Warn("Initial bucket fetch failed", zap.Error(err))
		}
		entry, err = h.provider.Snapshot(h.scope)
		if err != nil {
			apperrors.WriteError(w, http.StatusInternalServerError, apperrors.CodeInternal,
				"reading bucket cache failed", map[string]any{"error": err.Error()})
			return
		}
	case cachestore.StateDone, cachestore.StateError:
		go h.revalidate()
	}

	if matcher != nil {
		filtered := make([]bucket.Bucket, 0, len(entry.Buckets))
		for _, b := range entry.Buckets {
			if matcher.Match(b.Name) {
				filtered = append(filtered, b)
			}
		}
		entry.Buckets = filtered
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(entry)
}

// Create serves POST /api/v2/buckets.
func (h *BucketsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var b bucket.Bucket
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		apperrors.WriteError(w, http.StatusBadRequest, apperrors.CodeBadRequest,
			"invalid request body", map[string]any{"error": err.Error()})
		return
	}
	if strings.TrimSpace(b.Name) == "" {
		apperrors.WriteError(w, http.StatusBadRequest, apperrors.CodeBadRequest,
			"bucket name is required", nil)
		return
	}

	created, err := h.provider.CreateBucket(r.Context(), h.scope, b)
	if err != nil {
		apperrors.WriteError(w, http.StatusBadGateway, apperrors.CodeUpstream,
			"creating bucket failed", map[string]any{"error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(created)
}

// Refresh serves POST /api/v2/buckets/refresh. It fetches synchronously and
// returns the fresh cache entry.
func (h *BucketsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.provider.Refresh(r.Context(), h.scope); err != nil {
		apperrors.WriteError(w, http.StatusBadGateway, apperrors.CodeUpstream,
			"refreshing buckets failed", map[string]any{"error": err.Error()})
		return
	}

	entry, err := h.provider.Snapshot(h.scope)
	if err != nil {
		apperrors.WriteError(w, http.StatusInternalServerError, apperrors.CodeInternal,
			"reading bucket cache failed", map[string]any{"error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(entry)
}

func (h *BucketsHandler) revalidate() {
	ctx, cancel := context.WithTimeout(h.base, revalidateTimeout)
	defer cancel()
	if err := h.provider.Refresh(ctx, h.scope); err != nil {
		h.log.Debug("Background refresh failed", zap.Error(err))
	}
}

func matcherFromQuery(r *http.Request) (*match.Matcher, error) {
	includes := splitPatterns(r.URL.Query().Get("match"))
	excludes := splitPatterns(r.URL.Query().Get("exclude"))
	if len(includes) == 0 && len(excludes) == 0 {
		return nil, nil
	}
	return match.New(match.Config{Includes: includes, Excludes: excludes})
}

func splitPatterns(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
