// Package bucketcache implements a read-through cache over the platform
// bucket API.
//
// A Provider owns one cache entry per scope. Listings are fetched on
// demand, shaped into presentation order, and written through to a durable
// store so a restarted process serves the last known listing immediately
// while revalidating in the background.
//
// At most one fetch is in flight per scope; starting another cancels the
// first (last-request-wins). A superseded fetch never commits, so two
// responses can never interleave in the cache.
package bucketcache

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cloudpane/bucketcache/pkg/bucket"
	"github.com/cloudpane/bucketcache/pkg/cachestore"
)

// ErrClosed is returned when the provider has been shut down.
var ErrClosed = errors.New("bucket cache provider is closed")

// APIClient is the slice of the platform API the provider needs.
type APIClient interface {
	ListBuckets(ctx context.Context, scope bucket.Scope) ([]bucket.Bucket, error)
	CreateBucket(ctx context.Context, scope bucket.Scope, b bucket.Bucket) (bucket.Bucket, error)
}

// Subscriber is notified after every cache entry write.
type Subscriber func(key string, entry cachestore.Entry)

// Provider is the bucket cache. Safe for concurrent use.
type Provider struct {
	client APIClient
	store  cachestore.Store
	log    *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
	gens     map[string]uint64
	subs     []Subscriber
	closed   bool
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the logger. The default is a nop logger.
func WithLogger(log *zap.Logger) Option {
	return func(p *Provider) {
		p.log = log.With(zap.String("component", "bucketcache"))
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		p.now = now
	}
}

// New creates a Provider over the given client and store.
func New(client APIClient, store cachestore.Store, opts ...Option) *Provider {
	p := &Provider{
		client:   client,
		store:    store,
		log:      zap.NewNop(),
		now:      func() time.Time { return time.Now().UTC() },
		inflight: map[string]context.CancelFunc{},
		gens:     map[string]uint64{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Subscribe registers fn to be called after every cache write. Callbacks
// run synchronously on the writing goroutine and must not call back into
// the Provider.
func (p *Provider) Subscribe(fn Subscriber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subs = append(p.subs, fn)
}

// Snapshot returns the current cache entry for the scope. An unseen scope
// reports NotStarted with no buckets.
func (p *Provider) Snapshot(scope bucket.Scope) (cachestore.Entry, error) {
	entry, _, err := p.store.Get(scope.CacheKey())
	return entry, err
}

// EnsureFetched fetches the scope's listing only if no fetch has ever been
// initiated for it. Subsequent calls are no-ops until Refresh.
func (p *Provider) EnsureFetched(ctx context.Context, scope bucket.Scope) error {
	entry, _, err := p.store.Get(scope.CacheKey())
	if err != nil {
		return err
	}
	if entry.State != cachestore.StateNotStarted {
		return nil
	}
	return p.Fetch(ctx, scope)
}

// Refresh forces a revalidation of the scope's listing regardless of its
// current state.
func (p *Provider) Refresh(ctx context.Context, scope bucket.Scope) error {
	return p.Fetch(ctx, scope)
}

// Fetch retrieves the scope's bucket listing and commits it to the cache.
//
// The entry moves to Loading (keeping its previous buckets visible), the
// listing is fetched, shaped into user+system+sample order, and written as
// Done. A genuine failure writes Error with the buckets unchanged. If the
// fetch was superseded by a newer one for the same scope, or cancelled,
// nothing is committed and a context error is returned.
func (p *Provider) Fetch(ctx context.Context, scope bucket.Scope) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	key := scope.CacheKey()

	fctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	// Last-request-wins: a fetch already in flight for this scope is
	// cancelled before the new one starts.
	if prevCancel, ok := p.inflight[key]; ok {
		prevCancel()
	}
	p.gens[key]++
	gen := p.gens[key]
	p.inflight[key] = cancel
	p.mu.Unlock()

	// Cleared unconditionally when the call settles so a failed fetch can
	// never wedge the scope in a "cannot fetch again" state.
	defer p.clearInflight(key, gen)

	prev, _, err := p.store.Get(key)
	if err != nil {
		return err
	}

	if _, err := p.commit(key, gen, cachestore.Entry{
		State:     cachestore.StateLoading,
		Buckets:   prev.Buckets,
		UpdatedAt: p.now(),
	}); err != nil {
		return err
	}

	raw, fetchErr := p.client.ListBuckets(fctx, scope)

	if fetchErr != nil {
		if fctx.Err() != nil {
			// Superseded or cancelled, not a platform failure. The
			// newest fetch owns the entry; commit nothing.
			p.log.Debug("Fetch cancelled", zap.String("scope", key))
			return fetchErr
		}

		p.log.Warn("Bucket fetch failed",
			zap.String("scope", key),
			zap.Error(fetchErr))
		if _, err := p.commit(key, gen, cachestore.Entry{
			State:     cachestore.StateError,
			Buckets:   prev.Buckets,
			UpdatedAt: p.now(),
		}); err != nil {
			return err
		}
		return fetchErr
	}

	merged := bucket.Organize(raw)
	wrote, err := p.commit(key, gen, cachestore.Entry{
		State:     cachestore.StateDone,
		Buckets:   merged,
		UpdatedAt: p.now(),
	})
	if err != nil {
		return err
	}
	if !wrote {
		p.log.Debug("Fetch superseded", zap.String("scope", key))
		return context.Canceled
	}

	p.log.Info("Bucket listing cached",
		zap.String("scope", key),
		zap.Int("buckets", len(merged)))
	return nil
}

// CreateBucket creates a bucket in the scope's organization.
//
// The caller-supplied org id is overwritten with the scope's org. On
// success the server's record is appended to the cached listing without
// re-sorting; the sort order is restored by the next full refresh. A
// failed create surfaces its error to the caller and leaves the cache
// untouched.
func (p *Provider) CreateBucket(ctx context.Context, scope bucket.Scope, b bucket.Bucket) (bucket.Bucket, error) {
	if err := scope.Validate(); err != nil {
		return bucket.Bucket{}, err
	}

	b.OrgID = scope.Org

	created, err := p.client.CreateBucket(ctx, scope, b)
	if err != nil {
		p.log.Warn("Bucket create failed",
			zap.String("scope", scope.CacheKey()),
			zap.String("name", b.Name),
			zap.Error(err))
		return bucket.Bucket{}, err
	}

	if err := p.AddBucket(scope, created); err != nil {
		return created, err
	}
	return created, nil
}

// AddBucket appends a bucket to the scope's cached listing and persists
// it. Pure cache mutation: no request is issued and no re-sort happens.
func (p *Provider) AddBucket(scope bucket.Scope, b bucket.Bucket) error {
	key := scope.CacheKey()

	p.mu.Lock()
	defer p.mu.Unlock()

	entry, _, err := p.store.Get(key)
	if err != nil {
		return err
	}

	entry.Buckets = append(entry.Buckets, b)
	entry.UpdatedAt = p.now()

	if err := p.store.Put(key, entry); err != nil {
		return err
	}
	p.notifyLocked(key, entry)
	return nil
}

// Close cancels all in-flight fetches. Cancellation is best-effort; the
// fetches observe it through their contexts.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	for key, cancel := range p.inflight {
		cancel()
		delete(p.inflight, key)
	}
	return nil
}

// commit writes the entry if gen is still the newest fetch for key. The
// generation check and the store write happen under one lock so a stale
// fetch can never overwrite a newer commit.
func (p *Provider) commit(key string, gen uint64, entry cachestore.Entry) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.gens[key] != gen {
		return false, nil
	}
	if err := p.store.Put(key, entry); err != nil {
		return false, err
	}
	p.notifyLocked(key, entry)
	return true, nil
}

func (p *Provider) clearInflight(key string, gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gens[key] == gen {
		delete(p.inflight, key)
	}
}

// notifyLocked invokes subscribers. Caller holds p.mu.
func (p *Provider) notifyLocked(key string, entry cachestore.Entry) {
	for _, fn := range p.subs {
		fn(key, entry)
	}
}
