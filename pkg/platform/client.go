// Package platform is a client for the data platform's bucket REST API.
//
// The client issues the two calls the console needs: listing the buckets of
// an organization and creating a new one. There is no retry policy;
// failures surface to the caller, which decides whether to revalidate.
package platform

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/cloudpane/bucketcache/pkg/bucket"
)

const bucketsPath = "/api/v2/buckets"

// Client talks to the platform bucket API. Safe for concurrent use.
type Client struct {
	http         *http.Client
	limiter      *rate.Limiter
	unrestricted bool
	userAgent    string
}

// listResponse is the wire shape of a bucket listing.
type listResponse struct {
	Buckets []bucket.Bucket `json:"buckets"`
}

// errorResponse is the wire shape of an API error body.
type errorResponse struct {
	Message string `json:"message"`
}

// New creates a client with the given configuration.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		http:         hc,
		limiter:      limiter,
		unrestricted: cfg.Unrestricted,
		userAgent:    cfg.UserAgent,
	}, nil
}

// ListBuckets fetches the raw bucket listing for the scope's organization.
//
// The result is the server payload as-is: unsorted, without sample
// datasets. Shaping is the cache provider's concern.
func (c *Client) ListBuckets(ctx context.Context, scope bucket.Scope) ([]bucket.Bucket, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	limit := RestrictedLimit
	if c.unrestricted {
		limit = UnrestrictedLimit
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("orgID", scope.Org)

	endpoint := strings.TrimSuffix(scope.Endpoint, "/") + bucketsPath + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build list request: %w", err)
	}
	c.setHeaders(req, scope)

	body, err := c.do(req, "ListBuckets")
	if err != nil {
		return nil, err
	}

	var parsed listResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse bucket listing: %w", err)
	}
	return parsed.Buckets, nil
}

// CreateBucket creates a bucket in the scope's organization and returns the
// server's record, including the server-assigned id.
func (c *Client) CreateBucket(ctx context.Context, scope bucket.Scope, b bucket.Bucket) (bucket.Bucket, error) {
	if err := scope.Validate(); err != nil {
		return bucket.Bucket{}, err
	}

	payload, err := json.Marshal(b)
	if err != nil {
		return bucket.Bucket{}, fmt.Errorf("marshal bucket: %w", err)
	}

	endpoint := strings.TrimSuffix(scope.Endpoint, "/") + bucketsPath

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return bucket.Bucket{}, fmt.Errorf("build create request: %w", err)
	}
	c.setHeaders(req, scope)

	body, err := c.do(req, "CreateBucket")
	if err != nil {
		return bucket.Bucket{}, err
	}

	var created bucket.Bucket
	if err := json.Unmarshal(body, &created); err != nil {
		return bucket.Bucket{}, fmt.Errorf("parse created bucket: %w", err)
	}
	return created, nil
}

func (c *Client) setHeaders(req *http.Request, scope bucket.Scope) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Encoding", "gzip")
	if scope.Token != "" {
		req.Header.Set("Authorization", "Token "+scope.Token)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}

// do executes the request and returns the (decompressed) response body.
func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var reader io.Reader = resp.Body
	// Accept-Encoding is set explicitly, so the transport does not
	// decompress on our behalf.
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%s: open gzip body: %w", op, err)
		}
		defer func() { _ = gz.Close() }()
		reader = gz
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Op: op, StatusCode: resp.StatusCode}
		var parsed errorResponse
		if json.Unmarshal(body, &parsed) == nil {
			apiErr.Message = parsed.Message
		}
		return nil, apiErr
	}

	return body, nil
}
