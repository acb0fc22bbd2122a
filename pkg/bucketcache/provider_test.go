package bucketcache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudpane/bucketcache/pkg/bucket"
	"github.com/cloudpane/bucketcache/pkg/cachestore"
)

// fakeClient scripts ListBuckets/CreateBucket responses. Each call pops the
// next list response; a blocking response holds until released or the
// context is cancelled.
type fakeClient struct {
	mu      sync.Mutex
	lists   []listCall
	creates int

	createResult bucket.Bucket
	createErr    error
}

type listCall struct {
	buckets []bucket.Bucket
	err     error
	block   chan struct{}
}

func (f *fakeClient) ListBuckets(ctx context.Context, scope bucket.Scope) ([]bucket.Bucket, error) {
	f.mu.Lock()
	if len(f.lists) == 0 {
		f.mu.Unlock()
		panic("fakeClient: unexpected ListBuckets call")
	}
	call := f.lists[0]
	f.lists = f.lists[1:]
	f.mu.Unlock()

	if call.block != nil {
		select {
		case <-call.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return call.buckets, call.err
}

func (f *fakeClient) CreateBucket(ctx context.Context, scope bucket.Scope, b bucket.Bucket) (bucket.Bucket, error) {
	f.mu.Lock()
	f.creates++
	f.mu.Unlock()

	if f.createErr != nil {
		return bucket.Bucket{}, f.createErr
	}
	created := f.createResult
	if created.ID == "" {
		created = b
		created.ID = "server-assigned"
	}
	return created, nil
}

func (f *fakeClient) queueList(buckets []bucket.Bucket, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists = append(f.lists, listCall{buckets: buckets, err: err})
}

func (f *fakeClient) queueBlockingList(buckets []bucket.Bucket) chan struct{} {
	release := make(chan struct{})
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists = append(f.lists, listCall{buckets: buckets, block: release})
	return release
}

var testScope = bucket.Scope{Endpoint: "https://a", Org: "org1", Token: "tok"}

func bucketNames(entry cachestore.Entry) []string {
	out := make([]string, 0, len(entry.Buckets))
	for _, b := range entry.Buckets {
		out = append(out, b.Name)
	}
	return out
}

func TestSnapshotUnseenScopeIsNotStarted(t *testing.T) {
	p := New(&fakeClient{}, cachestore.NewMemStore())

	entry, err := p.Snapshot(testScope)
	require.NoError(t, err)
	assert.Equal(t, cachestore.StateNotStarted, entry.State)
	assert.Empty(t, entry.Buckets)
}

func TestFetchCommitsOrganizedListing(t *testing.T) {
	client := &fakeClient{}
	client.queueList([]bucket.Bucket{
		{ID: "1", Name: "zeta", Type: bucket.TypeUser},
		{ID: "2", Name: "Alpha", Type: bucket.TypeSystem},
	}, nil)
	p := New(client, cachestore.NewMemStore())

	require.NoError(t, p.Fetch(context.Background(), testScope))

	entry, err := p.Snapshot(testScope)
	require.NoError(t, err)
	assert.Equal(t, cachestore.StateDone, entry.State)
	assert.Equal(t, []string{
		"zeta",
		"Alpha",
		"Air Sensor Data",
		"Coinbase bitcoin price",
		"NOAA National Buoy Data",
		"USGS Earthquakes",
	}, bucketNames(entry))
}

func TestFetchRejectsInvalidScope(t *testing.T) {
	p := New(&fakeClient{}, cachestore.NewMemStore())
	err := p.Fetch(context.Background(), bucket.Scope{Org: "org1"})
	assert.ErrorIs(t, err, bucket.ErrMissingEndpoint)
}

func TestFetchFailureKeepsPreviousBuckets(t *testing.T) {
	client := &fakeClient{}
	client.queueList([]bucket.Bucket{{ID: "1", Name: "keep-me", Type: bucket.TypeUser}}, nil)
	client.queueList(nil, errors.New("network down"))
	p := New(client, cachestore.NewMemStore())

	require.NoError(t, p.Fetch(context.Background(), testScope))
	before, err := p.Snapshot(testScope)
	require.NoError(t, err)

	err = p.Fetch(context.Background(), testScope)
	require.Error(t, err)

	after, snapErr := p.Snapshot(testScope)
	require.NoError(t, snapErr)
	assert.Equal(t, cachestore.StateError, after.State)
	assert.Equal(t, bucketNames(before), bucketNames(after))
}

func TestFetchMarksLoadingWhileInFlight(t *testing.T) {
	client := &fakeClient{}
	release := client.queueBlockingList(nil)
	p := New(client, cachestore.NewMemStore())

	done := make(chan error, 1)
	go func() { done <- p.Fetch(context.Background(), testScope) }()

	require.Eventually(t, func() bool {
		entry, err := p.Snapshot(testScope)
		return err == nil && entry.State == cachestore.StateLoading
	}, time.Second, time.Millisecond)

	close(release)
	require.NoError(t, <-done)

	entry, err := p.Snapshot(testScope)
	require.NoError(t, err)
	assert.Equal(t, cachestore.StateDone, entry.State)
}

func TestFetchSupersedesInFlightRequest(t *testing.T) {
	client := &fakeClient{}
	release := client.queueBlockingList([]bucket.Bucket{{ID: "old", Name: "stale", Type: bucket.TypeUser}})
	client.queueList([]bucket.Bucket{{ID: "new", Name: "fresh", Type: bucket.TypeUser}}, nil)
	p := New(client, cachestore.NewMemStore())

	firstDone := make(chan error, 1)
	go func() { firstDone <- p.Fetch(context.Background(), testScope) }()

	require.Eventually(t, func() bool {
		entry, err := p.Snapshot(testScope)
		return err == nil && entry.State == cachestore.StateLoading
	}, time.Second, time.Millisecond)

	// Second fetch cancels the first; only its response may commit.
	require.NoError(t, p.Fetch(context.Background(), testScope))

	err := <-firstDone
	require.Error(t, err)
	close(release)

	entry, snapErr := p.Snapshot(testScope)
	require.NoError(t, snapErr)
	assert.Equal(t, cachestore.StateDone, entry.State)
	assert.Contains(t, bucketNames(entry), "fresh")
	assert.NotContains(t, bucketNames(entry), "stale")
}

func TestFetchCancellationDoesNotWriteError(t *testing.T) {
	client := &fakeClient{}
	_ = client.queueBlockingList(nil)
	p := New(client, cachestore.NewMemStore())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Fetch(ctx, testScope) }()

	require.Eventually(t, func() bool {
		entry, err := p.Snapshot(testScope)
		return err == nil && entry.State == cachestore.StateLoading
	}, time.Second, time.Millisecond)

	cancel()
	err := <-done
	require.ErrorIs(t, err, context.Canceled)

	// Cancellation is not a platform failure; the entry is not flipped
	// to Error.
	entry, snapErr := p.Snapshot(testScope)
	require.NoError(t, snapErr)
	assert.Equal(t, cachestore.StateLoading, entry.State)
}

func TestRefreshIsIdempotentForUnchangedResponse(t *testing.T) {
	payload := []bucket.Bucket{
		{ID: "1", Name: "beta", Type: bucket.TypeUser},
		{ID: "2", Name: "alpha", Type: bucket.TypeUser},
	}
	client := &fakeClient{}
	client.queueList(payload, nil)
	client.queueList(payload, nil)
	p := New(client, cachestore.NewMemStore())

	require.NoError(t, p.Refresh(context.Background(), testScope))
	first, err := p.Snapshot(testScope)
	require.NoError(t, err)

	require.NoError(t, p.Refresh(context.Background(), testScope))
	second, err := p.Snapshot(testScope)
	require.NoError(t, err)

	assert.Equal(t, bucketNames(first), bucketNames(second))
}

func TestEnsureFetchedRunsOnlyOnce(t *testing.T) {
	client := &fakeClient{}
	client.queueList(nil, nil)
	p := New(client, cachestore.NewMemStore())

	require.NoError(t, p.EnsureFetched(context.Background(), testScope))
	// Second call must not issue a request; the fake would panic on an
	// empty script.
	require.NoError(t, p.EnsureFetched(context.Background(), testScope))

	entry, err := p.Snapshot(testScope)
	require.NoError(t, err)
	assert.Equal(t, cachestore.StateDone, entry.State)
}

func TestCreateBucketNormalizesOrgAndAppends(t *testing.T) {
	client := &fakeClient{}
	client.queueList([]bucket.Bucket{{ID: "1", Name: "existing", Type: bucket.TypeUser}}, nil)
	p := New(client, cachestore.NewMemStore())
	require.NoError(t, p.Fetch(context.Background(), testScope))

	created, err := p.CreateBucket(context.Background(), testScope,
		bucket.Bucket{OrgID: "attacker-org", Type: bucket.TypeUser, Name: "aaa-new"})
	require.NoError(t, err)
	assert.Equal(t, "org1", created.OrgID)
	assert.Equal(t, "server-assigned", created.ID)

	entry, err := p.Snapshot(testScope)
	require.NoError(t, err)
	// Appended at the end, not re-sorted: "aaa-new" would sort first.
	assert.Equal(t, "aaa-new", entry.Buckets[len(entry.Buckets)-1].Name)
	assert.Equal(t, cachestore.StateDone, entry.State)
}

func TestCreateBucketFailureSurfacesAndLeavesCacheUntouched(t *testing.T) {
	client := &fakeClient{createErr: errors.New("quota exceeded")}
	client.queueList(nil, nil)
	p := New(client, cachestore.NewMemStore())
	require.NoError(t, p.Fetch(context.Background(), testScope))
	before, err := p.Snapshot(testScope)
	require.NoError(t, err)

	_, err = p.CreateBucket(context.Background(), testScope, bucket.Bucket{Name: "x"})
	require.Error(t, err)

	after, snapErr := p.Snapshot(testScope)
	require.NoError(t, snapErr)
	assert.Equal(t, len(before.Buckets), len(after.Buckets))
}

func TestAddBucketAppendsWithoutRequest(t *testing.T) {
	p := New(&fakeClient{}, cachestore.NewMemStore())

	require.NoError(t, p.AddBucket(testScope, bucket.Bucket{ID: "m", Name: "manual"}))

	entry, err := p.Snapshot(testScope)
	require.NoError(t, err)
	require.Len(t, entry.Buckets, 1)
	assert.Equal(t, "manual", entry.Buckets[0].Name)
	// State is untouched; nothing was ever fetched.
	assert.Equal(t, cachestore.StateNotStarted, entry.State)
}

func TestScopesAreIndependent(t *testing.T) {
	otherScope := bucket.Scope{Endpoint: "https://b", Org: "org2"}

	client := &fakeClient{}
	release := client.queueBlockingList(nil)
	client.queueList([]bucket.Bucket{{ID: "o", Name: "other", Type: bucket.TypeUser}}, nil)
	p := New(client, cachestore.NewMemStore())

	done := make(chan error, 1)
	go func() { done <- p.Fetch(context.Background(), testScope) }()

	require.Eventually(t, func() bool {
		entry, err := p.Snapshot(testScope)
		return err == nil && entry.State == cachestore.StateLoading
	}, time.Second, time.Millisecond)

	// A fetch for a different scope must not cancel the first one.
	require.NoError(t, p.Fetch(context.Background(), otherScope))

	close(release)
	require.NoError(t, <-done)

	first, err := p.Snapshot(testScope)
	require.NoError(t, err)
	assert.Equal(t, cachestore.StateDone, first.State)
}

func TestCloseCancelsInFlightAndRejectsNewFetches(t *testing.T) {
	client := &fakeClient{}
	_ = client.queueBlockingList(nil)
	p := New(client, cachestore.NewMemStore())

	done := make(chan error, 1)
	go func() { done <- p.Fetch(context.Background(), testScope) }()

	require.Eventually(t, func() bool {
		entry, err := p.Snapshot(testScope)
		return err == nil && entry.State == cachestore.StateLoading
	}, time.Second, time.Millisecond)

	require.NoError(t, p.Close())
	require.Error(t, <-done)

	err := p.Fetch(context.Background(), testScope)
	assert.ErrorIs(t, err, ErrClosed)

	// Close is idempotent.
	require.NoError(t, p.Close())
}

func TestSubscribersSeeWrites(t *testing.T) {
	client := &fakeClient{}
	client.queueList(nil, nil)
	p := New(client, cachestore.NewMemStore())

	var mu sync.Mutex
	var states []cachestore.State
	p.Subscribe(func(key string, entry cachestore.Entry) {
		mu.Lock()
		states = append(states, entry.State)
		mu.Unlock()
	})

	require.NoError(t, p.Fetch(context.Background(), testScope))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []cachestore.State{cachestore.StateLoading, cachestore.StateDone}, states)
}

func TestFetchPersistsAcrossProviders(t *testing.T) {
	store := cachestore.NewMemStore()

	client := &fakeClient{}
	client.queueList([]bucket.Bucket{{ID: "1", Name: "durable", Type: bucket.TypeUser}}, nil)
	p := New(client, store)
	require.NoError(t, p.Fetch(context.Background(), testScope))

	// A fresh provider over the same store serves the committed listing.
	p2 := New(&fakeClient{}, store)
	entry, err := p2.Snapshot(testScope)
	require.NoError(t, err)
	assert.Equal(t, cachestore.StateDone, entry.State)
	assert.Contains(t, bucketNames(entry), "durable")
}
