package query

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (fc *fakeClock) Now() time.Time {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.now
}

func (fc *fakeClock) Advance(d time.Duration) {
	fc.mu.Lock()
	fc.now = fc.now.Add(d)
	fc.mu.Unlock()
}

func newTestCache(t *testing.T, opts Options) (*Cache, *Metrics) {
	t.Helper()
	metrics := NewMetrics(prometheus.NewRegistry())
	opts.Metrics = metrics
	c, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c, metrics
}

func counting[T any](calls *atomic.Int32, value T, err error) Fetcher[T] {
	return func(ctx context.Context) (T, error) {
		calls.Add(1)
		return value, err
	}
}

func TestQueryDeduplicatesConcurrentRequests(t *testing.T) {
	c, metrics := newTestCache(t, Options{})

	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(ctx context.Context) ([]string, error) {
		calls.Add(1)
		<-release
		return []string{"Dune"}, nil
	}

	var wg sync.WaitGroup
	results := make([]Snapshot[[]string], 2)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = Query(context.Background(), c, "books", fetch)
		}()
	}

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.JoinsTotal) == 1
	}, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, snap := range results {
		assert.Equal(t, StatusSuccess, snap.Status)
		assert.Equal(t, []string{"Dune"}, snap.Data)
		assert.True(t, snap.Settled())
	}
}

func TestQueryServesFreshValue(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c, metrics := newTestCache(t, Options{StaleTime: time.Minute, Now: clock.Now})

	var calls atomic.Int32
	fetch := counting(&calls, "v1", nil)

	Query(context.Background(), c, "authors", fetch)
	snap := Query(context.Background(), c, "authors", fetch)
	assert.Equal(t, "v1", snap.Data)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.HitsTotal))

	clock.Advance(2 * time.Minute)
	Query(context.Background(), c, "authors", fetch)
	assert.Equal(t, int32(2), calls.Load())
}

func TestZeroStaleTimeAlwaysRefetches(t *testing.T) {
	c, _ := newTestCache(t, Options{})

	var calls atomic.Int32
	fetch := counting(&calls, 3, nil)
	Query(context.Background(), c, "count", fetch)
	Query(context.Background(), c, "count", fetch)
	assert.Equal(t, int32(2), calls.Load())
}

func TestQueryStoresErrorWithoutData(t *testing.T) {
	c, metrics := newTestCache(t, Options{StaleTime: time.Minute})
	boom := errors.New("connection refused")

	ok := Query(context.Background(), c, "books", func(ctx context.Context) ([]string, error) {
		return []string{"Dune"}, nil
	})
	require.Equal(t, StatusSuccess, ok.Status)

	c.Invalidate("books")
	snap := Query(context.Background(), c, "books", func(ctx context.Context) ([]string, error) {
		return nil, boom
	})
	assert.Equal(t, StatusError, snap.Status)
	assert.ErrorIs(t, snap.Err, boom)
	assert.Nil(t, snap.Data, "a failed fetch must not keep the previous list")
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ErrorsTotal))

	var calls atomic.Int32
	retry := Query(context.Background(), c, "books", counting(&calls, []string{"Emma"}, nil))
	assert.Equal(t, int32(1), calls.Load(), "errors are refetched on the next request")
	assert.Equal(t, []string{"Emma"}, retry.Data)
}

func TestRefetchWhileLoadingShowsLoadingNotError(t *testing.T) {
	c, _ := newTestCache(t, Options{})
	Query(context.Background(), c, "books", func(ctx context.Context) (int, error) {
		return 0, errors.New("down")
	})
	require.Equal(t, StatusError, c.Status("books"))

	release := make(chan struct{})
	Prefetch(c, "books", func(ctx context.Context) (int, error) {
		<-release
		return 1, nil
	})
	snap := Peek[int](c, "books")
	assert.Equal(t, StatusLoading, snap.Status)
	assert.True(t, snap.Fetching)
	assert.NoError(t, snap.Err)
	close(release)
}

func TestNewerResultWinsOverSlowerOlderResponse(t *testing.T) {
	c, metrics := newTestCache(t, Options{})

	slowOld := make(chan struct{})
	fastNew := make(chan struct{})
	Prefetch(c, "books", func(ctx context.Context) (string, error) {
		<-slowOld
		return "old", nil
	})

	done := make(chan Snapshot[string], 1)
	go func() {
		done <- Refetch(context.Background(), c, "books", func(ctx context.Context) (string, error) {
			<-fastNew
			return "new", nil
		})
	}()
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.MissesTotal) == 2
	}, time.Second, time.Millisecond)

	close(fastNew)
	snap := <-done
	assert.Equal(t, "new", snap.Data)

	close(slowOld)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.DroppedTotal) == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, "new", Peek[string](c, "books").Data)
}

func TestOlderResultAppliedWhenItArrivesFirst(t *testing.T) {
	c, metrics := newTestCache(t, Options{})

	first := make(chan struct{})
	second := make(chan struct{})
	Prefetch(c, "books", func(ctx context.Context) (string, error) {
		<-first
		return "old", nil
	})
	done := make(chan Snapshot[string], 1)
	go func() {
		done <- Refetch(context.Background(), c, "books", func(ctx context.Context) (string, error) {
			<-second
			return "new", nil
		})
	}()
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.MissesTotal) == 2
	}, time.Second, time.Millisecond)

	close(first)
	require.Eventually(t, func() bool {
		return Peek[string](c, "books").Data == "old"
	}, time.Second, time.Millisecond)
	assert.True(t, Peek[string](c, "books").Fetching)

	close(second)
	assert.Equal(t, "new", (<-done).Data)
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.DroppedTotal))
}

func TestInvalidateDuringFetchKeepsEntryStale(t *testing.T) {
	c, _ := newTestCache(t, Options{StaleTime: time.Hour})

	release := make(chan struct{})
	Prefetch(c, "authors", func(ctx context.Context) (string, error) {
		<-release
		return "before mutation", nil
	})
	c.Invalidate("authors")
	close(release)
	require.Eventually(t, func() bool { return c.Settled("authors") }, time.Second, time.Millisecond)

	var calls atomic.Int32
	snap := Query(context.Background(), c, "authors", counting(&calls, "after mutation", nil))
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "after mutation", snap.Data)
}

func TestInvalidatePrefix(t *testing.T) {
	c, _ := newTestCache(t, Options{StaleTime: time.Hour})
	var calls atomic.Int32
	for _, key := range []string{"books", "books/b1", "authors"} {
		Query(context.Background(), c, key, counting(&calls, key, nil))
	}
	require.Equal(t, int32(3), calls.Load())

	c.InvalidatePrefix("books")
	for _, key := range []string{"books", "books/b1", "authors"} {
		Query(context.Background(), c, key, counting(&calls, key, nil))
	}
	assert.Equal(t, int32(5), calls.Load())
}

func TestAbandonedQueryStillCompletes(t *testing.T) {
	c, _ := newTestCache(t, Options{})

	release := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	snap := Query(ctx, c, "books", func(ctx context.Context) (string, error) {
		<-release
		return "done", nil
	})
	assert.Equal(t, StatusLoading, snap.Status)
	assert.True(t, snap.Fetching)

	close(release)
	require.Eventually(t, func() bool { return c.Settled("books") }, time.Second, time.Millisecond)
	assert.Equal(t, "done", Peek[string](c, "books").Data)
}

func TestCloseCancelsAndWaits(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	c, err := New(Options{Metrics: metrics})
	require.NoError(t, err)

	started := make(chan struct{})
	Prefetch(c, "books", func(ctx context.Context) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	})
	<-started
	c.Close()

	snap := Peek[string](c, "books")
	assert.Equal(t, StatusError, snap.Status)
	assert.ErrorIs(t, snap.Err, context.Canceled)

	after := Query(context.Background(), c, "books", func(ctx context.Context) (string, error) {
		t.Error("fetch must not run after Close")
		return "", nil
	})
	assert.ErrorIs(t, after.Err, ErrClosed)
	c.Close()
}

func TestSubscribeSignalsChanges(t *testing.T) {
	c, _ := newTestCache(t, Options{})
	changes, unsubscribe := c.Subscribe("books")
	defer unsubscribe()

	Query(context.Background(), c, "books", func(ctx context.Context) (int, error) {
		return 1, nil
	})
	select {
	case <-changes:
	case <-time.After(time.Second):
		t.Fatal("expected a change signal")
	}

	unsubscribe()
	c.Invalidate("books")
	select {
	case <-changes:
		t.Fatal("unsubscribed channel must not be signalled")
	default:
	}
}

func TestFetchPanicBecomesError(t *testing.T) {
	c, _ := newTestCache(t, Options{})
	snap := Query(context.Background(), c, "books", func(ctx context.Context) (int, error) {
		panic("bad decoder")
	})
	assert.Equal(t, StatusError, snap.Status)
	assert.ErrorContains(t, snap.Err, "panicked")
}

func TestEvictionRespectsSize(t *testing.T) {
	c, metrics := newTestCache(t, Options{Size: 1})
	Query(context.Background(), c, "books", counting(new(atomic.Int32), 1, nil))
	Query(context.Background(), c, "authors", counting(new(atomic.Int32), 2, nil))

	assert.Equal(t, 1, c.Len())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.EvictionsTotal))
	assert.Equal(t, StatusLoading, c.Status("books"))
	assert.Equal(t, 2, Peek[int](c, "authors").Data)
}

func TestPeekWithWrongTypeReportsError(t *testing.T) {
	c, _ := newTestCache(t, Options{})
	Query(context.Background(), c, "books", counting(new(atomic.Int32), "text", nil))

	snap := Peek[int](c, "books")
	assert.Equal(t, StatusError, snap.Status)
	assert.Error(t, snap.Err)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "loading", StatusLoading.String())
	assert.Equal(t, "error", StatusError.String())
	assert.Equal(t, "success", StatusSuccess.String())
}

func TestInFlightKeyOutlivesSizeBound(t *testing.T) {
	c, metrics := newTestCache(t, Options{Size: 1})

	var bookCalls atomic.Int32
	release := make(chan struct{})
	books := func(ctx context.Context) (string, error) {
		bookCalls.Add(1)
		<-release
		return "Dune", nil
	}

	Prefetch(c, "books", books)
	Query(context.Background(), c, "authors", counting(new(atomic.Int32), "Jane Doe", nil))
	assert.Equal(t, 2, c.Len())

	// Still in flight, so a second request joins instead of refetching.
	Prefetch(c, "books", books)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.JoinsTotal))

	close(release)
	require.Eventually(t, func() bool { return c.Settled("books") }, time.Second, time.Millisecond)

	snap := Peek[string](c, "books")
	assert.Equal(t, StatusSuccess, snap.Status)
	assert.Equal(t, "Dune", snap.Data)
	assert.Equal(t, int32(1), bookCalls.Load())
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.EvictionsTotal))
}

func TestSubscribedKeysSettleAboveSizeBound(t *testing.T) {
	c, _ := newTestCache(t, Options{Size: 1})
	_, stopBooks := c.Subscribe("books")
	_, stopAuthors := c.Subscribe("authors")

	Query(context.Background(), c, "books", counting(new(atomic.Int32), "Dune", nil))
	Query(context.Background(), c, "authors", counting(new(atomic.Int32), "Jane Doe", nil))

	assert.True(t, c.Settled("books"))
	assert.True(t, c.Settled("authors"))
	assert.Equal(t, "Dune", Peek[string](c, "books").Data)
	assert.Equal(t, 2, c.Len())

	stopBooks()
	stopAuthors()
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, "Jane Doe", Peek[string](c, "authors").Data)
}

func TestRemoveDropsHeldKey(t *testing.T) {
	c, _ := newTestCache(t, Options{Size: 1})
	_, stop := c.Subscribe("books")
	defer stop()

	Query(context.Background(), c, "books", counting(new(atomic.Int32), "Dune", nil))
	Query(context.Background(), c, "authors", counting(new(atomic.Int32), "Jane Doe", nil))
	require.Equal(t, 2, c.Len())

	c.Remove("books")
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, StatusLoading, c.Status("books"))
}

func TestKeysSettleAsClosedAfterClose(t *testing.T) {
	c, err := New(Options{})
	require.NoError(t, err)
	Query(context.Background(), c, "authors", counting(new(atomic.Int32), "Jane Doe", nil))
	c.Close()

	assert.True(t, c.Settled("books"))
	snap := Peek[string](c, "books")
	assert.Equal(t, StatusError, snap.Status)
	assert.ErrorIs(t, snap.Err, ErrClosed)

	assert.Equal(t, "Jane Doe", Peek[string](c, "authors").Data)
}
