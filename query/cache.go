// Package query caches the results of backend reads per key, tracks their
// loading/error/success state and collapses concurrent requests for the same
// key into a single fetch.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize is the entry capacity used when Options.Size is unset.
const DefaultSize = 128

// ErrClosed is reported by queries issued after Close.
var ErrClosed = errors.New("query: cache closed")

// Status is the state of a cache entry.
type Status int

const (
	StatusLoading Status = iota
	StatusError
	StatusSuccess
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusError:
		return "error"
	case StatusSuccess:
		return "success"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Snapshot is the state of one key at a point in time.
type Snapshot[T any] struct {
	Key       string
	Status    Status
	Data      T
	Err       error
	UpdatedAt time.Time
	// Fetching is set while a fetch for the key is in flight, including a
	// background refetch of data that is still being served.
	Fetching bool
}

// Settled reports whether the snapshot is final: not loading and with no
// fetch in flight.
func (s Snapshot[T]) Settled() bool {
	return s.Status != StatusLoading && !s.Fetching
}

// Fetcher loads the value for a key.
type Fetcher[T any] func(ctx context.Context) (T, error)

// Options configure a Cache.
type Options struct {
	// Size bounds the number of keys kept; least recently used keys are
	// evicted first. Keys with a fetch in flight or an active subscriber are
	// held past the bound until both are gone.
	Size int
	// StaleTime is how long a successful result is served without refetching.
	// Zero means every request refetches (still de-duplicated).
	StaleTime time.Duration
	Metrics   *Metrics
	// Now overrides the clock in tests.
	Now func() time.Time
}

type call struct {
	seq  uint64
	done chan struct{}
	data any
	err  error
}

type entry struct {
	status    Status
	data      any
	err       error
	updatedAt time.Time

	// seq is the last sequence number handed to a fetch, applied the last
	// one whose result was stored. invalidSeq marks the newest fetch started
	// before the last invalidation.
	seq        uint64
	applied    uint64
	invalidSeq uint64
	invalid    bool

	inflight *call
}

type view struct {
	status    Status
	data      any
	err       error
	updatedAt time.Time
	fetching  bool
}

// Cache is an explicitly constructed query cache. Fetches run on the cache's
// own context so a caller that stops waiting does not cancel them; Close
// cancels and waits for all of them.
type Cache struct {
	mu      sync.Mutex
	entries *lru.Cache[string, *entry]
	// held keeps entries pushed out of entries while they are still busy.
	held     map[string]*entry
	removing bool

	staleTime time.Duration
	now       func() time.Time
	metrics   *Metrics

	subs    map[string]map[uint64]chan struct{}
	nextSub uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// New builds a cache from opts.
func New(opts Options) (*Cache, error) {
	size := opts.Size
	if size <= 0 {
		size = DefaultSize
	}
	if opts.StaleTime < 0 {
		return nil, fmt.Errorf("stale time cannot be negative")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		held:      make(map[string]*entry),
		staleTime: opts.StaleTime,
		now:       now,
		metrics:   opts.Metrics,
		subs:      make(map[string]map[uint64]chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
	entries, err := lru.NewWithEvict(size, c.onEvict)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create lru: %w", err)
	}
	c.entries = entries
	return c, nil
}

// onEvict runs with c.mu held: every Add and Remove on entries happens under
// the lock.
func (c *Cache) onEvict(key string, e *entry) {
	if !c.removing && c.busyLocked(key, e) {
		c.held[key] = e
		slog.Debug("query held past capacity", slog.String("key", key))
		return
	}
	c.metrics.IncEviction()
	slog.Debug("query evicted", slog.String("key", key))
}

func (c *Cache) busyLocked(key string, e *entry) bool {
	return e.inflight != nil || len(c.subs[key]) > 0
}

func (c *Cache) lookupLocked(key string, promote bool) (*entry, bool) {
	var (
		e  *entry
		ok bool
	)
	if promote {
		e, ok = c.entries.Get(key)
	} else {
		e, ok = c.entries.Peek(key)
	}
	if ok {
		return e, true
	}
	e, ok = c.held[key]
	return e, ok
}

// releaseLocked moves a held entry back under the size bound once nothing
// is using it. That may in turn push out the least recently used key.
func (c *Cache) releaseLocked(key string) {
	e, ok := c.held[key]
	if !ok || c.busyLocked(key, e) {
		return
	}
	delete(c.held, key)
	c.entries.Add(key, e)
}

// Query returns the value for key, fetching it when nothing fresh is cached.
// Concurrent callers for the same key share one fetch. Query waits until the
// fetch completes or ctx is done, whichever comes first; it never returns the
// fetch error directly, the error is part of the snapshot.
func Query[T any](ctx context.Context, c *Cache, key string, fetch Fetcher[T]) Snapshot[T] {
	return wait[T](ctx, c, key, fetch, false)
}

// Refetch starts a new fetch for key even when a fresh value or an in-flight
// fetch exists, then waits like Query.
func Refetch[T any](ctx context.Context, c *Cache, key string, fetch Fetcher[T]) Snapshot[T] {
	return wait[T](ctx, c, key, fetch, true)
}

// Prefetch triggers a fetch under the same rules as Query without waiting.
func Prefetch[T any](c *Cache, key string, fetch Fetcher[T]) {
	if _, err := c.begin(key, erase(fetch), false); err != nil {
		slog.Debug("prefetch skipped", slog.String("key", key), slog.Any("error", err))
	}
}

// Peek returns the current snapshot for key without fetching.
func Peek[T any](c *Cache, key string) Snapshot[T] {
	return typed[T](key, c.view(key, nil, false))
}

func wait[T any](ctx context.Context, c *Cache, key string, fetch Fetcher[T], force bool) Snapshot[T] {
	cl, err := c.begin(key, erase(fetch), force)
	if err != nil {
		return Snapshot[T]{Key: key, Status: StatusError, Err: err}
	}
	if cl != nil {
		select {
		case <-cl.done:
		case <-ctx.Done():
		}
	}
	return typed[T](key, c.view(key, cl, true))
}

func erase[T any](fetch Fetcher[T]) func(context.Context) (any, error) {
	return func(ctx context.Context) (any, error) {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}

func typed[T any](key string, v view) Snapshot[T] {
	snap := Snapshot[T]{
		Key:       key,
		Status:    v.status,
		Err:       v.err,
		UpdatedAt: v.updatedAt,
		Fetching:  v.fetching,
	}
	if v.data != nil {
		data, ok := v.data.(T)
		if !ok {
			var want T
			snap.Status = StatusError
			snap.Err = fmt.Errorf("query %q holds %T, not %T", key, v.data, want)
			return snap
		}
		snap.Data = data
	}
	return snap
}

// begin returns the call to wait on, or nil when the cached value is fresh.
func (c *Cache) begin(key string, fetch func(context.Context) (any, error), force bool) (*call, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}

	e, ok := c.lookupLocked(key, true)
	if !ok {
		e = &entry{status: StatusLoading}
		c.entries.Add(key, e)
	}

	if !force {
		if e.inflight != nil {
			c.metrics.IncJoin()
			return e.inflight, nil
		}
		if c.freshLocked(e) {
			c.metrics.IncHit()
			return nil, nil
		}
	}

	c.metrics.IncMiss()
	e.seq++
	cl := &call{seq: e.seq, done: make(chan struct{})}
	e.inflight = cl
	if e.status == StatusError {
		e.status = StatusLoading
		e.err = nil
	}
	slog.Debug("query fetch started", slog.String("key", key), slog.Uint64("seq", cl.seq))
	c.notifyLocked(key)

	c.wg.Add(1)
	go c.run(key, cl, fetch)
	return cl, nil
}

func (c *Cache) run(key string, cl *call, fetch func(context.Context) (any, error)) {
	defer c.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			c.complete(key, cl, nil, fmt.Errorf("query %q: fetch panicked: %v", key, r))
		}
	}()

	data, err := fetch(c.ctx)
	c.complete(key, cl, data, err)
}

func (c *Cache) complete(key string, cl *call, data any, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cl.data, cl.err = data, err
	if err != nil {
		c.metrics.IncError()
	}

	if e, ok := c.lookupLocked(key, false); ok {
		if e.inflight == cl {
			e.inflight = nil
		}
		if cl.seq < e.applied {
			c.metrics.IncDropped()
			slog.Debug("query dropped stale result",
				slog.String("key", key),
				slog.Uint64("seq", cl.seq),
				slog.Uint64("applied", e.applied),
			)
		} else {
			e.applied = cl.seq
			e.updatedAt = c.now()
			e.invalid = cl.seq <= e.invalidSeq
			if err != nil {
				e.status = StatusError
				e.data = nil
				e.err = err
			} else {
				e.status = StatusSuccess
				e.data = data
				e.err = nil
			}
		}
		c.releaseLocked(key)
	}

	if err != nil {
		slog.Debug("query fetch failed", slog.String("key", key), slog.Any("error", err))
	}
	close(cl.done)
	c.notifyLocked(key)
}

func (c *Cache) freshLocked(e *entry) bool {
	if e.status != StatusSuccess || e.invalid || c.staleTime <= 0 {
		return false
	}
	return c.now().Sub(e.updatedAt) < c.staleTime
}

func (c *Cache) view(key string, cl *call, promote bool) view {
	c.mu.Lock()
	defer c.mu.Unlock()

	var v view
	if e, ok := c.lookupLocked(key, promote); ok {
		v = view{
			status:    e.status,
			data:      e.data,
			err:       e.err,
			updatedAt: e.updatedAt,
			fetching:  e.inflight != nil,
		}
	} else if cl != nil {
		// Removed while the fetch was in flight: fall back to the call's result.
		select {
		case <-cl.done:
			if cl.err != nil {
				v = view{status: StatusError, err: cl.err}
			} else {
				v = view{status: StatusSuccess, data: cl.data}
			}
		default:
			v = view{status: StatusLoading, fetching: true}
		}
	} else {
		v = view{status: StatusLoading}
	}

	// Nothing will ever load a key once the cache is closed.
	if c.closed && v.status == StatusLoading {
		return view{status: StatusError, err: ErrClosed}
	}
	return v
}

// Status returns the status of key without fetching.
func (c *Cache) Status(key string) Status {
	return c.view(key, nil, false).status
}

// Settled reports whether key holds a final result with no fetch in flight.
func (c *Cache) Settled(key string) bool {
	v := c.view(key, nil, false)
	return v.status != StatusLoading && !v.fetching
}

// Invalidate marks keys stale so the next request refetches them. A fetch
// already in flight does not clear the mark.
func (c *Cache) Invalidate(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		c.invalidateLocked(key)
	}
}

// InvalidatePrefix marks every key starting with prefix stale.
func (c *Cache) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range c.entries.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.invalidateLocked(key)
		}
	}
	for key := range c.held {
		if strings.HasPrefix(key, prefix) {
			c.invalidateLocked(key)
		}
	}
}

func (c *Cache) invalidateLocked(key string) {
	e, ok := c.lookupLocked(key, false)
	if !ok {
		return
	}
	e.invalid = true
	e.invalidSeq = e.seq
	c.notifyLocked(key)
}

// Remove drops key from the cache. An in-flight fetch still completes for
// its waiters but its result is not stored.
func (c *Cache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removing = true
	c.entries.Remove(key)
	c.removing = false
	delete(c.held, key)
	c.notifyLocked(key)
}

// Len returns the number of cached keys, including keys held past the size
// bound.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len() + len(c.held)
}

// Subscribe returns a channel signalled whenever key changes state. Signals
// coalesce: a slow reader sees at least one pending signal, not one per
// change. The returned func unsubscribes.
func (c *Cache) Subscribe(key string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	if c.subs[key] == nil {
		c.subs[key] = make(map[uint64]chan struct{})
	}
	c.subs[key][id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.subs[key], id)
			if len(c.subs[key]) == 0 {
				delete(c.subs, key)
			}
			c.releaseLocked(key)
		})
	}
}

func (c *Cache) notifyLocked(key string) {
	for _, ch := range c.subs[key] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Close cancels in-flight fetches and waits for them to finish. Queries
// issued afterwards, and keys that never loaded, report ErrClosed.
func (c *Cache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}
