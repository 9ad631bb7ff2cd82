// Package cache is a small query cache for the client: values are stored
// under hierarchical keys, fetched on demand, cancelled and invalidated by
// key prefix, and observed through subscriptions.
//
// Fetches are tagged with a per-entry generation. CancelQueries and every
// explicit Fetch bump the generation, so a response that arrives late is
// dropped instead of overwriting data written after it was requested.
// Concurrent Query calls for the same key share the fetch in flight.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/todokeeper/internal/clockx"
	"github.com/dmitrijs2005/todokeeper/internal/logging"
)

// ErrCancelled is returned by Fetch when its result was discarded because
// the query was cancelled or superseded while in flight.
var ErrCancelled = errors.New("query cancelled")

// Key identifies a cached value. Keys are compared segment by segment; a
// key matches every prefix of itself.
type Key []string

func (k Key) String() string { return strings.Join(k, "/") }

// HasPrefix reports whether p is a prefix of k.
func (k Key) HasPrefix(p Key) bool {
	if len(p) > len(k) {
		return false
	}
	for i := range p {
		if k[i] != p[i] {
			return false
		}
	}
	return true
}

// Append returns a new key with segs added.
func (k Key) Append(segs ...string) Key {
	out := make(Key, 0, len(k)+len(segs))
	out = append(out, k...)
	return append(out, segs...)
}

// QueryFn loads the value for a key.
type QueryFn func(ctx context.Context) (any, error)

type entry struct {
	key       Key
	data      any
	hasData   bool
	err       error
	updatedAt time.Time
	stale     bool

	// fn is the last loader used for the entry; entries with a loader are
	// refetched on invalidation.
	fn QueryFn

	gen    uint64
	flight *flight
}

// flight is one running fetch. done is closed once data and err are set.
type flight struct {
	gen    uint64
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	data   any
	err    error
}

// QueryCache is safe for concurrent use.
type QueryCache struct {
	mu        sync.Mutex
	entries   map[string]*entry
	staleTime time.Duration
	clock     clockx.Clock
	logger    logging.Logger

	subMu  sync.Mutex
	subs   map[int]func(Key)
	nextID int

	bg sync.WaitGroup
}

// New returns an empty cache. Data older than staleTime is refetched by
// Query; a zero staleTime keeps data fresh until it is invalidated.
func New(clock clockx.Clock, staleTime time.Duration, l logging.Logger) *QueryCache {
	return &QueryCache{
		entries:   make(map[string]*entry),
		staleTime: staleTime,
		clock:     clock,
		logger:    l.With("module", "query_cache"),
		subs:      make(map[int]func(Key)),
	}
}

func (c *QueryCache) entryLocked(key Key) *entry {
	id := key.String()
	e, ok := c.entries[id]
	if !ok {
		e = &entry{key: append(Key(nil), key...)}
		c.entries[id] = e
	}
	return e
}

func (c *QueryCache) freshLocked(e *entry) bool {
	if !e.hasData || e.stale {
		return false
	}
	return c.staleTime <= 0 || c.clock.Now().Sub(e.updatedAt) < c.staleTime
}

// Query returns cached data for key when it is fresh and fetches it with fn
// otherwise. A caller arriving while a fetch is in flight waits for that
// fetch instead of starting another. fn is remembered for background
// refetches.
func (c *QueryCache) Query(ctx context.Context, key Key, fn QueryFn) (any, error) {
	for {
		c.mu.Lock()
		e := c.entryLocked(key)
		e.fn = fn
		if c.freshLocked(e) {
			data := e.data
			c.mu.Unlock()
			return data, nil
		}
		f := e.flight
		if f == nil {
			f = c.startLocked(ctx, e)
			c.mu.Unlock()
			c.run(ctx, e, f, fn)
		} else {
			c.mu.Unlock()
			select {
			case <-f.done:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if !errors.Is(f.err, ErrCancelled) {
			return f.data, f.err
		}

		// superseded: follow the newer fetch or its result
		c.mu.Lock()
		retry := c.entries[key.String()] == e && (e.flight != nil || c.freshLocked(e))
		c.mu.Unlock()
		if !retry {
			return f.data, f.err
		}
	}
}

// Fetch loads key with fn regardless of freshness. Any fetch already in
// flight for key is superseded. On failure the previous data is kept and
// the error is recorded on the entry.
func (c *QueryCache) Fetch(ctx context.Context, key Key, fn QueryFn) (any, error) {
	c.mu.Lock()
	e := c.entryLocked(key)
	e.fn = fn
	f := c.startLocked(ctx, e)
	c.mu.Unlock()

	return c.run(ctx, e, f, fn)
}

// startLocked registers a new flight on e, cancelling the previous one.
func (c *QueryCache) startLocked(ctx context.Context, e *entry) *flight {
	if e.flight != nil {
		e.flight.cancel()
	}
	e.gen++
	fctx, cancel := context.WithCancel(ctx)
	f := &flight{gen: e.gen, ctx: fctx, cancel: cancel, done: make(chan struct{})}
	e.flight = f
	return f
}

func (c *QueryCache) run(ctx context.Context, e *entry, f *flight, fn QueryFn) (any, error) {
	defer f.cancel()

	data, err := fn(f.ctx)

	c.mu.Lock()
	if e.gen != f.gen || c.entries[e.key.String()] != e {
		f.data, f.err = e.data, fmt.Errorf("%s: %w", e.key, ErrCancelled)
		c.mu.Unlock()
		close(f.done)
		c.logger.Debug(ctx, "discarding superseded fetch", "key", e.key.String())
		return f.data, f.err
	}
	e.flight = nil
	if err != nil {
		e.err = err
		f.err = err
		c.mu.Unlock()
		close(f.done)
		return nil, err
	}
	e.data, e.hasData, e.err = data, true, nil
	e.stale = false
	e.updatedAt = c.clock.Now()
	f.data = data
	c.mu.Unlock()
	close(f.done)

	c.notify(e.key)
	return data, nil
}

// CancelQueries aborts in-flight fetches under prefix. Their results, if
// they still arrive, are discarded.
func (c *QueryCache) CancelQueries(prefix Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.entries {
		if !e.key.HasPrefix(prefix) || e.flight == nil {
			continue
		}
		e.flight.cancel()
		e.flight = nil
		e.gen++
	}
}

// MarkStale flags every entry under prefix so the next Query refetches it.
func (c *QueryCache) MarkStale(prefix Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.entries {
		if e.key.HasPrefix(prefix) {
			e.stale = true
		}
	}
}

// InvalidateQueries marks entries under prefix stale and refetches, in the
// background, those that have a loader. Wait blocks until they finish.
func (c *QueryCache) InvalidateQueries(prefix Key) {
	type job struct {
		key Key
		fn  QueryFn
	}

	c.mu.Lock()
	var jobs []job
	for _, e := range c.entries {
		if !e.key.HasPrefix(prefix) {
			continue
		}
		e.stale = true
		if e.fn != nil {
			jobs = append(jobs, job{key: e.key, fn: e.fn})
		}
	}
	c.mu.Unlock()

	for _, j := range jobs {
		c.bg.Add(1)
		go func() {
			defer c.bg.Done()
			if _, err := c.Fetch(context.Background(), j.key, j.fn); err != nil && !errors.Is(err, ErrCancelled) {
				c.logger.Warn(context.Background(), "background refetch failed", "key", j.key.String(), "error", err)
			}
		}()
	}
}

// RemoveQueries drops entries under prefix, cancelling their fetches.
func (c *QueryCache) RemoveQueries(prefix Key) {
	c.mu.Lock()
	var removed []Key
	for id, e := range c.entries {
		if !e.key.HasPrefix(prefix) {
			continue
		}
		if e.flight != nil {
			e.flight.cancel()
		}
		delete(c.entries, id)
		removed = append(removed, e.key)
	}
	c.mu.Unlock()

	for _, k := range removed {
		c.notify(k)
	}
}

// Keys lists the keys that hold data under prefix.
func (c *QueryCache) Keys(prefix Key) []Key {
	c.mu.Lock()
	defer c.mu.Unlock()

	var keys []Key
	for _, e := range c.entries {
		if e.hasData && e.key.HasPrefix(prefix) {
			keys = append(keys, e.key)
		}
	}
	return keys
}

// State describes one entry.
type State struct {
	Data      any
	HasData   bool
	Err       error
	Stale     bool
	Fetching  bool
	UpdatedAt time.Time
}

func (c *QueryCache) State(key Key) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.String()]
	if !ok {
		return State{}
	}
	return State{
		Data:      e.data,
		HasData:   e.hasData,
		Err:       e.err,
		Stale:     e.stale,
		Fetching:  e.flight != nil,
		UpdatedAt: e.updatedAt,
	}
}

// Subscribe registers fn to be called with the key of every change. The
// returned function unsubscribes.
func (c *QueryCache) Subscribe(fn func(Key)) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.subs, id)
	}
}

func (c *QueryCache) notify(key Key) {
	c.subMu.Lock()
	fns := make([]func(Key), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()

	for _, fn := range fns {
		fn(key)
	}
}

// Wait blocks until every background refetch has finished.
func (c *QueryCache) Wait() {
	c.bg.Wait()
}

// GetQueryData returns the value cached under key if it has type T.
func GetQueryData[T any](c *QueryCache, key Key) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	e, ok := c.entries[key.String()]
	if !ok || !e.hasData {
		return zero, false
	}
	v, ok := e.data.(T)
	if !ok {
		return zero, false
	}
	return v, true
}

// SetQueryData stores value under key as fresh data. It does not cancel
// in-flight fetches; callers that must not be overwritten call
// CancelQueries first.
func SetQueryData[T any](c *QueryCache, key Key, value T) {
	UpdateQueryData(c, key, func(T, bool) T { return value })
}

// UpdateQueryData replaces the value under key with update(old, ok) while
// holding the cache lock, so concurrent updates are not lost. update must
// not call back into the cache and must not modify old in place.
func UpdateQueryData[T any](c *QueryCache, key Key, update func(old T, ok bool) T) {
	c.mu.Lock()
	e := c.entryLocked(key)
	old, ok := e.data.(T)
	ok = ok && e.hasData
	e.data = update(old, ok)
	e.hasData = true
	e.stale = false
	e.err = nil
	e.updatedAt = c.clock.Now()
	c.mu.Unlock()

	c.notify(key)
}
