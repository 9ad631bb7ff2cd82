package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/todokeeper/internal/clockx"
	"github.com/dmitrijs2005/todokeeper/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func newCache(staleTime time.Duration) (*QueryCache, *clockx.Fake) {
	clock := clockx.NewFake(epoch)
	return New(clock, staleTime, logging.Nop()), clock
}

func counter(n *atomic.Int32, value any) QueryFn {
	return func(context.Context) (any, error) {
		n.Add(1)
		return value, nil
	}
}

func TestKey(t *testing.T) {
	k := Key{"todos", "list", "search=x"}
	assert.Equal(t, "todos/list/search=x", k.String())
	assert.True(t, k.HasPrefix(Key{"todos"}))
	assert.True(t, k.HasPrefix(Key{}))
	assert.True(t, k.HasPrefix(k))
	assert.False(t, k.HasPrefix(Key{"todo"}))
	assert.False(t, Key{"todos"}.HasPrefix(k))

	base := Key{"todos"}
	a := base.Append("list")
	b := base.Append("count")
	assert.Equal(t, Key{"todos", "list"}, a)
	assert.Equal(t, Key{"todos", "count"}, b)
}

func TestQuery_ServesFreshData(t *testing.T) {
	c, clock := newCache(time.Minute)
	var calls atomic.Int32
	key := Key{"todos", "list"}

	v, err := c.Query(context.Background(), key, counter(&calls, "a"))
	require.NoError(t, err)
	assert.Equal(t, "a", v)

	v, err = c.Query(context.Background(), key, counter(&calls, "b"))
	require.NoError(t, err)
	assert.Equal(t, "a", v, "fresh data is served from the cache")
	assert.EqualValues(t, 1, calls.Load())

	clock.Advance(time.Minute)
	v, err = c.Query(context.Background(), key, counter(&calls, "b"))
	require.NoError(t, err)
	assert.Equal(t, "b", v, "stale data is refetched")
	assert.EqualValues(t, 2, calls.Load())
}

func TestQuery_ZeroStaleTimeKeepsDataUntilInvalidated(t *testing.T) {
	c, clock := newCache(0)
	var calls atomic.Int32
	key := Key{"todos"}

	_, err := c.Query(context.Background(), key, counter(&calls, 1))
	require.NoError(t, err)
	clock.Advance(24 * time.Hour)
	_, err = c.Query(context.Background(), key, counter(&calls, 1))
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls.Load())

	c.MarkStale(Key{"todos"})
	assert.True(t, c.State(key).Stale)
	_, err = c.Query(context.Background(), key, counter(&calls, 2))
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
	assert.False(t, c.State(key).Stale)
}

func TestFetch_ErrorKeepsPreviousData(t *testing.T) {
	c, _ := newCache(0)
	key := Key{"todos"}
	SetQueryData(c, key, []string{"kept"})

	boom := errors.New("boom")
	_, err := c.Fetch(context.Background(), key, func(context.Context) (any, error) { return nil, boom })
	require.ErrorIs(t, err, boom)

	got, ok := GetQueryData[[]string](c, key)
	require.True(t, ok)
	assert.Equal(t, []string{"kept"}, got)
	assert.ErrorIs(t, c.State(key).Err, boom)
}

func TestCancelQueries_DiscardsLateResult(t *testing.T) {
	c, _ := newCache(0)
	key := Key{"todos", "list"}
	SetQueryData(c, key, "optimistic")

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := c.Fetch(context.Background(), key, func(ctx context.Context) (any, error) {
			close(started)
			<-release
			return "stale server data", nil
		})
		done <- err
	}()

	<-started
	assert.True(t, c.State(key).Fetching)
	c.CancelQueries(Key{"todos"})
	SetQueryData(c, key, "newer optimistic")
	close(release)

	require.ErrorIs(t, <-done, ErrCancelled)
	got, _ := GetQueryData[string](c, key)
	assert.Equal(t, "newer optimistic", got)
	assert.False(t, c.State(key).Fetching)
}

func TestCancelQueries_CancelsContext(t *testing.T) {
	c, _ := newCache(0)
	key := Key{"todos"}

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := c.Fetch(context.Background(), key, func(ctx context.Context) (any, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		})
		done <- err
	}()

	<-started
	c.CancelQueries(key)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrCancelled)
	case <-time.After(2 * time.Second):
		t.Fatal("fetch was not cancelled")
	}
}

func TestFetch_NewerFetchSupersedesOlder(t *testing.T) {
	c, _ := newCache(0)
	key := Key{"todos"}

	release := make(chan struct{})
	started := make(chan struct{})
	first := make(chan error, 1)
	go func() {
		_, err := c.Fetch(context.Background(), key, func(ctx context.Context) (any, error) {
			close(started)
			<-release
			return "old", nil
		})
		first <- err
	}()
	<-started

	v, err := c.Fetch(context.Background(), key, func(context.Context) (any, error) { return "new", nil })
	require.NoError(t, err)
	assert.Equal(t, "new", v)

	close(release)
	assert.ErrorIs(t, <-first, ErrCancelled)
	got, _ := GetQueryData[string](c, key)
	assert.Equal(t, "new", got)
}

func TestQuery_ConcurrentCallersShareFetch(t *testing.T) {
	c, _ := newCache(0)
	key := Key{"todos", "list"}

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	slow := func(context.Context) (any, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return "shared", nil
	}

	type result struct {
		v   any
		err error
	}
	results := make(chan result, 2)
	query := func() {
		v, err := c.Query(context.Background(), key, slow)
		results <- result{v, err}
	}

	go query()
	<-started
	go query()
	close(release)

	for range 2 {
		r := <-results
		require.NoError(t, r.err)
		assert.Equal(t, "shared", r.v)
	}
	assert.EqualValues(t, 1, calls.Load())
}

func TestQuery_FollowsSupersedingFetch(t *testing.T) {
	c, _ := newCache(0)
	key := Key{"todos"}

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	var got any
	go func() {
		v, err := c.Query(context.Background(), key, func(context.Context) (any, error) {
			close(started)
			<-release
			return "old", nil
		})
		got = v
		done <- err
	}()
	<-started

	_, err := c.Fetch(context.Background(), key, func(context.Context) (any, error) { return "new", nil })
	require.NoError(t, err)
	close(release)

	require.NoError(t, <-done)
	assert.Equal(t, "new", got)
}

func TestInvalidateQueries_RefetchesActiveEntries(t *testing.T) {
	c, _ := newCache(0)
	var lists, counts atomic.Int32

	_, err := c.Query(context.Background(), Key{"todos", "list"}, counter(&lists, "l"))
	require.NoError(t, err)
	_, err = c.Query(context.Background(), Key{"todos", "count"}, counter(&counts, "c"))
	require.NoError(t, err)
	SetQueryData(c, Key{"todos", "passive"}, "p")
	SetQueryData(c, Key{"todo", "1"}, "other")

	c.InvalidateQueries(Key{"todos"})
	c.Wait()

	assert.EqualValues(t, 2, lists.Load())
	assert.EqualValues(t, 2, counts.Load())
	assert.False(t, c.State(Key{"todos", "list"}).Stale)
	assert.True(t, c.State(Key{"todos", "passive"}).Stale, "entries without a loader stay stale")
	assert.False(t, c.State(Key{"todo", "1"}).Stale)
}

func TestSubscribe(t *testing.T) {
	c, _ := newCache(0)

	var mu sync.Mutex
	var seen []string
	unsubscribe := c.Subscribe(func(k Key) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, k.String())
	})

	SetQueryData(c, Key{"todos", "list"}, 1)
	_, err := c.Fetch(context.Background(), Key{"todos", "count"}, func(context.Context) (any, error) { return 2, nil })
	require.NoError(t, err)
	c.RemoveQueries(Key{"todos", "list"})

	unsubscribe()
	SetQueryData(c, Key{"todos", "list"}, 3)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"todos/list", "todos/count", "todos/list"}, seen)
}

func TestQueryData_Generics(t *testing.T) {
	c, clock := newCache(0)
	key := Key{"todo", "1"}

	_, ok := GetQueryData[int](c, key)
	assert.False(t, ok)

	SetQueryData(c, key, 41)
	_, ok = GetQueryData[string](c, key)
	assert.False(t, ok, "wrong type")

	clock.Advance(time.Second)
	UpdateQueryData(c, key, func(old int, ok bool) int {
		require.True(t, ok)
		return old + 1
	})
	got, ok := GetQueryData[int](c, key)
	require.True(t, ok)
	assert.Equal(t, 42, got)
	assert.Equal(t, epoch.Add(time.Second), c.State(key).UpdatedAt)

	UpdateQueryData(c, Key{"new"}, func(old int, ok bool) int {
		assert.False(t, ok)
		return 7
	})
	got, _ = GetQueryData[int](c, Key{"new"})
	assert.Equal(t, 7, got)
}

func TestKeysAndRemove(t *testing.T) {
	c, _ := newCache(0)
	SetQueryData(c, Key{"todos", "list", "a"}, 1)
	SetQueryData(c, Key{"todos", "list", "b"}, 2)
	SetQueryData(c, Key{"todos", "count"}, 3)

	assert.Len(t, c.Keys(Key{"todos", "list"}), 2)
	c.RemoveQueries(Key{"todos", "list"})
	assert.Empty(t, c.Keys(Key{"todos", "list"}))
	assert.Len(t, c.Keys(Key{"todos"}), 1)
	assert.Equal(t, State{}, c.State(Key{"todos", "list", "a"}))
}
