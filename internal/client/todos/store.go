// Package todos keeps the client's cached view of todos consistent with the
// server while optimistic creates, updates and deletes are in flight.
//
// Every mutation is recorded in an issue-ordered log together with a
// snapshot of each cached list taken just before its edit was applied. A
// failed mutation restores its snapshot and replays the edits issued after
// it that have not failed, so only its own change disappears. Lists and
// counts are invalidated once no mutation is left in flight.
package todos

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/todokeeper/internal/client/cache"
	"github.com/dmitrijs2005/todokeeper/internal/client/client"
	"github.com/dmitrijs2005/todokeeper/internal/client/models"
	"github.com/dmitrijs2005/todokeeper/internal/clockx"
	"github.com/dmitrijs2005/todokeeper/internal/common"
	"github.com/dmitrijs2005/todokeeper/internal/logging"
	"github.com/google/uuid"
)

// UndoWindow is how long a deleted todo can be restored with Undo.
const UndoWindow = 5 * time.Second

// ErrNotSaved is returned for edits of a placeholder the server has not
// acknowledged yet.
var ErrNotSaved = errors.New("todo is not saved yet")

type opState int

const (
	opPending opState = iota
	opSucceeded
	opFailed
)

type listSnapshot struct {
	key    cache.Key
	params client.ListParams
	items  []models.Todo
}

// op is one optimistic mutation in the log.
type op struct {
	edit     editFn
	snapshot map[string]listSnapshot
	state    opState
}

type pendingDelete struct {
	todo      models.Todo
	positions map[string]int
	timer     clockx.Timer
}

type Store struct {
	api    client.API
	cache  *cache.QueryCache
	clock  clockx.Clock
	logger logging.Logger
	newID  func() string

	mu       sync.Mutex
	lists    map[string]client.ListParams
	log      []*op
	inflight int
	pending  *pendingDelete

	subMu     sync.Mutex
	listeners map[int]func()
	nextSub   int
	unsub     func()
}

func NewStore(api client.API, c *cache.QueryCache, clock clockx.Clock, l logging.Logger) *Store {
	s := &Store{
		api:       api,
		cache:     c,
		clock:     clock,
		logger:    l.With("module", "todos_store"),
		newID:     uuid.NewString,
		lists:     make(map[string]client.ListParams),
		listeners: make(map[int]func()),
	}
	s.unsub = c.Subscribe(func(k cache.Key) {
		if k.HasPrefix(RootKey) || k.HasPrefix(detailRoot) {
			s.notify()
		}
	})
	return s
}

// Subscribe registers fn to run after any change to cached todos or to the
// pending delete. fn runs synchronously on the goroutine that made the
// change and must neither block nor call back into the Store.
func (s *Store) Subscribe(fn func()) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) notify() {
	s.subMu.Lock()
	fns := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// List returns the todos for p sorted by title. While mutations are in
// flight cached data is served as is so no response can overwrite an
// optimistic edit.
func (s *Store) List(ctx context.Context, p client.ListParams) ([]models.Todo, error) {
	p = p.Normalize()
	key := ListKey(p)

	s.mu.Lock()
	s.lists[key.String()] = p
	busy := s.inflight > 0
	s.mu.Unlock()

	if busy {
		if items, ok := cache.GetQueryData[[]models.Todo](s.cache, key); ok {
			return SortByTitle(items), nil
		}
	}

	fetch := func(ctx context.Context) (any, error) {
		return s.api.List(ctx, p)
	}
	v, err := s.cache.Query(ctx, key, fetch)
	if errors.Is(err, cache.ErrCancelled) {
		if items, ok := cache.GetQueryData[[]models.Todo](s.cache, key); ok {
			return SortByTitle(items), nil
		}
		// a mutation cancelled the first load before anything was cached
		v, err = s.cache.Query(ctx, key, fetch)
	}
	if err != nil {
		return nil, err
	}
	return SortByTitle(v.([]models.Todo)), nil
}

// Cached returns the cached list for p without fetching.
func (s *Store) Cached(p client.ListParams) ([]models.Todo, bool) {
	items, ok := cache.GetQueryData[[]models.Todo](s.cache, ListKey(p.Normalize()))
	if !ok {
		return nil, false
	}
	return SortByTitle(items), true
}

func (s *Store) Count(ctx context.Context, p client.CountParams) (models.StatusCount, error) {
	p = p.Normalize()
	v, err := s.cache.Query(ctx, CountKey(p), func(ctx context.Context) (any, error) {
		return s.api.Count(ctx, p)
	})
	if errors.Is(err, cache.ErrCancelled) {
		if c, ok := cache.GetQueryData[models.StatusCount](s.cache, CountKey(p)); ok {
			return c, nil
		}
	}
	if err != nil {
		return models.StatusCount{}, err
	}
	return v.(models.StatusCount), nil
}

func (s *Store) Detail(ctx context.Context, id string) (models.Todo, error) {
	v, err := s.cache.Query(ctx, DetailKey(id), func(ctx context.Context) (any, error) {
		t, err := s.api.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return *t, nil
	})
	if err != nil {
		return models.Todo{}, err
	}
	return v.(models.Todo), nil
}

// Refresh invalidates every list and count and waits for the refetch.
func (s *Store) Refresh(ctx context.Context) {
	s.cache.InvalidateQueries(RootKey)
	s.cache.Wait()
}

// Find looks id up in the cached lists.
func (s *Store) Find(id string) (models.Todo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, _, ok := s.findLocked(id)
	return t, ok
}

func (s *Store) findLocked(id string) (models.Todo, map[string]int, bool) {
	var found models.Todo
	positions := map[string]int{}
	for keyStr := range s.lists {
		items, ok := cache.GetQueryData[[]models.Todo](s.cache, s.listKey(keyStr))
		if !ok {
			continue
		}
		for i, t := range items {
			if t.ID == id {
				found = t
				positions[keyStr] = i
				break
			}
		}
	}
	return found, positions, len(positions) > 0
}

func (s *Store) listKey(keyStr string) cache.Key {
	return ListKey(s.lists[keyStr])
}

// Create prepends a placeholder with a temp- id to every matching list,
// then swaps it for the server record on success.
func (s *Store) Create(ctx context.Context, in models.CreateTodo) (*models.Todo, error) {
	now := s.clock.Now().UTC()
	placeholder := models.Todo{
		ID:          common.TempIDPrefix + s.newID(),
		Title:       in.Title,
		Description: in.Description,
		Tags:        append([]string(nil), in.Tags...),
		Completed:   in.Completed != nil && *in.Completed,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	return cache.Mutate(ctx, cache.Mutation[models.CreateTodo, *models.Todo, *op]{
		OnMutate:   func(models.CreateTodo) *op { return s.begin(prependEdit(placeholder)) },
		MutationFn: s.api.Create,
		OnSuccess: func(created *models.Todo, _ models.CreateTodo, o *op) {
			s.confirmCreate(o, placeholder.ID, *created)
		},
		OnError: func(err error, _ models.CreateTodo, o *op) {
			s.logger.Warn(ctx, "create failed, rolling back", "error", err)
			s.rollback(o)
		},
		OnSettled: func(_ *models.Todo, _ error, _ models.CreateTodo, o *op) { s.settle(o) },
	}, in)
}

type updateVars struct {
	id    string
	patch models.UpdateTodo
}

// Update merges patch into the cached record and bumps its updatedAt.
func (s *Store) Update(ctx context.Context, id string, patch models.UpdateTodo) (*models.Todo, error) {
	if isTemp(id) {
		return nil, ErrNotSaved
	}
	now := s.clock.Now().UTC()

	return cache.Mutate(ctx, cache.Mutation[updateVars, *models.Todo, *op]{
		OnMutate: func(v updateVars) *op { return s.begin(patchEdit(v.id, v.patch, now)) },
		MutationFn: func(ctx context.Context, v updateVars) (*models.Todo, error) {
			return s.api.Update(ctx, v.id, v.patch)
		},
		OnSuccess: func(updated *models.Todo, v updateVars, _ *op) {
			cache.SetQueryData(s.cache, DetailKey(v.id), *updated)
		},
		OnError: func(err error, v updateVars, o *op) {
			s.logger.Warn(ctx, "update failed, rolling back", "id", v.id, "error", err)
			s.rollback(o)
		},
		OnSettled: func(_ *models.Todo, _ error, _ updateVars, o *op) { s.settle(o) },
	}, updateVars{id: id, patch: patch})
}

// Toggle flips the completed flag of a cached todo.
func (s *Store) Toggle(ctx context.Context, id string) (*models.Todo, error) {
	t, ok := s.Find(id)
	if !ok {
		return nil, client.ErrNotFound
	}
	done := !t.Completed
	return s.Update(ctx, id, models.UpdateTodo{Completed: &done})
}

// Delete removes the record from every cached list before asking the
// server.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.delete(ctx, id, false)
}

// DeleteWithUndo deletes like Delete and additionally keeps the removed
// record for UndoWindow so Undo can put it back into the cache.
func (s *Store) DeleteWithUndo(ctx context.Context, id string) error {
	return s.delete(ctx, id, true)
}

func (s *Store) delete(ctx context.Context, id string, undoable bool) error {
	if isTemp(id) {
		return ErrNotSaved
	}

	type deleteCtx struct {
		op      *op
		pending *pendingDelete
	}

	_, err := cache.Mutate(ctx, cache.Mutation[string, struct{}, deleteCtx]{
		OnMutate: func(id string) deleteCtx {
			var p *pendingDelete
			if undoable {
				p = s.hold(id)
			}
			return deleteCtx{op: s.begin(removeEdit(id)), pending: p}
		},
		MutationFn: func(ctx context.Context, id string) (struct{}, error) {
			return struct{}{}, s.api.Delete(ctx, id)
		},
		OnSuccess: func(_ struct{}, id string, _ deleteCtx) {
			s.cache.RemoveQueries(DetailKey(id))
		},
		OnError: func(err error, id string, d deleteCtx) {
			s.logger.Warn(ctx, "delete failed, rolling back", "id", id, "error", err)
			s.rollback(d.op)
			if d.pending != nil {
				s.dropPending(d.pending)
			}
		},
		OnSettled: func(_ struct{}, _ error, _ string, d deleteCtx) { s.settle(d.op) },
	}, id)
	return err
}

// begin cancels list and count fetches, snapshots every cached list,
// applies edit to them and appends the op to the log.
func (s *Store) begin(edit editFn) *op {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.CancelQueries(RootKey)

	o := &op{edit: edit, snapshot: make(map[string]listSnapshot)}
	for keyStr, p := range s.lists {
		key := ListKey(p)
		items, ok := cache.GetQueryData[[]models.Todo](s.cache, key)
		if !ok {
			continue
		}
		o.snapshot[keyStr] = listSnapshot{key: key, params: p, items: items}
		cache.SetQueryData(s.cache, key, edit(p, items))
	}

	s.log = append(s.log, o)
	s.inflight++
	return o
}

// confirmCreate swaps the placeholder for the server record in the cache
// and in the snapshots of later ops, and makes replays insert the record.
func (s *Store) confirmCreate(o *op, tempID string, created models.Todo) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o.state = opSucceeded
	o.edit = prependEdit(created)

	for keyStr, p := range s.lists {
		key := ListKey(p)
		cache.UpdateQueryData(s.cache, key, func(items []models.Todo, ok bool) []models.Todo {
			if !ok {
				return items
			}
			return replaceByID(items, tempID, created)
		})
		for _, later := range s.after(o) {
			if snap, ok := later.snapshot[keyStr]; ok {
				snap.items = replaceByID(snap.items, tempID, created)
				later.snapshot[keyStr] = snap
			}
		}
	}
}

// rollback restores o's snapshots and replays the surviving ops issued
// after it, rebuilding their snapshots on the way.
func (s *Store) rollback(o *op) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o.state = opFailed
	later := s.after(o)

	for keyStr, snap := range o.snapshot {
		base := snap.items
		for _, l := range later {
			if l.state == opFailed {
				continue
			}
			l.snapshot[keyStr] = listSnapshot{key: snap.key, params: snap.params, items: base}
			base = l.edit(snap.params, base)
		}
		cache.SetQueryData(s.cache, snap.key, base)
	}
}

// settle retires o and, once nothing is in flight, invalidates lists and
// counts so the server state wins again.
func (s *Store) settle(o *op) {
	s.mu.Lock()
	if o.state == opPending {
		o.state = opSucceeded
	}
	s.inflight--
	for len(s.log) > 0 && s.log[0].state != opPending {
		s.log = s.log[1:]
	}
	idle := s.inflight == 0
	s.mu.Unlock()

	if idle {
		s.cache.InvalidateQueries(RootKey)
	}
}

func (s *Store) after(o *op) []*op {
	for i, x := range s.log {
		if x == o {
			return s.log[i+1:]
		}
	}
	return nil
}

// hold records the todo being deleted as the pending delete, replacing any
// earlier one.
func (s *Store) hold(id string) *pendingDelete {
	s.mu.Lock()
	t, positions, ok := s.findLocked(id)
	if !ok {
		s.mu.Unlock()
		return nil
	}
	if s.pending != nil {
		s.pending.timer.Stop()
	}
	p := &pendingDelete{todo: t, positions: positions}
	p.timer = s.clock.AfterFunc(UndoWindow, func() { s.dropPending(p) })
	s.pending = p
	s.mu.Unlock()

	s.notify()
	return p
}

func (s *Store) dropPending(p *pendingDelete) {
	s.mu.Lock()
	if s.pending != p {
		s.mu.Unlock()
		return
	}
	p.timer.Stop()
	s.pending = nil
	s.mu.Unlock()

	s.notify()
}

// PendingDelete returns the todo that Undo would restore.
func (s *Store) PendingDelete() (models.Todo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return models.Todo{}, false
	}
	return s.pending.todo, true
}

// Undo puts the pending deleted todo back into the lists it was removed
// from, at its old position, without contacting the server. It reports
// false when there is nothing to undo.
func (s *Store) Undo() bool {
	s.mu.Lock()
	p := s.pending
	if p == nil {
		s.mu.Unlock()
		return false
	}
	p.timer.Stop()
	s.pending = nil

	for keyStr, i := range p.positions {
		if _, ok := s.lists[keyStr]; !ok {
			continue
		}
		cache.UpdateQueryData(s.cache, s.listKey(keyStr), func(items []models.Todo, ok bool) []models.Todo {
			if !ok {
				return items
			}
			return insertAt(items, i, p.todo)
		})
	}
	s.mu.Unlock()

	s.notify()
	return true
}

// Close stops the undo timer and detaches from the cache.
func (s *Store) Close() {
	s.mu.Lock()
	if s.pending != nil {
		s.pending.timer.Stop()
		s.pending = nil
	}
	s.mu.Unlock()
	s.unsub()
}

// Inflight reports how many mutations are awaiting the server.
func (s *Store) Inflight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight
}

func isTemp(id string) bool {
	return models.Todo{ID: id}.IsTemp()
}
