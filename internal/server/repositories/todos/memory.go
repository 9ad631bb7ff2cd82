package todos

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/todokeeper/internal/common"
	"github.com/dmitrijs2005/todokeeper/internal/server/models"
	"github.com/google/uuid"
)

// MemoryRepository keeps todos in a map guarded by a RWMutex. Every read
// works on one locked snapshot, which gives CountByStatus the same
// consistency the database backends get from a single query.
type MemoryRepository struct {
	mu    sync.RWMutex
	items map[string]models.Todo
	newID func() string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		items: make(map[string]models.Todo),
		newID: uuid.NewString,
	}
}

func (r *MemoryRepository) Create(ctx context.Context, todo models.Todo) (*models.Todo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	todo.ID = r.newID()
	todo = clone(todo)
	r.items[todo.ID] = todo

	out := clone(todo)
	return &out, nil
}

func (r *MemoryRepository) FindAll(ctx context.Context, filter models.ListFilter) ([]models.Todo, error) {
	return r.selectWhere(func(t models.Todo) bool {
		if filter.Completed != nil && t.Completed != *filter.Completed {
			return false
		}
		return filter.Search == "" || matchesText(t, filter.Search)
	}), nil
}

func (r *MemoryRepository) FindByID(ctx context.Context, id string) (*models.Todo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.items[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := clone(t)
	return &out, nil
}

func (r *MemoryRepository) Update(ctx context.Context, id string, patch models.UpdateTodo, now time.Time) (*models.Todo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.items[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	t = patch.Apply(t)
	t.UpdatedAt = nextUpdatedAt(t.UpdatedAt, now)
	r.items[id] = t

	out := clone(t)
	return &out, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *MemoryRepository) Exists(ctx context.Context, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.items[id]
	return ok, nil
}

func (r *MemoryRepository) FindByStatus(ctx context.Context, completed bool) ([]models.Todo, error) {
	return r.selectWhere(func(t models.Todo) bool { return t.Completed == completed }), nil
}

func (r *MemoryRepository) FindByTags(ctx context.Context, tags []string) ([]models.Todo, error) {
	return r.selectWhere(func(t models.Todo) bool {
		for _, tag := range t.Tags {
			if slices.Contains(tags, tag) {
				return true
			}
		}
		return false
	}), nil
}

func (r *MemoryRepository) Search(ctx context.Context, text string) ([]models.Todo, error) {
	return r.selectWhere(func(t models.Todo) bool { return matchesText(t, text) }), nil
}

func (r *MemoryRepository) FindByDateRange(ctx context.Context, from, to time.Time) ([]models.Todo, error) {
	return r.selectWhere(func(t models.Todo) bool {
		return !t.CreatedAt.Before(from) && !t.CreatedAt.After(to)
	}), nil
}

func (r *MemoryRepository) CountByStatus(ctx context.Context, search string) (models.StatusCount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var c models.StatusCount
	for _, t := range r.items {
		if search != "" && !matchesText(t, search) {
			continue
		}
		c.Total++
		if t.Completed {
			c.Done++
		} else {
			c.Open++
		}
	}
	return c, nil
}

func (r *MemoryRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (r *MemoryRepository) selectWhere(keep func(models.Todo) bool) []models.Todo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]models.Todo, 0)
	for _, t := range r.items {
		if keep(t) {
			result = append(result, clone(t))
		}
	}
	slices.SortFunc(result, func(a, b models.Todo) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return result
}

func matchesText(t models.Todo, text string) bool {
	q := strings.ToLower(text)
	if strings.Contains(strings.ToLower(t.Title), q) {
		return true
	}
	return t.Description != nil && strings.Contains(strings.ToLower(*t.Description), q)
}

func clone(t models.Todo) models.Todo {
	if t.Description != nil {
		d := *t.Description
		t.Description = &d
	}
	if t.Tags != nil {
		t.Tags = append([]string{}, t.Tags...)
	}
	return t
}
