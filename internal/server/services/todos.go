package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/todokeeper/internal/clockx"
	"github.com/dmitrijs2005/todokeeper/internal/common"
	"github.com/dmitrijs2005/todokeeper/internal/logging"
	"github.com/dmitrijs2005/todokeeper/internal/server/models"
	"github.com/dmitrijs2005/todokeeper/internal/server/repositories/todos"
)

// TodoService holds the business rules around todo records: input
// normalization, validation, timestamps and error classification.
type TodoService struct {
	repo  todos.Repository
	clock clockx.Clock
	log   logging.Logger
}

func NewTodoService(repo todos.Repository, clock clockx.Clock, log logging.Logger) *TodoService {
	return &TodoService{repo: repo, clock: clock, log: log.With("module", "services.todos")}
}

// now is truncated to milliseconds, the resolution of every backend.
func (s *TodoService) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Millisecond)
}

func (s *TodoService) Create(ctx context.Context, in models.CreateTodo) (*models.Todo, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	todo := models.Todo{
		Title:       in.Title,
		Description: in.Description,
		Tags:        in.Tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.Completed != nil {
		todo.Completed = *in.Completed
	}

	created, err := s.repo.Create(ctx, todo)
	if err != nil {
		return nil, s.internal(ctx, "create", err)
	}
	return created, nil
}

func (s *TodoService) List(ctx context.Context, filter models.ListFilter) ([]models.Todo, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	items, err := s.repo.FindAll(ctx, filter)
	if err != nil {
		return nil, s.internal(ctx, "list", err)
	}
	return items, nil
}

func (s *TodoService) Get(ctx context.Context, id string) (*models.Todo, error) {
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.classify(ctx, "get", id, err)
	}
	return t, nil
}

// Update applies a partial patch. An empty patch changes nothing, not even
// updatedAt, and returns the current record.
func (s *TodoService) Update(ctx context.Context, id string, patch models.UpdateTodo) (*models.Todo, error) {
	patch.Normalize()
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return s.Get(ctx, id)
	}

	t, err := s.repo.Update(ctx, id, patch, s.now())
	if err != nil {
		return nil, s.classify(ctx, "update", id, err)
	}
	return t, nil
}

func (s *TodoService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.classify(ctx, "delete", id, err)
	}
	return nil
}

func (s *TodoService) Exists(ctx context.Context, id string) (bool, error) {
	ok, err := s.repo.Exists(ctx, id)
	if err != nil {
		return false, s.internal(ctx, "exists", err)
	}
	return ok, nil
}

func (s *TodoService) FindByStatus(ctx context.Context, completed bool) ([]models.Todo, error) {
	items, err := s.repo.FindByStatus(ctx, completed)
	if err != nil {
		return nil, s.internal(ctx, "find by status", err)
	}
	return items, nil
}

// FindByTags returns records carrying any of tags. Blank tags are ignored;
// no usable tag yields an empty result without touching the store.
func (s *TodoService) FindByTags(ctx context.Context, tags []string) ([]models.Todo, error) {
	tags = models.NormalizeTags(tags)
	if len(tags) == 0 {
		return []models.Todo{}, nil
	}
	items, err := s.repo.FindByTags(ctx, tags)
	if err != nil {
		return nil, s.internal(ctx, "find by tags", err)
	}
	return items, nil
}

// Search with blank text yields an empty result.
func (s *TodoService) Search(ctx context.Context, text string) ([]models.Todo, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return []models.Todo{}, nil
	}
	items, err := s.repo.Search(ctx, text)
	if err != nil {
		return nil, s.internal(ctx, "search", err)
	}
	return items, nil
}

func (s *TodoService) FindByDateRange(ctx context.Context, from, to time.Time) ([]models.Todo, error) {
	if from.After(to) {
		return nil, fmt.Errorf("%w: from must not be after to", common.ErrorValidation)
	}
	items, err := s.repo.FindByDateRange(ctx, from, to)
	if err != nil {
		return nil, s.internal(ctx, "find by date range", err)
	}
	return items, nil
}

func (s *TodoService) CountByStatus(ctx context.Context, search string) (models.StatusCount, error) {
	c, err := s.repo.CountByStatus(ctx, strings.TrimSpace(search))
	if err != nil {
		return models.StatusCount{}, s.internal(ctx, "count", err)
	}
	return c, nil
}

// Ping reports whether the store is reachable.
func (s *TodoService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// classify keeps not-found distinct from other failures.
func (s *TodoService) classify(ctx context.Context, op, id string, err error) error {
	if errors.Is(err, common.ErrorNotFound) {
		return NotFound(id)
	}
	return s.internal(ctx, op, err)
}

func (s *TodoService) internal(ctx context.Context, op string, err error) error {
	s.log.Error(ctx, "repository failure", "op", op, "error", err)
	return fmt.Errorf("%w: %s: %v", common.ErrorInternal, op, err)
}

// NotFound builds the error reported for a missing id.
func NotFound(id string) error {
	return fmt.Errorf("%w: Todo with ID %q not found", common.ErrorNotFound, id)
}
