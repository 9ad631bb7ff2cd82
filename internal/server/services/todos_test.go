package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/todokeeper/internal/clockx"
	"github.com/dmitrijs2005/todokeeper/internal/common"
	"github.com/dmitrijs2005/todokeeper/internal/logging"
	"github.com/dmitrijs2005/todokeeper/internal/server/models"
	"github.com/dmitrijs2005/todokeeper/internal/server/repositories/todos"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 4, 1, 12, 0, 0, 123456789, time.UTC)

func newTodoService(t *testing.T) (*TodoService, *clockx.Fake) {
	t.Helper()
	clock := clockx.NewFake(epoch)
	return NewTodoService(todos.NewMemoryRepository(), clock, logging.Nop()), clock
}

// failingRepo fails every call with err.
type failingRepo struct {
	todos.Repository
	err error
}

func (f failingRepo) Create(context.Context, models.Todo) (*models.Todo, error) { return nil, f.err }
func (f failingRepo) FindAll(context.Context, models.ListFilter) ([]models.Todo, error) {
	return nil, f.err
}
func (f failingRepo) FindByID(context.Context, string) (*models.Todo, error) { return nil, f.err }
func (f failingRepo) Update(context.Context, string, models.UpdateTodo, time.Time) (*models.Todo, error) {
	return nil, f.err
}
func (f failingRepo) Delete(context.Context, string) error { return f.err }
func (f failingRepo) Exists(context.Context, string) (bool, error) { return false, f.err }
func (f failingRepo) FindByTags(context.Context, []string) ([]models.Todo, error) {
	return nil, f.err
}
func (f failingRepo) CountByStatus(context.Context, string) (models.StatusCount, error) {
	return models.StatusCount{}, f.err
}

func strp(s string) *string { return &s }
func boolp(b bool) *bool { return &b }

func TestCreate(t *testing.T) {
	svc, _ := newTodoService(t)
	ctx := context.Background()

	got, err := svc.Create(ctx, models.CreateTodo{Title: "  Buy milk ", Tags: []string{" home", "", "home", "shop"}})
	require.NoError(t, err)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "Buy milk", got.Title)
	assert.Equal(t, []string{"home", "shop"}, got.Tags)
	assert.False(t, got.Completed)
	assert.Equal(t, epoch.Truncate(time.Millisecond), got.CreatedAt)
	assert.Equal(t, got.CreatedAt, got.UpdatedAt)

	got, err = svc.Create(ctx, models.CreateTodo{Title: "Done already", Completed: boolp(true)})
	require.NoError(t, err)
	assert.True(t, got.Completed)
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newTodoService(t)

	_, err := svc.Create(context.Background(), models.CreateTodo{Title: "   "})
	assert.ErrorIs(t, err, common.ErrorValidation)

	all, _ := svc.List(context.Background(), models.ListFilter{})
	assert.Empty(t, all, "nothing persisted")
}

func TestGet_NotFoundMessage(t *testing.T) {
	svc, _ := newTodoService(t)

	_, err := svc.Get(context.Background(), "abc")
	require.ErrorIs(t, err, common.ErrorNotFound)
	assert.Contains(t, err.Error(), `Todo with ID "abc" not found`)
}

func TestUpdate(t *testing.T) {
	svc, clock := newTodoService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, models.CreateTodo{Title: "Buy milk", Description: strp("2 litres")})
	require.NoError(t, err)

	clock.Advance(time.Minute)
	got, err := svc.Update(ctx, created.ID, models.UpdateTodo{Completed: boolp(true)})
	require.NoError(t, err)
	assert.True(t, got.Completed)
	assert.Equal(t, "Buy milk", got.Title)
	assert.Equal(t, "2 litres", *got.Description)
	assert.Equal(t, created.CreatedAt, got.CreatedAt)
	assert.True(t, got.UpdatedAt.After(created.UpdatedAt))
}

func TestUpdate_SameInstantStillAdvances(t *testing.T) {
	svc, _ := newTodoService(t)
	ctx := context.Background()

	created, _ := svc.Create(ctx, models.CreateTodo{Title: "x"})
	first, err := svc.Update(ctx, created.ID, models.UpdateTodo{Title: strp("y")})
	require.NoError(t, err)
	second, err := svc.Update(ctx, created.ID, models.UpdateTodo{Title: strp("z")})
	require.NoError(t, err)

	assert.True(t, first.UpdatedAt.After(created.UpdatedAt))
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
}

func TestUpdate_EmptyPatchIsNoop(t *testing.T) {
	svc, clock := newTodoService(t)
	ctx := context.Background()

	created, _ := svc.Create(ctx, models.CreateTodo{Title: "x"})
	clock.Advance(time.Hour)

	got, err := svc.Update(ctx, created.ID, models.UpdateTodo{})
	require.NoError(t, err)
	assert.Equal(t, created.UpdatedAt, got.UpdatedAt)

	_, err = svc.Update(ctx, "missing", models.UpdateTodo{})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUpdate_Errors(t *testing.T) {
	svc, _ := newTodoService(t)
	ctx := context.Background()

	created, _ := svc.Create(ctx, models.CreateTodo{Title: "x"})

	_, err := svc.Update(ctx, created.ID, models.UpdateTodo{Title: strp(" ")})
	assert.ErrorIs(t, err, common.ErrorValidation)

	_, err = svc.Update(ctx, "missing", models.UpdateTodo{Title: strp("y")})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestDelete(t *testing.T) {
	svc, _ := newTodoService(t)
	ctx := context.Background()

	created, _ := svc.Create(ctx, models.CreateTodo{Title: "x"})
	require.NoError(t, svc.Delete(ctx, created.ID))

	err := svc.Delete(ctx, created.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	assert.NotErrorIs(t, err, common.ErrorInternal)

	ok, err := svc.Exists(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQueries(t *testing.T) {
	svc, clock := newTodoService(t)
	ctx := context.Background()

	a, _ := svc.Create(ctx, models.CreateTodo{Title: "Buy milk", Tags: []string{"home"}})
	clock.Advance(time.Hour)
	b, _ := svc.Create(ctx, models.CreateTodo{Title: "Write report", Tags: []string{"work"}, Completed: boolp(true)})

	got, err := svc.FindByTags(ctx, []string{" work ", ""})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, b.ID, got[0].ID)

	got, err = svc.FindByTags(ctx, []string{" "})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	got, err = svc.Search(ctx, "  ")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, _ = svc.Search(ctx, "MILK")
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].ID)

	got, _ = svc.FindByStatus(ctx, false)
	require.Len(t, got, 1)

	got, err = svc.FindByDateRange(ctx, a.CreatedAt, a.CreatedAt)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].ID)

	_, err = svc.FindByDateRange(ctx, b.CreatedAt, a.CreatedAt)
	assert.ErrorIs(t, err, common.ErrorValidation)

	c, err := svc.CountByStatus(ctx, " ")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCount{Total: 2, Done: 1, Open: 1}, c)

	list, _ := svc.List(ctx, models.ListFilter{Completed: boolp(true), Search: " report "})
	require.Len(t, list, 1)
}

func TestRepositoryFailuresAreInternal(t *testing.T) {
	svc := NewTodoService(failingRepo{err: errors.New("connection reset")}, clockx.Real(), logging.Nop())
	ctx := context.Background()

	_, err := svc.Create(ctx, models.CreateTodo{Title: "x"})
	assert.ErrorIs(t, err, common.ErrorInternal)

	_, err = svc.List(ctx, models.ListFilter{})
	assert.ErrorIs(t, err, common.ErrorInternal)

	_, err = svc.Get(ctx, "id")
	assert.ErrorIs(t, err, common.ErrorInternal)

	_, err = svc.Update(ctx, "id", models.UpdateTodo{Completed: boolp(true)})
	assert.ErrorIs(t, err, common.ErrorInternal)

	assert.ErrorIs(t, svc.Delete(ctx, "id"), common.ErrorInternal)

	_, err = svc.Exists(ctx, "id")
	assert.ErrorIs(t, err, common.ErrorInternal)

	_, err = svc.FindByTags(ctx, []string{"a"})
	assert.ErrorIs(t, err, common.ErrorInternal)

	_, err = svc.CountByStatus(ctx, "")
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestNotFoundFromRepositoryKeepsKind(t *testing.T) {
	svc := NewTodoService(failingRepo{err: common.ErrorNotFound}, clockx.Real(), logging.Nop())

	err := svc.Delete(context.Background(), "x")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	assert.Equal(t, NotFound("x").Error(), err.Error())
}
