package todos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/todokeeper/internal/common"
	"github.com/dmitrijs2005/todokeeper/internal/dbx"
	"github.com/dmitrijs2005/todokeeper/internal/server/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const selectTodos = `SELECT id, title, description, tags, completed, created_at, updated_at FROM todos`

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx)
// opened with the pgx stdlib driver. Tags are stored as text[].
type PostgresRepository struct {
	db    dbx.DBTX
	types *pgtype.Map
	newID func() string
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db, types: pgtype.NewMap(), newID: uuid.NewString}
}

func (r *PostgresRepository) Create(ctx context.Context, todo models.Todo) (*models.Todo, error) {
	query := `INSERT INTO todos (id, title, description, tags, completed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	todo.ID = r.newID()
	_, err := r.db.ExecContext(ctx, query,
		todo.ID, todo.Title, todo.Description, todo.Tags, todo.Completed, todo.CreatedAt, todo.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &todo, nil
}

func (r *PostgresRepository) FindAll(ctx context.Context, filter models.ListFilter) ([]models.Todo, error) {
	var conds []string
	var args []any

	if filter.Completed != nil {
		args = append(args, *filter.Completed)
		conds = append(conds, fmt.Sprintf("completed = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, likePattern(filter.Search))
		conds = append(conds, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}

	query := selectTodos
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	return r.selectMany(ctx, query+" ORDER BY created_at, id", args...)
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.Todo, error) {
	row := r.db.QueryRowContext(ctx, selectTodos+` WHERE id = $1`, id)
	t, err := r.scan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select todo: %w", err)
	}
	return t, nil
}

func (r *PostgresRepository) Update(ctx context.Context, id string, patch models.UpdateTodo, now time.Time) (*models.Todo, error) {
	args := []any{id}
	var sets []string

	set := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Title != nil {
		set("title", *patch.Title)
	}
	if patch.Description != nil {
		set("description", *patch.Description)
	}
	if patch.Tags != nil {
		set("tags", *patch.Tags)
	}
	if patch.Completed != nil {
		set("completed", *patch.Completed)
	}
	args = append(args, now)
	sets = append(sets, fmt.Sprintf("updated_at = GREATEST($%d, updated_at + interval '1 millisecond')", len(args)))

	query := `UPDATE todos SET ` + strings.Join(sets, ", ") +
		` WHERE id = $1 RETURNING id, title, description, tags, completed, created_at, updated_at`

	t, err := r.scan(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to update todo: %w", err)
	}
	return t, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM todos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

func (r *PostgresRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM todos WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) FindByStatus(ctx context.Context, completed bool) ([]models.Todo, error) {
	return r.selectMany(ctx, selectTodos+` WHERE completed = $1 ORDER BY created_at, id`, completed)
}

func (r *PostgresRepository) FindByTags(ctx context.Context, tags []string) ([]models.Todo, error) {
	return r.selectMany(ctx, selectTodos+` WHERE tags && $1 ORDER BY created_at, id`, tags)
}

func (r *PostgresRepository) Search(ctx context.Context, text string) ([]models.Todo, error) {
	return r.selectMany(ctx, selectTodos+` WHERE (title ILIKE $1 OR description ILIKE $1) ORDER BY created_at, id`,
		likePattern(text))
}

func (r *PostgresRepository) FindByDateRange(ctx context.Context, from, to time.Time) ([]models.Todo, error) {
	return r.selectMany(ctx, selectTodos+` WHERE created_at BETWEEN $1 AND $2 ORDER BY created_at, id`, from, to)
}

// CountByStatus uses conditional aggregation so the three numbers come
// from the same snapshot.
func (r *PostgresRepository) CountByStatus(ctx context.Context, search string) (models.StatusCount, error) {
	query := `SELECT COUNT(*),
		COUNT(*) FILTER (WHERE completed),
		COUNT(*) FILTER (WHERE NOT completed)
		FROM todos`
	var args []any
	if search != "" {
		query += ` WHERE (title ILIKE $1 OR description ILIKE $1)`
		args = append(args, likePattern(search))
	}

	var c models.StatusCount
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&c.Total, &c.Done, &c.Open); err != nil {
		return models.StatusCount{}, fmt.Errorf("failed to count todos: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	var one int
	return r.db.QueryRowContext(ctx, `SELECT 1`).Scan(&one)
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *PostgresRepository) scan(row scanner) (*models.Todo, error) {
	var t models.Todo
	var tags []string
	if err := row.Scan(&t.ID, &t.Title, &t.Description, r.types.SQLScanner(&tags),
		&t.Completed, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Tags = tags
	return &t, nil
}

func (r *PostgresRepository) selectMany(ctx context.Context, query string, args ...any) ([]models.Todo, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select todos: %w", err)
	}
	defer rows.Close()

	result := make([]models.Todo, 0)
	for rows.Next() {
		t, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern turns user text into an ILIKE substring pattern that
// matches the text literally.
func likePattern(text string) string {
	return "%" + likeEscaper.Replace(text) + "%"
}
