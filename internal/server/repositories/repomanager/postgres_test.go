package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/todokeeper/internal/server/repositories/todos"
	"github.com/pressly/goose/v3"
)

func newDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func stubGoose(t *testing.T, fn func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error) {
	t.Helper()
	orig := gooseUpContext
	gooseUpContext = fn
	t.Cleanup(func() { gooseUpContext = orig })
}

func TestNewPostgresRepositoryManager_RunsMigrations(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	called := false
	stubGoose(t, func(ctx context.Context, got *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		called = true
		if got != db {
			return errors.New("unexpected db")
		}
		if dir != "." {
			return errors.New("unexpected dir")
		}
		if len(opts) != 0 {
			return errors.New("unexpected opts")
		}
		return nil
	})

	m, err := NewPostgresRepositoryManager(context.Background(), db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("migrations were not run")
	}

	var _ RepositoryManager = m
	if _, ok := m.Todos().(*todos.PostgresRepository); !ok {
		t.Fatalf("Todos() = %T, want *todos.PostgresRepository", m.Todos())
	}
}

func TestNewPostgresRepositoryManager_MigrationError(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	stubGoose(t, func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	})

	_, err := NewPostgresRepositoryManager(context.Background(), db)
	if err == nil || err.Error() != "migrations: boom" {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
}

func TestOpenPostgres(t *testing.T) {
	db, mock := newDB(t)
	stubGoose(t, func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error { return nil })

	orig := sqlOpen
	sqlOpen = func(driver, dsn string) (*sql.DB, error) {
		if driver != "pgx" || dsn != "postgres://x" {
			return nil, errors.New("unexpected open")
		}
		return db, nil
	}
	t.Cleanup(func() { sqlOpen = orig })

	mock.ExpectPing()
	mock.ExpectClose()

	m, err := openPostgres(context.Background(), "postgres://x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestOpenPostgres_PingError(t *testing.T) {
	db, mock := newDB(t)

	orig := sqlOpen
	sqlOpen = func(string, string) (*sql.DB, error) { return db, nil }
	t.Cleanup(func() { sqlOpen = orig })

	mock.ExpectPing().WillReturnError(errors.New("refused"))
	mock.ExpectClose()

	if _, err := openPostgres(context.Background(), "postgres://x"); err == nil {
		t.Fatal("expected ping error")
	}
}
