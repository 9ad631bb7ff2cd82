// Package repomanager opens the configured storage backend and vends the
// todo repository bound to it.
package repomanager

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/todokeeper/internal/server/config"
	"github.com/dmitrijs2005/todokeeper/internal/server/repositories/todos"
)

// RepositoryManager owns a storage connection.
type RepositoryManager interface {
	Todos() todos.Repository
	Close(ctx context.Context) error
}

// Open connects to the backend named by cfg.Store and prepares it for use:
// migrations for postgres, indexes for mongo.
func Open(ctx context.Context, cfg *config.Config) (RepositoryManager, error) {
	switch cfg.Store {
	case config.StoreMongo:
		return openMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
	case config.StorePostgres:
		return openPostgres(ctx, cfg.DatabaseDSN)
	case config.StoreMemory:
		return NewMemoryRepositoryManager(), nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// MemoryRepositoryManager holds an in-process store. Close is a no-op.
type MemoryRepositoryManager struct {
	repo *todos.MemoryRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{repo: todos.NewMemoryRepository()}
}

func (m *MemoryRepositoryManager) Todos() todos.Repository { return m.repo }

func (m *MemoryRepositoryManager) Close(context.Context) error { return nil }
