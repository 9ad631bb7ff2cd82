package repomanager

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/todokeeper/internal/server/repositories/todos"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepositoryManager owns a MongoDB client.
type MongoRepositoryManager struct {
	client *mongo.Client
	repo   *todos.MongoRepository
}

func openMongo(ctx context.Context, uri, database string) (RepositoryManager, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	m, err := NewMongoRepositoryManager(ctx, client, database)
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return m, nil
}

// NewMongoRepositoryManager binds the todos collection of database and
// makes sure its indexes exist.
func NewMongoRepositoryManager(ctx context.Context, client *mongo.Client, database string) (*MongoRepositoryManager, error) {
	repo := todos.NewMongoRepository(client.Database(database).Collection(todos.CollectionName))
	if err := repo.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	return &MongoRepositoryManager{client: client, repo: repo}, nil
}

func (m *MongoRepositoryManager) Todos() todos.Repository { return m.repo }

func (m *MongoRepositoryManager) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
