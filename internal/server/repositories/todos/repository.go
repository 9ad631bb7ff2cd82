// Package todos provides the storage backends for todo records: MongoDB
// (the default document store), PostgreSQL and an in-memory map. All of
// them only shape queries; existence checks and error translation live in
// the service layer.
package todos

import (
	"context"
	"time"

	"github.com/dmitrijs2005/todokeeper/internal/server/models"
)

// UpdateStep is the minimum distance between two successive updatedAt
// values of the same record. It keeps updatedAt strictly increasing even
// when two patches land within the store's timestamp resolution.
const UpdateStep = time.Millisecond

// Repository is implemented by every storage backend.
type Repository interface {
	// Create stores todo under a freshly generated id and returns the
	// stored record. Timestamps are taken from todo as given.
	Create(ctx context.Context, todo models.Todo) (*models.Todo, error)

	// FindAll lists records matching filter, oldest first.
	FindAll(ctx context.Context, filter models.ListFilter) ([]models.Todo, error)

	// FindByID returns common.ErrorNotFound when no record matches.
	FindByID(ctx context.Context, id string) (*models.Todo, error)

	// Update merges patch into the record and moves updatedAt to
	// max(now, updatedAt+UpdateStep). Returns common.ErrorNotFound when
	// no record matches.
	Update(ctx context.Context, id string, patch models.UpdateTodo, now time.Time) (*models.Todo, error)

	// Delete hard-deletes the record. Returns common.ErrorNotFound when
	// no record matches.
	Delete(ctx context.Context, id string) error

	// Exists never reports not-found as an error.
	Exists(ctx context.Context, id string) (bool, error)

	FindByStatus(ctx context.Context, completed bool) ([]models.Todo, error)

	// FindByTags returns records carrying at least one of tags.
	FindByTags(ctx context.Context, tags []string) ([]models.Todo, error)

	// Search matches text case-insensitively as a literal substring of
	// the title or the description.
	Search(ctx context.Context, text string) ([]models.Todo, error)

	// FindByDateRange returns records created within [from, to].
	FindByDateRange(ctx context.Context, from, to time.Time) ([]models.Todo, error)

	// CountByStatus computes total/done/open over the records matching
	// search (empty means all) in a single query.
	CountByStatus(ctx context.Context, search string) (models.StatusCount, error)

	// Ping checks that the backing store is reachable.
	Ping(ctx context.Context) error
}

// nextUpdatedAt returns the updatedAt value for a record patched at now.
func nextUpdatedAt(prev, now time.Time) time.Time {
	floor := prev.Add(UpdateStep)
	if now.Before(floor) {
		return floor
	}
	return now
}
