package client

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/todokeeper/internal/client/models"
)

// API is the todo REST surface as the client sees it.
type API interface {
	List(ctx context.Context, p ListParams) ([]models.Todo, error)
	Get(ctx context.Context, id string) (*models.Todo, error)
	Create(ctx context.Context, in models.CreateTodo) (*models.Todo, error)
	Update(ctx context.Context, id string, patch models.UpdateTodo) (*models.Todo, error)
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, text string) ([]models.Todo, error)
	FindByTags(ctx context.Context, tags []string) ([]models.Todo, error)
	Exists(ctx context.Context, id string) (bool, error)
	Count(ctx context.Context, p CountParams) (models.StatusCount, error)
	FindByDateRange(ctx context.Context, from, to time.Time) ([]models.Todo, error)
	Export(ctx context.Context) (*Snapshot, error)
}

// ListParams filters a listing. The zero value lists everything.
type ListParams struct {
	Completed *bool
	Search    string
}

// Normalize trims the search text.
func (p ListParams) Normalize() ListParams {
	p.Search = strings.TrimSpace(p.Search)
	return p
}

// Query encodes the set parameters only.
func (p ListParams) Query() url.Values {
	p = p.Normalize()
	q := url.Values{}
	if p.Search != "" {
		q.Set("search", p.Search)
	}
	if p.Completed != nil {
		q.Set("completed", strconv.FormatBool(*p.Completed))
	}
	return q
}

// Key is a stable textual form of the normalized parameters, used as a
// cache key segment.
func (p ListParams) Key() string {
	return p.Query().Encode()
}

// Matches reports whether t would be part of a listing with these
// parameters, using the server's rules: completed must match and search is
// a case-insensitive substring of title or description.
func (p ListParams) Matches(t models.Todo) bool {
	p = p.Normalize()
	if p.Completed != nil && t.Completed != *p.Completed {
		return false
	}
	if p.Search == "" {
		return true
	}
	q := strings.ToLower(p.Search)
	return strings.Contains(strings.ToLower(t.Title), q) ||
		strings.Contains(strings.ToLower(t.DescriptionText()), q)
}

// CountParams narrows a status count. The server counts both statuses, so
// only the search text applies.
type CountParams struct {
	Search string
}

func (p CountParams) Normalize() CountParams {
	p.Search = strings.TrimSpace(p.Search)
	return p
}

func (p CountParams) Query() url.Values {
	return ListParams{Search: p.Search}.Query()
}

func (p CountParams) Key() string {
	return p.Query().Encode()
}

// Snapshot describes a server-side export.
type Snapshot struct {
	Key        string    `json:"key"`
	URL        string    `json:"url"`
	Count      int       `json:"count"`
	ExportedAt time.Time `json:"exportedAt"`
}
