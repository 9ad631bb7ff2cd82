package todos

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/todokeeper/internal/client/client"
	"github.com/dmitrijs2005/todokeeper/internal/client/models"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// editFn applies one optimistic edit to a cached list. It must return a new
// slice and leave items untouched, because items may be a rollback
// snapshot.
type editFn func(p client.ListParams, items []models.Todo) []models.Todo

func prependEdit(t models.Todo) editFn {
	return func(p client.ListParams, items []models.Todo) []models.Todo {
		if !p.Matches(t) {
			return items
		}
		out := make([]models.Todo, 0, len(items)+1)
		out = append(out, t)
		return append(out, items...)
	}
}

// patchEdit merges patch into the record with id and moves its updatedAt
// strictly forward. A record that stops matching the list is dropped.
func patchEdit(id string, patch models.UpdateTodo, now time.Time) editFn {
	return func(p client.ListParams, items []models.Todo) []models.Todo {
		out := make([]models.Todo, 0, len(items))
		for _, t := range items {
			if t.ID != id {
				out = append(out, t)
				continue
			}
			u := patch.Apply(t)
			u.UpdatedAt = bump(t.UpdatedAt, now)
			if p.Matches(u) {
				out = append(out, u)
			}
		}
		return out
	}
}

func removeEdit(id string) editFn {
	return func(_ client.ListParams, items []models.Todo) []models.Todo {
		return slices.DeleteFunc(slices.Clone(items), func(t models.Todo) bool { return t.ID == id })
	}
}

// replaceByID swaps the record with id for t, keeping its position.
func replaceByID(items []models.Todo, id string, t models.Todo) []models.Todo {
	out := slices.Clone(items)
	for i := range out {
		if out[i].ID == id {
			out[i] = t
		}
	}
	return out
}

// insertAt puts t back at index i (clamped) unless a record with its id is
// already present.
func insertAt(items []models.Todo, i int, t models.Todo) []models.Todo {
	if slices.ContainsFunc(items, func(x models.Todo) bool { return x.ID == t.ID }) {
		return items
	}
	i = min(max(i, 0), len(items))
	return slices.Insert(slices.Clone(items), i, t)
}

func bump(prev, now time.Time) time.Time {
	if now.After(prev) {
		return now
	}
	return prev.Add(time.Millisecond)
}

var collatorPool = sync.Pool{
	New: func() any { return collate.New(language.Und) },
}

// SortByTitle returns a copy of items ordered by title using the default
// Unicode collation, ties broken by id.
func SortByTitle(items []models.Todo) []models.Todo {
	col := collatorPool.Get().(*collate.Collator)
	defer collatorPool.Put(col)

	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b models.Todo) int {
		if c := col.CompareString(a.Title, b.Title); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if out == nil {
		out = []models.Todo{}
	}
	return out
}
