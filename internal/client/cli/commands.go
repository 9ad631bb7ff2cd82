package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/todokeeper/internal/client/client"
	"github.com/dmitrijs2005/todokeeper/internal/client/filters"
	"github.com/dmitrijs2005/todokeeper/internal/client/models"
	"github.com/dmitrijs2005/todokeeper/internal/client/todos"
)

type usageError string

func (u usageError) Error() string { return "usage: " + string(u) }

var errTitleRequired = errors.New("title is required")

// clearValue, typed at an edit prompt, empties the field.
const clearValue = "-"

func oneArg(args []string, usage string) (string, error) {
	if len(args) != 1 {
		return "", usageError(usage)
	}
	return args[0], nil
}

func (a *App) printList(items []models.Todo) {
	if len(items) == 0 {
		a.println(mutedStyle.Render("No todos."))
		return
	}
	for _, t := range items {
		a.println(formatTodo(t))
	}
}

func (a *App) List(ctx context.Context, args []string) error {
	if len(args) > 1 {
		return usageError("list [all|open|done]")
	}
	var name string
	if len(args) == 1 {
		name = args[0]
	}
	tab, err := filters.ParseTab(name)
	if err != nil {
		return err
	}

	items, err := a.store.List(ctx, client.ListParams{})
	if err != nil {
		return err
	}
	v := filters.Apply(items, tab, "")
	a.println(formatCounts(v.Counts, tab))
	a.printList(v.Items)
	return nil
}

// Find narrows the loaded list by title without asking the server.
func (a *App) Find(ctx context.Context, args []string) error {
	text := strings.Join(args, " ")
	if text == "" {
		return usageError("find <text>")
	}
	items, err := a.store.List(ctx, client.ListParams{})
	if err != nil {
		return err
	}
	a.printList(filters.Apply(items, filters.TabAll, text).Items)
	return nil
}

func (a *App) Search(ctx context.Context, args []string) error {
	text := strings.Join(args, " ")
	if text == "" {
		return usageError("search <text>")
	}
	items, err := a.api.Search(ctx, text)
	if err != nil {
		return err
	}
	a.printList(todos.SortByTitle(items))
	return nil
}

func (a *App) Tags(ctx context.Context, args []string) error {
	tags := models.ParseTags(strings.Join(args, ","))
	if len(tags) == 0 {
		return usageError("tags <a,b>")
	}
	items, err := a.api.FindByTags(ctx, tags)
	if err != nil {
		return err
	}
	a.printList(todos.SortByTitle(items))
	return nil
}

// Add creates a todo. A title given inline skips the prompts.
func (a *App) Add(ctx context.Context, args []string) error {
	in := models.CreateTodo{Title: strings.Join(args, " ")}

	if in.Title == "" {
		title, err := GetSimpleText(a.reader, "Title", a.prompt)
		if err != nil {
			return err
		}
		if title == "" {
			return errTitleRequired
		}
		in.Title = title

		desc, err := GetMultiline(a.reader, "Description (optional)", a.prompt)
		if err != nil {
			return err
		}
		if desc != "" {
			in.Description = &desc
		}

		tags, err := GetSimpleText(a.reader, "Tags, comma separated (optional)", a.prompt)
		if err != nil {
			return err
		}
		in.Tags = models.ParseTags(tags)
	}

	created, err := a.store.Create(ctx, in)
	if err != nil {
		return err
	}
	a.println("Created", formatTodo(*created))
	return nil
}

// Edit prompts for each field showing the current value. An empty answer
// keeps the value and "-" clears description or tags.
func (a *App) Edit(ctx context.Context, args []string) error {
	id, err := oneArg(args, "edit <id>")
	if err != nil {
		return err
	}
	t, err := a.store.Detail(ctx, id)
	if err != nil {
		return err
	}

	var patch models.UpdateTodo
	changed := false

	title, err := GetSimpleText(a.reader, fmt.Sprintf("Title [%s]", t.Title), a.prompt)
	if err != nil {
		return err
	}
	if title != "" && title != t.Title {
		patch.Title = &title
		changed = true
	}

	desc, err := GetSimpleText(a.reader, fmt.Sprintf("Description [%s] ('-' clears)", t.DescriptionText()), a.prompt)
	if err != nil {
		return err
	}
	switch desc {
	case "":
	case clearValue:
		if t.DescriptionText() != "" {
			empty := ""
			patch.Description = &empty
			changed = true
		}
	default:
		if desc != t.DescriptionText() {
			patch.Description = &desc
			changed = true
		}
	}

	tags, err := GetSimpleText(a.reader, fmt.Sprintf("Tags [%s] ('-' clears)", strings.Join(t.Tags, ", ")), a.prompt)
	if err != nil {
		return err
	}
	switch tags {
	case "":
	case clearValue:
		if len(t.Tags) > 0 {
			none := []string{}
			patch.Tags = &none
			changed = true
		}
	default:
		if parsed := models.ParseTags(tags); !slices.Equal(parsed, t.Tags) {
			patch.Tags = &parsed
			changed = true
		}
	}

	if !changed {
		a.println("Nothing to change.")
		return nil
	}
	updated, err := a.store.Update(ctx, id, patch)
	if err != nil {
		return err
	}
	a.println("Updated", formatTodo(*updated))
	return nil
}

func (a *App) SetDone(ctx context.Context, args []string, done bool) error {
	usage := "undone <id>"
	if done {
		usage = "done <id>"
	}
	id, err := oneArg(args, usage)
	if err != nil {
		return err
	}
	updated, err := a.store.Update(ctx, id, models.UpdateTodo{Completed: &done})
	if err != nil {
		return err
	}
	a.println(formatTodo(*updated))
	return nil
}

func (a *App) Toggle(ctx context.Context, args []string) error {
	id, err := oneArg(args, "toggle <id>")
	if err != nil {
		return err
	}
	if _, err := a.store.List(ctx, client.ListParams{}); err != nil {
		return err
	}
	updated, err := a.store.Toggle(ctx, id)
	if err != nil {
		return err
	}
	a.println(formatTodo(*updated))
	return nil
}

func (a *App) Delete(ctx context.Context, args []string) error {
	id, err := oneArg(args, "delete <id>")
	if err != nil {
		return err
	}
	// the record must be cached for undo to restore it
	if _, err := a.store.List(ctx, client.ListParams{}); err != nil {
		return err
	}
	if err := a.store.DeleteWithUndo(ctx, id); err != nil {
		return err
	}

	if t, ok := a.store.PendingDelete(); ok {
		a.println(fmt.Sprintf("Deleted %q. Type 'undo' within %s to restore it.", t.Title, todos.UndoWindow))
	} else {
		a.println("Deleted", id)
	}
	return nil
}

// Undo restores the last deleted todo in the local lists. The server copy
// stays deleted; the next refresh shows the server state again.
func (a *App) Undo(ctx context.Context) error {
	t, ok := a.store.PendingDelete()
	if !ok || !a.store.Undo() {
		a.println("Nothing to undo.")
		return nil
	}
	a.println(fmt.Sprintf("Restored %q in the local list.", t.Title))
	return nil
}

func (a *App) Show(ctx context.Context, args []string) error {
	id, err := oneArg(args, "show <id>")
	if err != nil {
		return err
	}
	t, err := a.store.Detail(ctx, id)
	if err != nil {
		return err
	}
	a.println(formatDetail(t))
	return nil
}

func (a *App) Exists(ctx context.Context, args []string) error {
	id, err := oneArg(args, "exists <id>")
	if err != nil {
		return err
	}
	ok, err := a.api.Exists(ctx, id)
	if err != nil {
		return err
	}
	if ok {
		a.println(id, "exists")
	} else {
		a.println(id, "does not exist")
	}
	return nil
}

func (a *App) Count(ctx context.Context, args []string) error {
	c, err := a.store.Count(ctx, client.CountParams{Search: strings.Join(args, " ")})
	if err != nil {
		return err
	}
	a.println(fmt.Sprintf("total %d, open %d, done %d", c.Total, c.Open, c.Done))
	return nil
}

func (a *App) Range(ctx context.Context, args []string) error {
	const usage = "range <from> <to>"
	if len(args) != 2 {
		return usageError(usage)
	}
	from, err := parseTime(args[0], false)
	if err != nil {
		return err
	}
	to, err := parseTime(args[1], true)
	if err != nil {
		return err
	}
	items, err := a.api.FindByDateRange(ctx, from, to)
	if err != nil {
		return err
	}
	a.printList(todos.SortByTitle(items))
	return nil
}

// parseTime accepts RFC3339 or a UTC date. A date used as the upper bound
// covers the whole day.
func parseTime(s string, end bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD or RFC3339)", s)
	}
	if end {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func (a *App) Export(ctx context.Context) error {
	snap, err := a.api.Export(ctx)
	if err != nil {
		return err
	}
	a.println(fmt.Sprintf("Exported %d todos to %s", snap.Count, snap.URL))
	return nil
}

func (a *App) Refresh(ctx context.Context) error {
	a.store.Refresh(ctx)
	a.println("Refreshed.")
	return nil
}
