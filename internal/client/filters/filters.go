// Package filters derives the visible part of a loaded todo list: a status
// tab combined with a debounced, title-only text query.
package filters

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/todokeeper/internal/client/models"
	"github.com/dmitrijs2005/todokeeper/internal/clockx"
)

// Debounce is how long text input must stay unchanged before it applies.
const Debounce = 300 * time.Millisecond

type Tab string

const (
	TabAll  Tab = "all"
	TabOpen Tab = "open"
	TabDone Tab = "done"
)

var tabs = []Tab{TabAll, TabOpen, TabDone}

// Tabs lists the tabs in display order.
func Tabs() []Tab { return append([]Tab(nil), tabs...) }

// ParseTab accepts a tab name; the empty string means TabAll.
func ParseTab(s string) (Tab, error) {
	switch t := Tab(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return TabAll, nil
	case TabAll, TabOpen, TabDone:
		return t, nil
	default:
		return "", fmt.Errorf("unknown tab %q (want all, open or done)", s)
	}
}

// Next cycles all -> open -> done -> all.
func (t Tab) Next() Tab {
	for i, x := range tabs {
		if x == t {
			return tabs[(i+1)%len(tabs)]
		}
	}
	return TabAll
}

func (t Tab) keep(todo models.Todo) bool {
	switch t {
	case TabOpen:
		return !todo.Completed
	case TabDone:
		return todo.Completed
	default:
		return true
	}
}

// Counts always describe the whole collection, not the visible part.
type Counts struct {
	Total int
	Open  int
	Done  int
}

func (c Counts) For(t Tab) int {
	switch t {
	case TabOpen:
		return c.Open
	case TabDone:
		return c.Done
	default:
		return c.Total
	}
}

func CountOf(items []models.Todo) Counts {
	var c Counts
	for _, t := range items {
		if t.Completed {
			c.Done++
		}
	}
	c.Total = len(items)
	c.Open = c.Total - c.Done
	return c
}

type View struct {
	Tab    Tab
	Query  string
	Items  []models.Todo
	Counts Counts
}

// Apply computes the view of items for tab and query. Order is kept.
func Apply(items []models.Todo, tab Tab, query string) View {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]models.Todo, 0, len(items))
	for _, t := range items {
		if !tab.keep(t) {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(t.Title), q) {
			continue
		}
		out = append(out, t)
	}
	return View{Tab: tab, Query: query, Items: out, Counts: CountOf(items)}
}

// Filter keeps a View up to date as items, tab and text input change.
// Items and tab changes apply at once; text input applies after Debounce
// of inactivity. onChange receives every recomputed view and is called
// without the Filter's lock held.
type Filter struct {
	clock    clockx.Clock
	onChange func(View)

	mu     sync.Mutex
	items  []models.Todo
	tab    Tab
	input  string
	query  string
	timer  clockx.Timer
	seq    int
	view   View
	closed bool
}

func New(clock clockx.Clock, onChange func(View)) *Filter {
	if onChange == nil {
		onChange = func(View) {}
	}
	f := &Filter{clock: clock, onChange: onChange, tab: TabAll}
	f.view = Apply(nil, TabAll, "")
	return f
}

func (f *Filter) SetItems(items []models.Todo) {
	f.mu.Lock()
	f.items = items
	f.recompute()
}

func (f *Filter) SetTab(t Tab) {
	f.mu.Lock()
	f.tab = t
	f.recompute()
}

// SetQuery records text input. The view follows once no further input has
// arrived for Debounce.
func (f *Filter) SetQuery(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}

	f.input = text
	f.stopLocked()
	f.seq++
	seq := f.seq
	f.timer = f.clock.AfterFunc(Debounce, func() {
		f.mu.Lock()
		if f.closed || seq != f.seq {
			f.mu.Unlock()
			return
		}
		f.timer = nil
		f.query = text
		f.recompute()
	})
}

// Flush applies pending text input immediately.
func (f *Filter) Flush() {
	f.mu.Lock()
	if f.timer == nil || f.closed {
		f.mu.Unlock()
		return
	}
	f.stopLocked()
	f.seq++
	f.query = f.input
	f.recompute()
}

// recompute must be called with f.mu held and releases it.
func (f *Filter) recompute() {
	if f.closed {
		f.mu.Unlock()
		return
	}
	v := Apply(f.items, f.tab, f.query)
	f.view = v
	f.mu.Unlock()

	f.onChange(v)
}

func (f *Filter) stopLocked() {
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
}

func (f *Filter) View() View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view
}

// Input is the raw text, which may be ahead of View().Query.
func (f *Filter) Input() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.input
}

// Pending reports whether text input is waiting for the debounce.
func (f *Filter) Pending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.timer != nil
}

// Close cancels the pending debounce. Later calls are ignored.
func (f *Filter) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopLocked()
	f.closed = true
}
