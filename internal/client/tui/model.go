package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dmitrijs2005/todokeeper/internal/client/client"
	"github.com/dmitrijs2005/todokeeper/internal/client/filters"
	"github.com/dmitrijs2005/todokeeper/internal/client/models"
	"github.com/dmitrijs2005/todokeeper/internal/client/todos"
	"github.com/dmitrijs2005/todokeeper/internal/clockx"
)

// errorFadeDelay is how long an error stays in the status line.
const errorFadeDelay = 4 * time.Second

const maxTitleLength = 100

type mode int

const (
	modeBrowse mode = iota
	modeAdd
	modeSearch
)

// storeChangedMsg is delivered after the Store's cached lists or pending
// delete changed.
type storeChangedMsg struct{}

// filterChangedMsg is delivered after the filter recomputed its view, for
// example once typing in the search box settled.
type filterChangedMsg struct{}

type loadedMsg struct {
	items []models.Todo
	err   error
}

// mutationResultMsg is sent when a create, toggle or delete completes.
// Success needs no handling: the Store notifies about the reconciled data.
type mutationResultMsg struct {
	err error
}

type errorFadeMsg struct{}

type Model struct {
	store  *todos.Store
	filter *filters.Filter
	params client.ListParams
	keys   keyMap

	storeEvents  chan struct{}
	filterEvents chan struct{}
	unsubscribe  func()

	view    filters.View
	cursor  int
	mode    mode
	input   textinput.Model
	loading bool
	err     string
	pending *models.Todo

	width  int
	height int
}

// New builds a Model showing every todo of store. clock drives the search
// debounce.
func New(store *todos.Store, clock clockx.Clock) Model {
	storeEvents := make(chan struct{}, 1)
	filterEvents := make(chan struct{}, 1)

	m := Model{
		store:        store,
		filter:       filters.New(clock, func(filters.View) { signal(filterEvents) }),
		params:       client.ListParams{},
		keys:         defaultKeys(),
		storeEvents:  storeEvents,
		filterEvents: filterEvents,
		unsubscribe:  store.Subscribe(func() { signal(storeEvents) }),
		loading:      true,
	}
	m.view = m.filter.View()

	m.input = textinput.New()
	m.input.Prompt = "> "
	m.input.CharLimit = maxTitleLength
	return m
}

// signal wakes a listener without blocking. One queued wakeup is enough
// since handlers always read the latest state.
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// listen blocks until ch fires and then delivers msg.
func listen(ch <-chan struct{}, msg tea.Msg) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return msg
	}
}

// Close detaches the model from the Store and stops the debounce timer.
func (m Model) Close() {
	m.unsubscribe()
	m.filter.Close()
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.load(),
		listen(m.storeEvents, storeChangedMsg{}),
		listen(m.filterEvents, filterChangedMsg{}),
	)
}

func (m Model) load() tea.Cmd {
	store, params := m.store, m.params
	return func() tea.Msg {
		items, err := store.List(context.Background(), params)
		return loadedMsg{items: items, err: err}
	}
}

func (m Model) refresh() tea.Cmd {
	store, params := m.store, m.params
	return func() tea.Msg {
		ctx := context.Background()
		store.Refresh(ctx)
		items, err := store.List(ctx, params)
		return loadedMsg{items: items, err: err}
	}
}

// mutate runs fn off the update loop and reports its error.
func mutate(fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return mutationResultMsg{err: fn(context.Background())}
	}
}

func (m Model) selected() (models.Todo, bool) {
	if m.cursor < 0 || m.cursor >= len(m.view.Items) {
		return models.Todo{}, false
	}
	return m.view.Items[m.cursor], true
}

func (m *Model) syncView() {
	m.view = m.filter.View()
	if m.cursor >= len(m.view.Items) {
		m.cursor = len(m.view.Items) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *Model) syncStore() {
	if items, ok := m.store.Cached(m.params); ok {
		m.filter.SetItems(items)
	}
	m.pending = nil
	if t, ok := m.store.PendingDelete(); ok {
		m.pending = &t
	}
	m.syncView()
}

func (m *Model) showError(text string) tea.Cmd {
	m.err = text
	return tea.Tick(errorFadeDelay, func(time.Time) tea.Msg { return errorFadeMsg{} })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = max(msg.Width-10, 10)
		return m, nil

	case loadedMsg:
		m.loading = false
		if msg.err != nil {
			cmd := m.showError(client.Message(msg.err))
			return m, cmd
		}
		m.filter.SetItems(msg.items)
		m.syncStore()
		return m, nil

	case storeChangedMsg:
		m.syncStore()
		return m, listen(m.storeEvents, storeChangedMsg{})

	case filterChangedMsg:
		m.syncView()
		return m, listen(m.filterEvents, filterChangedMsg{})

	case mutationResultMsg:
		if msg.err != nil {
			cmd := m.showError(client.Message(msg.err))
			return m, cmd
		}
		return m, nil

	case errorFadeMsg:
		m.err = ""
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case modeAdd:
			return m.updateAdd(msg)
		case modeSearch:
			return m.updateSearch(msg)
		}
		return m.updateBrowse(msg)
	}
	return m, nil
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.view.Items)-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.NextTab):
		m.switchTab(m.view.Tab.Next())

	case key.Matches(msg, m.keys.Tab1):
		m.switchTab(filters.TabAll)

	case key.Matches(msg, m.keys.Tab2):
		m.switchTab(filters.TabOpen)

	case key.Matches(msg, m.keys.Tab3):
		m.switchTab(filters.TabDone)

	case key.Matches(msg, m.keys.Toggle):
		t, ok := m.selected()
		if !ok {
			return m, nil
		}
		store := m.store
		return m, mutate(func(ctx context.Context) error {
			_, err := store.Toggle(ctx, t.ID)
			return err
		})

	case key.Matches(msg, m.keys.Delete):
		t, ok := m.selected()
		if !ok {
			return m, nil
		}
		store := m.store
		return m, mutate(func(ctx context.Context) error {
			return store.DeleteWithUndo(ctx, t.ID)
		})

	case key.Matches(msg, m.keys.Undo):
		m.store.Undo()
		m.syncStore()

	case key.Matches(msg, m.keys.Add):
		m.mode = modeAdd
		m.err = ""
		m.input.SetValue("")
		m.input.Placeholder = "New todo title, #tags optional"
		cmd := m.input.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.Search):
		m.mode = modeSearch
		m.input.SetValue(m.filter.Input())
		m.input.CursorEnd()
		m.input.Placeholder = "Search titles"
		cmd := m.input.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.Clear):
		if m.filter.Input() != "" {
			m.filter.SetQuery("")
			m.filter.Flush()
			m.syncView()
		}

	case key.Matches(msg, m.keys.Refresh):
		m.loading = true
		return m, m.refresh()
	}
	return m, nil
}

func (m *Model) switchTab(t filters.Tab) {
	m.filter.SetTab(t)
	m.cursor = 0
	m.syncView()
}

func (m Model) updateAdd(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		in := parseAddInput(m.input.Value())
		if in.Title == "" {
			m.err = "Title cannot be empty"
			return m, nil
		}
		m.mode = modeBrowse
		m.err = ""
		m.input.SetValue("")
		m.input.Blur()
		store := m.store
		return m, mutate(func(ctx context.Context) error {
			_, err := store.Create(ctx, in)
			return err
		})

	case tea.KeyEsc:
		m.mode = modeBrowse
		m.err = ""
		m.input.SetValue("")
		m.input.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.filter.Flush()
		m.mode = modeBrowse
		m.input.Blur()
		m.syncView()
		return m, nil

	case tea.KeyEsc:
		m.filter.SetQuery("")
		m.filter.Flush()
		m.mode = modeBrowse
		m.input.SetValue("")
		m.input.Blur()
		m.syncView()
		return m, nil
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if v := m.input.Value(); v != before {
		m.filter.SetQuery(v)
		m.cursor = 0
	}
	return m, cmd
}

// parseAddInput splits "Buy milk #home #errands" into a title and tags.
func parseAddInput(s string) models.CreateTodo {
	var title, tags []string
	for _, word := range strings.Fields(s) {
		if len(word) > 1 && strings.HasPrefix(word, "#") {
			tags = append(tags, word[1:])
			continue
		}
		title = append(title, word)
	}
	return models.CreateTodo{
		Title: strings.Join(title, " "),
		Tags:  models.ParseTags(strings.Join(tags, ",")),
	}
}
