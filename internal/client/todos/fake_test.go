package todos

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/todokeeper/internal/client/client"
	"github.com/dmitrijs2005/todokeeper/internal/client/models"
)

// gate lets a test hold one API call in flight.
type gate struct {
	entered chan struct{}
	release chan error
}

// fakeAPI is an in-memory server. Calls whose key has a gate block until
// the test releases them.
type fakeAPI struct {
	mu    sync.Mutex
	items []models.Todo
	now   time.Time
	gates map[string]*gate
	calls []string

	listCalls   int
	countCalls  int
	listGate    chan struct{}
	listEntered chan struct{}
}

func newFakeAPI(items ...models.Todo) *fakeAPI {
	return &fakeAPI{
		items:       items,
		now:         epoch,
		gates:       map[string]*gate{},
		listEntered: make(chan struct{}, 16),
	}
}

func (f *fakeAPI) hold(key string) *gate {
	g := &gate{entered: make(chan struct{}), release: make(chan error, 1)}
	f.mu.Lock()
	f.gates[key] = g
	f.mu.Unlock()
	return g
}

func (f *fakeAPI) enter(key string) error {
	f.mu.Lock()
	f.calls = append(f.calls, key)
	g := f.gates[key]
	delete(f.gates, key)
	f.mu.Unlock()

	if g == nil {
		return nil
	}
	close(g.entered)
	return <-g.release
}

// blockLists makes List calls wait until the returned func is called.
func (f *fakeAPI) blockLists() func() {
	g := make(chan struct{})
	f.mu.Lock()
	f.listGate = g
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.listGate = nil
		f.mu.Unlock()
		close(g)
	}
}

func (f *fakeAPI) counts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.countCalls
}

func (f *fakeAPI) add(t models.Todo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, t)
}

func (f *fakeAPI) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

func (f *fakeAPI) lists() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

func (f *fakeAPI) List(ctx context.Context, p client.ListParams) ([]models.Todo, error) {
	f.mu.Lock()
	f.listCalls++
	out := make([]models.Todo, 0, len(f.items))
	for _, t := range f.items {
		if p.Matches(t) {
			out = append(out, t)
		}
	}
	g := f.listGate
	f.mu.Unlock()

	if g != nil {
		f.listEntered <- struct{}{}
		<-g
	}
	return out, nil
}

func (f *fakeAPI) Get(ctx context.Context, id string) (*models.Todo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.items {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, notFound("get todo")
}

func (f *fakeAPI) Create(ctx context.Context, in models.CreateTodo) (*models.Todo, error) {
	if err := f.enter("create:" + in.Title); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t := models.Todo{
		ID:          "srv-" + in.Title,
		Title:       in.Title,
		Description: in.Description,
		Tags:        in.Tags,
		Completed:   in.Completed != nil && *in.Completed,
		CreatedAt:   f.now,
		UpdatedAt:   f.now,
	}
	f.items = append(f.items, t)
	return &t, nil
}

func (f *fakeAPI) Update(ctx context.Context, id string, patch models.UpdateTodo) (*models.Todo, error) {
	if err := f.enter("update:" + id); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.items {
		if t.ID == id {
			u := patch.Apply(t)
			u.UpdatedAt = f.now.Add(time.Hour)
			f.items[i] = u
			return &u, nil
		}
	}
	return nil, notFound("update todo")
}

func (f *fakeAPI) Delete(ctx context.Context, id string) error {
	if err := f.enter("delete:" + id); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.items)
	f.items = slices.DeleteFunc(f.items, func(t models.Todo) bool { return t.ID == id })
	if len(f.items) == n {
		return notFound("delete todo")
	}
	return nil
}

func (f *fakeAPI) Search(ctx context.Context, text string) ([]models.Todo, error) {
	return f.List(ctx, client.ListParams{Search: text})
}

func (f *fakeAPI) FindByTags(ctx context.Context, tags []string) ([]models.Todo, error) {
	return nil, nil
}

func (f *fakeAPI) Exists(ctx context.Context, id string) (bool, error) {
	_, err := f.Get(ctx, id)
	return err == nil, nil
}

func (f *fakeAPI) Count(ctx context.Context, p client.CountParams) (models.StatusCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countCalls++
	var c models.StatusCount
	for _, t := range f.items {
		if !(client.ListParams{Search: p.Search}).Matches(t) {
			continue
		}
		c.Total++
		if t.Completed {
			c.Done++
		} else {
			c.Open++
		}
	}
	return c, nil
}

func (f *fakeAPI) FindByDateRange(ctx context.Context, from, to time.Time) ([]models.Todo, error) {
	return nil, nil
}

func (f *fakeAPI) Export(ctx context.Context) (*client.Snapshot, error) {
	return nil, nil
}

func notFound(op string) error {
	return &client.APIError{Op: op, Status: http.StatusNotFound, StatusText: "Not Found"}
}
