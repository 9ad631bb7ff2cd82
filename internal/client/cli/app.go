package cli

import (
	"bufio"
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/todokeeper/internal/client/cache"
	"github.com/dmitrijs2005/todokeeper/internal/client/client"
	"github.com/dmitrijs2005/todokeeper/internal/client/config"
	"github.com/dmitrijs2005/todokeeper/internal/client/todos"
	"github.com/dmitrijs2005/todokeeper/internal/clockx"
	"github.com/dmitrijs2005/todokeeper/internal/logging"
)

type Mode string

const (
	ModeOffline  Mode = "offline"
	ModeOnline   Mode = "online"
	ModeDisabled Mode = "disabled"
)

// staleTime bounds how long a listing is reused before the CLI asks the
// server again.
const staleTime = 30 * time.Second

const pingTimeout = 3 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

type App struct {
	config *config.Config
	api    client.API
	health pinger
	closer func() error
	cache  *cache.QueryCache
	store  *todos.Store
	logger logging.Logger

	modeMu sync.Mutex
	mode   Mode

	reader *bufio.Reader
	out    io.Writer
	prompt io.Writer
}

func NewApp(c *config.Config) (*App, error) {
	logger := logging.NewText(os.Stderr, c.LogLevel)
	api := client.NewHTTPClient(c.BaseURL, c.RequestTimeout)

	var health pinger
	var closer func() error
	if c.HealthEndpointAddr != "" {
		hc, err := client.NewHealthClient(c.HealthEndpointAddr)
		if err != nil {
			return nil, err
		}
		health, closer = hc, hc.Close
	}

	a := newApp(api, health, clockx.Real(), logger, os.Stdin, os.Stdout)
	a.config = c
	a.closer = closer
	if !isTerminal(int(os.Stdin.Fd())) {
		a.prompt = io.Discard
	}
	return a, nil
}

func newApp(api client.API, health pinger, clock clockx.Clock, l logging.Logger, in io.Reader, out io.Writer) *App {
	c := cache.New(clock, staleTime, l.With("module", "cache"))
	a := &App{
		api:    api,
		health: health,
		cache:  c,
		store:  todos.NewStore(api, c, clock, l),
		logger: l.With("module", "cli"),
		mode:   ModeOnline,
		reader: bufio.NewReader(in),
		out:    out,
		prompt: out,
	}
	if health == nil {
		a.mode = ModeDisabled
	}
	return a
}

func (a *App) Mode() Mode {
	a.modeMu.Lock()
	defer a.modeMu.Unlock()
	return a.mode
}

func (a *App) setMode(mode Mode) {
	a.modeMu.Lock()
	changed := a.mode != mode
	a.mode = mode
	a.modeMu.Unlock()

	if !changed {
		return
	}
	if mode == ModeOffline {
		a.logger.Warn(context.Background(), "server unreachable, switched to offline mode")
		return
	}
	a.logger.Info(context.Background(), "switched mode", "mode", mode)
}

func (a *App) interactive() bool {
	return a.prompt != io.Discard
}

func (a *App) Run(ctx context.Context) {
	defer a.Close()
	a.Root(ctx)
}

// Close stops the undo timer, waits for background refetches and closes the
// health connection.
func (a *App) Close() {
	a.store.Close()
	a.cache.Wait()
	if a.closer != nil {
		if err := a.closer(); err != nil {
			a.logger.Warn(context.Background(), "closing health client", "error", err)
		}
	}
}

func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	if a.health == nil || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, pingTimeout)
			err := a.health.Ping(pctx)
			cancel()

			if err != nil {
				a.logger.Debug(ctx, "ping failed", "error", err)
				a.setMode(ModeOffline)
			} else {
				a.setMode(ModeOnline)
			}

		case <-ctx.Done():
			return
		}
	}
}
