package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dmitrijs2005/todokeeper/internal/client/cache"
	"github.com/dmitrijs2005/todokeeper/internal/client/client"
	"github.com/dmitrijs2005/todokeeper/internal/client/config"
	"github.com/dmitrijs2005/todokeeper/internal/client/todos"
	"github.com/dmitrijs2005/todokeeper/internal/client/tui"
	"github.com/dmitrijs2005/todokeeper/internal/clockx"
	"github.com/dmitrijs2005/todokeeper/internal/logging"
)

const staleTime = 30 * time.Second

func main() {

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()

	// the screen belongs to the TUI, so logs go to a file when asked for
	logger := logging.Nop()
	if path := os.Getenv("TODOKEEPER_LOG"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			log.Fatalf("%v", err)
		}
		defer f.Close()
		logger = logging.NewText(f, cfg.LogLevel)
	}

	clock := clockx.Real()
	c := cache.New(clock, staleTime, logger.With("module", "cache"))
	store := todos.NewStore(client.NewHTTPClient(cfg.BaseURL, cfg.RequestTimeout), c, clock, logger)
	defer func() {
		store.Close()
		c.Wait()
	}()

	err := tui.Run(ctx, tui.New(store, clock))
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		log.Printf("%v", err)
	}

}
