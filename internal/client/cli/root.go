package cli

import (
	"context"
	"fmt"
)

func (a *App) getStatus() string {
	s := string(a.Mode())
	if t, ok := a.store.PendingDelete(); ok {
		s += fmt.Sprintf(", undo %q", t.Title)
	}
	return fmt.Sprintf("(%s)", s)
}

// Root prints a banner, starts the online status watcher and runs the REPL
// until the input ends or the user quits.
func (a *App) Root(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.interactive() {
		a.println("Todo CLI (type 'help' for commands)")
	}

	if a.config != nil {
		go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)
	}

	runREPL(ctx, a, a.getStatus, a.reader)
}

func (a *App) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}
