package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/todokeeper/internal/client/client"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	interactive() bool
	List(ctx context.Context, args []string) error
	Find(ctx context.Context, args []string) error
	Search(ctx context.Context, args []string) error
	Tags(ctx context.Context, args []string) error
	Add(ctx context.Context, args []string) error
	Edit(ctx context.Context, args []string) error
	SetDone(ctx context.Context, args []string, done bool) error
	Toggle(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Undo(ctx context.Context) error
	Show(ctx context.Context, args []string) error
	Exists(ctx context.Context, args []string) error
	Count(ctx context.Context, args []string) error
	Range(ctx context.Context, args []string) error
	Export(ctx context.Context) error
	Refresh(ctx context.Context) error
}

const helpText = `Available commands:
  list [all|open|done]   list todos, optionally by status
  find <text>            filter the loaded list by title
  search <text>          search titles and descriptions on the server
  tags <a,b>             todos carrying any of the tags
  add [title]            create a todo (prompts for the rest)
  edit <id>              change title, description or tags
  done <id>              mark as done
  undone <id>            mark as open
  toggle <id>            flip done/open
  delete <id>            delete (undo is available for 5 seconds)
  undo                   restore the last deleted todo
  show <id>              show one todo
  exists <id>            check whether a todo exists
  count [text]           total, open and done counts
  range <from> <to>      todos created between two dates (YYYY-MM-DD or RFC3339)
  export                 export all todos to object storage
  refresh                reload from the server
  exit | quit            leave the program`

// runREPL starts a simple read–eval–print loop for the todo CLI.
//
// It reads a line from reader, parses the first token as the command, and
// dispatches to methods on 'a' with the remaining tokens. Unknown commands
// are reported back to the user. The loop exits on EOF or when the user
// types "exit" or "quit".
//
// The prompt shows the current status (from statusFn) and is only printed
// for interactive sessions. A command error is printed and the loop
// continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		if a.interactive() {
			printlnFn(fmt.Sprintf("todo %s> ", statusFn()))
		}
		line, ok := readLine(reader)
		if !ok {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			printlnFn(helpText)

		case "l", "list":
			err = a.List(ctx, args)

		case "find":
			err = a.Find(ctx, args)

		case "search":
			err = a.Search(ctx, args)

		case "tags":
			err = a.Tags(ctx, args)

		case "add":
			err = a.Add(ctx, args)

		case "edit":
			err = a.Edit(ctx, args)

		case "done":
			err = a.SetDone(ctx, args, true)

		case "undone":
			err = a.SetDone(ctx, args, false)

		case "toggle":
			err = a.Toggle(ctx, args)

		case "delete", "rm":
			err = a.Delete(ctx, args)

		case "undo":
			err = a.Undo(ctx)

		case "show":
			err = a.Show(ctx, args)

		case "exists":
			err = a.Exists(ctx, args)

		case "count":
			err = a.Count(ctx, args)

		case "range":
			err = a.Range(ctx, args)

		case "export":
			err = a.Export(ctx)

		case "refresh":
			err = a.Refresh(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", client.Message(err))
		}
	}
}
