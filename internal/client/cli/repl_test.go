package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	calls []string
	err   error
	tty   bool
}

func (f *fakeExec) record(name string, args ...string) error {
	f.calls = append(f.calls, strings.TrimSpace(name+" "+strings.Join(args, " ")))
	return f.err
}

func (f *fakeExec) interactive() bool { return f.tty }
func (f *fakeExec) List(ctx context.Context, args []string) error {
	return f.record("list", args...)
}
func (f *fakeExec) Find(ctx context.Context, args []string) error {
	return f.record("find", args...)
}
func (f *fakeExec) Search(ctx context.Context, args []string) error {
	return f.record("search", args...)
}
func (f *fakeExec) Tags(ctx context.Context, args []string) error { return f.record("tags", args...) }
func (f *fakeExec) Add(ctx context.Context, args []string) error  { return f.record("add", args...) }
func (f *fakeExec) Edit(ctx context.Context, args []string) error { return f.record("edit", args...) }
func (f *fakeExec) SetDone(ctx context.Context, args []string, done bool) error {
	return f.record(fmt.Sprintf("done=%t", done), args...)
}
func (f *fakeExec) Toggle(ctx context.Context, args []string) error {
	return f.record("toggle", args...)
}
func (f *fakeExec) Delete(ctx context.Context, args []string) error {
	return f.record("delete", args...)
}
func (f *fakeExec) Undo(ctx context.Context) error { return f.record("undo") }
func (f *fakeExec) Show(ctx context.Context, args []string) error {
	return f.record("show", args...)
}
func (f *fakeExec) Exists(ctx context.Context, args []string) error {
	return f.record("exists", args...)
}
func (f *fakeExec) Count(ctx context.Context, args []string) error {
	return f.record("count", args...)
}
func (f *fakeExec) Range(ctx context.Context, args []string) error {
	return f.record("range", args...)
}
func (f *fakeExec) Export(ctx context.Context) error  { return f.record("export") }
func (f *fakeExec) Refresh(ctx context.Context) error { return f.record("refresh") }

func capturePrintln(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	origPrint := printlnFn
	printlnFn = func(a ...any) (int, error) {
		lines = append(lines, fmt.Sprintln(a...))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = origPrint })
	return &lines
}

func TestRunREPL_DispatchesCommands(t *testing.T) {
	printed := capturePrintln(t)

	input := strings.Join([]string{
		"help",
		"",
		"list open",
		"l",
		"find milk",
		"search Buy milk",
		"tags work,urgent",
		"add Buy bread",
		"edit 1",
		"done 1",
		"undone 1",
		"toggle 1",
		"rm 2",
		"undo",
		"show 1",
		"exists 1",
		"count milk",
		"range 2026-01-01 2026-12-31",
		"export",
		"refresh",
		"foobar",
		"exit",
		"list",
	}, "\n")

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "status" }, rdr(input))

	assert.Equal(t, []string{
		"list open",
		"list",
		"find milk",
		"search Buy milk",
		"tags work,urgent",
		"add Buy bread",
		"edit 1",
		"done=true 1",
		"done=false 1",
		"toggle 1",
		"delete 2",
		"undo",
		"show 1",
		"exists 1",
		"count milk",
		"range 2026-01-01 2026-12-31",
		"export",
		"refresh",
	}, exec.calls)

	out := strings.Join(*printed, "")
	assert.Contains(t, out, "Available commands:")
	assert.Contains(t, out, "Unknown command: foobar")
	assert.Contains(t, out, "Bye!")
	assert.NotContains(t, out, "todo status>")
}

func TestRunREPL_PrintsErrorsAndPrompt(t *testing.T) {
	printed := capturePrintln(t)

	exec := &fakeExec{err: errors.New("boom"), tty: true}
	runREPL(context.Background(), exec, func() string { return "(online)" }, rdr("list\n"))

	assert.Equal(t, []string{"list"}, exec.calls)
	assert.Equal(t, []string{
		"todo (online)> \n",
		"Error: boom\n",
		"todo (online)> \n",
	}, *printed)
}
