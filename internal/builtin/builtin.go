// Package builtin implements the commands xsh runs inside its own process
// instead of forking a child: cd, pwd and exit.
package builtin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
)

// ErrExit is returned by the exit builtin. The caller is expected to stop
// executing the current line and terminate the shell.
var ErrExit = errors.New("exit requested")

// UsageError reports a wrong argument count. Dispatch prints it prefixed by
// the builtin name, the way the shell has always reported these.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string {
	return e.Msg
}

// Builtin is the interface every in-process command implements.
type Builtin interface {
	// Name returns the command name matched against the first argument of
	// a pipeline stage.
	Name() string

	// Description returns a human-readable summary for help output.
	Description() string

	// Validate checks args (excluding the command name) before execution.
	Validate(args []string) error

	// Run executes the builtin against the streams wired for its stage.
	Run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error
}

// Table maps command names to builtins. It is fixed after construction.
type Table struct {
	entries map[string]Builtin
}

// NewTable creates a table holding the given builtins.
func NewTable(bs ...Builtin) *Table {
	t := &Table{entries: make(map[string]Builtin, len(bs))}
	for _, b := range bs {
		t.entries[b.Name()] = b
	}
	return t
}

// Default returns the table of the three builtins xsh recognizes.
func Default() *Table {
	return NewTable(&Cd{}, &Pwd{}, &Exit{})
}

// Lookup returns the builtin registered under name.
func (t *Table) Lookup(name string) (Builtin, bool) {
	if t == nil {
		return nil, false
	}
	b, ok := t.entries[name]
	return b, ok
}

// Has reports whether name is a builtin.
func (t *Table) Has(name string) bool {
	_, ok := t.Lookup(name)
	return ok
}

// All returns all builtins sorted by name.
func (t *Table) All() []Builtin {
	bs := make([]Builtin, 0, len(t.entries))
	for _, b := range t.entries {
		bs = append(bs, b)
	}
	sort.Slice(bs, func(i, j int) bool {
		return bs[i].Name() < bs[j].Name()
	})
	return bs
}

// Dispatch runs the builtin named by argv[0] and converts its outcome into a
// shell status. Usage and runtime errors are reported on stderr and yield
// status 1. ErrExit is passed through with status 0.
func (t *Table) Dispatch(ctx context.Context, argv []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	if len(argv) == 0 {
		return 1, fmt.Errorf("empty builtin invocation")
	}
	b, ok := t.Lookup(argv[0])
	if !ok {
		return 1, fmt.Errorf("unknown builtin: %q", argv[0])
	}

	args := argv[1:]
	if err := b.Validate(args); err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", b.Name(), err)
		return 1, nil
	}

	err := b.Run(ctx, args, stdin, stdout, stderr)
	switch {
	case err == nil:
		return 0, nil
	case errors.Is(err, ErrExit):
		return 0, err
	default:
		fmt.Fprintln(stderr, err)
		return 1, nil
	}
}
