package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/marcelocantos/xsh/internal/builtin"
)

// Engine runs command chains. Its stream fields are the shell's own standard
// streams; Run derives per-stage streams from them and never rebinds them,
// so they are the same targets after every run, whatever the chain did.
type Engine struct {
	Name     string // shell name used in error messages
	Builtins *builtin.Table
	Stdin    io.Reader
	Stdout   io.Writer
	Stderr   io.Writer
	Redirect RedirectPolicy
	Env      []string // environment of external stages; nil inherits the shell's
}

// New creates an engine bound to the process's standard streams.
func New(name string, table *builtin.Table) *Engine {
	return &Engine{
		Name:     name,
		Builtins: table,
		Stdin:    os.Stdin,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	}
}

func (e *Engine) stdin() io.Reader {
	if e.Stdin == nil {
		return os.Stdin
	}
	return e.Stdin
}

func (e *Engine) stdout() io.Writer {
	if e.Stdout == nil {
		return os.Stdout
	}
	return e.Stdout
}

func (e *Engine) stderr() io.Writer {
	if e.Stderr == nil {
		return os.Stderr
	}
	return e.Stderr
}

// ExecuteLine parses line and runs the resulting chain.
func (e *Engine) ExecuteLine(ctx context.Context, line string) (*Chain, int, error) {
	c, err := Parse(line, e.Builtins)
	if err != nil {
		return nil, 2, err
	}
	status, err := e.Run(ctx, c)
	return c, status, err
}

// Run executes c and returns the status of its terminal stage.
//
// External stages are all launched, left to right, before the first wait;
// builtins run inline when their position is reached. The returned error is
// nil for ordinary outcomes, including failing commands. It wraps ErrSyntax
// for a malformed chain (nothing is run, status 2), is a *FatalError when a
// pipe or process could not be created, and is builtin.ErrExit when the exit
// builtin ran.
func (e *Engine) Run(ctx context.Context, c *Chain) (int, error) {
	if c.Empty() {
		return 0, nil
	}
	if err := c.Validate(e.Builtins); err != nil {
		return 2, err
	}
	r := &run{e: e, c: c, open: make(map[*os.File]bool)}
	defer r.release()
	return r.execute(ctx)
}

// run holds the state of one execution of a chain.
type run struct {
	e        *Engine
	c        *Chain
	open     map[*os.File]bool // descriptors owned by the coordinator
	launched []launched
}

func (r *run) execute(ctx context.Context) (int, error) {
	plan := Plan(r.c)
	r.c.Pipes = 0

	var out io.Writer = r.e.stdout()
	if path, ok := r.c.Redirect(); ok {
		f, err := OpenRedirect(path)
		if err != nil {
			fmt.Fprintf(r.e.stderr(), "%s: %v\n", r.e.Name, err)
			if r.e.Redirect == RedirectAbort {
				return 1, nil
			}
		} else {
			r.track(f)
			out = f
		}
	}

	var prevRead *os.File
	for _, w := range plan {
		var stdin io.Reader = r.e.stdin()
		if w.Stdin == Pipe {
			stdin = prevRead
		}

		var (
			stdout              = r.e.stdout()
			nextRead, nextWrite *os.File
		)
		switch w.Stdout {
		case Pipe:
			pr, pw, err := os.Pipe()
			if err != nil {
				return r.abort(&FatalError{Op: "pipe", Err: err})
			}
			r.track(pr, pw)
			r.c.Pipes++
			nextRead, nextWrite = pr, pw
			stdout = pw
		case Redirect:
			stdout = out
		}

		n := &r.c.Nodes[w.Node]
		switch n.Kind {
		case Builtin:
			n.Started = time.Now()
			status, err := r.e.Builtins.Dispatch(ctx, n.Args, stdin, stdout, r.e.stderr())
			r.complete(w.Node, status)
			if errors.Is(err, builtin.ErrExit) {
				r.abandon()
				return status, err
			}
			if err != nil {
				fmt.Fprintf(r.e.stderr(), "%s: %v\n", r.e.Name, err)
			}
		case External:
			if err := r.launch(ctx, w.Node, stdin, stdout); err != nil {
				return r.abort(err)
			}
		}

		// The stage owns its ends now.
		r.close(prevRead)
		r.close(nextWrite)
		prevRead = nextRead
	}
	r.close(prevRead)

	r.wait()
	return r.c.Nodes[r.c.Terminal()].Status, nil
}

// wait reaps every launched child in chain order.
func (r *run) wait() {
	for _, l := range r.launched {
		err := l.cmd.Wait()
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			fmt.Fprintf(r.e.stderr(), "%s: %s: %v\n", r.e.Name, r.c.Nodes[l.node].Args[0], err)
		}
		r.complete(l.node, exitStatus(err))
	}
	r.launched = nil
}

func (r *run) complete(idx int, status int) {
	n := &r.c.Nodes[idx]
	n.Status = status
	n.Done = true
	n.Finished = time.Now()
}

// abort gives up on the rest of the chain after a fatal error. Descriptors
// are closed first so already-launched children see EOF, then they are reaped.
func (r *run) abort(err error) (int, error) {
	fmt.Fprintf(r.e.stderr(), "%s: %v\n", r.e.Name, err)
	r.release()
	r.wait()
	return 1, err
}

// abandon stops the chain for the exit builtin without blocking on children
// that are still running; they are reaped in the background.
func (r *run) abandon() {
	r.release()
	for _, l := range r.launched {
		go l.cmd.Wait()
	}
	r.launched = nil
}

func (r *run) track(fs ...*os.File) {
	for _, f := range fs {
		r.open[f] = true
	}
}

func (r *run) close(f *os.File) {
	if f == nil || !r.open[f] {
		return
	}
	delete(r.open, f)
	f.Close()
}

// release closes every descriptor the coordinator still owns. It is safe to
// call more than once.
func (r *run) release() {
	for f := range r.open {
		r.close(f)
	}
}
