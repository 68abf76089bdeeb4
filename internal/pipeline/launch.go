package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// FatalError reports resource exhaustion (pipe or process creation failure).
// The rest of the line is abandoned and the shell is expected to terminate.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

type launched struct {
	node int
	cmd  *exec.Cmd
}

// launch starts the external stage at node idx without waiting for it.
// A program that cannot be resolved or executed is reported and completes
// with status 1, as does a stage whose line was cancelled before it could
// start. Any other start failure is fatal.
func (r *run) launch(ctx context.Context, idx int, stdin io.Reader, stdout io.Writer) error {
	n := &r.c.Nodes[idx]
	cmd := exec.CommandContext(ctx, n.Args[0], n.Args[1:]...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = r.e.stderr()
	cmd.Env = r.e.Env

	n.Started = time.Now()
	if err := cmd.Start(); err != nil {
		switch {
		case ctx.Err() != nil:
			fmt.Fprintf(r.e.stderr(), "%s: %s: %v\n", r.e.Name, n.Args[0], ctx.Err())
		case unresolvable(err):
			fmt.Fprintf(r.e.stderr(), "%s: command not found: %s\n", r.e.Name, n.Args[0])
		default:
			return &FatalError{Op: "start " + n.Args[0], Err: err}
		}
		r.complete(idx, 1)
		return nil
	}
	n.Pid = cmd.Process.Pid
	r.launched = append(r.launched, launched{node: idx, cmd: cmd})
	return nil
}

// unresolvable reports whether a start error means the program could not be
// found or executed, as opposed to the system running out of resources.
func unresolvable(err error) bool {
	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, exec.ErrDot):
		return true
	case errors.Is(err, unix.ENOENT), errors.Is(err, unix.EACCES),
		errors.Is(err, unix.ENOEXEC), errors.Is(err, unix.ENOTDIR),
		errors.Is(err, unix.EISDIR), errors.Is(err, unix.ELOOP),
		errors.Is(err, unix.ENAMETOOLONG):
		return true
	}
	return false
}

// exitStatus converts the result of Wait into a shell status. A child killed
// by signal n reports 128+n.
func exitStatus(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return 128 + int(ws.Signal())
		}
		return exitErr.ExitCode()
	}
	return 1
}
