package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/marcelocantos/xsh/internal/builtin"
	"github.com/marcelocantos/xsh/internal/history"
	"github.com/marcelocantos/xsh/internal/pipeline"
	"github.com/marcelocantos/xsh/internal/rules"
)

// Exit codes used when the shell itself terminates.
const (
	ExitOK     = 0
	ExitSyntax = 2
	ExitFatal  = 3
)

// Shell ties the pipeline engine to the history log.
type Shell struct {
	Engine  *pipeline.Engine
	History *history.Logger // nil disables history
	Rules   *rules.RuleSet  // nil runs every chain
}

func (s *Shell) stderr() io.Writer {
	if s.Engine.Stderr == nil {
		return os.Stderr
	}
	return s.Engine.Stderr
}

// RunLine executes one command line. It returns the line's status and
// whether the shell should stop: after the exit builtin or a fatal error.
func (s *Shell) RunLine(ctx context.Context, line string) (status int, stop bool) {
	status, stop, _ = s.runLine(ctx, line)
	return status, stop
}

func (s *Shell) runLine(ctx context.Context, line string) (status int, stop bool, err error) {
	start := time.Now()
	c, status, err := s.execute(ctx, line)
	duration := time.Since(start)
	if err == nil && c.Empty() {
		return 0, false, nil
	}

	var fatal *pipeline.FatalError
	switch {
	case err == nil:
	case errors.Is(err, pipeline.ErrSyntax):
		fmt.Fprintf(s.stderr(), "%s: %v\n", s.Engine.Name, err)
		status = ExitSyntax
	case errors.Is(err, builtin.ErrExit):
		stop = true
	case errors.Is(err, rules.ErrBlocked):
		fmt.Fprintf(s.stderr(), "%s: %v\n", s.Engine.Name, err)
	case errors.As(err, &fatal):
		// Already reported by the engine.
		status = ExitFatal
		stop = true
	default:
		fmt.Fprintf(s.stderr(), "%s: %v\n", s.Engine.Name, err)
	}

	s.logHistory(line, c, status, err, duration)
	return status, stop, err
}

func (s *Shell) execute(ctx context.Context, line string) (*pipeline.Chain, int, error) {
	c, err := pipeline.Parse(line, s.Engine.Builtins)
	if err != nil {
		return nil, ExitSyntax, err
	}
	if err := s.Rules.CheckChain(c); err != nil {
		return c, 1, err
	}
	status, err := s.Engine.Run(ctx, c)
	return c, status, err
}

// Exec runs line against the given streams instead of the engine's own.
// The error is non-nil for syntax errors, fatal errors and the exit
// builtin.
func (s *Shell) Exec(ctx context.Context, line string, stdin io.Reader, stdout, stderr io.Writer) (status int, stop bool, err error) {
	eng := *s.Engine
	eng.Stdin = stdin
	eng.Stdout = stdout
	eng.Stderr = stderr
	sh := &Shell{Engine: &eng, History: s.History, Rules: s.Rules}
	return sh.runLine(ctx, line)
}

func (s *Shell) logHistory(line string, c *pipeline.Chain, status int, err error, duration time.Duration) {
	if s.History == nil {
		return
	}
	if errors.Is(err, builtin.ErrExit) {
		err = nil
	}
	cwd, _ := os.Getwd()
	rec := history.Record{
		Line:     line,
		ExitCode: status,
		Err:      err,
		Duration: duration,
		Cwd:      cwd,
	}
	if c != nil {
		rec.Stages = c.Names()
		rec.Statuses = c.Statuses()
		_, rec.Redirected = c.Redirect()
	}
	// Best-effort: a history failure never fails the command.
	if err := s.History.Log(rec); err != nil {
		fmt.Fprintf(s.stderr(), "%s: history: %v\n", s.Engine.Name, err)
	}
}
