package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// Prompt prints the interactive prompt.
type Prompt struct {
	Text  string
	Color *color.Color // nil prints plain text
}

// NewPrompt builds a prompt from its text and a color name such as "cyan".
// Unknown or empty names give an uncolored prompt.
func NewPrompt(text, colorName string) *Prompt {
	attrs := map[string]color.Attribute{
		"black":   color.FgBlack,
		"red":     color.FgRed,
		"green":   color.FgGreen,
		"yellow":  color.FgYellow,
		"blue":    color.FgBlue,
		"magenta": color.FgMagenta,
		"cyan":    color.FgCyan,
		"white":   color.FgWhite,
	}
	p := &Prompt{Text: text}
	if a, ok := attrs[colorName]; ok {
		p.Color = color.New(a, color.Bold)
	}
	return p
}

func (p *Prompt) print(w io.Writer) {
	if p.Color != nil {
		p.Color.Fprint(w, p.Text)
		return
	}
	fmt.Fprint(w, p.Text)
}

// interactive reports whether r is a terminal.
func interactive(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// MaxLine bounds the length of one input line.
const MaxLine = 16 << 20

// RunREPL reads lines from in and runs each one until end of input, the exit
// builtin or a fatal error. The prompt is shown only when in is a terminal.
// Each line runs under its own context derived from ctx; a value received on
// interrupts cancels the line in progress and is discarded at the prompt.
// It returns the shell's exit code.
func (s *Shell) RunREPL(ctx context.Context, in io.Reader, out io.Writer, prompt *Prompt, interrupts <-chan os.Signal) int {
	showPrompt := prompt != nil && interactive(in)
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), MaxLine)

	var lc lineCanceller
	done := make(chan struct{})
	defer close(done)
	go lc.forward(interrupts, done)

	for {
		if showPrompt {
			prompt.print(out)
		}
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				fmt.Fprintf(s.stderr(), "%s: read: %v\n", s.Engine.Name, err)
			}
			if showPrompt {
				fmt.Fprintln(out)
			}
			return ExitOK
		}
		status, stop := s.RunLine(lc.start(ctx), sc.Text())
		lc.finish()
		if stop {
			if status == ExitFatal {
				return ExitFatal
			}
			return ExitOK
		}
	}
}

// lineCanceller holds the cancel function of the line being run, if any.
type lineCanceller struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

func (lc *lineCanceller) start(ctx context.Context) context.Context {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	ctx, lc.cancel = context.WithCancel(ctx)
	return ctx
}

func (lc *lineCanceller) finish() {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if lc.cancel != nil {
		lc.cancel()
		lc.cancel = nil
	}
}

// forward cancels the current line for every value on interrupts until done
// is closed. A nil channel never delivers.
func (lc *lineCanceller) forward(interrupts <-chan os.Signal, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-interrupts:
			lc.finish()
		}
	}
}
