package pipeline

import (
	"errors"
	"fmt"

	"github.com/marcelocantos/xsh/internal/builtin"
)

// ErrSyntax is wrapped by every structural error in a command line or chain.
var ErrSyntax = errors.New("syntax error")

// Token is one lexical element of a command line.
type Token struct {
	Text string
	Op   bool // true for | and >
}

// Tokenize splits a line into words and operators. Words are separated by
// ASCII whitespace; | and > are operators even without surrounding spaces.
// The line is scanned byte by byte, so words keep their bytes exactly,
// whether or not they are valid UTF-8.
func Tokenize(line string) []Token {
	var toks []Token
	start := -1
	flush := func(end int) {
		if start >= 0 {
			toks = append(toks, Token{Text: line[start:end]})
			start = -1
		}
	}
	for i := 0; i < len(line); i++ {
		switch b := line[i]; {
		case isSpace(b):
			flush(i)
		case b == '|' || b == '>':
			flush(i)
			toks = append(toks, Token{Text: line[i : i+1], Op: true})
		case start < 0:
			start = i
		}
	}
	flush(len(line))
	return toks
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

// Parse builds a command chain from a line. It tokenizes the whole line
// first and then checks the shape of the result, so no parser state crosses
// token boundaries. Stages whose program name is in table become Builtin
// nodes. An empty line yields an empty chain.
func Parse(line string, table *builtin.Table) (*Chain, error) {
	toks := Tokenize(line)
	c := NewChain()
	if len(toks) == 0 {
		return c, nil
	}

	// First pass: split on operators.
	var (
		stages   [][]string
		current  []string
		redirect []string
		seenOut  bool
	)
	for _, tok := range toks {
		switch {
		case !tok.Op && seenOut:
			redirect = append(redirect, tok.Text)
		case !tok.Op:
			current = append(current, tok.Text)
		case seenOut:
			return nil, fmt.Errorf("%w: unexpected %s after redirect", ErrSyntax, tok.Text)
		case tok.Text == OpPipe:
			if len(current) == 0 {
				return nil, fmt.Errorf("%w: empty stage before %s", ErrSyntax, OpPipe)
			}
			stages = append(stages, current)
			current = nil
		case tok.Text == OpRedirectOut:
			if len(current) == 0 {
				return nil, fmt.Errorf("%w: missing command before %s", ErrSyntax, OpRedirectOut)
			}
			seenOut = true
		}
	}
	if len(current) == 0 {
		return nil, fmt.Errorf("%w: empty stage after %s", ErrSyntax, OpPipe)
	}
	stages = append(stages, current)

	// Second pass: build and validate the chain.
	for _, args := range stages {
		kind := External
		if table.Has(args[0]) {
			kind = Builtin
		}
		c.Append(kind, args...)
	}
	if seenOut {
		if len(redirect) != 1 {
			return nil, fmt.Errorf("%w: %s requires exactly one file path", ErrSyntax, OpRedirectOut)
		}
		c.Append(RedirectTarget, redirect...)
	}
	if err := c.Validate(table); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the structural invariants of a chain. Call it before
// running a chain that did not come from Parse.
func (c *Chain) Validate(table *builtin.Table) error {
	if c.Empty() {
		return nil
	}
	order := c.Order()
	if len(order) != len(c.Nodes) {
		return fmt.Errorf("%w: chain links %d of %d nodes", ErrSyntax, len(order), len(c.Nodes))
	}
	for pos, i := range order {
		n := c.Nodes[i]
		switch n.Kind {
		case RedirectTarget:
			if pos == 0 {
				return fmt.Errorf("%w: redirect without a command", ErrSyntax)
			}
			if pos != len(order)-1 {
				return fmt.Errorf("%w: redirect target must be last", ErrSyntax)
			}
			if len(n.Args) != 1 {
				return fmt.Errorf("%w: redirect target needs one path, got %d", ErrSyntax, len(n.Args))
			}
		case Builtin, External:
			if len(n.Args) == 0 {
				return fmt.Errorf("%w: stage %d is empty", ErrSyntax, pos)
			}
			if isBuiltin := table.Has(n.Args[0]); isBuiltin != (n.Kind == Builtin) {
				return fmt.Errorf("%w: stage %d (%s) classified as %s", ErrSyntax, pos, n.Args[0], n.Kind)
			}
		default:
			return fmt.Errorf("%w: stage %d has unknown kind %d", ErrSyntax, pos, int(n.Kind))
		}
	}
	return nil
}
