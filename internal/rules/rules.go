// Package rules blocks pipeline stages whose program and arguments match a
// deny rule. Front ends that run lines on behalf of others check a chain
// before handing it to the engine.
package rules

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/marcelocantos/xsh/internal/pipeline"
)

// ErrBlocked is wrapped by every rule violation.
var ErrBlocked = errors.New("blocked")

// CheckFunc inspects one stage. prog is the program's base name and args
// excludes it. A non-nil error blocks the whole chain.
type CheckFunc func(prog string, args []string) error

// RuleSet runs built-in rules first, then configured ones.
type RuleSet struct {
	builtin []CheckFunc
	config  []CheckFunc
}

// NewRuleSet creates a RuleSet with the given built-in rules.
func NewRuleSet(builtin ...CheckFunc) *RuleSet {
	return &RuleSet{builtin: builtin}
}

// Default returns a RuleSet holding the built-in rules.
func Default() *RuleSet {
	return NewRuleSet(checkRmCatastrophic)
}

// Add appends a configured rule.
func (rs *RuleSet) Add(fns ...CheckFunc) {
	rs.config = append(rs.config, fns...)
}

// Check runs every rule against one stage.
func (rs *RuleSet) Check(prog string, args []string) error {
	if rs == nil {
		return nil
	}
	prog = filepath.Base(prog)
	for _, fns := range [][]CheckFunc{rs.builtin, rs.config} {
		for _, fn := range fns {
			if err := fn(prog, args); err != nil {
				return fmt.Errorf("%w: %s: %w", ErrBlocked, prog, err)
			}
		}
	}
	return nil
}

// CheckChain checks every execution stage of c in chain order and returns
// the first violation.
func (rs *RuleSet) CheckChain(c *pipeline.Chain) error {
	if rs == nil {
		return nil
	}
	for _, i := range c.Exec() {
		args := c.Nodes[i].Args
		if len(args) == 0 {
			continue
		}
		if err := rs.Check(args[0], args[1:]); err != nil {
			return err
		}
	}
	return nil
}

// hasAnyFlag reports whether args carry any of flags. "-rf" carries "-r"
// and "-f", "-j4" carries "-j", and "--force=yes" carries "--force".
func hasAnyFlag(args []string, flags ...string) bool {
	for _, arg := range args {
		if arg == "" || arg[0] != '-' {
			continue
		}
		if arg == "--" {
			return false
		}
		for _, flag := range flags {
			if arg == flag {
				return true
			}
			if len(flag) == 2 && flag[0] == '-' && flag[1] != '-' &&
				len(arg) > 2 && arg[1] != '-' {
				if strings.ContainsRune(arg[1:], rune(flag[1])) {
					return true
				}
			}
			if strings.HasPrefix(flag, "--") && strings.HasPrefix(arg, flag+"=") {
				return true
			}
		}
	}
	return false
}

// checkRmCatastrophic refuses recursive removal of /, ~, . or ..
func checkRmCatastrophic(prog string, args []string) error {
	if prog != "rm" || !hasAnyFlag(args, "-r", "-R", "--recursive") {
		return nil
	}
	for _, arg := range args {
		if arg == "" || arg[0] == '-' {
			continue
		}
		switch filepath.Clean(arg) {
		case "/", ".", "..", "~":
			return fmt.Errorf("refusing to recursively remove %q", arg)
		}
	}
	return nil
}
