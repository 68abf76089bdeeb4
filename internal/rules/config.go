package rules

import (
	"fmt"
	"sort"
)

// ProgramRules is one program's rules as written in the config file.
type ProgramRules struct {
	RejectFlags []string                `yaml:"reject_flags" toml:"reject_flags"`
	Subcommands map[string]ProgramRules `yaml:"subcommands" toml:"subcommands"`
}

// Deny blocks the named programs outright.
func Deny(progs ...string) CheckFunc {
	denied := make(map[string]bool, len(progs))
	for _, p := range progs {
		denied[p] = true
	}
	return func(prog string, _ []string) error {
		if denied[prog] {
			return fmt.Errorf("program is denied by configuration")
		}
		return nil
	}
}

// Compile turns one program's configured rules into checks. Subcommand
// rules look only at the arguments after the subcommand.
func Compile(name string, cfg ProgramRules) []CheckFunc {
	var fns []CheckFunc
	if len(cfg.RejectFlags) > 0 {
		flags := cfg.RejectFlags
		fns = append(fns, func(prog string, args []string) error {
			if prog == name && hasAnyFlag(args, flags...) {
				return fmt.Errorf("rejected flag, one of %v", flags)
			}
			return nil
		})
	}

	subs := make([]string, 0, len(cfg.Subcommands))
	for sub := range cfg.Subcommands {
		subs = append(subs, sub)
	}
	sort.Strings(subs)
	for _, sub := range subs {
		flags := cfg.Subcommands[sub].RejectFlags
		if len(flags) == 0 {
			continue
		}
		fns = append(fns, func(prog string, args []string) error {
			if prog != name || len(args) == 0 || args[0] != sub {
				return nil
			}
			if hasAnyFlag(args[1:], flags...) {
				return fmt.Errorf("%s: rejected flag, one of %v", sub, flags)
			}
			return nil
		})
	}
	return fns
}

// CompileAll compiles every program's rules in name order.
func CompileAll(programs map[string]ProgramRules) []CheckFunc {
	names := make([]string, 0, len(programs))
	for name := range programs {
		names = append(names, name)
	}
	sort.Strings(names)

	var fns []CheckFunc
	for _, name := range names {
		fns = append(fns, Compile(name, programs[name])...)
	}
	return fns
}
