package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/marcelocantos/xsh/internal/builtin"
	"github.com/marcelocantos/xsh/internal/history"
)

// RunHistory handles the xsh history subcommand.
func RunHistory(w io.Writer, path string, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(w, "usage: xsh history <verify|show [n]>")
		return 1
	}

	switch args[0] {
	case "verify":
		if err := history.Verify(path); err != nil {
			fmt.Fprintf(w, "history verification FAILED: %v\n", err)
			return 1
		}
		fmt.Fprintln(w, "history integrity verified")
		return 0

	case "show", "tail":
		n := 20
		if len(args) > 1 {
			v, err := strconv.Atoi(args[1])
			if err != nil || v <= 0 {
				fmt.Fprintf(w, "xsh history: invalid count %q\n", args[1])
				return 1
			}
			n = v
		}
		entries, err := history.Tail(path, n)
		if err != nil {
			fmt.Fprintf(w, "xsh history: %v\n", err)
			return 1
		}
		if len(entries) == 0 {
			fmt.Fprintln(w, "no history entries")
			return 0
		}
		for _, e := range entries {
			data, _ := json.MarshalIndent(e, "", "  ")
			fmt.Fprintf(w, "%s\n", data)
		}
		return 0

	default:
		fmt.Fprintf(w, "xsh history: unknown subcommand %q\n", args[0])
		return 1
	}
}

// RunBuiltins lists the builtins of table.
func RunBuiltins(w io.Writer, table *builtin.Table) int {
	for _, b := range table.All() {
		fmt.Fprintf(w, "  %-6s %s\n", b.Name(), b.Description())
	}
	return 0
}
