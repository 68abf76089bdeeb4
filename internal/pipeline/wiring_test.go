package pipeline

import (
	"testing"

	"github.com/marcelocantos/xsh/internal/builtin"
)

func mustParse(t *testing.T, line string) *Chain {
	t.Helper()
	c, err := Parse(line, builtin.Default())
	if err != nil {
		t.Fatalf("parse %q: %v", line, err)
	}
	return c
}

func TestPlanSingleStage(t *testing.T) {
	plan := Plan(mustParse(t, "ls"))
	if len(plan) != 1 || PipeCount(plan) != 0 {
		t.Fatalf("expected one stage and no pipes, got %d/%d", len(plan), PipeCount(plan))
	}
	w := plan[0]
	if w.Stdin != Coordinator || w.Stdout != Coordinator || w.PipeIn != -1 || w.PipeOut != -1 {
		t.Errorf("unexpected wiring %+v", w)
	}
}

func TestPlanPipeCount(t *testing.T) {
	cases := []struct {
		line  string
		pipes int
	}{
		{"a", 0},
		{"a > f", 0},
		{"a | b", 1},
		{"a | b > f", 1},
		{"a | b | c", 2},
		{"a | b | c > f", 2},
		{"a | b | c | d | e", 4},
	}
	for _, tc := range cases {
		c := mustParse(t, tc.line)
		if got := PipeCount(Plan(c)); got != tc.pipes {
			t.Errorf("%q: expected %d pipes, got %d", tc.line, tc.pipes, got)
		}
		// k-1 pipes for a chain of length k, one fewer with a redirect.
		want := len(c.Nodes) - 1
		if _, ok := c.Redirect(); ok {
			want--
		}
		if tc.pipes != want {
			t.Errorf("%q: table disagrees with chain length", tc.line)
		}
	}
}

func TestPlanThreeStagesWithRedirect(t *testing.T) {
	plan := Plan(mustParse(t, "cmdA | cmdB | cmdC > file"))
	expected := []Wiring{
		{Node: 0, Stdin: Coordinator, Stdout: Pipe, PipeIn: -1, PipeOut: 0},
		{Node: 1, Stdin: Pipe, Stdout: Pipe, PipeIn: 0, PipeOut: 1},
		{Node: 2, Stdin: Pipe, Stdout: Redirect, PipeIn: 1, PipeOut: -1},
	}
	if len(plan) != len(expected) {
		t.Fatalf("expected %d stages, got %d", len(expected), len(plan))
	}
	for i, e := range expected {
		if plan[i] != e {
			t.Errorf("stage %d: expected %+v, got %+v", i, e, plan[i])
		}
	}
}
