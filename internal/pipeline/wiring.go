package pipeline

// Endpoint says where one side of a stage's standard streams is attached.
type Endpoint int

const (
	Coordinator Endpoint = iota // the shell's own stdin or stdout
	Pipe                        // a pipe shared with the neighbouring stage
	Redirect                    // the opened redirect file (stdout only)
)

// Wiring describes the standard streams of one execution stage. PipeIn and
// PipeOut index the pipes created for the run: stage i reads pipe i-1 and
// writes pipe i.
type Wiring struct {
	Node    int // index into Chain.Nodes
	Stdin   Endpoint
	Stdout  Endpoint
	PipeIn  int // -1 unless Stdin == Pipe
	PipeOut int // -1 unless Stdout == Pipe
}

// Plan computes the wiring of every execution stage of c. A chain with k
// execution stages uses exactly k-1 pipes; only the terminal stage may write
// to the redirect file.
func Plan(c *Chain) []Wiring {
	exec := c.Exec()
	_, redirected := c.Redirect()
	plan := make([]Wiring, len(exec))
	for i, idx := range exec {
		w := Wiring{Node: idx, PipeIn: -1, PipeOut: -1}
		if i > 0 {
			w.Stdin = Pipe
			w.PipeIn = i - 1
		}
		switch {
		case i < len(exec)-1:
			w.Stdout = Pipe
			w.PipeOut = i
		case redirected:
			w.Stdout = Redirect
		}
		plan[i] = w
	}
	return plan
}

// PipeCount returns the number of pipes a plan needs.
func PipeCount(plan []Wiring) int {
	if len(plan) == 0 {
		return 0
	}
	return len(plan) - 1
}
