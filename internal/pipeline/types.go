package pipeline

import (
	"strings"
	"time"
)

// Operator tokens recognized by the lexer.
const (
	OpPipe        = "|" // stdout of the left stage feeds stdin of the right stage
	OpRedirectOut = ">" // trailing redirect of the terminal stage's stdout to a file
)

// Kind classifies a node of a command chain.
type Kind int

const (
	External       Kind = iota // launched as a child process
	Builtin                    // run inside the shell process
	RedirectTarget             // names the file receiving the terminal stage's output
)

func (k Kind) String() string {
	switch k {
	case External:
		return "external"
	case Builtin:
		return "builtin"
	case RedirectTarget:
		return "redirect"
	default:
		return "kind(?)"
	}
}

// Node is one element of a command chain.
type Node struct {
	Args []string // program name first; the path for a RedirectTarget
	Kind Kind
	Next int // index of the following node in the chain, -1 at the end

	// Filled in by the coordinator.
	Pid      int // child pid for External nodes once launched
	Status   int // valid when Done is true
	Done     bool
	Started  time.Time
	Finished time.Time
}

// Chain is an ordered command chain. Nodes live in an arena and are linked by
// index, so a chain of any length is released without recursion.
type Chain struct {
	Nodes []Node
	Head  int // -1 for an empty chain

	// Pipes is the number of pipes created by the last run of this chain.
	Pipes int

	tail int
}

// NewChain returns an empty chain.
func NewChain() *Chain {
	return &Chain{Head: -1, tail: -1}
}

// Append adds a node to the end of the chain and returns its index.
func (c *Chain) Append(kind Kind, args ...string) int {
	idx := len(c.Nodes)
	c.Nodes = append(c.Nodes, Node{Args: args, Kind: kind, Next: -1})
	if idx == 0 {
		c.Head = idx
	} else {
		c.Nodes[c.tail].Next = idx
	}
	c.tail = idx
	return idx
}

// last returns the index of the final node, following links from Head.
func (c *Chain) last() int {
	if c.Empty() {
		return -1
	}
	i := c.Head
	for c.Nodes[i].Next >= 0 {
		i = c.Nodes[i].Next
	}
	return i
}

// Empty reports whether the chain holds no nodes.
func (c *Chain) Empty() bool {
	return c == nil || len(c.Nodes) == 0 || c.Head < 0
}

// Order returns node indices in chain order. It stops at a link that leaves
// the arena or after visiting every node, so a corrupt chain cannot loop.
func (c *Chain) Order() []int {
	var order []int
	if c.Empty() {
		return nil
	}
	for i := c.Head; i >= 0 && i < len(c.Nodes) && len(order) <= len(c.Nodes); i = c.Nodes[i].Next {
		order = append(order, i)
	}
	return order
}

// Exec returns the indices of the execution nodes (everything before a
// redirect target) in chain order.
func (c *Chain) Exec() []int {
	var exec []int
	if c.Empty() {
		return nil
	}
	for i := c.Head; i >= 0 && c.Nodes[i].Kind != RedirectTarget; i = c.Nodes[i].Next {
		exec = append(exec, i)
	}
	return exec
}

// Terminal returns the index of the terminal stage: the node immediately
// preceding a redirect target, or the last node. It returns -1 when the chain
// has no execution node.
func (c *Chain) Terminal() int {
	exec := c.Exec()
	if len(exec) == 0 {
		return -1
	}
	return exec[len(exec)-1]
}

// Redirect returns the path of the trailing redirect target, if any.
func (c *Chain) Redirect() (string, bool) {
	i := c.last()
	if i < 0 || c.Nodes[i].Kind != RedirectTarget || len(c.Nodes[i].Args) != 1 {
		return "", false
	}
	return c.Nodes[i].Args[0], true
}

// Names returns the program name of each execution node.
func (c *Chain) Names() []string {
	var names []string
	for _, i := range c.Exec() {
		if len(c.Nodes[i].Args) > 0 {
			names = append(names, c.Nodes[i].Args[0])
		}
	}
	return names
}

// Statuses returns the recorded status of each execution node; nodes that
// never completed report -1.
func (c *Chain) Statuses() []int {
	var st []int
	for _, i := range c.Exec() {
		if c.Nodes[i].Done {
			st = append(st, c.Nodes[i].Status)
		} else {
			st = append(st, -1)
		}
	}
	return st
}

// String renders the chain back into command-line form.
func (c *Chain) String() string {
	var parts []string
	for _, i := range c.Order() {
		n := c.Nodes[i]
		switch {
		case n.Kind == RedirectTarget:
			parts = append(parts, OpRedirectOut)
		case len(parts) > 0:
			parts = append(parts, OpPipe)
		}
		parts = append(parts, n.Args...)
	}
	return strings.Join(parts, " ")
}
