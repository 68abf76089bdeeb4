// Package history keeps an append-only, hash-chained log of the command
// lines a shell session executed.
package history

import "time"

// Entry is a single history record, stored as one JSON line.
type Entry struct {
	Seq        uint64    `json:"seq"`
	Time       time.Time `json:"ts"`
	PrevHash   string    `json:"prev_hash"`
	Session    string    `json:"session"`            // shell session id
	Line       string    `json:"line"`               // command line as typed
	Stages     []string  `json:"stages,omitempty"`   // program name of each stage
	Statuses   []int     `json:"statuses,omitempty"` // per-stage status, -1 if never completed
	ExitCode   int       `json:"exit_code"`
	Error      string    `json:"error,omitempty"`
	Duration   float64   `json:"duration_ms"`
	Cwd        string    `json:"cwd"`
	Redirected bool      `json:"redirected,omitempty"`
	Hash       string    `json:"hash"` // SHA-256 of this entry with Hash empty
}

// Record carries what the shell knows about one executed line.
type Record struct {
	Line       string
	Stages     []string
	Statuses   []int
	ExitCode   int
	Err        error
	Duration   time.Duration
	Cwd        string
	Redirected bool
}
