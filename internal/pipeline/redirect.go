package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// RedirectPolicy selects what happens when the redirect file cannot be
// opened.
type RedirectPolicy int

const (
	// RedirectAbort reports the failure and runs nothing; the line's status is 1.
	RedirectAbort RedirectPolicy = iota
	// RedirectDegrade reports the failure and runs the line with the terminal
	// stage writing to the shell's own stdout.
	RedirectDegrade
)

func (p RedirectPolicy) String() string {
	switch p {
	case RedirectAbort:
		return "abort"
	case RedirectDegrade:
		return "degrade"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParseRedirectPolicy converts a config string to a RedirectPolicy. The empty
// string selects RedirectAbort.
func ParseRedirectPolicy(s string) (RedirectPolicy, error) {
	switch s {
	case "", "abort":
		return RedirectAbort, nil
	case "degrade":
		return RedirectDegrade, nil
	default:
		return 0, fmt.Errorf("unknown redirect policy: %q", s)
	}
}

// OpenRedirect opens path as the destination of a trailing redirect:
// write-only, created if missing, truncated if present, mode 0666 before
// the umask.
func OpenRedirect(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		var pe *fs.PathError
		if errors.As(err, &pe) {
			return nil, fmt.Errorf("%s: %w", path, pe.Err)
		}
		return nil, err
	}
	return f, nil
}
