package builtin

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Cd changes the shell's working directory.
type Cd struct{}

func (c *Cd) Name() string        { return "cd" }
func (c *Cd) Description() string { return "change the shell's working directory" }

func (c *Cd) Validate(args []string) error {
	if len(args) != 1 {
		return &UsageError{Msg: "wrong arguments"}
	}
	return nil
}

func (c *Cd) Run(_ context.Context, args []string, _ io.Reader, _, _ io.Writer) error {
	if err := os.Chdir(args[0]); err != nil {
		// Drop the "chdir" op so the message reads "<dir>: <reason>".
		if pe, ok := err.(*os.PathError); ok {
			return fmt.Errorf("%s: %v", args[0], pe.Err)
		}
		return fmt.Errorf("%s: %v", args[0], err)
	}
	return nil
}

// Pwd prints the shell's working directory.
type Pwd struct{}

func (p *Pwd) Name() string        { return "pwd" }
func (p *Pwd) Description() string { return "print the shell's working directory" }

func (p *Pwd) Validate(args []string) error {
	if len(args) != 0 {
		return &UsageError{Msg: "wrong arguments"}
	}
	return nil
}

func (p *Pwd) Run(_ context.Context, _ []string, _ io.Reader, stdout, _ io.Writer) error {
	dir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("pwd: cannot get working directory")
	}
	_, err = fmt.Fprintln(stdout, dir)
	return err
}

// Exit terminates the shell. Later stages of the same line are not run.
type Exit struct{}

func (e *Exit) Name() string        { return "exit" }
func (e *Exit) Description() string { return "terminate the shell" }

func (e *Exit) Validate(args []string) error {
	if len(args) != 0 {
		return &UsageError{Msg: "too many arguments"}
	}
	return nil
}

func (e *Exit) Run(_ context.Context, _ []string, _ io.Reader, _, _ io.Writer) error {
	return ErrExit
}
