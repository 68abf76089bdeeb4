package builtin

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func dispatch(t *testing.T, argv ...string) (int, string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	status, err := Default().Dispatch(context.Background(), argv, strings.NewReader(""), &stdout, &stderr)
	return status, stdout.String(), stderr.String(), err
}

func TestDefaultTable(t *testing.T) {
	tab := Default()
	var names []string
	for _, b := range tab.All() {
		names = append(names, b.Name())
	}
	if got := strings.Join(names, ","); got != "cd,exit,pwd" {
		t.Errorf("expected cd,exit,pwd, got %s", got)
	}
	if tab.Has("ls") {
		t.Error("ls must not be a builtin")
	}
}

func TestNilTableLookup(t *testing.T) {
	var tab *Table
	if tab.Has("cd") {
		t.Error("nil table should have no builtins")
	}
}

func TestPwd(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	status, out, _, err := dispatch(t, "pwd")
	if err != nil || status != 0 {
		t.Fatalf("pwd: status %d, err %v", status, err)
	}
	want, _ := os.Getwd()
	if got := strings.TrimSpace(out); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestPwdRejectsArgs(t *testing.T) {
	status, out, errOut, _ := dispatch(t, "pwd", "-L")
	if status != 1 {
		t.Errorf("expected status 1, got %d", status)
	}
	if out != "" {
		t.Errorf("expected no output, got %q", out)
	}
	if errOut != "pwd: wrong arguments\n" {
		t.Errorf("unexpected stderr %q", errOut)
	}
}

func TestCdChangesDirectory(t *testing.T) {
	t.Chdir(t.TempDir())
	target := t.TempDir()

	status, _, _, err := dispatch(t, "cd", target)
	if err != nil || status != 0 {
		t.Fatalf("cd: status %d, err %v", status, err)
	}
	got, _ := os.Getwd()
	want, _ := filepath.EvalSymlinks(target)
	if gotReal, _ := filepath.EvalSymlinks(got); gotReal != want {
		t.Errorf("expected cwd %q, got %q", want, gotReal)
	}
}

func TestCdMissingDirectory(t *testing.T) {
	start := t.TempDir()
	t.Chdir(start)
	before, _ := os.Getwd()

	status, _, errOut, err := dispatch(t, "cd", "/does/not/exist")
	if err != nil {
		t.Fatal(err)
	}
	if status != 1 {
		t.Errorf("expected status 1, got %d", status)
	}
	if !strings.HasPrefix(errOut, "/does/not/exist: ") {
		t.Errorf("unexpected stderr %q", errOut)
	}
	after, _ := os.Getwd()
	if before != after {
		t.Errorf("cwd changed from %q to %q", before, after)
	}
}

func TestCdWrongArguments(t *testing.T) {
	for _, argv := range [][]string{{"cd"}, {"cd", "a", "b"}} {
		status, _, errOut, _ := dispatch(t, argv...)
		if status != 1 {
			t.Errorf("%v: expected status 1, got %d", argv, status)
		}
		if errOut != "cd: wrong arguments\n" {
			t.Errorf("%v: unexpected stderr %q", argv, errOut)
		}
	}
}

func TestExit(t *testing.T) {
	status, _, _, err := dispatch(t, "exit")
	if !errors.Is(err, ErrExit) {
		t.Fatalf("expected ErrExit, got %v", err)
	}
	if status != 0 {
		t.Errorf("expected status 0, got %d", status)
	}
}

func TestExitTooManyArguments(t *testing.T) {
	status, _, errOut, err := dispatch(t, "exit", "3")
	if err != nil {
		t.Fatalf("exit with args must not terminate, got %v", err)
	}
	if status != 1 || errOut != "exit: too many arguments\n" {
		t.Errorf("status %d, stderr %q", status, errOut)
	}
}

func TestDispatchUnknown(t *testing.T) {
	if _, _, _, err := dispatch(t, "ls"); err == nil {
		t.Error("expected error for unknown builtin")
	}
}
