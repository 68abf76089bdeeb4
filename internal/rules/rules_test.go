package rules

import (
	"errors"
	"testing"

	"github.com/marcelocantos/xsh/internal/builtin"
	"github.com/marcelocantos/xsh/internal/pipeline"
)

func TestHasAnyFlag(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		flags []string
		want  bool
	}{
		{"exact short", []string{"-f"}, []string{"-f"}, true},
		{"exact long", []string{"--force"}, []string{"--force"}, true},
		{"no match", []string{"-v"}, []string{"-f"}, false},
		{"combined rf matches r", []string{"-rf"}, []string{"-r"}, true},
		{"combined rf no match x", []string{"-rf"}, []string{"-x"}, false},
		{"j4 matches j", []string{"-j4"}, []string{"-j"}, true},
		{"long with value", []string{"--force=yes"}, []string{"--force"}, true},
		{"long prefix only", []string{"--forceful"}, []string{"--force"}, false},
		{"operand", []string{"/tmp/file"}, []string{"-f"}, false},
		{"after double dash", []string{"--", "-f"}, []string{"-f"}, false},
		{"empty arg", []string{""}, []string{"-f"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hasAnyFlag(tt.args, tt.flags...); got != tt.want {
				t.Errorf("hasAnyFlag(%v, %v) = %v, want %v", tt.args, tt.flags, got, tt.want)
			}
		})
	}
}

func TestCheckRmCatastrophic(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{"rf root", []string{"-rf", "/"}, true},
		{"R root", []string{"-R", "/"}, true},
		{"long recursive", []string{"--recursive", "/"}, true},
		{"rf dot", []string{"-rf", "."}, true},
		{"rf dotdot", []string{"-rf", ".."}, true},
		{"rf tilde", []string{"-rf", "~"}, true},
		{"rf tilde slash", []string{"-rf", "~/"}, true},
		{"double slash", []string{"-rf", "//"}, true},
		{"mixed operands", []string{"-rf", "build/", "/"}, true},
		{"separate flags", []string{"-r", "-f", "/"}, true},
		{"safe path", []string{"-rf", "/tmp/safe"}, false},
		{"not recursive", []string{"-f", "/"}, false},
		{"plain file", []string{"file.txt"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkRmCatastrophic("rm", tt.args)
			if (err != nil) != tt.wantErr {
				t.Errorf("checkRmCatastrophic(rm, %v) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			}
		})
	}

	if err := checkRmCatastrophic("grep", []string{"-rf", "/"}); err != nil {
		t.Errorf("other programs are not checked: %v", err)
	}
}

func TestCheckUsesBaseName(t *testing.T) {
	err := Default().Check("/bin/rm", []string{"-rf", "/"})
	if !errors.Is(err, ErrBlocked) {
		t.Errorf("expected ErrBlocked for /bin/rm, got %v", err)
	}
}

func TestRuleSetOrder(t *testing.T) {
	errBuiltin := errors.New("builtin")
	errConfig := errors.New("config")

	rs := NewRuleSet(func(prog string, _ []string) error {
		if prog == "rm" {
			return errBuiltin
		}
		return nil
	})
	rs.Add(func(string, []string) error { return errConfig })

	if err := rs.Check("rm", nil); !errors.Is(err, errBuiltin) {
		t.Errorf("expected built-in rule first, got %v", err)
	}
	if err := rs.Check("make", nil); !errors.Is(err, errConfig) || !errors.Is(err, ErrBlocked) {
		t.Errorf("expected blocked by config rule, got %v", err)
	}
}

func TestNilRuleSet(t *testing.T) {
	var rs *RuleSet
	if err := rs.Check("rm", []string{"-rf", "/"}); err != nil {
		t.Errorf("nil RuleSet should allow everything, got %v", err)
	}
	c, err := pipeline.Parse("rm -rf /", builtin.Default())
	if err != nil {
		t.Fatal(err)
	}
	if err := rs.CheckChain(c); err != nil {
		t.Errorf("nil RuleSet should allow everything, got %v", err)
	}
}

func TestCheckChain(t *testing.T) {
	rs := Default()
	rs.Add(Deny("shutdown"))

	tests := []struct {
		line    string
		blocked bool
	}{
		{"ls -l | wc -l", false},
		{"echo hi | rm -rf / ", true},
		{"cat notes | shutdown -h now", true},
		{"ls > shutdown", false}, // redirect targets are files, not programs
		{"cd / | pwd", false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			c, err := pipeline.Parse(tt.line, builtin.Default())
			if err != nil {
				t.Fatal(err)
			}
			err = rs.CheckChain(c)
			if blocked := errors.Is(err, ErrBlocked); blocked != tt.blocked {
				t.Errorf("CheckChain(%q) = %v, want blocked=%v", tt.line, err, tt.blocked)
			}
		})
	}
}

func TestCompileRejectFlags(t *testing.T) {
	fns := Compile("make", ProgramRules{RejectFlags: []string{"-j"}})
	if len(fns) != 1 {
		t.Fatalf("expected 1 check, got %d", len(fns))
	}
	tests := []struct {
		prog    string
		args    []string
		wantErr bool
	}{
		{"make", []string{"-j", "all"}, true},
		{"make", []string{"-j8"}, true},
		{"make", []string{"all"}, false},
		{"grep", []string{"-j"}, false},
	}
	for _, tt := range tests {
		if err := fns[0](tt.prog, tt.args); (err != nil) != tt.wantErr {
			t.Errorf("check(%q, %v) error = %v, wantErr %v", tt.prog, tt.args, err, tt.wantErr)
		}
	}
}

func TestCompileSubcommands(t *testing.T) {
	rs := NewRuleSet()
	rs.Add(CompileAll(map[string]ProgramRules{
		"git": {Subcommands: map[string]ProgramRules{
			"push":  {RejectFlags: []string{"--force", "-f"}},
			"reset": {RejectFlags: []string{"--hard"}},
		}},
	})...)

	tests := []struct {
		args    []string
		wantErr bool
	}{
		{[]string{"push", "--force"}, true},
		{[]string{"push", "-f", "origin"}, true},
		{[]string{"push", "origin", "main"}, false},
		{[]string{"reset", "--hard", "HEAD~1"}, true},
		{[]string{"reset", "--soft"}, false},
		{[]string{"-f", "push"}, false},
		{[]string{"status"}, false},
	}
	for _, tt := range tests {
		if err := rs.Check("git", tt.args); (err != nil) != tt.wantErr {
			t.Errorf("git %v: error = %v, wantErr %v", tt.args, err, tt.wantErr)
		}
	}
}

func TestDeny(t *testing.T) {
	fn := Deny("reboot", "shutdown")
	if err := fn("reboot", nil); err == nil {
		t.Error("expected reboot to be denied")
	}
	if err := fn("ls", nil); err != nil {
		t.Errorf("ls should be allowed, got %v", err)
	}
}
