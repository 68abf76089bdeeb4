package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/marcelocantos/xsh/internal/builtin"
	"github.com/marcelocantos/xsh/internal/cli"
	"github.com/marcelocantos/xsh/internal/client"
	"github.com/marcelocantos/xsh/internal/config"
	"github.com/marcelocantos/xsh/internal/daemon"
	"github.com/marcelocantos/xsh/internal/history"
	"github.com/marcelocantos/xsh/internal/ipc"
	"github.com/marcelocantos/xsh/internal/pipeline"
)

var version = "dev"

func main() {
	os.Exit(run())
}

// env is the state shared by every subcommand.
type env struct {
	cfg   *config.Config
	shell *cli.Shell
}

func setup(cfgFile string, noHistory bool) (*env, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = config.LoadFrom(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	eng := pipeline.New(cfg.Shell.Name, builtin.Default())
	if err := cfg.Apply(eng); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	sh := &cli.Shell{Engine: eng}
	if cfg.Rules.Interactive {
		sh.Rules = cfg.RuleSet()
	}
	if cfg.History.Enabled && !noHistory {
		logger, err := history.NewLogger(cfg.History.Path, "")
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: history: %v\n", cfg.Shell.Name, err)
			// Continue without history.
		} else {
			sh.History = logger
		}
	}
	return &env{cfg: cfg, shell: sh}, nil
}

func run() int {
	var (
		cfgFile   string
		command   string
		noHistory bool
		code      int
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	load := func() (*env, bool) {
		e, err := setup(cfgFile, noHistory)
		if err != nil {
			fmt.Fprintf(os.Stderr, "xsh: %v\n", err)
			code = 1
			return nil, false
		}
		return e, true
	}

	root := &cobra.Command{
		Use:   "xsh",
		Short: "A small shell that runs `a | b | c > file` pipelines",
		Long: `xsh reads command lines and runs them as pipelines.

A line is a sequence of whitespace-separated words. Stages are joined
with |, and a final > path sends the last stage's output to a file.
The builtins cd, pwd and exit run inside the shell.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			e, ok := load()
			if !ok {
				return
			}
			if cmd.Flags().Changed("command") {
				status, _ := e.shell.RunLine(ctx, command)
				code = status
				return
			}
			// The REPL outlives any one interrupt: each line gets its own
			// context and Ctrl-C cancels only the line in progress.
			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, os.Interrupt)
			defer signal.Stop(sigs)
			prompt := cli.NewPrompt(e.cfg.Shell.Prompt, e.cfg.Shell.PromptColor)
			code = e.shell.RunREPL(context.WithoutCancel(ctx), os.Stdin, os.Stdout, prompt, sigs)
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/xsh/config.yaml or config.toml)")
	root.PersistentFlags().BoolVar(&noHistory, "no-history", false, "do not record history")
	root.Flags().StringVarP(&command, "command", "c", "", "run a single command line and exit with its status")

	root.AddCommand(&cobra.Command{
		Use:   "history <verify|show [n]>",
		Short: "Verify or show the command history",
		Args:  cobra.RangeArgs(1, 2),
		Run: func(cmd *cobra.Command, args []string) {
			e, ok := load()
			if !ok {
				return
			}
			code = cli.RunHistory(os.Stdout, e.cfg.History.Path, args)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "builtins",
		Short: "List the shell builtins",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			code = cli.RunBuiltins(os.Stdout, builtin.Default())
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "mcp",
		Short: "Serve the run_pipeline tool over MCP on stdio",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			e, ok := load()
			if !ok {
				return
			}
			// Stdout carries the protocol; stray output would corrupt it.
			e.shell.Engine.Stdout = os.Stderr
			e.shell.Rules = e.cfg.RuleSet()
			if err := cli.NewMCPServer(e.shell).Serve(version); err != nil {
				fmt.Fprintf(os.Stderr, "xsh: mcp: %v\n", err)
				code = 1
			}
		},
	})

	var idle time.Duration
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run command lines for xsh remote clients over a unix socket",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			e, ok := load()
			if !ok {
				return
			}
			e.shell.Rules = e.cfg.RuleSet()
			if err := daemon.New(e.shell, idle).Run(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "xsh: daemon: %v\n", err)
				code = 1
			}
		},
	}
	daemonCmd.Flags().DurationVar(&idle, "idle", 10*time.Minute, "exit after this long without connections")
	root.AddCommand(daemonCmd)

	root.AddCommand(&cobra.Command{
		Use:   "remote <line>...",
		Short: "Run a command line in the xsh daemon, starting it if needed",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			code = runRemote(ctx, strings.Join(args, " "))
		},
	})

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "xsh: %v\n", err)
		return 2
	}
	return code
}

func runRemote(ctx context.Context, line string) int {
	self, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "xsh: %v\n", err)
		return 1
	}
	conn, err := client.ConnectOrSpawn(ctx, self)
	if err != nil {
		fmt.Fprintf(os.Stderr, "xsh: remote: %v\n", err)
		return 1
	}
	defer conn.Close()

	cwd, _ := os.Getwd()
	req := &ipc.Request{Line: line, Cwd: cwd, Env: ipc.CaptureEnv()}

	// A terminal would keep stdin open forever; send EOF straight away.
	var stdin io.Reader = os.Stdin
	if term.IsTerminal(int(os.Stdin.Fd())) {
		stdin = strings.NewReader("")
	}

	res, err := client.Relay(ctx, conn, req, stdin, os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "xsh: remote: %v\n", err)
		return res.Code
	}
	if res.Error != "" {
		fmt.Fprintf(os.Stderr, "xsh: remote: %s\n", res.Error)
	}
	return res.Code
}
