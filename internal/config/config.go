package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/marcelocantos/xsh/internal/pipeline"
	"github.com/marcelocantos/xsh/internal/rules"
)

// Config holds the xsh configuration.
type Config struct {
	Shell    ShellConfig    `yaml:"shell" toml:"shell"`
	History  HistoryConfig  `yaml:"history" toml:"history"`
	Redirect RedirectConfig `yaml:"redirect" toml:"redirect"`
	Rules    RulesConfig    `yaml:"rules" toml:"rules"`
}

// ShellConfig controls the shell's identity and prompt.
type ShellConfig struct {
	// Name prefixes every error message the shell prints.
	Name   string `yaml:"name" toml:"name"`
	Prompt string `yaml:"prompt" toml:"prompt"`
	// PromptColor is one of the basic terminal colors, or empty for none.
	PromptColor string `yaml:"prompt_color" toml:"prompt_color"`
}

// HistoryConfig controls the history log.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// RedirectConfig controls redirect behavior.
type RedirectConfig struct {
	// OnOpenFailure is "abort" (default) or "degrade".
	OnOpenFailure string `yaml:"on_open_failure" toml:"on_open_failure"`
}

// RulesConfig controls which stages are refused. The built-in rules always
// apply where rules apply at all.
type RulesConfig struct {
	// Interactive applies the rules to the REPL and -c as well as to the
	// mcp and daemon front ends.
	Interactive bool                          `yaml:"interactive" toml:"interactive"`
	Deny        []string                      `yaml:"deny" toml:"deny"`
	Programs    map[string]rules.ProgramRules `yaml:"programs" toml:"programs"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Shell: ShellConfig{
			Name:        "xsh",
			Prompt:      "(xsh)> ",
			PromptColor: "cyan",
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    filepath.Join(home, ".local", "share", "xsh", "history.jsonl"),
		},
		Redirect: RedirectConfig{
			OnOpenFailure: "abort",
		},
	}
}

// ConfigDir returns the directory holding config.yaml or config.toml.
func ConfigDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "xsh")
}

// Load reads the config from the standard location, preferring config.yaml
// over config.toml. If neither exists, it returns the default config.
func Load() (*Config, error) {
	dir := ConfigDir()
	for _, name := range []string{"config.yaml", "config.toml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFrom(path)
		}
	}
	return DefaultConfig(), nil
}

// LoadFrom reads the config from path. The format is chosen by extension:
// .toml is TOML, anything else YAML. A missing file yields the default
// config.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	// Expand ~ in the history path.
	if p := cfg.History.Path; p != "" && p[0] == '~' {
		home, _ := os.UserHomeDir()
		cfg.History.Path = filepath.Join(home, p[1:])
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field values that cannot be expressed by the schema.
func (c *Config) Validate() error {
	if c.Shell.Name == "" {
		return fmt.Errorf("shell.name must not be empty")
	}
	if _, err := c.RedirectPolicy(); err != nil {
		return err
	}
	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("history.path is required when history is enabled")
	}
	return nil
}

// RedirectPolicy returns the configured redirect failure policy.
func (c *Config) RedirectPolicy() (pipeline.RedirectPolicy, error) {
	return pipeline.ParseRedirectPolicy(c.Redirect.OnOpenFailure)
}

// RuleSet builds the rule set from the built-in and configured rules.
func (c *Config) RuleSet() *rules.RuleSet {
	rs := rules.Default()
	if len(c.Rules.Deny) > 0 {
		rs.Add(rules.Deny(c.Rules.Deny...))
	}
	rs.Add(rules.CompileAll(c.Rules.Programs)...)
	return rs
}

// Apply configures an engine from the config.
func (c *Config) Apply(eng *pipeline.Engine) error {
	policy, err := c.RedirectPolicy()
	if err != nil {
		return err
	}
	eng.Name = c.Shell.Name
	eng.Redirect = policy
	return nil
}
