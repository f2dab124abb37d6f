// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/warden/execpolicy"
	"github.com/bureau-foundation/warden/sandbox"
	"github.com/bureau-foundation/warden/session"
)

// Config is the master configuration for warden.
type Config struct {
	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Approval selects when a prompting command consults the human:
	// never, on-request, on-failure, or always.
	Approval string `yaml:"approval"`

	// Sandbox is the confinement policy applied to approved commands.
	Sandbox sandbox.Policy `yaml:"sandbox"`

	// Session configures the interactive session manager.
	Session SessionConfig `yaml:"session"`

	// Rollout configures conversation recording.
	Rollout RolloutConfig `yaml:"rollout"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Root is the base directory for warden data.
	Root string `yaml:"root"`

	// Rules is the directory of .rules policy files, loaded in
	// lexical order. Rule amendments approved at runtime are also
	// written here.
	Rules string `yaml:"rules"`
}

// SessionConfig configures the interactive session manager.
type SessionConfig struct {
	// MaxSessions bounds how many sessions may be live at once.
	MaxSessions int `yaml:"max_sessions"`

	// IdleTimeout is how long a session may sit without activity
	// before it is evicted.
	IdleTimeout Duration `yaml:"idle_timeout"`

	// Yield is the default output wait per call.
	Yield Duration `yaml:"yield"`

	// MaxOutputTokens bounds the output returned per call.
	MaxOutputTokens int `yaml:"max_output_tokens"`
}

// RolloutConfig configures conversation recording.
type RolloutConfig struct {
	// Dir is the root under which session files are written.
	Dir string `yaml:"dir"`

	// CompressArchived enables zstd compression when a conversation
	// is archived.
	CompressArchived bool `yaml:"compress_archived"`
}

// Duration is a time.Duration that unmarshals from YAML strings like
// "10m" or "1.5s".
type Duration time.Duration

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"10m\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Default returns the default configuration. These defaults are used
// as a base before loading the config file; they exist so every field
// has a workable value, not as a substitute for the file.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".warden")

	return &Config{
		Paths: PathsConfig{
			Root:  defaultRoot,
			Rules: filepath.Join(defaultRoot, "rules"),
		},
		Approval: execpolicy.ApproveOnRequest.String(),
		Sandbox:  sandbox.ReadOnlyPolicy(),
		Session: SessionConfig{
			MaxSessions:     session.DefaultMaxSessions,
			IdleTimeout:     Duration(session.DefaultIdleTimeout),
			Yield:           Duration(session.DefaultYield),
			MaxOutputTokens: session.DefaultMaxOutputTokens,
		},
		Rollout: RolloutConfig{
			Dir:              defaultRoot,
			CompressArchived: false,
		},
	}
}

// Load loads configuration from the WARDEN_CONFIG environment
// variable. This is the only way to load configuration without an
// explicit path: if WARDEN_CONFIG is not set, Load fails rather than
// falling back to discovery.
func Load() (*Config, error) {
	configPath := os.Getenv("WARDEN_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("WARDEN_CONFIG environment variable not set; " +
			"set it to the path of your warden.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. The config
// file is the single source of truth: environment variables do not
// override config values. The only expansion performed is ${HOME} and
// similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in
// path fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"WARDEN_ROOT": c.Paths.Root,
		"HOME":        os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["WARDEN_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Paths.Rules = expandVars(c.Paths.Rules, vars)
	c.Rollout.Dir = expandVars(c.Rollout.Dir, vars)
	for i, root := range c.Sandbox.WritableRoots {
		c.Sandbox.WritableRoots[i] = expandVars(root, vars)
	}
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// ApprovalPolicy returns the parsed approval policy.
func (c *Config) ApprovalPolicy() (execpolicy.ApprovalPolicy, error) {
	return execpolicy.ParseApprovalPolicy(c.Approval)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}
	if c.Paths.Rules == "" {
		errs = append(errs, fmt.Errorf("paths.rules is required"))
	}
	if c.Rollout.Dir == "" {
		errs = append(errs, fmt.Errorf("rollout.dir is required"))
	}

	if _, err := c.ApprovalPolicy(); err != nil {
		errs = append(errs, fmt.Errorf("approval: %w", err))
	}

	if c.Session.MaxSessions <= 0 {
		errs = append(errs, fmt.Errorf("session.max_sessions must be positive"))
	}
	if c.Session.IdleTimeout <= 0 {
		errs = append(errs, fmt.Errorf("session.idle_timeout must be positive"))
	}
	if c.Session.Yield <= 0 {
		errs = append(errs, fmt.Errorf("session.yield must be positive"))
	}
	if c.Session.MaxOutputTokens <= 0 {
		errs = append(errs, fmt.Errorf("session.max_output_tokens must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates all configured directories if they don't exist.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.Paths.Root,
		c.Paths.Rules,
		c.Rollout.Dir,
	}
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}
