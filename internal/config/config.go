// Package config loads the executor service's process-wide configuration.
// A Config is read once at startup and passed explicitly into every
// component that needs it — nothing in this service reads from a global.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration object.
type Config struct {
	WorkspaceBase     string            `yaml:"workspace_base"`
	SnapshotRetention RetentionConfig   `yaml:"snapshot_retention"`
	HTTP              HTTPConfig        `yaml:"http"`
	Execution         ExecutionConfig   `yaml:"execution"`
	Logging           LoggingConfig     `yaml:"logging"`
}

// RetentionConfig caps the number of snapshots kept per workspace.
// MaxPerWorkspace <= 0 means unlimited, matching the source's original
// unbounded behavior.
type RetentionConfig struct {
	MaxPerWorkspace int `yaml:"max_per_workspace"`
}

// HTTPConfig configures the thin HTTP adapter.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// ExecutionConfig bounds the sandbox runner and the tool primitives'
// subprocess invocations.
type ExecutionConfig struct {
	DefaultTimeoutSec int      `yaml:"default_timeout_sec"`
	MaxTimeoutSec     int      `yaml:"max_timeout_sec"`
	AllowedCommands   []string `yaml:"allowed_commands"`
	AllowedImports    []string `yaml:"allowed_imports"`
	CloneTimeoutSec   int      `yaml:"clone_timeout_sec"`
	ArchiveTimeoutSec int      `yaml:"archive_timeout_sec"`

	// AllowlistExtension is a Go expression of type []string, evaluated
	// once at boot by internal/policy, appended to AllowedCommands. Empty
	// by default — most deployments never set this.
	AllowlistExtension string `yaml:"allowlist_extension"`
}

// LoggingConfig mirrors the shape the internal/logging package reads.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
	Dir        string          `yaml:"dir"`
}

// DefaultConfig returns the configuration the service boots with when no
// file is supplied, matching the values the distilled spec names
// (timeout_sec default 60, allowed commands/imports per §4.1/§4.3).
func DefaultConfig() *Config {
	return &Config{
		WorkspaceBase: "/tmp/executord-workspaces",
		HTTP:          HTTPConfig{Addr: ":8080"},
		Execution: ExecutionConfig{
			DefaultTimeoutSec: 60,
			MaxTimeoutSec:     600,
			CloneTimeoutSec:   600,
			ArchiveTimeoutSec: 120,
			AllowedCommands:   []string{"mvn", "./gradlew", "java", "git", "rg"},
			AllowedImports: []string{
				"os", "subprocess", "pathlib", "json", "re", "shutil",
				"difflib", "textwrap", "xml", "collections", "itertools",
				"functools", "tempfile", "typing",
			},
		},
		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
			Dir:       ".executord/logs",
		},
	}
}

// Load reads a YAML config file and overlays it onto DefaultConfig, then
// validates the result. An empty path is not an error: the defaults apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is internally consistent,
// following the teacher's "one explicit fmt.Errorf check per invariant"
// idiom (internal/config/limits.go's ValidateCoreLimits).
func (c *Config) Validate() error {
	if c.WorkspaceBase == "" {
		return fmt.Errorf("workspace_base must be set")
	}
	if !filepath.IsAbs(c.WorkspaceBase) {
		return fmt.Errorf("workspace_base must be an absolute path, got %q", c.WorkspaceBase)
	}
	if c.Execution.DefaultTimeoutSec <= 0 {
		return fmt.Errorf("execution.default_timeout_sec must be > 0")
	}
	if c.Execution.MaxTimeoutSec < c.Execution.DefaultTimeoutSec {
		return fmt.Errorf("execution.max_timeout_sec must be >= default_timeout_sec")
	}
	if len(c.Execution.AllowedCommands) == 0 {
		return fmt.Errorf("execution.allowed_commands must not be empty")
	}
	if c.SnapshotRetention.MaxPerWorkspace < 0 {
		return fmt.Errorf("snapshot_retention.max_per_workspace must be >= 0")
	}
	return nil
}

// SnapshotsDir is WORKSPACE_BASE/snapshots, per §6's filesystem layout.
func (c *Config) SnapshotsDir() string {
	return filepath.Join(c.WorkspaceBase, "snapshots")
}
