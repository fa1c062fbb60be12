package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "/tmp/executord-workspaces", cfg.WorkspaceBase)
	assert.Equal(t, 60, cfg.Execution.DefaultTimeoutSec)
	assert.Contains(t, cfg.Execution.AllowedCommands, "git")
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().HTTP.Addr, cfg.HTTP.Addr)
}

func TestLoad_OverlaysYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "executord.yaml")
	yaml := `
workspace_base: /tmp/custom-workspaces
execution:
  default_timeout_sec: 30
  max_timeout_sec: 120
  allowed_commands: ["git", "rg"]
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom-workspaces", cfg.WorkspaceBase)
	assert.Equal(t, 30, cfg.Execution.DefaultTimeoutSec)
	assert.Equal(t, []string{"git", "rg"}, cfg.Execution.AllowedCommands)
}

func TestValidate_RejectsRelativeWorkspaceBase(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WorkspaceBase = "relative/path"
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsMaxBelowDefault(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Execution.MaxTimeoutSec = 10
	cfg.Execution.DefaultTimeoutSec = 60
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsEmptyAllowedCommands(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Execution.AllowedCommands = nil
	assert.Error(t, cfg.Validate())
}

func TestSnapshotsDir(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, filepath.Join(cfg.WorkspaceBase, "snapshots"), cfg.SnapshotsDir())
}
