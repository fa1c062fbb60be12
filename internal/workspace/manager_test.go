package workspace

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"executord/internal/config"
	"executord/internal/model"
)

// newSourceRepo creates a local (non-bare) git repository with one commit so
// tests can exercise Create's clone path without network access.
func newSourceRepo(t *testing.T) (repoURL string, headSHA string) {
	t.Helper()
	src := t.TempDir()
	run := func(args ...string) string {
		cmd := exec.Command("git", args...)
		cmd.Dir = src
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
		return string(out)
	}
	run("init", "-q", "-b", "main")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")
	require.NoError(t, os.WriteFile(filepath.Join(src, "README.md"), []byte("hello"), 0o644))
	run("add", ".")
	run("commit", "-q", "-m", "initial")

	cmd := exec.Command("git", "rev-parse", "HEAD")
	cmd.Dir = src
	out, err := cmd.Output()
	require.NoError(t, err)
	return src, trimNewline(string(out))
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	base := t.TempDir()
	cfg := &config.Config{
		WorkspaceBase: base,
		Execution: config.ExecutionConfig{
			CloneTimeoutSec:   30,
			ArchiveTimeoutSec: 30,
		},
	}
	return New(cfg)
}

func TestCreate_ShallowCloneByBranch(t *testing.T) {
	mgr := newTestManager(t)
	repoURL, _ := newSourceRepo(t)

	ws, err := mgr.Create(context.Background(), "job-1", repoURL, "main")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(ws.Path, "README.md"))
}

func TestCreate_FullCloneBySHA(t *testing.T) {
	mgr := newTestManager(t)
	repoURL, sha := newSourceRepo(t)

	ws, err := mgr.Create(context.Background(), "job-2", repoURL, sha)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(ws.Path, "README.md"))
}

func TestCreate_RejectsExisting(t *testing.T) {
	mgr := newTestManager(t)
	repoURL, _ := newSourceRepo(t)

	_, err := mgr.Create(context.Background(), "job-3", repoURL, "main")
	require.NoError(t, err)

	_, err = mgr.Create(context.Background(), "job-3", repoURL, "main")
	require.Error(t, err)
	kind, ok := model.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, model.ErrExists, kind)
}

func TestCreate_RejectsTraversal(t *testing.T) {
	mgr := newTestManager(t)
	_, err := mgr.Create(context.Background(), "../../etc", "unused", "main")
	require.Error(t, err)
	kind, ok := model.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, model.ErrTraversal, kind)
}

func TestDelete_NotFound(t *testing.T) {
	mgr := newTestManager(t)
	err := mgr.Delete("does-not-exist")
	require.Error(t, err)
	kind, _ := model.KindOf(err)
	assert.Equal(t, model.ErrNotFound, kind)
}

func TestSnapshotAndRestore_RoundTrip(t *testing.T) {
	mgr := newTestManager(t)
	repoURL, _ := newSourceRepo(t)

	ws, err := mgr.Create(context.Background(), "job-4", repoURL, "main")
	require.NoError(t, err)

	const wantContent = "added"
	newFile := filepath.Join(ws.Path, "new.txt")
	require.NoError(t, os.WriteFile(newFile, []byte(wantContent), 0o644))

	snap, err := mgr.Snapshot(context.Background(), "job-4")
	require.NoError(t, err)
	assert.Greater(t, snap.SizeBytes, int64(0))

	require.NoError(t, os.Remove(newFile))

	require.NoError(t, mgr.Restore(context.Background(), "job-4", snap.Key))
	require.FileExists(t, newFile)

	gotContent, err := os.ReadFile(newFile)
	require.NoError(t, err)
	if diff := cmp.Diff(wantContent, string(gotContent)); diff != "" {
		t.Errorf("restored file content mismatch (-want +got):\n%s", diff)
	}
}

func TestRestore_UnknownSnapshotKey(t *testing.T) {
	mgr := newTestManager(t)
	err := mgr.Restore(context.Background(), "job-5", "nonexistent-key")
	require.Error(t, err)
	kind, _ := model.KindOf(err)
	assert.Equal(t, model.ErrNotFound, kind)
}

func TestEnforceRetention_KeepsOnlyNewestSnapshots(t *testing.T) {
	mgr := newTestManager(t)
	mgr.retention.MaxPerWorkspace = 1
	repoURL, _ := newSourceRepo(t)

	_, err := mgr.Create(context.Background(), "job-6", repoURL, "main")
	require.NoError(t, err)

	snap1, err := mgr.Snapshot(context.Background(), "job-6")
	require.NoError(t, err)

	snap2, err := mgr.Snapshot(context.Background(), "job-6")
	require.NoError(t, err)
	require.NotEqual(t, snap1.Key, snap2.Key)

	entries, err := os.ReadDir(mgr.snapshots)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
