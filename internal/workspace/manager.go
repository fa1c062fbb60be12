// Package workspace owns the on-disk hierarchy for per-job workspaces
// and their snapshots: create (git clone), delete (rmtree), snapshot
// (tar), and restore (untar), each with traversal safety. Grounded on
// the original executor's workspace manager, reworked around
// exec.CommandContext so every subprocess call is killable on timeout
// rather than left to run unbounded.
package workspace

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"time"

	"executord/internal/config"
	"executord/internal/logging"
	"executord/internal/model"
)

// Manager owns one process-wide workspace root and snapshot directory.
type Manager struct {
	base      string
	snapshots string
	cfg       config.ExecutionConfig
	retention config.RetentionConfig
}

func New(cfg *config.Config) *Manager {
	return &Manager{
		base:      cfg.WorkspaceBase,
		snapshots: cfg.SnapshotsDir(),
		cfg:       cfg.Execution,
		retention: cfg.SnapshotRetention,
	}
}

// safePath resolves ref to an absolute path under the workspace base,
// rejecting anything that would traverse outside it — the Go form of the
// source's _safe_workspace_path canonical-prefix check.
func (m *Manager) safePath(ref string) (string, error) {
	if ref == "" {
		return "", model.NewError(model.ErrTraversal, "workspace ref must not be empty", nil)
	}
	base, err := filepath.Abs(m.base)
	if err != nil {
		return "", err
	}
	resolved := filepath.Join(base, ref)
	rel, err := filepath.Rel(base, resolved)
	if err != nil || rel == ".." || hasDotDotPrefix(rel) {
		return "", model.NewError(model.ErrTraversal,
			fmt.Sprintf("workspace ref %q resolves outside the workspace base", ref), nil)
	}
	return resolved, nil
}

func hasDotDotPrefix(rel string) bool {
	return len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}

func run(ctx context.Context, timeoutSec int, dir string, name string, args ...string) error {
	cctx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSec)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(cctx, name, args...)
	cmd.Dir = dir
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("command %q failed: %w\nstdout: %s\nstderr: %s",
			name, err, trim(out.String()), trim(stderr.String()))
	}
	return nil
}

// Create clones repoURL at gitRef into a new workspace directory, full
// clone+checkout for a 40-char hex SHA, shallow depth-1 clone otherwise.
func (m *Manager) Create(ctx context.Context, ref, repoURL, gitRef string) (*model.Workspace, error) {
	dir, err := m.safePath(ref)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dir); err == nil {
		return nil, model.NewError(model.ErrExists, fmt.Sprintf("workspace %q already exists", ref), nil)
	}
	if err := os.MkdirAll(m.base, 0o755); err != nil {
		return nil, err
	}

	logging.Workspace("creating workspace %q from %s@%s", ref, repoURL, gitRef)

	var cloneErr error
	if looksLikeSHA(gitRef) {
		cloneErr = run(ctx, m.cfg.CloneTimeoutSec, "", "git", "clone", repoURL, dir)
		if cloneErr == nil {
			cloneErr = run(ctx, 60, dir, "git", "checkout", gitRef)
		}
	} else {
		cloneErr = run(ctx, m.cfg.CloneTimeoutSec, "", "git", "clone", "--depth", "1", "--branch", gitRef, repoURL, dir)
	}

	if cloneErr != nil {
		os.RemoveAll(dir)
		return nil, model.NewError(model.ErrCloneFailed, fmt.Sprintf("cloning %q into workspace %q", repoURL, ref), cloneErr)
	}

	return &model.Workspace{Ref: ref, Path: dir}, nil
}

func looksLikeSHA(ref string) bool {
	if len(ref) != 40 {
		return false
	}
	for _, c := range ref {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}

// WorkspacePath resolves ref to its absolute directory, failing with
// NOT_FOUND unless the workspace actually exists on disk — the lookup
// internal/httpapi's run_code route uses before handing a path to the
// sandbox runner.
func (m *Manager) WorkspacePath(ref string) (string, error) {
	dir, err := m.safePath(ref)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return "", model.NewError(model.ErrNotFound, fmt.Sprintf("workspace %q not found", ref), nil)
	}
	return dir, nil
}

// Delete removes a workspace directory permanently.
func (m *Manager) Delete(ref string) error {
	dir, err := m.safePath(ref)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return model.NewError(model.ErrNotFound, fmt.Sprintf("workspace %q not found", ref), nil)
	}
	logging.Workspace("deleting workspace %q", ref)
	return os.RemoveAll(dir)
}

// Snapshot tars the workspace into WORKSPACE_BASE/snapshots, retrying
// with a random suffix on a same-second key collision (an open question
// in the source — the {ref}-{unix_seconds} format collides if two
// snapshots of the same workspace are taken within the same second).
func (m *Manager) Snapshot(ctx context.Context, ref string) (*model.Snapshot, error) {
	dir, err := m.safePath(ref)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, model.NewError(model.ErrNotFound, fmt.Sprintf("workspace %q not found", ref), nil)
	}
	if err := os.MkdirAll(m.snapshots, 0o755); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s-%d", ref, time.Now().Unix())
	archivePath := filepath.Join(m.snapshots, key+".tar.gz")
	for attempt := 0; attempt < 5; attempt++ {
		if _, err := os.Stat(archivePath); os.IsNotExist(err) {
			break
		}
		key = fmt.Sprintf("%s-%d-%s", ref, time.Now().Unix(), randomSuffix())
		archivePath = filepath.Join(m.snapshots, key+".tar.gz")
	}

	logging.Workspace("snapshotting workspace %q as %q", ref, key)
	if err := run(ctx, m.cfg.ArchiveTimeoutSec, "", "tar", "-czf", archivePath, "-C", m.base, ref); err != nil {
		return nil, model.NewError(model.ErrArchiveFailed, fmt.Sprintf("archiving workspace %q", ref), err)
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		return nil, model.NewError(model.ErrArchiveFailed, "reading archive size", err)
	}

	if m.retention.MaxPerWorkspace > 0 {
		m.enforceRetention(ref)
	}

	return &model.Snapshot{
		Key:       key,
		Workspace: ref,
		SizeBytes: info.Size(),
		CreatedAt: time.Now(),
	}, nil
}

func randomSuffix() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "x"
	}
	return hex.EncodeToString(b)
}

// enforceRetention deletes the oldest archives for ref beyond the
// configured cap — the source never garbage-collects snapshots; this is
// the follow-up Design Notes suggests.
func (m *Manager) enforceRetention(ref string) {
	entries, err := os.ReadDir(m.snapshots)
	if err != nil {
		return
	}
	type archive struct {
		path    string
		modTime time.Time
	}
	var owned []archive
	// Keys are ref-<unix seconds>[-<8 hex chars>]; matching the whole name
	// keeps archives of a ref such as "job-6" out of "job"'s set.
	ownedName := regexp.MustCompile("^" + regexp.QuoteMeta(ref) + `-\d+(-[0-9a-f]{8})?\.tar\.gz$`)
	for _, e := range entries {
		if e.IsDir() || !ownedName.MatchString(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		owned = append(owned, archive{filepath.Join(m.snapshots, e.Name()), info.ModTime()})
	}
	for len(owned) > m.retention.MaxPerWorkspace {
		oldest := 0
		for i := 1; i < len(owned); i++ {
			if owned[i].modTime.Before(owned[oldest].modTime) {
				oldest = i
			}
		}
		logging.WorkspaceDebug("retention: removing old snapshot %s", owned[oldest].path)
		os.Remove(owned[oldest].path)
		owned = append(owned[:oldest], owned[oldest+1:]...)
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// Restore deletes the current workspace directory (if any) and untars
// the named snapshot in its place.
func (m *Manager) Restore(ctx context.Context, ref, key string) error {
	archivePath := filepath.Join(m.snapshots, key+".tar.gz")
	if _, err := os.Stat(archivePath); os.IsNotExist(err) {
		return model.NewError(model.ErrNotFound, fmt.Sprintf("snapshot %q not found", key), nil)
	}

	dir, err := m.safePath(ref)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dir); err == nil {
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
	}

	logging.Workspace("restoring workspace %q from snapshot %q", ref, key)
	if err := run(ctx, m.cfg.ArchiveTimeoutSec, "", "tar", "-xzf", archivePath, "-C", m.base); err != nil {
		return model.NewError(model.ErrArchiveFailed, fmt.Sprintf("restoring snapshot %q", key), err)
	}
	return nil
}

func trim(s string) string {
	const max = 2000
	if len(s) > max {
		return s[:max] + "...(truncated)"
	}
	return s
}
