// Package tools implements the nine tool primitives a code fragment may
// call: read_file, write_file, list_files, search_code, git_status,
// git_diff, apply_patch, git_reset, run_command. Every primitive is
// scoped to one workspace directory and rejects any path that would
// resolve outside it.
package tools

import (
	"fmt"
	"path/filepath"
	"strings"

	"executord/internal/model"
)

// resolveInWorkspace joins rel onto root and rejects the result unless it
// is root itself or a descendant of it — the traversal-safety check the
// source's _safe_workspace_path performs via a canonical-prefix test.
// Absolute rel paths are rejected outright rather than silently replacing
// root, which os/filepath.Join would otherwise allow.
func resolveInWorkspace(root, rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", model.NewError(model.ErrTraversal, fmt.Sprintf("path %q must be relative to the workspace", rel), nil)
	}
	joined := filepath.Join(root, rel)
	cleanRoot := filepath.Clean(root)
	if joined != cleanRoot && !isWithin(cleanRoot, joined) {
		return "", model.NewError(model.ErrTraversal, fmt.Sprintf("path %q escapes the workspace", rel), nil)
	}
	return joined, nil
}

func isWithin(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	// A relative path that climbs out of root is "..", or starts with
	// "../" — anything else stays under root.
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
