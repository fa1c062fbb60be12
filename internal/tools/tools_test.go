package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"executord/internal/config"
	"executord/internal/interp"
	"executord/internal/model"
)

func newTestToolset(t *testing.T) (*Toolset, string) {
	t.Helper()
	root := t.TempDir()
	cfg := config.ExecutionConfig{
		DefaultTimeoutSec: 5,
		MaxTimeoutSec:     10,
		AllowedCommands:   []string{"git", "rg"},
	}
	return New(context.Background(), root, cfg), root
}

func TestReadWriteFile_RoundTrip(t *testing.T) {
	ts, _ := newTestToolset(t)

	_, err := ts.Call("write_file", []interp.Value{"sub/dir/a.txt", "hello"})
	require.NoError(t, err)

	v, err := ts.Call("read_file", []interp.Value{"sub/dir/a.txt"})
	require.NoError(t, err)
	assert.Equal(t, "hello", v)
}

func TestReadFile_NotFound(t *testing.T) {
	ts, _ := newTestToolset(t)
	_, err := ts.Call("read_file", []interp.Value{"missing.txt"})
	require.Error(t, err)
}

func TestResolveInWorkspace_RejectsTraversal(t *testing.T) {
	ts, _ := newTestToolset(t)
	_, err := ts.Call("read_file", []interp.Value{"../../etc/passwd"})
	require.Error(t, err)
}

func TestResolveInWorkspace_RejectsAbsolutePath(t *testing.T) {
	ts, _ := newTestToolset(t)
	_, err := ts.Call("write_file", []interp.Value{"/etc/passwd", "x"})
	require.Error(t, err)
}

func TestListFiles_MatchesGlobUnderBase(t *testing.T) {
	ts, root := newTestToolset(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "pkg"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "pkg", "a.go"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "pkg", "b.txt"), []byte("x"), 0o644))

	v, err := ts.Call("list_files", []interp.Value{"pkg", "*.go"})
	require.NoError(t, err)
	list, ok := v.(*interp.List)
	require.True(t, ok)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "pkg/a.go", list.Items[0])
}

func TestListFiles_ShallowPatternDoesNotRecurse(t *testing.T) {
	ts, root := newTestToolset(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "pkg", "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "pkg", "a.go"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "pkg", "nested", "b.go"), []byte("x"), 0o644))

	v, err := ts.Call("list_files", []interp.Value{"pkg", "*.go"})
	require.NoError(t, err)
	list, ok := v.(*interp.List)
	require.True(t, ok)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "pkg/a.go", list.Items[0])
}

func TestListFiles_DoubleStarPatternRecurses(t *testing.T) {
	ts, root := newTestToolset(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "pkg", "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "pkg", "a.go"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "pkg", "nested", "b.go"), []byte("x"), 0o644))

	v, err := ts.Call("list_files", []interp.Value{"pkg", "**/*.go"})
	require.NoError(t, err)
	list, ok := v.(*interp.List)
	require.True(t, ok)
	assert.Len(t, list.Items, 2)
}

func TestRunCommand_RejectsDisallowedBinary(t *testing.T) {
	ts, _ := newTestToolset(t)
	argv := &interp.List{Items: []interp.Value{"curl", "http://example.com"}}
	_, err := ts.Call("run_command", []interp.Value{argv})
	require.Error(t, err)
}

func TestRunCommand_AllowedBinaryRuns(t *testing.T) {
	ts, root := newTestToolset(t)
	_ = root
	argv := &interp.List{Items: []interp.Value{"git", "status"}}
	v, err := ts.Call("run_command", []interp.Value{argv})
	require.NoError(t, err)
	d, ok := v.(*interp.Dict)
	require.True(t, ok)
	_, ok = d.Get("exit_code")
	assert.True(t, ok)
}

func TestRunCommand_RejectsEmptyArgv(t *testing.T) {
	ts, _ := newTestToolset(t)
	argv := &interp.List{}
	_, err := ts.Call("run_command", []interp.Value{argv})
	require.Error(t, err)
	kind, ok := model.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, model.ErrInvalidArgument, kind)
}

func TestSearchCode_SentinelWhenRgAbsent(t *testing.T) {
	t.Setenv("PATH", "")
	ts, _ := newTestToolset(t)
	v, err := ts.Call("search_code", []interp.Value{"TODO", "."})
	require.NoError(t, err)
	d, ok := v.(*interp.Dict)
	require.True(t, ok)
	unavailable, _ := d.Get("search_unavailable")
	assert.Equal(t, true, unavailable)
}
