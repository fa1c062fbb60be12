package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"executord/internal/config"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.WorkspaceBase = t.TempDir()
	cfg.Execution.AllowedCommands = []string{"git"}
	cfg.Execution.AllowedImports = []string{"os"}
	return New(cfg)
}

func newSourceRepoDir(t *testing.T) string {
	t.Helper()
	src := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = src
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	run("init", "-q", "-b", "main")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")
	readme := filepath.Join(src, "README.md")
	require.NoError(t, os.WriteFile(readme, []byte("hello"), 0o644))
	run("add", ".")
	run("commit", "-q", "-m", "initial")
	return src
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestHandleHealth_ReturnsOK(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.handleHealth(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleCreate_Success(t *testing.T) {
	s := newTestServer(t)
	repoURL := newSourceRepoDir(t)

	rec := postJSON(t, s.handleCreate, "/create", createRequest{
		WorkspaceRef: "job-1",
		RepoURL:      repoURL,
		GitRef:       "main",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleCreate_ConflictOnDuplicateRef(t *testing.T) {
	s := newTestServer(t)
	repoURL := newSourceRepoDir(t)

	req := createRequest{WorkspaceRef: "job-2", RepoURL: repoURL, GitRef: "main"}
	rec1 := postJSON(t, s.handleCreate, "/create", req)
	require.Equal(t, http.StatusOK, rec1.Code)

	rec2 := postJSON(t, s.handleCreate, "/create", req)
	assert.Equal(t, http.StatusConflict, rec2.Code)
}

func TestHandleSnapshot_NotFoundForUnknownWorkspace(t *testing.T) {
	s := newTestServer(t)
	rec := postJSON(t, s.handleSnapshot, "/snapshot", snapshotRequest{WorkspaceRef: "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleRestore_NotFoundForUnknownSnapshot(t *testing.T) {
	s := newTestServer(t)
	repoURL := newSourceRepoDir(t)
	postJSON(t, s.handleCreate, "/create", createRequest{WorkspaceRef: "job-3", RepoURL: repoURL, GitRef: "main"})

	rec := postJSON(t, s.handleRestore, "/restore", restoreRequest{WorkspaceRef: "job-3", SnapshotKey: "bogus"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleDelete_NotFoundForUnknownWorkspace(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodDelete, "/nope", nil)
	rec := httptest.NewRecorder()
	s.handleDelete(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleDelete_Success(t *testing.T) {
	s := newTestServer(t)
	repoURL := newSourceRepoDir(t)
	postJSON(t, s.handleCreate, "/create", createRequest{WorkspaceRef: "job-4", RepoURL: repoURL, GitRef: "main"})

	req := httptest.NewRequest(http.MethodDelete, "/job-4", nil)
	rec := httptest.NewRecorder()
	s.handleDelete(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// TestHandleRunCode_MissingWorkspaceStillReturns200 is the contract this
// route is special-cased for: every other route answers a missing
// workspace with 404, but run_code encodes the failure in the body
// instead, always at HTTP 200.
func TestHandleRunCode_MissingWorkspaceStillReturns200(t *testing.T) {
	s := newTestServer(t)
	rec := postJSON(t, s.handleRunCode, "/run_code", runCodeRequest{
		Code:         `print("hi")`,
		WorkspaceRef: "does-not-exist",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "NOT_FOUND", body["error_type"])
}

func TestHandleRunCode_SuccessfulFragment(t *testing.T) {
	s := newTestServer(t)
	repoURL := newSourceRepoDir(t)
	postJSON(t, s.handleCreate, "/create", createRequest{WorkspaceRef: "job-5", RepoURL: repoURL, GitRef: "main"})

	rec := postJSON(t, s.handleRunCode, "/run_code", runCodeRequest{
		Code:         `print("hi")`,
		WorkspaceRef: "job-5",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(0), body["exit_code"])
	assert.Equal(t, "hi\n", body["stdout"])
}

func TestHandleRunCode_WrongMethodRejected(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/run_code", nil)
	rec := httptest.NewRecorder()
	s.handleRunCode(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
