// Package httpapi is the thin HTTP adapter over the executor service:
// one net/http.ServeMux routing the six JSON routes named in the
// external interface, each handler doing nothing but decode/dispatch/
// encode. Grounded on the teacher's ServeMux+http.Server+graceful-
// Shutdown(ctx) idiom.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"executord/internal/config"
	"executord/internal/logging"
	"executord/internal/model"
	"executord/internal/sandbox"
	"executord/internal/workspace"
)

// Server wires the workspace manager and sandbox runner behind the HTTP
// surface. One Server per process.
type Server struct {
	cfg     *config.Config
	ws      *workspace.Manager
	runner  *sandbox.Runner
	httpSrv *http.Server
}

func New(cfg *config.Config) *Server {
	s := &Server{
		cfg:    cfg,
		ws:     workspace.New(cfg),
		runner: sandbox.New(cfg.Execution),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/create", s.withRequestID(s.handleCreate))
	mux.HandleFunc("/snapshot", s.withRequestID(s.handleSnapshot))
	mux.HandleFunc("/restore", s.withRequestID(s.handleRestore))
	mux.HandleFunc("/run_code", s.withRequestID(s.handleRunCode))
	mux.HandleFunc("/", s.withRequestID(s.handleDelete)) // DELETE /{workspace_ref}

	s.httpSrv = &http.Server{Addr: cfg.HTTP.Addr, Handler: mux}
	return s
}

// ListenAndServe blocks serving HTTP until ctx is cancelled, then
// gracefully shuts down within 10 seconds.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Boot("httpapi listening on %s", s.cfg.HTTP.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logging.Boot("httpapi shutting down")
		return s.httpSrv.Shutdown(shutdownCtx)
	}
}

// withRequestID logs one debug line per request tagged with a fresh
// correlation id; the id is not passed on to the handler or persisted.
func (s *Server) withRequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.New().String()
		logging.APIDebug("[%s] %s %s", reqID, r.Method, r.URL.Path)
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createRequest struct {
	WorkspaceRef string `json:"workspace_ref"`
	RepoURL      string `json:"repo_url"`
	GitRef       string `json:"git_ref"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.GitRef == "" {
		req.GitRef = "HEAD"
	}

	ws, err := s.ws.Create(r.Context(), req.WorkspaceRef, req.RepoURL, req.GitRef)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"workspace_ref": ws.Ref,
		"success":       true,
		"message":       "workspace created",
	})
}

type snapshotRequest struct {
	WorkspaceRef string `json:"workspace_ref"`
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req snapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	snap, err := s.ws.Snapshot(r.Context(), req.WorkspaceRef)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"workspace_ref": snap.Workspace,
		"snapshot_key":  snap.Key,
		"size_bytes":    snap.SizeBytes,
	})
}

type restoreRequest struct {
	WorkspaceRef string `json:"workspace_ref"`
	SnapshotKey  string `json:"snapshot_key"`
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req restoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.ws.Restore(r.Context(), req.WorkspaceRef, req.SnapshotKey); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"workspace_ref": req.WorkspaceRef,
		"success":       true,
		"message":       "workspace restored",
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.NotFound(w, r)
		return
	}
	ref := strings.TrimPrefix(r.URL.Path, "/")
	if ref == "" {
		writeError(w, http.StatusBadRequest, "workspace_ref is required")
		return
	}

	if err := s.ws.Delete(ref); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"workspace_ref": ref,
		"success":       true,
		"message":       "workspace deleted",
	})
}

type runCodeRequest struct {
	Code         string `json:"code"`
	WorkspaceRef string `json:"workspace_ref"`
	TimeoutSec   int    `json:"timeout_sec"`
}

// handleRunCode answers 405 for a non-POST method and 400 for an
// undecodable body; every execution failure (a missing workspace, syntax
// errors, policy violations, timeouts, runtime errors) is answered with
// 200 and described in the body's exit_code, stderr and error_type.
func (s *Server) handleRunCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req runCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TimeoutSec <= 0 {
		req.TimeoutSec = s.cfg.Execution.DefaultTimeoutSec
	}

	// Unlike every other route, run_code does not answer a missing
	// workspace with a 4xx status: it is just another execution failure,
	// reported in the body the same way a timeout or policy violation is.
	wsPath, err := s.ws.WorkspacePath(req.WorkspaceRef)
	if err != nil {
		kind, _ := model.KindOf(err)
		writeJSON(w, http.StatusOK, map[string]any{
			"exit_code":   1,
			"stdout":      "",
			"stderr":      err.Error(),
			"elapsed_sec": 0,
			"error_type":  kind,
		})
		return
	}

	action := model.CodeAction{
		Code:         req.Code,
		WorkspaceRef: req.WorkspaceRef,
		TimeoutSec:   req.TimeoutSec,
	}
	result := s.runner.Run(r.Context(), action, wsPath)

	writeJSON(w, http.StatusOK, map[string]any{
		"exit_code":   result.ExitCode,
		"stdout":      result.Stdout,
		"stderr":      result.Stderr,
		"elapsed_sec": result.ElapsedSec,
		"error_type":  result.ErrorKind,
	})
}

// writeServiceError maps a model.ServiceError's taxonomy kind onto the
// HTTP status the external interface names per route, following the
// original source's exception-type-to-status mapping.
func writeServiceError(w http.ResponseWriter, err error) {
	kind, ok := model.KindOf(err)
	if !ok {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	switch kind {
	case model.ErrTraversal:
		writeError(w, http.StatusBadRequest, err.Error())
	case model.ErrExists:
		writeError(w, http.StatusConflict, err.Error())
	case model.ErrNotFound:
		writeError(w, http.StatusNotFound, err.Error())
	case model.ErrCloneFailed, model.ErrArchiveFailed:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
