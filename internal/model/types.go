package model

import (
	"strconv"
	"strings"
	"time"
)

// Workspace is a directory under a process-configured workspace root
// holding a checked-out source tree, identified by an opaque caller-chosen
// ref (e.g. a job id).
type Workspace struct {
	Ref  string
	Path string
}

// Snapshot is a compressed archive of a workspace at a point in time,
// identified by an opaque key that encodes the originating ref and a
// timestamp (see internal/workspace for the exact format).
type Snapshot struct {
	Key       string
	Workspace string
	SizeBytes int64
	CreatedAt time.Time
}

// CodeAction is the (code_fragment, workspace_ref, timeout) triple
// submitted for one execution. It is never persisted.
type CodeAction struct {
	Code        string
	WorkspaceRef string
	TimeoutSec  int
}

// ExecutionResult is the structured outcome of a code action.
type ExecutionResult struct {
	ExitCode   int
	Stdout     string
	Stderr     string
	ElapsedSec float64
	ErrorKind  ErrorKind // "" (nil) unless one of SYNTAX_ERROR/POLICY_VIOLATION/TIMEOUT
}

// Observation renders the result the way the orchestrator expects to
// receive it as the agent's next input — ported verbatim from the
// original source's to_observation().
func (r ExecutionResult) Observation() string {
	var sections []string

	stdout := strings.TrimSpace(r.Stdout)
	stderr := strings.TrimSpace(r.Stderr)

	if stdout == "" && stderr == "" {
		sections = append(sections, "(no output)")
	} else {
		if stdout != "" {
			sections = append(sections, "stdout:\n"+stdout)
		}
		if stderr != "" {
			sections = append(sections, "stderr:\n"+stderr)
		}
	}

	tail := "exit_code: " + strconv.Itoa(r.ExitCode)
	if r.ErrorKind != "" {
		tail += "\nerror_type: " + string(r.ErrorKind)
	}
	sections = append(sections, tail)

	return strings.Join(sections, "\n\n")
}
