package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExecutionResult_Observation_NoOutput(t *testing.T) {
	r := ExecutionResult{ExitCode: 0}
	assert.Equal(t, "(no output)\n\nexit_code: 0", r.Observation())
}

func TestExecutionResult_Observation_StdoutOnly(t *testing.T) {
	r := ExecutionResult{ExitCode: 0, Stdout: "hello\n"}
	assert.Equal(t, "stdout:\nhello\n\nexit_code: 0", r.Observation())
}

func TestExecutionResult_Observation_WithErrorKind(t *testing.T) {
	r := ExecutionResult{ExitCode: 1, Stderr: "boom", ErrorKind: ErrTimeout}
	assert.Equal(t, "stderr:\nboom\n\nexit_code: 1\nerror_type: TIMEOUT", r.Observation())
}

func TestExecutionResult_Observation_BothStreams(t *testing.T) {
	r := ExecutionResult{ExitCode: 2, Stdout: "out", Stderr: "err"}
	assert.Equal(t, "stdout:\nout\n\nstderr:\nerr\n\nexit_code: 2", r.Observation())
}
