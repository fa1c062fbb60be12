// Package sandbox is the Sandbox Runner: it validates a code fragment,
// then evaluates it against one workspace's tool primitives under a hard
// wall-clock budget. On timeout the fragment worker is abandoned, not
// killed — preserved from the original runner's ThreadPoolExecutor
// compromise, since a Go goroutine genuinely cannot be preempted any more
// than a Python thread can. Every OS subprocess the tool primitives or
// the workspace manager spawn is independently killable via
// context.WithTimeout; only the in-process fragment worker is abandoned.
package sandbox

import (
	"context"
	"fmt"
	"time"

	"executord/internal/config"
	"executord/internal/interp"
	"executord/internal/logging"
	"executord/internal/model"
	"executord/internal/tools"
	"executord/internal/validator"
)

// Runner composes the Validator and the tool primitives to execute one
// code action against one workspace path.
type Runner struct {
	validator *validator.Validator
	cfg       config.ExecutionConfig
}

func New(cfg config.ExecutionConfig) *Runner {
	return &Runner{
		validator: validator.New(cfg.AllowedImports),
		cfg:       cfg,
	}
}

type workerOutcome struct {
	stdout string
	err    error
}

// Run validates and executes action.Code against the workspace at
// workspacePath, returning within action.TimeoutSec (clamped to the
// process-wide max) regardless of whether the fragment's goroutine has
// actually returned.
func (r *Runner) Run(ctx context.Context, action model.CodeAction, workspacePath string) model.ExecutionResult {
	start := time.Now()

	timeoutSec := action.TimeoutSec
	if timeoutSec <= 0 {
		timeoutSec = r.cfg.DefaultTimeoutSec
	}
	if timeoutSec > r.cfg.MaxTimeoutSec {
		timeoutSec = r.cfg.MaxTimeoutSec
	}

	checkCtx, cancelCheck := context.WithTimeout(ctx, 10*time.Second)
	defer cancelCheck()

	result, err := r.validator.Check(checkCtx, action.Code)
	if err != nil {
		return model.ExecutionResult{
			ExitCode:   1,
			Stderr:     err.Error(),
			ElapsedSec: time.Since(start).Seconds(),
			ErrorKind:  model.ErrSyntaxError,
		}
	}
	if !result.OK {
		logging.Sandbox("rejected code action for workspace %s: %s", workspacePath, result.Kind)
		return model.ExecutionResult{
			ExitCode:   1,
			Stderr:     result.Detail,
			ElapsedSec: time.Since(start).Seconds(),
			ErrorKind:  result.Kind,
		}
	}
	defer result.Tree.Close()

	fragmentCtx, cancelFragment := context.WithTimeout(ctx, time.Duration(timeoutSec)*time.Second)
	defer cancelFragment()

	toolset := tools.New(fragmentCtx, workspacePath, r.cfg)

	outcome := make(chan workerOutcome, 1)
	go func() {
		stdout, raised := interp.RunModule(result.Tree.RootNode(), result.Source, toolset)
		outcome <- workerOutcome{stdout: stdout, err: raised}
	}()

	logging.SandboxDebug("executing fragment against %s (timeout=%ds)", workspacePath, timeoutSec)

	select {
	case o := <-outcome:
		elapsed := time.Since(start).Seconds()
		if o.err != nil {
			// A nil ErrorKind with a nonzero exit code means the fragment
			// itself raised an uncaught exception — distinct from
			// SYNTAX_ERROR/POLICY_VIOLATION/TIMEOUT, which are the only
			// kinds this runner ever sets.
			return model.ExecutionResult{
				ExitCode:   1,
				Stdout:     o.stdout,
				Stderr:     o.err.Error(),
				ElapsedSec: elapsed,
			}
		}
		return model.ExecutionResult{
			ExitCode:   0,
			Stdout:     o.stdout,
			ElapsedSec: elapsed,
		}
	case <-fragmentCtx.Done():
		// The goroutine above is abandoned here, not killed: it may still
		// be mutating the workspace or blocked in a tool call. This
		// mirrors the original's pool.shutdown(wait=False) — the worker
		// is left to finish or hang on its own, and its result (if it
		// ever arrives) is discarded by this function having already
		// returned.
		logging.Sandbox("fragment against %s abandoned after %ds timeout", workspacePath, timeoutSec)
		return model.ExecutionResult{
			ExitCode:   1,
			Stderr:     fmt.Sprintf("execution exceeded %ds timeout", timeoutSec),
			ElapsedSec: time.Since(start).Seconds(),
			ErrorKind:  model.ErrTimeout,
		}
	}
}
