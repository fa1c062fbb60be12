package tools

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"executord/internal/config"
	"executord/internal/diff"
	"executord/internal/interp"
	"executord/internal/logging"
	"executord/internal/model"
)

// names lists every tool primitive a code fragment may call by bare name.
var names = map[string]bool{
	"read_file":    true,
	"write_file":   true,
	"list_files":   true,
	"search_code":  true,
	"git_status":   true,
	"git_diff":     true,
	"apply_patch":  true,
	"git_reset":    true,
	"run_command":  true,
}

// Toolset binds the nine tool primitives to one workspace root for the
// lifetime of a single code action. It implements interp.ToolCaller, the
// tagged-variant dispatch the evaluator calls into — the internal
// mechanism satisfying the structured-tool-call-request redesign while
// the external code-fragment contract stays unchanged.
type Toolset struct {
	ctx  context.Context
	root string
	cfg  config.ExecutionConfig
}

// New binds a Toolset to one workspace absolute path.
func New(ctx context.Context, workspaceRoot string, cfg config.ExecutionConfig) *Toolset {
	return &Toolset{ctx: ctx, root: workspaceRoot, cfg: cfg}
}

func (t *Toolset) Names() map[string]bool { return names }

// Call dispatches one tool invocation by kind. Every branch converts its
// argv into a concrete Go call, so there is exactly one reflection-free
// switch at the boundary between the interpreter's dynamic Values and
// this package's typed functions.
func (t *Toolset) Call(kind string, args []interp.Value) (interp.Value, error) {
	switch kind {
	case "read_file":
		path, err := str(args, 0, "read_file")
		if err != nil {
			return nil, err
		}
		return t.readFile(path)
	case "write_file":
		path, err := str(args, 0, "write_file")
		if err != nil {
			return nil, err
		}
		text, err := str(args, 1, "write_file")
		if err != nil {
			return nil, err
		}
		return t.writeFile(path, text)
	case "list_files":
		base, err := str(args, 0, "list_files")
		if err != nil {
			return nil, err
		}
		pattern, err := str(args, 1, "list_files")
		if err != nil {
			return nil, err
		}
		return t.listFiles(base, pattern)
	case "search_code":
		pattern, err := str(args, 0, "search_code")
		if err != nil {
			return nil, err
		}
		base, err := str(args, 1, "search_code")
		if err != nil {
			return nil, err
		}
		return t.searchCode(pattern, base)
	case "git_status":
		return t.gitStatus()
	case "git_diff":
		ref := "HEAD"
		if len(args) > 0 {
			if s, ok := args[0].(string); ok && s != "" {
				ref = s
			}
		}
		return t.gitDiff(ref)
	case "apply_patch":
		patch, err := str(args, 0, "apply_patch")
		if err != nil {
			return nil, err
		}
		return t.applyPatch(patch)
	case "git_reset":
		ref := "HEAD"
		if len(args) > 0 {
			if s, ok := args[0].(string); ok && s != "" {
				ref = s
			}
		}
		return t.gitReset(ref)
	case "run_command":
		return t.runCommand(args)
	default:
		return nil, fmt.Errorf("unknown tool primitive %q", kind)
	}
}

func str(args []interp.Value, i int, tool string) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("%s: missing argument %d", tool, i)
	}
	s, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("%s: argument %d must be a string", tool, i)
	}
	return s, nil
}

func (t *Toolset) resolve(rel string) (string, error) {
	return resolveInWorkspace(t.root, rel)
}

func (t *Toolset) readFile(rel string) (interp.Value, error) {
	abs, err := t.resolve(rel)
	if err != nil {
		return nil, err
	}
	logging.Tools("read_file %s", rel)
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.NewError(model.ErrNotFound, fmt.Sprintf("no such file: %s", rel), err)
		}
		return nil, err
	}
	return string(data), nil
}

func (t *Toolset) writeFile(rel, text string) (interp.Value, error) {
	abs, err := t.resolve(rel)
	if err != nil {
		return nil, err
	}
	logging.Tools("write_file %s (%d bytes)", rel, len(text))
	if old, err := os.ReadFile(abs); err == nil {
		logDiffSummary(rel, string(old), text)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(abs, []byte(text), 0o644); err != nil {
		return nil, err
	}
	return nil, nil
}

// logDiffSummary records how many lines a write_file call touched, the
// adapted form of the teacher's file-audit trail: a hash-based
// before/after comparison replaced with a real line-level diff so the
// debug log carries the shape of the change, not just that one occurred.
func logDiffSummary(rel, old, newContent string) {
	fd := diff.ComputeDiff(rel, rel, old, newContent)
	added, removed := 0, 0
	for _, h := range fd.Hunks {
		for _, l := range h.Lines {
			switch l.Type {
			case diff.LineAdded:
				added++
			case diff.LineRemoved:
				removed++
			}
		}
	}
	logging.Tools("write_file %s: +%d -%d lines", rel, added, removed)
}

// listFiles matches pattern the way the original's base.glob(pattern)
// does: a pattern containing "**" recurses the whole subtree, anything
// else only matches entries directly inside baseRel.
func (t *Toolset) listFiles(baseRel, pattern string) (interp.Value, error) {
	base, err := t.resolve(baseRel)
	if err != nil {
		return nil, err
	}
	logging.Tools("list_files %s %q", baseRel, pattern)
	recursive := strings.Contains(pattern, "**")
	// Only the final path segment is ever matched against a file's
	// basename — a recursive pattern like "**/*.go" still matches on
	// "*.go", the "**/" just opts the walk into every subdirectory.
	namePattern := pattern
	if idx := strings.LastIndex(pattern, "/"); idx != -1 {
		namePattern = pattern[idx+1:]
	}
	list := &interp.List{}
	walkErr := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !recursive && path != base {
				return fs.SkipDir
			}
			return nil
		}
		matched, mErr := filepath.Match(namePattern, d.Name())
		if mErr != nil {
			return mErr
		}
		if !matched {
			return nil
		}
		rel, relErr := filepath.Rel(t.root, path)
		if relErr != nil {
			return relErr
		}
		list.Items = append(list.Items, filepath.ToSlash(rel))
		return nil
	})
	if walkErr != nil {
		if os.IsNotExist(walkErr) {
			return nil, model.NewError(model.ErrNotFound, fmt.Sprintf("no such directory: %s", baseRel), walkErr)
		}
		return nil, walkErr
	}
	return list, nil
}

// searchCode shells to rg; when the binary is absent it returns a
// distinguishable sentinel dict rather than silently reporting zero
// matches, per the source's noted absence-fallback ambiguity.
func (t *Toolset) searchCode(pattern, baseRel string) (interp.Value, error) {
	base, err := t.resolve(baseRel)
	if err != nil {
		return nil, err
	}
	logging.Tools("search_code %q under %s", pattern, baseRel)

	rgPath, lookErr := exec.LookPath("rg")
	if lookErr != nil {
		d := interp.NewDict("matches", &interp.List{}, "search_unavailable", true)
		return d, nil
	}

	ctx, cancel := context.WithTimeout(t.ctx, time.Duration(t.cfg.DefaultTimeoutSec)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, rgPath, "--line-number", "--no-heading", pattern, ".")
	cmd.Dir = base
	out, _ := cmd.Output() // non-zero exit on "no matches" is expected, not an error

	list := &interp.List{}
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ":", 3)
		if len(parts) != 3 {
			continue
		}
		lineNo, _ := strconv.Atoi(parts[1])
		list.Items = append(list.Items, interp.NewDict(
			"file", filepath.ToSlash(strings.TrimPrefix(parts[0], "./")),
			"line", float64(lineNo),
			"text", parts[2],
		))
	}
	return interp.NewDict("matches", list, "search_unavailable", false), nil
}

func (t *Toolset) gitStatus() (interp.Value, error) {
	out, err := t.git("status")
	return out, err
}

func (t *Toolset) gitDiff(ref string) (interp.Value, error) {
	out, err := t.git("diff", ref)
	return out, err
}

// gitReset hard-resets the workspace to ref; unlike git_status and
// git_diff it raises when git exits non-zero.
func (t *Toolset) gitReset(ref string) (interp.Value, error) {
	ctx, cancel := context.WithTimeout(t.ctx, time.Duration(t.cfg.DefaultTimeoutSec)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "reset", "--hard", ref)
	cmd.Dir = t.root
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("git reset --hard %s: %w: %s", ref, err, strings.TrimSpace(string(out)))
	}
	return nil, nil
}

// git runs one git subcommand in the workspace and returns stdout+stderr
// combined as status/diff text for git_status and git_diff; a non-zero
// exit is not an error — whatever git printed is returned as the text.
func (t *Toolset) git(args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(t.ctx, time.Duration(t.cfg.DefaultTimeoutSec)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = t.root
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	_ = cmd.Run()
	return out.String(), nil
}

// applyPatch writes diff text to a scratch file, invokes `git apply`
// against it, and guarantees the scratch file is removed regardless of
// outcome.
func (t *Toolset) applyPatch(patchText string) (interp.Value, error) {
	scratch, err := os.CreateTemp(t.root, ".patch-*.diff")
	if err != nil {
		return nil, err
	}
	scratchPath := scratch.Name()
	defer os.Remove(scratchPath)

	if _, err := scratch.WriteString(patchText); err != nil {
		scratch.Close()
		return nil, err
	}
	scratch.Close()

	logging.Tools("apply_patch scratch=%s", filepath.Base(scratchPath))

	ctx, cancel := context.WithTimeout(t.ctx, time.Duration(t.cfg.DefaultTimeoutSec)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "apply", scratchPath)
	cmd.Dir = t.root
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	runErr := cmd.Run()

	exitCode := 0
	success := runErr == nil
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	return interp.NewDict(
		"exit_code", float64(exitCode),
		"stdout", out.String(),
		"stderr", stderr.String(),
		"success", success,
	), nil
}

// runCommand runs an allowlisted command vector in the workspace. The
// allowlist is the configured Execution.AllowedCommands (by default
// {mvn, ./gradlew, java, git, rg}) plus any commands a boot-time policy
// extension adds; it is not fixed at build time.
func (t *Toolset) runCommand(args []interp.Value) (interp.Value, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("run_command: missing argv")
	}
	argvList, ok := args[0].(*interp.List)
	if !ok || len(argvList.Items) == 0 {
		return nil, model.NewError(model.ErrInvalidArgument, "cmd list cannot be empty", nil)
	}

	argv := make([]string, len(argvList.Items))
	for i, v := range argvList.Items {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("run_command: argv[%d] must be a string", i)
		}
		argv[i] = s
	}

	allowed := false
	for _, a := range t.cfg.AllowedCommands {
		if a == argv[0] {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, model.NewError(model.ErrPolicyViolation, fmt.Sprintf("command %q is not in the allowed set", argv[0]), nil)
	}

	timeoutSec := t.cfg.DefaultTimeoutSec
	if len(args) > 1 {
		if f, ok := args[1].(float64); ok && f > 0 {
			timeoutSec = int(f)
		}
	}
	if timeoutSec > t.cfg.MaxTimeoutSec {
		timeoutSec = t.cfg.MaxTimeoutSec
	}

	logging.Tools("run_command %v (timeout=%ds)", argv, timeoutSec)

	ctx, cancel := context.WithTimeout(t.ctx, time.Duration(timeoutSec)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = t.root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	runErr := cmd.Run()

	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else if ctx.Err() == context.DeadlineExceeded {
			return nil, model.NewError(model.ErrTimeout, fmt.Sprintf("command %q timed out after %ds", argv[0], timeoutSec), runErr)
		} else {
			exitCode = -1
		}
	}

	return interp.NewDict(
		"exit_code", float64(exitCode),
		"stdout", stdout.String(),
		"stderr", stderr.String(),
	), nil
}
