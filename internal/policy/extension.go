// Package policy evaluates one trusted, operator-authored Go expression
// once at process boot to extend the run_command allowlist beyond the
// config file's static list — e.g. adding project-specific build
// wrappers without a code change. It never touches the untrusted
// code-fragment path; that restriction lives entirely in
// internal/validator and internal/tools. Grounded on the yaegi
// restricted-symbol-table pattern, narrowed to stdlib-only evaluation of
// a single expression rather than a general tool-execution engine.
package policy

import (
	"fmt"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"executord/internal/logging"
)

// ExtendAllowedCommands evaluates expr, a Go expression of type
// []string, and appends its result to base. An empty expr is a no-op —
// most deployments never set this and run with exactly the configured
// allowlist. Evaluation failures are returned rather than silently
// ignored: a broken extension expression should fail boot loudly, not
// leave the operator believing commands were added that weren't.
func ExtendAllowedCommands(base []string, expr string) ([]string, error) {
	if expr == "" {
		return base, nil
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("policy: loading stdlib symbols: %w", err)
	}

	v, err := i.Eval(expr)
	if err != nil {
		return nil, fmt.Errorf("policy: evaluating allowlist extension expression: %w", err)
	}

	extra, ok := v.Interface().([]string)
	if !ok {
		return nil, fmt.Errorf("policy: allowlist extension expression must evaluate to []string, got %T", v.Interface())
	}

	logging.Policy("extending allowed commands with %d operator-supplied entries", len(extra))
	return append(append([]string{}, base...), extra...), nil
}
