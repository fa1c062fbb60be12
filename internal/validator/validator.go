// Package validator performs the static, pre-execution check on a code
// fragment: is it parseable, and does every import it declares name a
// module whose root package is on the allowlist. Nothing here executes
// the fragment — that is internal/interp's job, consuming the same parse
// tree this package builds.
package validator

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"executord/internal/logging"
	"executord/internal/model"
)

// Validator statically checks code fragments against a fixed import
// allowlist. One Validator may be reused across fragments and goroutines:
// Check builds a fresh sitter.Parser on every call (internal/sandbox
// builds one Validator per Runner).
type Validator struct {
	allowed map[string]bool
}

// New builds a Validator with exactly the given allowlist of root package
// names (the caller supplies it from config so the set is a single
// process-fixed policy, not something fragments can ever influence).
func New(allowedImports []string) *Validator {
	allowed := make(map[string]bool, len(allowedImports))
	for _, m := range allowedImports {
		allowed[m] = true
	}
	return &Validator{allowed: allowed}
}

// Result is what Check reports: either the fragment is clear to run, or it
// is rejected with a taxonomy kind (always SYNTAX_ERROR or
// POLICY_VIOLATION — Check never returns any other kind).
type Result struct {
	OK      bool
	Kind    model.ErrorKind
	Detail  string
	Tree    *sitter.Tree // retained so internal/interp can reuse it; caller must Tree.Close()
	Source  []byte
}

// Check parses code and walks every import declaration.
func (v *Validator) Check(ctx context.Context, code string) (*Result, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	src := []byte(code)
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return &Result{OK: false, Kind: model.ErrSyntaxError, Detail: err.Error()}, nil
	}

	root := tree.RootNode()
	if root.HasError() {
		detail := firstErrorSnippet(root, src)
		tree.Close()
		logging.Validator("syntax error in fragment: %s", detail)
		return &Result{OK: false, Kind: model.ErrSyntaxError, Detail: detail}, nil
	}

	if violation := v.findDisallowedImport(root, src); violation != "" {
		tree.Close()
		logging.Validator("policy violation: import %q not allowed", violation)
		return &Result{
			OK:     false,
			Kind:   model.ErrPolicyViolation,
			Detail: fmt.Sprintf("import of %q is not allowed in the sandbox", violation),
		}, nil
	}

	return &Result{OK: true, Tree: tree, Source: src}, nil
}

// findDisallowedImport walks every import_statement / import_from_statement
// node and returns the first dotted module name whose root segment is not
// in the allowlist. Aliasing ("import x as y") does not change the
// dotted_name text tree-sitter exposes, so it cannot bypass this check.
func (v *Validator) findDisallowedImport(root *sitter.Node, src []byte) string {
	var found string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if found != "" {
			return
		}
		switch n.Type() {
		case "import_from_statement":
			// Only the module_name field names a module to check — the
			// name field lists symbols imported FROM that module (e.g.
			// "OrderedDict" in "from collections import OrderedDict"),
			// which are never themselves importable packages.
			if module := n.ChildByFieldName("module_name"); module != nil {
				if rootSeg, ok := v.checkDottedName(module, src); !ok {
					found = rootSeg
					return
				}
			}
		case "import_statement":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				child := n.NamedChild(i)
				if child.Type() != "dotted_name" && child.Type() != "aliased_import" {
					continue
				}
				if child.Type() == "aliased_import" {
					// aliased_import wraps a dotted_name as its first named child
					if dn := child.NamedChild(0); dn != nil {
						child = dn
					}
				}
				if rootSeg, ok := v.checkDottedName(child, src); !ok {
					found = rootSeg
					return
				}
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
			if found != "" {
				return
			}
		}
	}
	walk(root)
	return found
}

// checkDottedName returns (rootSegment, false) when the module name rooted
// at n is not on the allowlist, or ("", true) when it is.
func (v *Validator) checkDottedName(n *sitter.Node, src []byte) (string, bool) {
	rootSeg := strings.SplitN(n.Content(src), ".", 2)[0]
	if !v.allowed[rootSeg] {
		return rootSeg, false
	}
	return "", true
}

func firstErrorSnippet(root *sitter.Node, src []byte) string {
	var errNode *sitter.Node
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if errNode != nil {
			return
		}
		if n.IsError() || n.IsMissing() {
			errNode = n
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
			if errNode != nil {
				return
			}
		}
	}
	walk(root)
	if errNode == nil {
		return "invalid syntax"
	}
	snippet := errNode.Content(src)
	if len(snippet) > 80 {
		snippet = snippet[:80] + "..."
	}
	return fmt.Sprintf("invalid syntax near %q (line %d)", snippet, errNode.StartPoint().Row+1)
}
