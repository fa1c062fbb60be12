package interp

import sitter "github.com/smacker/go-tree-sitter"

// RunModule is the entry point internal/sandbox calls: parse the module
// node produced by internal/validator.Result.Tree, bind the tool
// primitives named by tools.Names() so the fragment can call them as
// bare functions, and evaluate.
func RunModule(root *sitter.Node, src []byte, tools ToolCaller) (stdout string, raised error) {
	env := NewEnv()
	it := New(src, tools, env)
	return it.Run(root)
}
