package interp

import (
	"context"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"executord/internal/model"
)

type fakeTools struct {
	calls []string
}

func (f *fakeTools) Names() map[string]bool {
	return map[string]bool{"read_file": true, "write_file": true, "run_command": true}
}

func (f *fakeTools) Call(kind string, args []Value) (Value, error) {
	f.calls = append(f.calls, kind)
	switch kind {
	case "read_file":
		return "file contents", nil
	case "write_file":
		return nil, nil
	case "run_command":
		return nil, model.NewError(model.ErrInvalidArgument, "cmd list cannot be empty", nil)
	}
	return nil, nil
}

func parse(t *testing.T, src string) (*sitter.Node, []byte) {
	t.Helper()
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, []byte(src))
	require.NoError(t, err)
	t.Cleanup(tree.Close)
	return tree.RootNode(), []byte(src)
}

func TestRunModule_PrintLiteral(t *testing.T) {
	root, src := parse(t, `print("hello")`)
	out, err := RunModule(root, src, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)
}

func TestRunModule_Arithmetic(t *testing.T) {
	root, src := parse(t, "x = 2 + 3\nprint(x)\n")
	out, err := RunModule(root, src, nil)
	require.NoError(t, err)
	assert.Equal(t, "5\n", out)
}

func TestRunModule_IfElse(t *testing.T) {
	root, src := parse(t, "x = 1\nif x > 0:\n    print('pos')\nelse:\n    print('neg')\n")
	out, err := RunModule(root, src, nil)
	require.NoError(t, err)
	assert.Equal(t, "pos\n", out)
}

func TestRunModule_WhileLoopWithBreak(t *testing.T) {
	root, src := parse(t, "i = 0\nwhile True:\n    i = i + 1\n    if i == 3:\n        break\nprint(i)\n")
	out, err := RunModule(root, src, nil)
	require.NoError(t, err)
	assert.Equal(t, "3\n", out)
}

func TestRunModule_ForLoopOverList(t *testing.T) {
	root, src := parse(t, "total = 0\nfor x in [1, 2, 3]:\n    total = total + x\nprint(total)\n")
	out, err := RunModule(root, src, nil)
	require.NoError(t, err)
	assert.Equal(t, "6\n", out)
}

func TestRunModule_ToolPrimitiveDispatch(t *testing.T) {
	tools := &fakeTools{}
	root, src := parse(t, `content = read_file("foo.txt")
print(content)`)
	out, err := RunModule(root, src, tools)
	require.NoError(t, err)
	assert.Equal(t, "file contents\n", out)
	assert.Equal(t, []string{"read_file"}, tools.calls)
}

func TestRunModule_RaiseUncaughtPropagates(t *testing.T) {
	root, src := parse(t, `raise ValueError("bad state")`)
	_, err := RunModule(root, src, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad state")
}

func TestRunModule_UndefinedNameRaisesNameError(t *testing.T) {
	root, src := parse(t, "print(undefined_var)")
	_, err := RunModule(root, src, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NameError")
}

func TestRunModule_DivisionByZero(t *testing.T) {
	root, src := parse(t, "x = 1 / 0")
	_, err := RunModule(root, src, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ZeroDivisionError")
}

func TestRunModule_ToolInvalidArgumentSurfacesAsValueError(t *testing.T) {
	tools := &fakeTools{}
	root, src := parse(t, `run_command([])`)
	_, err := RunModule(root, src, tools)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ValueError")
}
