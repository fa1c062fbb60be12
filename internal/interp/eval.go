// Package interp is the restricted execution environment: a tree-walking
// evaluator over the tree-sitter Python parse tree internal/validator
// already produced, implementing exactly the language surface the tool
// primitive contract and the spec's testable scenarios exercise. It is
// not a Python implementation — allowlisted stdlib modules are not
// reimplemented: an import binds nothing, so a bare module name raises
// NameError and a call through an attribute (os.getcwd()) raises
// SyntaxError (see DESIGN.md).
package interp

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"executord/internal/model"
)

// Interpreter evaluates one code fragment against one Env and ToolCaller.
// Not reusable across fragments — construct one per code action.
type Interpreter struct {
	src    []byte
	tools  ToolCaller
	env    *Env
	stdout bytes.Buffer
}

func New(src []byte, tools ToolCaller, env *Env) *Interpreter {
	return &Interpreter{src: src, tools: tools, env: env}
}

// Run executes root (a module node). It never panics to the caller:
// raised-but-uncaught exceptions are recovered and returned as a
// *pyException-shaped error whose .Error() is the one-line
// "Type: message" text the caller writes to stderr (no traceback lines
// or source positions); any other panic is a genuine interpreter bug
// and is re-raised as a plain error so it is visible, not swallowed.
func (in *Interpreter) Run(root *sitter.Node) (stdout string, raised error) {
	defer func() {
		if r := recover(); r != nil {
			if pe, ok := r.(*pyException); ok {
				raised = pe
				return
			}
			raised = fmt.Errorf("interpreter error: %v", r)
		}
	}()

	in.execBlock(root)
	return in.stdout.String(), nil
}

func (in *Interpreter) text(n *sitter.Node) string {
	return n.Content(in.src)
}

func (in *Interpreter) execBlock(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		in.execStmt(n.NamedChild(i))
	}
}

func (in *Interpreter) execStmt(n *sitter.Node) {
	switch n.Type() {
	case "expression_statement":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			in.evalExpr(n.NamedChild(i))
		}
	case "assignment":
		in.execAssignment(n)
	case "if_statement":
		in.execIf(n)
	case "while_statement":
		in.execWhile(n)
	case "for_statement":
		in.execFor(n)
	case "pass_statement":
		// no-op
	case "break_statement":
		panic(breakSignal{})
	case "continue_statement":
		panic(continueSignal{})
	case "raise_statement":
		in.execRaise(n)
	case "return_statement":
		// Module-level return is meaningless for a fragment; treated as a no-op
		// since the restricted language has no function definitions.
	case "import_statement", "import_from_statement", "comment":
		// Already validated; tool primitives are injected as globals so
		// imports carry no further runtime effect.
	default:
		// Unsupported statement shape (e.g. a class/function definition) —
		// evaluate any nested expression defensively rather than crash the
		// whole fragment on cosmetic constructs it doesn't use.
		for i := 0; i < int(n.NamedChildCount()); i++ {
			in.execStmt(n.NamedChild(i))
		}
	}
}

func (in *Interpreter) execAssignment(n *sitter.Node) {
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	if left == nil || right == nil {
		return
	}
	val := in.evalExpr(right)
	if left.Type() != "identifier" {
		raise("SyntaxError", "only simple variable assignment is supported in this sandbox")
		return
	}
	in.env.Set(in.text(left), val)
}

func (in *Interpreter) execIf(n *sitter.Node) {
	cond := n.ChildByFieldName("condition")
	body := n.ChildByFieldName("consequence")
	if Truthy(in.evalExpr(cond)) {
		in.execBlock(body)
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "elif_clause":
			econd := c.ChildByFieldName("condition")
			ebody := c.ChildByFieldName("consequence")
			if Truthy(in.evalExpr(econd)) {
				in.execBlock(ebody)
				return
			}
		case "else_clause":
			ebody := c.ChildByFieldName("body")
			if ebody == nil && c.NamedChildCount() > 0 {
				ebody = c.NamedChild(int(c.NamedChildCount()) - 1)
			}
			in.execBlock(ebody)
			return
		}
	}
}

func (in *Interpreter) execWhile(n *sitter.Node) {
	cond := n.ChildByFieldName("condition")
	body := n.ChildByFieldName("body")
	for Truthy(in.evalExpr(cond)) {
		if in.runLoopBody(body) {
			break
		}
	}
}

func (in *Interpreter) execFor(n *sitter.Node) {
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	body := n.ChildByFieldName("body")
	if left == nil || left.Type() != "identifier" || right == nil {
		raise("SyntaxError", "only `for x in <list>` is supported in this sandbox")
		return
	}
	iterable := in.evalExpr(right)
	list, ok := iterable.(*List)
	if !ok {
		raise("TypeError", "object is not iterable")
		return
	}
	for _, item := range list.Items {
		in.env.Set(in.text(left), item)
		if in.runLoopBody(body) {
			break
		}
	}
}

// runLoopBody executes one loop iteration, translating a break signal into
// stop=true and swallowing a continue signal (both delivered via panic so
// they unwind through arbitrarily nested statements).
func (in *Interpreter) runLoopBody(body *sitter.Node) (stop bool) {
	defer func() {
		if r := recover(); r != nil {
			switch r.(type) {
			case breakSignal:
				stop = true
			case continueSignal:
				// fall through, next iteration
			default:
				panic(r)
			}
		}
	}()
	in.execBlock(body)
	return false
}

func (in *Interpreter) execRaise(n *sitter.Node) {
	if n.NamedChildCount() == 0 {
		raise("Exception", "")
		return
	}
	expr := n.NamedChild(0)
	if fn := expr.ChildByFieldName("function"); expr.Type() == "call" && fn != nil && fn.Type() == "identifier" {
		// raise SomeError("msg"): exception classes are not bound names in
		// this sandbox, so the call is read as constructing that exception.
		if _, bound := in.env.Get(in.text(fn)); !bound {
			var parts []string
			if args := expr.ChildByFieldName("arguments"); args != nil {
				for i := 0; i < int(args.NamedChildCount()); i++ {
					parts = append(parts, ToDisplay(in.evalExpr(args.NamedChild(i))))
				}
			}
			raise(in.text(fn), strings.Join(parts, ", "))
			return
		}
	}
	v := in.evalExpr(expr)
	switch x := v.(type) {
	case string:
		raise("Exception", x)
	case *Dict:
		msg, _ := x.Get("message")
		raise("Exception", ToDisplay(msg))
	default:
		raise("Exception", ToDisplay(v))
	}
}

func (in *Interpreter) evalExpr(n *sitter.Node) Value {
	switch n.Type() {
	case "identifier":
		name := in.text(n)
		if v, ok := in.env.Get(name); ok {
			return v
		}
		raise("NameError", fmt.Sprintf("name %q is not defined", name))
		return nil
	case "true":
		return true
	case "false":
		return false
	case "none":
		return nil
	case "integer":
		f, _ := strconv.ParseFloat(in.text(n), 64)
		return f
	case "float":
		f, _ := strconv.ParseFloat(in.text(n), 64)
		return f
	case "string":
		return decodeString(in.text(n))
	case "list":
		l := &List{}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			l.Items = append(l.Items, in.evalExpr(n.NamedChild(i)))
		}
		return l
	case "parenthesized_expression":
		return in.evalExpr(n.NamedChild(0))
	case "not_operator":
		return !Truthy(in.evalExpr(n.NamedChild(0)))
	case "boolean_operator":
		return in.evalBoolOp(n)
	case "comparison_operator":
		return in.evalComparison(n)
	case "binary_operator":
		return in.evalBinary(n)
	case "unary_operator":
		return in.evalUnary(n)
	case "call":
		return in.evalCall(n)
	case "attribute":
		return in.evalAttribute(n)
	case "subscript":
		return in.evalSubscript(n)
	default:
		raise("SyntaxError", fmt.Sprintf("unsupported expression: %s", n.Type()))
		return nil
	}
}

func (in *Interpreter) evalBoolOp(n *sitter.Node) Value {
	left := in.evalExpr(n.ChildByFieldName("left"))
	op := ""
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.Type() == "and" || c.Type() == "or" {
			op = c.Type()
			break
		}
	}
	if op == "and" {
		if !Truthy(left) {
			return left
		}
		return in.evalExpr(n.ChildByFieldName("right"))
	}
	// or
	if Truthy(left) {
		return left
	}
	return in.evalExpr(n.ChildByFieldName("right"))
}

func (in *Interpreter) evalComparison(n *sitter.Node) Value {
	// tree-sitter-python folds chained comparisons ("a < b < c") into one
	// comparison_operator node with alternating operand/operator children.
	var operands []*sitter.Node
	var ops []string
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		switch c.Type() {
		case "<", ">", "==", "!=", "<=", ">=", "in", "not", "is":
			ops = append(ops, c.Type())
		default:
			if c.IsNamed() {
				operands = append(operands, c)
			}
		}
	}
	if len(operands) < 2 {
		if len(operands) == 1 {
			return in.evalExpr(operands[0])
		}
		return false
	}
	result := true
	for i := 0; i+1 < len(operands) && i < len(ops); i++ {
		l := in.evalExpr(operands[i])
		r := in.evalExpr(operands[i+1])
		if !compare(ops[i], l, r) {
			result = false
			break
		}
	}
	return result
}

func compare(op string, l, r Value) bool {
	switch op {
	case "==":
		return valuesEqual(l, r)
	case "!=":
		return !valuesEqual(l, r)
	case "<", ">", "<=", ">=":
		lf, lok := l.(float64)
		rf, rok := r.(float64)
		if lok && rok {
			switch op {
			case "<":
				return lf < rf
			case ">":
				return lf > rf
			case "<=":
				return lf <= rf
			case ">=":
				return lf >= rf
			}
		}
		ls, lsok := l.(string)
		rs, rsok := r.(string)
		if lsok && rsok {
			switch op {
			case "<":
				return ls < rs
			case ">":
				return ls > rs
			case "<=":
				return ls <= rs
			case ">=":
				return ls >= rs
			}
		}
		raise("TypeError", "unsupported comparison between these types")
	case "in":
		if list, ok := r.(*List); ok {
			for _, it := range list.Items {
				if valuesEqual(it, l) {
					return true
				}
			}
			return false
		}
		if s, ok := r.(string); ok {
			if ls, ok := l.(string); ok {
				return strings.Contains(s, ls)
			}
		}
		return false
	}
	return false
}

func valuesEqual(l, r Value) bool {
	return ToDisplay(l) == ToDisplay(r) && fmt.Sprintf("%T", l) == fmt.Sprintf("%T", r)
}

func (in *Interpreter) evalUnary(n *sitter.Node) Value {
	op := n.Child(0).Type()
	v := in.evalExpr(n.NamedChild(0))
	f, ok := v.(float64)
	if !ok {
		raise("TypeError", "bad operand type for unary operator")
	}
	if op == "-" {
		return -f
	}
	return f
}

func (in *Interpreter) evalBinary(n *sitter.Node) Value {
	left := in.evalExpr(n.ChildByFieldName("left"))
	right := in.evalExpr(n.ChildByFieldName("right"))
	op := ""
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if !c.IsNamed() {
			op = c.Type()
		}
	}

	if ls, ok := left.(string); ok {
		if op == "+" {
			rs, ok := right.(string)
			if !ok {
				raise("TypeError", "can only concatenate str to str")
			}
			return ls + rs
		}
	}

	lf, lok := left.(float64)
	rf, rok := right.(float64)
	if !lok || !rok {
		raise("TypeError", fmt.Sprintf("unsupported operand type(s) for %s", op))
	}
	switch op {
	case "+":
		return lf + rf
	case "-":
		return lf - rf
	case "*":
		return lf * rf
	case "/":
		if rf == 0 {
			raise("ZeroDivisionError", "division by zero")
		}
		return lf / rf
	case "%":
		if rf == 0 {
			raise("ZeroDivisionError", "modulo by zero")
		}
		return float64(int64(lf) % int64(rf))
	default:
		raise("SyntaxError", fmt.Sprintf("unsupported operator %q", op))
		return nil
	}
}

func (in *Interpreter) evalAttribute(n *sitter.Node) Value {
	obj := in.evalExpr(n.ChildByFieldName("object"))
	attr := n.ChildByFieldName("attribute")
	name := in.text(attr)
	if d, ok := obj.(*Dict); ok {
		if v, ok := d.Get(name); ok {
			return v
		}
	}
	raise("AttributeError", fmt.Sprintf("object has no attribute %q (sandbox does not model this stdlib surface)", name))
	return nil
}

func (in *Interpreter) evalSubscript(n *sitter.Node) Value {
	obj := in.evalExpr(n.ChildByFieldName("value"))
	sub := n.ChildByFieldName("subscript")
	idx := in.evalExpr(sub)
	switch container := obj.(type) {
	case *Dict:
		key, ok := idx.(string)
		if !ok {
			raise("TypeError", "dict keys in this sandbox must be strings")
		}
		v, ok := container.Get(key)
		if !ok {
			raise("KeyError", key)
		}
		return v
	case *List:
		f, ok := idx.(float64)
		if !ok {
			raise("TypeError", "list indices must be integers")
		}
		i := int(f)
		if i < 0 {
			i += len(container.Items)
		}
		if i < 0 || i >= len(container.Items) {
			raise("IndexError", "list index out of range")
		}
		return container.Items[i]
	case string:
		f, ok := idx.(float64)
		if !ok {
			raise("TypeError", "string indices must be integers")
		}
		i := int(f)
		if i < 0 {
			i += len(container)
		}
		if i < 0 || i >= len(container) {
			raise("IndexError", "string index out of range")
		}
		return string(container[i])
	default:
		raise("TypeError", "object is not subscriptable")
		return nil
	}
}

func (in *Interpreter) evalCall(n *sitter.Node) Value {
	fn := n.ChildByFieldName("function")
	args := n.ChildByFieldName("arguments")

	var argv []Value
	if args != nil {
		for i := 0; i < int(args.NamedChildCount()); i++ {
			argv = append(argv, in.evalExpr(args.NamedChild(i)))
		}
	}

	if fn.Type() != "identifier" {
		raise("SyntaxError", "only direct function calls are supported in this sandbox")
		return nil
	}
	name := in.text(fn)

	if name == "print" {
		parts := make([]string, len(argv))
		for i, a := range argv {
			parts[i] = ToDisplay(a)
		}
		in.stdout.WriteString(strings.Join(parts, " "))
		in.stdout.WriteString("\n")
		return nil
	}
	if name == "len" {
		if len(argv) != 1 {
			raise("TypeError", "len() takes exactly one argument")
		}
		switch x := argv[0].(type) {
		case string:
			return float64(len(x))
		case *List:
			return float64(len(x.Items))
		case *Dict:
			return float64(len(x.keys))
		}
		raise("TypeError", "object has no len()")
	}
	if name == "str" {
		if len(argv) != 1 {
			raise("TypeError", "str() takes exactly one argument")
		}
		return ToDisplay(argv[0])
	}

	if in.tools != nil && in.tools.Names()[name] {
		result, err := in.tools.Call(name, argv)
		if err != nil {
			raise(pyTypeFor(err), err.Error())
		}
		return result
	}

	raise("NameError", fmt.Sprintf("name %q is not defined", name))
	return nil
}

// pyTypeFor maps a tool primitive's ServiceError kind onto the exception
// type name a fragment would see, so e.g. a run_command policy violation
// surfaces as PermissionError rather than a generic RuntimeError. Errors
// with no taxonomy kind (a bare Go error from an unexpected I/O failure)
// fall back to RuntimeError, mirroring how the original lets unexpected
// exceptions propagate under their native type.
func pyTypeFor(err error) string {
	kind, ok := model.KindOf(err)
	if !ok {
		return "RuntimeError"
	}
	switch kind {
	case model.ErrNotFound:
		return "FileNotFoundError"
	case model.ErrTraversal:
		return "PermissionError"
	case model.ErrPolicyViolation:
		return "PermissionError"
	case model.ErrTimeout:
		return "TimeoutError"
	case model.ErrExists:
		return "FileExistsError"
	case model.ErrInvalidArgument:
		return "ValueError"
	default:
		return "RuntimeError"
	}
}

func decodeString(lit string) string {
	lit = strings.TrimSpace(lit)
	for _, q := range []string{`"""`, `'''`} {
		if strings.HasPrefix(lit, q) && strings.HasSuffix(lit, q) && len(lit) >= 6 {
			return unescape(lit[3 : len(lit)-3])
		}
	}
	if len(lit) >= 2 {
		quote := lit[0]
		if (quote == '"' || quote == '\'') && lit[len(lit)-1] == quote {
			return unescape(lit[1 : len(lit)-1])
		}
	}
	return lit
}

func unescape(s string) string {
	r := strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\"`, `"`, `\'`, "'", `\\`, `\`)
	return r.Replace(s)
}
