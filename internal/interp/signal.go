package interp

// pyException is how a raised-but-uncaught exception propagates up the
// evaluator's call stack — recovered at the top of Run, whose Error() text
// ("Type: message", one line, without traceback frames or line numbers)
// is what the fragment's stderr receives.
type pyException struct {
	Type string
	Msg  string
}

func (e *pyException) Error() string { return e.Type + ": " + e.Msg }

func raise(typ, msg string) {
	panic(&pyException{Type: typ, Msg: msg})
}

// breakSignal / continueSignal implement loop control via panic/recover,
// the idiomatic way a tree-walking interpreter threads non-local control
// flow through recursive Go calls without a return-value union type at
// every call site.
type breakSignal struct{}
type continueSignal struct{}
