package fiber

import (
	"fmt"
	"strings"

	"github.com/kristofer/wisp/pkg/value"
)

// StackFrame describes one call frame at the time a RuntimeError was
// captured, adapted from the teacher's vm.StackFrame (pkg/vm/errors.go)
// to this runtime's call-frame shape: a lambda name instead of a
// Smalltalk selector, plus the frame's instruction pointer.
type StackFrame struct {
	Name string // lambda name, "lambda" for anonymous closures, "eval" for eval/exec frames, or "top-level"
	IP   int
}

// RuntimeError wraps a value.Err escaping a fiber with the call stack
// captured at the point of failure, for CLI/log presentation — the Err
// itself is what crosses the wire and is catchable by `try`.
type RuntimeError struct {
	Err   *value.Err
	Stack []StackFrame
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Err.Error())
	if len(e.Stack) > 0 {
		b.WriteString("\n\nStack trace:")
		for i := len(e.Stack) - 1; i >= 0; i-- {
			fr := e.Stack[i]
			fmt.Fprintf(&b, "\n  at %s [ip %d]", fr.Name, fr.IP)
		}
	}
	return b.String()
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// Trace captures the fiber's current call stack as a RuntimeError
// wrapping errVal, used by drivers that want to log a failure before the
// fiber's unwind/terminate logic discards frame information.
func (f *Fiber) Trace(errVal *value.Err) *RuntimeError {
	frames := make([]StackFrame, len(f.cframes))
	for i, cf := range f.cframes {
		frames[i] = StackFrame{Name: cf.name, IP: cf.ip}
	}
	return &RuntimeError{Err: errVal, Stack: frames}
}
