package stdlib

import (
	"context"
	"time"

	"github.com/kristofer/wisp/pkg/compiler"
	"github.com/kristofer/wisp/pkg/parser"
	"github.com/kristofer/wisp/pkg/value"
)

// compileStd parses and compiles src as a lambda body (wrapped in an
// implicit begin, matching pkg/compiler.compileLambdaBody), for the
// handful of standard bindings expressed directly as source text rather
// than Go, the same way the teacher's bindings/mailbox.rs builds `call`
// out of compiled lemma source instead of a native fn.
func compileStd(src string) (value.Bytecode, error) {
	form, err := parser.Parse(src)
	if err != nil {
		return nil, err
	}
	body := value.List(value.Symbol("begin"), form)
	return compiler.Compile(body)
}

// asyncFn registers a native async function under name in env — the
// built-ins that round-trip through the kernel, a timer, or the host
// (ps, kill, sleep, spawn, send, recv, call, register, find-srv, …).
func asyncFn(env value.Env, name string, doc string, f func(value.AsyncCtx, value.Locals, []value.Val) (value.Val, error)) {
	env.Define(name, value.NativeAsyncFnVal(&value.NativeAsyncFn{Name: name, Doc: doc, Fn: f}))
}

// asCtx adapts a value.AsyncCtx (the Done/Err-only surface native async
// fns receive) back into a context.Context, since pkg/kernel, pkg/
// registry, and pkg/pubsub all take a concrete context.Context. Deadline
// and Value are unused by any of those collaborators' select loops, so
// they're stubbed rather than threaded through value.AsyncCtx's
// deliberately minimal interface.
func asCtx(ac value.AsyncCtx) context.Context { return asyncCtxAdapter{ac} }

type asyncCtxAdapter struct{ value.AsyncCtx }

func (asyncCtxAdapter) Deadline() (time.Time, bool) { return time.Time{}, false }
func (asyncCtxAdapter) Value(interface{}) interface{} { return nil }
