package stdlib

import (
	"github.com/kristofer/wisp/pkg/pattern"
	"github.com/kristofer/wisp/pkg/value"
)

// registerMessaging binds send/recv/ls-msgs/call, grounded on
// original_source/libvrs/src/rt/bindings/mailbox.rs.
func registerMessaging(env value.Env) {
	asyncFn(env, "send", "(send pid msg) delivers msg to pid's mailbox and returns msg.",
		func(ctx value.AsyncCtx, locals value.Locals, args []value.Val) (value.Val, error) {
			if len(args) != 2 {
				return value.Val{}, arity("send", "two arguments", len(args))
			}
			dst, err := wantPid("send", args[0])
			if err != nil {
				return value.Val{}, err
			}
			l, err := wantProcessLocals("send", locals)
			if err != nil {
				return value.Val{}, err
			}
			if dst == l.Pid {
				// Self-send bypasses the kernel (spec.md §4.6): pushing
				// directly to our own mailbox can never deadlock, while
				// routing through the kernel's single-owner goroutine
				// could if that goroutine were ever blocked on us.
				l.Mailbox.Push(args[1])
				return args[1], nil
			}
			if err := l.Kernel.Send(asCtx(ctx), dst, args[1]); err != nil {
				return value.Val{}, value.NewErr(value.ErrRuntime, "%s", err.Error())
			}
			return args[1], nil
		})

	asyncFn(env, "recv", "(recv [pattern]) blocks until a mailbox message matches pattern (or anything, if omitted), removing and returning it.",
		func(ctx value.AsyncCtx, locals value.Locals, args []value.Val) (value.Val, error) {
			pat := pattern.AnyPattern
			switch len(args) {
			case 0:
			case 1:
				pat = args[0]
			default:
				return value.Val{}, arity("recv", "zero or one argument", len(args))
			}
			l, err := wantProcessLocals("recv", locals)
			if err != nil {
				return value.Val{}, err
			}
			return l.Mailbox.Poll(asCtx(ctx), pat)
		})

	asyncFn(env, "ls-msgs", "(ls-msgs) returns every message currently queued, without consuming any of them.",
		func(ctx value.AsyncCtx, locals value.Locals, args []value.Val) (value.Val, error) {
			if len(args) != 0 {
				return value.Val{}, arity("ls-msgs", "no arguments", len(args))
			}
			l, err := wantProcessLocals("ls-msgs", locals)
			if err != nil {
				return value.Val{}, err
			}
			msgs, err := l.Mailbox.All(asCtx(ctx))
			if err != nil {
				return value.Val{}, err
			}
			return value.ListOf(msgs), nil
		})

	// call is the request/response idiom built out of send+recv+ref,
	// expressed as compiled source the same way the teacher builds
	// `call` as a compiled lambda (bindings/mailbox.rs's call_fn) rather
	// than a native fn: send a (ref, self, msg) envelope, then
	// selectively receive the reply tagged with that same ref.
	callProg, err := compileStd(`
		(begin
			(def r (ref))
			(send to (list r (self) msg))
			(get (recv (list r (quote _))) 1))`)
	if err != nil {
		panic("stdlib: call failed to compile: " + err.Error())
	}
	env.Define("call", value.LambdaVal(&value.Lambda{
		Params: []string{"to", "msg"},
		Code:   callProg,
		Env:    env,
		Doc:    "(call to msg) sends msg to to tagged with a fresh ref, and blocks for the correspondingly-tagged reply.",
		Name:   "call",
	}))
}
