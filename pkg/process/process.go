// Package process implements the runtime's process driver (spec.md
// §4.5): the goroutine that owns one fiber and drives it to completion,
// dispatching the fiber's three-signal contract (Done/Yield/Await) and
// reacting to Kill.
//
// Grounded on original_source/libvrs/src/rt/proc.rs's `Process::spawn`:
// a loop that resumes the fiber, and on each `FiberState::Yield` races
// the yielded I/O against an incoming Kill message, resuming the fiber
// with the I/O result. This runtime's fiber surfaces async I/O as an
// explicit `Await` signal carrying the native-async call directly
// (see pkg/fiber) rather than boxing it as an `Extern` yield value, so
// the driver below races the async call's completion against
// cancellation instead of racing a channel recv against the fiber's
// single yielded value.
package process

import (
	"context"
	"sync"

	"github.com/kristofer/wisp/pkg/fiber"
	"github.com/kristofer/wisp/pkg/mailbox"
	"github.com/kristofer/wisp/pkg/pubsub"
	"github.com/kristofer/wisp/pkg/registry"
	"github.com/kristofer/wisp/pkg/value"
)

// KernelHandle is the subset of the kernel a process's native functions
// need: spawning, sending, killing, and listing sibling processes.
// Declared here, not imported from pkg/kernel, so this package has no
// dependency on the kernel; pkg/kernel.Kernel satisfies it.
type KernelHandle interface {
	Spawn(ctx context.Context, prog value.Val) (*Handle, error)
	Send(ctx context.Context, to uint64, msg value.Val) error
	Kill(ctx context.Context, pid uint64) bool
	Lookup(ctx context.Context, pid uint64) (*Handle, bool)
	ProcessInfos(ctx context.Context) []Info
}

// Info is a lightweight snapshot of a running process, used by `ps`.
type Info struct {
	Pid uint64
}

// Locals is the per-process context threaded into every native function
// call (spec.md §3's Process locals): own pid, a kernel handle, and
// references to this process's mailbox plus the runtime-wide registry
// and pub/sub bus. It satisfies value.Locals's marker interface.
type Locals struct {
	Pid      uint64
	Kernel   KernelHandle
	Mailbox  *mailbox.Mailbox
	Registry *registry.Registry
	PubSub   *pubsub.PubSub
}

// Wisp satisfies value.Locals.
func (*Locals) Wisp() {}

// Result is the terminal outcome of a process.
type Result struct {
	Value     value.Val
	Err       error
	Cancelled bool
}

// Handle is a reference to a running (or finished) process. It satisfies
// pkg/registry.ExitWaiter via Done.
type Handle struct {
	pid    uint64
	cancel context.CancelFunc

	mu     sync.Mutex
	result Result
	done   chan struct{}
}

// Pid returns the process's id.
func (h *Handle) Pid() uint64 { return h.pid }

// Kill sets the process's cancellation flag. The effect is not
// immediate: the driver observes it at its next await point
// (spec.md §5's cancellation model).
func (h *Handle) Kill() { h.cancel() }

// Done reports process exit, satisfying registry.ExitWaiter.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Result returns the process's terminal outcome. Valid only after Done
// is closed; returns the zero Result otherwise.
func (h *Handle) Result() Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result
}

func (h *Handle) finish(res Result) {
	h.mu.Lock()
	h.result = res
	h.mu.Unlock()
	close(h.done)
}

// asyncCtx adapts a context.Context to value.AsyncCtx, the interface
// native async functions use to observe cancellation.
type asyncCtx struct{ ctx context.Context }

func (a asyncCtx) Done() <-chan struct{} { return a.ctx.Done() }
func (a asyncCtx) Err() error            { return a.ctx.Err() }

// Spawn starts a process driving prog under the given global environment
// and locals, and returns a handle immediately — the driver runs on its
// own goroutine. A lambda prog is called with no arguments; any other
// value is compiled and evaluated as a form.
func Spawn(ctx context.Context, pid uint64, prog value.Val, global value.Env, locals *Locals) (*Handle, error) {
	locals.Pid = pid
	if prog.Kind == value.KindLambda {
		prog = value.List(prog)
	}
	f, err := fiber.NewFromVal(prog, global, locals)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	h := &Handle{pid: pid, cancel: cancel, done: make(chan struct{})}

	go h.run(runCtx, cancel, f)
	return h, nil
}

func (h *Handle) run(ctx context.Context, cancel context.CancelFunc, f *fiber.Fiber) {
	// Every exit path below must release runCtx: a process that
	// subscribes (pkg/stdlib/subscriptions.go) blocks its forwarder
	// goroutine on this context, which otherwise never observes
	// anything but an explicit Kill.
	defer cancel()

	sig, err := f.Start()
	for {
		if err != nil {
			h.finish(Result{Err: err})
			return
		}
		switch sig.Kind {
		case fiber.SignalDone:
			h.finish(Result{Value: sig.Value})
			return

		case fiber.SignalYield:
			// No driver above a top-level process interprets a bare
			// yield; spec.md §4.2 calls this a runtime error.
			h.finish(Result{Err: &yieldError{}})
			return

		case fiber.SignalAwait:
			call := sig.Await
			resCh := make(chan asyncResult, 1)
			go func() {
				v, err := call.Fn.Fn(asyncCtx{ctx: ctx}, f.Locals(), call.Args)
				resCh <- asyncResult{val: v, err: err}
			}()

			select {
			case <-ctx.Done():
				h.finish(Result{Cancelled: true})
				return
			case res := <-resCh:
				if ctx.Err() != nil {
					h.finish(Result{Cancelled: true})
					return
				}
				if res.err != nil {
					sig, err = f.ResumeErr(asErrVal(res.err))
				} else {
					sig, err = f.Resume(res.val)
				}
			}
		}
	}
}

type asyncResult struct {
	val value.Val
	err error
}

// asErrVal preserves a native async fn's own ErrorKind (e.g.
// pkg/stdlib's ErrUnexpectedArguments/ErrUnexpectedType) instead of
// collapsing every failure to ErrRuntime, mirroring pkg/fiber's own
// asErrVal for synchronous native fn failures.
func asErrVal(err error) *value.Err {
	if ve, ok := err.(*value.Err); ok {
		return ve
	}
	return value.NewErr(value.ErrRuntime, "%s", err.Error())
}

type yieldError struct{}

func (*yieldError) Error() string { return "unexpected top-level yield" }
