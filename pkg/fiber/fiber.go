// Package fiber implements the bytecode VM of spec.md §4.2: a single
// cooperatively scheduled sequence of execution with its own call-frame
// stack and operand stack, exposed as a three-signal coroutine (done,
// yield, await) so a driver can multiplex many fibers without threads.
//
// Grounded on original_source/lyric/src/fiber.rs's step()/run() loop:
// the instruction pointer is advanced before dispatch, jump instructions
// adjust ip on top of that advance, CallFunc pops args then the callee,
// and errors unwind to the nearest frame carrying an unwind target
// (installed by a protected `eval`/`try`) or else terminate the fiber.
package fiber

import (
	"fmt"

	"github.com/kristofer/wisp/pkg/bytecode"
	"github.com/kristofer/wisp/pkg/compiler"
	"github.com/kristofer/wisp/pkg/pattern"
	"github.com/kristofer/wisp/pkg/value"
)

type state int

const (
	stateNew state = iota
	stateRunning
	statePaused
	stateAwaiting
	stateDone
)

// SignalKind tags which of the three coroutine outcomes a Signal
// reports.
type SignalKind int

const (
	// SignalDone reports the fiber ran to completion with Value as its
	// result; the fiber cannot be resumed again.
	SignalDone SignalKind = iota
	// SignalYield reports a `yield` form suspended the fiber with Value;
	// resume with the value to feed back in.
	SignalYield
	// SignalAwait reports a native async call suspended the fiber; the
	// driver must invoke Await.Fn and resume with the result (or
	// ResumeErr on failure).
	SignalAwait
)

// Signal is the outcome of Start/Resume/ResumeErr.
type Signal struct {
	Kind  SignalKind
	Value value.Val
	Await *AsyncCall
}

// AsyncCall packages a native async function and its already-evaluated
// arguments, surfaced to the driver via a SignalAwait.
type AsyncCall struct {
	Fn   *value.NativeAsyncFn
	Args []value.Val
}

// callFrame is one entry in the fiber's call stack.
type callFrame struct {
	ip          int
	code        *bytecode.Program
	env         value.Env
	stackLen    int
	unwindCfLen *int   // index to truncate cframes to on error, if protected
	name        string // best-effort, for RuntimeError traces
}

func (cf *callFrame) atReturn() bool { return cf.ip >= len(cf.code.Instructions) }

// Fiber is a single coroutine of execution.
type Fiber struct {
	state   state
	cframes []*callFrame
	stack   []value.Val
	global  value.Env
	locals  value.Locals

	pendingAsync *AsyncCall
}

// NewFromBytecode constructs a fresh, not-yet-started fiber running prog
// in a child of global, with locals as its process-local context.
func NewFromBytecode(prog *bytecode.Program, global value.Env, locals value.Locals) *Fiber {
	f := &Fiber{state: stateNew, global: global, locals: locals}
	f.cframes = []*callFrame{{ip: 0, code: prog, env: global, stackLen: 0, name: "top-level"}}
	return f
}

// NewFromVal compiles v and constructs a fiber to run it.
func NewFromVal(v value.Val, global value.Env, locals value.Locals) (*Fiber, error) {
	prog, err := compiler.Compile(v)
	if err != nil {
		return nil, err
	}
	return NewFromBytecode(prog, global, locals), nil
}

// IsDone reports whether the fiber has run to completion (or fatal
// error) and can no longer be started or resumed.
func (f *Fiber) IsDone() bool { return f.state == stateDone }

// CurEnv returns the environment of the innermost active call frame.
func (f *Fiber) CurEnv() value.Env { return f.curFrame().env }

// GlobalEnv returns the fiber's top-level environment.
func (f *Fiber) GlobalEnv() value.Env { return f.global }

// Locals returns the fiber's process-local context.
func (f *Fiber) Locals() value.Locals { return f.locals }

// Start begins execution of a New fiber.
func (f *Fiber) Start() (Signal, error) {
	if f.state != stateNew {
		return Signal{}, fmt.Errorf("starting a fiber that is not new")
	}
	return f.runLoop()
}

// Resume continues a Paused or Awaiting fiber, feeding v back in as the
// result of the yield/await point it suspended at.
func (f *Fiber) Resume(v value.Val) (Signal, error) {
	if f.state != statePaused && f.state != stateAwaiting {
		return Signal{}, fmt.Errorf("resuming a fiber that is not paused")
	}
	f.push(v)
	return f.runLoop()
}

// ResumeErr continues a Paused or Awaiting fiber by raising errVal at
// the suspension point, unwinding to the nearest protected frame exactly
// as a synchronous failure would. This is how a failed native async call
// is reported to the fiber — unlike the unwind_cf_len bug noted in
// run.rs, a failed await here still respects the nearest `try`.
func (f *Fiber) ResumeErr(errVal *value.Err) (Signal, error) {
	if f.state != statePaused && f.state != stateAwaiting {
		return Signal{}, fmt.Errorf("resuming a fiber that is not paused")
	}
	if !f.unwind(errVal) {
		f.state = stateDone
		return Signal{}, errVal
	}
	f.cleanupReturns()
	return f.runLoop()
}

func (f *Fiber) runLoop() (Signal, error) {
	f.state = stateRunning
	for f.state == stateRunning {
		if err := f.step(); err != nil {
			verr := asErrVal(err)
			if !f.unwind(verr) {
				f.state = stateDone
				return Signal{}, verr
			}
		}
		f.cleanupReturns()
	}
	return f.finish()
}

// unwind truncates call frames/stack to the nearest protected frame
// recorded on the currently failing frame and pushes an Error value in
// its place. It reports false if no frame catches the error.
func (f *Fiber) unwind(errVal *value.Err) bool {
	cf := f.curFrame()
	if cf.unwindCfLen == nil {
		return false
	}
	l := *cf.unwindCfLen
	stackLen := f.cframes[l].stackLen
	f.cframes = f.cframes[:l]
	f.stack = f.stack[:stackLen]
	f.push(value.ErrorValFrom(errVal))
	return true
}

// cleanupReturns pops call frames that have run off the end of their
// code, leaving their single result value on the stack. Must run after
// unwinding, or the catching context is lost.
func (f *Fiber) cleanupReturns() {
	for len(f.cframes) > 1 && f.curFrame().atReturn() {
		cf := f.cframes[len(f.cframes)-1]
		f.cframes = f.cframes[:len(f.cframes)-1]
		if len(f.stack) != cf.stackLen+1 {
			panic("fiber: call frame did not leave exactly one result on the stack")
		}
	}
}

func (f *Fiber) finish() (Signal, error) {
	switch f.state {
	case statePaused:
		v, ok := f.pop()
		if !ok {
			return Signal{}, fmt.Errorf("stack should contain a result for a paused fiber")
		}
		return Signal{Kind: SignalYield, Value: v}, nil
	case stateAwaiting:
		call := f.pendingAsync
		f.pendingAsync = nil
		return Signal{Kind: SignalAwait, Await: call}, nil
	case stateDone:
		v, ok := f.pop()
		if !ok {
			return Signal{}, fmt.Errorf("stack should contain a result for a terminated fiber")
		}
		return Signal{Kind: SignalDone, Value: v}, nil
	default:
		panic(fmt.Sprintf("fiber: run loop exited in unexpected state %d", f.state))
	}
}

// step runs a single fetch-decode-execute cycle.
func (f *Fiber) step() error {
	cf := f.curFrame()
	if cf.ip >= len(cf.code.Instructions) {
		f.state = stateDone
		return nil
	}
	instr := cf.code.Instructions[cf.ip]
	cf.ip++

	switch instr.Op {
	case bytecode.OpPushConst:
		f.push(cf.code.Constants[instr.Operand])

	case bytecode.OpGetSym:
		name := cf.code.Constants[instr.Operand].Str
		v, ok := cf.env.Get(name)
		if !ok {
			return value.Undefined(name)
		}
		f.push(v)

	case bytecode.OpDefSym:
		name := cf.code.Constants[instr.Operand].Str
		v, ok := f.peek()
		if !ok {
			return value.NewErr(value.ErrUnexpectedStack, "stack should contain value to bind")
		}
		cf.env.Define(name, v)

	case bytecode.OpDefBind:
		pat, ok := f.pop()
		if !ok {
			return value.NewErr(value.ErrUnexpectedStack, "stack should contain pattern to bind to")
		}
		v, ok := f.peek()
		if !ok {
			return value.NewErr(value.ErrUnexpectedStack, "stack should contain value to bind")
		}
		binds, matched := pattern.Match(pat, v)
		if !matched {
			return value.NewErr(value.ErrInvalidPatternMatch, "value %s does not match pattern %s", value.Print(v), value.Print(pat))
		}
		for name, bv := range binds {
			cf.env.Define(name, bv)
		}

	case bytecode.OpSetSym:
		name := cf.code.Constants[instr.Operand].Str
		v, ok := f.peek()
		if !ok {
			return value.NewErr(value.ErrUnexpectedStack, "stack should contain value to bind")
		}
		if !cf.env.Set(name, v) {
			return value.Undefined(name)
		}

	case bytecode.OpMakeFunc:
		codeVal, ok := f.pop()
		if !ok || codeVal.Kind != value.KindBytecode {
			return value.NewErr(value.ErrUnexpectedStack, "missing function bytecode")
		}
		paramsVal, ok := f.pop()
		if !ok || paramsVal.Kind != value.KindList {
			return value.NewErr(value.ErrUnexpectedStack, "missing parameter list")
		}
		params := make([]string, len(paramsVal.List))
		for i, p := range paramsVal.List {
			if p.Kind != value.KindSymbol {
				return value.NewErr(value.ErrUnexpectedStack, "unexpected parameter list")
			}
			params[i] = p.Str
		}
		doc, name := "", ""
		if meta := cf.code.Constants[instr.Operand]; len(meta.List) == 2 {
			if meta.List[0].Kind == value.KindStr {
				doc = meta.List[0].Str
			}
			if meta.List[1].Kind == value.KindStr {
				name = meta.List[1].Str
			}
		}
		f.push(value.LambdaVal(&value.Lambda{
			Params: params,
			Code:   codeVal.Bytecode,
			Env:    cf.env,
			Doc:    doc,
			Name:   name,
		}))

	case bytecode.OpCallFunc:
		nargs := instr.Operand
		if len(f.stack) < nargs+1 {
			return value.NewErr(value.ErrUnexpectedStack, "missing expected %d args", nargs)
		}
		args := make([]value.Val, nargs)
		for i := nargs - 1; i >= 0; i-- {
			v, _ := f.pop()
			args[i] = v
		}
		callee, ok := f.pop()
		if !ok {
			return value.NewErr(value.ErrUnexpectedStack, "stack is empty")
		}
		return f.dispatchCall(cf, callee, args)

	case bytecode.OpPopTop:
		if _, ok := f.pop(); !ok {
			return value.NewErr(value.ErrUnexpectedStack, "attempting to pop empty stack")
		}

	case bytecode.OpJumpFwd:
		cf.ip += instr.Operand

	case bytecode.OpJumpBck:
		cf.ip -= instr.Operand

	case bytecode.OpPopJumpFwdIfTrue:
		v, ok := f.pop()
		if !ok {
			return value.NewErr(value.ErrUnexpectedStack, "expected conditional expression on stack")
		}
		if v.IsTruthy() {
			cf.ip += instr.Operand
		}

	case bytecode.OpYieldTop:
		f.state = statePaused

	case bytecode.OpEval:
		protected := instr.Operand != 0
		v, ok := f.pop()
		if !ok {
			return value.NewErr(value.ErrUnexpectedStack, "did not find form to eval on stack")
		}
		prog, err := compiler.Compile(v)
		if err != nil {
			return err
		}
		var unwindLen *int
		if protected {
			l := len(f.cframes)
			unwindLen = &l
		} else {
			unwindLen = cf.unwindCfLen
		}
		f.pushFrame(cf.env, prog, unwindLen)

	default:
		return value.NewErr(value.ErrRuntime, "unknown opcode %s", instr.Op)
	}
	return nil
}

// dispatchCall implements CallFunc's three-way split: lambda calls push
// a new frame, native sync calls run in-line and interpret their
// NativeFnOp result, native async calls suspend the fiber as an await
// signal for the driver to resolve.
func (f *Fiber) dispatchCall(cf *callFrame, callee value.Val, args []value.Val) error {
	switch callee.Kind {
	case value.KindLambda:
		l := callee.Lambda
		if len(args) != len(l.Params) {
			return value.NewErr(value.ErrUnexpectedArguments, "expected %d arguments, got %d", len(l.Params), len(args))
		}
		parentEnv := l.Env
		if parentEnv == nil {
			parentEnv = f.global
		}
		fnEnv := parentEnv.NewChild()
		for i, p := range l.Params {
			fnEnv.Define(p, args[i])
		}
		prog, ok := l.Code.(*bytecode.Program)
		if !ok {
			return value.NewErr(value.ErrUnexpectedStack, "lambda has no runnable bytecode")
		}
		name := l.Name
		if name == "" {
			name = "lambda"
		}
		f.pushNamedFrame(fnEnv, prog, cf.unwindCfLen, name)
		return nil

	case value.KindNativeFn:
		op, err := callee.Native.Fn(f.locals, args)
		if err != nil {
			return err
		}
		switch op.Kind {
		case value.OpReturn:
			f.push(op.Value)
		case value.OpYield:
			f.push(op.Value)
			f.state = statePaused
		case value.OpExec:
			prog, ok := op.Code.(*bytecode.Program)
			if !ok {
				return value.NewErr(value.ErrUnexpectedStack, "native fn exec did not return bytecode")
			}
			f.pushFrame(cf.env, prog, cf.unwindCfLen)
		}
		return nil

	case value.KindNativeAsyncFn:
		f.pendingAsync = &AsyncCall{Fn: callee.NativeAsync, Args: args}
		f.state = stateAwaiting
		return nil

	default:
		return value.NewErr(value.ErrUnexpectedStack, "not a function object: %s", value.Print(callee))
	}
}

func (f *Fiber) pushFrame(env value.Env, prog *bytecode.Program, unwindCfLen *int) {
	f.pushNamedFrame(env, prog, unwindCfLen, "eval")
}

func (f *Fiber) pushNamedFrame(env value.Env, prog *bytecode.Program, unwindCfLen *int, name string) {
	f.cframes = append(f.cframes, &callFrame{
		ip:          0,
		code:        prog,
		env:         env,
		stackLen:    len(f.stack),
		unwindCfLen: unwindCfLen,
		name:        name,
	})
}

func (f *Fiber) curFrame() *callFrame { return f.cframes[len(f.cframes)-1] }

func (f *Fiber) push(v value.Val) { f.stack = append(f.stack, v) }

func (f *Fiber) pop() (value.Val, bool) {
	if len(f.stack) == 0 {
		return value.Val{}, false
	}
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return v, true
}

func (f *Fiber) peek() (value.Val, bool) {
	if len(f.stack) == 0 {
		return value.Val{}, false
	}
	return f.stack[len(f.stack)-1], true
}

func asErrVal(err error) *value.Err {
	if ve, ok := err.(*value.Err); ok {
		return ve
	}
	return value.NewErr(value.ErrRuntime, "%s", err.Error())
}
