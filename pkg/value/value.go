// Package value implements the immutable tagged value tree (Val) that
// flows through every layer of the runtime: parsed forms, compiled
// constants, fiber operands, mailbox contents, and registry/pub-sub
// payloads all share this one representation.
package value

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Kind tags the variant a Val holds.
type Kind int

const (
	KindNil Kind = iota
	KindBool
	KindInt
	KindStr
	KindSymbol
	KindKeyword
	KindList
	KindLambda
	KindNativeFn
	KindNativeAsyncFn
	KindBytecode
	KindError
	KindRef
	KindExtern
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindStr:
		return "string"
	case KindSymbol:
		return "symbol"
	case KindKeyword:
		return "keyword"
	case KindList:
		return "list"
	case KindLambda:
		return "lambda"
	case KindNativeFn:
		return "native-fn"
	case KindNativeAsyncFn:
		return "native-async-fn"
	case KindBytecode:
		return "bytecode"
	case KindError:
		return "error"
	case KindRef:
		return "ref"
	case KindExtern:
		return "extern"
	default:
		return "unknown"
	}
}

// Val is the immutable tagged value. Only the field matching Kind is
// meaningful; the rest are zero. Values are passed by value (Go-level
// copy) but list/lambda/bytecode payloads are reference-shared, matching
// the "immutable by convention, structural copy cheap, reference-shared
// for functions/bytecode" rule of the data model.
type Val struct {
	Kind Kind

	Bool bool
	Int  int64
	Str  string // also backs Symbol and Keyword

	List []Val

	Lambda      *Lambda
	Native      *NativeFn
	NativeAsync *NativeAsyncFn
	Bytecode    Bytecode

	Err *Err

	Ref *Ref

	Extern *Extern
}

// Bytecode is the compiled-program payload, held behind the
// BytecodeHolder interface to avoid an import cycle; the concrete value
// is a *bytecode.Program from pkg/bytecode.
type Bytecode = BytecodeHolder

// BytecodeHolder is implemented by *bytecode.Program. It is declared here
// (rather than importing pkg/bytecode) so that pkg/value has no
// dependency on pkg/bytecode, keeping the value model leaf-level per the
// component table in SPEC_FULL.md.
type BytecodeHolder interface {
	// Disassemble renders a human-readable listing of the program.
	Disassemble() string
}

// Lambda is a closure: a parameter list, compiled body, optional doc
// string, and the environment it closed over. Env is an interface to
// avoid importing pkg/env from pkg/value (pkg/env depends on pkg/value,
// not the reverse).
type Lambda struct {
	Params []string
	Code   Bytecode
	Env    Env
	Doc    string
	Name   string // best-effort, for printing/help; "" for anonymous
}

// Env is the subset of pkg/env.Env that pkg/value needs to reference a
// captured environment without importing it.
type Env interface {
	Get(sym string) (Val, bool)
	Define(sym string, v Val)
	Set(sym string, v Val) bool
	NewChild() Env
}

// Locals is the opaque per-process context (own pid, kernel handle,
// mailbox, registry, pub/sub handles per spec.md §3's Process locals)
// that native functions need to actually do anything interesting. It is
// defined here as a marker interface so pkg/value has no dependency on
// pkg/process; process.Locals satisfies it.
type Locals interface {
	// Wisp marks the implementing type as process locals, preventing
	// arbitrary values from being passed where process context is
	// expected.
	Wisp()
}

// NativeFn is a synchronous built-in: it runs in-line on the fiber's
// goroutine and must not block. Its result is one of three ops
// (spec.md §4.2's CallFunc dispatch for native synchronous fn).
type NativeFn struct {
	Name string
	Doc  string
	Fn   func(locals Locals, args []Val) (NativeFnOp, error)
}

// NativeFnOpKind tags which of the three native-fn result shapes an op
// carries.
type NativeFnOpKind int

const (
	// OpReturn pushes Value and continues.
	OpReturn NativeFnOpKind = iota
	// OpYield pushes Value and transitions the fiber to Paused, exactly
	// like the `yield` special form.
	OpYield
	// OpExec pushes a new call frame running Code in place of a normal
	// return value — macro-like, used by built-ins such as `srv` that
	// need to run compiler-generated bytecode.
	OpExec
)

// NativeFnOp is the result of invoking a NativeFn.
type NativeFnOp struct {
	Kind  NativeFnOpKind
	Value Val      // meaningful for OpReturn/OpYield
	Code  Bytecode // meaningful for OpExec
}

// Return builds an OpReturn result carrying v.
func Return(v Val) NativeFnOp { return NativeFnOp{Kind: OpReturn, Value: v} }

// YieldOp builds an OpYield result carrying v.
func YieldOp(v Val) NativeFnOp { return NativeFnOp{Kind: OpYield, Value: v} }

// Exec builds an OpExec result carrying bytecode to run as a new frame.
func Exec(code Bytecode) NativeFnOp { return NativeFnOp{Kind: OpExec, Code: code} }

// NativeAsyncFn is a built-in that performs real I/O: the fiber
// transitions to Paused and surfaces the call as an Await signal to its
// driver, which invokes Fn and resumes the fiber with the result
// (spec.md §4.2's "native async fn" dispatch).
type NativeAsyncFn struct {
	Name string
	Doc  string
	Fn   func(ctx AsyncCtx, locals Locals, args []Val) (Val, error)
}

// AsyncCtx is the minimal context.Context-like surface native async
// functions receive; it is satisfied by context.Context so call sites can
// pass one directly. ctx carries per-call cancellation from the driver's
// Kill handling.
type AsyncCtx interface {
	Done() <-chan struct{}
	Err() error
}

// Err is the Error value variant: a closed ErrorKind plus a message, so
// protected evaluation can capture failures as data (spec.md §7).
type Err struct {
	Kind    ErrorKind
	Message string
}

func (e *Err) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Ref is an opaque unique token (Erlang-style make_ref). Two refs are
// equal only if they are the identical token.
type Ref struct {
	id uuid.UUID
}

// NewRef mints a fresh, globally unique ref.
func NewRef() *Ref {
	return &Ref{id: uuid.New()}
}

func (r *Ref) String() string {
	return "#ref<" + r.id.String() + ">"
}

// Extern carries host-defined values into the Val tree: process ids and
// request ids. ExternKind distinguishes them;
// only Pid is constructible from surface syntax (via the `pid` builtin).
type Extern struct {
	Kind ExternKind
	Pid  uint64 // valid when Kind == ExternPid
	ReqID uint32 // valid when Kind == ExternRequestID
}

type ExternKind int

const (
	ExternPid ExternKind = iota
	ExternRequestID
)

func (e *Extern) String() string {
	switch e.Kind {
	case ExternPid:
		return fmt.Sprintf("<pid %d>", e.Pid)
	case ExternRequestID:
		return fmt.Sprintf("<req %d>", e.ReqID)
	default:
		return "<extern>"
	}
}

// Constructors.

func Nil() Val                { return Val{Kind: KindNil} }
func Bool(b bool) Val         { return Val{Kind: KindBool, Bool: b} }
func Int(i int64) Val         { return Val{Kind: KindInt, Int: i} }
func Str(s string) Val        { return Val{Kind: KindStr, Str: s} }
func Symbol(s string) Val     { return Val{Kind: KindSymbol, Str: s} }
func Keyword(s string) Val    { return Val{Kind: KindKeyword, Str: s} }
func List(items ...Val) Val   { return Val{Kind: KindList, List: items} }
func ListOf(items []Val) Val  { return Val{Kind: KindList, List: items} }
func LambdaVal(l *Lambda) Val { return Val{Kind: KindLambda, Lambda: l} }
func NativeFnVal(n *NativeFn) Val { return Val{Kind: KindNativeFn, Native: n} }
func NativeAsyncFnVal(n *NativeAsyncFn) Val {
	return Val{Kind: KindNativeAsyncFn, NativeAsync: n}
}
func BytecodeVal(b Bytecode) Val { return Val{Kind: KindBytecode, Bytecode: b} }
func ErrorVal(kind ErrorKind, msg string) Val {
	return Val{Kind: KindError, Err: &Err{Kind: kind, Message: msg}}
}
func ErrorValFrom(err *Err) Val { return Val{Kind: KindError, Err: err} }
func RefVal(r *Ref) Val         { return Val{Kind: KindRef, Ref: r} }
func PidVal(pid uint64) Val {
	return Val{Kind: KindExtern, Extern: &Extern{Kind: ExternPid, Pid: pid}}
}
func RequestIDVal(id uint32) Val {
	return Val{Kind: KindExtern, Extern: &Extern{Kind: ExternRequestID, ReqID: id}}
}

// IsNil reports whether v is the nil value.
func (v Val) IsNil() bool { return v.Kind == KindNil }

// IsTruthy implements the language's truthiness: everything except nil
// and the boolean false is truthy.
func (v Val) IsTruthy() bool {
	switch v.Kind {
	case KindNil:
		return false
	case KindBool:
		return v.Bool
	default:
		return true
	}
}

// AsPid returns the pid carried by an Extern(Pid) value.
func (v Val) AsPid() (uint64, bool) {
	if v.Kind != KindExtern || v.Extern == nil || v.Extern.Kind != ExternPid {
		return 0, false
	}
	return v.Extern.Pid, true
}

// AsRequestID returns the request id carried by an Extern(RequestID) value.
func (v Val) AsRequestID() (uint32, bool) {
	if v.Kind != KindExtern || v.Extern == nil || v.Extern.Kind != ExternRequestID {
		return 0, false
	}
	return v.Extern.ReqID, true
}

// Equal implements the data model's equality rules: content equality for
// strings/lists, param+code+parent-env-identity for lambdas, and identity
// for refs/externs.
func Equal(a, b Val) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNil:
		return true
	case KindBool:
		return a.Bool == b.Bool
	case KindInt:
		return a.Int == b.Int
	case KindStr, KindSymbol, KindKeyword:
		return a.Str == b.Str
	case KindList:
		if len(a.List) != len(b.List) {
			return false
		}
		for i := range a.List {
			if !Equal(a.List[i], b.List[i]) {
				return false
			}
		}
		return true
	case KindLambda:
		if a.Lambda == b.Lambda {
			return true
		}
		if a.Lambda == nil || b.Lambda == nil {
			return false
		}
		if a.Lambda.Env != b.Lambda.Env {
			return false
		}
		if len(a.Lambda.Params) != len(b.Lambda.Params) {
			return false
		}
		for i := range a.Lambda.Params {
			if a.Lambda.Params[i] != b.Lambda.Params[i] {
				return false
			}
		}
		return a.Lambda.Code == b.Lambda.Code
	case KindNativeFn:
		return a.Native == b.Native
	case KindNativeAsyncFn:
		return a.NativeAsync == b.NativeAsync
	case KindBytecode:
		return a.Bytecode == b.Bytecode
	case KindError:
		if a.Err == nil || b.Err == nil {
			return a.Err == b.Err
		}
		return a.Err.Kind == b.Err.Kind && a.Err.Message == b.Err.Message
	case KindRef:
		return a.Ref == b.Ref
	case KindExtern:
		if a.Extern == nil || b.Extern == nil {
			return a.Extern == b.Extern
		}
		return *a.Extern == *b.Extern
	default:
		return false
	}
}

// Compare gives a total order over comparable kinds (int, str, symbol,
// keyword, bool), used by the sort list built-in carried over
// from original_source/lemma/src/lang/list.rs. ok is false when a and b
// are not both one of the comparable kinds, or are of different kinds.
func Compare(a, b Val) (n int, ok bool) {
	if a.Kind != b.Kind {
		return 0, false
	}
	switch a.Kind {
	case KindInt:
		switch {
		case a.Int < b.Int:
			return -1, true
		case a.Int > b.Int:
			return 1, true
		default:
			return 0, true
		}
	case KindStr, KindSymbol, KindKeyword:
		return strings.Compare(a.Str, b.Str), true
	case KindBool:
		if a.Bool == b.Bool {
			return 0, true
		}
		if !a.Bool && b.Bool {
			return -1, true
		}
		return 1, true
	default:
		return 0, false
	}
}
