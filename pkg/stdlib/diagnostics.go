package stdlib

import (
	"fmt"

	"github.com/kristofer/wisp/pkg/value"
)

// registerDiagnostics binds help/doc and dbg, grounded on
// original_source/lyric/src/builtin/docs.rs and log.rs. ls_env (also
// in that pack, builtin/env.rs) is deliberately not carried over: it
// needs the caller's current lexical environment, which this runtime's
// NativeFn signature (locals + already-evaluated args, see pkg/value's
// NativeFn.Fn) never exposes — unlike the teacher's native fns, which
// receive the whole fiber and can call f.cur_env(). Surfacing that would
// require widening every native fn's signature for one diagnostic
// command, so it is dropped rather than faked against the global env
// only.
func registerDiagnostics(env value.Env) {
	fn(env, "help", "(help callable) returns callable's doc string.",
		func(_ value.Locals, args []value.Val) (value.NativeFnOp, error) {
			if len(args) != 1 {
				return value.NativeFnOp{}, arity("help", "one argument", len(args))
			}
			var doc string
			switch args[0].Kind {
			case value.KindLambda:
				doc = args[0].Lambda.Doc
			case value.KindNativeFn:
				doc = args[0].Native.Doc
			case value.KindNativeAsyncFn:
				doc = args[0].NativeAsync.Doc
			default:
				return value.NativeFnOp{}, value.NewErr(value.ErrUnexpectedArguments, "help expects a callable object, got %s", args[0].Kind)
			}
			if doc == "" {
				doc = "<missing documentation>"
			}
			return value.Return(value.Str(doc)), nil
		})
	// doc is an alias kept for symmetry with the `doc` supplement named
	// in the built-ins list; same behavior as help.
	if v, ok := env.Get("help"); ok {
		env.Define("doc", v)
	}

	fn(env, "dbg", "(dbg v…) prints its arguments for debugging and returns :ok.",
		func(_ value.Locals, args []value.Val) (value.NativeFnOp, error) {
			rendered := make([]string, len(args))
			for i, a := range args {
				rendered[i] = value.Print(a)
			}
			fmt.Println(rendered)
			return value.Return(value.Keyword("ok")), nil
		})
}
