package stdlib

import (
	"strings"

	"github.com/kristofer/wisp/pkg/value"
)

func wantStr(name string, v value.Val) (string, error) {
	if v.Kind != value.KindStr {
		return "", value.NewErr(value.ErrUnexpectedType, "%s expects a string, got %s", name, v.Kind)
	}
	return v.Str, nil
}

// registerStrings binds str/str-split/str-join. These have no single
// original_source binding to ground against (lemma/src/lang/core.rs
// opts in only the special forms; no string-processing bindings exist
// there) — str wraps pkg/value.Print, the collaborator spec.md §1 names
// for surface-syntax rendering; str-split/str-join wrap Go's standard
// strings package, an ambient use no third-party library improves on.
func registerStrings(env value.Env) {
	fn(env, "str", "(str v…) renders each argument as surface syntax text and concatenates the results.",
		func(_ value.Locals, args []value.Val) (value.NativeFnOp, error) {
			var b strings.Builder
			for _, a := range args {
				if a.Kind == value.KindStr {
					b.WriteString(a.Str) // str itself is rendered unquoted
					continue
				}
				b.WriteString(value.Print(a))
			}
			return value.Return(value.Str(b.String())), nil
		})

	fn(env, "str-split", "(str-split s sep) splits string s on sep, returning a list of strings.",
		func(_ value.Locals, args []value.Val) (value.NativeFnOp, error) {
			if len(args) != 2 {
				return value.NativeFnOp{}, arity("str-split", "two arguments", len(args))
			}
			s, err := wantStr("str-split", args[0])
			if err != nil {
				return value.NativeFnOp{}, err
			}
			sep, err := wantStr("str-split", args[1])
			if err != nil {
				return value.NativeFnOp{}, err
			}
			parts := strings.Split(s, sep)
			out := make([]value.Val, len(parts))
			for i, p := range parts {
				out[i] = value.Str(p)
			}
			return value.Return(value.ListOf(out)), nil
		})

	fn(env, "str-join", "(str-join coll sep) joins a list of strings with sep.",
		func(_ value.Locals, args []value.Val) (value.NativeFnOp, error) {
			if len(args) != 2 {
				return value.NativeFnOp{}, arity("str-join", "two arguments", len(args))
			}
			l, err := wantList("str-join", args[0])
			if err != nil {
				return value.NativeFnOp{}, err
			}
			sep, err := wantStr("str-join", args[1])
			if err != nil {
				return value.NativeFnOp{}, err
			}
			parts := make([]string, len(l))
			for i, e := range l {
				s, err := wantStr("str-join", e)
				if err != nil {
					return value.NativeFnOp{}, err
				}
				parts[i] = s
			}
			return value.Return(value.Str(strings.Join(parts, sep))), nil
		})
}
