package stdlib

import (
	"sort"

	"github.com/kristofer/wisp/pkg/compiler"
	"github.com/kristofer/wisp/pkg/value"
)

// wantList type-checks v as a list, tagging the error with which
// argument of which built-in rejected it.
func wantList(name string, v value.Val) ([]value.Val, error) {
	if v.Kind != value.KindList {
		return nil, value.NewErr(value.ErrUnexpectedType, "%s expects a list, got %s", name, v.Kind)
	}
	return v.List, nil
}

// registerList binds the list built-ins, grounded on
// original_source/lemma/src/lang/list.rs. Unlike lang_push/lang_pop,
// which rebind a caller-named symbol directly (they receive unevaluated
// forms and a mutable env), this runtime's native fns receive only
// already-evaluated arguments, so push here is pure: it returns
// a new list rather than mutating one in place (there is no pop), matching the
// "structural copy cheap" rule of pkg/value's data model. Callers rebind
// explicitly: "(def xs (push xs v))".
func registerList(env value.Env) {
	fn(env, "list", "(list a b…) builds a list from its arguments.",
		func(_ value.Locals, args []value.Val) (value.NativeFnOp, error) {
			cp := append([]value.Val(nil), args...)
			return value.Return(value.ListOf(cp)), nil
		})

	fn(env, "len", "(len coll) returns the element count of list coll.",
		func(_ value.Locals, args []value.Val) (value.NativeFnOp, error) {
			if len(args) != 1 {
				return value.NativeFnOp{}, arity("len", "one argument", len(args))
			}
			l, err := wantList("len", args[0])
			if err != nil {
				return value.NativeFnOp{}, err
			}
			return value.Return(value.Int(int64(len(l)))), nil
		})

	getImpl := func(name string) func(value.Locals, []value.Val) (value.NativeFnOp, error) {
		return func(_ value.Locals, args []value.Val) (value.NativeFnOp, error) {
			if len(args) != 2 {
				return value.NativeFnOp{}, arity(name, "two arguments", len(args))
			}
			l, err := wantList(name, args[0])
			if err != nil {
				return value.NativeFnOp{}, err
			}
			idx, err := wantInt(name, args[1])
			if err != nil {
				return value.NativeFnOp{}, err
			}
			if idx < 0 || int(idx) >= len(l) {
				return value.Return(value.Nil()), nil
			}
			return value.Return(l[idx]), nil
		}
	}
	fn(env, "get", "(get coll idx) returns the element of list coll at idx, or nil if out of range.", getImpl("get"))
	fn(env, "nth", "(nth coll idx) returns the element of list coll at idx, or nil if out of range.", getImpl("nth"))

	fn(env, "push", "(push coll v) returns a new list with v appended to coll.",
		func(_ value.Locals, args []value.Val) (value.NativeFnOp, error) {
			if len(args) != 2 {
				return value.NativeFnOp{}, arity("push", "two arguments", len(args))
			}
			l, err := wantList("push", args[0])
			if err != nil {
				return value.NativeFnOp{}, err
			}
			next := append(append([]value.Val(nil), l...), args[1])
			return value.Return(value.ListOf(next)), nil
		})

	fn(env, "sort", "(sort coll) returns a new list sorted by the built-in total order over comparable kinds.",
		func(_ value.Locals, args []value.Val) (value.NativeFnOp, error) {
			if len(args) != 1 {
				return value.NativeFnOp{}, arity("sort", "one argument", len(args))
			}
			l, err := wantList("sort", args[0])
			if err != nil {
				return value.NativeFnOp{}, err
			}
			sorted := append([]value.Val(nil), l...)
			var sortErr error
			sort.SliceStable(sorted, func(i, j int) bool {
				n, ok := value.Compare(sorted[i], sorted[j])
				if !ok && sortErr == nil {
					sortErr = value.NewErr(value.ErrUnexpectedType, "sort expects a list of one comparable kind")
				}
				return n < 0
			})
			if sortErr != nil {
				return value.NativeFnOp{}, sortErr
			}
			return value.Return(value.ListOf(sorted)), nil
		})

	fn(env, "reverse", "(reverse coll) returns coll with its elements in reverse order.",
		func(_ value.Locals, args []value.Val) (value.NativeFnOp, error) {
			if len(args) != 1 {
				return value.NativeFnOp{}, arity("reverse", "one argument", len(args))
			}
			l, err := wantList("reverse", args[0])
			if err != nil {
				return value.NativeFnOp{}, err
			}
			rev := make([]value.Val, len(l))
			for i, v := range l {
				rev[len(l)-1-i] = v
			}
			return value.Return(value.ListOf(rev)), nil
		})

	fn(env, "map", "(map coll fn) applies fn to every element of coll, returning the list of results.",
		func(_ value.Locals, args []value.Val) (value.NativeFnOp, error) {
			if len(args) != 2 {
				return value.NativeFnOp{}, arity("map", "two arguments", len(args))
			}
			l, err := wantList("map", args[0])
			if err != nil {
				return value.NativeFnOp{}, err
			}
			callee := args[1]
			if callee.Kind != value.KindLambda && callee.Kind != value.KindNativeFn {
				return value.NativeFnOp{}, value.NewErr(value.ErrUnexpectedType, "map expects its second argument to be a lambda, got %s", callee.Kind)
			}
			// The callee is embedded directly as a self-evaluating
			// constant (pkg/compiler.compileForm's default case) and
			// each element is quoted, so the generated calls need no env
			// lookups and can run via OpExec in the caller's frame.
			calls := make([]value.Val, len(l))
			for i, e := range l {
				calls[i] = value.List(callee, value.List(value.Symbol("quote"), e))
			}
			prog, err := compiler.Compile(value.List(append([]value.Val{value.Symbol("list")}, calls...)...))
			if err != nil {
				return value.NativeFnOp{}, err
			}
			return value.Exec(prog), nil
		})
}
