package stdlib

import (
	"github.com/kristofer/wisp/pkg/hostops"
	"github.com/kristofer/wisp/pkg/parser"
	"github.com/kristofer/wisp/pkg/value"
	homedir "github.com/mitchellh/go-homedir"
)

// registerHost binds exec/shell_expand/fread/open_url/open_app/open_file,
// grounded on original_source/libvrs/src/rt/bindings/system.rs, fs.rs and
// open.rs. Every one of these round-trips through the hostops.Host
// collaborator (SPEC_FULL.md §1's narrow interface), rather than open_url/
// open_app/open_file being compiled lambdas layered on exec the way
// open.rs itself builds them — the collaborator boundary is the one
// SPEC_FULL.md names, so OS.OpenURL/OpenApp/OpenFile carry that
// composition instead.
func registerHost(env value.Env, host hostops.Host) {
	asyncFn(env, "exec", "(exec prog arg1 arg2 ... argn) executes prog with the given arguments and returns (:ok output).",
		func(ctx value.AsyncCtx, locals value.Locals, args []value.Val) (value.Val, error) {
			if len(args) == 0 {
				return value.Val{}, arity("exec", "at least one argument", 0)
			}
			prog, err := wantStr("exec", args[0])
			if err != nil {
				return value.Val{}, err
			}
			cargs := make([]string, len(args)-1)
			for i, a := range args[1:] {
				s, err := wantStr("exec", a)
				if err != nil {
					return value.Val{}, err
				}
				cargs[i] = s
			}
			out, err := host.Exec(asCtx(ctx), prog, cargs)
			if err != nil {
				return value.Val{}, value.NewErr(value.ErrRuntime, "%s", err.Error())
			}
			return value.List(value.Keyword("ok"), value.Str(out)), nil
		})

	fn(env, "shell_expand", "(shell_expand path) expands a leading ~ in path to the user's home directory.",
		func(_ value.Locals, args []value.Val) (value.NativeFnOp, error) {
			if len(args) != 1 {
				return value.NativeFnOp{}, arity("shell_expand", "one argument", len(args))
			}
			s, err := wantStr("shell_expand", args[0])
			if err != nil {
				return value.NativeFnOp{}, err
			}
			expanded, err := homedir.Expand(s)
			if err != nil {
				return value.NativeFnOp{}, value.NewErr(value.ErrRuntime, "shell_expand: %s", err.Error())
			}
			return value.Return(value.Str(expanded)), nil
		})

	asyncFn(env, "fread", "(fread file-name) reads and parses the expression in file-name.",
		func(ctx value.AsyncCtx, locals value.Locals, args []value.Val) (value.Val, error) {
			if len(args) != 1 {
				return value.Val{}, arity("fread", "one argument", len(args))
			}
			path, err := wantStr("fread", args[0])
			if err != nil {
				return value.Val{}, err
			}
			expanded, err := homedir.Expand(path)
			if err != nil {
				return value.Val{}, value.NewErr(value.ErrRuntime, "fread: %s", err.Error())
			}
			contents, err := host.ReadFile(asCtx(ctx), expanded)
			if err != nil {
				return value.Val{}, value.NewErr(value.ErrRuntime, "%s", err.Error())
			}
			form, err := parser.Parse(contents)
			if err != nil {
				return value.Val{}, value.NewErr(value.ErrInvalidExpression, "fread: %s", err.Error())
			}
			return form, nil
		})

	asyncFn(env, "open_url", "(open_url url) opens url in the default browser.",
		func(ctx value.AsyncCtx, locals value.Locals, args []value.Val) (value.Val, error) {
			if len(args) != 1 {
				return value.Val{}, arity("open_url", "one argument", len(args))
			}
			url, err := wantStr("open_url", args[0])
			if err != nil {
				return value.Val{}, err
			}
			out, err := host.OpenURL(asCtx(ctx), url)
			if err != nil {
				return value.Val{}, value.NewErr(value.ErrRuntime, "%s", err.Error())
			}
			return value.List(value.Keyword("ok"), value.Str(out)), nil
		})

	asyncFn(env, "open_app", "(open_app app) launches the named application.",
		func(ctx value.AsyncCtx, locals value.Locals, args []value.Val) (value.Val, error) {
			if len(args) != 1 {
				return value.Val{}, arity("open_app", "one argument", len(args))
			}
			app, err := wantStr("open_app", args[0])
			if err != nil {
				return value.Val{}, err
			}
			out, err := host.OpenApp(asCtx(ctx), app)
			if err != nil {
				return value.Val{}, value.NewErr(value.ErrRuntime, "%s", err.Error())
			}
			return value.List(value.Keyword("ok"), value.Str(out)), nil
		})

	asyncFn(env, "open_file", "(open_file file) opens file with its default application.",
		func(ctx value.AsyncCtx, locals value.Locals, args []value.Val) (value.Val, error) {
			if len(args) != 1 {
				return value.Val{}, arity("open_file", "one argument", len(args))
			}
			path, err := wantStr("open_file", args[0])
			if err != nil {
				return value.Val{}, err
			}
			expanded, err := homedir.Expand(path)
			if err != nil {
				return value.Val{}, value.NewErr(value.ErrRuntime, "open_file: %s", err.Error())
			}
			out, err := host.OpenFile(asCtx(ctx), expanded)
			if err != nil {
				return value.Val{}, value.NewErr(value.ErrRuntime, "%s", err.Error())
			}
			return value.List(value.Keyword("ok"), value.Str(out)), nil
		})
}
