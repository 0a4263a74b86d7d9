package stdlib

import (
	"testing"

	"github.com/kristofer/wisp/pkg/env"
	"github.com/kristofer/wisp/pkg/value"
	"github.com/stretchr/testify/require"
)

func TestHelpReturnsDocString(t *testing.T) {
	e := env.New()
	registerArithmetic(e)
	registerDiagnostics(e)

	plus, ok := e.Get("+")
	require.True(t, ok)
	require.Equal(t, value.Str(plus.Native.Doc), callFn(t, e, "help", plus))
}

func TestHelpDefaultsWhenUndocumented(t *testing.T) {
	e := env.New()
	registerDiagnostics(e)

	undoc := value.NativeFnVal(&value.NativeFn{Name: "undoc", Fn: func(value.Locals, []value.Val) (value.NativeFnOp, error) {
		return value.NativeFnOp{}, nil
	}})
	require.Equal(t, value.Str("<missing documentation>"), callFn(t, e, "help", undoc))
}

func TestDocIsAnAliasForHelp(t *testing.T) {
	e := env.New()
	registerDiagnostics(e)

	help, ok := e.Get("help")
	require.True(t, ok)
	doc, ok := e.Get("doc")
	require.True(t, ok)
	require.Equal(t, help.Native, doc.Native)
}

func TestDbgReturnsOk(t *testing.T) {
	e := env.New()
	registerDiagnostics(e)

	require.Equal(t, value.Keyword("ok"), callFn(t, e, "dbg", value.Int(1), value.Str("x")))
}
