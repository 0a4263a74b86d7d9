package stdlib

import (
	"testing"

	"github.com/kristofer/wisp/pkg/env"
	"github.com/kristofer/wisp/pkg/value"
	"github.com/stretchr/testify/require"
)

func callFn(t *testing.T, e value.Env, name string, args ...value.Val) value.Val {
	t.Helper()
	v, ok := e.Get(name)
	require.True(t, ok, "%s not bound", name)
	require.Equal(t, value.KindNativeFn, v.Kind)
	op, err := v.Native.Fn(nil, args)
	require.NoError(t, err)
	require.Equal(t, value.OpReturn, op.Kind)
	return op.Value
}

func TestArithmeticFold(t *testing.T) {
	e := env.New()
	registerArithmetic(e)

	require.Equal(t, value.Int(6), callFn(t, e, "+", value.Int(1), value.Int(2), value.Int(3)))
	require.Equal(t, value.Int(-4), callFn(t, e, "-", value.Int(10), value.Int(6), value.Int(8)))
	require.Equal(t, value.Int(-5), callFn(t, e, "-", value.Int(5)))
	require.Equal(t, value.Int(24), callFn(t, e, "*", value.Int(2), value.Int(3), value.Int(4)))
	require.Equal(t, value.Int(2), callFn(t, e, "/", value.Int(20), value.Int(2), value.Int(5)))
}

func TestArithmeticDivideByZero(t *testing.T) {
	e := env.New()
	registerArithmetic(e)

	v, ok := e.Get("/")
	require.True(t, ok)
	_, err := v.Native.Fn(nil, []value.Val{value.Int(1), value.Int(0)})
	require.Error(t, err)
}

func TestCompareChain(t *testing.T) {
	e := env.New()
	registerArithmetic(e)

	require.Equal(t, value.Bool(true), callFn(t, e, "<", value.Int(1), value.Int(2), value.Int(3)))
	require.Equal(t, value.Bool(false), callFn(t, e, "<", value.Int(1), value.Int(3), value.Int(2)))
	require.Equal(t, value.Bool(true), callFn(t, e, ">=", value.Int(3), value.Int(3), value.Int(1)))
}

func TestEqAndNot(t *testing.T) {
	e := env.New()
	registerArithmetic(e)

	require.Equal(t, value.Bool(true), callFn(t, e, "eq?", value.Int(1), value.Int(1)))
	require.Equal(t, value.Bool(false), callFn(t, e, "eq?", value.Int(1), value.Int(2)))
	require.Equal(t, value.Bool(true), callFn(t, e, "not", value.Bool(false)))
}

func TestContainsAndOkErr(t *testing.T) {
	e := env.New()
	registerArithmetic(e)

	list := value.ListOf([]value.Val{value.Int(1), value.Int(2), value.Int(3)})
	require.Equal(t, value.Bool(true), callFn(t, e, "contains", list, value.Int(2)))
	require.Equal(t, value.Bool(false), callFn(t, e, "contains", list, value.Int(9)))

	errv := value.ErrorVal(value.ErrRuntime, "boom")
	require.Equal(t, value.Bool(true), callFn(t, e, "err?", errv))
	require.Equal(t, value.Bool(false), callFn(t, e, "ok?", errv))
}

func TestRefMintsDistinctValues(t *testing.T) {
	e := env.New()
	registerArithmetic(e)

	a := callFn(t, e, "ref")
	b := callFn(t, e, "ref")
	require.False(t, value.Equal(a, b))
}
