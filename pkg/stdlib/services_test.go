package stdlib

import (
	"context"
	"testing"

	"github.com/kristofer/wisp/pkg/env"
	"github.com/kristofer/wisp/pkg/value"
	"github.com/stretchr/testify/require"
)

func namedLambda(name string, params ...string) value.Val {
	return value.LambdaVal(&value.Lambda{Name: name, Params: params})
}

func TestInterfacePatternDerivesFromLambdaMetadata(t *testing.T) {
	l := namedLambda("echo", "a", "b")
	pat, err := interfacePattern(l)
	require.NoError(t, err)
	require.Equal(t, []value.Val{value.Keyword("echo"), value.Symbol("a"), value.Symbol("b")}, pat.List)
}

func TestInterfacePatternRejectsAnonymousLambda(t *testing.T) {
	l := value.LambdaVal(&value.Lambda{Params: []string{"a"}})
	_, err := interfacePattern(l)
	require.Error(t, err)
}

func TestInterfacePatternRejectsNonLambda(t *testing.T) {
	_, err := interfacePattern(value.Int(1))
	require.Error(t, err)
}

func registerFullEnv(e value.Env) {
	registerArithmetic(e)
	registerList(e)
	registerMessaging(e)
	registerProcess(e)
	registerServices(e)
}

func TestRegisterAndLsSrv(t *testing.T) {
	e := env.New()
	registerFullEnv(e)
	k := newFakeKernel()
	locals := newTestLocals(1, k)

	h, err := k.Spawn(context.Background(), value.Int(0))
	require.NoError(t, err)
	k.register(1, h)

	out := callAsync(t, e, "register", locals, value.Keyword("echo"))
	require.Equal(t, value.Keyword("ok"), out)

	all := callAsync(t, e, "ls-srv", locals)
	require.Len(t, all.List, 1)
	require.Equal(t, value.Keyword("echo"), all.List[0].List[0])
}

func TestRegisterWithInterface(t *testing.T) {
	e := env.New()
	registerFullEnv(e)
	k := newFakeKernel()
	locals := newTestLocals(1, k)

	h, err := k.Spawn(context.Background(), value.Int(0))
	require.NoError(t, err)
	k.register(1, h)

	lambdas := value.ListOf([]value.Val{namedLambda("ping")})
	out := callAsync(t, e, "register", locals, value.Keyword("svc"), value.Keyword("interface"), lambdas)
	require.Equal(t, value.Keyword("ok"), out)

	info := callAsync(t, e, "info-srv", locals, value.Keyword("svc"), value.Keyword("interface"))
	require.Len(t, info.List, 1)
	require.Equal(t, value.Keyword("ping"), info.List[0].List[0])
}

func TestFindSrvIsACompiledLambda(t *testing.T) {
	e := env.New()
	registerServices(e)

	v, ok := e.Get("find-srv")
	require.True(t, ok)
	require.Equal(t, value.KindLambda, v.Kind)
	require.Equal(t, []string{"name"}, v.Lambda.Params)
}

func TestInfoSrvMissingServiceErrors(t *testing.T) {
	e := env.New()
	registerFullEnv(e)
	locals := newTestLocals(1, newFakeKernel())

	v, ok := e.Get("info-srv")
	require.True(t, ok)
	_, err := v.NativeAsync.Fn(context.Background(), locals, []value.Val{value.Keyword("nope"), value.Keyword("pid")})
	require.Error(t, err)
}

func TestBindSrvCompilesAgainstRegisteredInterface(t *testing.T) {
	e := env.New()
	registerFullEnv(e)
	k := newFakeKernel()
	locals := newTestLocals(1, k)

	h, err := k.Spawn(context.Background(), value.Int(0))
	require.NoError(t, err)
	k.register(1, h)

	lambdas := value.ListOf([]value.Val{namedLambda("ping", "x")})
	_ = callAsync(t, e, "register", locals, value.Keyword("svc"), value.Keyword("interface"), lambdas)

	v, ok := e.Get("bind-srv")
	require.True(t, ok)
	op, err := v.Native.Fn(locals, []value.Val{value.Keyword("svc")})
	require.NoError(t, err)
	require.Equal(t, value.OpExec, op.Kind)
	require.NotNil(t, op.Code)
}

func TestBindSrvMissingServiceErrors(t *testing.T) {
	e := env.New()
	registerFullEnv(e)
	locals := newTestLocals(1, newFakeKernel())

	v, ok := e.Get("bind-srv")
	require.True(t, ok)
	_, err := v.Native.Fn(locals, []value.Val{value.Keyword("nope")})
	require.Error(t, err)
}

func TestSrvCompilesARegisterAndLoopProgram(t *testing.T) {
	e := env.New()
	registerFullEnv(e)

	v, ok := e.Get("srv")
	require.True(t, ok)
	lambdas := value.ListOf([]value.Val{namedLambda("ping", "x")})
	op, err := v.Native.Fn(nil, []value.Val{value.Keyword("svc"), lambdas})
	require.NoError(t, err)
	require.Equal(t, value.OpExec, op.Kind)
	require.NotNil(t, op.Code)
}

func TestSpawnSrvCompilesASpawnProgram(t *testing.T) {
	e := env.New()
	registerFullEnv(e)

	v, ok := e.Get("spawn_srv")
	require.True(t, ok)
	lambdas := value.ListOf([]value.Val{namedLambda("ping", "x")})
	op, err := v.Native.Fn(nil, []value.Val{value.Keyword("svc"), lambdas})
	require.NoError(t, err)
	require.Equal(t, value.OpExec, op.Kind)
	require.NotNil(t, op.Code)
}
