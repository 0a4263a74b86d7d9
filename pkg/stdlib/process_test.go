package stdlib

import (
	"context"
	"testing"
	"time"

	"github.com/kristofer/wisp/pkg/env"
	"github.com/kristofer/wisp/pkg/value"
	"github.com/stretchr/testify/require"
)

func callAsync(t *testing.T, e value.Env, name string, locals value.Locals, args ...value.Val) value.Val {
	t.Helper()
	v, ok := e.Get(name)
	require.True(t, ok, "%s not bound", name)
	require.Equal(t, value.KindNativeAsyncFn, v.Kind)
	out, err := v.NativeAsync.Fn(context.Background(), locals, args)
	require.NoError(t, err)
	return out
}

func TestSelfWithLocals(t *testing.T) {
	e := env.New()
	registerProcess(e)
	locals := newTestLocals(7, newFakeKernel())

	v, ok := e.Get("self")
	require.True(t, ok)
	op, err := v.Native.Fn(locals, nil)
	require.NoError(t, err)
	require.Equal(t, value.OpReturn, op.Kind)
	require.Equal(t, value.PidVal(7), op.Value)
}

func TestPidConstructsAPidValue(t *testing.T) {
	e := env.New()
	registerProcess(e)
	require.Equal(t, value.PidVal(42), callFn(t, e, "pid", value.Int(42)))
}

func TestPsListsProcesses(t *testing.T) {
	e := env.New()
	registerProcess(e)
	locals := newTestLocals(1, newFakeKernel())

	out := callAsync(t, e, "ps", locals)
	require.Len(t, out.List, 2)
}

func TestKillDelegatesToKernel(t *testing.T) {
	e := env.New()
	registerProcess(e)
	k := newFakeKernel()
	locals := newTestLocals(1, k)

	out := callAsync(t, e, "kill", locals, value.PidVal(5))
	require.Equal(t, value.Keyword("ok"), out)
	require.Equal(t, []uint64{5}, k.killed)
}

func TestSleepCompletesAfterDuration(t *testing.T) {
	e := env.New()
	registerProcess(e)
	locals := newTestLocals(1, newFakeKernel())

	start := time.Now()
	out := callAsync(t, e, "sleep", locals, value.Int(0))
	require.Equal(t, value.Keyword("ok"), out)
	require.WithinDuration(t, start, time.Now(), time.Second)
}

func TestSpawnReturnsANewPid(t *testing.T) {
	e := env.New()
	registerProcess(e)
	k := newFakeKernel()
	locals := newTestLocals(1, k)

	lambda := value.LambdaVal(&value.Lambda{Code: nil})
	out := callAsync(t, e, "spawn", locals, lambda)
	require.Equal(t, value.KindExtern, out.Kind)
	_, ok := out.AsPid()
	require.True(t, ok)
}
