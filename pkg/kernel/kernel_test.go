package kernel

import (
	"context"
	"testing"
	"time"

	"github.com/kristofer/wisp/pkg/env"
	"github.com/kristofer/wisp/pkg/pattern"
	"github.com/kristofer/wisp/pkg/process"
	"github.com/kristofer/wisp/pkg/pubsub"
	"github.com/kristofer/wisp/pkg/registry"
	"github.com/kristofer/wisp/pkg/value"
	"github.com/stretchr/testify/require"
)

func newTestKernel(t *testing.T) (*Kernel, context.Context) {
	t.Helper()
	ctx := context.Background()
	global := env.New()
	global.Define("recv1", value.NativeAsyncFnVal(&value.NativeAsyncFn{
		Name: "recv1",
		Fn: func(actx value.AsyncCtx, locals value.Locals, args []value.Val) (value.Val, error) {
			l := locals.(*process.Locals)
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			return l.Mailbox.Poll(ctx, pattern.AnyPattern)
		},
	}))

	reg := registry.New()
	ps := pubsub.New()
	k := New(ctx, global, reg, ps)
	t.Cleanup(func() {
		k.Close()
		reg.Close()
		ps.Close()
	})
	return k, ctx
}

func TestSpawnAssignsSequentialPids(t *testing.T) {
	k, ctx := newTestKernel(t)

	h1, err := k.Spawn(ctx, value.Int(1))
	require.NoError(t, err)
	h2, err := k.Spawn(ctx, value.Int(2))
	require.NoError(t, err)

	require.Equal(t, h1.Pid()+1, h2.Pid())
}

func TestSendDeliversToProcessMailbox(t *testing.T) {
	k, ctx := newTestKernel(t)

	prog := value.List(value.Symbol("recv1"))
	h, err := k.Spawn(ctx, prog)
	require.NoError(t, err)

	require.NoError(t, k.Send(ctx, h.Pid(), value.Str("hello")))

	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("process did not complete")
	}
	res := h.Result()
	require.NoError(t, res.Err)
	require.Equal(t, value.Str("hello"), res.Value)
}

func TestSpawnWithEnvUsesProvidedEnvInsteadOfGlobal(t *testing.T) {
	k, ctx := newTestKernel(t)

	child := env.New().NewChild()
	child.Define("only-in-child", value.NativeAsyncFnVal(&value.NativeAsyncFn{
		Name: "only-in-child",
		Fn: func(actx value.AsyncCtx, locals value.Locals, args []value.Val) (value.Val, error) {
			return value.Keyword("ok"), nil
		},
	}))

	h, err := k.SpawnWithEnv(ctx, value.List(value.Symbol("only-in-child")), child)
	require.NoError(t, err)

	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("process did not complete")
	}
	res := h.Result()
	require.NoError(t, res.Err)
	require.Equal(t, value.Keyword("ok"), res.Value)
}

func TestSendToUnknownPidErrors(t *testing.T) {
	k, ctx := newTestKernel(t)

	err := k.Send(ctx, 999, value.Nil())
	require.Error(t, err)
}

func TestKillStopsProcess(t *testing.T) {
	k, ctx := newTestKernel(t)

	prog := value.List(value.Symbol("recv1"))
	h, err := k.Spawn(ctx, prog)
	require.NoError(t, err)

	ok := k.Kill(ctx, h.Pid())
	require.True(t, ok)

	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("killed process did not exit")
	}
	require.True(t, h.Result().Cancelled)
}

func TestKillUnknownPidReturnsFalse(t *testing.T) {
	k, ctx := newTestKernel(t)
	require.False(t, k.Kill(ctx, 999))
}

func TestLookupFindsSpawnedProcess(t *testing.T) {
	k, ctx := newTestKernel(t)

	h, err := k.Spawn(ctx, value.Int(1))
	require.NoError(t, err)

	found, ok := k.Lookup(ctx, h.Pid())
	require.True(t, ok)
	require.Equal(t, h.Pid(), found.Pid())
}

func TestProcessInfosListsRunningProcesses(t *testing.T) {
	k, ctx := newTestKernel(t)

	prog := value.List(value.Symbol("recv1"))
	_, err := k.Spawn(ctx, prog)
	require.NoError(t, err)

	infos := k.ProcessInfos(ctx)
	require.Len(t, infos, 1)
}

func TestProcessCountMatchesRunningProcesses(t *testing.T) {
	k, ctx := newTestKernel(t)
	require.Equal(t, 0, k.ProcessCount(ctx))

	prog := value.List(value.Symbol("recv1"))
	_, err := k.Spawn(ctx, prog)
	require.NoError(t, err)
	_, err = k.Spawn(ctx, prog)
	require.NoError(t, err)

	require.Equal(t, 2, k.ProcessCount(ctx))
}

func TestUptimeIsMonotonicallyNonDecreasing(t *testing.T) {
	k, _ := newTestKernel(t)

	first := k.Uptime()
	time.Sleep(time.Millisecond)
	second := k.Uptime()

	require.GreaterOrEqual(t, second, first)
}

func TestExitedProcessIsRemovedFromLookup(t *testing.T) {
	k, ctx := newTestKernel(t)

	h, err := k.Spawn(ctx, value.Int(1))
	require.NoError(t, err)

	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("process did not complete")
	}

	require.Eventually(t, func() bool {
		_, ok := k.Lookup(ctx, h.Pid())
		return !ok
	}, time.Second, 5*time.Millisecond)
}
