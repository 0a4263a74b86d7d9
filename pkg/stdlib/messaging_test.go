package stdlib

import (
	"context"
	"testing"

	"github.com/kristofer/wisp/pkg/env"
	"github.com/kristofer/wisp/pkg/value"
	"github.com/stretchr/testify/require"
)

func TestSendToSelfBypassesKernel(t *testing.T) {
	e := env.New()
	registerMessaging(e)
	k := newFakeKernel()
	locals := newTestLocals(1, k)

	out := callAsync(t, e, "send", locals, value.PidVal(1), value.Str("hi"))
	require.Equal(t, value.Str("hi"), out)
	require.Empty(t, k.sent, "self-send must not round-trip through the kernel")

	got, err := locals.Mailbox.Poll(context.Background(), value.Symbol("_"))
	require.NoError(t, err)
	require.Equal(t, value.Str("hi"), got)
}

func TestSendToOtherRoutesThroughKernel(t *testing.T) {
	e := env.New()
	registerMessaging(e)
	k := newFakeKernel()
	locals := newTestLocals(1, k)

	out := callAsync(t, e, "send", locals, value.PidVal(2), value.Str("hi"))
	require.Equal(t, value.Str("hi"), out)
	require.Equal(t, []sentMsg{{2, value.Str("hi")}}, k.sent)
}

func TestRecvMatchesPattern(t *testing.T) {
	e := env.New()
	registerMessaging(e)
	locals := newTestLocals(1, newFakeKernel())
	locals.Mailbox.Push(value.Int(1))
	locals.Mailbox.Push(value.Keyword("wanted"))

	out := callAsync(t, e, "recv", locals, value.Keyword("wanted"))
	require.Equal(t, value.Keyword("wanted"), out)
}

func TestLsMsgsDoesNotConsume(t *testing.T) {
	e := env.New()
	registerMessaging(e)
	locals := newTestLocals(1, newFakeKernel())
	locals.Mailbox.Push(value.Int(1))
	locals.Mailbox.Push(value.Int(2))

	out := callAsync(t, e, "ls-msgs", locals)
	require.Len(t, out.List, 2)

	again := callAsync(t, e, "ls-msgs", locals)
	require.Len(t, again.List, 2)
}

func TestCallIsBoundAsANamedLambda(t *testing.T) {
	e := env.New()
	registerMessaging(e)

	v, ok := e.Get("call")
	require.True(t, ok)
	require.Equal(t, value.KindLambda, v.Kind)
	require.Equal(t, []string{"to", "msg"}, v.Lambda.Params)
	require.NotNil(t, v.Lambda.Code)
}
