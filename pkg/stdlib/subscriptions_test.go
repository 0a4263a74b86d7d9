package stdlib

import (
	"context"
	"testing"
	"time"

	"github.com/kristofer/wisp/pkg/env"
	"github.com/kristofer/wisp/pkg/value"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToSubscriberMailbox(t *testing.T) {
	e := env.New()
	registerSubscriptions(e)
	locals := newTestLocals(1, newFakeKernel())

	out := callAsync(t, e, "subscribe", locals, value.Keyword("topic"))
	require.Equal(t, value.Keyword("ok"), out)

	pubOut := callAsync(t, e, "publish", locals, value.Keyword("topic"), value.Str("hello"))
	require.Equal(t, value.Keyword("ok"), pubOut)

	pollCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	want := value.List(value.Keyword("topic_updated"), value.Keyword("topic"), value.Str("hello"))
	got, err := locals.Mailbox.Poll(pollCtx, want)
	require.NoError(t, err)
	require.True(t, value.Equal(got, want))
}

func TestSubscribeRejectsNonKeywordTopic(t *testing.T) {
	e := env.New()
	registerSubscriptions(e)
	locals := newTestLocals(1, newFakeKernel())

	v, ok := e.Get("subscribe")
	require.True(t, ok)
	_, err := v.NativeAsync.Fn(context.Background(), locals, []value.Val{value.Str("topic")})
	require.Error(t, err)
}
