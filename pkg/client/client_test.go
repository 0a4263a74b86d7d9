package client

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/kristofer/wisp/pkg/ipc"
	"github.com/kristofer/wisp/pkg/value"
	"github.com/stretchr/testify/require"
)

// startEchoServer decodes Request frames off conn and immediately encodes
// back a Response carrying the same contents, mirroring
// original_source/libvrs/src/client.rs's request_response test fixture.
func startEchoServer(t *testing.T, conn net.Conn) {
	t.Helper()
	dec := ipc.NewDecoder(conn)
	enc := ipc.NewEncoder(conn)
	go func() {
		for {
			m, err := dec.Decode()
			if err != nil {
				return
			}
			if m.Type != ipc.TypeRequest {
				continue
			}
			v, err := m.Value()
			if err != nil {
				return
			}
			resp, err := ipc.NewResponse(m.ID, v)
			if err != nil {
				return
			}
			if err := enc.Encode(resp); err != nil {
				return
			}
		}
	}()
}

func TestRequestRoundTripsConcurrentRequests(t *testing.T) {
	local, remote := net.Pipe()
	defer local.Close()
	defer remote.Close()
	startEchoServer(t, remote)

	c := New(local, nil)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type result struct {
		val value.Val
		err error
	}
	results := make(chan result, 3)
	for _, s := range []string{"one", "two", "three"} {
		s := s
		go func() {
			v, err := c.Request(ctx, value.Str(s))
			results <- result{val: v, err: err}
		}()
	}

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		r := <-results
		require.NoError(t, r.err)
		require.Equal(t, value.KindStr, r.val.Kind)
		seen[r.val.Str] = true
	}
	require.Equal(t, map[string]bool{"one": true, "two": true, "three": true}, seen)
}

func TestRequestSurfacesErrorResponse(t *testing.T) {
	local, remote := net.Pipe()
	defer local.Close()
	defer remote.Close()

	dec := ipc.NewDecoder(remote)
	enc := ipc.NewEncoder(remote)
	go func() {
		m, err := dec.Decode()
		require.NoError(t, err)
		resp := ipc.NewErrorResponse(m.ID, value.NewErr(value.ErrUndefinedSymbol, "boom"))
		require.NoError(t, enc.Encode(resp))
	}()

	c := New(local, nil)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := c.Request(ctx, value.Symbol("undefined-name"))
	require.Error(t, err)
	asErr, ok := err.(*value.Err)
	require.True(t, ok)
	require.Equal(t, value.ErrUndefinedSymbol, asErr.Kind)
}

func TestClosedAfterRemoteConnDrops(t *testing.T) {
	local, remote := net.Pipe()
	defer local.Close()

	c := New(local, nil)
	defer c.Close()

	remote.Close()

	select {
	case <-c.Closed():
	case <-time.After(time.Second):
		t.Fatal("client should report closed once remote connection drops")
	}
}

func TestRequestErrorsWhenConnectionDropsBeforeResponse(t *testing.T) {
	local, remote := net.Pipe()
	defer local.Close()

	dec := ipc.NewDecoder(remote)
	go func() {
		_, _ = dec.Decode()
		remote.Close()
	}()

	c := New(local, nil)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := c.Request(ctx, value.Str("hi"))
	require.Error(t, err)
}

func TestSubscribeRefcountsStartAndEndAcrossTwoLocalHandles(t *testing.T) {
	local, remote := net.Pipe()
	defer local.Close()
	defer remote.Close()

	dec := ipc.NewDecoder(remote)
	enc := ipc.NewEncoder(remote)

	c := New(local, nil)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// The client writes SubscriptionStart before Subscribe returns and
	// net.Pipe writes block until read, so the start frame is read
	// concurrently with the Subscribe call.
	type decoded struct {
		m   ipc.Message
		err error
	}
	startCh := make(chan decoded, 1)
	go func() {
		m, err := dec.Decode()
		startCh <- decoded{m, err}
	}()

	sub1, err := c.Subscribe(ctx, "count")
	require.NoError(t, err)

	got := <-startCh
	start, err := got.m, got.err
	require.NoError(t, err)
	require.Equal(t, ipc.TypeSubscriptionStart, start.Type)
	require.Equal(t, "count", start.Topic)

	sub2, err := c.Subscribe(ctx, "count")
	require.NoError(t, err)

	update, err := ipc.NewSubscriptionUpdate("count", value.Int(42))
	require.NoError(t, err)
	require.NoError(t, enc.Encode(update))

	v1, ok := sub1.Next()
	require.True(t, ok)
	require.Equal(t, value.Int(42), v1)

	v2, ok := sub2.Next()
	require.True(t, ok)
	require.Equal(t, value.Int(42), v2)

	// One decode goroutine reads whatever frame arrives next; it must
	// see nothing until the *second* Close, since the topic is still
	// refcounted at 1 after the first.
	nextFrame := make(chan ipc.Message, 1)
	go func() {
		m, err := dec.Decode()
		if err == nil {
			nextFrame <- m
		}
	}()

	sub1.Close()

	select {
	case m := <-nextFrame:
		t.Fatalf("unexpected frame after first Close: %+v", m)
	case <-time.After(50 * time.Millisecond):
	}

	sub2.Close()

	select {
	case end := <-nextFrame:
		require.Equal(t, ipc.TypeSubscriptionEnd, end.Type)
		require.Equal(t, "count", end.Topic)
	case <-time.After(5 * time.Second):
		t.Fatal("expected SubscriptionEnd frame after second Close")
	}
}
