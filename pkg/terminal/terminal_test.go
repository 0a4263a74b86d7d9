package terminal

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/kristofer/wisp/pkg/hostops"
	"github.com/kristofer/wisp/pkg/ipc"
	"github.com/kristofer/wisp/pkg/kernel"
	"github.com/kristofer/wisp/pkg/pubsub"
	"github.com/kristofer/wisp/pkg/registry"
	"github.com/kristofer/wisp/pkg/stdlib"
	"github.com/kristofer/wisp/pkg/value"
	"github.com/stretchr/testify/require"
)

type noopHost struct{}

func (noopHost) Exec(context.Context, string, []string) (string, error)  { return "", nil }
func (noopHost) ReadFile(context.Context, string) (string, error)        { return "", nil }
func (noopHost) OpenURL(context.Context, string) (string, error)         { return "", nil }
func (noopHost) OpenApp(context.Context, string) (string, error)         { return "", nil }
func (noopHost) OpenFile(context.Context, string) (string, error)        { return "", nil }

var _ hostops.Host = noopHost{}

func newTestKernel(ctx context.Context, ps *pubsub.PubSub) *kernel.Kernel {
	standard := stdlib.Standard(noopHost{})
	return kernel.New(ctx, standard, registry.New(), ps)
}

func TestRecvReqEvalsAndSendsResp(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ps := pubsub.New()
	k := newTestKernel(ctx, ps)
	defer k.Close()

	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	term := New(serverConn, k, ps, nil)
	standard := stdlib.Standard(noopHost{})
	go term.Serve(ctx, standard)

	clientEnc := ipc.NewEncoder(clientConn)
	clientDec := ipc.NewDecoder(clientConn)

	req, err := ipc.NewRequest(1, value.List(value.Symbol("+"), value.Int(1), value.Int(2)))
	require.NoError(t, err)
	require.NoError(t, clientEnc.Encode(req))

	resp, err := clientDec.Decode()
	require.NoError(t, err)
	require.Equal(t, ipc.TypeResponse, resp.Type)
	require.Equal(t, uint32(1), resp.ReqID)
	require.True(t, resp.Ok())

	got, err := resp.Value()
	require.NoError(t, err)
	require.Equal(t, value.Int(3), got)
}

func TestRecvReqSurfacesEvalErrorsAsErrorResponse(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ps := pubsub.New()
	k := newTestKernel(ctx, ps)
	defer k.Close()

	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	term := New(serverConn, k, ps, nil)
	standard := stdlib.Standard(noopHost{})
	go term.Serve(ctx, standard)

	clientEnc := ipc.NewEncoder(clientConn)
	clientDec := ipc.NewDecoder(clientConn)

	req, err := ipc.NewRequest(9, value.Symbol("undefined-name"))
	require.NoError(t, err)
	require.NoError(t, clientEnc.Encode(req))

	resp, err := clientDec.Decode()
	require.NoError(t, err)
	require.False(t, resp.Ok())
	require.Equal(t, value.ErrUndefinedSymbol, resp.Error.Kind)
}

func TestSubscribeForwardsPublishedValues(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ps := pubsub.New()
	k := newTestKernel(ctx, ps)
	defer k.Close()

	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	term := New(serverConn, k, ps, nil)
	standard := stdlib.Standard(noopHost{})
	go term.Serve(ctx, standard)

	clientEnc := ipc.NewEncoder(clientConn)
	clientDec := ipc.NewDecoder(clientConn)

	require.NoError(t, clientEnc.Encode(ipc.NewSubscriptionStart("weather")))

	// Give the terminal a moment to register the subscription before
	// publishing, since subscribe and publish race over the bus otherwise.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, ps.Publish(ctx, "weather", value.Str("sunny")))

	update, err := clientDec.Decode()
	require.NoError(t, err)
	require.Equal(t, ipc.TypeSubscriptionUpdate, update.Type)
	require.Equal(t, "weather", update.Topic)

	got, err := update.Value()
	require.NoError(t, err)
	require.Equal(t, value.Str("sunny"), got)
}
