package client

import (
	"context"
	"io"
	"sync"

	"github.com/kristofer/wisp/pkg/ipc"
	"github.com/kristofer/wisp/pkg/value"
	"github.com/sirupsen/logrus"
)

// Client is a headless connection to a terminal: it multiplexes
// concurrent Request calls over one wire connection and fans out
// subscription updates to however many local Subscription handles are
// watching a topic.
type Client struct {
	cmdCh  chan any
	doneCh chan struct{}

	cancel context.CancelFunc

	closeOnce sync.Once
}

// New starts a Client reading/writing rw. Call Close to stop the
// client's background goroutines; rw itself is not closed, since
// io.ReadWriter carries no Close method — callers that need the
// underlying connection closed too (e.g. a net.Conn) should do so
// themselves after Close returns.
func New(rw io.ReadWriter, log *logrus.Entry) *Client {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		cmdCh:  make(chan any, 32),
		doneCh: make(chan struct{}),
		cancel: cancel,
	}

	st := &state{
		enc:     ipc.NewEncoder(rw),
		inflight: make(map[uint32]chan reqResult),
		topics:   make(map[string]*topicState),
		log:      log,
	}

	inboundCh := make(chan ipc.Message)
	readErrCh := make(chan error, 1)
	dec := ipc.NewDecoder(rw)
	go func() {
		for {
			m, err := dec.Decode()
			if err != nil {
				readErrCh <- err
				return
			}
			select {
			case inboundCh <- m:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		defer close(c.doneCh)
		run(ctx, st, c.cmdCh, inboundCh, readErrCh)
	}()

	return c
}

// Request sends contents as a new Request frame and blocks for its
// Response, returning the response's contents on success or the
// runtime's *value.Err on a failed evaluation.
func (c *Client) Request(ctx context.Context, contents value.Val) (value.Val, error) {
	respCh := make(chan reqResult, 1)
	cmd := reqCmd{contents: contents, respCh: respCh}

	select {
	case c.cmdCh <- cmd:
	case <-c.doneCh:
		return value.Val{}, ErrClosed
	case <-ctx.Done():
		return value.Val{}, ctx.Err()
	}

	select {
	case res := <-respCh:
		return res.val, res.err
	case <-c.doneCh:
		return value.Val{}, ErrDisconnected
	case <-ctx.Done():
		return value.Val{}, ctx.Err()
	}
}

// Subscribe subscribes to topic, sending SubscriptionStart only if this
// is the first active subscriber for it (spec.md §4.9's refcounting).
// The returned Subscription must be closed to release its share; the
// last Close for a topic sends SubscriptionEnd.
func (c *Client) Subscribe(ctx context.Context, topic string) (*Subscription, error) {
	respCh := make(chan subResult, 1)
	cmd := subCmd{topic: topic, respCh: respCh}

	select {
	case c.cmdCh <- cmd:
	case <-c.doneCh:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-respCh:
		if res.err != nil {
			return nil, res.err
		}
		return &Subscription{topic: topic, ch: res.ch, client: c}, nil
	case <-c.doneCh:
		return nil, ErrDisconnected
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// unsubscribe is called by Subscription.Close.
func (c *Client) unsubscribe(topic string, ch chan value.Val) {
	select {
	case c.cmdCh <- unsubCmd{topic: topic, ch: ch}:
	case <-c.doneCh:
	}
}

// Closed returns a channel that's closed once the client's background
// goroutines have stopped, whether from Close or the connection
// dropping out from under it.
func (c *Client) Closed() <-chan struct{} {
	return c.doneCh
}

// Close stops the client's event loop and blocks until it has exited.
// The underlying connection is left open (see New).
func (c *Client) Close() {
	c.closeOnce.Do(c.cancel)
	<-c.doneCh
}
