// Package terminal implements the per-connection pseudo-process that
// mediates between a client's wire connection and the runtime: it
// frames/unframes spec.md §6.1 messages over the connection, hands
// Request frames to an attached worker process through the
// terminal-only `recv_req`/`send_resp` bindings, and subscribes/
// forwards on the client's behalf for SubscriptionStart/SubscriptionEnd.
//
// Grounded on original_source/libvrs/src/rt/term.rs (the Terminal type
// owning a Connection, a request queue drained by recv_req, and a
// topic->forwarding-task map for subscriptions) and
// original_source/libvrs/src/rt/bindings/term.rs (recv_req_impl/
// send_resp_impl). The accept-loop/per-connection goroutine shape this
// package's caller (cmd/wispd) builds on top of it follows
// other_examples/07cb6442_cmcoffee-go-ezipc's Listen/Accept loop.
package terminal

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/kristofer/wisp/pkg/ipc"
	"github.com/kristofer/wisp/pkg/kernel"
	"github.com/kristofer/wisp/pkg/pubsub"
	"github.com/kristofer/wisp/pkg/value"
	"github.com/sirupsen/logrus"
)

// Terminal owns one client connection's lifetime: it decodes inbound
// frames, feeds Requests to its attached worker process, forwards that
// process's Responses back out, and manages the client's subscriptions
// directly against the pub/sub bus (spec.md §4.9 — the terminal
// subscribes on the client's behalf, not the worker process).
type Terminal struct {
	enc *ipc.Encoder
	dec *ipc.Decoder

	kernel *kernel.Kernel
	pubsub *pubsub.PubSub
	log    *logrus.Entry

	reqCh chan ipc.Message

	mu   sync.Mutex
	subs map[string]context.CancelFunc
}

// New wraps rw (typically a net.Conn) as a Terminal bound to k and ps.
func New(rw io.ReadWriter, k *kernel.Kernel, ps *pubsub.PubSub, log *logrus.Entry) *Terminal {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Terminal{
		enc:    ipc.NewEncoder(rw),
		dec:    ipc.NewDecoder(rw),
		kernel: k,
		pubsub: ps,
		log:    log,
		reqCh:  make(chan ipc.Message),
		subs:   make(map[string]context.CancelFunc),
	}
}

// Serve spawns this terminal's worker process against standard and
// blocks reading frames off the connection until it errs, the connection
// closes, or ctx is cancelled. The worker process's env is standard
// extended with recv_req/send_resp (bound in bindings.go), per spec.md
// §6.3's "terminal-only" builtins.
func (t *Terminal) Serve(ctx context.Context, standard value.Env) error {
	connEnv := standard.NewChild()
	t.bind(connEnv)

	worker, err := t.kernel.SpawnWithEnv(ctx, kernel.ConnWorkerProgram, connEnv)
	if err != nil {
		return fmt.Errorf("terminal: spawn worker: %w", err)
	}
	defer func() {
		t.closeAllSubs()
		worker.Kill()
	}()

	for {
		m, err := t.dec.Decode()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("terminal: decode: %w", err)
		}

		switch m.Type {
		case ipc.TypeRequest:
			select {
			case t.reqCh <- m:
			case <-ctx.Done():
				return ctx.Err()
			case <-worker.Done():
				return nil
			}
		case ipc.TypeSubscriptionStart:
			t.subscribe(ctx, m.Topic)
		case ipc.TypeSubscriptionEnd:
			t.unsubscribe(m.Topic)
		default:
			t.log.WithField("type", m.Type).Warn("terminal: unexpected inbound message type")
		}
	}
}

// subscribe subscribes the connection to topic if it isn't already,
// forwarding every update as a SubscriptionUpdate frame. A second Start
// for an already-subscribed topic is a no-op: the terminal de-duplicates
// subscription counts rather than stacking forwarders per spec.md §4.9.
func (t *Terminal) subscribe(ctx context.Context, topic string) {
	t.mu.Lock()
	if _, exists := t.subs[topic]; exists {
		t.mu.Unlock()
		return
	}
	subCtx, cancel := context.WithCancel(ctx)
	t.subs[topic] = cancel
	t.mu.Unlock()

	sub, err := t.pubsub.Subscribe(subCtx, topic)
	if err != nil {
		t.log.WithField("topic", topic).WithError(err).Error("terminal: subscribe failed")
		cancel()
		t.mu.Lock()
		delete(t.subs, topic)
		t.mu.Unlock()
		return
	}

	go func() {
		defer sub.Close()
		for {
			v, ok := sub.Next(subCtx)
			if !ok {
				return
			}
			m, err := ipc.NewSubscriptionUpdate(topic, v)
			if err != nil {
				t.log.WithField("topic", topic).WithError(err).Error("terminal: encode subscription update")
				continue
			}
			if err := t.enc.Encode(m); err != nil {
				return
			}
		}
	}()
}

func (t *Terminal) unsubscribe(topic string) {
	t.mu.Lock()
	cancel, ok := t.subs[topic]
	if ok {
		delete(t.subs, topic)
	}
	t.mu.Unlock()
	if ok {
		cancel()
	}
}

func (t *Terminal) closeAllSubs() {
	t.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(t.subs))
	for topic, cancel := range t.subs {
		cancels = append(cancels, cancel)
		delete(t.subs, topic)
	}
	t.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

// sendResp writes reqID's response, folding a KindError contents value
// into an ErrorPayload rather than attempting (and failing) to encode an
// Err as an ordinary Value — the ConnWorkerProgram's `(try (eval ...))`
// hands send_resp exactly this shape on a failed evaluation.
func (t *Terminal) sendResp(reqID uint32, contents value.Val) error {
	if contents.Kind == value.KindError {
		return t.enc.Encode(ipc.NewErrorResponse(reqID, contents.Err))
	}
	m, err := ipc.NewResponse(reqID, contents)
	if err != nil {
		return err
	}
	return t.enc.Encode(m)
}
