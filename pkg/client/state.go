package client

import (
	"context"
	"io"

	"github.com/kristofer/wisp/pkg/ipc"
	"github.com/kristofer/wisp/pkg/value"
	"github.com/sirupsen/logrus"
)

// subscriptionBuffer bounds how many unread updates a single Subscription
// holds before newer updates are dropped, mirroring the lossy-on-lag
// behavior of a bounded broadcast channel.
const subscriptionBuffer = 32

type reqCmd struct {
	contents value.Val
	respCh   chan reqResult
}

type reqResult struct {
	val value.Val
	err error
}

type subCmd struct {
	topic  string
	respCh chan subResult
}

type subResult struct {
	ch  chan value.Val
	err error
}

type unsubCmd struct {
	topic string
	ch    chan value.Val
}

// topicState tracks a topic's active local subscriber channels. len of
// subs is the topic's refcount: a SubscriptionStart is sent only when it
// goes 0->1, a SubscriptionEnd only when it goes 1->0.
type topicState struct {
	subs map[chan value.Val]struct{}
}

// state is owned exclusively by run's goroutine; nothing outside it
// touches these fields, so it needs no locking.
type state struct {
	enc *ipc.Encoder

	nextReqID uint32
	inflight  map[uint32]chan reqResult

	topics map[string]*topicState

	log *logrus.Entry
}

// run is the client's single event loop: it owns the encoder and all
// mutable state, serializing command handling and inbound-frame handling
// through one goroutine exactly like pkg/kernel's and pkg/registry's
// run loops.
func run(ctx context.Context, st *state, cmdCh <-chan any, inboundCh <-chan ipc.Message, readErrCh <-chan error) {
	defer st.failAll(ErrDisconnected)

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-readErrCh:
			if err != nil && err != io.EOF {
				st.log.WithError(err).Warn("client: connection read failed")
			}
			return
		case cmd := <-cmdCh:
			st.handleCmd(cmd)
		case m := <-inboundCh:
			st.handleInbound(m)
		}
	}
}

func (st *state) handleCmd(cmd any) {
	switch c := cmd.(type) {
	case reqCmd:
		st.handleRequest(c)
	case subCmd:
		st.handleSubscribe(c)
	case unsubCmd:
		st.handleUnsubscribe(c)
	}
}

func (st *state) handleRequest(c reqCmd) {
	id := st.nextReqID
	st.nextReqID++

	m, err := ipc.NewRequest(id, c.contents)
	if err != nil {
		c.respCh <- reqResult{err: err}
		return
	}
	st.inflight[id] = c.respCh
	if err := st.enc.Encode(m); err != nil {
		delete(st.inflight, id)
		c.respCh <- reqResult{err: err}
	}
}

func (st *state) handleSubscribe(c subCmd) {
	ts, exists := st.topics[c.topic]
	if !exists {
		ts = &topicState{subs: make(map[chan value.Val]struct{})}
		st.topics[c.topic] = ts
	}

	ch := make(chan value.Val, subscriptionBuffer)
	ts.subs[ch] = struct{}{}

	if !exists {
		if err := st.enc.Encode(ipc.NewSubscriptionStart(c.topic)); err != nil {
			delete(ts.subs, ch)
			delete(st.topics, c.topic)
			c.respCh <- subResult{err: err}
			return
		}
	}
	c.respCh <- subResult{ch: ch}
}

func (st *state) handleUnsubscribe(c unsubCmd) {
	ts, ok := st.topics[c.topic]
	if !ok {
		return
	}
	if _, ok := ts.subs[c.ch]; !ok {
		return
	}
	delete(ts.subs, c.ch)
	close(c.ch)

	if len(ts.subs) > 0 {
		return
	}
	delete(st.topics, c.topic)
	if err := st.enc.Encode(ipc.NewSubscriptionEnd(c.topic)); err != nil {
		st.log.WithField("topic", c.topic).WithError(err).Warn("client: send subscription end failed")
	}
}

func (st *state) handleInbound(m ipc.Message) {
	switch m.Type {
	case ipc.TypeResponse:
		st.handleResponse(m)
	case ipc.TypeSubscriptionUpdate:
		st.handleSubscriptionUpdate(m)
	default:
		st.log.WithField("type", m.Type).Warn("client: unexpected inbound message type")
	}
}

func (st *state) handleResponse(m ipc.Message) {
	respCh, ok := st.inflight[m.ReqID]
	if !ok {
		st.log.WithField("req_id", m.ReqID).Warn("client: response for unknown request id")
		return
	}
	delete(st.inflight, m.ReqID)

	if !m.Ok() {
		respCh <- reqResult{err: &value.Err{Kind: m.Error.Kind, Message: m.Error.Message}}
		return
	}
	v, err := m.Value()
	if err != nil {
		respCh <- reqResult{err: err}
		return
	}
	respCh <- reqResult{val: v}
}

func (st *state) handleSubscriptionUpdate(m ipc.Message) {
	ts, ok := st.topics[m.Topic]
	if !ok {
		return
	}
	v, err := m.Value()
	if err != nil {
		st.log.WithField("topic", m.Topic).WithError(err).Warn("client: decode subscription update failed")
		return
	}
	for ch := range ts.subs {
		select {
		case ch <- v:
		default:
			st.log.WithField("topic", m.Topic).Warn("client: subscriber lagging, dropping update")
		}
	}
}

// failAll unblocks every still-pending Request and closes every open
// subscription channel once the event loop exits, so no caller blocks
// forever on a connection that's gone away.
func (st *state) failAll(err error) {
	for id, respCh := range st.inflight {
		respCh <- reqResult{err: err}
		delete(st.inflight, id)
	}
	for topic, ts := range st.topics {
		for ch := range ts.subs {
			close(ch)
		}
		delete(st.topics, topic)
	}
}
