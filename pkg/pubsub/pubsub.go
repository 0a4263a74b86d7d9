// Package pubsub implements the runtime's topic broadcast bus (spec.md
// §4.8): a single-owner task holding a topic→(latest value, subscriber
// set) map. subscribe lazily creates the topic and returns an endpoint
// that delivers only values published after the call; publish lazily
// creates the topic and broadcasts to every current subscriber with
// latest-value-wins semantics — a subscriber that falls behind only ever
// observes the most recent published value, never a backlog.
//
// Grounded on original_source/libvrs/src/rt/pubsub.rs: a single-owner
// task reached through a command channel, `tokio::sync::watch` per
// topic for the latest-value-wins broadcast, and `clear` tearing a topic
// down. Go has no watch-channel equivalent in the standard library, so
// each subscriber here is a capacity-1 channel that publish overwrites
// in place (drain-then-send) rather than a `sync.Cond`-based imitation,
// matching the single-owner-goroutine style used throughout this
// runtime's concurrency primitives.
package pubsub

import (
	"context"
	"fmt"

	"github.com/kristofer/wisp/pkg/value"
)

// PubSub is a handle to the owning task; safe for concurrent use.
type PubSub struct {
	subscribeCh   chan subscribeRequest
	unsubscribeCh chan unsubscribeRequest
	publishCh     chan publishRequest
	clearCh       chan clearRequest
	infoCh        chan infoRequest
	done          chan struct{}
}

type unsubscribeRequest struct {
	topic string
	id    uint64
	resCh chan struct{}
}

type subscribeRequest struct {
	topic string
	resCh chan *Subscription
}

type publishRequest struct {
	topic string
	val   value.Val
	resCh chan struct{}
}

type clearRequest struct {
	topic string
	resCh chan struct{}
}

type infoRequest struct {
	resCh chan []TopicInfo
}

// TopicInfo describes a topic's current state for introspection
// (`ps`/`info-srv`-style tooling), without participating in delivery.
type TopicInfo struct {
	Topic          string
	LastValue      value.Val
	HasValue       bool
	NumSubscribers int
}

type topic struct {
	last      value.Val
	hasLast   bool
	subs      map[uint64]*Subscription
	nextSubID uint64
}

// Subscription is a live endpoint for one topic. Next blocks for the
// next published value; Close unsubscribes, after which Next returns
// ok=false.
type Subscription struct {
	id     uint64
	topic  string
	ch     chan value.Val
	closed chan struct{}
	ps     *PubSub
}

// New returns an empty pub/sub bus and starts its owning goroutine.
func New() *PubSub {
	p := &PubSub{
		subscribeCh:   make(chan subscribeRequest),
		unsubscribeCh: make(chan unsubscribeRequest),
		publishCh:     make(chan publishRequest),
		clearCh:       make(chan clearRequest),
		infoCh:        make(chan infoRequest),
		done:          make(chan struct{}),
	}
	go p.run()
	return p
}

// Close stops the owning goroutine. Outstanding subscriptions stop
// receiving further values.
func (p *PubSub) Close() { close(p.done) }

func (p *PubSub) run() {
	topics := make(map[string]*topic)

	getTopic := func(name string) *topic {
		t, ok := topics[name]
		if !ok {
			t = &topic{subs: make(map[uint64]*Subscription)}
			topics[name] = t
		}
		return t
	}

	for {
		select {
		case req := <-p.subscribeCh:
			t := getTopic(req.topic)
			t.nextSubID++
			sub := &Subscription{
				id:     t.nextSubID,
				topic:  req.topic,
				ch:     make(chan value.Val, 1),
				closed: make(chan struct{}),
				ps:     p,
			}
			t.subs[sub.id] = sub
			req.resCh <- sub

		case req := <-p.publishCh:
			t := getTopic(req.topic)
			t.last = req.val
			t.hasLast = true
			for _, sub := range t.subs {
				select {
				case sub.ch <- req.val:
				default:
					select {
					case <-sub.ch:
					default:
					}
					sub.ch <- req.val
				}
			}
			req.resCh <- struct{}{}

		case req := <-p.unsubscribeCh:
			if t, ok := topics[req.topic]; ok {
				if sub, ok := t.subs[req.id]; ok {
					close(sub.closed)
					delete(t.subs, req.id)
				}
			}
			req.resCh <- struct{}{}

		case req := <-p.clearCh:
			if t, ok := topics[req.topic]; ok {
				for _, sub := range t.subs {
					close(sub.closed)
				}
				delete(topics, req.topic)
			}
			req.resCh <- struct{}{}

		case req := <-p.infoCh:
			infos := make([]TopicInfo, 0, len(topics))
			for name, t := range topics {
				infos = append(infos, TopicInfo{
					Topic:          name,
					LastValue:      t.last,
					HasValue:       t.hasLast,
					NumSubscribers: len(t.subs),
				})
			}
			req.resCh <- infos

		case <-p.done:
			for _, t := range topics {
				for _, sub := range t.subs {
					close(sub.closed)
				}
			}
			return
		}
	}
}

// Subscribe lazily creates topic and returns a fresh subscription that
// sees only values published after this call.
func (p *PubSub) Subscribe(ctx context.Context, topic string) (*Subscription, error) {
	resCh := make(chan *Subscription, 1)
	select {
	case p.subscribeCh <- subscribeRequest{topic: topic, resCh: resCh}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.done:
		return nil, fmt.Errorf("pubsub: closed")
	}
	select {
	case sub := <-resCh:
		return sub, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.done:
		return nil, fmt.Errorf("pubsub: closed")
	}
}

// Publish lazily creates topic and broadcasts val to every current
// subscriber. A subscriber that has not consumed the prior value loses
// it in favor of val (latest-value-wins).
func (p *PubSub) Publish(ctx context.Context, topic string, val value.Val) error {
	resCh := make(chan struct{}, 1)
	select {
	case p.publishCh <- publishRequest{topic: topic, val: val, resCh: resCh}:
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return fmt.Errorf("pubsub: closed")
	}
	select {
	case <-resCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return fmt.Errorf("pubsub: closed")
	}
}

// Clear tears down topic, disconnecting every current subscriber.
func (p *PubSub) Clear(ctx context.Context, topic string) error {
	resCh := make(chan struct{}, 1)
	select {
	case p.clearCh <- clearRequest{topic: topic, resCh: resCh}:
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return fmt.Errorf("pubsub: closed")
	}
	select {
	case <-resCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return fmt.Errorf("pubsub: closed")
	}
}

// Topics returns introspection info for every topic currently known,
// including its retained last value — used by `ps`/`info-srv`-style
// tooling, never by Subscribe.
func (p *PubSub) Topics(ctx context.Context) []TopicInfo {
	resCh := make(chan []TopicInfo, 1)
	select {
	case p.infoCh <- infoRequest{resCh: resCh}:
	case <-ctx.Done():
		return nil
	case <-p.done:
		return nil
	}
	select {
	case infos := <-resCh:
		return infos
	case <-ctx.Done():
		return nil
	case <-p.done:
		return nil
	}
}

// Next blocks until the next value is published on this subscription's
// topic, or the subscription/bus is closed (ok=false).
func (s *Subscription) Next(ctx context.Context) (value.Val, bool) {
	select {
	case <-s.closed:
		return value.Val{}, false
	default:
	}
	select {
	case v := <-s.ch:
		return v, true
	case <-s.closed:
		return value.Val{}, false
	case <-ctx.Done():
		return value.Val{}, false
	}
}

// Topic reports the name this subscription is bound to.
func (s *Subscription) Topic() string { return s.topic }

// Close unsubscribes. Safe to call more than once.
func (s *Subscription) Close() {
	resCh := make(chan struct{}, 1)
	select {
	case s.ps.unsubscribeCh <- unsubscribeRequest{topic: s.topic, id: s.id, resCh: resCh}:
		<-resCh
	case <-s.ps.done:
	}
}
