package client

import "github.com/kristofer/wisp/pkg/value"

// Subscription is one local handle onto a topic's updates. Several
// Subscription values for the same topic can coexist on one Client; the
// topic is only actually unsubscribed on the wire once all of them have
// been closed (spec.md §4.9's refcounted subscriptions).
type Subscription struct {
	topic  string
	ch     chan value.Val
	client *Client

	closed bool
}

// Topic reports the subscribed topic.
func (s *Subscription) Topic() string {
	return s.topic
}

// Next blocks for the topic's next published value. It returns ok=false
// once the subscription has been closed or the client's connection has
// gone away.
func (s *Subscription) Next() (value.Val, bool) {
	v, ok := <-s.ch
	return v, ok
}

// Close releases this handle's share of the topic subscription,
// unblocking any pending Next call for it. Closing an already-closed
// Subscription is a no-op.
func (s *Subscription) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.client.unsubscribe(s.topic, s.ch)
}
