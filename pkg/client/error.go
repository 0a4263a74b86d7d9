// Package client implements the symmetric client-side request
// multiplexer and refcounted subscription handles spec.md §4.9 and
// SPEC_FULL.md §2 call for on top of pkg/ipc's wire frames.
//
// Grounded on original_source/libvrs/src/client/mod.rs: one task owns
// the connection and a command channel, request ids are assigned and
// tracked in an in-flight map resolved by response frames, and
// subscriptions are refcounted per topic so a second Subscribe for an
// already-active topic skips re-sending SubscriptionStart. Rendered in
// this repo's single-owner-goroutine-over-channels idiom (pkg/kernel,
// pkg/registry, pkg/pubsub) rather than tokio tasks + oneshot/broadcast
// channels.
package client

import "fmt"

// Error is the client package's error type. Unlike original_source's
// client/error.go, there is no mpsc/oneshot/broadcast machinery to wrap;
// the cases collapse to a closed/disconnected state and an opaque
// transport failure.
type Error struct {
	msg string
}

func (e *Error) Error() string { return e.msg }

func newError(format string, args ...any) *Error {
	return &Error{msg: fmt.Sprintf(format, args...)}
}

// ErrClosed is returned by Request/Subscribe once the client has been
// shut down or the connection has gone away.
var ErrClosed = newError("client: closed")

// ErrDisconnected is returned by in-flight Request/Subscribe calls that
// were still pending when the underlying connection dropped.
var ErrDisconnected = newError("client: disconnected")
