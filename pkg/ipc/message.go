// Package ipc implements the client<->runtime wire protocol (spec.md
// §6.1): message framing and the JSON encoding of requests, responses,
// and subscription traffic exchanged over a terminal's connection.
//
// Grounded on original_source/libvrsd and libvrs-cli's connection/codec
// split (request/response/subscription frames over a length-prefixed
// stream) and, for the accept-loop/per-connection goroutine shape that
// pkg/terminal builds on top of this package, on
// other_examples/07cb6442_cmcoffee-go-ezipc's listener and per-connection
// reader loop.
package ipc

import (
	"encoding/json"
	"fmt"

	"github.com/kristofer/wisp/pkg/value"
)

// Type tags the five message variants spec.md §6.1 names.
type Type string

const (
	TypeRequest            Type = "request"
	TypeResponse           Type = "response"
	TypeSubscriptionStart  Type = "subscription_start"
	TypeSubscriptionEnd    Type = "subscription_end"
	TypeSubscriptionUpdate Type = "subscription_update"
)

// ErrorPayload is the wire shape of a failed Response's contents: an
// ErrorKind from the closed set in spec.md §7 plus the message text the
// runtime attached to it.
type ErrorPayload struct {
	Kind    value.ErrorKind `json:"kind"`
	Message string          `json:"message"`
}

// Message is the single wire frame type; only the fields relevant to Type
// are populated. ID/ReqID are request-assigned per spec.md §6.1 ("Request
// IDs are assigned by the originating peer and must be unique among its
// in-flight requests").
type Message struct {
	Type Type `json:"type"`

	ID    uint32 `json:"id,omitempty"`
	ReqID uint32 `json:"req_id,omitempty"`
	Topic string `json:"topic,omitempty"`

	Contents json.RawMessage `json:"contents,omitempty"`
	Error    *ErrorPayload   `json:"error,omitempty"`
}

// NewRequest builds a Request frame carrying contents for evaluation.
func NewRequest(id uint32, contents value.Val) (Message, error) {
	raw, err := EncodeValue(contents)
	if err != nil {
		return Message{}, fmt.Errorf("ipc: encode request %d: %w", id, err)
	}
	return Message{Type: TypeRequest, ID: id, Contents: raw}, nil
}

// NewResponse builds a successful Response frame.
func NewResponse(reqID uint32, contents value.Val) (Message, error) {
	raw, err := EncodeValue(contents)
	if err != nil {
		return Message{}, fmt.Errorf("ipc: encode response %d: %w", reqID, err)
	}
	return Message{Type: TypeResponse, ReqID: reqID, Contents: raw}, nil
}

// NewErrorResponse builds a failed Response frame from a runtime *value.Err.
func NewErrorResponse(reqID uint32, err *value.Err) Message {
	return Message{
		Type:  TypeResponse,
		ReqID: reqID,
		Error: &ErrorPayload{Kind: err.Kind, Message: err.Message},
	}
}

// NewSubscriptionStart builds a SubscriptionStart frame.
func NewSubscriptionStart(topic string) Message {
	return Message{Type: TypeSubscriptionStart, Topic: topic}
}

// NewSubscriptionEnd builds a SubscriptionEnd frame.
func NewSubscriptionEnd(topic string) Message {
	return Message{Type: TypeSubscriptionEnd, Topic: topic}
}

// NewSubscriptionUpdate builds a SubscriptionUpdate frame carrying the
// topic's newly published value.
func NewSubscriptionUpdate(topic string, contents value.Val) (Message, error) {
	raw, err := EncodeValue(contents)
	if err != nil {
		return Message{}, fmt.Errorf("ipc: encode subscription update %q: %w", topic, err)
	}
	return Message{Type: TypeSubscriptionUpdate, Topic: topic, Contents: raw}, nil
}

// Value decodes m.Contents, for Request/Response/SubscriptionUpdate
// frames that carry one.
func (m Message) Value() (value.Val, error) {
	if len(m.Contents) == 0 {
		return value.Nil(), nil
	}
	return DecodeValue(m.Contents)
}

// Ok reports whether a Response frame succeeded.
func (m Message) Ok() bool {
	return m.Type == TypeResponse && m.Error == nil
}
