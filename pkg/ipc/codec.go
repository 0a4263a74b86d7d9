package ipc

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// MaxFrameSize bounds a single incoming frame, guarding a connection
// against a corrupt or hostile length prefix driving an unbounded
// allocation.
const MaxFrameSize = 16 << 20 // 16 MiB

// Encoder writes length-prefixed JSON frames to an underlying stream:
// a 4-byte big-endian payload length followed by the JSON payload,
// per spec.md §6.1. Safe for concurrent Encode calls.
type Encoder struct {
	mu sync.Mutex
	w  io.Writer
}

// NewEncoder wraps w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes one frame for m.
func (e *Encoder) Encode(m Message) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("ipc: marshal message: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(payload)))
	if _, err := e.w.Write(lenPrefix[:]); err != nil {
		return fmt.Errorf("ipc: write frame length: %w", err)
	}
	if _, err := e.w.Write(payload); err != nil {
		return fmt.Errorf("ipc: write frame payload: %w", err)
	}
	return nil
}

// Decoder reads length-prefixed JSON frames from an underlying stream.
// Decoders are not safe for concurrent use; a connection has exactly one
// reader.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder wraps r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Decode reads and parses the next frame. It returns io.EOF (unwrapped)
// when the stream ends cleanly between frames.
func (d *Decoder) Decode() (Message, error) {
	var lenPrefix [4]byte
	if _, err := io.ReadFull(d.r, lenPrefix[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return Message{}, fmt.Errorf("ipc: truncated frame length: %w", err)
		}
		return Message{}, err
	}

	n := binary.BigEndian.Uint32(lenPrefix[:])
	if n > MaxFrameSize {
		return Message{}, fmt.Errorf("ipc: frame of %d bytes exceeds max %d", n, MaxFrameSize)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(d.r, payload); err != nil {
		return Message{}, fmt.Errorf("ipc: read frame payload: %w", err)
	}

	var m Message
	if err := json.Unmarshal(payload, &m); err != nil {
		return Message{}, fmt.Errorf("ipc: unmarshal message: %w", err)
	}
	return m, nil
}
