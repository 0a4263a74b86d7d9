package ipc

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/kristofer/wisp/pkg/value"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	dec := NewDecoder(&buf)

	req, err := NewRequest(1, value.Int(42))
	require.NoError(t, err)
	require.NoError(t, enc.Encode(req))

	got, err := dec.Decode()
	require.NoError(t, err)
	require.Equal(t, TypeRequest, got.Type)
	require.Equal(t, uint32(1), got.ID)

	v, err := got.Value()
	require.NoError(t, err)
	require.Equal(t, value.Int(42), v)
}

func TestEncodeDecodeMultipleFramesInSequence(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	for i := uint32(0); i < 3; i++ {
		m, err := NewRequest(i, value.Int(int64(i)))
		require.NoError(t, err)
		require.NoError(t, enc.Encode(m))
	}

	dec := NewDecoder(&buf)
	for i := uint32(0); i < 3; i++ {
		got, err := dec.Decode()
		require.NoError(t, err)
		require.Equal(t, i, got.ID)
	}

	_, err := dec.Decode()
	require.Equal(t, io.EOF, err)
}

func TestDecodeFramePrefixIsBigEndian(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	m, err := NewResponse(1, value.Nil())
	require.NoError(t, err)
	require.NoError(t, enc.Encode(m))

	raw := buf.Bytes()
	length := binary.BigEndian.Uint32(raw[:4])
	require.Equal(t, int(length), len(raw)-4)
}

func TestDecodeRejectsOversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], MaxFrameSize+1)
	buf.Write(lenPrefix[:])

	dec := NewDecoder(&buf)
	_, err := dec.Decode()
	require.Error(t, err)
}

func TestDecodeReportsTruncatedLengthPrefix(t *testing.T) {
	dec := NewDecoder(bytes.NewReader([]byte{0x00, 0x01}))
	_, err := dec.Decode()
	require.Error(t, err)
}
