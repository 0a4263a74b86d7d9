package ipc

import (
	"testing"

	"github.com/kristofer/wisp/pkg/value"
	"github.com/stretchr/testify/require"
)

func TestValueRoundTripsSerializableKinds(t *testing.T) {
	cases := []value.Val{
		value.Nil(),
		value.Bool(true),
		value.Int(-42),
		value.Str("hello\nworld"),
		value.Symbol("foo"),
		value.Keyword("ok"),
		value.List(value.Int(1), value.Keyword("a"), value.List(value.Bool(false))),
	}

	for _, v := range cases {
		raw, err := EncodeValue(v)
		require.NoError(t, err)

		got, err := DecodeValue(raw)
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestValueFallsBackToRawForUnserializableKinds(t *testing.T) {
	lambda := value.LambdaVal(&value.Lambda{Name: "f"})

	raw, err := EncodeValue(lambda)
	require.NoError(t, err)

	got, err := DecodeValue(raw)
	require.NoError(t, err)
	require.Equal(t, value.KindStr, got.Kind)
	require.Equal(t, value.Print(lambda), got.Str)
}

func TestDecodeValueRejectsUnknownKind(t *testing.T) {
	_, err := DecodeValue([]byte(`{"kind":"bogus"}`))
	require.Error(t, err)
}
