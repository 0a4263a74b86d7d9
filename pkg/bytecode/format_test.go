package bytecode_test

import (
	"bytes"
	"testing"

	"github.com/kristofer/wisp/pkg/bytecode"
	"github.com/kristofer/wisp/pkg/value"
	"github.com/stretchr/testify/require"
)

// TestEncodeDecodeSimpleProgram is the teacher's
// TestEncodeDecodeSimpleBytecode round-trip, re-keyed to this runtime's
// Program/Instruction shape.
func TestEncodeDecodeSimpleProgram(t *testing.T) {
	original := bytecode.New()
	idx := original.AddConstant(value.Int(42))
	original.Emit(bytecode.OpPushConst, idx)

	var buf bytes.Buffer
	require.NoError(t, bytecode.Encode(original, &buf))
	require.NotZero(t, buf.Len())

	decoded, err := bytecode.Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, original.Instructions, decoded.Instructions)
	require.Equal(t, original.Constants, decoded.Constants)
}

// TestEncodeDecodeAllConstantKinds covers every constant kind the
// compiler actually emits (see pkg/compiler's AddConstant call sites):
// nil, bool, int, str, symbol, keyword, nested list, and nested bytecode.
func TestEncodeDecodeAllConstantKinds(t *testing.T) {
	inner := bytecode.New()
	inner.AddConstant(value.Str("nested"))
	inner.Emit(bytecode.OpPushConst, 0)

	original := bytecode.New()
	for _, c := range []value.Val{
		value.Nil(),
		value.Bool(true),
		value.Bool(false),
		value.Int(-7),
		value.Str("hello"),
		value.Symbol("x"),
		value.Keyword("k"),
		value.List(value.Int(1), value.Str("two"), value.Keyword("three")),
		value.BytecodeVal(inner),
	} {
		original.AddConstant(c)
	}
	original.Emit(bytecode.OpPopTop, 0)

	var buf bytes.Buffer
	require.NoError(t, bytecode.Encode(original, &buf))

	decoded, err := bytecode.Decode(&buf)
	require.NoError(t, err)
	require.Len(t, decoded.Constants, len(original.Constants))

	for i, c := range original.Constants {
		got := decoded.Constants[i]
		if c.Kind == value.KindBytecode {
			gotProg, ok := got.Bytecode.(*bytecode.Program)
			require.True(t, ok)
			wantProg := c.Bytecode.(*bytecode.Program)
			require.Equal(t, wantProg.Instructions, gotProg.Instructions)
			require.Equal(t, wantProg.Constants, gotProg.Constants)
			continue
		}
		require.True(t, value.Equal(c, got), "constant %d: got %v, want %v", i, got, c)
	}
}

// TestDecodeRejectsBadMagic establishes the header-validation contract
// the teacher's readHeader documents: a file not produced by Encode is
// rejected rather than silently misparsed.
func TestDecodeRejectsBadMagic(t *testing.T) {
	_, err := bytecode.Decode(bytes.NewReader([]byte{0xDE, 0xAD, 0xBE, 0xEF, 1, 0, 0, 0}))
	require.Error(t, err)
}

// TestDecodeRejectsUnsupportedVersion mirrors the teacher's version-check
// in Decode.
func TestDecodeRejectsUnsupportedVersion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, bytecode.Encode(bytecode.New(), &buf))
	raw := buf.Bytes()
	// Version is the 4 bytes right after the magic number.
	raw[4] = 0xFF
	_, err := bytecode.Decode(bytes.NewReader(raw))
	require.Error(t, err)
}

// TestEncodeRejectsUnsupportedConstantKind documents that lambdas, native
// fns, errors, refs, and externs never appear in a compiled constant pool
// and so are rejected rather than silently miscoded.
func TestEncodeRejectsUnsupportedConstantKind(t *testing.T) {
	p := bytecode.New()
	p.Constants = append(p.Constants, value.LambdaVal(&value.Lambda{Name: "f"}))

	var buf bytes.Buffer
	require.Error(t, bytecode.Encode(p, &buf))
}
