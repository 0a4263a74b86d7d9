package stdlib

import (
	"testing"

	"github.com/kristofer/wisp/pkg/env"
	"github.com/kristofer/wisp/pkg/value"
	"github.com/stretchr/testify/require"
)

func TestStrRendersSurfaceSyntax(t *testing.T) {
	e := env.New()
	registerStrings(e)

	require.Equal(t, value.Str("hello"), callFn(t, e, "str", value.Str("hello")))
	require.Equal(t, value.Str("hello42"), callFn(t, e, "str", value.Str("hello"), value.Int(42)))
	require.Equal(t, value.Str(":ok"), callFn(t, e, "str", value.Keyword("ok")))
}

func TestStrSplitAndJoin(t *testing.T) {
	e := env.New()
	registerStrings(e)

	parts := callFn(t, e, "str-split", value.Str("a,b,c"), value.Str(","))
	require.Equal(t, []value.Val{value.Str("a"), value.Str("b"), value.Str("c")}, parts.List)

	joined := callFn(t, e, "str-join", parts, value.Str("-"))
	require.Equal(t, value.Str("a-b-c"), joined)
}
