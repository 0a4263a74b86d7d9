package fiber_test

import (
	"context"
	"testing"

	"github.com/kristofer/wisp/pkg/fiber"
	"github.com/kristofer/wisp/pkg/hostops"
	"github.com/kristofer/wisp/pkg/parser"
	"github.com/kristofer/wisp/pkg/process"
	"github.com/kristofer/wisp/pkg/stdlib"
	"github.com/kristofer/wisp/pkg/value"
	"github.com/stretchr/testify/require"
)

type noopHost struct{}

func (noopHost) Exec(context.Context, string, []string) (string, error) { return "", nil }
func (noopHost) ReadFile(context.Context, string) (string, error)       { return "", nil }
func (noopHost) OpenURL(context.Context, string) (string, error)        { return "", nil }
func (noopHost) OpenApp(context.Context, string) (string, error)        { return "", nil }
func (noopHost) OpenFile(context.Context, string) (string, error)       { return "", nil }

var _ hostops.Host = noopHost{}

func newFiber(t *testing.T, src string) *fiber.Fiber {
	t.Helper()
	form, err := parser.Parse(src)
	require.NoError(t, err)
	global := stdlib.Standard(noopHost{})
	f, err := fiber.NewFromVal(form, global, &process.Locals{})
	require.NoError(t, err)
	return f
}

// TestUnprotectedErrorTerminatesTheFiber establishes the baseline
// property 6 contrasts against: outside try, an evaluation error
// terminates the fiber and is reported as Start/Resume's error return,
// never as a SignalDone value.
func TestUnprotectedErrorTerminatesTheFiber(t *testing.T) {
	f := newFiber(t, "jibberish")
	_, err := f.Start()
	require.Error(t, err)
	verr, ok := err.(*value.Err)
	require.True(t, ok)
	require.Equal(t, value.ErrUndefinedSymbol, verr.Kind)
}

// TestTryCatchesAnyErrorAndContinues is spec.md §8 property 6: for any
// expression e whose evaluation produces error kind K outside of try,
// (try e) yields Val::Error(K) and does not terminate the fiber.
func TestTryCatchesAnyErrorAndContinues(t *testing.T) {
	cases := []struct {
		name    string
		expr    string
		errKind value.ErrorKind
	}{
		{"undefined symbol", "(try jibberish)", value.ErrUndefinedSymbol},
		{"unexpected arguments", "(try (+))", value.ErrUnexpectedArguments},
		{"unexpected type", `(try (+ 1 "two"))`, value.ErrUnexpectedType},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := newFiber(t, c.expr)
			sig, err := f.Start()
			require.NoError(t, err)
			require.Equal(t, fiber.SignalDone, sig.Kind)
			require.Equal(t, value.KindError, sig.Value.Kind)
			require.Equal(t, c.errKind, sig.Value.Err.Kind)
		})
	}

	// The fiber keeps running after the catch: surrounding code still
	// executes and its own result, not the caught error, is what the
	// fiber ultimately terminates with.
	f := newFiber(t, "(begin (try jibberish) 42)")
	sig, err := f.Start()
	require.NoError(t, err)
	require.Equal(t, fiber.SignalDone, sig.Kind)
	require.Equal(t, value.Int(42), sig.Value)
}

// TestTryIsTransparentWhenNoErrorOccurs confirms try is a pure
// passthrough on success, never wrapping a non-error result.
func TestTryIsTransparentWhenNoErrorOccurs(t *testing.T) {
	f := newFiber(t, "(try (+ 1 2))")
	sig, err := f.Start()
	require.NoError(t, err)
	require.Equal(t, fiber.SignalDone, sig.Kind)
	require.Equal(t, value.Int(3), sig.Value)
}
