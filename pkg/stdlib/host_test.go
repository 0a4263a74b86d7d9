package stdlib

import (
	"context"
	"testing"

	"github.com/kristofer/wisp/pkg/env"
	"github.com/kristofer/wisp/pkg/value"
	"github.com/stretchr/testify/require"
)

type fakeHost struct {
	execOut string
	execErr error
	readOut string
	readErr error

	lastProg string
	lastArgs []string
	lastPath string
	lastURL  string
	lastApp  string
}

func (h *fakeHost) Exec(ctx context.Context, prog string, args []string) (string, error) {
	h.lastProg, h.lastArgs = prog, args
	return h.execOut, h.execErr
}

func (h *fakeHost) ReadFile(ctx context.Context, path string) (string, error) {
	h.lastPath = path
	return h.readOut, h.readErr
}

func (h *fakeHost) OpenURL(ctx context.Context, url string) (string, error) {
	h.lastURL = url
	return h.execOut, h.execErr
}

func (h *fakeHost) OpenApp(ctx context.Context, app string) (string, error) {
	h.lastApp = app
	return h.execOut, h.execErr
}

func (h *fakeHost) OpenFile(ctx context.Context, path string) (string, error) {
	h.lastPath = path
	return h.execOut, h.execErr
}

func TestExecDelegatesToHost(t *testing.T) {
	e := env.New()
	host := &fakeHost{execOut: "output"}
	registerHost(e, host)

	out := callAsync(t, e, "exec", nil, value.Str("ls"), value.Str("-la"))
	require.Equal(t, []value.Val{value.Keyword("ok"), value.Str("output")}, out.List)
	require.Equal(t, "ls", host.lastProg)
	require.Equal(t, []string{"-la"}, host.lastArgs)
}

func TestShellExpandExpandsTilde(t *testing.T) {
	e := env.New()
	registerHost(e, &fakeHost{})

	out := callFn(t, e, "shell_expand", value.Str("~/x"))
	require.NotEqual(t, "~/x", out.Str)
}

func TestFreadParsesFileContents(t *testing.T) {
	e := env.New()
	host := &fakeHost{readOut: "(1 2 3)"}
	registerHost(e, host)

	out := callAsync(t, e, "fread", nil, value.Str("/tmp/f.lisp"))
	require.Equal(t, value.KindList, out.Kind)
	require.Equal(t, []value.Val{value.Int(1), value.Int(2), value.Int(3)}, out.List)
}

func TestOpenURLDelegatesToHost(t *testing.T) {
	e := env.New()
	host := &fakeHost{execOut: "ok"}
	registerHost(e, host)

	out := callAsync(t, e, "open_url", nil, value.Str("https://example.com"))
	require.Equal(t, []value.Val{value.Keyword("ok"), value.Str("ok")}, out.List)
	require.Equal(t, "https://example.com", host.lastURL)
}

func TestOpenAppDelegatesToHost(t *testing.T) {
	e := env.New()
	host := &fakeHost{execOut: "ok"}
	registerHost(e, host)

	out := callAsync(t, e, "open_app", nil, value.Str("Preview"))
	require.Equal(t, []value.Val{value.Keyword("ok"), value.Str("ok")}, out.List)
	require.Equal(t, "Preview", host.lastApp)
}

func TestOpenFileExpandsTildeBeforeDelegating(t *testing.T) {
	e := env.New()
	host := &fakeHost{execOut: "ok"}
	registerHost(e, host)

	out := callAsync(t, e, "open_file", nil, value.Str("~/doc.txt"))
	require.Equal(t, []value.Val{value.Keyword("ok"), value.Str("ok")}, out.List)
	require.NotEqual(t, "~/doc.txt", host.lastPath)
}
