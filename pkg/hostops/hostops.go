// Package hostops is the runtime's collaborator interface to the host
// operating system: running external programs and reading files off
// disk. It exists so pkg/stdlib's host bindings (exec, fread) depend on
// a narrow interface rather than os/exec and os directly, the same way
// pkg/registry declares its own ExitWaiter instead of importing
// pkg/process.
//
// Grounded on original_source/libvrs/src/rt/bindings/system.rs and
// fs.rs, which back exec and fread with tokio::process::Command and
// tokio::fs::File respectively.
package hostops

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Host is satisfied by the default OS-backed implementation and by any
// test double substituted in its place. The five methods match
// SPEC_FULL.md §1's narrow collaborator surface.
type Host interface {
	// Exec runs prog with args to completion and returns its trimmed
	// stdout. A non-zero exit is reported as an error.
	Exec(ctx context.Context, prog string, args []string) (string, error)
	// ReadFile returns the contents of path in full.
	ReadFile(ctx context.Context, path string) (string, error)
	// OpenURL opens url in the host's default browser.
	OpenURL(ctx context.Context, url string) (string, error)
	// OpenApp launches the named application.
	OpenApp(ctx context.Context, app string) (string, error)
	// OpenFile opens path with its default associated application.
	OpenFile(ctx context.Context, path string) (string, error)
}

// OS is the default Host, shelling out via os/exec and reading files via
// os.ReadFile. OpenURL/OpenApp/OpenFile shell out to the macOS `open`
// command, grounded on original_source/libvrs/src/rt/bindings/open.rs's
// three compiled-lambda bindings (`(exec "open" "-a" "Safari" url)`,
// `(exec "open" "-a" app)`, `(exec "open" (shell_expand file))`), folded
// into direct collaborator methods instead of compiled lambdas per
// SPEC_FULL.md §1's Host interface shape.
type OS struct{}

func (h OS) Exec(ctx context.Context, prog string, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, prog, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("exec %s: %w", prog, err)
	}
	return strings.TrimSpace(out.String()), nil
}

func (OS) ReadFile(ctx context.Context, path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("fread %s: %w", path, err)
	}
	return string(b), nil
}

func (h OS) OpenURL(ctx context.Context, url string) (string, error) {
	return h.Exec(ctx, "open", []string{"-a", "Safari", url})
}

func (h OS) OpenApp(ctx context.Context, app string) (string, error) {
	return h.Exec(ctx, "open", []string{"-a", app})
}

func (h OS) OpenFile(ctx context.Context, path string) (string, error) {
	return h.Exec(ctx, "open", []string{path})
}
