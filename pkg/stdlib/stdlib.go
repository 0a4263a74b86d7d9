package stdlib

import (
	"github.com/kristofer/wisp/pkg/env"
	"github.com/kristofer/wisp/pkg/hostops"
	"github.com/kristofer/wisp/pkg/value"
)

// Standard constructs a fresh standard environment (SPEC_FULL.md §9): a
// runtime instance calls this once and every process it spawns gets a
// value.Env whose parent chain bottoms out here, one shared builtins
// environment feeding every spawned fiber. host is the collaborator
// backing exec/fread; pass hostops.OS{} in production and a fake in
// tests.
func Standard(host hostops.Host) value.Env {
	e := env.New()
	registerArithmetic(e)
	registerList(e)
	registerStrings(e)
	registerDiagnostics(e)
	registerProcess(e)
	registerMessaging(e)
	registerServices(e)
	registerSubscriptions(e)
	registerHost(e, host)
	return e
}
