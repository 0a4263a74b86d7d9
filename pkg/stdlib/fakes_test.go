package stdlib

import (
	"context"
	"sync"

	"github.com/kristofer/wisp/pkg/env"
	"github.com/kristofer/wisp/pkg/mailbox"
	"github.com/kristofer/wisp/pkg/process"
	"github.com/kristofer/wisp/pkg/pubsub"
	"github.com/kristofer/wisp/pkg/registry"
	"github.com/kristofer/wisp/pkg/value"
)

// fakeKernel is a minimal process.KernelHandle double: enough for the
// stdlib bindings' unit tests to exercise ps/kill/spawn/send without
// standing up a real pkg/kernel scheduler. Spawn drives an actual
// process.Handle over a trivial program, rather than faking one, since
// Handle's fields are unexported outside pkg/process.
type fakeKernel struct {
	mu      sync.Mutex
	handles map[uint64]*process.Handle
	sent    []sentMsg
	killed  []uint64
	nextPid uint64
}

type sentMsg struct {
	to  uint64
	msg value.Val
}

func newFakeKernel() *fakeKernel {
	return &fakeKernel{handles: make(map[uint64]*process.Handle), nextPid: 100}
}

func (k *fakeKernel) Spawn(ctx context.Context, prog value.Val) (*process.Handle, error) {
	k.mu.Lock()
	k.nextPid++
	pid := k.nextPid
	k.mu.Unlock()

	h, err := process.Spawn(ctx, pid, prog, env.New(), &process.Locals{
		Kernel:   k,
		Mailbox:  mailbox.New(),
		Registry: registry.New(),
		PubSub:   pubsub.New(),
	})
	if err != nil {
		return nil, err
	}
	k.mu.Lock()
	k.handles[pid] = h
	k.mu.Unlock()
	return h, nil
}

func (k *fakeKernel) Send(ctx context.Context, to uint64, msg value.Val) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.sent = append(k.sent, sentMsg{to, msg})
	return nil
}

func (k *fakeKernel) Kill(ctx context.Context, pid uint64) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.killed = append(k.killed, pid)
	if h, ok := k.handles[pid]; ok {
		h.Kill()
	}
	return true
}

func (k *fakeKernel) Lookup(ctx context.Context, pid uint64) (*process.Handle, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	h, ok := k.handles[pid]
	return h, ok
}

func (k *fakeKernel) register(pid uint64, h *process.Handle) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.handles[pid] = h
}

func (k *fakeKernel) ProcessInfos(ctx context.Context) []process.Info {
	return []process.Info{{Pid: 1}, {Pid: 2}}
}

// newTestLocals builds process.Locals backed by real (but freshly
// constructed, single-test-scoped) mailbox/registry/pubsub collaborators
// and a fakeKernel, for exercising stdlib bindings without a running
// kernel scheduler.
func newTestLocals(pid uint64, k *fakeKernel) *process.Locals {
	l := &process.Locals{
		Pid:      pid,
		Kernel:   k,
		Mailbox:  mailbox.New(),
		Registry: registry.New(),
		PubSub:   pubsub.New(),
	}
	return l
}
