// Package registry implements the runtime's name-to-process service
// registry (spec.md §4.7): a single-owner task holding a name→entry map,
// used by processes to publish themselves under a well-known keyword and
// by others to look them up. Entries are auto-evicted when their process
// exits.
//
// Grounded on original_source/libvrs/src/rt/registry.rs's
// Registry/RegistryTask/Entry: a handle type backed by a command channel
// to an owning task, register/lookup/all operations, and a per-entry
// watcher that removes the entry on process exit, guarded by an entry id
// so a registration that replaced the watched one isn't clobbered by a
// stale exit notification racing behind it.
package registry

import (
	"context"
	"fmt"

	"github.com/kristofer/wisp/pkg/value"
)

// ExitWaiter is satisfied by a process handle: Done reports process exit.
// Declared here, not imported from pkg/process, so this package has no
// dependency on the process driver.
type ExitWaiter interface {
	Done() <-chan struct{}
}

// Entry is one registration: a name bound to a pid, with an optional
// interface list describing the service's advertised operations.
type Entry struct {
	ID        uint64
	Name      string
	Pid       uint64
	Interface []value.Val
}

// Registry is a handle to the owning task; it is safe for concurrent use.
type Registry struct {
	registerCh   chan registerRequest
	deregisterCh chan deregisterRequest
	lookupCh     chan lookupRequest
	allCh        chan snapshotRequest
	done         chan struct{}
}

type registerRequest struct {
	name      string
	pid       uint64
	iface     []value.Val
	overwrite bool
	waiter    ExitWaiter
	resCh     chan registerResult
}

type registerResult struct {
	entry Entry
	err   error
}

type deregisterRequest struct {
	name string
	id   uint64
}

type lookupRequest struct {
	name  string
	resCh chan lookupResult
}

type lookupResult struct {
	entry Entry
	ok    bool
}

type snapshotRequest struct {
	resCh chan []Entry
}

// New returns an empty registry and starts its owning goroutine.
func New() *Registry {
	r := &Registry{
		registerCh:   make(chan registerRequest),
		deregisterCh: make(chan deregisterRequest),
		lookupCh:     make(chan lookupRequest),
		allCh:        make(chan snapshotRequest),
		done:         make(chan struct{}),
	}
	go r.run()
	return r
}

// Close stops the registry's owning goroutine.
func (r *Registry) Close() { close(r.done) }

func (r *Registry) run() {
	entries := make(map[string]Entry)
	var nextID uint64

	for {
		select {
		case req := <-r.registerCh:
			existing, exists := entries[req.name]
			if exists && !req.overwrite {
				req.resCh <- registerResult{err: fmt.Errorf("registry: %q already registered to pid %d", req.name, existing.Pid)}
				continue
			}
			nextID++
			entry := Entry{ID: nextID, Name: req.name, Pid: req.pid, Interface: req.iface}
			entries[req.name] = entry
			req.resCh <- registerResult{entry: entry}
			go r.watch(entry, req.waiter)

		case dereg := <-r.deregisterCh:
			if cur, ok := entries[dereg.name]; ok && cur.ID == dereg.id {
				delete(entries, dereg.name)
			}

		case req := <-r.lookupCh:
			entry, ok := entries[req.name]
			req.resCh <- lookupResult{entry: entry, ok: ok}

		case req := <-r.allCh:
			snapshot := make([]Entry, 0, len(entries))
			for _, e := range entries {
				snapshot = append(snapshot, e)
			}
			req.resCh <- snapshot

		case <-r.done:
			return
		}
	}
}

// watch waits for the registered process to exit, then asks the owning
// task to remove its entry. The entry id guards against removing a
// different process's registration that reused the same name after this
// one exited and re-registered before the watcher woke up.
func (r *Registry) watch(entry Entry, waiter ExitWaiter) {
	select {
	case <-waiter.Done():
	case <-r.done:
		return
	}
	select {
	case r.deregisterCh <- deregisterRequest{name: entry.Name, id: entry.ID}:
	case <-r.done:
	}
}

// Register binds name to pid. If name is already registered and
// overwrite is false, it returns an error naming the conflicting pid.
// waiter's exit unregisters the entry automatically.
func (r *Registry) Register(ctx context.Context, name string, pid uint64, iface []value.Val, overwrite bool, waiter ExitWaiter) (Entry, error) {
	resCh := make(chan registerResult, 1)
	req := registerRequest{name: name, pid: pid, iface: iface, overwrite: overwrite, waiter: waiter, resCh: resCh}
	select {
	case r.registerCh <- req:
	case <-ctx.Done():
		return Entry{}, ctx.Err()
	case <-r.done:
		return Entry{}, fmt.Errorf("registry: closed")
	}
	select {
	case res := <-resCh:
		return res.entry, res.err
	case <-ctx.Done():
		return Entry{}, ctx.Err()
	case <-r.done:
		return Entry{}, fmt.Errorf("registry: closed")
	}
}

// Lookup returns the entry registered under name, if any.
func (r *Registry) Lookup(ctx context.Context, name string) (Entry, bool) {
	resCh := make(chan lookupResult, 1)
	select {
	case r.lookupCh <- lookupRequest{name: name, resCh: resCh}:
	case <-ctx.Done():
		return Entry{}, false
	case <-r.done:
		return Entry{}, false
	}
	select {
	case res := <-resCh:
		return res.entry, res.ok
	case <-ctx.Done():
		return Entry{}, false
	case <-r.done:
		return Entry{}, false
	}
}

// All returns every currently registered entry, in no particular order.
func (r *Registry) All(ctx context.Context) []Entry {
	resCh := make(chan []Entry, 1)
	select {
	case r.allCh <- snapshotRequest{resCh: resCh}:
	case <-ctx.Done():
		return nil
	case <-r.done:
		return nil
	}
	select {
	case entries := <-resCh:
		return entries
	case <-ctx.Done():
		return nil
	case <-r.done:
		return nil
	}
}
