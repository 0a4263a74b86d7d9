// Package env implements the lexically nested symbol environments that
// back every lambda closure and fiber call frame (spec.md §3).
package env

import (
	"sync"

	"github.com/kristofer/wisp/pkg/value"
)

// Env is an ordered symbol -> value.Val mapping with an optional parent
// pointer. Environments are shared by reference: a lambda captures the
// environment in which it was created, and calling the lambda extends
// that captured environment with a fresh child for parameters.
//
// Lexical scoping permits environments to form cycles (a lambda stored
// in its own defining scope); Go's garbage collector is cycle-aware, so
// unlike the original Rust implementation (Rc<RefCell<Env>>, which needs
// a weak parent edge to avoid leaking cycles) no weak-reference
// workaround is required here (see SPEC_FULL.md §9, Open Question 2).
type Env struct {
	mu     sync.RWMutex
	vars   map[string]value.Val
	parent *Env
}

// New creates a fresh top-level environment with no parent.
func New() *Env {
	return &Env{vars: make(map[string]value.Val)}
}

// NewChild returns a fresh environment whose parent is e, satisfying
// value.Env so it can be stored on a Lambda without pkg/value importing
// pkg/env.
func (e *Env) NewChild() value.Env {
	return &Env{vars: make(map[string]value.Val), parent: e}
}

// Get walks the parent chain and returns the bound value, or ok=false if
// sym is unbound anywhere in the chain.
func (e *Env) Get(sym string) (value.Val, bool) {
	for cur := e; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		v, ok := cur.vars[sym]
		cur.mu.RUnlock()
		if ok {
			return v, true
		}
	}
	return value.Val{}, false
}

// Define binds sym in the current scope, shadowing (but never mutating)
// any binding of the same name in a parent scope.
func (e *Env) Define(sym string, v value.Val) {
	e.mu.Lock()
	e.vars[sym] = v
	e.mu.Unlock()
}

// Set walks the parent chain looking for the defining scope and mutates
// the binding found there in place. It reports false if sym is unbound
// anywhere in the chain, leaving no binding created (spec.md: "(set sym
// v) ... fail with 'undefined symbol' if none").
func (e *Env) Set(sym string, v value.Val) bool {
	for cur := e; cur != nil; cur = cur.parent {
		cur.mu.Lock()
		if _, ok := cur.vars[sym]; ok {
			cur.vars[sym] = v
			cur.mu.Unlock()
			return true
		}
		cur.mu.Unlock()
	}
	return false
}

// Parent returns e's parent environment, or nil at the root.
func (e *Env) Parent() *Env {
	return e.parent
}
