package env

import (
	"testing"

	"github.com/kristofer/wisp/pkg/value"
	"github.com/stretchr/testify/require"
)

// TestDefineInChildNeverMutatesParent is spec.md §8 property 3, first
// half: define in a child scope never mutates the parent.
func TestDefineInChildNeverMutatesParent(t *testing.T) {
	parent := New()
	parent.Define("x", value.Int(1))

	child := parent.NewChild()
	child.Define("x", value.Int(2))

	childVal, ok := child.Get("x")
	require.True(t, ok)
	require.Equal(t, value.Int(2), childVal)

	parentVal, ok := parent.Get("x")
	require.True(t, ok)
	require.Equal(t, value.Int(1), parentVal, "child define must not mutate the parent's binding")
}

// TestSetInChildFindingNameInParentMutatesParent is spec.md §8 property
// 3, second half: set in a child that finds the name in the parent
// mutates the parent's binding.
func TestSetInChildFindingNameInParentMutatesParent(t *testing.T) {
	parent := New()
	parent.Define("x", value.Int(1))

	child := parent.NewChild()
	ok := child.Set("x", value.Int(99))
	require.True(t, ok)

	parentVal, ok := parent.Get("x")
	require.True(t, ok)
	require.Equal(t, value.Int(99), parentVal)

	childVal, ok := child.Get("x")
	require.True(t, ok)
	require.Equal(t, value.Int(99), childVal, "child should observe the mutated parent binding through the chain")
}

func TestSetUnboundAnywhereReportsFalseAndCreatesNoBinding(t *testing.T) {
	parent := New()
	child := parent.NewChild()

	ok := child.Set("never-defined", value.Int(1))
	require.False(t, ok)

	_, ok = child.Get("never-defined")
	require.False(t, ok)
	_, ok = parent.Get("never-defined")
	require.False(t, ok)
}

func TestChildDefineShadowsParentLookupFromChild(t *testing.T) {
	parent := New()
	parent.Define("x", value.Int(1))

	child := parent.NewChild()
	require.True(t, child.Set("x", value.Int(1))) // sanity: parent binding reachable through Set

	child.Define("x", value.Int(2))
	v, ok := child.Get("x")
	require.True(t, ok)
	require.Equal(t, value.Int(2), v)
}

func TestGetWalksParentChain(t *testing.T) {
	grandparent := New()
	grandparent.Define("g", value.Keyword("grandparent"))

	parent := grandparent.NewChild()
	child := parent.NewChild()

	v, ok := child.Get("g")
	require.True(t, ok)
	require.Equal(t, value.Keyword("grandparent"), v)
}
