package pty

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrveiss/AutoBot-AI-sub017/internal/infrastructure/logging"
)

func newTestRegistry() *Registry {
	return NewRegistry(testOptions(), logging.NewNop(), nil)
}

func TestRegistryLifecycle(t *testing.T) {
	r := newTestRegistry()
	defer r.CloseAll()

	proc, err := r.Create("sess-1", t.TempDir())
	require.NoError(t, err)
	require.True(t, proc.IsAlive())
	assert.Equal(t, 1, r.Count())

	got, ok := r.Get("sess-1")
	require.True(t, ok)
	assert.Same(t, proc, got)

	require.NoError(t, r.Close("sess-1"))
	assert.Equal(t, 0, r.Count())
	assert.False(t, proc.IsAlive())

	_, ok = r.Get("sess-1")
	assert.False(t, ok)
}

func TestRegistryCloseUnknown(t *testing.T) {
	r := newTestRegistry()
	assert.ErrorIs(t, r.Close("nope"), ErrNotFound)
}

// Creating over an existing id must clean up the old process first so two
// live PTYs never share an id.
func TestRegistryCreateReplaces(t *testing.T) {
	r := newTestRegistry()
	defer r.CloseAll()

	old, err := r.Create("sess-dup", t.TempDir())
	require.NoError(t, err)

	replacement, err := r.Create("sess-dup", t.TempDir())
	require.NoError(t, err)
	assert.NotSame(t, old, replacement)

	assert.False(t, old.IsAlive())
	assert.True(t, replacement.IsAlive())
	assert.Equal(t, 1, r.Count())
}

func TestRegistryCloseAll(t *testing.T) {
	r := newTestRegistry()

	a, err := r.Create("sess-a", t.TempDir())
	require.NoError(t, err)
	b, err := r.Create("sess-b", t.TempDir())
	require.NoError(t, err)

	r.CloseAll()
	assert.Equal(t, 0, r.Count())
	assert.False(t, a.IsAlive())
	assert.False(t, b.IsAlive())
}
