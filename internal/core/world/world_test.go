package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/posesync/internal/core/scene"
)

func TestEntityLifecycle(t *testing.T) {
	w := New()
	hips := scene.NewNode("Hips")

	id := w.CreateEntity(hips)
	assert.NotEqual(t, NoEntity, id)
	assert.Equal(t, 1, w.EntityCount())

	n, ok := w.Node(id)
	require.True(t, ok)
	assert.Same(t, hips, n)

	require.NoError(t, w.DestroyEntity(id))
	_, ok = w.Node(id)
	assert.False(t, ok)
	assert.ErrorIs(t, w.DestroyEntity(id), ErrEntityNotFound)
}

func TestIDsAreNotReused(t *testing.T) {
	w := New()
	a := w.CreateEntity(scene.NewNode("a"))
	require.NoError(t, w.DestroyEntity(a))
	b := w.CreateEntity(scene.NewNode("b"))
	assert.NotEqual(t, a, b)
	assert.Equal(t, "scene", w.Scene().Name)
}
