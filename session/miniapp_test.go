package session

import (
	"testing"

	"github.com/hupe1980/chatmesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiniAppStore_LaunchAndInteract(t *testing.T) {
	store := NewMiniAppStore()

	sess, err := store.Launch("poll", []string{"bob"}, "Alice")
	require.NoError(t, err)
	assert.True(t, sess.Active)
	assert.Equal(t, []string{"alice", "bob"}, sess.Participants)
	assert.Empty(t, sess.State)

	// New keys overwrite, existing keys persist.
	_, err = store.Interact(sess.ID, "alice", map[string]any{"question": "lunch?", "votes": 0})
	require.NoError(t, err)
	updated, err := store.Interact(sess.ID, "bob", map[string]any{"votes": 1})
	require.NoError(t, err)
	assert.Equal(t, "lunch?", updated.State["question"])
	assert.Equal(t, 1, updated.State["votes"])
}

func TestMiniAppStore_InteractAuthorization(t *testing.T) {
	store := NewMiniAppStore()
	sess, err := store.Launch("poll", nil, "alice")
	require.NoError(t, err)

	_, err = store.Interact(sess.ID, "mallory", map[string]any{"votes": 99})
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "actor", ve.Field)

	current, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.Empty(t, current.State)
}

func TestMiniAppStore_ClosedSessionRejectsInteraction(t *testing.T) {
	store := NewMiniAppStore()
	sess, err := store.Launch("poll", []string{"bob"}, "alice")
	require.NoError(t, err)
	_, err = store.Interact(sess.ID, "alice", map[string]any{"votes": 2})
	require.NoError(t, err)

	closed, err := store.Close(sess.ID, "alice")
	require.NoError(t, err)
	assert.False(t, closed.Active)

	// Interaction after close fails and the state blob is unchanged.
	_, err = store.Interact(sess.ID, "bob", map[string]any{"votes": 3})
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Message, "closed")

	current, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, current.State["votes"])

	// Double close is rejected the same way.
	_, err = store.Close(sess.ID, "alice")
	require.ErrorAs(t, err, &ve)
}

func TestMiniAppStore_PurgeTerminal(t *testing.T) {
	store := NewMiniAppStore()
	closed, err := store.Launch("poll", nil, "alice")
	require.NoError(t, err)
	_, err = store.Close(closed.ID, "alice")
	require.NoError(t, err)
	open, err := store.Launch("countdown", nil, "alice")
	require.NoError(t, err)

	assert.Equal(t, 1, store.PurgeTerminal())
	_, err = store.Get(closed.ID)
	assert.Error(t, err)
	_, err = store.Get(open.ID)
	assert.NoError(t, err)
}
