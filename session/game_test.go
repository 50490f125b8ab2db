package session

import (
	"testing"

	"github.com/hupe1980/chatmesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGameStore_CreateStartsWaiting(t *testing.T) {
	store := NewGameStore()

	game, err := store.Create("trivia", []string{"Alice", "bob"}, 3)
	require.NoError(t, err)

	assert.Equal(t, GameWaiting, game.Status)
	assert.Equal(t, 1, game.Round)
	assert.Equal(t, 3, game.TotalRounds)
	for _, p := range game.Players {
		assert.Zero(t, p.Score)
		assert.True(t, p.Active)
	}
	assert.Equal(t, map[string]int{"alice": 0, "bob": 0}, game.Scores())
}

func TestGameStore_JoinOnlyWhileWaiting(t *testing.T) {
	store := NewGameStore()
	game, err := store.Create("trivia", []string{"alice"}, 2)
	require.NoError(t, err)

	joined, err := store.Join(game.ID, "bob")
	require.NoError(t, err)
	assert.Len(t, joined.Players, 2)

	// Duplicate joins are rejected.
	_, err = store.Join(game.ID, "Bob")
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)

	_, err = store.Start(game.ID, "alice")
	require.NoError(t, err)

	// The participant set is fixed once active.
	_, err = store.Join(game.ID, "carol")
	require.ErrorAs(t, err, &ve)
}

func TestGameStore_MoveRequiresActiveGame(t *testing.T) {
	store := NewGameStore()
	game, err := store.Create("trivia", []string{"alice", "bob"}, 1)
	require.NoError(t, err)

	// Moves before start are rejected.
	_, err = store.RecordMove(game.ID, "alice", 5)
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)

	_, err = store.Start(game.ID, "alice")
	require.NoError(t, err)

	updated, err := store.RecordMove(game.ID, "alice", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Scores()["alice"])

	// Non-participants cannot score.
	_, err = store.RecordMove(game.ID, "mallory", 5)
	require.ErrorAs(t, err, &ve)
}

func TestGameStore_AdvanceRoundCompletesAtCap(t *testing.T) {
	store := NewGameStore()
	game, err := store.Create("trivia", []string{"alice"}, 2)
	require.NoError(t, err)
	_, err = store.Start(game.ID, "alice")
	require.NoError(t, err)

	next, err := store.AdvanceRound(game.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, next.Round)
	assert.Equal(t, GameActive, next.Status)

	done, err := store.AdvanceRound(game.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, GameCompleted, done.Status)
	// The counter never exceeds the configured rounds.
	assert.Equal(t, 2, done.Round)

	// Moves after completion fail and scores stay put.
	_, err = store.RecordMove(game.ID, "alice", 10)
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	current, err := store.Get(game.ID)
	require.NoError(t, err)
	assert.Zero(t, current.Scores()["alice"])
}

func TestGameStore_PlaceBet(t *testing.T) {
	store := NewGameStore()
	game, err := store.Create("poker", []string{"alice", "bob"}, 1)
	require.NoError(t, err)

	updated, err := store.PlaceBet(game.ID, "alice", 25, "bob wins")
	require.NoError(t, err)
	require.Len(t, updated.Bets, 1)
	assert.Equal(t, "alice", updated.Bets[0].Participant)
	assert.Equal(t, 25.0, updated.Bets[0].Amount)

	_, err = store.PlaceBet(game.ID, "alice", -5, "nope")
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)

	_, err = store.Cancel(game.ID, "bob")
	require.NoError(t, err)
	_, err = store.PlaceBet(game.ID, "alice", 10, "late")
	require.ErrorAs(t, err, &ve)
}

func TestGameStore_PurgeTerminal(t *testing.T) {
	store := NewGameStore()
	cancelled, err := store.Create("trivia", []string{"a"}, 1)
	require.NoError(t, err)
	_, err = store.Cancel(cancelled.ID, "a")
	require.NoError(t, err)
	waiting, err := store.Create("trivia", []string{"a"}, 1)
	require.NoError(t, err)

	assert.Equal(t, 1, store.PurgeTerminal())
	_, err = store.Get(cancelled.ID)
	assert.Error(t, err)
	_, err = store.Get(waiting.ID)
	assert.NoError(t, err)
}
