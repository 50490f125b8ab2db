package session

import (
	"testing"

	"github.com/hupe1980/chatmesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStore_CreateEqual(t *testing.T) {
	store := NewSplitStore()

	split, err := store.CreateEqual(120, "USD", []string{"Alice", "bob", "carol"})
	require.NoError(t, err)

	assert.Equal(t, SplitEqual, split.Method)
	assert.Equal(t, SplitPending, split.Status)
	require.Len(t, split.Shares, 3)
	for _, s := range split.Shares {
		assert.Equal(t, 40.0, s.Owed)
		assert.False(t, s.Paid)
	}
	// Names are normalized to lowercase.
	assert.Equal(t, []string{"alice", "bob", "carol"}, split.participants())
}

func TestSplitStore_EqualSharesSumToTotal(t *testing.T) {
	store := NewSplitStore()

	tests := []struct {
		name         string
		total        float64
		participants []string
	}{
		{"uneven cents", 100, []string{"a", "b", "c"}},
		{"two way", 0.03, []string{"a", "b"}},
		{"seven way", 50, []string{"a", "b", "c", "d", "e", "f", "g"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			split, err := store.CreateEqual(tt.total, "USD", tt.participants)
			require.NoError(t, err)

			var sum float64
			for _, s := range split.Shares {
				sum += s.Owed
			}
			assert.InDelta(t, tt.total, sum, 1e-6)
		})
	}
}

func TestSplitStore_CreateEqualRejectsBadInput(t *testing.T) {
	store := NewSplitStore()

	_, err := store.CreateEqual(0, "USD", []string{"a"})
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)

	_, err = store.CreateEqual(10, "USD", nil)
	require.ErrorAs(t, err, &ve)
}

func TestSplitStore_CreateCustom(t *testing.T) {
	store := NewSplitStore()

	split, err := store.CreateCustom(100, "USD", map[string]float64{
		"Alice": 60,
		"bob":   40,
	})
	require.NoError(t, err)
	assert.Equal(t, SplitCustom, split.Method)

	var sum float64
	for _, s := range split.Shares {
		sum += s.Owed
	}
	assert.InDelta(t, 100, sum, 1e-6)
}

func TestSplitStore_CreateCustomRejectsMismatchedSum(t *testing.T) {
	store := NewSplitStore()

	_, err := store.CreateCustom(100, "USD", map[string]float64{"a": 60, "b": 30})
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "amounts", ve.Field)
}

func TestSplitStore_CreatePercentage(t *testing.T) {
	store := NewSplitStore()

	split, err := store.CreatePercentage(99.99, "USD", map[string]float64{
		"a": 33.33,
		"b": 33.33,
		"c": 33.34,
	})
	require.NoError(t, err)

	var sum float64
	for _, s := range split.Shares {
		sum += s.Owed
		assert.Greater(t, s.Owed, 0.0)
	}
	assert.InDelta(t, 99.99, sum, 1e-6)

	_, err = store.CreatePercentage(100, "USD", map[string]float64{"a": 50, "b": 40})
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestSplitStore_MarkPaidLifecycle(t *testing.T) {
	store := NewSplitStore()
	split, err := store.CreateEqual(90, "USD", []string{"alice", "bob", "carol"})
	require.NoError(t, err)

	// First payment: pending -> partial.
	updated, err := store.MarkPaid(split.ID, "alice", "alice")
	require.NoError(t, err)
	assert.Equal(t, SplitPartial, updated.Status)

	// Double pay is rejected and the state unchanged.
	_, err = store.MarkPaid(split.ID, "alice", "alice")
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	current, err := store.Get(split.ID)
	require.NoError(t, err)
	assert.Equal(t, SplitPartial, current.Status)

	// Non-participant actors are rejected.
	_, err = store.MarkPaid(split.ID, "mallory", "bob")
	require.ErrorAs(t, err, &ve)

	// Settling requires every flag.
	_, err = store.MarkPaid(split.ID, "bob", "bob")
	require.NoError(t, err)
	final, err := store.MarkPaid(split.ID, "carol", "carol")
	require.NoError(t, err)
	assert.Equal(t, SplitSettled, final.Status)
}

func TestSplitStore_GetUnknown(t *testing.T) {
	store := NewSplitStore()

	_, err := store.Get("nope")
	var nf *core.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "split", nf.Kind)
}

func TestSplitStore_PurgeTerminal(t *testing.T) {
	store := NewSplitStore()
	settled, err := store.CreateEqual(10, "USD", []string{"a"})
	require.NoError(t, err)
	_, err = store.MarkPaid(settled.ID, "a", "a")
	require.NoError(t, err)
	open, err := store.CreateEqual(10, "USD", []string{"a", "b"})
	require.NoError(t, err)

	assert.Equal(t, 1, store.PurgeTerminal())

	_, err = store.Get(settled.ID)
	assert.Error(t, err)
	_, err = store.Get(open.ID)
	assert.NoError(t, err)
}

func TestRoundCurrency(t *testing.T) {
	assert.Equal(t, 33.33, roundCurrency(33.333333))
	assert.Equal(t, 33.34, roundCurrency(33.336))
	assert.Equal(t, 40.0, roundCurrency(40.0))
}
