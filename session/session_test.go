package session

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perbu/calcat/colorize"
	"github.com/perbu/calcat/dateparse"
)

var t0 = time.Date(2025, 1, 31, 9, 0, 0, 0, time.UTC)

func TestPutAndGet(t *testing.T) {
	store := NewStore(time.Hour)
	rows := []colorize.ResultRow{{EventID: "a", PriorColorID: "3"}}

	sess := store.Put(dateparse.Default(t0), rows, t0)
	assert.NotEqual(t, uuid.Nil, sess.ID)
	assert.Equal(t, t0.Add(time.Hour), sess.ExpiresAt)

	rows[0].EventID = "mutated"
	got, err := store.Get(sess.ID, t0.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "a", got.Rows[0].EventID, "store keeps its own copy")
}

func TestExpiry(t *testing.T) {
	store := NewStore(time.Minute)
	sess := store.Put(dateparse.Default(t0), nil, t0)

	_, err := store.Get(sess.ID, t0.Add(time.Minute))
	assert.ErrorIs(t, err, ErrExpired)

	_, err = store.Get(sess.ID, t0)
	assert.ErrorIs(t, err, ErrNotFound, "expired session is discarded")
}

func TestOnlyLatestIsKept(t *testing.T) {
	store := NewStore(time.Hour)
	first := store.Put(dateparse.Default(t0), nil, t0)
	second := store.Put(dateparse.Default(t0), nil, t0.Add(time.Second))

	_, err := store.Get(first.ID, t0)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Get(second.ID, t0)
	assert.NoError(t, err)
}

func TestUpdateAndDrop(t *testing.T) {
	store := NewStore(time.Hour)
	sess := store.Put(dateparse.Default(t0), []colorize.ResultRow{{EventID: "a"}}, t0)

	require.NoError(t, store.Update(sess.ID, []colorize.ResultRow{{EventID: "a", Outcome: colorize.OutcomeReverted}}, true))
	got, err := store.Get(sess.ID, t0)
	require.NoError(t, err)
	assert.True(t, got.Reverted)
	assert.Equal(t, colorize.OutcomeReverted, got.Rows[0].Outcome)

	assert.ErrorIs(t, store.Update(uuid.New(), nil, false), ErrNotFound)

	store.Drop(uuid.New())
	_, err = store.Get(sess.ID, t0)
	require.NoError(t, err, "dropping another id keeps the session")

	store.Drop(sess.ID)
	_, err = store.Get(sess.ID, t0)
	assert.ErrorIs(t, err, ErrNotFound)
}
