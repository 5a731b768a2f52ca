package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_GetOrCreate(t *testing.T) {
	store := NewMemoryStore(time.Minute, nil)
	ctx := context.Background()

	state, err := store.GetOrCreate(ctx, "s1", "alice")
	require.NoError(t, err)
	assert.Equal(t, "s1", state.ID)
	assert.Equal(t, "alice", state.UserID)
	assert.Empty(t, state.Turns)

	// Idempotent: a second load returns the same session, including
	// state written in between.
	state.AppendTurn(RoleUser, "what are the prerequisites for CS004?")
	require.NoError(t, store.Put(ctx, state))

	again, err := store.GetOrCreate(ctx, "s1", "alice")
	require.NoError(t, err)
	assert.Equal(t, state.CreatedAt.Unix(), again.CreatedAt.Unix())
	require.Len(t, again.Turns, 1)
	assert.Equal(t, RoleUser, again.Turns[0].Role)
}

func TestMemoryStore_GetOrCreate_Validation(t *testing.T) {
	store := NewMemoryStore(time.Minute, nil)
	ctx := context.Background()

	_, err := store.GetOrCreate(ctx, "", "alice")
	assert.ErrorIs(t, err, ErrInvalidSession)

	_, err = store.GetOrCreate(ctx, "s1", "")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestMemoryStore_Get_NotFound(t *testing.T) {
	store := NewMemoryStore(time.Minute, nil)

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemoryStore_PutReturnsIndependentCopies(t *testing.T) {
	store := NewMemoryStore(time.Minute, nil)
	ctx := context.Background()

	state, err := store.GetOrCreate(ctx, "s1", "alice")
	require.NoError(t, err)
	state.AppendTurn(RoleUser, "hello")
	require.NoError(t, store.Put(ctx, state))

	a, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	a.AppendTurn(RoleAssistant, "hi there")

	// Mutating one copy must not leak into the store.
	b, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, b.Turns, 1)
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore(time.Minute, nil)
	ctx := context.Background()

	_, err := store.GetOrCreate(ctx, "s1", "alice")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "s1"))
	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// Deleting again is a no-op
	require.NoError(t, store.Delete(ctx, "s1"))
}

func TestState_AppendTurn(t *testing.T) {
	state := newState("s1", "alice")
	state.AppendTurn(RoleUser, "hi")
	state.AppendTurn(RoleAssistant, "hello")

	require.Len(t, state.Turns, 2)
	assert.Equal(t, 2, state.TurnsSinceExtraction)
	assert.False(t, state.UpdatedAt.Before(state.CreatedAt))
}

func TestState_Validate(t *testing.T) {
	assert.Error(t, (&State{}).Validate())
	assert.Error(t, (&State{ID: "s1"}).Validate())
	assert.NoError(t, (&State{ID: "s1", UserID: "alice"}).Validate())
}
