package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chora-ai/chai/internal/model"
)

func TestAppendThenGetObservesTail(t *testing.T) {
	s := New()
	id := s.Create()

	require.NoError(t, s.Append(id, model.Message{Role: model.RoleUser, Content: "hello"}))

	msgs, ok := s.Get(id)
	require.True(t, ok)
	require.Len(t, msgs, 1)
	require.Equal(t, "hello", msgs[len(msgs)-1].Content)
}

func TestAppendUnknownSessionFails(t *testing.T) {
	s := New()
	err := s.Append("does-not-exist", model.Message{Role: model.RoleUser, Content: "x"})
	require.ErrorIs(t, err, ErrNoSuchSession)
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	s := New()
	id := s.GetOrCreate("fixed-id")
	require.Equal(t, "fixed-id", id)
	require.True(t, s.Exists("fixed-id"))

	again := s.GetOrCreate("fixed-id")
	require.Equal(t, "fixed-id", again)
}

func TestGetSnapshotIsDecoupledFromWriters(t *testing.T) {
	s := New()
	id := s.Create()
	require.NoError(t, s.Append(id, model.Message{Role: model.RoleUser, Content: "first"}))

	snap, ok := s.Get(id)
	require.True(t, ok)

	require.NoError(t, s.Append(id, model.Message{Role: model.RoleAssistant, Content: "second"}))
	require.Len(t, snap, 1, "snapshot must not observe later appends")
}

func TestRemoveDeletesSession(t *testing.T) {
	s := New()
	id := s.Create()
	s.Remove(id)
	require.False(t, s.Exists(id))

	_, ok := s.Get(id)
	require.False(t, ok)
}
