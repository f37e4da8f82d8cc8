package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_StartAndGet(t *testing.T) {
	reg := NewRegistry(time.Hour)
	s, err := reg.Start("user-1", "paper1", "Series_1", testQuestions("A"))
	require.NoError(t, err)
	require.NotEmpty(t, s.ID)

	got, err := reg.Get(s.ID, "user-1")
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = reg.Get("missing", "user-1")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = reg.Get(s.ID, "someone-else")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRegistry_FinishRemovesSession(t *testing.T) {
	reg := NewRegistry(time.Hour)
	s, err := reg.Start("user-1", "paper1", "Series_1", testQuestions("A"))
	require.NoError(t, err)
	require.NoError(t, s.SelectOption("A"))

	summary, err := reg.Finish(s.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Score)
	assert.Equal(t, 1, summary.Total)

	_, err = reg.Finish(s.ID, "user-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, reg.Len())
}

func TestRegistry_ExitDiscardsWithoutSummary(t *testing.T) {
	reg := NewRegistry(time.Hour)
	s, err := reg.Start("user-1", "paper1", "Series_1", testQuestions("A", "B"))
	require.NoError(t, err)

	require.NoError(t, reg.Exit(s.ID, "user-1"))
	assert.Zero(t, reg.Len())

	assert.ErrorIs(t, reg.Exit(s.ID, "user-1"), ErrNotFound)
}

func TestRegistry_SweepDropsIdleSessions(t *testing.T) {
	reg := NewRegistry(time.Minute)
	_, err := reg.Start("user-1", "paper1", "Series_1", testQuestions("A"))
	require.NoError(t, err)
	_, err = reg.Start("user-2", "paper1", "Series_2", testQuestions("A"))
	require.NoError(t, err)

	assert.Zero(t, reg.Sweep(time.Now()), "live sessions are not swept")
	assert.Equal(t, 2, reg.Sweep(time.Now().Add(2*time.Minute)))
	assert.Zero(t, reg.Len())
}
