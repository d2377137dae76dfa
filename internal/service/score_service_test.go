package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/singstage/singstage/internal/domain"
	"github.com/singstage/singstage/internal/repository"
	"github.com/singstage/singstage/internal/store"
)

func newScoreService() (*ScoreService, *store.InMemoryStore) {
	st := store.NewInMemoryStore()
	return NewScoreService(repository.NewInMemoryScoreRepository(), st, nil), st
}

func TestGeneratePerformanceScoreRange(t *testing.T) {
	svc, _ := newScoreService()

	for i := 0; i < 200; i++ {
		score := svc.GeneratePerformanceScore()
		require.GreaterOrEqual(t, score, 80)
		require.LessOrEqual(t, score, 100)
	}
}

func TestSaveScorePersistsAndPublishes(t *testing.T) {
	svc, st := newScoreService()
	ctx := context.Background()

	score := &domain.Score{
		RoomID:    "room1234",
		UserID:    "u1",
		UserName:  "alice",
		SongTitle: "some song",
		Score:     93,
	}
	require.NoError(t, svc.SaveScore(ctx, score))
	assert.False(t, score.Timestamp.IsZero())

	top, err := svc.RoomHighScores(ctx, "room1234", 10)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, 93, top[0].Score)

	docs, err := st.List(ctx, store.ScoresPath("room1234"))
	require.NoError(t, err)
	assert.Len(t, docs, 1, "score must also land in the shared store")
}

func TestSaveScoreValidation(t *testing.T) {
	svc, _ := newScoreService()

	assert.Error(t, svc.SaveScore(context.Background(), nil))
	assert.Error(t, svc.SaveScore(context.Background(), &domain.Score{UserID: "u1"}))
}

func TestHighScoresOrderedAndLimited(t *testing.T) {
	svc, _ := newScoreService()
	ctx := context.Background()

	for _, v := range []int{85, 99, 91} {
		require.NoError(t, svc.SaveScore(ctx, &domain.Score{
			RoomID:    "room1234",
			UserID:    "u1",
			UserName:  "alice",
			SongTitle: "song",
			Score:     v,
		}))
	}

	top, err := svc.RoomHighScores(ctx, "room1234", 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, 99, top[0].Score)
	assert.Equal(t, 91, top[1].Score)

	mine, err := svc.UserHighScores(ctx, "room1234", "u1", 10)
	require.NoError(t, err)
	assert.Len(t, mine, 3)
}
