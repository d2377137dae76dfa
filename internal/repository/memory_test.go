package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/singstage/singstage/internal/domain"
)

func TestInMemoryRoomRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRoomRepository()

	room := domain.NewRoom(true, false)
	require.NoError(t, repo.Create(ctx, room))
	assert.ErrorIs(t, repo.Create(ctx, room), ErrRoomExists)

	got, err := repo.GetByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, room.ID, got.ID)
	assert.True(t, got.MicFeatureEnabled)

	rooms, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, rooms, 1)

	require.NoError(t, repo.Delete(ctx, room.ID))
	_, err = repo.GetByID(ctx, room.ID)
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, room.ID), ErrRoomNotFound)
}

func TestInMemoryScoreRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryScoreRepository()

	for _, s := range []struct {
		user  string
		value int
	}{
		{"u1", 85},
		{"u2", 97},
		{"u1", 91},
	} {
		require.NoError(t, repo.Save(ctx, &domain.Score{
			RoomID:   "room1234",
			UserID:   s.user,
			UserName: s.user,
			Score:    s.value,
		}))
	}

	top, err := repo.ListByRoom(ctx, "room1234", 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, 97, top[0].Score)
	assert.Equal(t, 91, top[1].Score)

	mine, err := repo.ListByUser(ctx, "room1234", "u1", 10)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, 91, mine[0].Score)

	other, err := repo.ListByRoom(ctx, "other", 10)
	require.NoError(t, err)
	assert.Empty(t, other)
}
