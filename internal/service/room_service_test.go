package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/singstage/singstage/internal/domain"
	"github.com/singstage/singstage/internal/repository"
	"github.com/singstage/singstage/internal/store"
)

func newRoomService() (*RoomService, *store.InMemoryStore, *repository.InMemoryRoomRepository) {
	st := store.NewInMemoryStore()
	repo := repository.NewInMemoryRoomRepository()
	return NewRoomService(st, repo, 24*time.Hour, nil), st, repo
}

func TestCreateRoomWithAdmin(t *testing.T) {
	svc, st, _ := newRoomService()
	ctx := context.Background()

	room, admin, err := svc.CreateRoom(ctx, "alice", true, true)
	require.NoError(t, err)
	require.NotNil(t, room)
	assert.Len(t, room.ID, 8)
	assert.True(t, room.MicFeatureEnabled)
	assert.True(t, room.ScorerEnabled)

	require.NotNil(t, admin)
	assert.Equal(t, domain.AdminID, admin.ID)
	assert.True(t, admin.IsAdmin)
	assert.Equal(t, "alice", admin.Name)

	_, err = st.Get(ctx, store.UserPath(room.ID, domain.AdminID))
	assert.NoError(t, err, "admin user document must exist in the store")

	exists, err := svc.RoomExists(ctx, room.ID)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCreateRoomRequiresAdminName(t *testing.T) {
	svc, _, _ := newRoomService()

	_, _, err := svc.CreateRoom(context.Background(), "  ", false, false)
	assert.Error(t, err)
}

func TestGetRoomMissing(t *testing.T) {
	svc, _, _ := newRoomService()

	_, err := svc.GetRoom(context.Background(), "nope1234")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	exists, err := svc.RoomExists(context.Background(), "nope1234")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestJoinRoomResumesExistingUser(t *testing.T) {
	svc, _, _ := newRoomService()
	ctx := context.Background()

	room, _, err := svc.CreateRoom(ctx, "alice", false, false)
	require.NoError(t, err)

	bob, err := svc.JoinRoom(ctx, room.ID, "Bob")
	require.NoError(t, err)

	again, err := svc.JoinRoom(ctx, room.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, bob.ID, again.ID, "joining under the same name is a rejoin, case-insensitive")

	users, err := svc.ListParticipants(ctx, room.ID)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestJoinMissingRoom(t *testing.T) {
	svc, _, _ := newRoomService()

	_, err := svc.JoinRoom(context.Background(), "nope1234", "bob")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestLeaveRoom(t *testing.T) {
	svc, _, _ := newRoomService()
	ctx := context.Background()

	room, _, err := svc.CreateRoom(ctx, "alice", false, false)
	require.NoError(t, err)
	bob, err := svc.JoinRoom(ctx, room.ID, "bob")
	require.NoError(t, err)

	require.NoError(t, svc.LeaveRoom(ctx, room.ID, bob.ID))

	users, err := svc.ListParticipants(ctx, room.ID)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	assert.ErrorIs(t, svc.LeaveRoom(ctx, room.ID, bob.ID), ErrUserNotFound)
}

func TestQueueLifecycle(t *testing.T) {
	svc, _, _ := newRoomService()
	ctx := context.Background()

	room, _, err := svc.CreateRoom(ctx, "alice", false, false)
	require.NoError(t, err)

	first, err := svc.AddToQueue(ctx, room.ID, &domain.Song{ID: "vid1", Title: "first", AddedBy: "alice"})
	require.NoError(t, err)
	require.NotEmpty(t, first.Key)
	assert.False(t, first.AddedAt.IsZero())

	time.Sleep(2 * time.Millisecond)
	second, err := svc.AddToQueue(ctx, room.ID, &domain.Song{ID: "vid2", Title: "second", AddedBy: "bob"})
	require.NoError(t, err)

	queue, err := svc.ListQueue(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.Equal(t, "first", queue[0].Title, "queue is ordered by add time")
	assert.Equal(t, "second", queue[1].Title)

	require.NoError(t, svc.RemoveFromQueue(ctx, room.ID, first.Key))
	queue, err = svc.ListQueue(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, second.Key, queue[0].Key)
}

func TestSetCurrentSongAndPlayerState(t *testing.T) {
	svc, _, _ := newRoomService()
	ctx := context.Background()

	room, _, err := svc.CreateRoom(ctx, "alice", false, false)
	require.NoError(t, err)

	song := &domain.Song{ID: "vid1", Title: "now playing"}
	require.NoError(t, svc.SetCurrentSong(ctx, room.ID, song))
	require.NoError(t, svc.SetPlayerState(ctx, room.ID, true, false))

	got, err := svc.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CurrentSong)
	assert.Equal(t, "now playing", got.CurrentSong.Title)
	assert.True(t, got.IsPlaying)
	assert.False(t, got.IsMuted)

	require.NoError(t, svc.SetCurrentSong(ctx, room.ID, nil))
	got, err = svc.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CurrentSong)
}

func TestCleanupExpiredRooms(t *testing.T) {
	st := store.NewInMemoryStore()
	repo := repository.NewInMemoryRoomRepository()
	svc := NewRoomService(st, repo, time.Hour, nil)
	ctx := context.Background()

	fresh, _, err := svc.CreateRoom(ctx, "alice", false, false)
	require.NoError(t, err)

	stale := domain.NewRoom(false, false)
	stale.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, repo.Create(ctx, stale))
	require.NoError(t, st.Set(ctx, store.RoomPath(stale.ID), stale))

	removed, err := svc.CleanupExpiredRooms(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	exists, err := svc.RoomExists(ctx, stale.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = svc.RoomExists(ctx, fresh.ID)
	require.NoError(t, err)
	assert.True(t, exists)
}
