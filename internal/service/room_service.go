package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/singstage/singstage/internal/domain"
	"github.com/singstage/singstage/internal/repository"
	"github.com/singstage/singstage/internal/store"
	"github.com/singstage/singstage/lib/logger/sl"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrUserNotFound = errors.New("user not found")
)

// RoomService drives the lifecycle of a party room. The live state (users,
// queue, player) lives in the shared store so every participant sees it;
// the repository only keeps the metadata that outlives a session.
type RoomService struct {
	store  store.Store
	rooms  repository.RoomRepository
	maxAge time.Duration
	log    *slog.Logger
}

func NewRoomService(st store.Store, rooms repository.RoomRepository, maxAge time.Duration, log *slog.Logger) *RoomService {
	if log == nil {
		log = slog.Default()
	}
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &RoomService{
		store:  st,
		rooms:  rooms,
		maxAge: maxAge,
		log:    log,
	}
}

func (s *RoomService) CreateRoom(ctx context.Context, adminName string, micFeatureEnabled, scorerEnabled bool) (*domain.Room, *domain.User, error) {
	const op = "service.room.create"
	log := s.log.With(slog.String("op", op))

	if strings.TrimSpace(adminName) == "" {
		return nil, nil, errors.New("admin name is required")
	}

	if removed, err := s.CleanupExpiredRooms(ctx); err != nil {
		log.Error("cleanup before create failed", sl.Err(err))
	} else if removed > 0 {
		log.Info("expired rooms removed", "count", removed)
	}

	for {
		room := domain.NewRoom(micFeatureEnabled, scorerEnabled)
		if err := s.rooms.Create(ctx, room); err != nil {
			if errors.Is(err, repository.ErrRoomExists) {
				continue
			}
			return nil, nil, err
		}

		admin := domain.NewAdminUser(adminName)
		if err := s.store.Set(ctx, store.RoomPath(room.ID), room); err != nil {
			return nil, nil, err
		}
		if err := s.store.Set(ctx, store.UserPath(room.ID, admin.ID), admin); err != nil {
			return nil, nil, err
		}

		log.Info("room created", "room_id", room.ID, "admin", admin.Name)
		return room, admin, nil
	}
}

func (s *RoomService) GetRoom(ctx context.Context, id string) (*domain.Room, error) {
	raw, err := s.store.Get(ctx, store.RoomPath(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	var room domain.Room
	if err := json.Unmarshal(raw, &room); err != nil {
		return nil, err
	}
	room.ID = id
	return &room, nil
}

func (s *RoomService) RoomExists(ctx context.Context, id string) (bool, error) {
	_, err := s.store.Get(ctx, store.RoomPath(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// JoinRoom adds a participant. Joining again under the same name resumes
// the existing user document instead of creating a duplicate.
func (s *RoomService) JoinRoom(ctx context.Context, roomID, name string) (*domain.User, error) {
	const op = "service.room.join"
	log := s.log.With(slog.String("op", op), slog.String("room_id", roomID))

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("user name is required")
	}

	if _, err := s.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}

	if existing, err := s.findUserByName(ctx, roomID, name); err != nil {
		return nil, err
	} else if existing != nil {
		log.Info("user rejoined", "user_id", existing.ID, "name", existing.Name)
		return existing, nil
	}

	user := domain.NewUser(name)
	if err := s.store.Set(ctx, store.UserPath(roomID, user.ID), user); err != nil {
		return nil, err
	}

	log.Info("user joined", "user_id", user.ID, "name", user.Name)
	return user, nil
}

func (s *RoomService) LeaveRoom(ctx context.Context, roomID, userID string) error {
	const op = "service.room.leave"

	if _, err := s.store.Get(ctx, store.UserPath(roomID, userID)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if err := s.store.Remove(ctx, store.UserPath(roomID, userID)); err != nil {
		return err
	}

	s.log.Info("user left", slog.String("op", op), "room_id", roomID, "user_id", userID)
	return nil
}

func (s *RoomService) ListParticipants(ctx context.Context, roomID string) ([]*domain.User, error) {
	docs, err := s.store.List(ctx, store.UsersPath(roomID))
	if err != nil {
		return nil, err
	}

	users := make([]*domain.User, 0, len(docs))
	for id, raw := range docs {
		var user domain.User
		if err := json.Unmarshal(raw, &user); err != nil {
			return nil, err
		}
		user.ID = id
		users = append(users, &user)
	}

	sort.Slice(users, func(i, j int) bool { return users[i].JoinedAt.Before(users[j].JoinedAt) })
	return users, nil
}

func (s *RoomService) AddToQueue(ctx context.Context, roomID string, song *domain.Song) (*domain.Song, error) {
	if song == nil {
		return nil, errors.New("song is required")
	}
	if _, err := s.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}

	queued := *song
	queued.Key = ""
	if queued.AddedAt.IsZero() {
		queued.AddedAt = time.Now().UTC()
	}

	key, err := s.store.Append(ctx, store.QueuePath(roomID), &queued)
	if err != nil {
		return nil, err
	}

	queued.Key = key
	return &queued, nil
}

func (s *RoomService) RemoveFromQueue(ctx context.Context, roomID, key string) error {
	return s.store.Remove(ctx, store.QueueEntryPath(roomID, key))
}

func (s *RoomService) ListQueue(ctx context.Context, roomID string) ([]*domain.Song, error) {
	docs, err := s.store.List(ctx, store.QueuePath(roomID))
	if err != nil {
		return nil, err
	}

	songs := make([]*domain.Song, 0, len(docs))
	for key, raw := range docs {
		var song domain.Song
		if err := json.Unmarshal(raw, &song); err != nil {
			return nil, err
		}
		song.Key = key
		songs = append(songs, &song)
	}

	sort.Slice(songs, func(i, j int) bool { return songs[i].AddedAt.Before(songs[j].AddedAt) })
	return songs, nil
}

// SetCurrentSong replaces the song on the shared player. A nil song clears
// the player.
func (s *RoomService) SetCurrentSong(ctx context.Context, roomID string, song *domain.Song) error {
	if _, err := s.GetRoom(ctx, roomID); err != nil {
		return err
	}
	return s.store.Update(ctx, store.RoomPath(roomID), map[string]any{
		"currentSong": song,
	})
}

func (s *RoomService) SetPlayerState(ctx context.Context, roomID string, isPlaying, isMuted bool) error {
	if _, err := s.GetRoom(ctx, roomID); err != nil {
		return err
	}
	return s.store.Update(ctx, store.RoomPath(roomID), map[string]any{
		"isPlaying": isPlaying,
		"isMuted":   isMuted,
	})
}

// CleanupExpiredRooms drops every room older than the configured max age,
// both the persisted metadata and the live store subtree.
func (s *RoomService) CleanupExpiredRooms(ctx context.Context) (int, error) {
	const op = "service.room.cleanup"
	log := s.log.With(slog.String("op", op))

	rooms, err := s.rooms.List(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, room := range rooms {
		if !room.IsOlderThan(s.maxAge) {
			continue
		}
		if err := s.store.Remove(ctx, store.RoomPath(room.ID)); err != nil {
			log.Error("failed to remove room state", "room_id", room.ID, sl.Err(err))
			continue
		}
		if err := s.rooms.Delete(ctx, room.ID); err != nil && !errors.Is(err, repository.ErrRoomNotFound) {
			log.Error("failed to delete room record", "room_id", room.ID, sl.Err(err))
			continue
		}
		removed++
	}
	return removed, nil
}

func (s *RoomService) findUserByName(ctx context.Context, roomID, name string) (*domain.User, error) {
	users, err := s.ListParticipants(ctx, roomID)
	if err != nil {
		return nil, err
	}
	for _, user := range users {
		if strings.EqualFold(user.Name, name) {
			return user, nil
		}
	}
	return nil, nil
}
