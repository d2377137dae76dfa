package repository

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/singstage/singstage/internal/domain"
)

type InMemoryRoomRepository struct {
	mu    sync.RWMutex
	rooms map[string]*domain.Room
}

func NewInMemoryRoomRepository() *InMemoryRoomRepository {
	return &InMemoryRoomRepository{rooms: make(map[string]*domain.Room)}
}

func (r *InMemoryRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if room == nil {
		return errors.New("room is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[room.ID]; ok {
		return ErrRoomExists
	}
	r.rooms[room.ID] = room
	return nil
}

func (r *InMemoryRoomRepository) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

func (r *InMemoryRoomRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[id]; !ok {
		return ErrRoomNotFound
	}
	delete(r.rooms, id)
	return nil
}

func (r *InMemoryRoomRepository) List(ctx context.Context) ([]*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		result = append(result, room)
	}
	return result, nil
}

type InMemoryScoreRepository struct {
	mu     sync.RWMutex
	scores []*domain.Score
}

func NewInMemoryScoreRepository() *InMemoryScoreRepository {
	return &InMemoryScoreRepository{}
}

func (r *InMemoryScoreRepository) Save(ctx context.Context, score *domain.Score) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if score == nil {
		return errors.New("score is nil")
	}

	saved := *score
	if saved.ID == "" {
		saved.ID = uuid.New().String()
	}

	r.mu.Lock()
	r.scores = append(r.scores, &saved)
	r.mu.Unlock()
	return nil
}

func (r *InMemoryScoreRepository) ListByRoom(ctx context.Context, roomID string, limit int) ([]*domain.Score, error) {
	return r.list(ctx, limit, func(s *domain.Score) bool {
		return s.RoomID == roomID
	})
}

func (r *InMemoryScoreRepository) ListByUser(ctx context.Context, roomID, userID string, limit int) ([]*domain.Score, error) {
	return r.list(ctx, limit, func(s *domain.Score) bool {
		return s.RoomID == roomID && s.UserID == userID
	})
}

func (r *InMemoryScoreRepository) list(ctx context.Context, limit int, match func(*domain.Score) bool) ([]*domain.Score, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	result := make([]*domain.Score, 0)
	for _, s := range r.scores {
		if match(s) {
			result = append(result, s)
		}
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].Score > result[j].Score })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
