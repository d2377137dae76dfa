package repository

import (
	"context"
	"errors"

	"github.com/singstage/singstage/internal/domain"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomExists   = errors.New("room already exists")
)

// RoomRepository persists room metadata. The live room state (queue,
// users, signals) lives in the shared realtime store; this only records
// what outlives a session: creation time and feature flags.
type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	GetByID(ctx context.Context, id string) (*domain.Room, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*domain.Room, error)
}

// ScoreRepository persists finished performances for the high-score views.
type ScoreRepository interface {
	Save(ctx context.Context, score *domain.Score) error
	ListByRoom(ctx context.Context, roomID string, limit int) ([]*domain.Score, error)
	ListByUser(ctx context.Context, roomID, userID string, limit int) ([]*domain.Score, error)
}
