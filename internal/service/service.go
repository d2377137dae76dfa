package service

import (
	"context"

	"github.com/singstage/singstage/internal/domain"
	"github.com/singstage/singstage/internal/search"
)

type RoomInteractor interface {
	CreateRoom(ctx context.Context, adminName string, micFeatureEnabled, scorerEnabled bool) (*domain.Room, *domain.User, error)
	GetRoom(ctx context.Context, id string) (*domain.Room, error)
	RoomExists(ctx context.Context, id string) (bool, error)
	JoinRoom(ctx context.Context, roomID, name string) (*domain.User, error)
	LeaveRoom(ctx context.Context, roomID, userID string) error
	ListParticipants(ctx context.Context, roomID string) ([]*domain.User, error)
	AddToQueue(ctx context.Context, roomID string, song *domain.Song) (*domain.Song, error)
	RemoveFromQueue(ctx context.Context, roomID, key string) error
	ListQueue(ctx context.Context, roomID string) ([]*domain.Song, error)
	SetCurrentSong(ctx context.Context, roomID string, song *domain.Song) error
	SetPlayerState(ctx context.Context, roomID string, isPlaying, isMuted bool) error
	CleanupExpiredRooms(ctx context.Context) (int, error)
}

type ScoreInteractor interface {
	GeneratePerformanceScore() int
	SaveScore(ctx context.Context, score *domain.Score) error
	RoomHighScores(ctx context.Context, roomID string, limit int) ([]*domain.Score, error)
	UserHighScores(ctx context.Context, roomID, userID string, limit int) ([]*domain.Score, error)
}

type SongSearcher interface {
	Search(ctx context.Context, query string) ([]search.Result, error)
}
