package service

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/singstage/singstage/internal/domain"
	"github.com/singstage/singstage/internal/repository"
	"github.com/singstage/singstage/internal/store"
)

const (
	scoreFloor = 80
	scoreSpan  = 21
)

// ScoreService rates finished performances. The rating is deliberately
// generous: everyone lands between 80 and 100 so nobody leaves the party
// upset.
type ScoreService struct {
	scores repository.ScoreRepository
	store  store.Store
	log    *slog.Logger
}

func NewScoreService(scores repository.ScoreRepository, st store.Store, log *slog.Logger) *ScoreService {
	if log == nil {
		log = slog.Default()
	}
	return &ScoreService{scores: scores, store: st, log: log}
}

func (s *ScoreService) GeneratePerformanceScore() int {
	return scoreFloor + rand.Intn(scoreSpan)
}

func (s *ScoreService) SaveScore(ctx context.Context, score *domain.Score) error {
	const op = "service.score.save"
	log := s.log.With(slog.String("op", op))

	if score == nil {
		return errors.New("score is required")
	}
	if score.RoomID == "" || score.UserID == "" {
		return errors.New("room id and user id are required")
	}
	if score.Timestamp.IsZero() {
		score.Timestamp = time.Now().UTC()
	}

	if err := s.scores.Save(ctx, score); err != nil {
		return err
	}

	key, err := s.store.Append(ctx, store.ScoresPath(score.RoomID), score)
	if err != nil {
		return err
	}

	log.Info("score saved",
		"room_id", score.RoomID,
		"user", score.UserName,
		"score", score.Score,
		"key", key,
	)
	return nil
}

func (s *ScoreService) RoomHighScores(ctx context.Context, roomID string, limit int) ([]*domain.Score, error) {
	return s.scores.ListByRoom(ctx, roomID, limit)
}

func (s *ScoreService) UserHighScores(ctx context.Context, roomID, userID string, limit int) ([]*domain.Score, error) {
	return s.scores.ListByUser(ctx, roomID, userID, limit)
}
