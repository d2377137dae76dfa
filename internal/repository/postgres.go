package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/singstage/singstage/internal/domain"
	"github.com/singstage/singstage/internal/repository/model"
)

type PostgresRoomRepository struct {
	db *gorm.DB
}

func NewPostgresRoomRepository(db *gorm.DB) *PostgresRoomRepository {
	return &PostgresRoomRepository{db: db}
}

func (r *PostgresRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if room == nil {
		return errors.New("room is nil")
	}

	roomModel := toModelRoom(room)

	if err := r.db.WithContext(ctx).Create(roomModel).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrRoomExists
		}
		return err
	}
	return nil
}

func (r *PostgresRoomRepository) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var room model.Room
	err := r.db.WithContext(ctx).First(&room, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	return toDomainRoom(&room), nil
}

func (r *PostgresRoomRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	res := r.db.WithContext(ctx).Delete(&model.Room{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (r *PostgresRoomRepository) List(ctx context.Context) ([]*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rooms []model.Room
	if err := r.db.WithContext(ctx).Find(&rooms).Error; err != nil {
		return nil, err
	}

	result := make([]*domain.Room, 0, len(rooms))
	for i := range rooms {
		result = append(result, toDomainRoom(&rooms[i]))
	}
	return result, nil
}

type PostgresScoreRepository struct {
	db *gorm.DB
}

func NewPostgresScoreRepository(db *gorm.DB) *PostgresScoreRepository {
	return &PostgresScoreRepository{db: db}
}

func (r *PostgresScoreRepository) Save(ctx context.Context, score *domain.Score) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if score == nil {
		return errors.New("score is nil")
	}

	return r.db.WithContext(ctx).Create(toModelScore(score)).Error
}

func (r *PostgresScoreRepository) ListByRoom(ctx context.Context, roomID string, limit int) ([]*domain.Score, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var scores []model.Score
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("score DESC").
		Limit(limit).
		Find(&scores).Error
	if err != nil {
		return nil, err
	}
	return toDomainScores(scores), nil
}

func (r *PostgresScoreRepository) ListByUser(ctx context.Context, roomID, userID string, limit int) ([]*domain.Score, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var scores []model.Score
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Order("score DESC").
		Limit(limit).
		Find(&scores).Error
	if err != nil {
		return nil, err
	}
	return toDomainScores(scores), nil
}

func toModelRoom(room *domain.Room) *model.Room {
	return &model.Room{
		ID:                room.ID,
		CreatedAt:         room.CreatedAt.UTC(),
		MicFeatureEnabled: room.MicFeatureEnabled,
		ScorerEnabled:     room.ScorerEnabled,
	}
}

func toDomainRoom(room *model.Room) *domain.Room {
	return &domain.Room{
		ID:                room.ID,
		CreatedAt:         room.CreatedAt.UTC(),
		MicFeatureEnabled: room.MicFeatureEnabled,
		ScorerEnabled:     room.ScorerEnabled,
	}
}

func toModelScore(score *domain.Score) *model.Score {
	id := uuid.New()
	if score.ID != "" {
		if parsed, err := uuid.Parse(score.ID); err == nil {
			id = parsed
		}
	}
	createdAt := score.Timestamp
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return &model.Score{
		ID:        id,
		RoomID:    score.RoomID,
		UserID:    score.UserID,
		UserName:  score.UserName,
		SongTitle: score.SongTitle,
		Score:     score.Score,
		CreatedAt: createdAt.UTC(),
	}
}

func toDomainScores(scores []model.Score) []*domain.Score {
	result := make([]*domain.Score, 0, len(scores))
	for i := range scores {
		s := scores[i]
		result = append(result, &domain.Score{
			ID:        s.ID.String(),
			RoomID:    s.RoomID,
			UserID:    s.UserID,
			UserName:  s.UserName,
			SongTitle: s.SongTitle,
			Score:     s.Score,
			Timestamp: s.CreatedAt.UTC(),
		})
	}
	return result
}
