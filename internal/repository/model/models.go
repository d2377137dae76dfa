package model

import (
	"time"

	"github.com/google/uuid"
)

type Room struct {
	ID                string    `gorm:"size:64;primaryKey"`
	CreatedAt         time.Time `gorm:"not null"`
	MicFeatureEnabled bool      `gorm:"not null"`
	ScorerEnabled     bool      `gorm:"not null"`
}

type Score struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	RoomID    string    `gorm:"size:64;index;not null"`
	UserID    string    `gorm:"size:64;index;not null"`
	UserName  string    `gorm:"size:255;not null"`
	SongTitle string    `gorm:"size:255;not null"`
	Score     int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}
