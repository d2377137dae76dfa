package converter

import (
	"time"

	"github.com/singstage/singstage/internal/domain"
)

type RoomResponse struct {
	ID                string       `json:"id"`
	CreatedAt         time.Time    `json:"createdAt"`
	CurrentSong       *domain.Song `json:"currentSong"`
	IsPlaying         bool         `json:"isPlaying"`
	IsMuted           bool         `json:"isMuted"`
	MicFeatureEnabled bool         `json:"micFeatureEnabled"`
	ScorerEnabled     bool         `json:"scorerEnabled"`
	ShareURL          string       `json:"shareUrl"`
}

func RoomToApi(r *domain.Room) *RoomResponse {
	if r == nil {
		return nil
	}
	return &RoomResponse{
		ID:                r.ID,
		CreatedAt:         r.CreatedAt,
		CurrentSong:       r.CurrentSong,
		IsPlaying:         r.IsPlaying,
		IsMuted:           r.IsMuted,
		MicFeatureEnabled: r.MicFeatureEnabled,
		ScorerEnabled:     r.ScorerEnabled,
		ShareURL:          "/room/" + r.ID,
	}
}
