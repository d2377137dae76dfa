package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const roomIDLength = 8

// Room is the live state of a karaoke party, mirrored in the shared store
// under rooms/{id}. Queue entries and users live in sub-collections.
type Room struct {
	ID                string    `json:"id,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	CurrentSong       *Song     `json:"currentSong"`
	IsPlaying         bool      `json:"isPlaying"`
	IsMuted           bool      `json:"isMuted"`
	MicFeatureEnabled bool      `json:"micFeatureEnabled"`
	ScorerEnabled     bool      `json:"scorerEnabled"`
}

// NewRoom constructs a room with a generated share code.
func NewRoom(micFeatureEnabled, scorerEnabled bool) *Room {
	return &Room{
		ID:                NewRoomID(),
		CreatedAt:         time.Now().UTC(),
		MicFeatureEnabled: micFeatureEnabled,
		ScorerEnabled:     scorerEnabled,
	}
}

// NewRoomID generates a short shareable room code.
func NewRoomID() string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	if len(id) <= roomIDLength {
		return id
	}
	return id[:roomIDLength]
}

// IsOlderThan reports whether the room was created before now-maxAge.
func (r *Room) IsOlderThan(maxAge time.Duration) bool {
	if r == nil || r.CreatedAt.IsZero() {
		return false
	}
	return time.Now().UTC().Sub(r.CreatedAt.UTC()) > maxAge
}
