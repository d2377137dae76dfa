package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is a room participant document stored under rooms/{id}/users/{uid}.
// IsMicOn is written by the client itself; IsMutedByAdmin only by the admin
// (plus the admin's redundant forced IsMicOn=false on mute).
type User struct {
	ID             string    `json:"id,omitempty"`
	Name           string    `json:"name"`
	IsAdmin        bool      `json:"isAdmin"`
	JoinedAt       time.Time `json:"joinedAt"`
	IsMicOn        bool      `json:"isMicOn"`
	IsMutedByAdmin bool      `json:"isMutedByAdmin"`
}

func NewUser(name string) *User {
	return &User{
		ID:       uuid.New().String(),
		Name:     name,
		JoinedAt: time.Now().UTC(),
	}
}

// NewAdminUser builds the room owner. Its id is the fixed AdminID so
// signaling and playback control always resolve to the same peer.
func NewAdminUser(name string) *User {
	return &User{
		ID:       AdminID,
		Name:     name,
		IsAdmin:  true,
		JoinedAt: time.Now().UTC(),
	}
}
