package domain

import "time"

// Score is one finished performance.
type Score struct {
	ID        string    `json:"id,omitempty"`
	RoomID    string    `json:"roomId"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	SongTitle string    `json:"songTitle"`
	Score     int       `json:"score"`
	Timestamp time.Time `json:"timestamp"`
}
