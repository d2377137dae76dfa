package domain

import "time"

// Song is a queue entry. Key is the store-generated key of the entry,
// needed to remove it from the queue.
type Song struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Thumbnail string    `json:"thumbnail"`
	AddedBy   string    `json:"addedBy"`
	AddedAt   time.Time `json:"addedAt"`
	Key       string    `json:"key,omitempty"`
}
