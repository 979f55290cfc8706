package model

import "time"

// Track represents an audio track in the music library. Tracks are created
// by the catalog service on upload and are read-only for the playback,
// cache and prefetch subsystems.
type Track struct {
	ID          string    `json:"id"`
	UserID      int64     `json:"userId"`
	Title       string    `json:"title"`
	Artist      string    `json:"artist"`
	Album       string    `json:"album"`
	Duration    float32   `json:"duration"`    // Duration in seconds
	StoragePath string    `json:"-"`           // Opaque object key in blob storage, never exposed in the API
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
