package model

import "time"

// User represents a registered library owner. Account management lives in
// the auth collaborator; this model only backs the seeded owner account and
// track ownership checks.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
