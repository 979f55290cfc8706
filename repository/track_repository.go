package repository

import (
	"database/sql"
	"fmt"
	"time"

	"acytel/db"
	"acytel/model"

	"github.com/google/uuid"
)

// TrackRepository defines the interface for track catalog lookups.
type TrackRepository interface {
	CreateTrack(track *model.Track) (string, error)
	GetTrackByID(id string) (*model.Track, error)
	GetAllTracksByUserID(userID int64) ([]*model.Track, error)
}

// mysqlTrackRepository implements TrackRepository for MySQL.
type mysqlTrackRepository struct {
	DB *sql.DB
}

// NewMySQLTrackRepository creates a new instance of mysqlTrackRepository.
func NewMySQLTrackRepository() TrackRepository {
	return &mysqlTrackRepository{DB: db.DB}
}

// CreateTrack adds a new track to the catalog and returns its generated ID.
func (r *mysqlTrackRepository) CreateTrack(track *model.Track) (string, error) {
	if track.ID == "" {
		track.ID = uuid.NewString()
	}

	query := `INSERT INTO tracks (id, user_id, title, artist, album, duration, storage_path, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := r.DB.Prepare(query)
	if err != nil {
		return "", fmt.Errorf("failed to prepare statement for CreateTrack: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	_, err = stmt.Exec(track.ID, track.UserID, track.Title, track.Artist, track.Album, track.Duration, track.StoragePath, now, now)
	if err != nil {
		return "", fmt.Errorf("failed to execute CreateTrack: %w", err)
	}
	return track.ID, nil
}

// GetTrackByID retrieves a track by its ID. Returns (nil, nil) when the
// track does not exist.
func (r *mysqlTrackRepository) GetTrackByID(id string) (*model.Track, error) {
	query := `SELECT id, user_id, title, artist, album, duration, storage_path, created_at, updated_at
	           FROM tracks WHERE id = ?`
	row := r.DB.QueryRow(query, id)

	track := &model.Track{}
	err := row.Scan(&track.ID, &track.UserID, &track.Title, &track.Artist, &track.Album, &track.Duration, &track.StoragePath, &track.CreatedAt, &track.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan track by ID %s: %w", id, err)
	}
	return track, nil
}

// GetAllTracksByUserID retrieves all tracks owned by a user, newest first.
func (r *mysqlTrackRepository) GetAllTracksByUserID(userID int64) ([]*model.Track, error) {
	query := `SELECT id, user_id, title, artist, album, duration, storage_path, created_at, updated_at
	           FROM tracks WHERE user_id = ? ORDER BY created_at DESC`
	rows, err := r.DB.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks for user ID %d: %w", userID, err)
	}
	defer rows.Close()

	tracks := make([]*model.Track, 0)
	for rows.Next() {
		track := &model.Track{}
		err := rows.Scan(&track.ID, &track.UserID, &track.Title, &track.Artist, &track.Album, &track.Duration, &track.StoragePath, &track.CreatedAt, &track.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track in GetAllTracksByUserID: %w", err)
		}
		tracks = append(tracks, track)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in GetAllTracksByUserID: %w", err)
	}
	return tracks, nil
}
