// Package client implements the listening client's fetch path: secure-link
// resolution against the catalog API and byte retrieval through the
// delivery proxy, with the local audio cache consulted first.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"acytel/cache"
	"acytel/logger"
	"acytel/model"
)

type secureLinkResponse struct {
	URL string `json:"url"`
}

// StreamClient fetches track audio. A nil audio cache disables the fast
// path without affecting playback.
type StreamClient struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	audioCache cache.AudioCache
}

// NewStreamClient creates a client for the given API base URL. authToken is
// the caller's bearer identity used only for secure-link issuance; stream
// fetches authenticate with the minted token alone.
func NewStreamClient(baseURL, authToken string, audioCache cache.AudioCache) *StreamClient {
	return &StreamClient{
		baseURL:    baseURL,
		authToken:  authToken,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		audioCache: audioCache,
	}
}

// SecureLink requests a freshly tokenized stream URL for a track.
func (c *StreamClient) SecureLink(ctx context.Context, trackID string) (string, error) {
	url := fmt.Sprintf("%s/api/tracks/%s/secure-link", c.baseURL, trackID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build secure-link request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("secure-link request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("secure-link request for track %s returned %d", trackID, resp.StatusCode)
	}

	var link secureLinkResponse
	if err := json.NewDecoder(resp.Body).Decode(&link); err != nil {
		return "", fmt.Errorf("failed to decode secure-link response: %w", err)
	}
	return link.URL, nil
}

// ListTracks fetches the caller's library, in playlist order.
func (c *StreamClient) ListTracks(ctx context.Context) ([]model.Track, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tracks", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build track list request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("track list request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("track list request returned %d", resp.StatusCode)
	}

	var tracks []model.Track
	if err := json.NewDecoder(resp.Body).Decode(&tracks); err != nil {
		return nil, fmt.Errorf("failed to decode track list: %w", err)
	}
	return tracks, nil
}

// FetchTrack resolves the complete encoded bytes for a track: cache hit
// when available, otherwise a tokenized fetch through the delivery proxy
// followed by a write-through into the cache. Implements player.TrackSource.
func (c *StreamClient) FetchTrack(ctx context.Context, trackID string) ([]byte, error) {
	if c.audioCache != nil {
		if data, err := c.audioCache.Get(ctx, trackID); err == nil && data != nil {
			return data, nil
		}
	}

	streamURL, err := c.SecureLink(ctx, trackID)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build stream request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stream fetch failed: %w", err)
	}
	defer resp.Body.Close()

	// An expired token surfaces here as 401; the caller's recourse is a
	// fresh secure link, not reuse of the old token.
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stream fetch for track %s returned %d", trackID, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("stream read for track %s failed: %w", trackID, err)
	}

	if c.audioCache != nil {
		// Best effort; the cache logs its own failures.
		if err := c.audioCache.Put(ctx, trackID, data); err != nil {
			logger.Debug("write-through cache store failed",
				logger.String("trackId", trackID))
		}
	}
	return data, nil
}

// HasCached reports whether a complete copy of the track is already cached.
func (c *StreamClient) HasCached(ctx context.Context, trackID string) bool {
	if c.audioCache == nil {
		return false
	}
	ok, _ := c.audioCache.Has(ctx, trackID)
	return ok
}
