// Package prefetch warms the local audio cache for the tracks a listener is
// about to reach. Prefetching is purely an optimization: failures are
// logged and swallowed, never surfaced.
package prefetch

import (
	"context"
	"sync/atomic"

	"acytel/logger"
	"acytel/model"
)

// DefaultLookAhead is how many upcoming tracks are warmed per activation.
const DefaultLookAhead = 2

// Source is the fetch surface the coordinator drives. FetchTrack is
// expected to write through to the cache on success.
type Source interface {
	FetchTrack(ctx context.Context, trackID string) ([]byte, error)
	HasCached(ctx context.Context, trackID string) bool
}

// Coordinator looks ahead in the active playlist and fetches upcoming
// tracks into the cache. A single in-flight flag guarantees at most one
// look-ahead pass runs at a time; an activation that finds the flag set is
// skipped, not queued, and relies on a later activation to re-trigger.
type Coordinator struct {
	source    Source
	lookAhead int
	inFlight  atomic.Bool
}

// NewCoordinator creates a coordinator. lookAhead values below 1 fall back
// to DefaultLookAhead.
func NewCoordinator(source Source, lookAhead int) *Coordinator {
	if lookAhead < 1 {
		lookAhead = DefaultLookAhead
	}
	return &Coordinator{source: source, lookAhead: lookAhead}
}

// OnTrackActivated warms the cache for the next tracks after currentTrackID
// in playlist order. Returns immediately; all work happens asynchronously
// and never blocks or affects current playback.
func (c *Coordinator) OnTrackActivated(playlist []model.Track, currentTrackID string) {
	idx := -1
	for i, t := range playlist {
		if t.ID == currentTrackID {
			idx = i
			break
		}
	}
	if idx < 0 || idx+1 >= len(playlist) {
		return
	}

	end := idx + 1 + c.lookAhead
	if end > len(playlist) {
		end = len(playlist)
	}
	upcoming := make([]model.Track, end-(idx+1))
	copy(upcoming, playlist[idx+1:end])

	if !c.inFlight.CompareAndSwap(false, true) {
		logger.Debug("prefetch already in progress, skipping",
			logger.String("currentTrackId", currentTrackID))
		return
	}

	go func() {
		defer c.inFlight.Store(false)
		ctx := context.Background()

		for _, track := range upcoming {
			if c.source.HasCached(ctx, track.ID) {
				continue
			}

			logger.Debug("prefetching upcoming track",
				logger.String("trackId", track.ID),
				logger.String("title", track.Title))

			if _, err := c.source.FetchTrack(ctx, track.ID); err != nil {
				logger.Warn("prefetch failed",
					logger.String("trackId", track.ID),
					logger.ErrorField(err))
				continue
			}
		}
	}()
}
