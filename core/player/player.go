// Package player owns the single active playback session and its transport
// controls. Position is derived from wall-clock deltas against an anchor
// timestamp, never by polling the audio sink.
package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"acytel/logger"
	"acytel/model"
)

// State is the engine's transport state.
type State int

const (
	StateIdle State = iota
	StateLoading
	StatePlaying
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

var (
	// ErrNothingLoaded is returned by transport operations that need a
	// loaded buffer.
	ErrNothingLoaded = errors.New("no track loaded")
	// ErrEmptyAudio is returned when a track resolves to zero bytes or
	// decodes to an empty buffer.
	ErrEmptyAudio = errors.New("decoded audio is empty")
	// ErrSuperseded is returned from a Play whose result arrived after a
	// newer Play already took over the session.
	ErrSuperseded = errors.New("playback superseded by a newer track")
)

// TrackSource resolves the complete encoded bytes of a track, consulting
// the local cache before the network.
type TrackSource interface {
	FetchTrack(ctx context.Context, trackID string) ([]byte, error)
}

// session is the one active decode/playback context.
type session struct {
	track    model.Track
	pcm      *PCM
	duration time.Duration
}

// Engine is the playback engine. At most one session exists at a time;
// playing a new track fully tears down the previous one.
type Engine struct {
	source  TrackSource
	decoder Decoder
	output  Output
	now     func() time.Time

	mu      sync.Mutex
	state   State
	session *session
	loadGen uint64
	offset  time.Duration // accumulated playback offset
	anchor  time.Time     // wall-clock reference while playing
}

// NewEngine creates an idle engine.
func NewEngine(source TrackSource, decoder Decoder, output Output) *Engine {
	return &Engine{
		source:  source,
		decoder: decoder,
		output:  output,
		now:     time.Now,
		state:   StateIdle,
	}
}

// Play starts playback of a track and returns its decoded duration.
// Playing the track that is already active toggles play/pause instead.
// Any previous session is torn down before the new load begins; if a newer
// Play supersedes this one while it is loading, this call's result is
// discarded and ErrSuperseded returned.
func (e *Engine) Play(ctx context.Context, track model.Track) (time.Duration, error) {
	e.mu.Lock()
	if e.session != nil && e.session.track.ID == track.ID &&
		(e.state == StatePlaying || e.state == StatePaused) {
		d := e.session.duration
		err := e.toggleLocked()
		e.mu.Unlock()
		return d, err
	}

	e.loadGen++
	gen := e.loadGen
	e.teardownLocked()
	e.state = StateLoading
	e.mu.Unlock()

	data, err := e.source.FetchTrack(ctx, track.ID)
	if err == nil && len(data) == 0 {
		err = ErrEmptyAudio
	}

	var pcm *PCM
	if err == nil {
		pcm, err = e.decoder.Decode(data)
		if err == nil && (pcm == nil || len(pcm.Samples) == 0) {
			err = ErrEmptyAudio
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.loadGen != gen {
		logger.Debug("discarding superseded load", logger.String("trackId", track.ID))
		return 0, ErrSuperseded
	}

	if err != nil {
		e.state = StateIdle
		return 0, fmt.Errorf("could not play track %s: %w", track.ID, err)
	}

	s := &session{track: track, pcm: pcm, duration: pcm.Duration()}
	if err := e.output.Start(pcm, 0); err != nil {
		e.state = StateIdle
		return 0, fmt.Errorf("could not start output for track %s: %w", track.ID, err)
	}

	e.session = s
	e.offset = 0
	e.anchor = e.now()
	e.state = StatePlaying

	logger.Info("playback started",
		logger.String("trackId", track.ID),
		logger.Duration("duration", s.duration))
	return s.duration, nil
}

// Toggle flips between playing and paused. Pausing freezes the accumulated
// offset at the current position; resuming re-anchors the wall clock.
func (e *Engine) Toggle() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.toggleLocked()
}

func (e *Engine) toggleLocked() error {
	switch e.state {
	case StatePlaying:
		e.offset = e.positionLocked()
		e.output.Stop()
		e.state = StatePaused
		return nil
	case StatePaused:
		if err := e.output.Start(e.session.pcm, e.offset); err != nil {
			return fmt.Errorf("could not resume output: %w", err)
		}
		e.anchor = e.now()
		e.state = StatePlaying
		return nil
	default:
		return ErrNothingLoaded
	}
}

// Seek moves the playhead to t, clamped to [0, duration]. A seek while
// paused stays paused; a seek while playing restarts output at t.
func (e *Engine) Seek(t time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StatePlaying && e.state != StatePaused {
		return ErrNothingLoaded
	}

	if t < 0 {
		t = 0
	}
	if t > e.session.duration {
		t = e.session.duration
	}

	e.output.Stop()
	e.offset = t
	if e.state == StatePlaying {
		if err := e.output.Start(e.session.pcm, t); err != nil {
			e.state = StateIdle
			e.session = nil
			return fmt.Errorf("could not restart output after seek: %w", err)
		}
		e.anchor = e.now()
	}
	return nil
}

// Stop tears down the current session and returns the engine to idle.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loadGen++ // invalidate any in-flight load
	e.teardownLocked()
	e.state = StateIdle
}

// Position returns the current playhead. While playing it is derived from
// the wall clock, so repeated reads are monotonically non-decreasing and
// never exceed the track duration.
func (e *Engine) Position() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.positionLocked()
}

func (e *Engine) positionLocked() time.Duration {
	switch e.state {
	case StatePlaying:
		pos := e.offset + e.now().Sub(e.anchor)
		if pos > e.session.duration {
			return e.session.duration
		}
		return pos
	case StatePaused:
		return e.offset
	default:
		return 0
	}
}

// Duration returns the decoded duration of the loaded track, or zero.
func (e *Engine) Duration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return 0
	}
	return e.session.duration
}

// State returns the current transport state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Current returns the active track, if any.
func (e *Engine) Current() (model.Track, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return model.Track{}, false
	}
	return e.session.track, true
}

func (e *Engine) teardownLocked() {
	e.output.Stop()
	e.session = nil
	e.offset = 0
}
