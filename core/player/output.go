package player

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	oto "github.com/ebitengine/oto/v3"
)

// Output is the audio sink the engine drives. Start begins emitting the
// buffer from the given offset; Stop silences the sink. The engine never
// asks the sink for its position.
type Output interface {
	Start(pcm *PCM, offset time.Duration) error
	Stop()
}

// OtoOutput plays PCM through the system audio device.
type OtoOutput struct {
	mu         sync.Mutex
	ctx        *oto.Context
	player     *oto.Player
	sampleRate int
	channels   int
}

// NewOtoOutput creates an output. The underlying audio context is created
// lazily on first Start, once the stream format is known.
func NewOtoOutput() *OtoOutput {
	return &OtoOutput{}
}

// Start converts the buffer to 16-bit PCM from the requested offset and
// plays it.
func (o *OtoOutput) Start(pcm *PCM, offset time.Duration) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.ctx == nil {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   pcm.SampleRate,
			ChannelCount: pcm.Channels,
			Format:       oto.FormatSignedInt16LE,
		})
		if err != nil {
			return fmt.Errorf("failed to create audio context: %w", err)
		}
		<-ready
		o.ctx = ctx
		o.sampleRate = pcm.SampleRate
		o.channels = pcm.Channels
	}

	// The process-wide audio context is fixed to the first stream's format.
	if o.sampleRate != pcm.SampleRate || o.channels != pcm.Channels {
		return fmt.Errorf("audio output initialized at %d Hz/%d ch, cannot play %d Hz/%d ch",
			o.sampleRate, o.channels, pcm.SampleRate, pcm.Channels)
	}

	if o.player != nil {
		o.player.Close()
		o.player = nil
	}

	start := int(offset.Seconds()*float64(pcm.SampleRate)) * pcm.Channels
	if start < 0 {
		start = 0
	}
	if start > len(pcm.Samples) {
		start = len(pcm.Samples)
	}

	buf := make([]byte, (len(pcm.Samples)-start)*2)
	for i, s := range pcm.Samples[start:] {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(int16(s*32767)))
	}

	p := o.ctx.NewPlayer(bytes.NewReader(buf))
	p.Play()
	o.player = p
	return nil
}

// Stop silences the sink and releases the current player.
func (o *OtoOutput) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.player != nil {
		o.player.Close()
		o.player = nil
	}
}
