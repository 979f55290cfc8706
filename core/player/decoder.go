package player

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	mp3 "github.com/hajimehoshi/go-mp3"
)

// PCM is a fully decoded sample buffer: interleaved float32 samples in
// [-1, 1].
type PCM struct {
	SampleRate int
	Channels   int
	Samples    []float32
}

// Duration returns the playable length of the buffer.
func (p *PCM) Duration() time.Duration {
	if p.SampleRate <= 0 || p.Channels <= 0 {
		return 0
	}
	frames := len(p.Samples) / p.Channels
	return time.Duration(float64(frames) / float64(p.SampleRate) * float64(time.Second))
}

// Decoder turns encoded audio bytes into a playable sample buffer. It is
// the engine's only view of codec machinery, so codecs can be swapped
// without touching the playback state machine.
type Decoder interface {
	Decode(data []byte) (*PCM, error)
}

// MP3Decoder decodes MP3 data to PCM.
type MP3Decoder struct{}

// Decode decodes the whole buffer. go-mp3 emits 16-bit little-endian stereo.
func (MP3Decoder) Decode(data []byte) (*PCM, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open mp3 stream: %w", err)
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("failed to decode mp3 stream: %w", err)
	}

	samples := make([]float32, len(raw)/2)
	for i := range samples {
		s := int16(binary.LittleEndian.Uint16(raw[2*i:]))
		samples[i] = float32(s) / 32768
	}

	return &PCM{
		SampleRate: dec.SampleRate(),
		Channels:   2,
		Samples:    samples,
	}, nil
}
