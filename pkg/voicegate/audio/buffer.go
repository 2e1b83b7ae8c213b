package audio

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidAudio is returned for empty buffers, non-positive sample rates and
// buffers too short to analyse.
var ErrInvalidAudio = errors.New("invalid audio")

// pcm16Scale maps int16 samples into [-1, 1).
const pcm16Scale = 1.0 / 32768.0

// Buffer is a mono sequence of samples normalized to [-1, 1] at a fixed
// sample rate. Buffers are built through FromPCM16 or FromFloat64, which copy
// their input; nothing in this module mutates a Buffer after construction.
type Buffer struct {
	Samples    []float64
	SampleRate int
}

// FromPCM16 builds a Buffer from signed 16-bit samples.
func FromPCM16(samples []int16, sampleRate int) Buffer {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s) * pcm16Scale
	}
	return Buffer{Samples: out, SampleRate: sampleRate}
}

// FromFloat64 builds a Buffer from floating point samples already in [-1, 1].
func FromFloat64(samples []float64, sampleRate int) Buffer {
	out := make([]float64, len(samples))
	copy(out, samples)
	return Buffer{Samples: out, SampleRate: sampleRate}
}

// Validate reports ErrInvalidAudio when the buffer is empty, its sample
// rate is not positive or a sample is NaN or infinite.
func (b Buffer) Validate() error {
	if b.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrInvalidAudio, b.SampleRate)
	}
	if len(b.Samples) == 0 {
		return fmt.Errorf("%w: empty buffer", ErrInvalidAudio)
	}
	for i, s := range b.Samples {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return fmt.Errorf("%w: non-finite sample %v at %d", ErrInvalidAudio, s, i)
		}
	}
	return nil
}

// ValidateFrames is Validate plus a minimum length of one analysis frame.
func (b Buffer) ValidateFrames(frameSize int) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if len(b.Samples) < frameSize {
		return fmt.Errorf("%w: %d samples is shorter than one %d-sample frame",
			ErrInvalidAudio, len(b.Samples), frameSize)
	}
	return nil
}

// Len returns the number of samples.
func (b Buffer) Len() int { return len(b.Samples) }

// Duration returns the playback length of the buffer.
func (b Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(b.Samples)) / float64(b.SampleRate) * float64(time.Second))
}

// Scale returns a copy with every sample multiplied by k.
func (b Buffer) Scale(k float64) Buffer {
	out := make([]float64, len(b.Samples))
	for i, s := range b.Samples {
		out[i] = s * k
	}
	return Buffer{Samples: out, SampleRate: b.SampleRate}
}

// PCM16 converts the buffer back to clipped signed 16-bit samples.
func (b Buffer) PCM16() []int16 {
	out := make([]int16, len(b.Samples))
	for i, s := range b.Samples {
		v := s * 32768.0
		switch {
		case v > 32767:
			v = 32767
		case v < -32768:
			v = -32768
		}
		out[i] = int16(v)
	}
	return out
}
