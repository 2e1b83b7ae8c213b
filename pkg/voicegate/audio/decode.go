package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	resampling "github.com/tphakala/go-audio-resampling"
)

// ErrUnsupportedFormat is returned by DecodeFile for containers it cannot
// decode without ffmpeg.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// DecodeFile decodes WAV, MP3 and Ogg Vorbis files in pure Go and mixes them
// down to mono at their native sample rate.
func DecodeFile(path string) (Buffer, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		return ReadWAV(path)
	case ".mp3":
		return decodeWith(path, DecodeMP3)
	case ".ogg", ".oga":
		return decodeWith(path, DecodeVorbis)
	default:
		return Buffer{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func decodeWith(path string, decode func(io.Reader) (Buffer, error)) (Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return Buffer{}, err
	}
	defer f.Close()

	buf, err := decode(f)
	if err != nil {
		return Buffer{}, fmt.Errorf("decoding %s: %w", path, err)
	}
	return buf, nil
}

// DecodeMP3 decodes an MP3 stream. go-mp3 always yields interleaved stereo
// 16-bit little-endian PCM.
func DecodeMP3(r io.Reader) (Buffer, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return Buffer{}, err
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return Buffer{}, fmt.Errorf("reading MP3 frames: %w", err)
	}

	const channels = 2
	frames := len(raw) / (2 * channels)
	out := make([]float64, frames)
	for i := range frames {
		var sum float64
		for c := range channels {
			j := 2 * (i*channels + c)
			sum += float64(int16(uint16(raw[j])|uint16(raw[j+1])<<8)) * pcm16Scale
		}
		out[i] = sum / channels
	}
	return Buffer{Samples: out, SampleRate: dec.SampleRate()}, nil
}

// DecodeVorbis decodes an Ogg Vorbis stream.
func DecodeVorbis(r io.Reader) (Buffer, error) {
	data, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return Buffer{}, err
	}
	if format.Channels <= 0 {
		return Buffer{}, errors.New("vorbis stream declares zero channels")
	}

	frames := len(data) / format.Channels
	out := make([]float64, frames)
	for i := range frames {
		var sum float64
		for c := range format.Channels {
			sum += float64(data[i*format.Channels+c])
		}
		out[i] = sum / float64(format.Channels)
	}
	return Buffer{Samples: out, SampleRate: format.SampleRate}, nil
}

// Resample converts b to sampleRate. A buffer already at sampleRate is
// returned unchanged.
func Resample(b Buffer, sampleRate int) (Buffer, error) {
	if err := b.Validate(); err != nil {
		return Buffer{}, err
	}
	if sampleRate <= 0 {
		return Buffer{}, fmt.Errorf("%w: target sample rate %d", ErrInvalidAudio, sampleRate)
	}
	if b.SampleRate == sampleRate {
		return b, nil
	}

	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(b.SampleRate),
		OutputRate: float64(sampleRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return Buffer{}, fmt.Errorf("failed to create resampler: %w", err)
	}

	out, err := rs.Process(b.Samples)
	if err != nil {
		return Buffer{}, fmt.Errorf("resample error: %w", err)
	}
	return Buffer{Samples: out, SampleRate: sampleRate}, nil
}
