package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

// ReadWAV reads a PCM WAV file and returns it as a mono Buffer.
func ReadWAV(path string) (Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return Buffer{}, err
	}
	defer f.Close()

	buf, err := DecodeWAV(f)
	if err != nil {
		return Buffer{}, fmt.Errorf("%w: decoding %s: %w", ErrInvalidAudio, path, err)
	}
	return buf, nil
}

// WAVInfo describes a WAV file from its header.
type WAVInfo struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   time.Duration
}

// ReadWAVInfo reads the header of a PCM WAV file without decoding samples.
func ReadWAVInfo(path string) (WAVInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return WAVInfo{}, err
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return WAVInfo{}, fmt.Errorf("%w: %s is not a valid WAV file", ErrInvalidAudio, path)
	}
	if decoder.NumChans == 0 || decoder.BitDepth == 0 || decoder.SampleRate == 0 {
		return WAVInfo{}, fmt.Errorf("%w: %s has an incomplete format header", ErrInvalidAudio, path)
	}
	if err := decoder.FwdToPCM(); err != nil {
		return WAVInfo{}, fmt.Errorf("%w: %s: %w", ErrInvalidAudio, path, err)
	}

	info := WAVInfo{
		SampleRate: int(decoder.SampleRate),
		Channels:   int(decoder.NumChans),
		BitDepth:   int(decoder.BitDepth),
	}
	bytesPerSecond := info.SampleRate * info.Channels * ((info.BitDepth + 7) / 8)
	info.Duration = time.Duration(decoder.PCMSize) * time.Second / time.Duration(bytesPerSecond)
	return info, nil
}

// DecodeWAV decodes an integer PCM WAV stream of any bit depth. Multi-channel
// audio is mixed down to mono by averaging the channels of each frame.
func DecodeWAV(r io.ReadSeeker) (Buffer, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return Buffer{}, errors.New("not a valid WAV file")
	}
	if decoder.WavAudioFormat != wavFormatPCM {
		return Buffer{}, fmt.Errorf("unsupported WAV audio format %d: only PCM (1) supported", decoder.WavAudioFormat)
	}
	if decoder.NumChans == 0 {
		return Buffer{}, errors.New("WAV file declares zero channels")
	}

	pcm, err := decoder.FullPCMBuffer()
	if err != nil {
		return Buffer{}, fmt.Errorf("reading PCM data: %w", err)
	}

	samples := intsToMono(pcm.Data, int(decoder.NumChans), int(decoder.BitDepth))
	return Buffer{Samples: samples, SampleRate: int(decoder.SampleRate)}, nil
}

// intsToMono normalizes integer samples by their bit depth and averages
// interleaved channels.
func intsToMono(data []int, channels, bitDepth int) []float64 {
	maxVal := float64(int64(1) << (uint(bitDepth) - 1))
	offset := 0.0
	if bitDepth == 8 {
		// 8-bit WAV is unsigned
		offset = maxVal
	}

	frames := len(data) / channels
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += (float64(data[i*channels+c]) - offset) / maxVal
		}
		out[i] = sum / float64(channels)
	}
	return out
}

// PCMBuffer converts b into a 16-bit go-audio IntBuffer.
func (b Buffer) PCMBuffer() *goaudio.IntBuffer {
	pcm := b.PCM16()
	data := make([]int, len(pcm))
	for i, s := range pcm {
		data[i] = int(s)
	}
	return &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: 1,
			SampleRate:  b.SampleRate,
		},
		Data:           data,
		SourceBitDepth: 16,
	}
}
