// Package features turns audio buffers into normalized MFCC sequences.
package features

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/himanishpuri/VoiceGate/pkg/voicegate/audio"
	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// ErrDegenerateAudio is returned when some coefficient does not vary across
// frames, which happens for silence, DC and single-frame input.
var ErrDegenerateAudio = errors.New("degenerate audio")

const (
	powerFloor = 1e-10
	stdRelTol  = 1e-12
)

// Extractor computes MFCC feature sequences. It is immutable after
// construction and safe for concurrent use.
type Extractor struct {
	cfg    Config
	window []float64
	dct    [][]float64

	// filterbanks caches one mel filterbank per sample rate.
	filterbanks sync.Map
}

func NewExtractor(cfg Config) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid feature config: %w", err)
	}

	// periodic Hann: first L points of an L+1 symmetric window
	win := window.Hann(cfg.FrameSize + 1)[:cfg.FrameSize]

	return &Extractor{
		cfg:    cfg,
		window: win,
		dct:    dctMatrix(cfg.CoefficientCount, cfg.NumMels),
	}, nil
}

// Config returns the parameters the extractor was built with.
func (e *Extractor) Config() Config { return e.cfg }

// FrameCount returns how many analysis frames a buffer of n samples yields.
func (e *Extractor) FrameCount(n int) int {
	if n < e.cfg.FrameSize {
		return 0
	}
	return (n-e.cfg.FrameSize)/e.cfg.HopSize + 1
}

// Extract returns the per-coefficient normalized MFCC sequence of buf.
func (e *Extractor) Extract(buf audio.Buffer) (Sequence, error) {
	if err := buf.ValidateFrames(e.cfg.FrameSize); err != nil {
		return Sequence{}, err
	}

	// 1. Power spectrogram
	power := e.powerSpectrogram(buf.Samples)

	// 2. Mel energies in dB
	melDB := e.melDecibels(power, e.filterbank(buf.SampleRate))

	// 3. Cepstral coefficients
	frames := make([]Vector, len(melDB))
	for t, bands := range melDB {
		v := make(Vector, e.cfg.CoefficientCount)
		for k, row := range e.dct {
			var sum float64
			for i, w := range row {
				sum += w * bands[i]
			}
			v[k] = sum
		}
		frames[t] = v
	}

	// 4. Normalize each coefficient across frames
	if err := normalize(frames, e.cfg.CoefficientCount); err != nil {
		return Sequence{}, err
	}

	return NewSequence(frames, e.cfg.CoefficientCount)
}

func (e *Extractor) filterbank(sampleRate int) []melFilter {
	if fb, ok := e.filterbanks.Load(sampleRate); ok {
		return fb.([]melFilter)
	}
	fb := newMelFilterbank(e.cfg.NumMels, e.cfg.FrameSize, sampleRate)
	actual, _ := e.filterbanks.LoadOrStore(sampleRate, fb)
	return actual.([]melFilter)
}

// powerSpectrogram frames samples without padding and returns |X|^2 of the
// non-negative frequency bins for every frame.
func (e *Extractor) powerSpectrogram(samples []float64) [][]float64 {
	size, hop := e.cfg.FrameSize, e.cfg.HopSize
	bins := size/2 + 1

	spectrogram := make([][]float64, 0, e.FrameCount(len(samples)))
	frame := make([]float64, size)
	for start := 0; start+size <= len(samples); start += hop {
		for i := 0; i < size; i++ {
			frame[i] = samples[start+i] * e.window[i]
		}
		spec := fft.FFTReal(frame)

		p := make([]float64, bins)
		for k := 0; k < bins; k++ {
			re, im := real(spec[k]), imag(spec[k])
			p[k] = re*re + im*im
		}
		spectrogram = append(spectrogram, p)
	}
	return spectrogram
}

// melDecibels applies the filterbank, converts to dB and clips everything
// more than TopDB below the loudest band of the whole utterance.
func (e *Extractor) melDecibels(power [][]float64, filters []melFilter) [][]float64 {
	out := make([][]float64, len(power))
	peak := math.Inf(-1)
	for t, p := range power {
		bands := make([]float64, len(filters))
		for m, f := range filters {
			db := 10 * math.Log10(math.Max(f.apply(p), powerFloor))
			bands[m] = db
			if db > peak {
				peak = db
			}
		}
		out[t] = bands
	}

	if e.cfg.TopDB > 0 {
		floor := peak - e.cfg.TopDB
		for _, bands := range out {
			for m, db := range bands {
				if db < floor {
					bands[m] = floor
				}
			}
		}
	}
	return out
}

// normalize rescales each coefficient to zero mean and unit population
// standard deviation in place.
func normalize(frames []Vector, dim int) error {
	n := float64(len(frames))
	for k := 0; k < dim; k++ {
		var mean float64
		for _, f := range frames {
			mean += f[k]
		}
		mean /= n

		var variance float64
		for _, f := range frames {
			d := f[k] - mean
			variance += d * d
		}
		std := math.Sqrt(variance / n)

		if math.IsNaN(std) || math.IsInf(std, 0) {
			return fmt.Errorf("%w: coefficient %d is not finite", ErrDegenerateAudio, k)
		}
		if std <= stdRelTol*math.Max(1, math.Abs(mean)) {
			return fmt.Errorf("%w: coefficient %d is constant across %d frames", ErrDegenerateAudio, k, len(frames))
		}
		for _, f := range frames {
			f[k] = (f[k] - mean) / std
		}
	}
	return nil
}
