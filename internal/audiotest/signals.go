// Package audiotest generates deterministic synthetic recordings for tests.
package audiotest

import (
	"math"
	"math/rand"

	"github.com/himanishpuri/VoiceGate/pkg/voicegate/audio"
)

const DefaultSampleRate = audio.DefaultSampleRate

// Generate builds a buffer of n samples from waveform.
func Generate(sampleRate, n int, waveform func(i int) float64) audio.Buffer {
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = waveform(i)
	}
	return audio.FromFloat64(samples, sampleRate)
}

// Silence returns n zero samples.
func Silence(sampleRate, n int) audio.Buffer {
	return Generate(sampleRate, n, func(int) float64 { return 0 })
}

// Constant returns a flat DC signal.
func Constant(sampleRate, n int, value float64) audio.Buffer {
	return Generate(sampleRate, n, func(int) float64 { return value })
}

// Sine returns a pure tone.
func Sine(sampleRate, n int, frequency, amplitude float64) audio.Buffer {
	return Generate(sampleRate, n, func(i int) float64 {
		t := float64(i) / float64(sampleRate)
		return amplitude * math.Sin(2*math.Pi*frequency*t)
	})
}

// Noise returns uniform white noise in [-amplitude, amplitude].
func Noise(sampleRate, n int, amplitude float64, seed int64) audio.Buffer {
	rng := rand.New(rand.NewSource(seed))
	return Generate(sampleRate, n, func(int) float64 {
		return amplitude * (2*rng.Float64() - 1)
	})
}

// Voice describes a crude voiced speaker: a harmonic source whose pitch glides
// and whose loudness follows a syllable envelope, plus a noise floor.
type Voice struct {
	F0           float64   // fundamental in Hz
	Harmonics    []float64 // relative amplitude of harmonic k+1
	GlideDepth   float64   // fractional pitch modulation
	GlideRate    float64   // Hz
	SyllableRate float64   // Hz
	Amplitude    float64
	NoiseLevel   float64
}

// Alice and Bob are two clearly different synthetic speakers.
var (
	Alice = Voice{
		F0:           140,
		Harmonics:    []float64{1, 0.6, 0.45, 0.3, 0.2, 0.12, 0.08},
		GlideDepth:   0.08,
		GlideRate:    2,
		SyllableRate: 3,
		Amplitude:    0.5,
		NoiseLevel:   0.01,
	}
	Bob = Voice{
		F0:           260,
		Harmonics:    []float64{0.4, 1, 0.2, 0.7, 0.1, 0.35},
		GlideDepth:   0.2,
		GlideRate:    1.1,
		SyllableRate: 1.7,
		Amplitude:    0.5,
		NoiseLevel:   0.01,
	}
)

// Render produces n samples of v. seed only changes the noise floor, so two
// renders with different seeds are the same utterance recorded twice.
func (v Voice) Render(sampleRate, n int, seed int64) audio.Buffer {
	rng := rand.New(rand.NewSource(seed))

	var norm float64
	for _, h := range v.Harmonics {
		norm += h
	}
	if norm == 0 {
		norm = 1
	}

	phase := 0.0
	dt := 1 / float64(sampleRate)
	return Generate(sampleRate, n, func(i int) float64 {
		t := float64(i) * dt
		f := v.F0 * (1 + v.GlideDepth*math.Sin(2*math.Pi*v.GlideRate*t))
		phase += 2 * math.Pi * f * dt

		var s float64
		for k, h := range v.Harmonics {
			s += h * math.Sin(float64(k+1)*phase)
		}
		env := 0.55 + 0.45*math.Sin(2*math.Pi*v.SyllableRate*t)
		return v.Amplitude*env*s/norm + v.NoiseLevel*(2*rng.Float64()-1)
	})
}

// Seconds converts a duration in seconds to a sample count.
func Seconds(sampleRate int, s float64) int {
	return int(s * float64(sampleRate))
}

// Corrupt returns a copy of b with sample i replaced by v.
func Corrupt(b audio.Buffer, i int, v float64) audio.Buffer {
	out := audio.FromFloat64(b.Samples, b.SampleRate)
	out.Samples[i] = v
	return out
}
