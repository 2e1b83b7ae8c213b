// Package liveness implements a coarse anti-spoofing check based on the
// zero-crossing rate and RMS energy of a recording. It catches silence, flat
// tones and very quiet playback; it is not a defence against deliberate
// adversarial replay.
package liveness

import (
	"errors"
	"fmt"
	"math"

	"github.com/himanishpuri/VoiceGate/pkg/voicegate/audio"
)

const (
	DefaultFrameSize       = 2048
	DefaultHopSize         = 512
	DefaultZCRThreshold    = 0.01
	DefaultEnergyThreshold = 0.001

	// samples with magnitude at or below zeroEpsilon count as zero, and zero
	// counts as positive
	zeroEpsilon = 1e-10
)

type Config struct {
	FrameSize       int
	HopSize         int
	ZCRThreshold    float64
	EnergyThreshold float64
}

func DefaultConfig() Config {
	return Config{
		FrameSize:       DefaultFrameSize,
		HopSize:         DefaultHopSize,
		ZCRThreshold:    DefaultZCRThreshold,
		EnergyThreshold: DefaultEnergyThreshold,
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.FrameSize < 2 {
		errs = append(errs, fmt.Errorf("frame size must be at least 2, got %d", c.FrameSize))
	}
	if c.HopSize <= 0 {
		errs = append(errs, fmt.Errorf("hop size must be positive, got %d", c.HopSize))
	}
	if c.ZCRThreshold < 0 {
		errs = append(errs, fmt.Errorf("zcr threshold must not be negative, got %g", c.ZCRThreshold))
	}
	if c.EnergyThreshold < 0 {
		errs = append(errs, fmt.Errorf("energy threshold must not be negative, got %g", c.EnergyThreshold))
	}
	return errors.Join(errs...)
}

// Reason explains a liveness verdict.
type Reason string

const (
	ReasonLive      Reason = "live"
	ReasonLowZCR    Reason = "zero-crossing rate below threshold"
	ReasonLowEnergy Reason = "energy below threshold"
)

// Report carries the measured statistics alongside the verdict.
type Report struct {
	ZeroCrossingRate float64
	Energy           float64
	Frames           int
	Live             bool
	Reason           Reason
}

// Detector is immutable and safe for concurrent use.
type Detector struct {
	cfg Config
}

func NewDetector(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid liveness config: %w", err)
	}
	return &Detector{cfg: cfg}, nil
}

func (d *Detector) Config() Config { return d.cfg }

// Check measures buf frame by frame and compares the mean zero-crossing rate
// and mean RMS energy against the configured thresholds.
func (d *Detector) Check(buf audio.Buffer) (Report, error) {
	if err := buf.ValidateFrames(d.cfg.FrameSize); err != nil {
		return Report{}, err
	}

	size, hop := d.cfg.FrameSize, d.cfg.HopSize
	var zcrSum, rmsSum float64
	frames := 0
	for start := 0; start+size <= len(buf.Samples); start += hop {
		frame := buf.Samples[start : start+size]
		zcrSum += zeroCrossingRate(frame)
		rmsSum += rms(frame)
		frames++
	}

	r := Report{
		ZeroCrossingRate: zcrSum / float64(frames),
		Energy:           rmsSum / float64(frames),
		Frames:           frames,
	}

	switch {
	case r.ZeroCrossingRate < d.cfg.ZCRThreshold:
		r.Reason = ReasonLowZCR
	case r.Energy < d.cfg.EnergyThreshold:
		r.Reason = ReasonLowEnergy
	default:
		r.Live = true
		r.Reason = ReasonLive
	}
	return r, nil
}

// IsLive is the boolean form of Check.
func (d *Detector) IsLive(buf audio.Buffer) (bool, error) {
	r, err := d.Check(buf)
	if err != nil {
		return false, err
	}
	return r.Live, nil
}

func zeroCrossingRate(frame []float64) float64 {
	crossings := 0
	prev := positive(frame[0])
	for _, s := range frame[1:] {
		cur := positive(s)
		if cur != prev {
			crossings++
		}
		prev = cur
	}
	return float64(crossings) / float64(len(frame))
}

func positive(s float64) bool {
	return s > -zeroEpsilon
}

func rms(frame []float64) float64 {
	var sum float64
	for _, s := range frame {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(frame)))
}
