package features

import (
	"errors"
	"fmt"
)

const (
	DefaultCoefficientCount = 13
	DefaultFrameSize        = 2048
	DefaultHopSize          = 512
	DefaultNumMels          = 128
	DefaultTopDB            = 80.0
)

// Config fixes the MFCC analysis parameters. TopDB <= 0 disables the dynamic
// range clip.
type Config struct {
	CoefficientCount int
	FrameSize        int
	HopSize          int
	NumMels          int
	TopDB            float64
}

func DefaultConfig() Config {
	return Config{
		CoefficientCount: DefaultCoefficientCount,
		FrameSize:        DefaultFrameSize,
		HopSize:          DefaultHopSize,
		NumMels:          DefaultNumMels,
		TopDB:            DefaultTopDB,
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.CoefficientCount <= 0 {
		errs = append(errs, fmt.Errorf("coefficient count must be positive, got %d", c.CoefficientCount))
	}
	if c.FrameSize < 2 {
		errs = append(errs, fmt.Errorf("frame size must be at least 2, got %d", c.FrameSize))
	}
	if c.HopSize <= 0 {
		errs = append(errs, fmt.Errorf("hop size must be positive, got %d", c.HopSize))
	}
	if c.NumMels <= 0 {
		errs = append(errs, fmt.Errorf("mel band count must be positive, got %d", c.NumMels))
	} else if c.CoefficientCount > c.NumMels {
		errs = append(errs, fmt.Errorf("coefficient count %d exceeds mel band count %d", c.CoefficientCount, c.NumMels))
	}
	return errors.Join(errs...)
}
