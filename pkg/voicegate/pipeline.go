package voicegate

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/himanishpuri/VoiceGate/pkg/voicegate/align"
	"github.com/himanishpuri/VoiceGate/pkg/voicegate/features"
	"github.com/himanishpuri/VoiceGate/pkg/voicegate/liveness"
	"gopkg.in/yaml.v3"
)

// DefaultDistanceThreshold was calibrated for un-normalized distances over
// utterances of a few seconds. Recalibrate it for other recording setups.
const DefaultDistanceThreshold = 800.0

// PipelineConfig fixes every tunable of the matching pipeline. It is read
// once when an Engine is built.
type PipelineConfig struct {
	CoefficientCount  int     `yaml:"coefficient_count"`
	FrameSize         int     `yaml:"frame_size"`
	HopSize           int     `yaml:"hop_size"`
	NumMels           int     `yaml:"num_mels"`
	TopDB             float64 `yaml:"top_db"`
	ZCRThreshold      float64 `yaml:"zcr_threshold"`
	EnergyThreshold   float64 `yaml:"energy_threshold"`
	AlignmentRadius   int     `yaml:"alignment_radius"`
	DistanceThreshold float64 `yaml:"distance_threshold"`

	// NormalizeDistance compares distance / path length against the
	// threshold instead of the raw cumulative cost.
	NormalizeDistance bool `yaml:"normalize_distance"`
}

func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		CoefficientCount:  features.DefaultCoefficientCount,
		FrameSize:         features.DefaultFrameSize,
		HopSize:           features.DefaultHopSize,
		NumMels:           features.DefaultNumMels,
		TopDB:             features.DefaultTopDB,
		ZCRThreshold:      liveness.DefaultZCRThreshold,
		EnergyThreshold:   liveness.DefaultEnergyThreshold,
		AlignmentRadius:   align.DefaultRadius,
		DistanceThreshold: DefaultDistanceThreshold,
	}
}

func (c PipelineConfig) featureConfig() features.Config {
	return features.Config{
		CoefficientCount: c.CoefficientCount,
		FrameSize:        c.FrameSize,
		HopSize:          c.HopSize,
		NumMels:          c.NumMels,
		TopDB:            c.TopDB,
	}
}

func (c PipelineConfig) livenessConfig() liveness.Config {
	return liveness.Config{
		FrameSize:       c.FrameSize,
		HopSize:         c.HopSize,
		ZCRThreshold:    c.ZCRThreshold,
		EnergyThreshold: c.EnergyThreshold,
	}
}

// Validate returns every problem with c joined into one error.
func (c PipelineConfig) Validate() error {
	var errs []error
	if err := c.featureConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.ZCRThreshold < 0 {
		errs = append(errs, fmt.Errorf("zcr_threshold must not be negative, got %g", c.ZCRThreshold))
	}
	if c.EnergyThreshold < 0 {
		errs = append(errs, fmt.Errorf("energy_threshold must not be negative, got %g", c.EnergyThreshold))
	}
	if c.AlignmentRadius < 0 {
		errs = append(errs, fmt.Errorf("alignment_radius must not be negative, got %d", c.AlignmentRadius))
	}
	if c.DistanceThreshold <= 0 {
		errs = append(errs, fmt.Errorf("distance_threshold must be positive, got %g", c.DistanceThreshold))
	}
	return errors.Join(errs...)
}

// LoadPipelineConfig reads a YAML pipeline file. Keys left out keep their
// defaults; unknown keys are an error.
func LoadPipelineConfig(path string) (PipelineConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return PipelineConfig{}, fmt.Errorf("pipeline config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadPipelineConfigFromReader(f)
	if err != nil {
		return PipelineConfig{}, fmt.Errorf("pipeline config %q: %w", path, err)
	}
	return cfg, nil
}

func LoadPipelineConfigFromReader(r io.Reader) (PipelineConfig, error) {
	cfg := DefaultPipelineConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return PipelineConfig{}, fmt.Errorf("decode yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return PipelineConfig{}, err
	}
	return cfg, nil
}
