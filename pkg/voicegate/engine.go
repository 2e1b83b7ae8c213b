// Package voicegate verifies speakers by comparing a spoken probe against an
// enrolled voice template.
//
// The Engine is the pure matching core: liveness check, MFCC extraction,
// FastDTW alignment and a threshold decision. The Service wraps it with
// template storage, audio file decoding, logging and metrics.
package voicegate

import (
	"fmt"
	"time"

	"github.com/himanishpuri/VoiceGate/pkg/models"
	"github.com/himanishpuri/VoiceGate/pkg/voicegate/align"
	"github.com/himanishpuri/VoiceGate/pkg/voicegate/audio"
	"github.com/himanishpuri/VoiceGate/pkg/voicegate/features"
	"github.com/himanishpuri/VoiceGate/pkg/voicegate/liveness"
)

// Engine is immutable after NewEngine and safe for concurrent use.
type Engine struct {
	cfg       PipelineConfig
	extractor *features.Extractor
	detector  *liveness.Detector
	aligner   *align.Aligner
}

func NewEngine(cfg PipelineConfig) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}

	extractor, err := features.NewExtractor(cfg.featureConfig())
	if err != nil {
		return nil, err
	}
	detector, err := liveness.NewDetector(cfg.livenessConfig())
	if err != nil {
		return nil, err
	}
	aligner, err := align.NewAligner(align.Config{Radius: cfg.AlignmentRadius})
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:       cfg,
		extractor: extractor,
		detector:  detector,
		aligner:   aligner,
	}, nil
}

func (e *Engine) Config() PipelineConfig { return e.cfg }

func (e *Engine) CheckLiveness(buf audio.Buffer) (liveness.Report, error) {
	return e.detector.Check(buf)
}

func (e *Engine) Extract(buf audio.Buffer) (features.Sequence, error) {
	return e.extractor.Extract(buf)
}

// Align compares two already extracted sequences.
func (e *Engine) Align(probe, template features.Sequence) (align.Result, error) {
	return e.aligner.Align(probe, template)
}

// Compare extracts features from both buffers and aligns them.
func (e *Engine) Compare(probe, template audio.Buffer) (align.Result, error) {
	p, err := e.extractor.Extract(probe)
	if err != nil {
		return align.Result{}, fmt.Errorf("probe features: %w", err)
	}
	t, err := e.extractor.Extract(template)
	if err != nil {
		return align.Result{}, fmt.Errorf("template features: %w", err)
	}
	return e.aligner.Align(p, t)
}

// Score is the value compared against the threshold: the raw distance, or
// the per-step distance when NormalizeDistance is set.
func (e *Engine) Score(res align.Result) float64 {
	if e.cfg.NormalizeDistance {
		return res.Normalized()
	}
	return res.Distance
}

// Threshold resolves a per-call threshold; non-positive values select the
// configured one.
func (e *Engine) Threshold(threshold float64) float64 {
	if threshold <= 0 {
		return e.cfg.DistanceThreshold
	}
	return threshold
}

// Decide grants access when distance is at or below threshold.
func (e *Engine) Decide(distance, threshold float64) models.Decision {
	if distance <= threshold {
		return models.Granted
	}
	return models.Denied
}

// Verify runs the full decision flow for one attempt. A nil template means
// the identity is not enrolled and the probe is not examined. Audio that
// cannot be evaluated yields an error, never a Decision.
func (e *Engine) Verify(identity string, probe audio.Buffer, template *audio.Buffer, threshold float64) (models.VerificationResult, error) {
	start := time.Now()
	res := models.VerificationResult{
		Decision:  models.NotEnrolled,
		Username:  identity,
		Threshold: e.Threshold(threshold),
	}

	// 1. Enrollment lookup
	if template == nil {
		res.Elapsed = time.Since(start)
		return res, nil
	}

	// 2. Liveness
	report, err := e.detector.Check(probe)
	if err != nil {
		return models.VerificationResult{}, fmt.Errorf("probe liveness: %w", err)
	}
	res.ZeroCrossingRate = report.ZeroCrossingRate
	res.Energy = report.Energy
	if !report.Live {
		res.Decision = models.SpoofRejected
		res.Elapsed = time.Since(start)
		return res, nil
	}

	// 3. Features
	p, err := e.extractor.Extract(probe)
	if err != nil {
		return models.VerificationResult{}, fmt.Errorf("probe features: %w", err)
	}
	t, err := e.extractor.Extract(*template)
	if err != nil {
		return models.VerificationResult{}, fmt.Errorf("template features: %w", err)
	}
	res.ProbeFrames = p.Len()
	res.TemplateFrames = t.Len()

	// 4. Alignment
	aligned, err := e.aligner.Align(p, t)
	if err != nil {
		return models.VerificationResult{}, fmt.Errorf("alignment: %w", err)
	}
	res.Distance = aligned.Distance
	res.NormalizedDistance = aligned.Normalized()
	res.PathLength = len(aligned.Path)

	// 5. Threshold
	res.Decision = e.Decide(e.Score(aligned), res.Threshold)
	res.Elapsed = time.Since(start)
	return res, nil
}
