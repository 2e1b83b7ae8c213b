package voicegate

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/himanishpuri/VoiceGate/internal/observe"
	"github.com/himanishpuri/VoiceGate/pkg/logger"
	"github.com/himanishpuri/VoiceGate/pkg/models"
	"github.com/himanishpuri/VoiceGate/pkg/utils"
	"github.com/himanishpuri/VoiceGate/pkg/voicegate/audio"
	"github.com/himanishpuri/VoiceGate/pkg/voicegate/features"
	"golang.org/x/sync/errgroup"
)

// voiceService is the default implementation of the Service interface.
type voiceService struct {
	engine  *Engine
	storage Storage
	log     Logger
	metrics *observe.Metrics
	config  *Config
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}

	engine, err := NewEngine(cfg.Pipeline)
	if err != nil {
		return nil, err
	}

	var stor Storage
	switch {
	case cfg.Storage != nil:
		stor = cfg.Storage
	case cfg.TemplateDir != "":
		stor, err = NewDirStorage(cfg.TemplateDir)
	default:
		stor, err = NewSQLiteStorage(cfg.DBPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}

	return &voiceService{
		engine:  engine,
		storage: stor,
		log:     cfg.Logger,
		metrics: cfg.Metrics,
		config:  cfg,
	}, nil
}

func (s *voiceService) Engine() *Engine { return s.engine }

// load decodes audioPath. Decoding failures are ErrInvalidAudio; a canceled
// or expired context is returned as is.
func (s *voiceService) load(ctx context.Context, audioPath string) (audio.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return audio.Buffer{}, err
	}
	buf, err := audio.LoadFile(ctx, audioPath, s.config.TempDir, s.config.SampleRate)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return audio.Buffer{}, fmt.Errorf("loading %s: %w", audioPath, ctxErr)
		}
		return audio.Buffer{}, fmt.Errorf("%w: %w", ErrInvalidAudio, err)
	}
	return buf, nil
}

// Enroll stores buf as the template of username, replacing any previous
// one. Audio that fails the liveness check or yields no usable features is
// refused so that a stored template can always be compared.
func (s *voiceService) Enroll(ctx context.Context, username string, buf audio.Buffer) (*models.Speaker, error) {
	if !utils.ValidUsername(username) {
		s.metrics.RecordEnrollment(ctx, "rejected")
		return nil, fmt.Errorf("%w: %q", ErrInvalidUsername, username)
	}
	s.log.Infof("Enrolling speaker: %s (%.2fs)", username, buf.Duration().Seconds())

	// 1. Liveness
	report, err := s.engine.CheckLiveness(buf)
	if err != nil {
		s.metrics.RecordEnrollment(ctx, "rejected")
		return nil, fmt.Errorf("enrollment audio: %w", err)
	}
	if !report.Live {
		s.metrics.RecordEnrollment(ctx, "rejected")
		s.log.Warnf("Enrollment for %s rejected: %s (zcr=%.4f energy=%.5f)",
			username, report.Reason, report.ZeroCrossingRate, report.Energy)
		return nil, fmt.Errorf("%w: %s", ErrEnrollmentRejected, report.Reason)
	}

	// 2. Features must be extractable
	seq, err := s.engine.Extract(buf)
	if err != nil {
		s.metrics.RecordEnrollment(ctx, "rejected")
		return nil, fmt.Errorf("enrollment audio: %w", err)
	}
	s.log.Debugf("Template for %s has %d frames", username, seq.Len())

	// 3. Store
	sp, err := s.storage.RegisterSpeaker(ctx, username, buf)
	if err != nil {
		s.metrics.RecordEnrollment(ctx, "error")
		return nil, fmt.Errorf("failed to register speaker: %w", err)
	}

	s.metrics.RecordEnrollment(ctx, "stored")
	s.log.Infof("Successfully enrolled %s (ID=%s)", username, sp.ID)
	return &sp, nil
}

func (s *voiceService) EnrollFile(ctx context.Context, username, audioPath string) (*models.Speaker, error) {
	buf, err := s.load(ctx, audioPath)
	if err != nil {
		return nil, err
	}
	return s.Enroll(ctx, username, buf)
}

// template returns nil when username has no template.
func (s *voiceService) template(ctx context.Context, username string) (*audio.Buffer, error) {
	tmpl, err := s.storage.GetTemplate(ctx, username)
	if errors.Is(err, ErrSpeakerNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading template: %w", err)
	}
	return &tmpl, nil
}

// Verify decides whether probe was spoken by username. A non-positive
// threshold selects the configured one.
func (s *voiceService) Verify(ctx context.Context, username string, probe audio.Buffer, threshold float64) (models.VerificationResult, error) {
	s.log.Infof("Verifying speaker: %s", username)

	tmpl, err := s.template(ctx, username)
	if err != nil {
		s.metrics.RecordVerifyError(ctx, ErrorKind(err))
		return models.VerificationResult{}, err
	}

	res, err := s.engine.Verify(username, probe, tmpl, threshold)
	if err != nil {
		s.metrics.RecordVerifyError(ctx, ErrorKind(err))
		s.log.Warnf("Verification of %s could not be evaluated: %v", username, err)
		return models.VerificationResult{}, err
	}

	s.metrics.RecordVerification(ctx, res.Decision.String(), res.Elapsed)
	if res.PathLength > 0 {
		score := res.Distance
		if s.engine.Config().NormalizeDistance {
			score = res.NormalizedDistance
		}
		s.metrics.RecordDistance(ctx, "verify", score)
	}
	s.log.Debugf("Alignment distance for %s: %.4f (normalized %.4f, threshold %.2f)",
		username, res.Distance, res.NormalizedDistance, res.Threshold)
	s.log.Infof("Verification of %s: %s", username, res.Decision)
	return res, nil
}

func (s *voiceService) VerifyFile(ctx context.Context, username, audioPath string, threshold float64) (models.VerificationResult, error) {
	probe, err := s.load(ctx, audioPath)
	if err != nil {
		s.metrics.RecordVerifyError(ctx, ErrorKind(err))
		return models.VerificationResult{}, err
	}
	return s.Verify(ctx, username, probe, threshold)
}

// Identify compares probe against every enrolled speaker in parallel and
// ranks them by distance.
func (s *voiceService) Identify(ctx context.Context, probe audio.Buffer) (models.IdentifyResult, error) {
	start := time.Now()
	threshold := s.engine.Threshold(0)
	out := models.IdentifyResult{Decision: models.NotEnrolled, Threshold: threshold}

	// 1. Enrolled speakers
	speakers, err := s.storage.ListSpeakers(ctx)
	if err != nil {
		return models.IdentifyResult{}, fmt.Errorf("listing speakers: %w", err)
	}
	if len(speakers) == 0 {
		out.Elapsed = time.Since(start)
		return out, nil
	}

	// 2. Liveness
	report, err := s.engine.CheckLiveness(probe)
	if err != nil {
		return models.IdentifyResult{}, fmt.Errorf("probe liveness: %w", err)
	}
	out.ZeroCrossingRate = report.ZeroCrossingRate
	out.Energy = report.Energy
	if !report.Live {
		out.Decision = models.SpoofRejected
		out.Elapsed = time.Since(start)
		s.metrics.RecordIdentification(ctx, false)
		return out, nil
	}

	// 3. Probe features, extracted once
	probeSeq, err := s.engine.Extract(probe)
	if err != nil {
		return models.IdentifyResult{}, fmt.Errorf("probe features: %w", err)
	}

	// 4. Align against every template
	matches := make([]*models.IdentifyMatch, len(speakers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, sp := range speakers {
		g.Go(func() error {
			m, err := s.matchSpeaker(gctx, sp, probeSeq, threshold)
			if err != nil {
				return err
			}
			matches[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.IdentifyResult{}, err
	}

	// 5. Rank
	for _, m := range matches {
		if m != nil {
			out.Matches = append(out.Matches, *m)
		}
	}
	sort.SliceStable(out.Matches, func(i, j int) bool {
		return out.Matches[i].Distance < out.Matches[j].Distance
	})

	out.Decision = models.Denied
	if len(out.Matches) > 0 {
		best := out.Matches[0]
		out.Best = &best
		out.Decision = best.Decision
	}
	out.Elapsed = time.Since(start)

	s.metrics.RecordIdentification(ctx, out.Decision == models.Granted)
	s.log.Infof("Identify compared %d templates in %v: %s", len(out.Matches), out.Elapsed, out.Decision)
	return out, nil
}

// matchSpeaker returns nil for templates that cannot be analysed, such as
// WAV files placed in a template directory by hand.
func (s *voiceService) matchSpeaker(ctx context.Context, sp models.Speaker, probe features.Sequence, threshold float64) (*models.IdentifyMatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tmpl, err := s.storage.GetTemplate(ctx, sp.Username)
	if errors.Is(err, ErrSpeakerNotFound) {
		return nil, nil
	}
	if errors.Is(err, ErrInvalidAudio) {
		s.log.Warnf("Skipping unreadable template of %s: %v", sp.Username, err)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading template of %s: %w", sp.Username, err)
	}

	seq, err := s.engine.Extract(tmpl)
	if errors.Is(err, ErrInvalidAudio) || errors.Is(err, ErrDegenerateAudio) {
		s.log.Warnf("Skipping unusable template of %s: %v", sp.Username, err)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	res, err := s.engine.Align(probe, seq)
	if err != nil {
		return nil, fmt.Errorf("aligning with %s: %w", sp.Username, err)
	}

	score := s.engine.Score(res)
	s.metrics.RecordDistance(ctx, "identify", score)
	return &models.IdentifyMatch{
		SpeakerID: sp.ID,
		Username:  sp.Username,
		Distance:  score,
		Decision:  s.engine.Decide(score, threshold),
	}, nil
}

func (s *voiceService) IdentifyFile(ctx context.Context, audioPath string) (models.IdentifyResult, error) {
	probe, err := s.load(ctx, audioPath)
	if err != nil {
		return models.IdentifyResult{}, err
	}
	return s.Identify(ctx, probe)
}

func (s *voiceService) GetSpeakerByID(ctx context.Context, id string) (*models.Speaker, error) {
	return s.storage.GetSpeakerByID(ctx, id)
}

func (s *voiceService) ListSpeakers(ctx context.Context) ([]models.Speaker, error) {
	return s.storage.ListSpeakers(ctx)
}

// DeleteSpeaker removes a speaker and its template.
func (s *voiceService) DeleteSpeaker(ctx context.Context, id string) error {
	if err := s.storage.DeleteSpeakerByID(ctx, id); err != nil {
		return err
	}
	s.log.Infof("Deleted speaker ID=%s", id)
	return nil
}

// Close releases all resources held by the service.
func (s *voiceService) Close() error {
	return s.storage.Close()
}
