package voicegate

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/himanishpuri/VoiceGate/internal/audiotest"
	"github.com/himanishpuri/VoiceGate/pkg/models"
	"github.com/himanishpuri/VoiceGate/pkg/voicegate/audio"
)

const rate = audiotest.DefaultSampleRate

var utterance = audiotest.Seconds(rate, 1.5)

func newTestEngine(t *testing.T, mutate ...func(*PipelineConfig)) *Engine {
	t.Helper()
	cfg := DefaultPipelineConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	e, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return e
}

func TestVerifyGranted(t *testing.T) {
	e := newTestEngine(t)
	template := audiotest.Alice.Render(rate, utterance, 1)
	probe := audiotest.Alice.Render(rate, utterance, 2)

	res, err := e.Verify("alice", probe, &template, 0)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if res.Decision != models.Granted {
		t.Fatalf("Decision = %s, want granted (distance %.2f)", res.Decision, res.Distance)
	}
	if res.Threshold != DefaultDistanceThreshold {
		t.Errorf("Threshold = %f, want default", res.Threshold)
	}
	if res.PathLength < max(res.ProbeFrames, res.TemplateFrames) {
		t.Errorf("PathLength %d shorter than sequences (%d, %d)", res.PathLength, res.ProbeFrames, res.TemplateFrames)
	}
	t.Logf("same speaker distance: %.3f over %d steps", res.Distance, res.PathLength)
}

func TestVerifySelfIsZero(t *testing.T) {
	e := newTestEngine(t)
	template := audiotest.Alice.Render(rate, utterance, 1)

	res, err := e.Verify("alice", template, &template, 0)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if res.Distance > 1e-9 || res.Decision != models.Granted {
		t.Errorf("self verification: distance %g decision %s", res.Distance, res.Decision)
	}
}

func TestVerifyNotEnrolled(t *testing.T) {
	e := newTestEngine(t)

	// the probe is not examined, so even invalid audio is fine
	res, err := e.Verify("carol", audio.FromFloat64(nil, 0), nil, 0)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if res.Decision != models.NotEnrolled {
		t.Errorf("Decision = %s, want not_enrolled", res.Decision)
	}
}

func TestVerifySpoofRejected(t *testing.T) {
	e := newTestEngine(t)
	template := audiotest.Alice.Render(rate, utterance, 1)

	for name, probe := range map[string]audio.Buffer{
		"silence":     audiotest.Silence(rate, utterance),
		"dc":          audiotest.Constant(rate, utterance, 0.3),
		"quiet noise": audiotest.Noise(rate, utterance, 0.0005, 9),
	} {
		res, err := e.Verify("alice", probe, &template, 0)
		if err != nil {
			t.Fatalf("%s: Verify failed: %v", name, err)
		}
		if res.Decision != models.SpoofRejected {
			t.Errorf("%s: Decision = %s, want spoof_rejected", name, res.Decision)
		}
		if res.PathLength != 0 {
			t.Errorf("%s: alignment ran for a spoofed probe", name)
		}
	}
}

func TestVerifyDenied(t *testing.T) {
	e := newTestEngine(t)
	template := audiotest.Alice.Render(rate, utterance, 1)
	same := audiotest.Alice.Render(rate, utterance, 2)
	other := audiotest.Bob.Render(rate, utterance, 3)

	sameRes, err := e.Compare(same, template)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	otherRes, err := e.Compare(other, template)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if otherRes.Distance <= sameRes.Distance {
		t.Fatalf("impostor distance %.3f not above genuine %.3f", otherRes.Distance, sameRes.Distance)
	}

	// any threshold between the two separates them
	threshold := (sameRes.Distance + otherRes.Distance) / 2
	res, err := e.Verify("alice", other, &template, threshold)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if res.Decision != models.Denied {
		t.Errorf("Decision = %s, want denied", res.Decision)
	}
	res, err = e.Verify("alice", same, &template, threshold)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if res.Decision != models.Granted {
		t.Errorf("Decision = %s, want granted", res.Decision)
	}
	t.Logf("genuine %.3f impostor %.3f", sameRes.Distance, otherRes.Distance)
}

func TestVerifyDefaultThreshold(t *testing.T) {
	// Cumulative distance grows with length; at 7 s the default threshold
	// sits between genuine and impostor scores for the synthetic speakers.
	e := newTestEngine(t)
	long := audiotest.Seconds(rate, 7)
	template := audiotest.Alice.Render(rate, long, 1)

	tests := []struct {
		name  string
		probe audio.Buffer
		want  models.Decision
	}{
		{"same speaker", audiotest.Alice.Render(rate, long, 2), models.Granted},
		{"different speaker", audiotest.Bob.Render(rate, long, 3), models.Denied},
		{"noise", audiotest.Noise(rate, long, 0.3, 7), models.Denied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Verify("alice", tt.probe, &template, 0)
			if err != nil {
				t.Fatalf("Verify failed: %v", err)
			}
			if res.Threshold != DefaultDistanceThreshold {
				t.Errorf("Threshold = %f, want %f", res.Threshold, DefaultDistanceThreshold)
			}
			if res.Decision != tt.want {
				t.Errorf("Decision = %s, want %s (distance %.1f)", res.Decision, tt.want, res.Distance)
			}
			t.Logf("%s: distance %.1f", tt.name, res.Distance)
		})
	}
}

func TestVerifyNonFiniteAudio(t *testing.T) {
	e := newTestEngine(t)
	template := audiotest.Alice.Render(rate, utterance, 1)
	probe := audiotest.Alice.Render(rate, utterance, 2)

	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		res, err := e.Verify("alice", audiotest.Corrupt(probe, 5000, v), &template, 0)
		if !errors.Is(err, ErrInvalidAudio) {
			t.Errorf("probe with %v: error = %v, want ErrInvalidAudio", v, err)
		}
		if err == nil || res.Decision == models.Denied || res.Decision == models.Granted {
			t.Errorf("probe with %v: got decision %s distance %g", v, res.Decision, res.Distance)
		}
		if ErrorKind(err) != KindInvalidAudio {
			t.Errorf("probe with %v: ErrorKind = %s", v, ErrorKind(err))
		}

		bad := audiotest.Corrupt(template, 5000, v)
		if _, err := e.Verify("alice", probe, &bad, 0); !errors.Is(err, ErrInvalidAudio) {
			t.Errorf("template with %v: error = %v, want ErrInvalidAudio", v, err)
		}
	}
}

func TestVerifyErrors(t *testing.T) {
	e := newTestEngine(t)
	template := audiotest.Alice.Render(rate, utterance, 1)
	flat := audiotest.Constant(rate, utterance, 0.5)

	_, err := e.Verify("alice", audiotest.Sine(rate, 100, 440, 0.5), &template, 0)
	if !errors.Is(err, ErrInvalidAudio) {
		t.Errorf("short probe: error = %v, want ErrInvalidAudio", err)
	}

	_, err = e.Verify("alice", audiotest.Alice.Render(rate, utterance, 2), &flat, 0)
	if !errors.Is(err, ErrDegenerateAudio) {
		t.Errorf("flat template: error = %v, want ErrDegenerateAudio", err)
	}
	if ErrorKind(err) != KindDegenerateAudio {
		t.Errorf("ErrorKind = %s", ErrorKind(err))
	}
}

func TestVerifyNormalizedDistance(t *testing.T) {
	e := newTestEngine(t, func(c *PipelineConfig) {
		c.NormalizeDistance = true
		c.DistanceThreshold = 5
	})
	template := audiotest.Alice.Render(rate, utterance, 1)
	probe := audiotest.Alice.Render(rate, utterance, 2)

	res, err := e.Verify("alice", probe, &template, 0)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	want := res.Distance / float64(res.PathLength)
	if math.Abs(res.NormalizedDistance-want) > 1e-12 {
		t.Errorf("NormalizedDistance = %g, want %g", res.NormalizedDistance, want)
	}
	if res.Decision != models.Granted {
		t.Errorf("Decision = %s (normalized %.3f)", res.Decision, res.NormalizedDistance)
	}
}

func TestVerifyAmplitudeInvariant(t *testing.T) {
	e := newTestEngine(t)
	template := audiotest.Alice.Render(rate, utterance, 1)

	res, err := e.Verify("alice", template.Scale(0.5), &template, 0)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if res.Distance > 1e-6 {
		t.Errorf("scaled copy distance = %g, want about 0", res.Distance)
	}
}

func TestDecide(t *testing.T) {
	e := newTestEngine(t)
	tests := []struct {
		distance, threshold float64
		want                models.Decision
	}{
		{0, 800, models.Granted},
		{800, 800, models.Granted},
		{800.0001, 800, models.Denied},
		{5000, 800, models.Denied},
	}
	for _, tt := range tests {
		if got := e.Decide(tt.distance, tt.threshold); got != tt.want {
			t.Errorf("Decide(%g, %g) = %s, want %s", tt.distance, tt.threshold, got, tt.want)
		}
	}
}

func TestEngineConcurrentUse(t *testing.T) {
	e := newTestEngine(t)
	template := audiotest.Alice.Render(rate, utterance, 1)
	probe := audiotest.Bob.Render(rate, utterance, 2)

	want, err := e.Compare(probe, template)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := e.Compare(probe, template)
			if err != nil {
				errs <- err
				return
			}
			if got.Distance != want.Distance {
				errs <- errors.New("distance differs between concurrent runs")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestNewEngineInvalidConfig(t *testing.T) {
	cfg := DefaultPipelineConfig()
	cfg.AlignmentRadius = -1
	cfg.DistanceThreshold = 0
	if _, err := NewEngine(cfg); err == nil {
		t.Error("expected error for invalid pipeline config")
	}
}
