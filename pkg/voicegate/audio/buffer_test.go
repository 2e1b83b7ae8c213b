package audio_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/himanishpuri/VoiceGate/internal/audiotest"
	"github.com/himanishpuri/VoiceGate/pkg/voicegate/audio"
)

func TestFromPCM16(t *testing.T) {
	buf := audio.FromPCM16([]int16{0, 16384, -32768, 32767}, 8000)

	want := []float64{0, 0.5, -1, 32767.0 / 32768.0}
	for i, w := range want {
		if math.Abs(buf.Samples[i]-w) > 1e-12 {
			t.Errorf("sample %d = %f, want %f", i, buf.Samples[i], w)
		}
	}
	if buf.SampleRate != 8000 {
		t.Errorf("SampleRate = %d, want 8000", buf.SampleRate)
	}
}

func TestFromFloat64Copies(t *testing.T) {
	src := []float64{0.1, 0.2, 0.3}
	buf := audio.FromFloat64(src, 16000)
	src[0] = 99

	if buf.Samples[0] != 0.1 {
		t.Errorf("buffer aliases caller slice: got %f", buf.Samples[0])
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		buf     audio.Buffer
		frame   int
		wantErr bool
	}{
		{"valid", audiotest.Sine(16000, 4096, 440, 0.5), 2048, false},
		{"exactly one frame", audiotest.Sine(16000, 2048, 440, 0.5), 2048, false},
		{"empty", audio.FromFloat64(nil, 16000), 2048, true},
		{"zero rate", audio.FromFloat64([]float64{0.1, 0.2}, 0), 1, true},
		{"negative rate", audio.FromFloat64([]float64{0.1, 0.2}, -1), 1, true},
		{"shorter than frame", audiotest.Sine(16000, 2047, 440, 0.5), 2048, true},
		{"nan sample", audiotest.Corrupt(audiotest.Sine(16000, 4096, 440, 0.5), 100, math.NaN()), 2048, true},
		{"inf sample", audiotest.Corrupt(audiotest.Sine(16000, 4096, 440, 0.5), 4095, math.Inf(1)), 2048, true},
		{"negative inf sample", audiotest.Corrupt(audiotest.Sine(16000, 4096, 440, 0.5), 0, math.Inf(-1)), 2048, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.buf.ValidateFrames(tt.frame)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateFrames() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, audio.ErrInvalidAudio) {
				t.Errorf("error %v does not wrap ErrInvalidAudio", err)
			}
		})
	}
}

func TestDurationAndScale(t *testing.T) {
	buf := audiotest.Sine(16000, 8000, 440, 0.5)
	if got := buf.Duration(); got != 500*time.Millisecond {
		t.Errorf("Duration() = %v, want 500ms", got)
	}

	scaled := buf.Scale(2)
	for i := range buf.Samples {
		if scaled.Samples[i] != 2*buf.Samples[i] {
			t.Fatalf("sample %d not scaled", i)
		}
	}
	if &scaled.Samples[0] == &buf.Samples[0] {
		t.Error("Scale returned a buffer sharing storage")
	}
}

func TestPCM16Clips(t *testing.T) {
	buf := audio.FromFloat64([]float64{2, -2, 0.5}, 16000)
	got := buf.PCM16()
	want := []int16{32767, -32768, 16384}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("PCM16()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}
