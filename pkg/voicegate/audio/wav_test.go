package audio_test

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/himanishpuri/VoiceGate/internal/audiotest"
	"github.com/himanishpuri/VoiceGate/pkg/voicegate/audio"
)

func TestWAVRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "users", "alice.wav")

	orig := audiotest.Alice.Render(16000, 16000, 1)
	if err := audio.WriteWAV(path, orig); err != nil {
		t.Fatalf("WriteWAV failed: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temporary file left behind")
	}

	got, err := audio.ReadWAV(path)
	if err != nil {
		t.Fatalf("ReadWAV failed: %v", err)
	}

	if got.SampleRate != orig.SampleRate {
		t.Errorf("SampleRate = %d, want %d", got.SampleRate, orig.SampleRate)
	}
	if got.Len() != orig.Len() {
		t.Fatalf("Len() = %d, want %d", got.Len(), orig.Len())
	}

	// 16-bit quantization error is at most one step
	for i := range orig.Samples {
		if d := math.Abs(got.Samples[i] - orig.Samples[i]); d > 1.0/32768+1e-9 {
			t.Fatalf("sample %d differs by %g", i, d)
		}
	}
}

func TestDecodeWAVInvalid(t *testing.T) {
	r := bytes.NewReader([]byte("INVALID HEADER DATA"))
	if _, err := audio.DecodeWAV(r); err == nil {
		t.Error("DecodeWAV should fail on invalid data")
	}
}

func TestReadWAVInfo(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "voice.wav")
	if err := audio.WriteWAV(path, audiotest.Alice.Render(16000, 12000, 1)); err != nil {
		t.Fatalf("WriteWAV failed: %v", err)
	}

	info, err := audio.ReadWAVInfo(path)
	if err != nil {
		t.Fatalf("ReadWAVInfo failed: %v", err)
	}
	if info.SampleRate != 16000 || info.Channels != 1 || info.BitDepth != 16 {
		t.Errorf("info = %+v", info)
	}
	if info.Duration != 750*time.Millisecond {
		t.Errorf("Duration = %v, want 750ms", info.Duration)
	}

	bad := filepath.Join(dir, "bad.wav")
	if err := os.WriteFile(bad, []byte("not a wav"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := audio.ReadWAVInfo(bad); !errors.Is(err, audio.ErrInvalidAudio) {
		t.Errorf("ReadWAVInfo(bad): error = %v, want ErrInvalidAudio", err)
	}
	if _, err := audio.ReadWAV(bad); !errors.Is(err, audio.ErrInvalidAudio) {
		t.Errorf("ReadWAV(bad): error = %v, want ErrInvalidAudio", err)
	}
}

func TestReadWAVMissingFile(t *testing.T) {
	if _, err := audio.ReadWAV(filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Error("ReadWAV should fail for a missing file")
	}
}

func TestEncodeWAVRejectsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.wav")
	if err := audio.WriteWAV(path, audio.FromFloat64(nil, 16000)); err == nil {
		t.Error("WriteWAV should reject an empty buffer")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("nothing should be written for an empty buffer")
	}
}

func TestLoadFileWAVAtTargetRate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "probe.wav")
	if err := audio.WriteWAV(path, audiotest.Sine(16000, 4000, 440, 0.5)); err != nil {
		t.Fatalf("WriteWAV failed: %v", err)
	}

	buf, err := audio.LoadFile(t.Context(), path, dir, 16000)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if buf.Len() != 4000 {
		t.Errorf("Len() = %d, want 4000", buf.Len())
	}
}

func TestConvertToMonoWAV(t *testing.T) {
	if !audio.FFmpegAvailable() {
		t.Skip("ffmpeg not installed")
	}

	dir := t.TempDir()
	src := filepath.Join(dir, "src", "tone.wav")
	if err := audio.WriteWAV(src, audiotest.Sine(44100, 44100, 440, 0.5)); err != nil {
		t.Fatalf("WriteWAV failed: %v", err)
	}

	out, err := audio.ConvertToMonoWAV(t.Context(), src, filepath.Join(dir, "out"), audio.ConvertWAVConfig{})
	if err != nil {
		t.Fatalf("ConvertToMonoWAV failed: %v", err)
	}

	buf, err := audio.ReadWAV(out)
	if err != nil {
		t.Fatalf("ReadWAV failed: %v", err)
	}
	if buf.SampleRate != audio.DefaultSampleRate {
		t.Errorf("SampleRate = %d, want %d", buf.SampleRate, audio.DefaultSampleRate)
	}
	if filepath.Base(out) != "tone_16000hz.wav" {
		t.Errorf("output name = %s", filepath.Base(out))
	}
	if _, err := audio.ReadWAV(src); err != nil {
		t.Errorf("source was disturbed: %v", err)
	}
}
