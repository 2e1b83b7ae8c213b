package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/himanishpuri/VoiceGate/pkg/utils"
)

// DefaultSampleRate is the rate enrollment and probe recordings are
// resampled to before analysis.
const DefaultSampleRate = 16000

type ConvertWAVConfig struct {
	SampleRate int
	Timeout    time.Duration
}

// ConvertToMonoWAV runs ffmpeg to turn any decodable input into a mono 16-bit
// PCM WAV inside outputDir and returns the path of the converted file. The
// output is named <base>_<rate>hz.wav so it never replaces its input.
func ConvertToMonoWAV(
	ctx context.Context,
	inputPath string,
	outputDir string,
	cfg ConvertWAVConfig,
) (string, error) {

	if cfg.SampleRate == 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	if err := utils.MakeDir(outputDir); err != nil {
		return "", err
	}

	baseName := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	outputPath := filepath.Join(outputDir, fmt.Sprintf("%s_%dhz.wav", baseName, cfg.SampleRate))

	tmpPath := outputPath + ".tmp.wav"
	defer os.Remove(tmpPath)

	cmd := exec.CommandContext(
		ctx,
		"ffmpeg",
		"-y",
		"-v", "quiet",
		"-i", inputPath,
		"-ac", "1", // mono
		"-ar", fmt.Sprintf("%d", cfg.SampleRate),
		"-c:a", "pcm_s16le",
		tmpPath,
	)

	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("ffmpeg failed: %v (%s)", err, out)
	}

	if err := utils.MoveFile(tmpPath, outputPath); err != nil {
		return "", err
	}

	return outputPath, nil
}

// LoadFile decodes path into a mono Buffer at sampleRate. WAV input already at
// the requested rate is decoded directly. Everything else goes through ffmpeg
// into tempDir, and the converted copy is removed afterwards. Without ffmpeg,
// WAV, MP3 and Ogg Vorbis are decoded and resampled in-process.
func LoadFile(ctx context.Context, path, tempDir string, sampleRate int) (Buffer, error) {
	if sampleRate == 0 {
		sampleRate = DefaultSampleRate
	}

	if strings.EqualFold(filepath.Ext(path), ".wav") {
		buf, err := ReadWAV(path)
		if err == nil && buf.SampleRate == sampleRate {
			return buf, nil
		}
	}

	if !FFmpegAvailable() {
		buf, err := DecodeFile(path)
		if err != nil {
			return Buffer{}, fmt.Errorf("ffmpeg not found and native decoding failed: %w", err)
		}
		return Resample(buf, sampleRate)
	}

	converted, err := ConvertToMonoWAV(ctx, path, tempDir, ConvertWAVConfig{SampleRate: sampleRate})
	if err != nil {
		return Buffer{}, fmt.Errorf("failed to convert %s: %w", path, err)
	}
	defer os.Remove(converted)

	return ReadWAV(converted)
}

// FFmpegAvailable reports whether ffmpeg can be found on PATH.
func FFmpegAvailable() bool {
	_, err := exec.LookPath("ffmpeg")
	return err == nil
}
