package audio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-audio/wav"
	"github.com/himanishpuri/VoiceGate/pkg/utils"
)

// EncodeWAV writes b as a mono 16-bit PCM WAV stream.
func EncodeWAV(w io.WriteSeeker, b Buffer) error {
	if err := b.Validate(); err != nil {
		return err
	}

	enc := wav.NewEncoder(w, b.SampleRate, 16, 1, wavFormatPCM)
	if err := enc.Write(b.PCMBuffer()); err != nil {
		return fmt.Errorf("encoding PCM samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalizing WAV header: %w", err)
	}
	return nil
}

// WriteWAV stores b at path, writing to a temporary file first so readers
// never observe a half-written template.
func WriteWAV(path string, b Buffer) error {
	if err := utils.MakeDir(filepath.Dir(path)); err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	defer os.Remove(tmpPath)

	if err := EncodeWAV(f, b); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	return utils.MoveFile(tmpPath, path)
}
