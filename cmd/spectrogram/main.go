//go:build !js && !wasm

// Command spectrogram renders a PNG spectrogram for every enrolled template so
// that genuine and impostor recordings can be compared by eye while
// recalibrating the distance threshold.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/draw"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/eligwz/spectrogram"
	"github.com/himanishpuri/VoiceGate/pkg/logger"
	"github.com/himanishpuri/VoiceGate/pkg/utils"
	"github.com/himanishpuri/VoiceGate/pkg/voicegate/audio"
	"github.com/himanishpuri/VoiceGate/pkg/voicegate/storage"
)

type renderOptions struct {
	Width  int
	Height int
	Log10  bool
}

func main() {
	inputDir := flag.String("in", os.Getenv("VOICEGATE_TEMPLATE_DIR"), "Directory of WAV templates to render")
	dbPath := flag.String("db", "", "Render the templates stored in this SQLite database instead of -in")
	outputDir := flag.String("out", "spectrograms", "Directory for the PNG files")
	width := flag.Int("width", 2048, "Image width in pixels")
	height := flag.Int("height", 512, "Image height in pixels (frequency bins)")
	log10 := flag.Bool("log10", false, "Use a logarithmic magnitude scale")
	flag.Parse()

	log := logger.GetLogger()
	opts := renderOptions{Width: *width, Height: *height, Log10: *log10}

	if err := utils.MakeDir(*outputDir); err != nil {
		log.Fatalf("Failed to create %s: %v", *outputDir, err)
	}

	var (
		count int
		err   error
	)
	switch {
	case *dbPath != "":
		count, err = renderDatabase(context.Background(), *dbPath, *outputDir, opts)
	case *inputDir != "":
		count, err = renderDir(*inputDir, *outputDir, opts)
	default:
		fmt.Println("Usage: spectrogram -in <template_dir> | -db <sqlite_file> [-out <dir>]")
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("%v", err)
	}

	fmt.Printf("Done! Rendered %d spectrogram(s) into %s\n", count, *outputDir)
}

// renderDir renders every WAV file below inputDir. Unreadable files are
// logged and skipped.
func renderDir(inputDir, outputDir string, opts renderOptions) (int, error) {
	log := logger.GetLogger()
	count := 0

	err := filepath.WalkDir(inputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".wav") {
			return nil
		}

		fmt.Printf("Processing %s...\n", path)
		buf, err := audio.ReadWAV(path)
		if err != nil {
			log.Warnf("Skipping %s: %v", path, err)
			return nil
		}

		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		outputPath := filepath.Join(outputDir, base+".png")
		if err := render(buf, outputPath, opts); err != nil {
			log.Warnf("Error rendering %s: %v", path, err)
			return nil
		}

		fmt.Printf("Saved spectrogram to %s\n", outputPath)
		count++
		return nil
	})
	return count, err
}

// renderDatabase renders the template of every speaker in a SQLite store.
func renderDatabase(ctx context.Context, dbPath, outputDir string, opts renderOptions) (int, error) {
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	speakers, err := db.ListSpeakers(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, sp := range speakers {
		buf, err := db.GetTemplate(ctx, sp.Username)
		if err != nil {
			logger.Warnf("Skipping %s: %v", sp.Username, err)
			continue
		}
		outputPath := filepath.Join(outputDir, sp.Username+".png")
		if err := render(buf, outputPath, opts); err != nil {
			return count, fmt.Errorf("rendering %s: %w", sp.Username, err)
		}
		fmt.Printf("Saved spectrogram of %s to %s\n", sp.Username, outputPath)
		count++
	}
	return count, nil
}

func render(buf audio.Buffer, outputPath string, opts renderOptions) error {
	if err := buf.Validate(); err != nil {
		return err
	}

	img := spectrogram.NewImage128(image.Rect(0, 0, opts.Width, opts.Height))

	black := spectrogram.ParseColor("000000")
	draw.Draw(img, img.Bounds(), image.NewUniform(black), image.Point{}, draw.Src)

	// Hamming window, FFT, magnitude
	spectrogram.Drawfft(
		img,
		buf.Samples,
		uint32(buf.SampleRate),
		uint32(opts.Height),
		false,
		false,
		true,
		opts.Log10,
	)

	return spectrogram.SavePng(img, outputPath)
}
