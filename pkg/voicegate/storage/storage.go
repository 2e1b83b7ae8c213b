// Package storage persists enrollment templates. DBClient keeps them in
// SQLite through GORM; DirStore keeps one WAV file per speaker.
package storage

import (
	"errors"
	"time"

	"github.com/himanishpuri/VoiceGate/pkg/models"
	"github.com/himanishpuri/VoiceGate/pkg/voicegate/audio"
)

var ErrSpeakerNotFound = errors.New("speaker not found")

func durationMs(b audio.Buffer) int {
	return int(b.Duration() / time.Millisecond)
}

func newSpeaker(id, username string, b audio.Buffer, createdAt time.Time) models.Speaker {
	return models.Speaker{
		ID:         id,
		Username:   username,
		SampleRate: b.SampleRate,
		DurationMs: durationMs(b),
		CreatedAt:  createdAt,
	}
}
