package voicegate

import (
	"context"
	"errors"

	"github.com/himanishpuri/VoiceGate/pkg/voicegate/align"
	"github.com/himanishpuri/VoiceGate/pkg/voicegate/audio"
	"github.com/himanishpuri/VoiceGate/pkg/voicegate/features"
	"github.com/himanishpuri/VoiceGate/pkg/voicegate/storage"
)

var (
	ErrInvalidAudio      = audio.ErrInvalidAudio
	ErrDegenerateAudio   = features.ErrDegenerateAudio
	ErrDimensionMismatch = align.ErrDimensionMismatch
	ErrEmptySequence     = align.ErrEmptySequence
	ErrSpeakerNotFound   = storage.ErrSpeakerNotFound

	// ErrEnrollmentRejected is returned when enrollment audio fails the
	// liveness check.
	ErrEnrollmentRejected = errors.New("enrollment audio rejected")
	ErrInvalidUsername    = errors.New("invalid username")
)

// Error kinds reported to front ends.
const (
	KindInvalidAudio       = "invalid_audio"
	KindDegenerateAudio    = "degenerate_audio"
	KindDimensionMismatch  = "dimension_mismatch"
	KindEmptySequence      = "empty_sequence"
	KindSpeakerNotFound    = "speaker_not_found"
	KindEnrollmentRejected = "enrollment_rejected"
	KindInvalidUsername    = "invalid_username"
	KindCanceled           = "canceled"
	KindInternal           = "internal"
)

// ErrorKind classifies err for front ends so that "could not evaluate" is
// reported distinctly from a rejection decision.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidAudio):
		return KindInvalidAudio
	case errors.Is(err, ErrDegenerateAudio):
		return KindDegenerateAudio
	case errors.Is(err, ErrDimensionMismatch):
		return KindDimensionMismatch
	case errors.Is(err, ErrEmptySequence):
		return KindEmptySequence
	case errors.Is(err, ErrSpeakerNotFound):
		return KindSpeakerNotFound
	case errors.Is(err, ErrEnrollmentRejected):
		return KindEnrollmentRejected
	case errors.Is(err, ErrInvalidUsername):
		return KindInvalidUsername
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindInternal
	}
}
