package voicegate

import (
	"context"

	"github.com/himanishpuri/VoiceGate/pkg/models"
	"github.com/himanishpuri/VoiceGate/pkg/voicegate/audio"
)

type Service interface {
	Enroll(ctx context.Context, username string, buf audio.Buffer) (*models.Speaker, error)
	EnrollFile(ctx context.Context, username, audioPath string) (*models.Speaker, error)
	Verify(ctx context.Context, username string, probe audio.Buffer, threshold float64) (models.VerificationResult, error)
	VerifyFile(ctx context.Context, username, audioPath string, threshold float64) (models.VerificationResult, error)
	Identify(ctx context.Context, probe audio.Buffer) (models.IdentifyResult, error)
	IdentifyFile(ctx context.Context, audioPath string) (models.IdentifyResult, error)
	GetSpeakerByID(ctx context.Context, id string) (*models.Speaker, error)
	ListSpeakers(ctx context.Context) ([]models.Speaker, error)
	DeleteSpeaker(ctx context.Context, id string) error
	Engine() *Engine
	Close() error
}

// Storage persists one enrollment template per username.
type Storage interface {
	RegisterSpeaker(ctx context.Context, username string, tmpl audio.Buffer) (models.Speaker, error)
	GetTemplate(ctx context.Context, username string) (audio.Buffer, error)
	GetSpeakerByID(ctx context.Context, id string) (*models.Speaker, error)
	GetSpeakerByUsername(ctx context.Context, username string) (*models.Speaker, error)
	ListSpeakers(ctx context.Context) ([]models.Speaker, error)
	DeleteSpeakerByID(ctx context.Context, id string) error
	Close() error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
