//go:build !js && !wasm

package storage

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/himanishpuri/VoiceGate/internal/audiotest"
	"github.com/himanishpuri/VoiceGate/pkg/models"
	"github.com/himanishpuri/VoiceGate/pkg/voicegate/audio"
)

// templateStore is the method set both stores share.
type templateStore interface {
	RegisterSpeaker(ctx context.Context, username string, tmpl audio.Buffer) (models.Speaker, error)
	GetTemplate(ctx context.Context, username string) (audio.Buffer, error)
	GetSpeakerByID(ctx context.Context, id string) (*models.Speaker, error)
	GetSpeakerByUsername(ctx context.Context, username string) (*models.Speaker, error)
	ListSpeakers(ctx context.Context) ([]models.Speaker, error)
	DeleteSpeakerByID(ctx context.Context, id string) error
	Close() error
}

func stores(t *testing.T) map[string]templateStore {
	t.Helper()

	db, err := NewDBClientWithPath(filepath.Join(t.TempDir(), "speakers.sqlite3"))
	if err != nil {
		t.Fatalf("NewDBClientWithPath failed: %v", err)
	}
	dir, err := NewDirStore(filepath.Join(t.TempDir(), "users"))
	if err != nil {
		t.Fatalf("NewDirStore failed: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
		dir.Close()
	})

	return map[string]templateStore{"sqlite": db, "dir": dir}
}

func TestStoreContract(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()
			alice := audiotest.Alice.Render(16000, 16000, 1)
			bob := audiotest.Bob.Render(16000, 12000, 2)

			a, err := store.RegisterSpeaker(ctx, "alice", alice)
			if err != nil {
				t.Fatalf("RegisterSpeaker(alice) failed: %v", err)
			}
			if _, err := store.RegisterSpeaker(ctx, "bob", bob); err != nil {
				t.Fatalf("RegisterSpeaker(bob) failed: %v", err)
			}
			if a.ID == "" || a.SampleRate != 16000 || a.DurationMs != 1000 {
				t.Errorf("unexpected speaker record: %+v", a)
			}

			got, err := store.GetTemplate(ctx, "alice")
			if err != nil {
				t.Fatalf("GetTemplate failed: %v", err)
			}
			if got.Len() != alice.Len() || got.SampleRate != alice.SampleRate {
				t.Fatalf("template shape %d@%d, want %d@%d", got.Len(), got.SampleRate, alice.Len(), alice.SampleRate)
			}
			for i := range alice.Samples {
				if math.Abs(got.Samples[i]-alice.Samples[i]) > 1.0/32768+1e-9 {
					t.Fatalf("sample %d not preserved", i)
				}
			}

			byID, err := store.GetSpeakerByID(ctx, a.ID)
			if err != nil || byID.Username != "alice" {
				t.Errorf("GetSpeakerByID = %+v, %v", byID, err)
			}
			byName, err := store.GetSpeakerByUsername(ctx, "bob")
			if err != nil || byName.DurationMs != 750 {
				t.Errorf("GetSpeakerByUsername = %+v, %v", byName, err)
			}

			list, err := store.ListSpeakers(ctx)
			if err != nil {
				t.Fatalf("ListSpeakers failed: %v", err)
			}
			if len(list) != 2 || list[0].Username != "alice" || list[1].Username != "bob" {
				t.Errorf("ListSpeakers = %+v", list)
			}

			if err := store.DeleteSpeakerByID(ctx, a.ID); err != nil {
				t.Fatalf("DeleteSpeakerByID failed: %v", err)
			}
			if _, err := store.GetTemplate(ctx, "alice"); !errors.Is(err, ErrSpeakerNotFound) {
				t.Errorf("GetTemplate after delete: %v", err)
			}
			if err := store.DeleteSpeakerByID(ctx, a.ID); !errors.Is(err, ErrSpeakerNotFound) {
				t.Errorf("second delete: %v", err)
			}
		})
	}
}

func TestStoreNotFound(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()
			if _, err := store.GetTemplate(ctx, "nobody"); !errors.Is(err, ErrSpeakerNotFound) {
				t.Errorf("GetTemplate: %v", err)
			}
			if _, err := store.GetSpeakerByID(ctx, "00000000-0000-0000-0000-000000000000"); !errors.Is(err, ErrSpeakerNotFound) {
				t.Errorf("GetSpeakerByID: %v", err)
			}
			if _, err := store.GetSpeakerByUsername(ctx, "nobody"); !errors.Is(err, ErrSpeakerNotFound) {
				t.Errorf("GetSpeakerByUsername: %v", err)
			}
		})
	}
}

func TestDirStoreAdoptsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	// a users/ folder written by hand, with no index yet
	if err := audio.WriteWAV(filepath.Join(dir, "carol.wav"), audiotest.Alice.Render(16000, 16000, 3)); err != nil {
		t.Fatalf("WriteWAV failed: %v", err)
	}

	store, err := NewDirStore(dir)
	if err != nil {
		t.Fatalf("NewDirStore failed: %v", err)
	}
	carol, err := store.GetSpeakerByUsername(t.Context(), "carol")
	if err != nil {
		t.Fatalf("GetSpeakerByUsername failed: %v", err)
	}

	reopened, err := NewDirStore(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	again, err := reopened.GetSpeakerByUsername(t.Context(), "carol")
	if err != nil {
		t.Fatalf("GetSpeakerByUsername after reopen failed: %v", err)
	}
	if again.ID != carol.ID {
		t.Errorf("ID changed across reopen: %s -> %s", carol.ID, again.ID)
	}
}

func TestDirStoreListsUnreadableTemplate(t *testing.T) {
	dir := t.TempDir()
	if err := audio.WriteWAV(filepath.Join(dir, "alice.wav"), audiotest.Alice.Render(16000, 16000, 1)); err != nil {
		t.Fatalf("WriteWAV failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "mallory.wav"), []byte("not a wav"), 0o644); err != nil {
		t.Fatal(err)
	}

	store, err := NewDirStore(dir)
	if err != nil {
		t.Fatalf("NewDirStore failed: %v", err)
	}
	ctx := t.Context()

	speakers, err := store.ListSpeakers(ctx)
	if err != nil {
		t.Fatalf("ListSpeakers failed: %v", err)
	}
	if len(speakers) != 2 {
		t.Fatalf("got %d speakers, want 2", len(speakers))
	}
	alice, mallory := speakers[0], speakers[1]
	if alice.Username != "alice" || alice.SampleRate != 16000 || alice.DurationMs != 1000 {
		t.Errorf("alice = %+v", alice)
	}
	if mallory.Username != "mallory" || mallory.SampleRate != 0 || mallory.DurationMs != 0 {
		t.Errorf("mallory = %+v", mallory)
	}

	if _, err := store.GetTemplate(ctx, "mallory"); !errors.Is(err, audio.ErrInvalidAudio) {
		t.Errorf("GetTemplate(mallory): error = %v, want ErrInvalidAudio", err)
	}
	if err := store.DeleteSpeakerByID(ctx, mallory.ID); err != nil {
		t.Fatalf("DeleteSpeakerByID(mallory) failed: %v", err)
	}
	if speakers, _ = store.ListSpeakers(ctx); len(speakers) != 1 {
		t.Errorf("got %d speakers after delete, want 1", len(speakers))
	}
}
