package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/himanishpuri/VoiceGate/pkg/models"
	"github.com/himanishpuri/VoiceGate/pkg/utils"
	"github.com/himanishpuri/VoiceGate/pkg/voicegate/audio"
	"gopkg.in/yaml.v3"
)

const indexFile = "index.yaml"

type indexEntry struct {
	ID        string    `yaml:"id"`
	CreatedAt time.Time `yaml:"created_at"`
}

// DirStore keeps each template as <dir>/<username>.wav and the speaker IDs in
// <dir>/index.yaml. WAV files dropped into the directory without an index
// entry are adopted on open.
type DirStore struct {
	dir string

	mu    sync.RWMutex
	index map[string]indexEntry // by username
}

func NewDirStore(dir string) (*DirStore, error) {
	if err := utils.MakeDir(dir); err != nil {
		return nil, fmt.Errorf("creating template dir: %w", err)
	}

	s := &DirStore{dir: dir, index: make(map[string]indexEntry)}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *DirStore) load() error {
	data, err := os.ReadFile(filepath.Join(s.dir, indexFile))
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return fmt.Errorf("reading index: %w", err)
	default:
		if err := yaml.Unmarshal(data, &s.index); err != nil {
			return fmt.Errorf("parsing index: %w", err)
		}
		if s.index == nil {
			s.index = make(map[string]indexEntry)
		}
	}

	wavs, err := filepath.Glob(filepath.Join(s.dir, "*.wav"))
	if err != nil {
		return err
	}

	present := make(map[string]bool, len(wavs))
	changed := false
	for _, path := range wavs {
		name := strings.TrimSuffix(filepath.Base(path), ".wav")
		present[name] = true
		if _, ok := s.index[name]; ok {
			continue
		}
		created := time.Now().UTC()
		if fi, err := os.Stat(path); err == nil {
			created = fi.ModTime().UTC()
		}
		s.index[name] = indexEntry{ID: uuid.NewString(), CreatedAt: created}
		changed = true
	}

	for name := range s.index {
		if !present[name] {
			delete(s.index, name)
			changed = true
		}
	}

	if changed {
		return s.saveIndex()
	}
	return nil
}

// saveIndex must be called with mu held for writing or during load.
func (s *DirStore) saveIndex() error {
	data, err := yaml.Marshal(s.index)
	if err != nil {
		return err
	}

	path := filepath.Join(s.dir, indexFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing index: %w", err)
	}
	return utils.MoveFile(tmp, path)
}

func (s *DirStore) wavPath(username string) string {
	return filepath.Join(s.dir, username+".wav")
}

func (s *DirStore) RegisterSpeaker(ctx context.Context, username string, tmpl audio.Buffer) (models.Speaker, error) {
	if err := ctx.Err(); err != nil {
		return models.Speaker{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := audio.WriteWAV(s.wavPath(username), tmpl); err != nil {
		return models.Speaker{}, fmt.Errorf("writing template: %w", err)
	}

	entry := indexEntry{ID: uuid.NewString(), CreatedAt: time.Now().UTC()}
	s.index[username] = entry
	if err := s.saveIndex(); err != nil {
		return models.Speaker{}, err
	}
	return newSpeaker(entry.ID, username, tmpl, entry.CreatedAt), nil
}

func (s *DirStore) GetTemplate(ctx context.Context, username string) (audio.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return audio.Buffer{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.index[username]; !ok {
		return audio.Buffer{}, fmt.Errorf("%w: %s", ErrSpeakerNotFound, username)
	}
	return audio.ReadWAV(s.wavPath(username))
}

// speaker describes a template from its WAV header only. A file whose header
// cannot be read is still listed, with zero sample rate and duration, so that
// it can be deleted; GetTemplate reports it as ErrInvalidAudio.
func (s *DirStore) speaker(username string, entry indexEntry) models.Speaker {
	sp := models.Speaker{ID: entry.ID, Username: username, CreatedAt: entry.CreatedAt}
	if info, err := audio.ReadWAVInfo(s.wavPath(username)); err == nil {
		sp.SampleRate = info.SampleRate
		sp.DurationMs = int(info.Duration / time.Millisecond)
	}
	return sp
}

func (s *DirStore) GetSpeakerByID(ctx context.Context, id string) (*models.Speaker, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for name, entry := range s.index {
		if entry.ID == id {
			sp := s.speaker(name, entry)
			return &sp, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrSpeakerNotFound, id)
}

func (s *DirStore) GetSpeakerByUsername(ctx context.Context, username string) (*models.Speaker, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.index[username]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSpeakerNotFound, username)
	}
	sp := s.speaker(username, entry)
	return &sp, nil
}

func (s *DirStore) ListSpeakers(ctx context.Context) ([]models.Speaker, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Speaker, 0, len(s.index))
	for name, entry := range s.index {
		out = append(out, s.speaker(name, entry))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *DirStore) DeleteSpeakerByID(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for name, entry := range s.index {
		if entry.ID != id {
			continue
		}
		if err := utils.DeleteFile(s.wavPath(name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing template: %w", err)
		}
		delete(s.index, name)
		return s.saveIndex()
	}
	return fmt.Errorf("%w: %s", ErrSpeakerNotFound, id)
}

func (s *DirStore) Close() error { return nil }
