//go:build !js && !wasm
// +build !js,!wasm

package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/himanishpuri/VoiceGate/pkg/models"
	"github.com/himanishpuri/VoiceGate/pkg/voicegate/audio"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const DefaultDBFile = "voicegate.sqlite3"
const errDBClientNil = "db client is nil"

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

// Speaker is the speakers table. PCM holds the template as little-endian
// signed 16-bit mono samples.
type Speaker struct {
	ID         string `gorm:"primaryKey;type:varchar(36)"`
	Username   string `gorm:"uniqueIndex:idx_speaker_username;not null" json:"username"`
	SampleRate int    `json:"sample_rate"`
	DurationMs int    `json:"duration_ms"`
	PCM        []byte `json:"-"`
	CreatedAt  time.Time
}

func (s Speaker) toModel() models.Speaker {
	return models.Speaker{
		ID:         s.ID,
		Username:   s.Username,
		SampleRate: s.SampleRate,
		DurationMs: s.DurationMs,
		CreatedAt:  s.CreatedAt,
	}
}

func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("VOICEGATE_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_foreign_keys=on"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Speaker{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// RegisterSpeaker stores tmpl as the template of username. An existing
// template for the same username is replaced, and the speaker gets a new ID.
func (c *DBClient) RegisterSpeaker(ctx context.Context, username string, tmpl audio.Buffer) (models.Speaker, error) {
	if c == nil || c.DB == nil {
		return models.Speaker{}, errors.New(errDBClientNil)
	}
	if err := tmpl.Validate(); err != nil {
		return models.Speaker{}, err
	}

	row := Speaker{
		ID:         uuid.NewString(),
		Username:   username,
		SampleRate: tmpl.SampleRate,
		DurationMs: durationMs(tmpl),
		PCM:        encodePCM(tmpl.PCM16()),
		CreatedAt:  time.Now().UTC(),
	}

	err := c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("username = ?", username).Delete(&Speaker{}).Error; err != nil {
			return fmt.Errorf("removing previous template: %w", err)
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("creating speaker: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Speaker{}, err
	}

	return row.toModel(), nil
}

// GetTemplate loads the enrollment audio of username.
func (c *DBClient) GetTemplate(ctx context.Context, username string) (audio.Buffer, error) {
	if c == nil || c.DB == nil {
		return audio.Buffer{}, errors.New(errDBClientNil)
	}

	var row Speaker
	if err := c.DB.WithContext(ctx).Where("username = ?", username).First(&row).Error; err != nil {
		return audio.Buffer{}, notFound(err, username)
	}

	pcm, err := decodePCM(row.PCM)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("template of %s: %w", username, err)
	}
	return audio.FromPCM16(pcm, row.SampleRate), nil
}

func (c *DBClient) GetSpeakerByID(ctx context.Context, id string) (*models.Speaker, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}

	var row Speaker
	if err := c.DB.WithContext(ctx).Omit("PCM").Where("id = ?", id).First(&row).Error; err != nil {
		return nil, notFound(err, id)
	}
	sp := row.toModel()
	return &sp, nil
}

func (c *DBClient) GetSpeakerByUsername(ctx context.Context, username string) (*models.Speaker, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}

	var row Speaker
	if err := c.DB.WithContext(ctx).Omit("PCM").Where("username = ?", username).First(&row).Error; err != nil {
		return nil, notFound(err, username)
	}
	sp := row.toModel()
	return &sp, nil
}

// ListSpeakers returns every speaker ordered by username.
func (c *DBClient) ListSpeakers(ctx context.Context) ([]models.Speaker, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}

	var rows []Speaker
	if err := c.DB.WithContext(ctx).Omit("PCM").Order("username").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing speakers: %w", err)
	}

	out := make([]models.Speaker, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

func (c *DBClient) DeleteSpeakerByID(ctx context.Context, id string) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}

	res := c.DB.WithContext(ctx).Where("id = ?", id).Delete(&Speaker{})
	if res.Error != nil {
		return fmt.Errorf("deleting speaker: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrSpeakerNotFound, id)
	}
	return nil
}

func notFound(err error, key string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrSpeakerNotFound, key)
	}
	return fmt.Errorf("querying speaker %s: %w", key, err)
}

func encodePCM(samples []int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

func decodePCM(data []byte) ([]int16, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("odd PCM blob length %d", len(data))
	}
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[2*i:]))
	}
	return out, nil
}
