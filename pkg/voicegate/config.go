package voicegate

import (
	"os"

	"github.com/himanishpuri/VoiceGate/internal/observe"
	"github.com/himanishpuri/VoiceGate/pkg/voicegate/audio"
)

type Config struct {
	DBPath      string
	TemplateDir string // when set, templates are WAV files here instead of SQLite
	TempDir     string
	SampleRate  int
	Pipeline    PipelineConfig
	Logger      Logger
	Storage     Storage
	Metrics     *observe.Metrics
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

func WithTemplateDir(dir string) Option {
	return func(c *Config) {
		c.TemplateDir = dir
	}
}

func WithTempDir(dir string) Option {
	return func(c *Config) {
		c.TempDir = dir
	}
}

func WithSampleRate(rate int) Option {
	return func(c *Config) {
		c.SampleRate = rate
	}
}

func WithPipeline(p PipelineConfig) Option {
	return func(c *Config) {
		c.Pipeline = p
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithStorage(storage Storage) Option {
	return func(c *Config) {
		c.Storage = storage
	}
}

func WithMetrics(m *observe.Metrics) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}

func defaultConfig() *Config {
	return &Config{
		DBPath:     "voicegate.sqlite3",
		TempDir:    os.TempDir(),
		SampleRate: audio.DefaultSampleRate,
		Pipeline:   DefaultPipelineConfig(),
	}
}
