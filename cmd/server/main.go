//go:build !js && !wasm

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/himanishpuri/VoiceGate/internal/observe"
	"github.com/himanishpuri/VoiceGate/pkg/logger"
	"github.com/himanishpuri/VoiceGate/pkg/voicegate"
	"github.com/himanishpuri/VoiceGate/pkg/voicegate/audio"
)

var (
	port           int
	dbPath         string
	templateDir    string
	tempDir        string
	sampleRate     int
	configPath     string
	allowedOrigins string
	accessLog      bool
	logLevel       string
)

func init() {
	flag.IntVar(&port, "port", 8080, "HTTP server port")
	flag.StringVar(&dbPath, "db", getEnvOrDefault("VOICEGATE_DB_PATH", "voicegate.sqlite3"), "Path to SQLite database")
	flag.StringVar(&templateDir, "templates", getEnvOrDefault("VOICEGATE_TEMPLATE_DIR", ""), "Keep templates as WAV files in this directory instead of SQLite")
	flag.StringVar(&tempDir, "temp", getEnvOrDefault("VOICEGATE_TEMP_DIR", os.TempDir()), "Temporary directory")
	flag.IntVar(&sampleRate, "rate", audio.DefaultSampleRate, "Audio sample rate")
	flag.StringVar(&configPath, "config", getEnvOrDefault("VOICEGATE_CONFIG", ""), "YAML file overriding pipeline parameters")
	flag.StringVar(&allowedOrigins, "origins", "*", "Comma-separated list of allowed CORS origins (use * for all)")
	flag.BoolVar(&accessLog, "access-log", false, "Log every request")
	flag.StringVar(&logLevel, "log-level", getEnvOrDefault("VOICEGATE_LOG_LEVEL", ""), "Minimum log level: debug, info, warn, error")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	flag.Parse()
	if err := logger.SetLevelName(logLevel); err != nil {
		logger.Fatalf("Invalid -log-level: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Parse allowed origins
	var origins []string
	if allowedOrigins == "*" {
		origins = []string{"*"}
	} else {
		origins = strings.Split(allowedOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
	}

	pipeline := voicegate.DefaultPipelineConfig()
	if configPath != "" {
		var err error
		if pipeline, err = voicegate.LoadPipelineConfig(configPath); err != nil {
			logger.Fatalf("Invalid pipeline config: %v", err)
		}
	}

	// Telemetry must be installed before DefaultMetrics creates its instruments
	provider, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: "1.0.0"})
	if err != nil {
		logger.Fatalf("Failed to initialise telemetry: %v", err)
	}
	defer provider.Shutdown(context.Background())
	metrics := observe.DefaultMetrics()

	service, err := voicegate.NewService(
		voicegate.WithDBPath(dbPath),
		voicegate.WithTemplateDir(templateDir),
		voicegate.WithTempDir(tempDir),
		voicegate.WithSampleRate(sampleRate),
		voicegate.WithPipeline(pipeline),
		voicegate.WithMetrics(metrics),
	)
	if err != nil {
		logger.Fatalf("Failed to create service: %v", err)
	}
	defer service.Close()

	storage := "sqlite:" + dbPath
	if templateDir != "" {
		storage = "dir:" + templateDir
	}

	config := &ServerConfig{
		Port:           port,
		Storage:        storage,
		TempDir:        tempDir,
		SampleRate:     sampleRate,
		AllowedOrigins: origins,
		AccessLog:      accessLog,
		MetricsHandler: provider.Handler(),
		Metrics:        metrics,
	}

	server := NewServer(service, config)
	if err := server.Start(ctx); err != nil {
		logger.Errorf("Server failed: %v", err)
		service.Close()
		os.Exit(1)
	}
}
