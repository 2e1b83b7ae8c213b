package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/himanishpuri/VoiceGate/internal/observe"
	"github.com/himanishpuri/VoiceGate/pkg/logger"
	"github.com/himanishpuri/VoiceGate/pkg/utils"
	"github.com/himanishpuri/VoiceGate/pkg/voicegate"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service voicegate.Service
	config  *ServerConfig
	log     voicegate.Logger
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Storage        string // human readable store location for /api/health/metrics
	TempDir        string
	SampleRate     int
	AllowedOrigins []string
	AccessLog      bool

	// MetricsHandler serves GET /metrics. Nil disables the endpoint.
	MetricsHandler http.Handler

	// Metrics records request latency. Nil uses observe.DefaultMetrics.
	Metrics *observe.Metrics
}

// NewServer creates a new server instance
func NewServer(service voicegate.Service, config *ServerConfig) *Server {
	return &Server{
		service: service,
		config:  config,
		log:     logger.GetLogger(),
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// respondServiceError maps a service error onto a status code. Recordings
// that cannot be evaluated get 422 so clients never mistake them for a
// denial, which is always a 200.
func (s *Server) respondServiceError(w http.ResponseWriter, err error) {
	kind := voicegate.ErrorKind(err)

	var status int
	switch kind {
	case voicegate.KindInvalidAudio, voicegate.KindDegenerateAudio,
		voicegate.KindDimensionMismatch, voicegate.KindEmptySequence,
		voicegate.KindEnrollmentRejected:
		status = http.StatusUnprocessableEntity
	case voicegate.KindInvalidUsername:
		status = http.StatusBadRequest
	case voicegate.KindSpeakerNotFound:
		status = http.StatusNotFound
	case voicegate.KindCanceled:
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusInternalServerError
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		s.log.Errorf("Request failed: %v", err)
		message = "internal error"
	}
	s.respondJSON(w, status, ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      status,
		ErrorKind: kind,
	})
}

// saveUpload copies the multipart "audio" part into a temporary file and
// returns its path. The caller removes the file.
func (s *Server) saveUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return "", fmt.Errorf("failed to parse form data: %w", err)
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		return "", errors.New("audio file is required")
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext == "" {
		ext = ".wav"
	}
	tempFile, err := utils.TempFile(s.config.TempDir, "upload_", ext)
	if err != nil {
		return "", err
	}

	out, err := os.OpenFile(tempFile, os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		os.Remove(tempFile)
		return "", err
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to save uploaded file: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tempFile)
		return "", err
	}
	return tempFile, nil
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.respondError(w, http.StatusNotFound, "no such endpoint")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"service": "VoiceGate API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":        "GET /health",
			"metrics":       "GET /api/health/metrics",
			"prometheus":    "GET /metrics",
			"speakers":      "GET /api/speakers",
			"enroll":        "POST /api/speakers",
			"getSpeaker":    "GET /api/speakers/{id}",
			"deleteSpeaker": "DELETE /api/speakers/{id}",
			"verify":        "POST /api/verify",
			"identify":      "POST /api/identify",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleMetrics handles GET /api/health/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	speakers, err := s.service.ListSpeakers(r.Context())
	if err != nil {
		s.log.Errorf("Failed to get speaker count: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve metrics")
		return
	}

	pipeline := s.service.Engine().Config()
	s.respondJSON(w, http.StatusOK, MetricsResponse{
		Status:            "healthy",
		Storage:           s.config.Storage,
		SpeakerCount:      len(speakers),
		SampleRate:        s.config.SampleRate,
		DistanceThreshold: pipeline.DistanceThreshold,
		NormalizeDistance: pipeline.NormalizeDistance,
	})
}

// handleListSpeakers handles GET /api/speakers
func (s *Server) handleListSpeakers(w http.ResponseWriter, r *http.Request) {
	speakers, err := s.service.ListSpeakers(r.Context())
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	dtos := make([]SpeakerDTO, len(speakers))
	for i, sp := range speakers {
		dtos[i] = speakerDTO(sp)
	}
	s.respondJSON(w, http.StatusOK, ListSpeakersResponse{
		Speakers: dtos,
		Count:    len(dtos),
	})
}

// handleEnroll handles POST /api/speakers (multipart: username, audio)
func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	tempFile, err := s.saveUpload(w, r, MaxEnrollUploadBytes)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer os.Remove(tempFile)

	username := r.FormValue("username")
	if username == "" {
		s.respondError(w, http.StatusBadRequest, "username is required")
		return
	}

	s.log.Infof("Enrolling %s from upload", username)
	sp, err := s.service.EnrollFile(ctx, username, tempFile)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, EnrollResponse{
		Message: "Speaker enrolled successfully",
		Speaker: speakerDTO(*sp),
	})
}

// handleGetSpeaker handles GET /api/speakers/{id}
func (s *Server) handleGetSpeaker(w http.ResponseWriter, r *http.Request, id string) {
	sp, err := s.service.GetSpeakerByID(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, speakerDTO(*sp))
}

// handleDeleteSpeaker handles DELETE /api/speakers/{id}
func (s *Server) handleDeleteSpeaker(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.service.DeleteSpeaker(r.Context(), id); err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, DeleteSpeakerResponse{
		Message: "Speaker deleted successfully",
		ID:      id,
	})
}

// handleVerify handles POST /api/verify (multipart: username, audio, optional threshold)
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), time.Minute)
	defer cancel()

	tempFile, err := s.saveUpload(w, r, MaxProbeUploadBytes)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer os.Remove(tempFile)

	username := r.FormValue("username")
	if username == "" {
		s.respondError(w, http.StatusBadRequest, "username is required")
		return
	}

	var threshold float64
	if v := r.FormValue("threshold"); v != "" {
		threshold, err = strconv.ParseFloat(v, 64)
		if err != nil || threshold < 0 {
			s.respondError(w, http.StatusBadRequest, "threshold must be a non-negative number")
			return
		}
	}

	res, err := s.service.VerifyFile(ctx, username, tempFile, threshold)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, verifyResponse(res))
}

// handleIdentify handles POST /api/identify (multipart: audio)
func (s *Server) handleIdentify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	tempFile, err := s.saveUpload(w, r, MaxProbeUploadBytes)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer os.Remove(tempFile)

	res, err := s.service.IdentifyFile(ctx, tempFile)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, identifyResponse(res))
}

// handleSpeakers routes requests to /api/speakers
func (s *Server) handleSpeakers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListSpeakers(w, r)
	case http.MethodPost:
		s.handleEnroll(w, r)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleSpeaker routes requests to /api/speakers/{id}
func (s *Server) handleSpeaker(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		s.respondError(w, http.StatusBadRequest, "Speaker ID required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetSpeaker(w, r, id)
	case http.MethodDelete:
		s.handleDeleteSpeaker(w, r, id)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
