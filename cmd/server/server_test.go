package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/himanishpuri/VoiceGate/internal/audiotest"
	"github.com/himanishpuri/VoiceGate/internal/observe"
	"github.com/himanishpuri/VoiceGate/pkg/logger"
	"github.com/himanishpuri/VoiceGate/pkg/models"
	"github.com/himanishpuri/VoiceGate/pkg/voicegate"
	"github.com/himanishpuri/VoiceGate/pkg/voicegate/audio"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const rate = audiotest.DefaultSampleRate

var utterance = audiotest.Seconds(rate, 1.5)

func setupTestServer(t *testing.T) http.Handler {
	t.Helper()

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	dir := t.TempDir()
	svc, err := voicegate.NewService(
		voicegate.WithDBPath(filepath.Join(dir, "voicegate.sqlite3")),
		voicegate.WithTempDir(dir),
		voicegate.WithLogger(logger.New(logger.Config{Output: io.Discard})),
		voicegate.WithMetrics(metrics),
	)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	t.Cleanup(func() { svc.Close() })

	server := NewServer(svc, &ServerConfig{
		Storage:        "sqlite:test",
		TempDir:        dir,
		SampleRate:     rate,
		AllowedOrigins: []string{"*"},
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, "# prometheus\n")
		}),
		Metrics: metrics,
	})
	return server.setupRoutes()
}

func wavBytes(t *testing.T, buf audio.Buffer) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := audio.WriteWAV(path, buf); err != nil {
		t.Fatalf("WriteWAV failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func uploadRequest(t *testing.T, target string, fields map[string]string, clip []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if clip != nil {
		part, err := mw.CreateFormFile("audio", "clip.wav")
		if err != nil {
			t.Fatal(err)
		}
		part.Write(clip)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(t *testing.T, h http.Handler, req *http.Request, wantStatus int, out any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != wantStatus {
		t.Fatalf("%s %s: status = %d, want %d (body %s)", req.Method, req.URL.Path, rec.Code, wantStatus, rec.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decoding %s: %v", rec.Body.String(), err)
		}
	}
}

func TestHealthEndpoints(t *testing.T) {
	h := setupTestServer(t)

	var health map[string]string
	serve(t, h, httptest.NewRequest(http.MethodGet, "/health", nil), http.StatusOK, &health)
	if health["status"] != "healthy" {
		t.Errorf("health = %v", health)
	}

	var metrics MetricsResponse
	serve(t, h, httptest.NewRequest(http.MethodGet, "/api/health/metrics", nil), http.StatusOK, &metrics)
	if metrics.SpeakerCount != 0 || metrics.DistanceThreshold != voicegate.DefaultDistanceThreshold {
		t.Errorf("metrics = %+v", metrics)
	}

	serve(t, h, httptest.NewRequest(http.MethodGet, "/metrics", nil), http.StatusOK, nil)
	serve(t, h, httptest.NewRequest(http.MethodGet, "/nope", nil), http.StatusNotFound, nil)
}

func TestEnrollVerifyDelete(t *testing.T) {
	h := setupTestServer(t)

	var enrolled EnrollResponse
	serve(t, h, uploadRequest(t, "/api/speakers",
		map[string]string{"username": "alice"},
		wavBytes(t, audiotest.Alice.Render(rate, utterance, 1)),
	), http.StatusCreated, &enrolled)
	if enrolled.Speaker.Username != "alice" || enrolled.Speaker.ID == "" {
		t.Fatalf("enrolled = %+v", enrolled)
	}

	var list ListSpeakersResponse
	serve(t, h, httptest.NewRequest(http.MethodGet, "/api/speakers", nil), http.StatusOK, &list)
	if list.Count != 1 || list.Speakers[0].ID != enrolled.Speaker.ID {
		t.Errorf("list = %+v", list)
	}

	tests := []struct {
		name     string
		username string
		clip     audio.Buffer
		want     models.Decision
	}{
		{"genuine", "alice", audiotest.Alice.Render(rate, utterance, 2), models.Granted},
		{"silent", "alice", audiotest.Silence(rate, utterance), models.SpoofRejected},
		{"unknown", "carol", audiotest.Alice.Render(rate, utterance, 2), models.NotEnrolled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var res VerifyResponse
			serve(t, h, uploadRequest(t, "/api/verify",
				map[string]string{"username": tt.username},
				wavBytes(t, tt.clip),
			), http.StatusOK, &res)
			if res.Decision != tt.want {
				t.Errorf("decision = %s, want %s", res.Decision, tt.want)
			}
		})
	}

	var speaker SpeakerDTO
	serve(t, h, httptest.NewRequest(http.MethodGet, "/api/speakers/"+enrolled.Speaker.ID, nil), http.StatusOK, &speaker)
	if speaker.Username != "alice" {
		t.Errorf("speaker = %+v", speaker)
	}

	serve(t, h, httptest.NewRequest(http.MethodDelete, "/api/speakers/"+enrolled.Speaker.ID, nil), http.StatusOK, nil)

	var errResp ErrorResponse
	serve(t, h, httptest.NewRequest(http.MethodDelete, "/api/speakers/"+enrolled.Speaker.ID, nil), http.StatusNotFound, &errResp)
	if errResp.ErrorKind != voicegate.KindSpeakerNotFound {
		t.Errorf("error_kind = %q", errResp.ErrorKind)
	}
}

func TestVerifyUnevaluable(t *testing.T) {
	h := setupTestServer(t)
	serve(t, h, uploadRequest(t, "/api/speakers",
		map[string]string{"username": "alice"},
		wavBytes(t, audiotest.Alice.Render(rate, utterance, 1)),
	), http.StatusCreated, nil)

	var errResp ErrorResponse
	serve(t, h, uploadRequest(t, "/api/verify",
		map[string]string{"username": "alice"},
		wavBytes(t, audiotest.Sine(rate, 100, 440, 0.5)),
	), http.StatusUnprocessableEntity, &errResp)
	if errResp.ErrorKind != voicegate.KindInvalidAudio {
		t.Errorf("error_kind = %q, want %s", errResp.ErrorKind, voicegate.KindInvalidAudio)
	}

	serve(t, h, uploadRequest(t, "/api/verify",
		map[string]string{"username": "alice"}, nil,
	), http.StatusBadRequest, nil)
	serve(t, h, uploadRequest(t, "/api/verify",
		map[string]string{"username": "alice", "threshold": "abc"},
		wavBytes(t, audiotest.Alice.Render(rate, utterance, 2)),
	), http.StatusBadRequest, nil)
	serve(t, h, httptest.NewRequest(http.MethodGet, "/api/verify", nil), http.StatusMethodNotAllowed, nil)
}

func TestEnrollRejections(t *testing.T) {
	h := setupTestServer(t)

	var errResp ErrorResponse
	serve(t, h, uploadRequest(t, "/api/speakers",
		map[string]string{"username": "alice"},
		wavBytes(t, audiotest.Silence(rate, utterance)),
	), http.StatusUnprocessableEntity, &errResp)
	if errResp.ErrorKind != voicegate.KindEnrollmentRejected {
		t.Errorf("error_kind = %q", errResp.ErrorKind)
	}

	serve(t, h, uploadRequest(t, "/api/speakers",
		map[string]string{"username": "../root"},
		wavBytes(t, audiotest.Alice.Render(rate, utterance, 1)),
	), http.StatusBadRequest, &errResp)
	if errResp.ErrorKind != voicegate.KindInvalidUsername {
		t.Errorf("error_kind = %q", errResp.ErrorKind)
	}

	serve(t, h, uploadRequest(t, "/api/speakers", nil,
		wavBytes(t, audiotest.Alice.Render(rate, utterance, 1)),
	), http.StatusBadRequest, nil)
}

func TestIdentify(t *testing.T) {
	h := setupTestServer(t)

	var empty IdentifyResponse
	serve(t, h, uploadRequest(t, "/api/identify", nil,
		wavBytes(t, audiotest.Alice.Render(rate, utterance, 2)),
	), http.StatusOK, &empty)
	if empty.Decision != models.NotEnrolled {
		t.Errorf("empty store decision = %s", empty.Decision)
	}

	for name, voice := range map[string]audiotest.Voice{"alice": audiotest.Alice, "bob": audiotest.Bob} {
		serve(t, h, uploadRequest(t, "/api/speakers",
			map[string]string{"username": name},
			wavBytes(t, voice.Render(rate, utterance, 1)),
		), http.StatusCreated, nil)
	}

	var res IdentifyResponse
	serve(t, h, uploadRequest(t, "/api/identify", nil,
		wavBytes(t, audiotest.Bob.Render(rate, utterance, 2)),
	), http.StatusOK, &res)
	if res.Count != 2 || res.Best == nil || res.Best.Username != "bob" {
		t.Errorf("identify = %+v", res)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := setupTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/verify", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestCORSAllowList(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	h := corsMiddleware([]string{"https://app.example"})(next)

	for origin, want := range map[string]string{
		"https://app.example":  "https://app.example",
		"https://evil.example": "",
	} {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", origin)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != want {
			t.Errorf("origin %s: got %q, want %q", origin, got, want)
		}
	}
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	if got := getClientIP(req); got != "10.0.0.1" {
		t.Errorf("RemoteAddr: got %q", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := getClientIP(req); got != "203.0.113.7" {
		t.Errorf("X-Forwarded-For: got %q", got)
	}
}
