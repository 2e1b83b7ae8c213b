package main

import (
	"time"

	"github.com/himanishpuri/VoiceGate/pkg/models"
)

// Upload limits for multipart requests
const (
	// MaxEnrollUploadBytes bounds enrollment recordings (~5 minutes of 16-bit stereo 48 kHz)
	MaxEnrollUploadBytes = 64 << 20

	// MaxProbeUploadBytes bounds verification and identification probes
	MaxProbeUploadBytes = 32 << 20
)

// SpeakerDTO represents an enrolled speaker in API responses
type SpeakerDTO struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	SampleRate int       `json:"sample_rate"`
	DurationMs int       `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

func speakerDTO(sp models.Speaker) SpeakerDTO {
	return SpeakerDTO{
		ID:         sp.ID,
		Username:   sp.Username,
		SampleRate: sp.SampleRate,
		DurationMs: sp.DurationMs,
		CreatedAt:  sp.CreatedAt,
	}
}

// ListSpeakersResponse is the response for GET /api/speakers
type ListSpeakersResponse struct {
	Speakers []SpeakerDTO `json:"speakers"`
	Count    int          `json:"count"`
}

// EnrollResponse is the response for POST /api/speakers
type EnrollResponse struct {
	Message string     `json:"message"`
	Speaker SpeakerDTO `json:"speaker"`
}

// DeleteSpeakerResponse is the response for DELETE /api/speakers/{id}
type DeleteSpeakerResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// VerifyResponse is the response for POST /api/verify. Every decision,
// including denied and spoof_rejected, is returned with status 200.
type VerifyResponse struct {
	Decision           models.Decision `json:"decision"`
	Username           string          `json:"username"`
	Distance           float64         `json:"distance"`
	NormalizedDistance float64         `json:"normalized_distance"`
	Threshold          float64         `json:"threshold"`
	PathLength         int             `json:"path_length"`
	ZeroCrossingRate   float64         `json:"zero_crossing_rate"`
	Energy             float64         `json:"energy"`
	ProbeFrames        int             `json:"probe_frames"`
	TemplateFrames     int             `json:"template_frames"`
	ElapsedMs          int64           `json:"elapsed_ms"`
}

func verifyResponse(res models.VerificationResult) VerifyResponse {
	return VerifyResponse{
		Decision:           res.Decision,
		Username:           res.Username,
		Distance:           res.Distance,
		NormalizedDistance: res.NormalizedDistance,
		Threshold:          res.Threshold,
		PathLength:         res.PathLength,
		ZeroCrossingRate:   res.ZeroCrossingRate,
		Energy:             res.Energy,
		ProbeFrames:        res.ProbeFrames,
		TemplateFrames:     res.TemplateFrames,
		ElapsedMs:          res.Elapsed.Milliseconds(),
	}
}

// MatchDTO represents a single identification candidate
type MatchDTO struct {
	SpeakerID string          `json:"speaker_id"`
	Username  string          `json:"username"`
	Distance  float64         `json:"distance"`
	Decision  models.Decision `json:"decision"`
}

// IdentifyResponse is the response for POST /api/identify
type IdentifyResponse struct {
	Decision         models.Decision `json:"decision"`
	Best             *MatchDTO       `json:"best,omitempty"`
	Matches          []MatchDTO      `json:"matches"`
	Count            int             `json:"count"`
	Threshold        float64         `json:"threshold"`
	ZeroCrossingRate float64         `json:"zero_crossing_rate"`
	Energy           float64         `json:"energy"`
	ElapsedMs        int64           `json:"elapsed_ms"`
}

func identifyResponse(res models.IdentifyResult) IdentifyResponse {
	out := IdentifyResponse{
		Decision:         res.Decision,
		Matches:          make([]MatchDTO, len(res.Matches)),
		Count:            len(res.Matches),
		Threshold:        res.Threshold,
		ZeroCrossingRate: res.ZeroCrossingRate,
		Energy:           res.Energy,
		ElapsedMs:        res.Elapsed.Milliseconds(),
	}
	for i, m := range res.Matches {
		out.Matches[i] = MatchDTO(m)
	}
	if res.Best != nil {
		best := MatchDTO(*res.Best)
		out.Best = &best
	}
	return out
}

// MetricsResponse provides server health and store metrics
type MetricsResponse struct {
	Status            string  `json:"status"`
	Storage           string  `json:"storage"`
	SpeakerCount      int     `json:"speaker_count"`
	SampleRate        int     `json:"sample_rate"`
	DistanceThreshold float64 `json:"distance_threshold"`
	NormalizeDistance bool    `json:"normalize_distance"`
}

// ErrorResponse is the standard error response format. ErrorKind is set when
// the request was valid but the recording could not be evaluated.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Code      int    `json:"code,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
}
