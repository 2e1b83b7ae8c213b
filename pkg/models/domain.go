package models

import "time"

// Speaker is an enrolled identity. The template audio itself lives in the
// store and is not part of this record.
type Speaker struct {
	ID         string    // UUID
	Username   string    // unique
	SampleRate int       // Hz of the stored template
	DurationMs int       // template length
	CreatedAt  time.Time // last (re-)enrollment
}

// VerificationResult reports a decision together with the measurements that
// led to it. Fields after Decision are zero when the pipeline stopped early.
type VerificationResult struct {
	Decision           Decision
	Username           string
	Distance           float64 // cumulative alignment cost
	NormalizedDistance float64 // Distance / PathLength
	Threshold          float64
	PathLength         int
	ZeroCrossingRate   float64
	Energy             float64
	ProbeFrames        int
	TemplateFrames     int
	Elapsed            time.Duration
}

// IdentifyMatch is one ranked candidate of an identification query.
type IdentifyMatch struct {
	SpeakerID string
	Username  string
	Distance  float64
	Decision  Decision
}

// IdentifyResult answers "who is speaking". Decision is Granted when the best
// candidate is within the threshold, Denied when none is, SpoofRejected when
// the probe failed liveness and NotEnrolled when nobody is enrolled.
type IdentifyResult struct {
	Decision         Decision
	Best             *IdentifyMatch
	Matches          []IdentifyMatch // ascending distance
	Threshold        float64
	ZeroCrossingRate float64
	Energy           float64
	Elapsed          time.Duration
}
