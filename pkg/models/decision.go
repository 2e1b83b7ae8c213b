package models

import (
	"encoding/json"
	"fmt"
)

// Decision is the outcome of a verification attempt.
type Decision int

const (
	NotEnrolled Decision = iota
	SpoofRejected
	Denied
	Granted
)

func (d Decision) String() string {
	switch d {
	case NotEnrolled:
		return "not_enrolled"
	case SpoofRejected:
		return "spoof_rejected"
	case Denied:
		return "denied"
	case Granted:
		return "granted"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// ParseDecision is the inverse of Decision.String.
func ParseDecision(s string) (Decision, error) {
	for _, d := range []Decision{NotEnrolled, SpoofRejected, Denied, Granted} {
		if d.String() == s {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown decision %q", s)
}

func (d Decision) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Decision) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDecision(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
