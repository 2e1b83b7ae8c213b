package features

import (
	"errors"
	"fmt"
	"math"
)

// ErrDimensionMismatch is returned when frames of different lengths are
// combined, either within one Sequence or across two aligned sequences.
var ErrDimensionMismatch = errors.New("feature dimension mismatch")

// Vector is the feature vector of one analysis frame.
type Vector []float64

// Sequence is an ordered list of equally sized feature vectors.
type Sequence struct {
	frames []Vector
	dim    int
}

// NewSequence checks that every frame has dim finite entries. A sequence with
// no frames is valid; aligners reject it separately.
func NewSequence(frames []Vector, dim int) (Sequence, error) {
	if len(frames) > 0 && dim <= 0 {
		return Sequence{}, fmt.Errorf("%w: dimension %d", ErrDimensionMismatch, dim)
	}
	for i, f := range frames {
		if len(f) != dim {
			return Sequence{}, fmt.Errorf("%w: frame %d has %d coefficients, want %d",
				ErrDimensionMismatch, i, len(f), dim)
		}
		for k, v := range f {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return Sequence{}, fmt.Errorf("%w: frame %d coefficient %d is %v",
					ErrDegenerateAudio, i, k, v)
			}
		}
	}
	return Sequence{frames: frames, dim: dim}, nil
}

// Len returns the number of frames.
func (s Sequence) Len() int { return len(s.frames) }

// Dim returns the number of coefficients per frame.
func (s Sequence) Dim() int { return s.dim }

// At returns frame i. The returned vector is shared and must not be modified.
func (s Sequence) At(i int) Vector { return s.frames[i] }

// Frames returns a deep copy of the frames.
func (s Sequence) Frames() []Vector {
	out := make([]Vector, len(s.frames))
	for i, f := range s.frames {
		out[i] = append(Vector(nil), f...)
	}
	return out
}
