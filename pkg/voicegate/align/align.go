// Package align measures how far apart two feature sequences are with
// dynamic time warping. FastDTW approximates the optimal warping path in
// linear time by solving a coarsened problem first and refining only a band
// around its solution.
package align

import (
	"errors"
	"fmt"
	"math"

	"github.com/himanishpuri/VoiceGate/pkg/voicegate/features"
)

var (
	ErrEmptySequence = errors.New("empty feature sequence")
	// ErrDimensionMismatch is shared with the features package so either
	// sentinel matches.
	ErrDimensionMismatch = features.ErrDimensionMismatch
)

const DefaultRadius = 1

// Pair is one cell (I in the first sequence, J in the second) of a warping
// path.
type Pair struct {
	I, J int
}

// Result is the cumulative Euclidean cost of the warping path. Path starts at
// (0,0), ends at (n-1,m-1) and advances by at most one in each index per step.
type Result struct {
	Distance float64
	Path     []Pair
}

// Normalized returns the distance divided by the path length.
func (r Result) Normalized() float64 {
	if len(r.Path) == 0 {
		return 0
	}
	return r.Distance / float64(len(r.Path))
}

type Config struct {
	Radius int
}

func DefaultConfig() Config {
	return Config{Radius: DefaultRadius}
}

// Aligner runs FastDTW with a fixed radius. It holds no mutable state.
type Aligner struct {
	radius int
}

func NewAligner(cfg Config) (*Aligner, error) {
	if cfg.Radius < 0 {
		return nil, fmt.Errorf("alignment radius must not be negative, got %d", cfg.Radius)
	}
	return &Aligner{radius: cfg.Radius}, nil
}

func (a *Aligner) Radius() int { return a.radius }

// Align returns the FastDTW distance and path between x and y.
// Align(x, y) and Align(y, x) report the same distance.
func (a *Aligner) Align(x, y features.Sequence) (Result, error) {
	return run(x, y, func(p, q []features.Vector) (float64, []Pair) {
		return fastDTW(p, q, a.radius)
	})
}

// DTW computes the exact full-matrix alignment. It costs O(n*m) time and
// memory and exists for calibration and for checking FastDTW.
func DTW(x, y features.Sequence) (Result, error) {
	return run(x, y, func(p, q []features.Vector) (float64, []Pair) {
		return dtw(p, q, fullBand(len(p), len(q)))
	})
}

func run(x, y features.Sequence, solve func(p, q []features.Vector) (float64, []Pair)) (Result, error) {
	if x.Len() == 0 || y.Len() == 0 {
		return Result{}, fmt.Errorf("%w: lengths %d and %d", ErrEmptySequence, x.Len(), y.Len())
	}
	if x.Dim() != y.Dim() {
		return Result{}, fmt.Errorf("%w: %d vs %d coefficients", ErrDimensionMismatch, x.Dim(), y.Dim())
	}

	p, q := frames(x), frames(y)

	// Solve in a canonical orientation so the result does not depend on
	// argument order.
	swapped := less(q, p)
	if swapped {
		p, q = q, p
	}

	dist, path := solve(p, q)
	if swapped {
		for i := range path {
			path[i] = Pair{I: path[i].J, J: path[i].I}
		}
	}
	return Result{Distance: dist, Path: path}, nil
}

func frames(s features.Sequence) []features.Vector {
	out := make([]features.Vector, s.Len())
	for i := range out {
		out[i] = s.At(i)
	}
	return out
}

// less orders sequences by length, then lexicographically by frame values.
func less(a, b []features.Vector) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	for i := range a {
		for k := range a[i] {
			if a[i][k] != b[i][k] {
				return a[i][k] < b[i][k]
			}
		}
	}
	return false
}

func euclidean(a, b features.Vector) float64 {
	var sum float64
	for k := range a {
		d := a[k] - b[k]
		sum += d * d
	}
	return math.Sqrt(sum)
}
