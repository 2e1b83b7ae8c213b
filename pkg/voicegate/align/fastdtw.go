package align

import (
	"math"

	"github.com/himanishpuri/VoiceGate/pkg/voicegate/features"
)

// band restricts row i of the cost matrix to columns lo[i]..hi[i].
type band struct {
	lo, hi []int
}

func fullBand(n, m int) band {
	b := band{lo: make([]int, n), hi: make([]int, n)}
	for i := range b.hi {
		b.hi[i] = m - 1
	}
	return b
}

func (b band) cells() int {
	total := 0
	for i := range b.lo {
		total += b.hi[i] - b.lo[i] + 1
	}
	return total
}

func fastDTW(x, y []features.Vector, radius int) (float64, []Pair) {
	minSize := radius + 2
	if len(x) < minSize || len(y) < minSize {
		return dtw(x, y, fullBand(len(x), len(y)))
	}

	_, coarse := fastDTW(halve(x), halve(y), radius)
	return dtw(x, y, expand(coarse, len(x), len(y), radius))
}

// halve averages adjacent frames. A trailing odd frame is kept as is.
func halve(s []features.Vector) []features.Vector {
	out := make([]features.Vector, 0, (len(s)+1)/2)
	for i := 0; i < len(s); i += 2 {
		if i+1 == len(s) {
			out = append(out, s[i])
			break
		}
		v := make(features.Vector, len(s[i]))
		for k := range v {
			v[k] = (s[i][k] + s[i+1][k]) / 2
		}
		out = append(out, v)
	}
	return out
}

// expand projects a coarse path onto the n x m grid, each coarse cell
// becoming a 2x2 block, grows every projected cell by radius and returns the
// repaired per-row band.
func expand(coarse []Pair, n, m, radius int) band {
	b := band{lo: make([]int, n), hi: make([]int, n)}
	for i := range b.lo {
		b.lo[i] = m
		b.hi[i] = -1
	}

	mark := func(i, j int) {
		for r := max(0, i-radius); r <= min(n-1, i+radius); r++ {
			b.lo[r] = min(b.lo[r], max(0, j-radius))
			b.hi[r] = max(b.hi[r], min(m-1, j+radius))
		}
	}

	for _, p := range coarse {
		for di := 0; di < 2; di++ {
			for dj := 0; dj < 2; dj++ {
				i, j := 2*p.I+di, 2*p.J+dj
				if i < n && j < m {
					mark(i, j)
				}
			}
		}
	}

	b.repair(m)
	return b
}

// repair makes the band a valid search space: every row is non-empty, both
// bounds are non-decreasing, consecutive rows overlap or touch, and the band
// contains (0,0) and (n-1,m-1).
func (b band) repair(m int) {
	n := len(b.lo)
	b.lo[0] = 0
	b.hi[n-1] = m - 1

	for i := n - 1; i >= 0; i-- {
		b.lo[i] = min(b.lo[i], m-1)
		if i < n-1 {
			b.lo[i] = min(b.lo[i], b.lo[i+1])
		}
	}

	for i := 0; i < n; i++ {
		if i > 0 {
			b.hi[i] = max(b.hi[i], b.hi[i-1])
			b.lo[i] = min(b.lo[i], b.hi[i-1]+1)
		}
		b.hi[i] = max(b.hi[i], b.lo[i])
	}
}

// dtw fills the cumulative cost matrix inside b and backtracks the optimal
// path. Cells are stored row by row, so memory is proportional to the band
// size.
func dtw(x, y []features.Vector, b band) (float64, []Pair) {
	n, m := len(x), len(y)

	offsets := make([]int, n+1)
	for i := 0; i < n; i++ {
		offsets[i+1] = offsets[i] + b.hi[i] - b.lo[i] + 1
	}
	acc := make([]float64, offsets[n])

	at := func(i, j int) float64 {
		if i < 0 || j < b.lo[i] || j > b.hi[i] {
			return math.Inf(1)
		}
		return acc[offsets[i]+j-b.lo[i]]
	}

	for i := 0; i < n; i++ {
		for j := b.lo[i]; j <= b.hi[i]; j++ {
			cost := euclidean(x[i], y[j])
			var prev float64
			if i == 0 && j == 0 {
				prev = 0
			} else {
				prev = min(at(i-1, j-1), at(i-1, j), at(i, j-1))
			}
			acc[offsets[i]+j-b.lo[i]] = cost + prev
		}
	}

	path := make([]Pair, 0, n+m)
	i, j := n-1, m-1
	path = append(path, Pair{i, j})
	for i > 0 || j > 0 {
		// Edges are walked explicitly so the path stays on the grid even
		// when costs compare as unordered.
		switch {
		case i == 0:
			j--
		case j == 0:
			i--
		default:
			diag, up, left := at(i-1, j-1), at(i-1, j), at(i, j-1)
			switch {
			case diag <= up && diag <= left:
				i, j = i-1, j-1
			case up <= left:
				i--
			default:
				j--
			}
		}
		path = append(path, Pair{i, j})
	}

	for l, r := 0, len(path)-1; l < r; l, r = l+1, r-1 {
		path[l], path[r] = path[r], path[l]
	}
	return at(n-1, m-1), path
}
