package align

import (
	"math"
	"testing"

	"github.com/himanishpuri/VoiceGate/pkg/voicegate/features"
)

func checkBand(t *testing.T, b band, n, m int) {
	t.Helper()
	if b.lo[0] != 0 || b.hi[n-1] != m-1 {
		t.Fatalf("band does not span corners: lo[0]=%d hi[n-1]=%d", b.lo[0], b.hi[n-1])
	}
	for i := 0; i < n; i++ {
		if b.lo[i] > b.hi[i] || b.lo[i] < 0 || b.hi[i] >= m {
			t.Fatalf("row %d invalid: [%d, %d]", i, b.lo[i], b.hi[i])
		}
		if i > 0 {
			if b.lo[i] < b.lo[i-1] || b.hi[i] < b.hi[i-1] {
				t.Fatalf("row %d not monotone", i)
			}
			if b.lo[i] > b.hi[i-1]+1 {
				t.Fatalf("row %d not contiguous with row %d", i, i-1)
			}
		}
	}
}

func TestExpandOddLengths(t *testing.T) {
	// coarse diagonal of a 4x3 problem projected onto 7x5
	coarse := []Pair{{0, 0}, {1, 1}, {2, 1}, {3, 2}}
	for _, radius := range []int{0, 1, 2} {
		b := expand(coarse, 7, 5, radius)
		checkBand(t, b, 7, 5)
	}
}

func TestRepairSparseBand(t *testing.T) {
	n, m := 6, 9
	b := band{lo: make([]int, n), hi: make([]int, n)}
	for i := range b.lo {
		b.lo[i], b.hi[i] = m, -1
	}
	// only two isolated cells marked
	b.lo[1], b.hi[1] = 4, 4
	b.lo[4], b.hi[4] = 2, 3

	b.repair(m)
	checkBand(t, b, n, m)
}

func TestBandLinearSize(t *testing.T) {
	n, m, radius := 400, 400, 1
	coarse := make([]Pair, 200)
	for i := range coarse {
		coarse[i] = Pair{i, i}
	}
	b := expand(coarse, n, m, radius)
	checkBand(t, b, n, m)

	if cells := b.cells(); cells > (n+m)*(2*radius+3) {
		t.Errorf("band has %d cells, expected O((n+m)*radius)", cells)
	}
}

func TestDTWPathStaysOnGridWithUnorderedCosts(t *testing.T) {
	n, m := 6, 9
	x := make([]features.Vector, n)
	for i := range x {
		x[i] = features.Vector{math.NaN(), float64(i)}
	}
	y := make([]features.Vector, m)
	for j := range y {
		y[j] = features.Vector{float64(j), 0}
	}

	_, path := dtw(x, y, fullBand(n, m))
	if path[0] != (Pair{0, 0}) || path[len(path)-1] != (Pair{n - 1, m - 1}) {
		t.Fatalf("path runs %v -> %v", path[0], path[len(path)-1])
	}
	for k, p := range path {
		if p.I < 0 || p.J < 0 || p.I >= n || p.J >= m {
			t.Fatalf("step %d leaves the grid: %v", k, p)
		}
	}
}
