package features

import "math"

// Slaney-style mel scale: linear below 1 kHz, logarithmic above.
const (
	melFSp       = 200.0 / 3
	melMinLogHz  = 1000.0
	melMinLogMel = melMinLogHz / melFSp
)

var melLogStep = math.Log(6.4) / 27

func hzToMel(hz float64) float64 {
	if hz < melMinLogHz {
		return hz / melFSp
	}
	return melMinLogMel + math.Log(hz/melMinLogHz)/melLogStep
}

func melToHz(mel float64) float64 {
	if mel < melMinLogMel {
		return mel * melFSp
	}
	return melMinLogHz * math.Exp(melLogStep*(mel-melMinLogMel))
}

// melFilter is one triangular filter stored as a dense run of weights over
// FFT bins [start, start+len(weights)).
type melFilter struct {
	start   int
	weights []float64
}

func (f melFilter) apply(power []float64) float64 {
	var sum float64
	for i, w := range f.weights {
		sum += w * power[f.start+i]
	}
	return sum
}

// newMelFilterbank builds numMels area-normalized triangular filters spanning
// 0 Hz to Nyquist over the frameSize/2+1 non-negative FFT bins. A filter too
// narrow to cover any bin center gets unit weight on the bin nearest its
// center so no band is identically zero.
func newMelFilterbank(numMels, frameSize, sampleRate int) []melFilter {
	bins := frameSize/2 + 1
	nyquist := float64(sampleRate) / 2

	binHz := make([]float64, bins)
	for k := range binHz {
		binHz[k] = float64(k) * float64(sampleRate) / float64(frameSize)
	}

	maxMel := hzToMel(nyquist)
	edges := make([]float64, numMels+2)
	for i := range edges {
		edges[i] = melToHz(maxMel * float64(i) / float64(numMels+1))
	}

	filters := make([]melFilter, numMels)
	for m := 0; m < numMels; m++ {
		lo, center, hi := edges[m], edges[m+1], edges[m+2]
		enorm := 2 / (hi - lo)

		start, end := -1, -1
		weights := make([]float64, bins)
		for k, f := range binHz {
			lower := (f - lo) / (center - lo)
			upper := (hi - f) / (hi - center)
			w := math.Max(0, math.Min(lower, upper))
			if w > 0 {
				weights[k] = w * enorm
				if start < 0 {
					start = k
				}
				end = k + 1
			}
		}

		if start < 0 {
			k := int(math.Round(center * float64(frameSize) / float64(sampleRate)))
			if k >= bins {
				k = bins - 1
			}
			filters[m] = melFilter{start: k, weights: []float64{enorm}}
			continue
		}
		filters[m] = melFilter{start: start, weights: weights[start:end]}
	}
	return filters
}

// dctMatrix returns the first count rows of the orthonormal DCT-II of size n.
func dctMatrix(count, n int) [][]float64 {
	m := make([][]float64, count)
	for k := range m {
		scale := math.Sqrt(2 / float64(n))
		if k == 0 {
			scale = math.Sqrt(1 / float64(n))
		}
		row := make([]float64, n)
		for i := range row {
			row[i] = scale * math.Cos(math.Pi*float64(k)*(2*float64(i)+1)/(2*float64(n)))
		}
		m[k] = row
	}
	return m
}
