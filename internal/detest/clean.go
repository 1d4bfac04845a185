package detest

import (
	"math"

	"godex/domain/detest"
)

// DefaultLog10Threshold is the floor of the cleaned log10 p-values.
const DefaultLog10Threshold = -30.0

// Log10Clean maps p-values onto [threshold, 0] in log10 space. Zeros are
// replaced by the smallest positive float before the log and NaN maps to 1.
func Log10Clean(p []float64, threshold float64) []float64 {
	out := make([]float64, len(p))
	for i, v := range p {
		out[i] = log10Clean(v, threshold)
	}
	return out
}

func log10Clean(v, threshold float64) float64 {
	if math.IsNaN(v) {
		return 1
	}
	if v == 0 {
		v = math.SmallestNonzeroFloat64
	}
	l := math.Log10(v)
	if l < threshold {
		return threshold
	}
	if l > 0 {
		return 0
	}
	return l
}

// Log10CleanTensor applies Log10Clean to every entry of t.
func Log10CleanTensor(t *detest.Tensor, threshold float64) *detest.Tensor {
	if t == nil {
		return nil
	}
	return &detest.Tensor{A: t.A, B: t.B, G: t.G, Data: Log10Clean(t.Data, threshold)}
}
