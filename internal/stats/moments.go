package stats

import (
	"math"

	mstats "github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"
)

// Moments returns the mean and the sample variance. Fewer than two values
// give a zero variance; an empty slice gives NaN for both.
func Moments(x []float64) (mean, variance float64) {
	m, err := mstats.Mean(x)
	if err != nil {
		return math.NaN(), math.NaN()
	}
	if len(x) < 2 {
		return m, 0
	}
	v, err := mstats.SampleVariance(x)
	if err != nil {
		return m, math.NaN()
	}
	return m, v
}

// ColumnMoments computes Moments for every column of x restricted to rows.
// A nil rows selects all rows.
func ColumnMoments(x mat.Matrix, rows []int) (means, variances []float64) {
	r, g := x.Dims()
	if rows == nil {
		rows = make([]int, r)
		for i := range rows {
			rows[i] = i
		}
	}
	means = make([]float64, g)
	variances = make([]float64, g)
	buf := make([]float64, len(rows))
	for j := 0; j < g; j++ {
		ColumnValues(x, j, rows, buf)
		means[j], variances[j] = Moments(buf)
	}
	return means, variances
}

// ColumnValues copies column j at the given rows into dst.
func ColumnValues(x mat.Matrix, j int, rows []int, dst []float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(rows))
	}
	for k, i := range rows {
		dst[k] = x.At(i, j)
	}
	return dst
}
