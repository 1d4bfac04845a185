package stats

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// MannWhitneyU runs a two-sided rank-sum test with tie and continuity
// correction. It returns U of the first sample and the p-value.
func MannWhitneyU(x0, x1 []float64) (u, p float64) {
	n0, n1 := len(x0), len(x1)
	if n0 == 0 || n1 == 0 {
		return math.NaN(), math.NaN()
	}
	n := n0 + n1
	all := make([]float64, 0, n)
	all = append(all, x0...)
	all = append(all, x1...)
	ranks, ties := Ranks(all)

	r0 := floats.Sum(ranks[:n0])
	u0 := r0 - float64(n0*(n0+1))/2
	u1 := float64(n0*n1) - u0

	fn := float64(n)
	mu := float64(n0*n1) / 2
	sd := math.Sqrt(float64(n0*n1) / 12 * ((fn + 1) - ties/(fn*(fn-1))))
	if sd == 0 || math.IsNaN(sd) {
		return u0, math.NaN()
	}
	z := (math.Max(u0, u1) - mu - 0.5) / sd
	return u0, math.Min(1, 2*distuv.UnitNormal.Survival(z))
}

// Ranks returns 1-based average ranks and the tie term sum(t^3 - t).
func Ranks(x []float64) ([]float64, float64) {
	sorted := append([]float64(nil), x...)
	idx := make([]int, len(x))
	floats.Argsort(sorted, idx)

	ranks := make([]float64, len(x))
	ties := 0.0
	for i := 0; i < len(sorted); {
		j := i + 1
		for j < len(sorted) && sorted[j] == sorted[i] {
			j++
		}
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[idx[k]] = avg
		}
		if t := float64(j - i); t > 1 {
			ties += t*t*t - t
		}
		i = j
	}
	return ranks, ties
}
