package stats

import (
	"math"

	"godex/domain/core"

	"gonum.org/v1/gonum/stat/distuv"
)

// LRTStatistic returns 2*(llFull - llReduced) per gene.
func LRTStatistic(llFull, llReduced []float64) ([]float64, error) {
	if len(llFull) != len(llReduced) {
		return nil, core.NewShapeError("reduced log-likelihood", len(llFull), len(llReduced))
	}
	stat := make([]float64, len(llFull))
	for i := range llFull {
		stat[i] = 2 * (llFull[i] - llReduced[i])
	}
	return stat, nil
}

// LikelihoodRatioTest compares nested models against a chi-square
// distribution with dfFull - dfReduced degrees of freedom.
func LikelihoodRatioTest(llFull, llReduced []float64, dfFull, dfReduced int) ([]float64, error) {
	stat, err := LRTStatistic(llFull, llReduced)
	if err != nil {
		return nil, err
	}
	df := dfFull - dfReduced
	pvals := make([]float64, len(stat))
	if df <= 0 {
		for i := range pvals {
			pvals[i] = math.NaN()
		}
		return pvals, nil
	}
	chi := distuv.ChiSquared{K: float64(df)}
	for i, s := range stat {
		pvals[i] = ChiSquarePValue(chi, s)
	}
	return pvals, nil
}

// Regressions counts genes where the full model is less likely than the
// reduced one.
func Regressions(llFull, llReduced []float64) int {
	n := 0
	for i := range llFull {
		if i < len(llReduced) && llFull[i] < llReduced[i] {
			n++
		}
	}
	return n
}

// ChiSquarePValue is the upper tail of chi at s. Non-positive statistics map
// to 1.
func ChiSquarePValue(chi distuv.ChiSquared, s float64) float64 {
	if math.IsNaN(s) {
		return math.NaN()
	}
	if s <= 0 {
		return 1
	}
	return chi.Survival(s)
}
