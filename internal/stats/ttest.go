package stats

import (
	"math"

	"godex/domain/core"

	"gonum.org/v1/gonum/stat/distuv"
)

// WelchTTest returns two-sided Welch p-values from group moments.
//
// When both groups have zero variance the statistic is undefined. A non-zero
// mean difference then yields p = 0 and equal means yield p = 1.
func WelchTTest(mean0, mean1, var0, var1 []float64, n0, n1 int) ([]float64, error) {
	g := len(mean0)
	if len(mean1) != g || len(var0) != g || len(var1) != g {
		return nil, core.NewShapeError("group moments", g, len(mean1))
	}
	pvals := make([]float64, g)
	if n0 < 2 || n1 < 2 {
		for i := range pvals {
			pvals[i] = math.NaN()
		}
		return pvals, nil
	}
	f0, f1 := float64(n0), float64(n1)
	for i := 0; i < g; i++ {
		if var0[i] == 0 && var1[i] == 0 {
			if mean0[i] != mean1[i] {
				pvals[i] = 0
			} else {
				pvals[i] = 1
			}
			continue
		}
		a, b := var0[i]/f0, var1[i]/f1
		t := (mean0[i] - mean1[i]) / math.Sqrt(a+b)
		df := (a + b) * (a + b) / (a*a/(f0-1) + b*b/(f1-1))
		pvals[i] = TPValue(t, df)
	}
	return pvals, nil
}

// TPValue is the two-sided Student-t p-value of t with df degrees of freedom.
func TPValue(t, df float64) float64 {
	if math.IsNaN(t) || math.IsNaN(df) || df <= 0 {
		return math.NaN()
	}
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return math.Min(1, 2*dist.Survival(math.Abs(t)))
}
