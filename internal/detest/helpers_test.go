package detest

import (
	"math"
	"testing"

	"godex/domain/detest"
	"godex/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// scenarioA is two groups of ten observations where gene3 is constant inside
// each group with different levels.
func scenarioA() *testkit.Counts {
	cfg := testkit.DefaultCountsConfig()
	cfg.Effects[1] = []float64{1, 3}
	c := testkit.GenerateCounts(cfg)
	for i, g := range c.Grouping {
		if g == "a" {
			c.X.Set(i, 3, 5)
		} else {
			c.X.Set(i, 3, 50)
		}
	}
	return c
}

func threeGroups() *testkit.Counts {
	cfg := testkit.DefaultCountsConfig()
	cfg.Groups = []string{"a", "b", "c"}
	cfg.PerGroup = 8
	cfg.Genes = 4
	cfg.Effects[0] = []float64{1, 3, 1}
	cfg.Effects[2] = []float64{1, 0.5, 2}
	return testkit.GenerateCounts(cfg)
}

// splineEstimate has design columns Intercept, s0, s1 over three
// observations and two genes.
func splineEstimate() *detest.StaticEstimate {
	fisher := make([]*mat.SymDense, 2)
	for g := range fisher {
		fisher[g] = mat.NewSymDense(3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	}
	return &detest.StaticEstimate{
		Genes:    detest.GeneSet{"g0", "g1"},
		Data:     mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6}),
		Loc:      mat.NewDense(3, 3, []float64{1, 0, 0, 1, 1, 0, 1, 0, 1}),
		LocNames: []string{"Intercept", "s0", "s1"},
		A:        mat.NewDense(3, 2, []float64{0, 1, 1, -1, 2, 0}),
		LL:       []float64{-3, -4},
		Fisher:   fisher,
	}
}

func assertNaNAligned(t *testing.T, p, q []float64) {
	t.Helper()
	require.Len(t, q, len(p))
	for i := range p {
		assert.Equal(t, math.IsNaN(p[i]), math.IsNaN(q[i]), "gene %d", i)
	}
}

func assertBaseInvariant(t *testing.T, s Single) {
	t.Helper()
	e := s.LogFoldChange(math.E)
	ten := s.LogFoldChange(10)
	require.Len(t, ten, len(e))
	for i := range e {
		assert.InDelta(t, e[i]/math.Ln10, ten[i], 1e-12, "gene %d", i)
	}
}
