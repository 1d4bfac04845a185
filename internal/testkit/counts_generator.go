package testkit

import (
	"fmt"
	"math"
	"math/rand"

	"godex/domain/detest"

	"gonum.org/v1/gonum/mat"
)

// CountsConfig configures the synthetic expression generator
type CountsConfig struct {
	Groups   []string
	PerGroup int
	Genes    int
	// BaseMean is the expected expression of every gene in the first group.
	BaseMean float64
	// Effects maps a gene index to the multiplicative shift of each group.
	Effects map[int][]float64
	// Noise is the relative spread of observations around their mean.
	Noise float64
	Seed  int64
}

// DefaultCountsConfig returns a small two-group data set
func DefaultCountsConfig() CountsConfig {
	return CountsConfig{
		Groups:   []string{"a", "b"},
		PerGroup: 10,
		Genes:    5,
		BaseMean: 20,
		Effects:  map[int][]float64{},
		Noise:    0.2,
		Seed:     42,
	}
}

// Counts is a generated data set
type Counts struct {
	X        *mat.Dense
	Grouping []string
	Genes    detest.GeneSet
}

// GenerateCounts draws a deterministic observations x genes matrix.
func GenerateCounts(cfg CountsConfig) *Counts {
	rng := rand.New(rand.NewSource(cfg.Seed))
	n := cfg.PerGroup * len(cfg.Groups)
	x := mat.NewDense(n, cfg.Genes, nil)
	grouping := make([]string, n)
	for k, grp := range cfg.Groups {
		for r := 0; r < cfg.PerGroup; r++ {
			i := k*cfg.PerGroup + r
			grouping[i] = grp
			for j := 0; j < cfg.Genes; j++ {
				mean := cfg.BaseMean
				if eff, ok := cfg.Effects[j]; ok && k < len(eff) {
					mean *= eff[k]
				}
				v := mean * (1 + cfg.Noise*rng.NormFloat64())
				x.Set(i, j, math.Max(0, math.Round(v)))
			}
		}
	}
	genes := make(detest.GeneSet, cfg.Genes)
	for j := range genes {
		genes[j] = fmt.Sprintf("gene%d", j)
	}
	return &Counts{X: x, Grouping: grouping, Genes: genes}
}
