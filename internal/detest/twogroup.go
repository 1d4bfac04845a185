package detest

import (
	"fmt"
	"math"

	"godex/domain/core"
	"godex/domain/detest"
	"godex/internal/stats"

	"gonum.org/v1/gonum/mat"
)

// twoGroup holds the moments shared by the raw-data tests. Row sets index
// into x, so sub-tests never copy the observation matrix.
type twoGroup struct {
	x            mat.Matrix
	rows0, rows1 []int
	logged       bool

	overall      []float64
	mean0, mean1 []float64
	var0, var1   []float64
}

// splitGrouping checks that grouping has exactly two levels and returns the
// sorted levels and their rows.
func splitGrouping(x mat.Matrix, grouping []string) ([]string, []int, []int, error) {
	n, _ := x.Dims()
	if len(grouping) != n {
		return nil, nil, nil, core.NewShapeError("grouping", n, len(grouping))
	}
	groups := detest.Groups(grouping)
	if len(groups) != 2 {
		return nil, nil, nil, fmt.Errorf("%w: grouping has %d groups, want 2", core.ErrGroupCount, len(groups))
	}
	return groups, detest.Observations(grouping, groups[0]), detest.Observations(grouping, groups[1]), nil
}

func newTwoGroup(x mat.Matrix, rows0, rows1 []int, logged bool) *twoGroup {
	t := &twoGroup{x: x, rows0: rows0, rows1: rows1, logged: logged}
	all := append(append([]int(nil), rows0...), rows1...)
	t.overall, _ = stats.ColumnMoments(x, all)
	t.mean0, t.var0 = stats.ColumnMoments(x, rows0)
	t.mean1, t.var1 = stats.ColumnMoments(x, rows1)
	return t
}

// checkGenes verifies that genes names every column of x.
func checkGenes(x mat.Matrix, genes detest.GeneSet) error {
	_, g := x.Dims()
	if len(genes) != g {
		return core.NewShapeError("gene names", g, len(genes))
	}
	return nil
}

func checkSizeFactors(x mat.Matrix, sf []float64) error {
	if sf == nil {
		return nil
	}
	if n, _ := x.Dims(); len(sf) != n {
		return core.NewShapeError("size factors", n, len(sf))
	}
	return nil
}

// zeroMean flags genes whose overall mean is zero.
func (t *twoGroup) zeroMean() []bool {
	out := make([]bool, len(t.overall))
	for g, m := range t.overall {
		out[g] = m == 0
	}
	return out
}

// zeroVariance flags genes where neither group varies.
func (t *twoGroup) zeroVariance() []bool {
	out := make([]bool, len(t.overall))
	for g := range out {
		out[g] = !(t.var0[g] > 0 || t.var1[g] > 0)
	}
	return out
}

// runnable flags genes that get a real test statistic.
func (t *twoGroup) runnable() []bool {
	zm, zv := t.zeroMean(), t.zeroVariance()
	out := make([]bool, len(zm))
	for g := range out {
		out[g] = !zm[g] && !zv[g]
	}
	return out
}

// logFoldChange is group1 over group0 in natural log units.
func (t *twoGroup) logFoldChange() []float64 {
	out := make([]float64, len(t.mean0))
	for g := range out {
		if t.logged {
			out[g] = t.mean1[g] - t.mean0[g]
			continue
		}
		out[g] = math.Log(math.Max(t.mean1[g], math.SmallestNonzeroFloat64)) -
			math.Log(math.Max(t.mean0[g], math.SmallestNonzeroFloat64))
	}
	return out
}

func (t *twoGroup) extras() []detest.Column {
	return []detest.Column{
		{Name: "zero_mean", Bools: t.zeroMean()},
		{Name: "zero_variance", Bools: t.zeroVariance()},
	}
}
