package detest

import (
	"math"

	"godex/domain/detest"
	"godex/internal/stats"

	"gonum.org/v1/gonum/mat"
)

// RankTest is a Mann-Whitney U test between two groups of raw observations.
type RankTest struct {
	single
	*twoGroup
	groups []string
}

// NewRankTest tests the two levels of grouping against each other.
func NewRankTest(x mat.Matrix, grouping []string, genes detest.GeneSet, opts ...Option) (*RankTest, error) {
	o, err := resolve(detest.CorrectGlobal, opts)
	if err != nil {
		return nil, err
	}
	if err := checkGenes(x, genes); err != nil {
		return nil, err
	}
	groups, rows0, rows1, err := splitGrouping(x, grouping)
	if err != nil {
		return nil, err
	}
	return newRankTestRows(x, rows0, rows1, groups, genes, o), nil
}

func newRankTestRows(x mat.Matrix, rows0, rows1 []int, groups []string, genes detest.GeneSet, o Options) *RankTest {
	t := &RankTest{twoGroup: newTwoGroup(x, rows0, rows1, o.Logged), groups: groups}
	t.single.init(detest.KindRank, genes, o)
	t.pvalFn = t.computePval
	t.meanFn = func() []float64 { return t.overall }
	t.lfcFn = t.twoGroup.logFoldChange
	return t
}

// Groups returns the two compared levels, reference first.
func (t *RankTest) Groups() []string { return t.groups }

func (t *RankTest) computePval() []float64 {
	run := t.runnable()
	p := make([]float64, len(run))
	x0 := make([]float64, len(t.rows0))
	x1 := make([]float64, len(t.rows1))
	for g, ok := range run {
		if !ok {
			p[g] = math.NaN()
			continue
		}
		stats.ColumnValues(t.x, g, t.rows0, x0)
		stats.ColumnValues(t.x, g, t.rows1, x1)
		_, p[g] = stats.MannWhitneyU(x0, x1)
	}
	return p
}

func (t *RankTest) Summary(th detest.Threshold) (*detest.Table, error) {
	return t.summarize(th, t.extras()...)
}
