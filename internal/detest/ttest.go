package detest

import (
	"math"

	"godex/domain/detest"
	"godex/internal/stats"

	"gonum.org/v1/gonum/mat"
)

// TTest is a Welch t-test between two groups of raw observations.
type TTest struct {
	single
	*twoGroup
	groups []string
}

// NewTTest tests the two levels of grouping against each other. The sorted
// second level is the numerator of the fold change.
func NewTTest(x mat.Matrix, grouping []string, genes detest.GeneSet, opts ...Option) (*TTest, error) {
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
	return newTTestRows(x, rows0, rows1, groups, genes, o), nil
}

func newTTestRows(x mat.Matrix, rows0, rows1 []int, groups []string, genes detest.GeneSet, o Options) *TTest {
	t := &TTest{twoGroup: newTwoGroup(x, rows0, rows1, o.Logged), groups: groups}
	t.single.init(detest.KindTTest, genes, o)
	t.pvalFn = t.computePval
	t.meanFn = func() []float64 { return t.overall }
	t.lfcFn = t.twoGroup.logFoldChange
	return t
}

// Groups returns the two compared levels, reference first.
func (t *TTest) Groups() []string { return t.groups }

func (t *TTest) computePval() []float64 {
	p, _ := stats.WelchTTest(t.mean0, t.mean1, t.var0, t.var1, len(t.rows0), len(t.rows1))
	zm, zv := t.zeroMean(), t.zeroVariance()
	for g := range p {
		switch {
		case zv[g]:
			// both groups constant: a separation keeps p = 0, equal means are untested
			if t.mean0[g] == t.mean1[g] {
				p[g] = math.NaN()
			}
		case zm[g]:
			p[g] = math.NaN()
		}
	}
	return p
}

func (t *TTest) Summary(th detest.Threshold) (*detest.Table, error) {
	return t.summarize(th, t.extras()...)
}
