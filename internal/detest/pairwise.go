package detest

import (
	"context"
	"math"

	"godex/domain/core"
	"godex/domain/detest"
)

// PairwiseResult holds eagerly evaluated tests between every pair of groups.
// P-values are symmetric, fold changes antisymmetric, and the diagonal is
// p = 1 with fold change 0.
type PairwiseResult struct {
	multi
	groups []string
	tests  [][]Single
	kept   bool
}

// pairRunner runs the test of group i (reference) against group j.
type pairRunner func(ctx context.Context, i, j int) (Single, error)

func newPairwiseFromTests(ctx context.Context, kind detest.TestKind, groups []string, genes detest.GeneSet, mean []float64, o Options, run pairRunner) (*PairwiseResult, error) {
	n, g := len(groups), len(genes)
	type pair struct{ i, j int }
	var pairs []pair
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			pairs = append(pairs, pair{i, j})
		}
	}
	results := make([]Single, len(pairs))
	err := fanOut(ctx, o.Workers, len(pairs), func(ctx context.Context, k int) error {
		t, err := run(ctx, pairs[k].i, pairs[k].j)
		results[k] = t
		return err
	})
	if err != nil {
		return nil, err
	}

	pval := detest.NewTensor(n, n, g, 1)
	lfc := detest.NewTensor(n, n, g, 0)
	for k, pr := range pairs {
		t := results[k]
		p := t.Pval()
		f := t.LogFoldChange(math.E)
		if f == nil {
			f = nanVector(g)
		}
		pval.SetRow(pr.i, pr.j, p)
		pval.SetRow(pr.j, pr.i, p)
		lfc.SetRow(pr.i, pr.j, f)
		neg := lfc.Row(pr.j, pr.i)
		for x, v := range f {
			neg[x] = -v
		}
	}

	pw := &PairwiseResult{groups: groups, kept: o.KeepTests}
	pw.multi.init(kind, genes, o)
	pw.pvalFn = func() *detest.Tensor { return pval }
	pw.lfcFn = func() *detest.Tensor { return lfc }
	pw.meanFn = func() []float64 { return mean }
	if o.KeepTests {
		pw.tests = make([][]Single, n)
		for i := range pw.tests {
			pw.tests[i] = make([]Single, n)
		}
		for k, pr := range pairs {
			pw.tests[pr.i][pr.j] = results[k]
		}
	}
	return pw, nil
}

// NewZTestPairwise reads every pairwise comparison off one model fitted with
// a one-hot group design, without refitting. groups must follow the order of
// the location coefficients.
func NewZTestPairwise(est detest.Estimate, groups []string, opts ...Option) (*PairwiseResult, error) {
	o, err := resolve(detest.CorrectGlobal, opts)
	if err != nil {
		return nil, err
	}
	z, err := newZModel(est, groups)
	if err != nil {
		return nil, err
	}
	all := allRows(len(groups))
	var tensors memo[[2]*detest.Tensor]
	get := func() [2]*detest.Tensor {
		return tensors.get(func() [2]*detest.Tensor {
			p, f := z.tensors(all, all)
			return [2]*detest.Tensor{p, f}
		})
	}
	pw := &PairwiseResult{groups: groups}
	pw.multi.init(detest.KindZTest, est.Features(), o)
	pw.pvalFn = func() *detest.Tensor { return get()[0] }
	pw.lfcFn = func() *detest.Tensor { return get()[1] }
	pw.meanFn = z.mean
	return pw, nil
}

// Groups returns the group order of the tensors.
func (p *PairwiseResult) Groups() []string { return p.groups }

func (p *PairwiseResult) pairIndex(group0, group1 string) (int, int, error) {
	idx := detest.GroupIndex(p.groups)
	i, ok := idx[group0]
	if !ok {
		return 0, 0, core.NewUnknownGroupError("group0", group0)
	}
	j, ok := idx[group1]
	if !ok {
		return 0, 0, core.NewUnknownGroupError("group1", group1)
	}
	return i, j, nil
}

// PvalPair returns the p-values of group0 against group1.
func (p *PairwiseResult) PvalPair(group0, group1 string) ([]float64, error) {
	i, j, err := p.pairIndex(group0, group1)
	if err != nil {
		return nil, err
	}
	return p.Pval().RowCopy(i, j), nil
}

// QvalPair returns the corrected p-values of group0 against group1.
func (p *PairwiseResult) QvalPair(group0, group1 string) ([]float64, error) {
	i, j, err := p.pairIndex(group0, group1)
	if err != nil {
		return nil, err
	}
	return p.Qval().RowCopy(i, j), nil
}

// LogFoldChangePair returns the fold change of group1 relative to group0.
func (p *PairwiseResult) LogFoldChangePair(group0, group1 string, base float64) ([]float64, error) {
	i, j, err := p.pairIndex(group0, group1)
	if err != nil {
		return nil, err
	}
	return p.LogFoldChange(base).RowCopy(i, j), nil
}

func (p *PairwiseResult) Log10PvalPairClean(group0, group1 string, threshold float64) ([]float64, error) {
	pv, err := p.PvalPair(group0, group1)
	if err != nil {
		return nil, err
	}
	return Log10Clean(pv, threshold), nil
}

func (p *PairwiseResult) Log10QvalPairClean(group0, group1 string, threshold float64) ([]float64, error) {
	q, err := p.QvalPair(group0, group1)
	if err != nil {
		return nil, err
	}
	return Log10Clean(q, threshold), nil
}

// SummaryPair summarizes the comparison of group0 against group1.
func (p *PairwiseResult) SummaryPair(group0, group1 string, th detest.Threshold) (*detest.Table, error) {
	i, j, err := p.pairIndex(group0, group1)
	if err != nil {
		return nil, err
	}
	return p.pairTable(i, j, th)
}

// Tests returns the sub-test of every pair i < j at [i][j]. It fails unless
// the tests were kept at construction.
func (p *PairwiseResult) Tests() ([][]Single, error) {
	if !p.kept || p.tests == nil {
		return nil, core.ErrTestsNotKept
	}
	return p.tests, nil
}
