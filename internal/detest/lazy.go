package detest

import (
	"fmt"

	"godex/domain/core"
	"godex/domain/detest"
	"godex/internal/correction"
)

// PairwiseLazy answers pairwise z-test queries from a jointly fitted model on
// demand. Nothing is cached between queries, so the full group x group x
// gene tensor is never held in memory.
type PairwiseLazy struct {
	z      *zModel
	genes  detest.GeneSet
	method string
	policy detest.CorrectionPolicy
	mean   memo[[]float64]
}

var _ Multi = (*PairwiseLazy)(nil)

// NewPairwiseLazy wraps a model fitted with a one-hot group design.
func NewPairwiseLazy(est detest.Estimate, groups []string, opts ...Option) (*PairwiseLazy, error) {
	o, err := resolve(detest.CorrectGlobal, opts)
	if err != nil {
		return nil, err
	}
	z, err := newZModel(est, groups)
	if err != nil {
		return nil, err
	}
	return &PairwiseLazy{z: z, genes: est.Features(), method: o.Method, policy: o.Policy}, nil
}

func (l *PairwiseLazy) Kind() detest.TestKind { return detest.KindPairwiseLazy }

func (l *PairwiseLazy) Genes() detest.GeneSet { return l.genes }

func (l *PairwiseLazy) Groups() []string { return l.z.groups }

func (l *PairwiseLazy) Policy() detest.CorrectionPolicy { return l.policy }

func (l *PairwiseLazy) Mean() []float64 { return l.mean.get(l.z.mean) }

// Pval needs every pair and is not evaluated lazily.
func (l *PairwiseLazy) Pval() *detest.Tensor { return nil }

// Qval needs every pair and is not evaluated lazily.
func (l *PairwiseLazy) Qval() *detest.Tensor { return nil }

// LogFoldChange needs every pair and is not evaluated lazily.
func (l *PairwiseLazy) LogFoldChange(float64) *detest.Tensor { return nil }

func (l *PairwiseLazy) Log10PvalClean(float64) *detest.Tensor { return nil }

func (l *PairwiseLazy) Log10QvalClean(float64) *detest.Tensor { return nil }

// Summary needs every pair. Use SummaryPairs.
func (l *PairwiseLazy) Summary(detest.Threshold) (*detest.Table, error) {
	return nil, core.ErrLazyUnsupported
}

func (l *PairwiseLazy) query(groups0, groups1 []string) (pval, lfc *detest.Tensor, err error) {
	rows, err := groupIndices("groups0", groups0, l.z.groups)
	if err != nil {
		return nil, nil, err
	}
	cols, err := groupIndices("groups1", groups1, l.z.groups)
	if err != nil {
		return nil, nil, err
	}
	pval, lfc = l.z.tensors(rows, cols)
	return pval, lfc, nil
}

// PvalPairs returns p-values of every groups0 x groups1 pair. A nil list
// selects all groups.
func (l *PairwiseLazy) PvalPairs(groups0, groups1 []string) (*detest.Tensor, error) {
	p, _, err := l.query(groups0, groups1)
	return p, err
}

// QvalPairs corrects the p-values of the queried subset only.
func (l *PairwiseLazy) QvalPairs(groups0, groups1 []string) (*detest.Tensor, error) {
	p, _, err := l.query(groups0, groups1)
	if err != nil {
		return nil, err
	}
	return correction.CorrectTensor(p, l.policy, l.method)
}

// LogFoldChangePairs returns fold changes of groups1 relative to groups0.
func (l *PairwiseLazy) LogFoldChangePairs(groups0, groups1 []string, base float64) (*detest.Tensor, error) {
	_, f, err := l.query(groups0, groups1)
	if err != nil {
		return nil, err
	}
	return changeBaseTensor(f, base), nil
}

// SummaryPairs reduces the queried subset like a full summary.
func (l *PairwiseLazy) SummaryPairs(groups0, groups1 []string, th detest.Threshold) (*detest.Table, error) {
	p, f, err := l.query(groups0, groups1)
	if err != nil {
		return nil, err
	}
	q, err := correction.CorrectTensor(p, l.policy, l.method)
	if err != nil {
		return nil, err
	}
	t, err := reduceSummary(l.genes, p, q, changeBaseTensor(f, 2), l.Mean())
	if err != nil {
		return nil, err
	}
	return th.Apply(t), nil
}

// SummaryPair summarizes exactly one group against exactly one other.
func (l *PairwiseLazy) SummaryPair(groups0, groups1 []string, th detest.Threshold) (*detest.Table, error) {
	if len(groups0) != 1 {
		return nil, fmt.Errorf("%w: groups0 has %d entries", core.ErrSingleGroup, len(groups0))
	}
	if len(groups1) != 1 {
		return nil, fmt.Errorf("%w: groups1 has %d entries", core.ErrSingleGroup, len(groups1))
	}
	p, f, err := l.query(groups0, groups1)
	if err != nil {
		return nil, err
	}
	q, err := correction.CorrectTensor(p, l.policy, l.method)
	if err != nil {
		return nil, err
	}
	t, err := detest.NewTable(l.genes, p.Row(0, 0), q.Row(0, 0), changeBase(f.Row(0, 0), 2), l.Mean())
	if err != nil {
		return nil, err
	}
	return th.Apply(t), nil
}
