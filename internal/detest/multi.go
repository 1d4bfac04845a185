package detest

import (
	"math"

	"godex/domain/detest"
	"godex/internal/correction"

	"go.uber.org/zap"
)

// multi carries the state shared by the tensor-valued variants.
type multi struct {
	kind   detest.TestKind
	genes  detest.GeneSet
	method string
	policy detest.CorrectionPolicy
	logger *zap.Logger

	pvalFn func() *detest.Tensor
	meanFn func() []float64
	lfcFn  func() *detest.Tensor

	pval, qval, lfc memo[*detest.Tensor]
	mean            memo[[]float64]
}

func (m *multi) init(kind detest.TestKind, genes detest.GeneSet, o Options) {
	m.kind, m.genes, m.method, m.policy, m.logger = kind, genes, o.Method, o.Policy, o.Logger
}

func (m *multi) Kind() detest.TestKind { return m.kind }

func (m *multi) Genes() detest.GeneSet { return m.genes }

// Policy is fixed at construction.
func (m *multi) Policy() detest.CorrectionPolicy { return m.policy }

func (m *multi) Pval() *detest.Tensor { return m.pval.get(m.pvalFn) }

func (m *multi) Qval() *detest.Tensor {
	return m.qval.get(func() *detest.Tensor {
		q, _ := correction.CorrectTensor(m.Pval(), m.policy, m.method)
		return q
	})
}

func (m *multi) Mean() []float64 { return m.mean.get(m.meanFn) }

func (m *multi) LogFoldChange(base float64) *detest.Tensor {
	return changeBaseTensor(m.lfc.get(m.lfcFn), base)
}

func (m *multi) Log2FoldChange() *detest.Tensor { return m.LogFoldChange(2) }

func (m *multi) Log10PvalClean(threshold float64) *detest.Tensor {
	return Log10CleanTensor(m.Pval(), threshold)
}

func (m *multi) Log10QvalClean(threshold float64) *detest.Tensor {
	return Log10CleanTensor(m.Qval(), threshold)
}

func (m *multi) Summary(th detest.Threshold) (*detest.Table, error) {
	t, err := reduceSummary(m.genes, m.Pval(), m.Qval(), m.LogFoldChange(2), m.Mean())
	if err != nil {
		return nil, err
	}
	return th.Apply(t), nil
}

// pairTable builds a summary from one (a, b) row of each tensor.
func (m *multi) pairTable(a, b int, th detest.Threshold) (*detest.Table, error) {
	t, err := detest.NewTable(m.genes,
		m.Pval().RowCopy(a, b),
		m.Qval().RowCopy(a, b),
		m.LogFoldChange(2).RowCopy(a, b),
		m.Mean())
	if err != nil {
		return nil, err
	}
	return th.Apply(t), nil
}

func changeBaseTensor(t *detest.Tensor, base float64) *detest.Tensor {
	if t == nil {
		return nil
	}
	return &detest.Tensor{A: t.A, B: t.B, G: t.G, Data: changeBase(t.Data, base)}
}

// reduceSummary collapses tensors to one row per gene. p- and q-values take
// the minimum over all (a, b) entries, skipping NaN. The fold change is the
// entry with the largest magnitude, first in row-major order, with its sign
// flipped when it sits below the diagonal.
func reduceSummary(genes detest.GeneSet, pval, qval, log2fc *detest.Tensor, mean []float64) (*detest.Table, error) {
	return detest.NewTable(genes, nanMinOver(pval), nanMinOver(qval), maxAbsOver(log2fc), mean)
}

func nanMinOver(t *detest.Tensor) []float64 {
	out := nanVector(t.G)
	for a := 0; a < t.A; a++ {
		for b := 0; b < t.B; b++ {
			for g, v := range t.Row(a, b) {
				if !math.IsNaN(v) && (math.IsNaN(out[g]) || v < out[g]) {
					out[g] = v
				}
			}
		}
	}
	return out
}

func maxAbsOver(t *detest.Tensor) []float64 {
	out := nanVector(t.G)
	best := make([]float64, t.G)
	for g := range best {
		best[g] = -1
	}
	for a := 0; a < t.A; a++ {
		for b := 0; b < t.B; b++ {
			for g, v := range t.Row(a, b) {
				if math.IsNaN(v) || math.Abs(v) <= best[g] {
					continue
				}
				best[g] = math.Abs(v)
				if a > b {
					out[g] = -v
				} else {
					out[g] = v
				}
			}
		}
	}
	return out
}
