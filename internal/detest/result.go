package detest

import (
	"math"
	"sync"

	"godex/domain/detest"
	"godex/internal/correction"

	"go.uber.org/zap"
)

// Result is the capability shared by every test variant.
type Result interface {
	Kind() detest.TestKind
	Genes() detest.GeneSet
	Mean() []float64
	Summary(th detest.Threshold) (*detest.Table, error)
}

// Single is a test with one p-value and fold change per gene.
type Single interface {
	Result
	Pval() []float64
	Qval() []float64
	// LogLikelihood is nil for tests without a fitted model.
	LogLikelihood() []float64
	// LogFoldChange is nil when no unique fold change is defined.
	LogFoldChange(base float64) []float64
	Log2FoldChange() []float64
	Log10FoldChange() []float64
	Log10PvalClean(threshold float64) []float64
	Log10QvalClean(threshold float64) []float64
}

// Multi is a test with a (group, group, gene) tensor of results.
type Multi interface {
	Result
	Policy() detest.CorrectionPolicy
	Pval() *detest.Tensor
	Qval() *detest.Tensor
	LogFoldChange(base float64) *detest.Tensor
	Log10PvalClean(threshold float64) *detest.Tensor
	Log10QvalClean(threshold float64) *detest.Tensor
}

// memo holds a value that is computed once and never replaced.
type memo[T any] struct {
	once sync.Once
	v    T
}

func (m *memo[T]) get(f func() T) T {
	m.once.Do(func() { m.v = f() })
	return m.v
}

// single carries the state shared by the single-test variants. Variants plug
// in the computations, the accessors cache them.
type single struct {
	kind   detest.TestKind
	genes  detest.GeneSet
	method string
	logger *zap.Logger

	pvalFn func() []float64
	qvalFn func() []float64
	meanFn func() []float64
	llFn   func() []float64
	// lfcFn returns natural-log fold changes.
	lfcFn func() []float64

	pval, qval, mean, ll, lfc memo[[]float64]
}

func (s *single) init(kind detest.TestKind, genes detest.GeneSet, o Options) {
	s.kind, s.genes, s.method, s.logger = kind, genes, o.Method, o.Logger
}

func (s *single) Kind() detest.TestKind { return s.kind }

func (s *single) Genes() detest.GeneSet { return s.genes }

func (s *single) Pval() []float64 { return s.pval.get(s.pvalFn) }

func (s *single) Qval() []float64 {
	return s.qval.get(func() []float64 {
		if s.qvalFn != nil {
			return s.qvalFn()
		}
		// the method was validated when the options were resolved
		q, _ := correction.Correct(s.Pval(), s.method)
		return q
	})
}

func (s *single) Mean() []float64 { return s.mean.get(s.meanFn) }

func (s *single) LogLikelihood() []float64 {
	if s.llFn == nil {
		return nil
	}
	return s.ll.get(s.llFn)
}

func (s *single) LogFoldChange(base float64) []float64 {
	return changeBase(s.lfc.get(s.lfcFn), base)
}

func (s *single) Log2FoldChange() []float64 { return s.LogFoldChange(2) }

func (s *single) Log10FoldChange() []float64 { return s.LogFoldChange(10) }

func (s *single) Log10PvalClean(threshold float64) []float64 {
	return Log10Clean(s.Pval(), threshold)
}

func (s *single) Log10QvalClean(threshold float64) []float64 {
	return Log10Clean(s.Qval(), threshold)
}

// table assembles the base summary columns plus extra.
func (s *single) table(extra ...detest.Column) (*detest.Table, error) {
	lfc := s.Log2FoldChange()
	if lfc == nil {
		lfc = nanVector(len(s.genes))
	}
	return detest.NewTable(s.genes, s.Pval(), s.Qval(), lfc, s.Mean(), extra...)
}

func (s *single) summarize(th detest.Threshold, extra ...detest.Column) (*detest.Table, error) {
	t, err := s.table(extra...)
	if err != nil {
		return nil, err
	}
	return th.Apply(t), nil
}

// changeBase converts natural-log values to another base. The input is never
// modified.
func changeBase(v []float64, base float64) []float64 {
	if v == nil {
		return nil
	}
	out := make([]float64, len(v))
	if base == math.E {
		copy(out, v)
		return out
	}
	f := math.Log(base)
	for i, x := range v {
		out[i] = x / f
	}
	return out
}

func nanVector(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = math.NaN()
	}
	return v
}
