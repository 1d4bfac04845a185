package detest

import (
	"fmt"
	"math"

	"godex/domain/core"
	"godex/domain/detest"
	"godex/internal/stats"

	"gonum.org/v1/gonum/mat"
)

// Wald tests one or more location coefficients of a fitted model against 0.
type Wald struct {
	single
	est   detest.Estimate
	coefs []int
}

// NewWald tests the location coefficients coefs (indices into ALoc rows)
// jointly.
func NewWald(est detest.Estimate, coefs []int, opts ...Option) (*Wald, error) {
	o, err := resolve(detest.CorrectGlobal, opts)
	if err != nil {
		return nil, err
	}
	if err := detest.ValidateEstimate(est); err != nil {
		return nil, err
	}
	if err := detest.ValidateFisher(est); err != nil {
		return nil, err
	}
	if len(coefs) == 0 {
		return nil, core.NewConfigError("coef_to_test", "no coefficient given")
	}
	k, _ := est.ALoc().Dims()
	for _, c := range coefs {
		if c < 0 || c >= k {
			return nil, fmt.Errorf("%w: index %d of %d", core.ErrCoefficient, c, k)
		}
	}
	w := &Wald{est: est, coefs: append([]int(nil), coefs...)}
	w.single.init(detest.KindWald, est.Features(), o)
	w.pvalFn = w.computePval
	w.meanFn = func() []float64 { m, _ := stats.ColumnMoments(est.X(), nil); return m }
	w.llFn = est.LogLikelihood
	w.lfcFn = w.computeLogFoldChange
	return w, nil
}

// CoefIndex resolves a location design column name to its coefficient index.
// Constrained designs have no such mapping.
func CoefIndex(est detest.Estimate, name string) (int, error) {
	if est.ConstraintsLoc() != nil {
		return 0, core.NewConfigError("coef_to_test", "coefficient names are ambiguous under constraints")
	}
	for i, n := range est.DesignLocNames() {
		if n == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", core.ErrCoefficient, name)
}

// Coefficients returns the tested coefficient indices.
func (w *Wald) Coefficients() []int { return w.coefs }

// ThetaMLE is the fitted value of each tested coefficient (coefs x genes).
func (w *Wald) ThetaMLE() [][]float64 {
	a := w.est.ALoc()
	out := make([][]float64, len(w.coefs))
	for i, c := range w.coefs {
		out[i] = mat.Row(nil, c, a)
	}
	return out
}

// ThetaSD is the standard error of each tested coefficient.
func (w *Wald) ThetaSD() [][]float64 {
	genes := len(w.genes)
	out := make([][]float64, len(w.coefs))
	for i, c := range w.coefs {
		out[i] = make([]float64, genes)
		for g := 0; g < genes; g++ {
			out[i][g] = stats.StandardError(w.est.FisherInv(g).At(c, c))
		}
	}
	return out
}

func (w *Wald) computePval() []float64 {
	if len(w.coefs) == 1 {
		p, _ := stats.WaldTest(w.ThetaMLE()[0], w.ThetaSD()[0], 0)
		return p
	}
	genes := len(w.genes)
	k := len(w.coefs)
	theta := mat.NewDense(k, genes, nil)
	for i, row := range w.ThetaMLE() {
		theta.SetRow(i, row)
	}
	cov := make([]mat.Symmetric, genes)
	for g := 0; g < genes; g++ {
		f := w.est.FisherInv(g)
		block := mat.NewSymDense(k, nil)
		for i, ci := range w.coefs {
			for j := i; j < k; j++ {
				block.SetSym(i, j, f.At(ci, w.coefs[j]))
			}
		}
		cov[g] = block
	}
	p, _ := stats.WaldChiSquare(theta, cov)
	return p
}

// computeLogFoldChange reports the coefficient itself, or for joint tests
// the tested coefficient of largest magnitude per gene.
func (w *Wald) computeLogFoldChange() []float64 {
	theta := w.ThetaMLE()
	if len(theta) == 1 {
		return theta[0]
	}
	out := make([]float64, len(w.genes))
	for g := range out {
		best := math.Inf(-1)
		for _, row := range theta {
			if math.Abs(row[g]) > best {
				best = math.Abs(row[g])
				out[g] = row[g]
			}
		}
	}
	return out
}

func (w *Wald) Summary(th detest.Threshold) (*detest.Table, error) {
	var extra []detest.Column
	if len(w.coefs) == 1 {
		extra = append(extra,
			detest.Column{Name: "coef_mle", Floats: w.ThetaMLE()[0]},
			detest.Column{Name: "coef_sd", Floats: w.ThetaSD()[0]},
		)
	}
	extra = append(extra, modelColumns(w.est, "")...)
	return w.summarize(th, extra...)
}

// modelColumns collects the optional per-gene fit diagnostics of est.
func modelColumns(est detest.Estimate, suffix string) []detest.Column {
	var out []detest.Column
	if ll := est.LogLikelihood(); ll != nil {
		out = append(out, detest.Column{Name: "ll" + suffix, Floats: ll})
	}
	if e := est.ErrorCodes(); e != nil {
		out = append(out, detest.Column{Name: "err" + suffix, Ints: e})
	}
	if n := est.NIter(); n != nil {
		out = append(out, detest.Column{Name: "niter" + suffix, Ints: n})
	}
	if g := est.Gradients(); g != nil {
		out = append(out, detest.Column{Name: "grad" + suffix, Floats: g})
	}
	return out
}
