package detest

import (
	"math"

	"godex/domain/core"
	"godex/domain/detest"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// ContinuousConfig describes the spline expansion of a continuous covariate
// inside a fitted location model.
type ContinuousConfig struct {
	// Estimate is the fitted model containing the spline coefficients.
	Estimate detest.Estimate
	// SplineCoefs names the basis columns of the location design.
	SplineCoefs []string
	// Intercept adds the "Intercept" column to the curve when the design has one.
	Intercept bool
	// Basis optionally evaluates the curve at other coordinates. Its columns
	// follow SplineCoefs, preceded by the intercept when used. Nil evaluates
	// at the observed design rows.
	Basis mat.Matrix
	// NonNumeric evaluates the full location model, including size factors,
	// at every observation.
	NonNumeric  bool
	SizeFactors []float64
	// Coords holds the covariate value of every evaluation point. ArgMax and
	// ArgMin report these values; nil reports the point index.
	Coords []float64
}

// Continuous reframes a test on spline coefficients as the range of the
// fitted curve: the fold change is log(max / min) over the evaluated points.
type Continuous struct {
	single
	inner Single
	est   detest.Estimate
	cols  []int
	cfg   ContinuousConfig
	curve memo[*mat.Dense]
}

// NewContinuous wraps inner, which tested the spline coefficients of cfg.
func NewContinuous(inner Single, cfg ContinuousConfig, opts ...Option) (*Continuous, error) {
	o, err := resolve(detest.CorrectGlobal, opts)
	if err != nil {
		return nil, err
	}
	if inner == nil {
		return nil, core.NewConfigError("test", "is nil")
	}
	if err := detest.ValidateEstimate(cfg.Estimate); err != nil {
		return nil, err
	}
	names := cfg.Estimate.DesignLocNames()
	var cols []int
	if cfg.Intercept {
		for i, n := range names {
			if n == "Intercept" {
				cols = append(cols, i)
			}
		}
	}
	for _, s := range cfg.SplineCoefs {
		found := false
		for i, n := range names {
			if n == s {
				cols = append(cols, i)
				found = true
				break
			}
		}
		if !found {
			return nil, core.NewConfigError("spline_coefs", "coefficient "+s+" not in location design")
		}
	}
	if len(cols) == 0 && !cfg.NonNumeric {
		return nil, core.NewConfigError("spline_coefs", "no coefficient given")
	}
	if cfg.Basis != nil {
		if _, c := cfg.Basis.Dims(); c != len(cols) {
			return nil, core.NewShapeError("spline basis columns", len(cols), c)
		}
	}
	if cfg.Coords != nil {
		points, _ := cfg.Estimate.X().Dims()
		if cfg.Basis != nil && !cfg.NonNumeric {
			points, _ = cfg.Basis.Dims()
		}
		if len(cfg.Coords) != points {
			return nil, core.NewShapeError("continuous coordinates", points, len(cfg.Coords))
		}
	}
	if cfg.SizeFactors != nil {
		if n, _ := cfg.Estimate.X().Dims(); len(cfg.SizeFactors) != n {
			return nil, core.NewShapeError("size factors", n, len(cfg.SizeFactors))
		}
	}

	c := &Continuous{inner: inner, est: cfg.Estimate, cols: cols, cfg: cfg}
	c.single.init(detest.KindContinuous, inner.Genes(), o)
	c.pvalFn = inner.Pval
	c.qvalFn = inner.Qval
	c.meanFn = inner.Mean
	c.llFn = inner.LogLikelihood
	c.lfcFn = c.computeLogFoldChange
	return c, nil
}

// Inner returns the wrapped test.
func (c *Continuous) Inner() Single { return c.inner }

// Curve is the fitted expression per evaluation point (points x genes).
func (c *Continuous) Curve() *mat.Dense {
	return c.curve.get(c.computeCurve)
}

func (c *Continuous) computeCurve() *mat.Dense {
	par := detest.ParLinkLoc(c.est)
	var eta mat.Dense
	if c.cfg.NonNumeric {
		eta.Mul(c.est.DesignLoc(), par)
		if sf := c.cfg.SizeFactors; sf != nil {
			r, g := eta.Dims()
			for i := 0; i < r; i++ {
				off := math.Log(sf[i])
				for j := 0; j < g; j++ {
					eta.Set(i, j, eta.At(i, j)+off)
				}
			}
		}
	} else {
		basis := c.cfg.Basis
		if basis == nil {
			basis = selectColumns(c.est.DesignLoc(), c.cols)
		}
		eta.Mul(basis, selectRows(par, c.cols))
	}
	eta.Apply(func(_, _ int, v float64) float64 { return math.Exp(v) }, &eta)
	return &eta
}

func (c *Continuous) computeLogFoldChange() []float64 {
	mx, mn := c.reduce(math.Max), c.reduce(math.Min)
	out := make([]float64, len(mx))
	for g := range out {
		out[g] = math.Log(mx[g]) - math.Log(math.Max(mn[g], math.SmallestNonzeroFloat64))
	}
	return out
}

func (c *Continuous) reduce(f func(a, b float64) float64) []float64 {
	curve := c.Curve()
	r, g := curve.Dims()
	out := make([]float64, g)
	for j := 0; j < g; j++ {
		v := curve.At(0, j)
		for i := 1; i < r; i++ {
			v = f(v, curve.At(i, j))
		}
		out[j] = v
	}
	return out
}

func (c *Continuous) argReduce(better func(a, b float64) bool) []int {
	curve := c.Curve()
	r, g := curve.Dims()
	out := make([]int, g)
	for j := 0; j < g; j++ {
		for i := 1; i < r; i++ {
			if better(curve.At(i, j), curve.At(out[j], j)) {
				out[j] = i
			}
		}
	}
	return out
}

// GeneIndices resolves gene identifiers, omitting unknown ones.
func (c *Continuous) GeneIndices(ids ...string) []int {
	idx := make([]int, 0, len(ids))
	for _, id := range ids {
		i := c.genes.Index(id)
		if i < 0 {
			c.logger.Info("gene not found, omitted", zap.String("gene", id))
			continue
		}
		idx = append(idx, i)
	}
	return idx
}

// Max is the curve maximum of the given genes. No genes selects all.
func (c *Continuous) Max(genes ...int) []float64 { return pickFloats(c.reduce(math.Max), genes) }

// Min is the curve minimum of the given genes.
func (c *Continuous) Min(genes ...int) []float64 { return pickFloats(c.reduce(math.Min), genes) }

// ArgMax is the covariate value at the curve maximum of the given genes.
func (c *Continuous) ArgMax(genes ...int) []float64 {
	return c.coords(pickInts(c.argReduce(func(a, b float64) bool { return a > b }), genes))
}

// ArgMin is the covariate value at the curve minimum of the given genes.
func (c *Continuous) ArgMin(genes ...int) []float64 {
	return c.coords(pickInts(c.argReduce(func(a, b float64) bool { return a < b }), genes))
}

func (c *Continuous) coords(points []int) []float64 {
	out := make([]float64, len(points))
	for k, p := range points {
		if c.cfg.Coords != nil {
			out[k] = c.cfg.Coords[p]
		} else {
			out[k] = float64(p)
		}
	}
	return out
}

func (c *Continuous) MaxByID(ids ...string) []float64 { return c.Max(c.GeneIndices(ids...)...) }

func (c *Continuous) MinByID(ids ...string) []float64 { return c.Min(c.GeneIndices(ids...)...) }

func (c *Continuous) ArgMaxByID(ids ...string) []float64 { return c.ArgMax(c.GeneIndices(ids...)...) }

func (c *Continuous) ArgMinByID(ids ...string) []float64 { return c.ArgMin(c.GeneIndices(ids...)...) }

// Summary reports the wrapped test's table with the curve fold change.
func (c *Continuous) Summary(th detest.Threshold) (*detest.Table, error) {
	t, err := c.inner.Summary(detest.Threshold{})
	if err != nil {
		return nil, err
	}
	t.Log2FC = c.Log2FoldChange()
	return th.Apply(t), nil
}

func pickFloats(v []float64, idx []int) []float64 {
	if idx == nil {
		return v
	}
	out := make([]float64, len(idx))
	for k, i := range idx {
		out[k] = v[i]
	}
	return out
}

func pickInts(v []int, idx []int) []int {
	if idx == nil {
		return v
	}
	out := make([]int, len(idx))
	for k, i := range idx {
		out[k] = v[i]
	}
	return out
}

func selectColumns(m mat.Matrix, cols []int) *mat.Dense {
	r, _ := m.Dims()
	out := mat.NewDense(r, len(cols), nil)
	for i := 0; i < r; i++ {
		for k, c := range cols {
			out.Set(i, k, m.At(i, c))
		}
	}
	return out
}

func selectRows(m mat.Matrix, rows []int) *mat.Dense {
	_, c := m.Dims()
	out := mat.NewDense(len(rows), c, nil)
	for k, r := range rows {
		for j := 0; j < c; j++ {
			out.Set(k, j, m.At(r, j))
		}
	}
	return out
}
