package detest

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"godex/domain/core"
	"godex/domain/detest"
	"godex/internal/stats"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// LRT is a likelihood-ratio test between nested full and reduced models.
type LRT struct {
	single
	full, reduced         detest.Estimate
	fullInfo, reducedInfo detest.DesignInfo
	description           detest.SampleDescription
	dfFull, dfReduced     int
}

// NewLRT compares full against reduced. The design infos describe the
// location designs and are used to find the tested terms.
func NewLRT(full, reduced detest.Estimate, fullInfo, reducedInfo detest.DesignInfo, opts ...Option) (*LRT, error) {
	o, err := resolve(detest.CorrectGlobal, opts)
	if err != nil {
		return nil, err
	}
	for name, e := range map[string]detest.Estimate{"full": full, "reduced": reduced} {
		if err := detest.ValidateEstimate(e); err != nil {
			return nil, fmt.Errorf("%s model: %w", name, err)
		}
	}
	nf, gf := full.X().Dims()
	nr, gr := reduced.X().Dims()
	if nf != nr {
		return nil, core.NewShapeError("reduced model observations", nf, nr)
	}
	if gf != gr {
		return nil, core.NewShapeError("reduced model genes", gf, gr)
	}
	l := &LRT{
		full:        full,
		reduced:     reduced,
		fullInfo:    fullInfo,
		reducedInfo: reducedInfo,
		description: o.Description,
		dfFull:      detest.DegreesOfFreedom(full),
		dfReduced:   detest.DegreesOfFreedom(reduced),
	}
	l.single.init(detest.KindLRT, full.Features(), o)
	l.pvalFn = l.computePval
	l.meanFn = func() []float64 { m, _ := stats.ColumnMoments(full.X(), nil); return m }
	l.llFn = full.LogLikelihood
	l.lfcFn = l.vectorLogFoldChange
	return l, nil
}

// DFDifference is the chi-square degrees of freedom of the test.
func (l *LRT) DFDifference() int { return l.dfFull - l.dfReduced }

// Statistic returns 2*(ll_full - ll_reduced).
func (l *LRT) Statistic() []float64 {
	s, _ := stats.LRTStatistic(l.full.LogLikelihood(), l.reduced.LogLikelihood())
	return s
}

func (l *LRT) computePval() []float64 {
	llFull, llRed := l.full.LogLikelihood(), l.reduced.LogLikelihood()
	if n := stats.Regressions(llFull, llRed); n > 0 {
		l.logger.Warn("full model has lower log-likelihood than reduced model",
			zap.Int("genes", n))
	}
	p, _ := stats.LikelihoodRatioTest(llFull, llRed, l.dfFull, l.dfReduced)
	return p
}

// FoldChangeMatrix holds pairwise log fold changes between the unique value
// combinations of the tested factors. Dist[i, j] is level i minus level j.
type FoldChangeMatrix struct {
	Labels []string
	Rows   [][]float64
	Dist   *detest.Tensor
}

// LogFoldChangeMatrix computes model-implied fold changes over the terms of
// the full model that the reduced model lacks.
func (l *LRT) LogFoldChangeMatrix(base float64) (*FoldChangeMatrix, error) {
	terms := l.fullInfo.TermsMissingFrom(l.reducedInfo)
	if len(terms) == 0 {
		return nil, core.NewConfigError("reduced model", "has every term of the full model")
	}
	design := l.full.DesignLoc()
	_, cols := design.Dims()
	keep := make([]bool, cols)
	for _, t := range terms {
		for _, c := range t.Columns() {
			if c < cols {
				keep[c] = true
			}
		}
	}

	rows, first := uniqueRows(design)
	for _, r := range rows {
		for c := range r {
			if !keep[c] {
				r[c] = 0
			}
		}
	}
	rows, pick := uniqueSlices(rows)
	obs := make([]int, len(pick))
	for i, p := range pick {
		obs[i] = first[p]
	}

	loc, err := l.locationsAt(rows)
	if err != nil {
		return nil, err
	}
	u, g := len(rows), len(l.genes)
	f := math.Log(base)
	for i := range loc {
		for j := range loc[i] {
			loc[i][j] = math.Log(loc[i][j]) / f
		}
	}
	dist := detest.NewTensor(u, u, g, 0)
	for i := 0; i < u; i++ {
		for j := 0; j < u; j++ {
			for k := 0; k < g; k++ {
				dist.Set(i, j, k, loc[i][k]-loc[j][k])
			}
		}
	}
	return &FoldChangeMatrix{Labels: l.labels(terms, rows, obs), Rows: rows, Dist: dist}, nil
}

// vectorLogFoldChange is defined only for a single tested term with exactly
// two value combinations.
func (l *LRT) vectorLogFoldChange() []float64 {
	if len(l.fullInfo.TermsMissingFrom(l.reducedInfo)) != 1 {
		return nil
	}
	m, err := l.LogFoldChangeMatrix(math.E)
	if err != nil || m.Dist.A != 2 {
		return nil
	}
	return m.Dist.RowCopy(1, 0)
}

// Locations returns the model-implied mean of every unique location design
// row (rows x genes), rows sorted lexicographically.
func (l *LRT) Locations() ([][]float64, [][]float64, error) {
	rows, _ := uniqueRows(l.full.DesignLoc())
	loc, err := l.locationsAt(rows)
	return rows, loc, err
}

// Scales returns the model-implied scale of every unique scale design row.
func (l *LRT) Scales() ([][]float64, [][]float64, error) {
	design, b := l.full.DesignScale(), l.full.BScale()
	if design == nil || b == nil {
		return nil, nil, core.NewConfigError("full model", "has no scale model")
	}
	par := mat.DenseCopyOf(b)
	if c := l.full.ConstraintsScale(); c != nil {
		par = &mat.Dense{}
		par.Mul(c, b)
	}
	rows, _ := uniqueRows(design)
	return rows, linkRows(rows, par, math.Exp), nil
}

func (l *LRT) locationsAt(rows [][]float64) ([][]float64, error) {
	inv, err := detest.InverseLinkLoc(l.full.NoiseModel())
	if err != nil {
		return nil, err
	}
	return linkRows(rows, detest.ParLinkLoc(l.full), inv), nil
}

// linkRows evaluates inv(row . par) for every row and gene.
func linkRows(rows [][]float64, par mat.Matrix, inv func(float64) float64) [][]float64 {
	_, g := par.Dims()
	out := make([][]float64, len(rows))
	for i, r := range rows {
		eta := mat.NewVecDense(g, nil)
		eta.MulVec(par.T(), mat.NewVecDense(len(r), r))
		out[i] = make([]float64, g)
		for k := 0; k < g; k++ {
			out[i][k] = inv(eta.AtVec(k))
		}
	}
	return out
}

// labels names each fold-change level by the tested factor values of a
// representative observation, or by its design row.
func (l *LRT) labels(terms []detest.Term, rows [][]float64, obs []int) []string {
	var factors []string
	for _, t := range terms {
		factors = append(factors, t.Factors...)
	}
	out := make([]string, len(rows))
	for i, r := range rows {
		var parts []string
		for _, f := range factors {
			col, ok := l.description[f]
			if !ok || obs[i] >= len(col) {
				parts = nil
				break
			}
			parts = append(parts, f+"="+col[obs[i]])
		}
		if parts == nil {
			parts = make([]string, len(r))
			for j, v := range r {
				parts[j] = strconv.FormatFloat(v, 'g', -1, 64)
			}
		}
		out[i] = strings.Join(parts, ",")
	}
	return out
}

func (l *LRT) Summary(th detest.Threshold) (*detest.Table, error) {
	var extra []detest.Column
	if g := l.full.Gradients(); g != nil {
		extra = append(extra, detest.Column{Name: "grad", Floats: g})
	}
	if g := l.reduced.Gradients(); g != nil {
		extra = append(extra, detest.Column{Name: "grad_red", Floats: g})
	}
	return l.summarize(th, extra...)
}

// uniqueRows returns the distinct rows of m sorted lexicographically and,
// for each, the first row index holding it.
func uniqueRows(m mat.Matrix) ([][]float64, []int) {
	r, _ := m.Dims()
	rows := make([][]float64, r)
	for i := 0; i < r; i++ {
		rows[i] = mat.Row(nil, i, m)
	}
	u, pick := uniqueSlices(rows)
	return u, pick
}

// uniqueSlices sorts rows lexicographically and drops duplicates. pick maps
// each kept row to the first input index holding it.
func uniqueSlices(rows [][]float64) ([][]float64, []int) {
	order := make([]int, len(rows))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return lessRow(rows[order[a]], rows[order[b]]) })
	var out [][]float64
	var pick []int
	for _, i := range order {
		if len(out) > 0 && equalRow(out[len(out)-1], rows[i]) {
			continue
		}
		out = append(out, append([]float64(nil), rows[i]...))
		pick = append(pick, i)
	}
	return out, pick
}

func lessRow(a, b []float64) bool {
	for k := range a {
		if a[k] != b[k] {
			return a[k] < b[k]
		}
	}
	return false
}

func equalRow(a, b []float64) bool {
	for k := range a {
		if a[k] != b[k] {
			return false
		}
	}
	return true
}
