package detest

import (
	"fmt"

	"godex/domain/core"
	"godex/domain/detest"
	"godex/internal/stats"

	"gonum.org/v1/gonum/mat"
)

// zModel reads group coefficients off a jointly fitted one-hot model.
// Coefficient i of the location model belongs to group i.
type zModel struct {
	est    detest.Estimate
	groups []string
}

func newZModel(est detest.Estimate, groups []string) (*zModel, error) {
	if err := detest.ValidateEstimate(est); err != nil {
		return nil, err
	}
	if err := detest.ValidateFisher(est); err != nil {
		return nil, err
	}
	if est.ConstraintsLoc() != nil {
		return nil, core.NewConfigError("z-test", "location model must be unconstrained")
	}
	if len(groups) < 2 {
		return nil, fmt.Errorf("%w: z-test needs at least 2 groups, got %d", core.ErrGroupCount, len(groups))
	}
	if k, _ := est.ALoc().Dims(); k < len(groups) {
		return nil, core.NewShapeError("group coefficients", len(groups), k)
	}
	return &zModel{est: est, groups: groups}, nil
}

// coef returns the fitted coefficient of group i and its standard error.
func (z *zModel) coef(i int) (theta, sd []float64) {
	theta = mat.Row(nil, i, z.est.ALoc())
	sd = make([]float64, len(theta))
	for g := range sd {
		sd[g] = stats.StandardError(z.est.FisherInv(g).At(i, i))
	}
	return theta, sd
}

// pair tests group i against group j. The fold change is j relative to i.
func (z *zModel) pair(i, j int) (pval, lfc []float64) {
	ti, si := z.coef(i)
	if i == j {
		pval = make([]float64, len(ti))
		for g := range pval {
			pval[g] = 1
		}
		return pval, make([]float64, len(ti))
	}
	tj, sj := z.coef(j)
	pval, _ = stats.TwoCoefZTest(ti, tj, si, sj)
	lfc = make([]float64, len(ti))
	for g := range lfc {
		lfc[g] = tj[g] - ti[g]
	}
	return pval, lfc
}

// tensors evaluates every pair of rows x cols.
func (z *zModel) tensors(rows, cols []int) (pval, lfc *detest.Tensor) {
	g := len(z.est.Features())
	pval = detest.NewTensor(len(rows), len(cols), g, 0)
	lfc = detest.NewTensor(len(rows), len(cols), g, 0)
	for a, i := range rows {
		for b, j := range cols {
			p, f := z.pair(i, j)
			pval.SetRow(a, b, p)
			lfc.SetRow(a, b, f)
		}
	}
	return pval, lfc
}

func (z *zModel) mean() []float64 {
	m, _ := stats.ColumnMoments(z.est.X(), nil)
	return m
}

// groupIndices maps group names onto coefficient indices. A nil list selects
// every group.
func groupIndices(param string, names []string, groups []string) ([]int, error) {
	index := detest.GroupIndex(groups)
	if names == nil {
		return allRows(len(groups)), nil
	}
	out := make([]int, len(names))
	for k, n := range names {
		i, ok := index[n]
		if !ok {
			return nil, core.NewUnknownGroupError(param, n)
		}
		out[k] = i
	}
	return out, nil
}
