package detest

import (
	"context"
	"math"

	"godex/domain/core"
	"godex/domain/detest"
)

// RestLabel names the pooled complement of a group in versus-rest tests.
const RestLabel = "rest"

// VersusRestResult holds one test per group against all other groups pooled, as
// a 1 x groups x genes tensor. Fold changes are group relative to rest.
type VersusRestResult struct {
	multi
	groups []string
	tests  []Single
	kept   bool
}

// groupRunner runs the test of rest (reference) against group k.
type groupRunner func(ctx context.Context, k int) (Single, error)

func newVersusRest(ctx context.Context, groups []string, genes detest.GeneSet, mean []float64, o Options, run groupRunner) (*VersusRestResult, error) {
	n, g := len(groups), len(genes)
	results := make([]Single, n)
	err := fanOut(ctx, o.Workers, n, func(ctx context.Context, k int) error {
		t, err := run(ctx, k)
		results[k] = t
		return err
	})
	if err != nil {
		return nil, err
	}
	pval := detest.NewTensor(1, n, g, 0)
	lfc := detest.NewTensor(1, n, g, 0)
	for k, t := range results {
		pval.SetRow(0, k, t.Pval())
		f := t.LogFoldChange(math.E)
		if f == nil {
			f = nanVector(g)
		}
		lfc.SetRow(0, k, f)
	}

	vr := &VersusRestResult{groups: groups, kept: o.KeepTests}
	vr.multi.init(detest.KindVersusRest, genes, o)
	vr.pvalFn = func() *detest.Tensor { return pval }
	vr.lfcFn = func() *detest.Tensor { return lfc }
	vr.meanFn = func() []float64 { return mean }
	if o.KeepTests {
		vr.tests = results
	}
	return vr, nil
}

// Groups returns the group order of the tensors.
func (v *VersusRestResult) Groups() []string { return v.groups }

func (v *VersusRestResult) groupIndex(group string) (int, error) {
	i, ok := detest.GroupIndex(v.groups)[group]
	if !ok {
		return 0, core.NewUnknownGroupError("group", group)
	}
	return i, nil
}

// PvalGroup returns the p-values of group against the rest.
func (v *VersusRestResult) PvalGroup(group string) ([]float64, error) {
	i, err := v.groupIndex(group)
	if err != nil {
		return nil, err
	}
	return v.Pval().RowCopy(0, i), nil
}

// QvalGroup returns the corrected p-values of group against the rest.
func (v *VersusRestResult) QvalGroup(group string) ([]float64, error) {
	i, err := v.groupIndex(group)
	if err != nil {
		return nil, err
	}
	return v.Qval().RowCopy(0, i), nil
}

// LogFoldChangeGroup returns the fold change of group relative to the rest.
func (v *VersusRestResult) LogFoldChangeGroup(group string, base float64) ([]float64, error) {
	i, err := v.groupIndex(group)
	if err != nil {
		return nil, err
	}
	return v.LogFoldChange(base).RowCopy(0, i), nil
}

// SummaryGroup summarizes group against the rest.
func (v *VersusRestResult) SummaryGroup(group string, th detest.Threshold) (*detest.Table, error) {
	i, err := v.groupIndex(group)
	if err != nil {
		return nil, err
	}
	return v.pairTable(0, i, th)
}

// Tests returns the sub-test of every group, if kept.
func (v *VersusRestResult) Tests() ([]Single, error) {
	if !v.kept || v.tests == nil {
		return nil, core.ErrTestsNotKept
	}
	return v.tests, nil
}
