package detest

import (
	"context"
	"fmt"
	"math"

	"godex/domain/core"
	"godex/domain/detest"
	"godex/internal/stats"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// Partition runs a single test independently inside each partition of the
// observations.
type Partition struct {
	x      mat.Matrix
	labels []string
	parts  []string
	genes  detest.GeneSet
	opts   Options
}

// NewPartition splits the observations of x by the partition labels.
// Results default to correcting each partition on its own.
func NewPartition(x mat.Matrix, partitions []string, genes detest.GeneSet, opts ...Option) (*Partition, error) {
	o, err := resolve(detest.CorrectByTest, opts)
	if err != nil {
		return nil, err
	}
	if err := checkGenes(x, genes); err != nil {
		return nil, err
	}
	if n, _ := x.Dims(); len(partitions) != n {
		return nil, core.NewShapeError("partition labels", n, len(partitions))
	}
	return &Partition{x: x, labels: partitions, parts: detest.Groups(partitions), genes: genes, opts: o}, nil
}

// Partitions returns the sorted partition names.
func (p *Partition) Partitions() []string { return p.parts }

// Rows returns the observations of a partition.
func (p *Partition) Rows(partition string) ([]int, error) {
	if _, ok := detest.GroupIndex(p.parts)[partition]; !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownPartition, partition)
	}
	return detest.Observations(p.labels, partition), nil
}

// TwoSample runs the named two-sample test in every partition. grouping
// must have exactly two levels inside each partition.
func (p *Partition) TwoSample(ctx context.Context, grouping []string, test string) (*ByPartition, error) {
	kind, err := detest.ParseTestName(test)
	if err != nil {
		return nil, err
	}
	if n, _ := p.x.Dims(); len(grouping) != n {
		return nil, core.NewShapeError("grouping", n, len(grouping))
	}
	if err := checkTwoSampleKind(kind, p.opts); err != nil {
		return nil, err
	}
	return p.run(ctx, func(ctx context.Context, k int) (Single, error) {
		rows := detest.Observations(p.labels, p.parts[k])
		sub := subsetStrings(grouping, rows)
		groups := detest.Groups(sub)
		if len(groups) != 2 {
			return nil, fmt.Errorf("%w: partition %q has %d groups, want 2", core.ErrGroupCount, p.parts[k], len(groups))
		}
		var rows0, rows1 []int
		for i, r := range rows {
			if sub[i] == groups[0] {
				rows0 = append(rows0, r)
			} else {
				rows1 = append(rows1, r)
			}
		}
		return runTwoSample(ctx, kind, p.x, rows0, rows1, groups, p.genes, p.opts)
	})
}

// TTest runs a Welch t-test in every partition.
func (p *Partition) TTest(ctx context.Context, grouping []string) (*ByPartition, error) {
	return p.TwoSample(ctx, grouping, string(detest.KindTTest))
}

// Wilcoxon runs a rank-sum test in every partition.
func (p *Partition) Wilcoxon(ctx context.Context, grouping []string) (*ByPartition, error) {
	return p.TwoSample(ctx, grouping, string(detest.KindRank))
}

// Wald runs a Wald test on a model fitted separately for each partition.
func (p *Partition) Wald(ctx context.Context, estimates map[string]detest.Estimate, coefs []int) (*ByPartition, error) {
	return p.run(ctx, func(_ context.Context, k int) (Single, error) {
		est, ok := estimates[p.parts[k]]
		if !ok {
			return nil, core.NewConfigError("estimates", "no model for partition "+p.parts[k])
		}
		return NewWald(est, coefs, p.opts.forward()...)
	})
}

// LRT runs a likelihood-ratio test on full and reduced models fitted
// separately for each partition.
func (p *Partition) LRT(ctx context.Context, full, reduced map[string]detest.Estimate, fullInfo, reducedInfo detest.DesignInfo) (*ByPartition, error) {
	return p.run(ctx, func(_ context.Context, k int) (Single, error) {
		f, okF := full[p.parts[k]]
		r, okR := reduced[p.parts[k]]
		if !okF || !okR {
			return nil, core.NewConfigError("estimates", "no full and reduced model for partition "+p.parts[k])
		}
		return NewLRT(f, r, fullInfo, reducedInfo, p.opts.forward()...)
	})
}

func (p *Partition) run(ctx context.Context, fn func(ctx context.Context, k int) (Single, error)) (*ByPartition, error) {
	n, g := len(p.parts), len(p.genes)
	results := make([]Single, n)
	err := fanOut(ctx, p.opts.Workers, n, func(ctx context.Context, k int) error {
		t, err := fn(ctx, k)
		if err != nil {
			return fmt.Errorf("partition %q: %w", p.parts[k], err)
		}
		if len(t.Genes()) != g {
			return core.NewShapeError("partition "+p.parts[k]+" genes", g, len(t.Genes()))
		}
		results[k] = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.opts.Logger.Debug("partition tests finished", zap.Int("partitions", n), zap.Int("genes", g))

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
	bp := &ByPartition{parts: p.parts, kept: p.opts.KeepTests}
	bp.multi.init(detest.KindPartition, p.genes, p.opts)
	bp.pvalFn = func() *detest.Tensor { return pval }
	bp.lfcFn = func() *detest.Tensor { return lfc }
	bp.meanFn = func() []float64 { m, _ := stats.ColumnMoments(p.x, nil); return m }
	if p.opts.KeepTests {
		bp.tests = results
	}
	return bp, nil
}

// ByPartition stacks per-partition results into a 1 x partitions x genes
// tensor.
type ByPartition struct {
	multi
	parts []string
	tests []Single
	kept  bool
}

// Partitions returns the partition order of the tensors.
func (b *ByPartition) Partitions() []string { return b.parts }

// SummaryPartition summarizes the test of one partition.
func (b *ByPartition) SummaryPartition(partition string, th detest.Threshold) (*detest.Table, error) {
	k, ok := detest.GroupIndex(b.parts)[partition]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownPartition, partition)
	}
	return b.pairTable(0, k, th)
}

// Tests returns the per-partition tests, if kept.
func (b *ByPartition) Tests() ([]Single, error) {
	if !b.kept || b.tests == nil {
		return nil, core.ErrTestsNotKept
	}
	return b.tests, nil
}
