package detest

import (
	"context"
	"fmt"
	"sort"

	"godex/domain/core"
	"godex/domain/detest"
	"godex/internal/stats"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

var errNoNoiseModel = core.NewConfigError("noise_model", "required by model-based tests")

// TwoSample runs a differential expression test between the two levels of
// grouping. Accepted tests are wald, lrt, t-test and wilcoxon.
func TwoSample(ctx context.Context, x mat.Matrix, grouping []string, genes detest.GeneSet, test string, opts ...Option) (Single, error) {
	kind, err := detest.ParseTestName(test)
	if err != nil {
		return nil, err
	}
	o, err := resolve(detest.CorrectGlobal, opts)
	if err != nil {
		return nil, err
	}
	if err := checkGenes(x, genes); err != nil {
		return nil, err
	}
	if err := checkSizeFactors(x, o.SizeFactors); err != nil {
		return nil, err
	}
	if err := checkTwoSampleKind(kind, o); err != nil {
		return nil, err
	}
	groups, rows0, rows1, err := splitGrouping(x, grouping)
	if err != nil {
		return nil, err
	}
	o.Logger.Debug("two-sample test",
		zap.String("test", string(kind)),
		zap.Int("observations", len(grouping)),
		zap.Int("genes", len(genes)))
	return runTwoSample(ctx, kind, x, rows0, rows1, groups, genes, o)
}

// Pairwise runs a test between every pair of groups. The z-test (default)
// fits one model with a one-hot design; with WithLazy it answers queries on
// demand. Other tests run once per pair on that pair's observations.
func Pairwise(ctx context.Context, x mat.Matrix, grouping []string, genes detest.GeneSet, test string, opts ...Option) (Multi, error) {
	if test == "" {
		test = string(detest.KindZTest)
	}
	kind, err := detest.ParseTestName(test)
	if err != nil {
		return nil, err
	}
	o, err := resolve(detest.CorrectGlobal, opts)
	if err != nil {
		return nil, err
	}
	if err := checkGenes(x, genes); err != nil {
		return nil, err
	}
	if err := checkSizeFactors(x, o.SizeFactors); err != nil {
		return nil, err
	}
	if n, _ := x.Dims(); len(grouping) != n {
		return nil, core.NewShapeError("grouping", n, len(grouping))
	}
	groups := detest.Groups(grouping)
	if len(groups) < 2 {
		return nil, fmt.Errorf("%w: grouping has %d groups, want at least 2", core.ErrGroupCount, len(groups))
	}
	if o.Lazy && kind != detest.KindZTest {
		return nil, fmt.Errorf("%w: got %q", core.ErrLazyTest, kind)
	}

	if kind == detest.KindZTest {
		est, err := fitOneHot(ctx, x, grouping, groups, genes, o)
		if err != nil {
			return nil, err
		}
		if o.Lazy {
			return NewPairwiseLazy(est, groups, o.forward()...)
		}
		return NewZTestPairwise(est, groups, o.forward()...)
	}

	if err := checkTwoSampleKind(kind, o); err != nil {
		return nil, err
	}
	mean, _ := stats.ColumnMoments(x, nil)
	rowsOf := make([][]int, len(groups))
	for i, g := range groups {
		rowsOf[i] = detest.Observations(grouping, g)
	}
	pw, err := newPairwiseFromTests(ctx, detest.KindPairwise, groups, genes, mean, o,
		func(ctx context.Context, i, j int) (Single, error) {
			return runTwoSample(ctx, kind, x, rowsOf[i], rowsOf[j], []string{groups[i], groups[j]}, genes, o)
		})
	if err != nil {
		return nil, err
	}
	return pw, nil
}

// VersusRest tests every group against all remaining observations.
func VersusRest(ctx context.Context, x mat.Matrix, grouping []string, genes detest.GeneSet, test string, opts ...Option) (*VersusRestResult, error) {
	kind, err := detest.ParseTestName(test)
	if err != nil {
		return nil, err
	}
	o, err := resolve(detest.CorrectGlobal, opts)
	if err != nil {
		return nil, err
	}
	if err := checkGenes(x, genes); err != nil {
		return nil, err
	}
	if err := checkSizeFactors(x, o.SizeFactors); err != nil {
		return nil, err
	}
	if err := checkTwoSampleKind(kind, o); err != nil {
		return nil, err
	}
	if n, _ := x.Dims(); len(grouping) != n {
		return nil, core.NewShapeError("grouping", n, len(grouping))
	}
	groups := detest.Groups(grouping)
	if len(groups) < 2 {
		return nil, fmt.Errorf("%w: grouping has %d groups, want at least 2", core.ErrGroupCount, len(groups))
	}
	mean, _ := stats.ColumnMoments(x, nil)
	return newVersusRest(ctx, groups, genes, mean, o, func(ctx context.Context, k int) (Single, error) {
		var rest, in []int
		for i, l := range grouping {
			if l == groups[k] {
				in = append(in, i)
			} else {
				rest = append(rest, i)
			}
		}
		return runTwoSample(ctx, kind, x, rest, in, []string{RestLabel, groups[k]}, genes, o)
	})
}

// checkTwoSampleKind rejects tests that cannot run on two groups of
// observations with the given options.
func checkTwoSampleKind(kind detest.TestKind, o Options) error {
	switch kind {
	case detest.KindZTest:
		return core.NewConfigError("test", "z-test compares groups of a joint fit, use wald for two groups")
	case detest.KindTTest, detest.KindRank:
		if o.NoiseModel != "" {
			return core.NewConfigError("noise_model", "not used by "+string(kind))
		}
	case detest.KindWald, detest.KindLRT:
		if o.Fitter == nil {
			return core.ErrMissingFitter
		}
		if o.NoiseModel == "" {
			return errNoNoiseModel
		}
	}
	return nil
}

// runTwoSample tests rows1 against the reference rows0. groups names the two
// sides in that order.
func runTwoSample(ctx context.Context, kind detest.TestKind, x mat.Matrix, rows0, rows1 []int, groups []string, genes detest.GeneSet, o Options) (Single, error) {
	switch kind {
	case detest.KindTTest:
		return newTTestRows(x, rows0, rows1, groups, genes, o), nil
	case detest.KindRank:
		return newRankTestRows(x, rows0, rows1, groups, genes, o), nil
	case detest.KindWald, detest.KindLRT:
		rows := append(append([]int(nil), rows0...), rows1...)
		sort.Ints(rows)
		in0 := make(map[int]bool, len(rows0))
		for _, r := range rows0 {
			in0[r] = true
		}
		labels := make([]string, len(rows))
		for k, r := range rows {
			if in0[r] {
				labels[k] = groups[0]
			} else {
				labels[k] = groups[1]
			}
		}
		sub := o
		sub.SizeFactors = subsetFloats(o.SizeFactors, rows)
		if kind == detest.KindWald {
			return fitWald(ctx, subsetRows(x, rows), labels, groups, genes, sub)
		}
		return fitLRT(ctx, subsetRows(x, rows), labels, groups, genes, sub)
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownTest, kind)
	}
}

func (o Options) request(x mat.Matrix, genes detest.GeneSet) detest.FitRequest {
	return detest.FitRequest{
		NoiseModel:       o.NoiseModel,
		X:                x,
		Features:         genes,
		SizeFactors:      o.SizeFactors,
		Init:             o.Init,
		TrainingStrategy: o.TrainingStrategy,
	}
}

func fit(ctx context.Context, o Options, req detest.FitRequest) (detest.Estimate, error) {
	if o.Fitter == nil {
		return nil, core.ErrMissingFitter
	}
	if req.NoiseModel == "" {
		return nil, errNoNoiseModel
	}
	est, err := o.Fitter.Fit(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fit %s model: %w", req.NoiseModel, err)
	}
	return est, nil
}

func fitWald(ctx context.Context, x mat.Matrix, labels, groups []string, genes detest.GeneSet, o Options) (Single, error) {
	design, info := GroupDesign(labels, groups)
	req := o.request(x, genes)
	req.DesignLoc, req.DesignLocInfo = design, info
	req.DesignScale, req.DesignScaleInfo = design, info
	est, err := fit(ctx, o, req)
	if err != nil {
		return nil, err
	}
	return NewWald(est, []int{1}, o.forward()...)
}

// fitLRT compares ~1+grouping against ~1 on the location model. Both fits
// share the ~1+grouping scale model.
func fitLRT(ctx context.Context, x mat.Matrix, labels, groups []string, genes detest.GeneSet, o Options) (Single, error) {
	n, _ := x.Dims()
	fullDesign, fullInfo := GroupDesign(labels, groups)
	redDesign, redInfo := InterceptDesign(n)

	fullReq := o.request(x, genes)
	fullReq.DesignLoc, fullReq.DesignLocInfo = fullDesign, fullInfo
	fullReq.DesignScale, fullReq.DesignScaleInfo = fullDesign, fullInfo
	full, err := fit(ctx, o, fullReq)
	if err != nil {
		return nil, err
	}

	redReq := o.request(x, genes)
	redReq.DesignLoc, redReq.DesignLocInfo = redDesign, redInfo
	redReq.DesignScale, redReq.DesignScaleInfo = fullDesign, fullInfo
	reduced, err := fit(ctx, o, redReq)
	if err != nil {
		return nil, err
	}

	sub := o
	if sub.Description == nil {
		sub.Description = detest.SampleDescription{GroupingTerm: labels}
	}
	return NewLRT(full, reduced, fullInfo, redInfo, sub.forward()...)
}

func fitOneHot(ctx context.Context, x mat.Matrix, grouping, groups []string, genes detest.GeneSet, o Options) (detest.Estimate, error) {
	design, info := OneHotDesign(grouping, groups)
	req := o.request(x, genes)
	req.DesignLoc, req.DesignLocInfo = design, info
	req.DesignScale, req.DesignScaleInfo = design, info
	return fit(ctx, o, req)
}
