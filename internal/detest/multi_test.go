package detest

import (
	"context"
	"math"
	"testing"

	"godex/domain/core"
	"godex/domain/detest"
	"godex/internal/correction"
	"godex/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairwiseSymmetry(t *testing.T) {
	c := threeGroups()
	m, err := Pairwise(context.Background(), c.X, c.Grouping, c.Genes, "t-test", WithWorkers(3), WithKeepTests(true))
	require.NoError(t, err)
	pw, ok := m.(*PairwiseResult)
	require.True(t, ok)
	assert.Equal(t, detest.KindPairwise, pw.Kind())

	groups := pw.Groups()
	for _, a := range groups {
		for _, b := range groups {
			pab, err := pw.PvalPair(a, b)
			require.NoError(t, err)
			pba, _ := pw.PvalPair(b, a)
			fab, _ := pw.LogFoldChangePair(a, b, math.E)
			fba, _ := pw.LogFoldChangePair(b, a, math.E)
			for g := range pab {
				assert.Equal(t, pab[g], pba[g])
				assert.Equal(t, fab[g], -fba[g])
				if a == b {
					assert.Equal(t, 1.0, pab[g])
					assert.Equal(t, 0.0, fab[g])
				}
			}
		}
	}

	tests, err := pw.Tests()
	require.NoError(t, err)
	require.Len(t, tests, 3)
	assert.Nil(t, tests[1][0])
	assert.Equal(t, tests[0][1].Pval(), pw.Pval().Row(0, 1))

	_, err = pw.PvalPair("a", "zzz")
	assert.ErrorIs(t, err, core.ErrUnknownGroup)
}

func TestPairwiseMatchesDirectTwoSample(t *testing.T) {
	c := threeGroups()
	m, err := Pairwise(context.Background(), c.X, c.Grouping, c.Genes, "t-test")
	require.NoError(t, err)
	pw := m.(*PairwiseResult)

	direct := newTTestRows(c.X, detest.Observations(c.Grouping, "a"), detest.Observations(c.Grouping, "c"),
		[]string{"a", "c"}, c.Genes, Options{Method: correction.DefaultMethod})

	p, err := pw.PvalPair("a", "c")
	require.NoError(t, err)
	assert.Equal(t, direct.Pval(), p)
	f, _ := pw.LogFoldChangePair("a", "c", 2)
	assert.Equal(t, direct.Log2FoldChange(), f)

	_, err = pw.Tests()
	assert.ErrorIs(t, err, core.ErrTestsNotKept)
}

func TestPairwiseZTestGlobalCorrection(t *testing.T) {
	c := threeGroups()
	m, err := Pairwise(context.Background(), c.X, c.Grouping, c.Genes, "z-test",
		WithFitter(testkit.NewLinearFitter()), WithNoiseModel("nb"), WithPolicy(detest.CorrectGlobal))
	require.NoError(t, err)
	assert.Equal(t, detest.KindZTest, m.Kind())

	pval := m.Pval()
	flat, err := correction.Correct(pval.Data, correction.DefaultMethod)
	require.NoError(t, err)
	want := make([]float64, pval.G)
	for g := range want {
		want[g] = math.Inf(1)
	}
	for k, q := range flat {
		g := k % pval.G
		want[g] = math.Min(want[g], q)
	}

	tbl, err := m.Summary(detest.Threshold{})
	require.NoError(t, err)
	for g := range want {
		assert.InDelta(t, want[g], tbl.Qval[g], 1e-15, "gene %d", g)
	}
	assert.Equal(t, m.Qval().Data, flat)
	assert.Less(t, tbl.Pval[0], 1e-6)
}

func TestPairwiseSummaryReduction(t *testing.T) {
	genes := detest.GeneSet{"g0", "g1"}
	pval := detest.NewTensor(2, 2, 2, 1)
	pval.SetRow(0, 1, []float64{0.2, math.NaN()})
	pval.SetRow(1, 0, []float64{0.2, math.NaN()})
	lfc := detest.NewTensor(2, 2, 2, 0)
	lfc.SetRow(0, 1, []float64{-3, 1})
	lfc.SetRow(1, 0, []float64{3, -1})

	tbl, err := reduceSummary(genes, pval, pval, lfc, []float64{1, 1})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.2, 1}, tbl.Pval)
	assert.Equal(t, []float64{-3, 1}, tbl.Log2FC)

	// the largest magnitude below the diagonal is flipped
	lower := detest.NewTensor(2, 2, 1, 0)
	lower.Set(1, 0, 0, 5)
	assert.Equal(t, []float64{-5}, maxAbsOver(lower))
}

func TestPairwiseLazyMatchesEager(t *testing.T) {
	c := threeGroups()
	fitter := testkit.NewLinearFitter()
	ctx := context.Background()

	eager, err := Pairwise(ctx, c.X, c.Grouping, c.Genes, "z-test", WithFitter(fitter), WithNoiseModel("nb"))
	require.NoError(t, err)
	lazyResult, err := Pairwise(ctx, c.X, c.Grouping, c.Genes, "z-test", WithFitter(fitter), WithNoiseModel("nb"), WithLazy(true))
	require.NoError(t, err)
	lazy, ok := lazyResult.(*PairwiseLazy)
	require.True(t, ok)
	pw := eager.(*PairwiseResult)

	for _, g1 := range pw.Groups() {
		for _, g2 := range pw.Groups() {
			want, err := pw.PvalPair(g1, g2)
			require.NoError(t, err)
			got, err := lazy.PvalPairs([]string{g1}, []string{g2})
			require.NoError(t, err)
			assert.InDeltaSlice(t, want, got.Row(0, 0), 1e-12)

			wantFC, _ := pw.LogFoldChangePair(g1, g2, 2)
			gotFC, err := lazy.LogFoldChangePairs([]string{g1}, []string{g2}, 2)
			require.NoError(t, err)
			assert.InDeltaSlice(t, wantFC, gotFC.Row(0, 0), 1e-12)
		}
	}

	all, err := lazy.PvalPairs([]string{"b"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, all.B)

	full, err := lazy.PvalPairs(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, full.A)
	assert.InDeltaSlice(t, pw.Pval().Data, full.Data, 1e-12)

	fullQ, err := lazy.QvalPairs(nil, nil)
	require.NoError(t, err)
	assert.InDeltaSlice(t, pw.Qval().Data, fullQ.Data, 1e-12)

	toC, err := lazy.LogFoldChangePairs(nil, []string{"c"}, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, toC.A)
	assert.Equal(t, 1, toC.B)

	summary, err := lazy.SummaryPair([]string{"a"}, []string{"b"}, detest.Threshold{})
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Len())

	many, err := lazy.SummaryPairs([]string{"a", "b"}, nil, detest.Threshold{})
	require.NoError(t, err)
	assert.Equal(t, 4, many.Len())
}

func TestPairwiseLazyRestrictions(t *testing.T) {
	c := threeGroups()
	m, err := Pairwise(context.Background(), c.X, c.Grouping, c.Genes, "ztest",
		WithFitter(testkit.NewLinearFitter()), WithNoiseModel("nb"), WithLazy(true))
	require.NoError(t, err)
	lazy := m.(*PairwiseLazy)

	assert.Nil(t, lazy.Pval())
	assert.Nil(t, lazy.Qval())
	assert.Nil(t, lazy.LogFoldChange(2))
	_, err = lazy.Summary(detest.Threshold{})
	assert.ErrorIs(t, err, core.ErrLazyUnsupported)

	_, err = lazy.SummaryPair([]string{"a", "b"}, []string{"c"}, detest.Threshold{})
	assert.ErrorIs(t, err, core.ErrSingleGroup)
	assert.True(t, core.IsConfigError(err))
	_, err = lazy.SummaryPair([]string{"a"}, nil, detest.Threshold{})
	assert.ErrorIs(t, err, core.ErrSingleGroup)
	_, err = lazy.SummaryPair([]string{"a"}, []string{"x"}, detest.Threshold{})
	assert.ErrorIs(t, err, core.ErrUnknownGroup)

	_, err = Pairwise(context.Background(), c.X, c.Grouping, c.Genes, "t-test", WithLazy(true))
	assert.ErrorIs(t, err, core.ErrLazyTest)
}

func TestVersusRest(t *testing.T) {
	c := threeGroups()
	vr, err := VersusRest(context.Background(), c.X, c.Grouping, c.Genes, "t-test", WithKeepTests(true))
	require.NoError(t, err)

	p := vr.Pval()
	assert.Equal(t, 1, p.A)
	assert.Equal(t, 3, p.B)

	in := detest.Observations(c.Grouping, "b")
	rest := detest.Observations(c.Grouping, "a", "c")
	direct := newTTestRows(c.X, rest, in, []string{RestLabel, "b"}, c.Genes, Options{Method: correction.DefaultMethod})
	got, err := vr.PvalGroup("b")
	require.NoError(t, err)
	assert.Equal(t, direct.Pval(), got)

	fc, err := vr.LogFoldChangeGroup("b", math.E)
	require.NoError(t, err)
	assert.Greater(t, fc[0], 0.0, "b is up-regulated for gene0 relative to the rest")

	tests, err := vr.Tests()
	require.NoError(t, err)
	assert.Len(t, tests, 3)

	_, err = vr.QvalGroup("nope")
	assert.ErrorIs(t, err, core.ErrUnknownGroup)

	tbl, err := vr.SummaryGroup("b", detest.Threshold{})
	require.NoError(t, err)
	assert.Equal(t, got, tbl.Pval)
}

func TestPartitionCorrectsEachPartition(t *testing.T) {
	c := scenarioA()
	parts := make([]string, len(c.Grouping))
	for i := range parts {
		if i%2 == 0 {
			parts[i] = "p0"
		} else {
			parts[i] = "p1"
		}
	}
	part, err := NewPartition(c.X, parts, c.Genes, WithKeepTests(true))
	require.NoError(t, err)
	assert.Equal(t, []string{"p0", "p1"}, part.Partitions())

	bp, err := part.TTest(context.Background(), c.Grouping)
	require.NoError(t, err)
	assert.Equal(t, detest.CorrectByTest, bp.Policy())
	assert.Equal(t, detest.KindPartition, bp.Kind())

	rows, err := part.Rows("p1")
	require.NoError(t, err)
	sub := subsetRows(c.X, rows)
	direct, err := NewTTest(sub, subsetStrings(c.Grouping, rows), c.Genes)
	require.NoError(t, err)
	assert.InDeltaSlice(t, direct.Pval(), bp.Pval().Row(0, 1), 1e-12)

	q, err := correction.Correct(bp.Pval().RowCopy(0, 1), correction.DefaultMethod)
	require.NoError(t, err)
	assert.InDeltaSlice(t, q, bp.Qval().Row(0, 1), 1e-15)

	tests, err := bp.Tests()
	require.NoError(t, err)
	assert.Len(t, tests, 2)

	_, err = part.Rows("p9")
	assert.ErrorIs(t, err, core.ErrUnknownPartition)
	_, err = bp.SummaryPartition("p9", detest.Threshold{})
	assert.ErrorIs(t, err, core.ErrUnknownPartition)
}

func TestPartitionWaldWithFittedModels(t *testing.T) {
	est := splineEstimate()
	x := est.X()
	part, err := NewPartition(x, []string{"p", "p", "p"}, est.Features())
	require.NoError(t, err)

	bp, err := part.Wald(context.Background(), map[string]detest.Estimate{"p": est}, []int{1})
	require.NoError(t, err)
	w, err := NewWald(est, []int{1})
	require.NoError(t, err)
	assert.Equal(t, w.Pval(), bp.Pval().Row(0, 0))

	_, err = part.Wald(context.Background(), map[string]detest.Estimate{}, []int{1})
	assert.True(t, core.IsConfigError(err))
}

func TestDriverConfigurationErrors(t *testing.T) {
	c := scenarioA()
	ctx := context.Background()

	_, err := TwoSample(ctx, c.X, c.Grouping, c.Genes, "anova")
	assert.ErrorIs(t, err, core.ErrUnknownTest)

	_, err = TwoSample(ctx, c.X, c.Grouping, c.Genes, "z-test")
	assert.True(t, core.IsConfigError(err))

	_, err = TwoSample(ctx, c.X, c.Grouping, c.Genes, "t-test", WithNoiseModel("nb"))
	assert.True(t, core.IsConfigError(err))

	_, err = TwoSample(ctx, c.X, c.Grouping, c.Genes, "wald", WithNoiseModel("gamma"), WithFitter(testkit.NewLinearFitter()))
	assert.ErrorIs(t, err, core.ErrUnknownNoiseModel)

	_, err = TwoSample(ctx, c.X, c.Grouping, c.Genes, "wald")
	assert.ErrorIs(t, err, core.ErrMissingFitter)

	_, err = TwoSample(ctx, c.X, c.Grouping, c.Genes, "lrt", WithFitter(testkit.NewLinearFitter()))
	assert.ErrorContains(t, err, "noise_model")

	three := threeGroups()
	_, err = Pairwise(ctx, three.X, three.Grouping, three.Genes, "z-test", WithFitter(testkit.NewLinearFitter()))
	assert.True(t, core.IsConfigError(err))

	_, err = TwoSample(ctx, c.X, c.Grouping, c.Genes, "ttest", WithSizeFactors([]float64{1}))
	assert.ErrorIs(t, err, core.ErrShape)

	_, err = TwoSample(ctx, three.X, three.Grouping, three.Genes, "rank")
	assert.ErrorIs(t, err, core.ErrGroupCount)

	_, err = Pairwise(ctx, c.X, c.Grouping, c.Genes, "t-test", WithWorkers(0))
	assert.True(t, core.IsConfigError(err))

	_, err = Pairwise(ctx, c.X, c.Grouping, c.Genes, "t-test", WithPolicy("per_gene"))
	assert.ErrorIs(t, err, core.ErrUnknownPolicy)

	s, err := TwoSample(ctx, c.X, c.Grouping, c.Genes, "rank")
	require.NoError(t, err)
	assert.Equal(t, detest.KindRank, s.Kind())
}

func TestMultiThresholdSummary(t *testing.T) {
	c := threeGroups()
	m, err := Pairwise(context.Background(), c.X, c.Grouping, c.Genes, "t-test")
	require.NoError(t, err)

	all, err := m.Summary(detest.Threshold{})
	require.NoError(t, err)
	strict, err := m.Summary(detest.Threshold{QvalMax: detest.Float(0.01)})
	require.NoError(t, err)
	assert.LessOrEqual(t, strict.Len(), all.Len())
	assert.Contains(t, strict.Gene, "gene0")

	clean := m.Log10PvalClean(-30)
	assert.Equal(t, 0.0, clean.At(0, 0, 0))
}
