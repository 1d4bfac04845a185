package correction

import (
	"math"
	"testing"

	"godex/domain/core"
	"godex/domain/detest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertClose(t *testing.T, want, got []float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		if math.IsNaN(want[i]) {
			assert.True(t, math.IsNaN(got[i]), "index %d: want NaN, got %v", i, got[i])
			continue
		}
		assert.InDelta(t, want[i], got[i], 1e-12, "index %d", i)
	}
}

func TestCorrectMethods(t *testing.T) {
	p := []float64{0.01, 0.04, 0.03, 0.005}
	cases := map[string][]float64{
		"fdr_bh":     {0.02, 0.04, 0.04, 0.02},
		"bonferroni": {0.04, 0.16, 0.12, 0.02},
		"holm":       {0.03, 0.06, 0.06, 0.02},
	}
	for method, want := range cases {
		t.Run(method, func(t *testing.T) {
			got, err := Correct(p, method)
			require.NoError(t, err)
			assertClose(t, want, got)
		})
	}
}

func TestHommelAndHochbergAgreeOnTwoTests(t *testing.T) {
	p := []float64{0.02, 0.01}
	ho, err := Correct(p, "hommel")
	require.NoError(t, err)
	sh, err := Correct(p, "simes-hochberg")
	require.NoError(t, err)
	assertClose(t, []float64{0.02, 0.02}, ho)
	assertClose(t, sh, ho)
}

func TestFdrBYIsNoSmallerThanBH(t *testing.T) {
	p := []float64{0.001, 0.01, 0.02, 0.3, 0.5}
	bh, _ := Correct(p, "fdr_bh")
	by, _ := Correct(p, "fdr_by")
	for i := range p {
		assert.GreaterOrEqual(t, by[i], bh[i])
		assert.LessOrEqual(t, by[i], 1.0)
	}
}

func TestCorrectNaNHandling(t *testing.T) {
	got, err := Correct([]float64{math.NaN(), 0.01, 0.04}, DefaultMethod)
	require.NoError(t, err)
	assertClose(t, []float64{math.NaN(), 0.02, 0.04}, got)

	allNaN := []float64{math.NaN(), math.NaN()}
	got, err = Correct(allNaN, DefaultMethod)
	require.NoError(t, err)
	assertClose(t, allNaN, got)

	got, err = Correct(nil, DefaultMethod)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCorrectUnknownMethod(t *testing.T) {
	_, err := Correct([]float64{0.1}, "magic")
	assert.ErrorIs(t, err, core.ErrUnknownMethod)
	assert.True(t, core.IsConfigError(err))
}

func TestRegisterCustomMethod(t *testing.T) {
	Register("identity", func(sorted []float64) []float64 { return sorted })
	got, err := Correct([]float64{0.3, 0.1}, "identity")
	require.NoError(t, err)
	assertClose(t, []float64{0.3, 0.1}, got)
	assert.Contains(t, Methods(), "identity")
}

func TestCorrectTensorPolicies(t *testing.T) {
	ts := detest.NewTensor(1, 2, 2, 0)
	ts.SetRow(0, 0, []float64{0.01, 0.02})
	ts.SetRow(0, 1, []float64{0.03, 0.04})

	global, err := CorrectTensor(ts, detest.CorrectGlobal, DefaultMethod)
	require.NoError(t, err)
	flat, _ := Correct(ts.Data, DefaultMethod)
	assertClose(t, flat, global.Data)

	byTest, err := CorrectTensor(ts, detest.CorrectByTest, DefaultMethod)
	require.NoError(t, err)
	assertClose(t, []float64{0.02, 0.02}, byTest.Row(0, 0))
	assertClose(t, []float64{0.04, 0.04}, byTest.Row(0, 1))

	_, err = CorrectTensor(ts, detest.CorrectionPolicy("nope"), DefaultMethod)
	assert.ErrorIs(t, err, core.ErrUnknownPolicy)
}
