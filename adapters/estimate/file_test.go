package estimate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"godex/domain/core"
	"godex/domain/detest"
	detests "godex/internal/detest"
	"godex/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func fitted(t *testing.T) (detest.Estimate, detest.DesignInfo) {
	t.Helper()
	c := testkit.GenerateCounts(testkit.DefaultCountsConfig())
	design, info := detests.GroupDesign(c.Grouping, detest.Groups(c.Grouping))
	est, err := testkit.NewLinearFitter().Fit(context.Background(), detest.FitRequest{
		NoiseModel:    "nb",
		X:             c.X,
		Features:      c.Genes,
		DesignLoc:     design,
		DesignLocInfo: info,
	})
	require.NoError(t, err)
	return est, info
}

func TestSaveLoadRoundTrip(t *testing.T) {
	est, info := fitted(t)
	for _, name := range []string{"model.yaml", "model.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, Save(path, FromEstimate(est, info, detest.DesignInfo{ColumnNames: []string{"Intercept"}})))

			m, err := Load(path)
			require.NoError(t, err)
			got := m.Estimate
			assert.Equal(t, est.Features(), got.Features())
			assert.Equal(t, est.DesignLocNames(), got.DesignLocNames())
			assert.True(t, mat.EqualApprox(est.ALoc(), got.ALoc(), 1e-12))
			assert.True(t, mat.EqualApprox(est.FisherInv(2), got.FisherInv(2), 1e-12))
			assert.InDeltaSlice(t, est.LogLikelihood(), got.LogLikelihood(), 1e-12)
			assert.Equal(t, info.TermNames(), m.LocInfo.TermNames())
			assert.Nil(t, got.ConstraintsLoc())
			assert.Equal(t, []string{"Intercept"}, m.ScaleInfo.ColumnNames)
			assert.Equal(t, detest.DegreesOfFreedom(est), detest.DegreesOfFreedom(got))

			w, err := detests.NewWald(got, []int{1})
			require.NoError(t, err)
			assert.Len(t, w.Pval(), len(est.Features()))
		})
	}
}

const minimal = `
noise_model: norm
genes: [g0]
x: [[1], [2]]
design_loc:
  columns: [Intercept, x]
  rows: [[1, 0], [1, 1]]
a_loc: [[1], [1]]
fisher_inv:
  - [[1, 0], [0, 1]]
`

func TestLoadMinimalYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.yml")
	require.NoError(t, os.WriteFile(path, []byte(minimal), 0o600))
	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "norm", m.Estimate.NoiseModel())
	assert.Nil(t, m.Estimate.DesignScale())
	assert.Nil(t, m.Estimate.BScale())
}

func TestLoadRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"ragged":     "genes: [g0]\nx: [[1], [2, 3]]\ndesign_loc: {columns: [a], rows: [[1], [1]]}\na_loc: [[1]]\nfisher_inv: [[[1]]]\n",
		"fisher":     "genes: [g0]\nx: [[1], [2]]\ndesign_loc: {columns: [a], rows: [[1], [1]]}\na_loc: [[1]]\nfisher_inv: []\n",
		"noise":      "noise_model: gamma\ngenes: [g0]\nx: [[1], [2]]\ndesign_loc: {columns: [a], rows: [[1], [1]]}\na_loc: [[1]]\nfisher_inv: [[[1]]]\n",
		"shape":      "genes: [g0, g1]\nx: [[1], [2]]\ndesign_loc: {columns: [a], rows: [[1], [1]]}\na_loc: [[1]]\nfisher_inv: [[[1]], [[1]]]\n",
		"not square": "genes: [g0]\nx: [[1], [2]]\ndesign_loc: {columns: [a], rows: [[1], [1]]}\na_loc: [[1]]\nfisher_inv: [[[1, 2]]]\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("genes: [g0, g1]\nx: [[1], [2]]\ndesign_loc: {columns: [a], rows: [[1], [1]]}\na_loc: [[1]]\nfisher_inv: [[[1]], [[1]]]\n"), 0o600))
	_, err := Load(path)
	assert.ErrorIs(t, err, core.ErrShape)
}

func TestLoadRejectsSmallFisherBlock(t *testing.T) {
	body := `
genes: [g0]
x: [[1], [2]]
design_loc:
  columns: [Intercept, x]
  rows: [[1, 0], [1, 1]]
a_loc: [[1], [1]]
fisher_inv:
  - [[1]]
`
	path := filepath.Join(t.TempDir(), "small.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	_, err := Load(path)
	assert.ErrorIs(t, err, core.ErrShape)
}
