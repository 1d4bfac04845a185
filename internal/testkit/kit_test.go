package testkit

import (
	"context"
	"math"
	"testing"

	"godex/domain/detest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestGenerateCountsDeterministic(t *testing.T) {
	cfg := DefaultCountsConfig()
	cfg.Effects[1] = []float64{1, 4}

	c1 := GenerateCounts(cfg)
	c2 := GenerateCounts(cfg)
	assert.True(t, mat.Equal(c1.X, c2.X))
	assert.Equal(t, []string{"gene0", "gene1", "gene2", "gene3", "gene4"}, []string(c1.Genes))

	r, g := c1.X.Dims()
	assert.Equal(t, 20, r)
	assert.Equal(t, 5, g)
	assert.Equal(t, "a", c1.Grouping[0])
	assert.Equal(t, "b", c1.Grouping[19])
}

func TestLinearFitterRecoversGroupMeans(t *testing.T) {
	x := mat.NewDense(4, 1, []float64{1, 3, 10, 14})
	design := mat.NewDense(4, 2, []float64{1, 0, 1, 0, 0, 1, 0, 1})
	f := NewLinearFitter()

	est, err := f.Fit(context.Background(), detest.FitRequest{
		NoiseModel: "norm",
		X:          x,
		Features:   detest.GeneSet{"g"},
		DesignLoc:  design,
		DesignLocInfo: detest.DesignInfo{
			ColumnNames: []string{"grouping[a]", "grouping[b]"},
		},
	})
	require.NoError(t, err)
	require.NoError(t, detest.ValidateEstimate(est))

	a := est.ALoc()
	assert.InDelta(t, 2.0, a.At(0, 0), 1e-12)
	assert.InDelta(t, 12.0, a.At(1, 0), 1e-12)

	// residuals are +-1 and +-2, so sigma^2 = 10/4
	sigma2 := 2.5
	assert.InDelta(t, sigma2/2, est.FisherInv(0).At(0, 0), 1e-12)
	assert.InDelta(t, -2*(math.Log(2*math.Pi*sigma2)+1), est.LogLikelihood()[0], 1e-12)
	assert.Len(t, f.Requests(), 1)
	assert.Equal(t, 3, detest.DegreesOfFreedom(est))
}

func TestLinearFitterHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLinearFitter().Fit(ctx, detest.FitRequest{})
	assert.ErrorIs(t, err, context.Canceled)
}
