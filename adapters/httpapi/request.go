package httpapi

import (
	"godex/domain/core"
	"godex/domain/detest"
	detests "godex/internal/detest"
	"godex/internal/errors"

	"gonum.org/v1/gonum/mat"
)

// ThresholdRequest mirrors detest.Threshold. Missing fields are not applied.
type ThresholdRequest struct {
	QvalMax *float64 `json:"qval_max,omitempty"`
	FCUpper *float64 `json:"fc_upper,omitempty"`
	FCLower *float64 `json:"fc_lower,omitempty"`
	MeanMin *float64 `json:"mean_min,omitempty"`
}

// TestRequest is the body of every test endpoint. X is observations x genes.
type TestRequest struct {
	Genes       []string         `json:"genes"`
	X           [][]float64      `json:"x"`
	Grouping    []string         `json:"grouping"`
	Test        string           `json:"test"`
	Correction  string           `json:"correction,omitempty"`
	Policy      string           `json:"policy,omitempty"`
	Logged      bool             `json:"logged,omitempty"`
	NoiseModel  string           `json:"noise_model,omitempty"`
	SizeFactors []float64        `json:"size_factors,omitempty"`
	Lazy        bool             `json:"lazy,omitempty"`
	Threshold   ThresholdRequest `json:"threshold"`
	// Group0 and Group1 select one comparison of a pairwise test, Group one
	// group of a versus-rest test.
	Group0 string `json:"group0,omitempty"`
	Group1 string `json:"group1,omitempty"`
	Group  string `json:"group,omitempty"`
}

func (r *TestRequest) matrix() (*mat.Dense, error) {
	if len(r.X) == 0 {
		return nil, errors.InvalidInput("x is empty")
	}
	n, g := len(r.X), len(r.X[0])
	if g == 0 {
		return nil, errors.InvalidInput("x has no genes")
	}
	x := mat.NewDense(n, g, nil)
	for i, row := range r.X {
		if len(row) != g {
			return nil, errors.Wrapf(core.NewShapeError("x row", g, len(row)), "row %d", i)
		}
		x.SetRow(i, row)
	}
	return x, nil
}

func (r *TestRequest) threshold() detest.Threshold {
	return detest.Threshold{
		QvalMax: r.Threshold.QvalMax,
		FCUpper: r.Threshold.FCUpper,
		FCLower: r.Threshold.FCLower,
		MeanMin: r.Threshold.MeanMin,
	}
}

// options layers the request settings over the server defaults.
func (r *TestRequest) options(base []detests.Option) ([]detests.Option, error) {
	opts := append([]detests.Option(nil), base...)
	if r.Correction != "" {
		opts = append(opts, detests.WithCorrection(r.Correction))
	}
	if r.Policy != "" {
		p, err := detest.ParseCorrectionPolicy(r.Policy)
		if err != nil {
			return nil, err
		}
		opts = append(opts, detests.WithPolicy(p))
	}
	if r.NoiseModel != "" {
		opts = append(opts, detests.WithNoiseModel(r.NoiseModel))
	}
	if r.SizeFactors != nil {
		opts = append(opts, detests.WithSizeFactors(r.SizeFactors))
	}
	return append(opts, detests.WithLogged(r.Logged), detests.WithLazy(r.Lazy)), nil
}
