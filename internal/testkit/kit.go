// Package testkit provides fitting doubles and synthetic expression data for
// tests.
package testkit

import (
	"context"
	"fmt"
	"math"
	"sync"

	"godex/domain/detest"

	"gonum.org/v1/gonum/mat"
)

// LinearFitter fits location models by ordinary least squares on log1p
// transformed data ("nb", "poisson") or raw data ("norm"), with a Gaussian
// likelihood. It stands in for the GLM fitting collaborator.
type LinearFitter struct {
	mu       sync.Mutex
	requests []detest.FitRequest
}

var _ detest.Fitter = (*LinearFitter)(nil)

// NewLinearFitter creates a fitter.
func NewLinearFitter() *LinearFitter {
	return &LinearFitter{}
}

// Requests returns the requests seen so far.
func (f *LinearFitter) Requests() []detest.FitRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]detest.FitRequest(nil), f.requests...)
}

// Fit implements detest.Fitter.
func (f *LinearFitter) Fit(ctx context.Context, req detest.FitRequest) (detest.Estimate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if req.ConstraintsLoc != nil || req.ConstraintsScale != nil {
		return nil, fmt.Errorf("linear fitter: constraints not supported")
	}
	n, g := req.X.Dims()
	d := req.DesignLoc
	_, p := d.Dims()

	y := mat.NewDense(n, g, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < g; j++ {
			v := req.X.At(i, j)
			if req.NoiseModel != "norm" {
				v = math.Log1p(v)
			}
			y.Set(i, j, v)
		}
	}

	var gram, gramInv mat.Dense
	gram.Mul(d.T(), d)
	if err := gramInv.Inverse(&gram); err != nil {
		return nil, fmt.Errorf("linear fitter: singular design: %w", err)
	}
	var dty, beta mat.Dense
	dty.Mul(d.T(), y)
	beta.Mul(&gramInv, &dty)

	var fitted, resid mat.Dense
	fitted.Mul(d, &beta)
	resid.Sub(y, &fitted)

	scale := req.DesignScale
	if scale == nil {
		scale = mat.NewDense(n, 1, ones(n))
	}
	_, q := scale.Dims()
	b := mat.NewDense(q, g, nil)

	ll := make([]float64, g)
	fisher := make([]*mat.SymDense, g)
	for j := 0; j < g; j++ {
		rss := 0.0
		for i := 0; i < n; i++ {
			r := resid.At(i, j)
			rss += r * r
		}
		sigma2 := math.Max(rss/float64(n), 1e-12)
		ll[j] = -float64(n) / 2 * (math.Log(2*math.Pi*sigma2) + 1)
		b.Set(0, j, 0.5*math.Log(sigma2))

		fi := mat.NewSymDense(p+q, nil)
		for a := 0; a < p; a++ {
			for c := a; c < p; c++ {
				fi.SetSym(a, c, sigma2*gramInv.At(a, c))
			}
		}
		for a := 0; a < q; a++ {
			fi.SetSym(p+a, p+a, 1/(2*float64(n)))
		}
		fisher[j] = fi
	}

	return &detest.StaticEstimate{
		Noise:      req.NoiseModel,
		Genes:      req.Features,
		Data:       mat.DenseCopyOf(req.X),
		Loc:        mat.DenseCopyOf(d),
		Scale:      mat.DenseCopyOf(scale),
		LocNames:   req.DesignLocInfo.ColumnNames,
		LL:         ll,
		Grad:       make([]float64, g),
		A:          &beta,
		B:          b,
		Fisher:     fisher,
		Errors:     make([]int, g),
		Iterations: fill(g, 1),
	}, nil
}

func ones(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = 1
	}
	return v
}

func fill(n, v int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = v
	}
	return out
}
