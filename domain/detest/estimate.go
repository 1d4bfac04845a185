package detest

import (
	"context"
	"fmt"
	"math"
	"strings"

	"godex/domain/core"

	"gonum.org/v1/gonum/mat"
)

// Estimate is the read-only view of a fitted GLM produced by the fitting
// collaborator. Location parameters come first in the Fisher information,
// followed by the scale parameters.
type Estimate interface {
	NoiseModel() string
	Features() GeneSet
	X() mat.Matrix
	DesignLoc() mat.Matrix
	DesignScale() mat.Matrix
	DesignLocNames() []string
	// ConstraintsLoc and ConstraintsScale return nil for unconstrained designs.
	ConstraintsLoc() mat.Matrix
	ConstraintsScale() mat.Matrix
	LogLikelihood() []float64
	Gradients() []float64
	// ALoc holds the unconstrained location coefficients (coefficients x genes).
	ALoc() mat.Matrix
	BScale() mat.Matrix
	FisherInv(gene int) mat.Symmetric
	// ErrorCodes and NIter are optional convergence diagnostics.
	ErrorCodes() []int
	NIter() []int
}

// FitRequest is the input handed to the fitting collaborator.
type FitRequest struct {
	NoiseModel       string
	X                mat.Matrix
	Features         GeneSet
	DesignLoc        mat.Matrix
	DesignLocInfo    DesignInfo
	DesignScale      mat.Matrix
	DesignScaleInfo  DesignInfo
	ConstraintsLoc   mat.Matrix
	ConstraintsScale mat.Matrix
	SizeFactors      []float64
	Init             string
	TrainingStrategy string
}

// Fitter estimates GLM parameters. Fitting can be long running, hence ctx.
type Fitter interface {
	Fit(ctx context.Context, req FitRequest) (Estimate, error)
}

// FitterFunc adapts a function to the Fitter interface.
type FitterFunc func(ctx context.Context, req FitRequest) (Estimate, error)

func (f FitterFunc) Fit(ctx context.Context, req FitRequest) (Estimate, error) { return f(ctx, req) }

// InverseLinkLoc returns the inverse location link of a noise model.
func InverseLinkLoc(noiseModel string) (func(float64) float64, error) {
	switch strings.ToLower(noiseModel) {
	case "nb", "poisson", "":
		return math.Exp, nil
	case "norm":
		return func(eta float64) float64 { return eta }, nil
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownNoiseModel, noiseModel)
	}
}

// ValidNoiseModel reports whether the noise model identifier is recognized.
func ValidNoiseModel(noiseModel string) error {
	_, err := InverseLinkLoc(noiseModel)
	return err
}

// DegreesOfFreedom counts the unconstrained coefficients of location and scale model.
func DegreesOfFreedom(e Estimate) int {
	return freeParams(e.DesignLoc(), e.ConstraintsLoc()) + freeParams(e.DesignScale(), e.ConstraintsScale())
}

func freeParams(design, constraints mat.Matrix) int {
	if constraints != nil {
		_, c := constraints.Dims()
		return c
	}
	if design == nil {
		return 0
	}
	_, c := design.Dims()
	return c
}

// ParLinkLoc maps the unconstrained location coefficients onto the design
// columns (design columns x genes).
func ParLinkLoc(e Estimate) *mat.Dense {
	a := e.ALoc()
	var out mat.Dense
	if c := e.ConstraintsLoc(); c != nil {
		out.Mul(c, a)
		return &out
	}
	out.CloneFrom(a)
	return &out
}

// StaticEstimate is an in-memory Estimate, used for externally exported fits
// and as a test double.
type StaticEstimate struct {
	Noise            string
	Genes            GeneSet
	Data             *mat.Dense
	Loc              *mat.Dense
	Scale            *mat.Dense
	LocNames         []string
	LocConstraints   *mat.Dense
	ScaleConstraints *mat.Dense
	LL               []float64
	Grad             []float64
	A                *mat.Dense
	B                *mat.Dense
	Fisher           []*mat.SymDense
	Errors           []int
	Iterations       []int
}

var _ Estimate = (*StaticEstimate)(nil)

func (s *StaticEstimate) NoiseModel() string {
	if s.Noise == "" {
		return "nb"
	}
	return s.Noise
}

func (s *StaticEstimate) Features() GeneSet { return s.Genes }

func (s *StaticEstimate) X() mat.Matrix { return s.Data }

func (s *StaticEstimate) DesignLoc() mat.Matrix { return s.Loc }

func (s *StaticEstimate) DesignScale() mat.Matrix { return nilIfEmpty(s.Scale) }

func (s *StaticEstimate) DesignLocNames() []string { return s.LocNames }

func (s *StaticEstimate) LogLikelihood() []float64 { return s.LL }

func (s *StaticEstimate) Gradients() []float64 { return s.Grad }

func (s *StaticEstimate) ALoc() mat.Matrix { return s.A }

func (s *StaticEstimate) BScale() mat.Matrix { return nilIfEmpty(s.B) }

func (s *StaticEstimate) ErrorCodes() []int { return s.Errors }

func (s *StaticEstimate) NIter() []int { return s.Iterations }

func (s *StaticEstimate) ConstraintsLoc() mat.Matrix { return nilIfEmpty(s.LocConstraints) }

func (s *StaticEstimate) ConstraintsScale() mat.Matrix { return nilIfEmpty(s.ScaleConstraints) }

// FisherInv returns nil for genes without a stored block.
func (s *StaticEstimate) FisherInv(gene int) mat.Symmetric {
	if gene < 0 || gene >= len(s.Fisher) || s.Fisher[gene] == nil {
		return nil
	}
	return s.Fisher[gene]
}

// nilIfEmpty keeps typed nil pointers from turning into non-nil interfaces.
func nilIfEmpty(m *mat.Dense) mat.Matrix {
	if m == nil {
		return nil
	}
	return m
}

// ValidateEstimate checks the shape contract between the parts of an estimate.
func ValidateEstimate(e Estimate) error {
	if e == nil {
		return core.NewConfigError("estimate", "is nil")
	}
	genes := len(e.Features())
	n, g := e.X().Dims()
	if g != genes {
		return core.NewShapeError("observation columns", genes, g)
	}
	if r, _ := e.DesignLoc().Dims(); r != n {
		return core.NewShapeError("location design rows", n, r)
	}
	if ll := e.LogLikelihood(); ll != nil && len(ll) != genes {
		return core.NewShapeError("log-likelihood", genes, len(ll))
	}
	_, ag := e.ALoc().Dims()
	if ag != genes {
		return core.NewShapeError("location coefficient columns", genes, ag)
	}
	if names := e.DesignLocNames(); names != nil {
		if _, c := e.DesignLoc().Dims(); len(names) != c {
			return core.NewShapeError("location design names", c, len(names))
		}
	}
	return nil
}

// ValidateFisher checks that every gene has an inverse Fisher block covering
// all location coefficients. Tests reading standard errors require it.
func ValidateFisher(e Estimate) error {
	k, _ := e.ALoc().Dims()
	for g := range e.Features() {
		fi := e.FisherInv(g)
		if fi == nil {
			return fmt.Errorf("%w: gene %d has no inverse Fisher block", core.ErrShape, g)
		}
		if d := fi.SymmetricDim(); d < k {
			return fmt.Errorf("inverse Fisher of gene %d: %w", g, core.NewShapeError("block dimension", k, d))
		}
	}
	return nil
}
