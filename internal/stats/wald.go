package stats

import (
	"math"

	"godex/domain/core"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// StandardError converts a variance to a standard deviation, flooring the
// variance at the smallest positive float first.
func StandardError(variance float64) float64 {
	if math.IsNaN(variance) {
		return math.NaN()
	}
	return math.Sqrt(math.Max(variance, math.SmallestNonzeroFloat64))
}

// ZPValue is the two-sided standard normal p-value of z.
func ZPValue(z float64) float64 {
	if math.IsNaN(z) {
		return math.NaN()
	}
	return math.Min(1, 2*distuv.UnitNormal.Survival(math.Abs(z)))
}

// WaldTest tests theta against theta0 per gene, given standard errors.
func WaldTest(theta, sd []float64, theta0 float64) ([]float64, error) {
	if len(theta) != len(sd) {
		return nil, core.NewShapeError("standard errors", len(theta), len(sd))
	}
	pvals := make([]float64, len(theta))
	for i := range theta {
		pvals[i] = ZPValue((theta[i] - theta0) / sd[i])
	}
	return pvals, nil
}

// WaldChiSquare tests k coefficients jointly per gene. theta is k x G and
// cov holds one k x k covariance block per gene. Genes with a singular block
// get NaN.
func WaldChiSquare(theta mat.Matrix, cov []mat.Symmetric) ([]float64, error) {
	k, g := theta.Dims()
	if len(cov) != g {
		return nil, core.NewShapeError("covariance blocks", g, len(cov))
	}
	chi := distuv.ChiSquared{K: float64(k)}
	pvals := make([]float64, g)
	for j := 0; j < g; j++ {
		if n := cov[j].SymmetricDim(); n != k {
			return nil, core.NewShapeError("covariance block dimension", k, n)
		}
		pvals[j] = ChiSquarePValue(chi, quadraticForm(mat.Col(nil, j, theta), cov[j]))
	}
	return pvals, nil
}

// quadraticForm returns t' S^-1 t, or NaN when S cannot be inverted.
func quadraticForm(t []float64, s mat.Symmetric) float64 {
	var inv mat.Dense
	if err := inv.Inverse(s); err != nil {
		return math.NaN()
	}
	v := mat.NewVecDense(len(t), t)
	return mat.Inner(v, &inv, v)
}

// TwoCoefZTest tests whether two independently estimated coefficients are
// equal using a normal approximation.
func TwoCoefZTest(theta0, theta1, sd0, sd1 []float64) ([]float64, error) {
	if len(theta0) != len(theta1) || len(sd0) != len(theta0) || len(sd1) != len(theta0) {
		return nil, core.NewShapeError("coefficient vectors", len(theta0), len(theta1))
	}
	pvals := make([]float64, len(theta0))
	for i := range theta0 {
		se := math.Sqrt(math.Max(sd0[i]*sd0[i]+sd1[i]*sd1[i], math.SmallestNonzeroFloat64))
		pvals[i] = ZPValue((theta0[i] - theta1[i]) / se)
	}
	return pvals, nil
}
