package regression

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// LinearRegression fits y = intercept + coef·x by least squares, with an
// optional L2 penalty on the coefficients (ridge). The intercept is never
// penalized: X and y are centered before solving.
type LinearRegression struct {
	alpha     float64
	coef      []float64
	intercept float64
	fitted    bool
}

// NewLinearRegression returns an ordinary least squares estimator.
func NewLinearRegression() *LinearRegression {
	return &LinearRegression{}
}

// NewRidge returns a ridge estimator with penalty alpha.
func NewRidge(alpha float64) *LinearRegression {
	return &LinearRegression{alpha: alpha}
}

func (m *LinearRegression) Fit(X mat.Matrix, y []float64) error {
	n, p, err := checkShape(X, y)
	if err != nil {
		return err
	}

	xMean := make([]float64, p)
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		mat.Col(col, j, X)
		xMean[j] = stat.Mean(col, nil)
	}
	yMean := stat.Mean(y, nil)

	xc := mat.NewDense(n, p, nil)
	xc.Apply(func(i, j int, v float64) float64 { return v - xMean[j] }, X)
	yc := make([]float64, n)
	for i, v := range y {
		yc[i] = v - yMean
	}

	var coef []float64
	if m.alpha > 0 {
		coef, err = solveRidge(xc, yc, m.alpha)
	} else {
		coef, err = solveLeastSquares(xc, yc)
	}
	if err != nil {
		return err
	}

	m.coef = coef
	m.intercept = yMean - floats.Dot(xMean, coef)
	m.fitted = true
	return nil
}

func (m *LinearRegression) Predict(x []float64) float64 {
	if !m.fitted {
		return math.NaN()
	}
	return m.intercept + floats.Dot(m.coef, x)
}

// Coefficients returns a copy of the fitted coefficients.
func (m *LinearRegression) Coefficients() []float64 {
	return append([]float64(nil), m.coef...)
}

func (m *LinearRegression) Intercept() float64 { return m.intercept }

// solveLeastSquares returns the minimum-norm least squares solution through
// the thin SVD, dropping singular values below the numpy-style cutoff. This
// keeps constant (all-zero after centering) columns at a coefficient of 0.
func solveLeastSquares(xc *mat.Dense, yc []float64) ([]float64, error) {
	n, p := xc.Dims()

	var svd mat.SVD
	if ok := svd.Factorize(xc, mat.SVDThin); !ok {
		return nil, fmt.Errorf("%w: svd did not converge", ErrSingularSystem)
	}
	values := svd.Values(nil)

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	coef := make([]float64, p)
	if len(values) == 0 {
		return coef, nil
	}
	cutoff := float64(max(n, p)) * values[0] * 2.220446049250313e-16

	ucol := make([]float64, n)
	vcol := make([]float64, p)
	for k, sv := range values {
		if sv <= cutoff || sv == 0 {
			continue
		}
		mat.Col(ucol, k, &u)
		mat.Col(vcol, k, &v)
		floats.AddScaled(coef, floats.Dot(ucol, yc)/sv, vcol)
	}
	return coef, nil
}

// solveRidge solves (XᵀX + αI)·coef = Xᵀy by Cholesky factorization.
func solveRidge(xc *mat.Dense, yc []float64, alpha float64) ([]float64, error) {
	n, p := xc.Dims()

	var gram mat.SymDense
	gram.SymOuterK(1, xc.T())
	for j := 0; j < p; j++ {
		gram.SetSym(j, j, gram.At(j, j)+alpha)
	}

	var rhs mat.VecDense
	rhs.MulVec(xc.T(), mat.NewVecDense(n, yc))

	var chol mat.Cholesky
	if ok := chol.Factorize(&gram); !ok {
		return nil, fmt.Errorf("%w: ridge gram matrix is not positive definite", ErrSingularSystem)
	}
	var sol mat.VecDense
	if err := chol.SolveVecTo(&sol, &rhs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingularSystem, err)
	}

	coef := make([]float64, p)
	for j := range coef {
		coef[j] = sol.AtVec(j)
	}
	return coef, nil
}
