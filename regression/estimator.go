// Package regression holds the numeric pieces of the valuation engine:
// feature standardization, least-squares and ridge regression, a random
// forest regressor, error metrics, and train/test and k-fold splitting.
//
// Every estimator is fitted once and is read-only afterwards. Concurrent
// Predict calls on a fitted estimator are safe.
package regression

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrEmptyInput     = errors.New("regression: empty input")
	ErrShapeMismatch  = errors.New("regression: rows and targets differ in length")
	ErrNotFitted      = errors.New("regression: estimator is not fitted")
	ErrSingularSystem = errors.New("regression: system could not be solved")
)

// Regressor is a model that maps a feature row to a continuous target.
type Regressor interface {
	Fit(X mat.Matrix, y []float64) error
	Predict(x []float64) float64
}

// CoefficientModel is implemented by linear models.
type CoefficientModel interface {
	Coefficients() []float64
	Intercept() float64
}

// ImportanceModel is implemented by models with native feature importances.
type ImportanceModel interface {
	FeatureImportances() []float64
}

// Factory builds a fresh, unfitted estimator. Cross-validation needs one per fold.
type Factory func() Regressor

// PredictAll applies m to every row of X.
func PredictAll(m Regressor, X mat.Matrix) []float64 {
	r, c := X.Dims()
	out := make([]float64, r)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		out[i] = m.Predict(row)
	}
	return out
}

func checkShape(X mat.Matrix, y []float64) (int, int, error) {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return 0, 0, ErrEmptyInput
	}
	if r != len(y) {
		return 0, 0, ErrShapeMismatch
	}
	return r, c, nil
}
