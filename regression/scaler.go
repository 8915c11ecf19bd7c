package regression

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// StandardScaler shifts each column to zero mean and unit population
// variance. Columns with no variance get a scale of 1 so they transform to 0
// instead of dividing by zero.
type StandardScaler struct {
	mean  []float64
	scale []float64
}

// FitStandardScaler learns per-column mean and standard deviation from X.
func FitStandardScaler(X mat.Matrix) (*StandardScaler, error) {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return nil, ErrEmptyInput
	}

	s := &StandardScaler{
		mean:  make([]float64, c),
		scale: make([]float64, c),
	}
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		mean, std := stat.PopMeanStdDev(col, nil)
		s.mean[j] = mean
		if std < 1e-8*math.Max(1, math.Abs(mean)) {
			std = 1
		}
		s.scale[j] = std
	}
	return s, nil
}

// Mean returns a copy of the fitted column means.
func (s *StandardScaler) Mean() []float64 {
	return append([]float64(nil), s.mean...)
}

// Scale returns a copy of the fitted column standard deviations.
func (s *StandardScaler) Scale() []float64 {
	return append([]float64(nil), s.scale...)
}

// Transform returns a standardized copy of X.
func (s *StandardScaler) Transform(X mat.Matrix) *mat.Dense {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return &mat.Dense{}
	}
	out := mat.NewDense(r, c, nil)
	out.Apply(func(i, j int, v float64) float64 {
		return (v - s.mean[j]) / s.scale[j]
	}, X)
	return out
}

// TransformRow standardizes a single feature row.
func (s *StandardScaler) TransformRow(x []float64) []float64 {
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (v - s.mean[j]) / s.scale[j]
	}
	return out
}
