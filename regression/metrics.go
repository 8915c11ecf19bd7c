package regression

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// R2Score is the coefficient of determination of yPred against yTrue.
//
// When yTrue has no variance (including a single sample) the ratio is
// undefined; the score is then 1 for an exact fit and 0 otherwise, so it is
// always finite.
func R2Score(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 || len(yTrue) != len(yPred) {
		return 0
	}

	_, variance := stat.PopMeanVariance(yTrue, nil)
	if len(yTrue) < 2 || variance == 0 {
		if sumSquaredError(yTrue, yPred) == 0 {
			return 1
		}
		return 0
	}
	return stat.RSquaredFrom(yPred, yTrue, nil)
}

// MeanAbsoluteError averages |yTrue - yPred|.
func MeanAbsoluteError(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	var total float64
	for i := range yTrue {
		total += math.Abs(yTrue[i] - yPred[i])
	}
	return total / float64(len(yTrue))
}

// RootMeanSquaredError is sqrt(mean((yTrue - yPred)²)).
func RootMeanSquaredError(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	return math.Sqrt(sumSquaredError(yTrue, yPred) / float64(len(yTrue)))
}

func sumSquaredError(yTrue, yPred []float64) float64 {
	var total float64
	for i := range yTrue {
		d := yTrue[i] - yPred[i]
		total += d * d
	}
	return total
}
