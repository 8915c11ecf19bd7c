package regression

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// TrainTestSplit shuffles row indices 0..n-1 with seed and holds out
// ceil(testFraction*n) of them, keeping at least one row on each side when
// n >= 2.
func TrainTestSplit(n int, testFraction float64, seed int64) (train, test []int) {
	if n <= 0 {
		return nil, nil
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	if n == 1 {
		return perm, nil
	}

	nTest := int(math.Ceil(testFraction * float64(n)))
	if nTest < 1 {
		nTest = 1
	}
	if nTest > n-1 {
		nTest = n - 1
	}
	return perm[nTest:], perm[:nTest]
}

// Fold is one train/validation partition of a k-fold split.
type Fold struct {
	Train []int
	Test  []int
}

// KFold splits 0..n-1 into k contiguous, unshuffled folds. The first n%k
// folds get one extra row.
func KFold(n, k int) ([]Fold, error) {
	if k < 2 || k > n {
		return nil, fmt.Errorf("regression: cannot make %d folds from %d rows", k, n)
	}

	folds := make([]Fold, 0, k)
	start := 0
	for f := 0; f < k; f++ {
		size := n / k
		if f < n%k {
			size++
		}
		end := start + size

		fold := Fold{Test: make([]int, 0, size), Train: make([]int, 0, n-size)}
		for i := 0; i < n; i++ {
			if i >= start && i < end {
				fold.Test = append(fold.Test, i)
			} else {
				fold.Train = append(fold.Train, i)
			}
		}
		folds = append(folds, fold)
		start = end
	}
	return folds, nil
}

// CrossValScore fits a fresh estimator per fold and returns each fold's R².
func CrossValScore(newModel Factory, X mat.Matrix, y []float64, k int) ([]float64, error) {
	n, _, err := checkShape(X, y)
	if err != nil {
		return nil, err
	}
	folds, err := KFold(n, k)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, 0, len(folds))
	for i, fold := range folds {
		m := newModel()
		if err := m.Fit(SelectRows(X, fold.Train), SelectValues(y, fold.Train)); err != nil {
			return nil, fmt.Errorf("regression: fold %d: %w", i, err)
		}
		pred := PredictAll(m, SelectRows(X, fold.Test))
		scores = append(scores, R2Score(SelectValues(y, fold.Test), pred))
	}
	return scores, nil
}

// SelectRows copies the given rows of X into a new matrix.
func SelectRows(X mat.Matrix, idx []int) *mat.Dense {
	_, c := X.Dims()
	if len(idx) == 0 || c == 0 {
		return &mat.Dense{}
	}
	out := mat.NewDense(len(idx), c, nil)
	for i, src := range idx {
		for j := 0; j < c; j++ {
			out.Set(i, j, X.At(src, j))
		}
	}
	return out
}

// SelectValues copies the given entries of y.
func SelectValues(y []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, src := range idx {
		out[i] = y[src]
	}
	return out
}
