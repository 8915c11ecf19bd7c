package regression

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ForestConfig controls random forest fitting.
type ForestConfig struct {
	NumTrees        int
	Seed            int64
	MinSamplesSplit int
	// MaxDepth of 0 grows trees until leaves are pure.
	MaxDepth int
}

// DefaultForestConfig mirrors the usual regression forest defaults:
// 100 fully grown trees on bootstrap samples, all features per split.
func DefaultForestConfig() ForestConfig {
	return ForestConfig{
		NumTrees:        100,
		Seed:            42,
		MinSamplesSplit: 2,
	}
}

// RandomForest averages CART regression trees grown on bootstrap samples.
type RandomForest struct {
	cfg         ForestConfig
	trees       []*regressionTree
	importances []float64
	fitted      bool
}

// NewRandomForest returns an unfitted forest.
func NewRandomForest(cfg ForestConfig) *RandomForest {
	if cfg.NumTrees < 1 {
		cfg.NumTrees = 1
	}
	if cfg.MinSamplesSplit < 2 {
		cfg.MinSamplesSplit = 2
	}
	return &RandomForest{cfg: cfg}
}

func (f *RandomForest) Fit(X mat.Matrix, y []float64) error {
	n, p, err := checkShape(X, y)
	if err != nil {
		return err
	}

	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = mat.Row(nil, i, X)
	}

	rng := rand.New(rand.NewSource(f.cfg.Seed))
	f.trees = make([]*regressionTree, 0, f.cfg.NumTrees)
	f.importances = make([]float64, p)
	contributing := 0

	for t := 0; t < f.cfg.NumTrees; t++ {
		sample := make([]int, n)
		for i := range sample {
			sample[i] = rng.Intn(n)
		}

		tree := growTree(rows, y, sample, p, f.cfg)
		f.trees = append(f.trees, tree)

		if total := floats.Sum(tree.importance); total > 0 {
			floats.AddScaled(f.importances, 1/total, tree.importance)
			contributing++
		}
	}

	if contributing > 0 {
		floats.Scale(1/float64(contributing), f.importances)
	}
	f.fitted = true
	return nil
}

func (f *RandomForest) Predict(x []float64) float64 {
	if !f.fitted || len(f.trees) == 0 {
		return math.NaN()
	}
	var total float64
	for _, t := range f.trees {
		total += t.predict(x)
	}
	return total / float64(len(f.trees))
}

// FeatureImportances returns the mean decrease in impurity per feature,
// averaged over trees that made at least one split. All zeros when no tree split.
func (f *RandomForest) FeatureImportances() []float64 {
	return append([]float64(nil), f.importances...)
}

// NumTrees returns the number of fitted trees.
func (f *RandomForest) NumTrees() int { return len(f.trees) }

type treeNode struct {
	leaf      bool
	value     float64
	feature   int
	threshold float64
	left      int
	right     int
}

type regressionTree struct {
	nodes      []treeNode
	importance []float64
}

func (t *regressionTree) predict(x []float64) float64 {
	i := 0
	for {
		node := t.nodes[i]
		if node.leaf {
			return node.value
		}
		if x[node.feature] <= node.threshold {
			i = node.left
		} else {
			i = node.right
		}
	}
}

type treeBuilder struct {
	rows [][]float64
	y    []float64
	cfg  ForestConfig
	tree *regressionTree
}

func growTree(rows [][]float64, y []float64, sample []int, numFeatures int, cfg ForestConfig) *regressionTree {
	b := &treeBuilder{
		rows: rows,
		y:    y,
		cfg:  cfg,
		tree: &regressionTree{importance: make([]float64, numFeatures)},
	}
	b.build(sample, 0)
	return b.tree
}

// build appends the subtree for idx and returns its node index.
func (b *treeBuilder) build(idx []int, depth int) int {
	mean, sse := b.stats(idx)

	at := len(b.tree.nodes)
	b.tree.nodes = append(b.tree.nodes, treeNode{leaf: true, value: mean})

	if len(idx) < b.cfg.MinSamplesSplit || sse <= 1e-12*math.Max(1, mean*mean) {
		return at
	}
	if b.cfg.MaxDepth > 0 && depth >= b.cfg.MaxDepth {
		return at
	}

	feature, threshold, gain, ok := b.bestSplit(idx, sse)
	if !ok {
		return at
	}

	var left, right []int
	for _, i := range idx {
		if b.rows[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	if len(left) == 0 || len(right) == 0 {
		return at
	}

	b.tree.importance[feature] += gain
	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.tree.nodes[at] = treeNode{
		value:     mean,
		feature:   feature,
		threshold: threshold,
		left:      l,
		right:     r,
	}
	return at
}

func (b *treeBuilder) stats(idx []int) (mean, sse float64) {
	var sum float64
	for _, i := range idx {
		sum += b.y[i]
	}
	mean = sum / float64(len(idx))
	for _, i := range idx {
		d := b.y[i] - mean
		sse += d * d
	}
	return mean, sse
}

// bestSplit scans every feature for the threshold with the largest drop in
// squared error. Thresholds sit halfway between consecutive distinct values.
func (b *treeBuilder) bestSplit(idx []int, parentSSE float64) (feature int, threshold, gain float64, ok bool) {
	n := len(idx)
	sorted := make([]int, n)
	numFeatures := len(b.rows[idx[0]])

	var total, totalSq float64
	for _, i := range idx {
		total += b.y[i]
		totalSq += b.y[i] * b.y[i]
	}
	minGain := 1e-9 * parentSSE

	for j := 0; j < numFeatures; j++ {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, c int) bool {
			return b.rows[sorted[a]][j] < b.rows[sorted[c]][j]
		})

		var leftSum, leftSq float64
		for k := 0; k < n-1; k++ {
			yi := b.y[sorted[k]]
			leftSum += yi
			leftSq += yi * yi

			cur := b.rows[sorted[k]][j]
			next := b.rows[sorted[k+1]][j]
			if next <= cur {
				continue
			}

			nl := float64(k + 1)
			nr := float64(n - k - 1)
			leftSSE := leftSq - leftSum*leftSum/nl
			rightSum := total - leftSum
			rightSSE := (totalSq - leftSq) - rightSum*rightSum/nr

			g := parentSSE - leftSSE - rightSSE
			if g > gain+minGain {
				mid := cur + (next-cur)/2
				if mid >= next {
					mid = cur
				}
				feature, threshold, gain, ok = j, mid, g, true
			}
		}
	}
	return feature, threshold, gain, ok
}
