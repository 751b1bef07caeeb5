package ml

import (
	"math/rand"
	"sort"
	"time"
)

// RegressionTree is a CART-style regression tree splitting on variance
// reduction.
type RegressionTree struct {
	MaxDepth        int // maximum depth (root depth = 0). 0 => no limit
	MinSamplesSplit int // minimum samples to attempt a split
	MinSamplesLeaf  int // minimum samples required in each leaf
	MaxFeatures     int // 0 => consider all features at each split
	RandomState     int64

	root        *rtNode
	importances []float64
}

type rtNode struct {
	isLeaf    bool
	feature   int
	threshold float64 // x <= threshold => left
	left      *rtNode
	right     *rtNode

	value float64 // leaf mean
	n     int
}

type TreeOption func(*RegressionTree)

func WithTreeMaxDepth(d int) TreeOption { return func(t *RegressionTree) { t.MaxDepth = d } }
func WithTreeMinSamplesSplit(n int) TreeOption {
	return func(t *RegressionTree) { t.MinSamplesSplit = n }
}
func WithTreeMinSamplesLeaf(n int) TreeOption {
	return func(t *RegressionTree) { t.MinSamplesLeaf = n }
}
func WithTreeMaxFeatures(k int) TreeOption { return func(t *RegressionTree) { t.MaxFeatures = k } }
func WithTreeRandomState(seed int64) TreeOption {
	return func(t *RegressionTree) { t.RandomState = seed }
}

// NewRegressionTree returns a tree with sensible defaults.
func NewRegressionTree(opts ...TreeOption) *RegressionTree {
	t := &RegressionTree{
		MaxDepth:        0,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		MaxFeatures:     0,
		RandomState:     time.Now().UnixNano(),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *RegressionTree) Fit(X [][]float64, y []float64) error {
	p, err := validateFit(X, y)
	if err != nil {
		return err
	}

	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}

	t.importances = make([]float64, p)
	rnd := rand.New(rand.NewSource(t.RandomState))
	t.root = t.buildNode(X, y, idx, 0, p, rnd)
	return nil
}

func (t *RegressionTree) Predict(x []float64) float64 {
	node := t.root
	if node == nil {
		return 0
	}
	for !node.isLeaf {
		if x[node.feature] <= node.threshold {
			node = node.left
		} else {
			node = node.right
		}
	}
	return node.value
}

// FeatureImportance reports the total variance reduction contributed by each
// feature, normalized to sum to one.
func (t *RegressionTree) FeatureImportance() []float64 {
	if t.importances == nil {
		return nil
	}
	total := 0.0
	for _, v := range t.importances {
		total += v
	}
	out := make([]float64, len(t.importances))
	if total == 0 {
		return out
	}
	for i, v := range t.importances {
		out[i] = v / total
	}
	return out
}

type rtSplit struct {
	gain      float64
	feature   int
	threshold float64
	leftIdx   []int
	rightIdx  []int
}

func (t *RegressionTree) buildNode(X [][]float64, y []float64, idx []int, depth, p int, rnd *rand.Rand) *rtNode {
	node := &rtNode{n: len(idx), value: meanAt(y, idx)}

	if len(idx) < t.MinSamplesSplit || (t.MaxDepth > 0 && depth >= t.MaxDepth) {
		node.isLeaf = true
		return node
	}

	parentImp := sumSquaredError(y, idx, node.value)
	if parentImp == 0 {
		node.isLeaf = true
		return node
	}

	featIndices := make([]int, p)
	for j := 0; j < p; j++ {
		featIndices[j] = j
	}
	if t.MaxFeatures > 0 && t.MaxFeatures < p {
		rnd.Shuffle(p, func(a, b int) { featIndices[a], featIndices[b] = featIndices[b], featIndices[a] })
		featIndices = featIndices[:t.MaxFeatures]
	}

	best := rtSplit{feature: -1}
	for _, f := range featIndices {
		if s := t.bestSplitForFeature(X, y, idx, f, parentImp); s.gain > best.gain {
			best = s
		}
	}

	if best.feature == -1 || best.gain <= 0 {
		node.isLeaf = true
		return node
	}

	t.importances[best.feature] += best.gain

	node.feature = best.feature
	node.threshold = best.threshold
	node.left = t.buildNode(X, y, best.leftIdx, depth+1, p, rnd)
	node.right = t.buildNode(X, y, best.rightIdx, depth+1, p, rnd)
	return node
}

func (t *RegressionTree) bestSplitForFeature(X [][]float64, y []float64, idx []int, f int, parentImp float64) rtSplit {
	result := rtSplit{feature: -1}

	order := append([]int(nil), idx...)
	sort.Slice(order, func(a, b int) bool { return X[order[a]][f] < X[order[b]][f] })

	// Prefix sums over the sorted order allow O(1) impurity per threshold.
	n := len(order)
	sum := 0.0
	sumSq := 0.0
	prefix := make([]float64, n+1)
	prefixSq := make([]float64, n+1)
	for i, ii := range order {
		sum += y[ii]
		sumSq += y[ii] * y[ii]
		prefix[i+1] = sum
		prefixSq[i+1] = sumSq
	}

	for s := 1; s < n; s++ {
		if X[order[s]][f] == X[order[s-1]][f] {
			continue
		}
		if s < t.MinSamplesLeaf || n-s < t.MinSamplesLeaf {
			continue
		}

		leftN := float64(s)
		rightN := float64(n - s)
		leftImp := prefixSq[s] - prefix[s]*prefix[s]/leftN
		rightImp := (prefixSq[n] - prefixSq[s]) - (prefix[n]-prefix[s])*(prefix[n]-prefix[s])/rightN

		gain := parentImp - leftImp - rightImp
		if gain > result.gain {
			result = rtSplit{
				gain:      gain,
				feature:   f,
				threshold: (X[order[s-1]][f] + X[order[s]][f]) / 2.0,
				leftIdx:   append([]int(nil), order[:s]...),
				rightIdx:  append([]int(nil), order[s:]...),
			}
		}
	}
	return result
}

func meanAt(y []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	s := 0.0
	for _, ii := range idx {
		s += y[ii]
	}
	return s / float64(len(idx))
}

func sumSquaredError(y []float64, idx []int, m float64) float64 {
	s := 0.0
	for _, ii := range idx {
		d := y[ii] - m
		s += d * d
	}
	return s
}
