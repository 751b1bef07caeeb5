package ml

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// RandomForestRegressor averages bootstrap-trained regression trees. Trees
// are fit in parallel, each with its own seeded rng to avoid contention.
type RandomForestRegressor struct {
	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	MaxFeatures     int // 0 => sqrt(p), rounded up
	Bootstrap       bool
	RandomState     int64

	Trees []*RegressionTree
}

type ForestOption func(*RandomForestRegressor)

func WithForestNEstimators(n int) ForestOption {
	return func(rf *RandomForestRegressor) { rf.NEstimators = n }
}
func WithForestMaxDepth(d int) ForestOption {
	return func(rf *RandomForestRegressor) { rf.MaxDepth = d }
}
func WithForestBootstrap(b bool) ForestOption {
	return func(rf *RandomForestRegressor) { rf.Bootstrap = b }
}
func WithForestRandomState(seed int64) ForestOption {
	return func(rf *RandomForestRegressor) { rf.RandomState = seed }
}

func NewRandomForestRegressor(opts ...ForestOption) *RandomForestRegressor {
	rf := &RandomForestRegressor{
		NEstimators:     100,
		MaxDepth:        0,
		MinSamplesSplit: 2,
		MaxFeatures:     0,
		Bootstrap:       true,
		RandomState:     time.Now().UnixNano(),
	}
	for _, o := range opts {
		o(rf)
	}
	return rf
}

func (rf *RandomForestRegressor) Fit(X [][]float64, y []float64) error {
	p, err := validateFit(X, y)
	if err != nil {
		return err
	}

	maxFeatures := rf.MaxFeatures
	if maxFeatures == 0 {
		maxFeatures = int(math.Ceil(math.Sqrt(float64(p))))
	}

	n := len(X)
	rf.Trees = make([]*RegressionTree, rf.NEstimators)

	var wg sync.WaitGroup
	errCh := make(chan error, rf.NEstimators)

	for i := 0; i < rf.NEstimators; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			treeRand := rand.New(rand.NewSource(rf.RandomState + int64(idx)))

			// Bootstrap sample as materialized rows so each tree sees an
			// independent dataset.
			Xs := make([][]float64, n)
			ys := make([]float64, n)
			for j := 0; j < n; j++ {
				src := j
				if rf.Bootstrap {
					src = treeRand.Intn(n)
				}
				Xs[j] = X[src]
				ys[j] = y[src]
			}

			tree := NewRegressionTree(
				WithTreeMaxDepth(rf.MaxDepth),
				WithTreeMinSamplesSplit(rf.MinSamplesSplit),
				WithTreeMaxFeatures(maxFeatures),
				WithTreeRandomState(rf.RandomState+int64(idx)),
			)
			if err := tree.Fit(Xs, ys); err != nil {
				errCh <- err
				return
			}
			rf.Trees[idx] = tree
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			rf.Trees = nil
			return err
		}
	}
	return nil
}

func (rf *RandomForestRegressor) Predict(x []float64) float64 {
	if len(rf.Trees) == 0 {
		return 0
	}
	s := 0.0
	for _, tree := range rf.Trees {
		s += tree.Predict(x)
	}
	return s / float64(len(rf.Trees))
}

// FeatureImportance averages the per-tree importances.
func (rf *RandomForestRegressor) FeatureImportance() []float64 {
	if len(rf.Trees) == 0 {
		return nil
	}
	var out []float64
	for _, tree := range rf.Trees {
		fi := tree.FeatureImportance()
		if out == nil {
			out = make([]float64, len(fi))
		}
		for i, v := range fi {
			out[i] += v
		}
	}
	for i := range out {
		out[i] /= float64(len(rf.Trees))
	}
	return out
}
