package ml

import "time"

// GradientBoostingRegressor fits shallow regression trees sequentially on
// the residuals of the running prediction, shrunk by the learning rate.
type GradientBoostingRegressor struct {
	NEstimators  int
	LearningRate float64
	MaxDepth     int
	RandomState  int64

	base  float64 // initial prediction: mean of y
	trees []*RegressionTree
}

type BoostingOption func(*GradientBoostingRegressor)

func WithBoostingNEstimators(n int) BoostingOption {
	return func(gb *GradientBoostingRegressor) { gb.NEstimators = n }
}
func WithBoostingLearningRate(lr float64) BoostingOption {
	return func(gb *GradientBoostingRegressor) { gb.LearningRate = lr }
}
func WithBoostingMaxDepth(d int) BoostingOption {
	return func(gb *GradientBoostingRegressor) { gb.MaxDepth = d }
}
func WithBoostingRandomState(seed int64) BoostingOption {
	return func(gb *GradientBoostingRegressor) { gb.RandomState = seed }
}

func NewGradientBoostingRegressor(opts ...BoostingOption) *GradientBoostingRegressor {
	gb := &GradientBoostingRegressor{
		NEstimators:  100,
		LearningRate: 0.1,
		MaxDepth:     3,
		RandomState:  time.Now().UnixNano(),
	}
	for _, o := range opts {
		o(gb)
	}
	return gb
}

func (gb *GradientBoostingRegressor) Fit(X [][]float64, y []float64) error {
	if _, err := validateFit(X, y); err != nil {
		return err
	}

	gb.base = mean(y)
	gb.trees = make([]*RegressionTree, 0, gb.NEstimators)

	current := make([]float64, len(y))
	for i := range current {
		current[i] = gb.base
	}

	residual := make([]float64, len(y))
	for t := 0; t < gb.NEstimators; t++ {
		allZero := true
		for i := range y {
			residual[i] = y[i] - current[i]
			if residual[i] != 0 {
				allZero = false
			}
		}
		if allZero {
			break
		}

		tree := NewRegressionTree(
			WithTreeMaxDepth(gb.MaxDepth),
			WithTreeRandomState(gb.RandomState+int64(t)),
		)
		if err := tree.Fit(X, residual); err != nil {
			return err
		}
		gb.trees = append(gb.trees, tree)

		for i, x := range X {
			current[i] += gb.LearningRate * tree.Predict(x)
		}
	}
	return nil
}

func (gb *GradientBoostingRegressor) Predict(x []float64) float64 {
	pred := gb.base
	for _, tree := range gb.trees {
		pred += gb.LearningRate * tree.Predict(x)
	}
	return pred
}

// FeatureImportance sums the per-tree importances, normalized to sum to one.
func (gb *GradientBoostingRegressor) FeatureImportance() []float64 {
	if len(gb.trees) == 0 {
		return nil
	}
	var out []float64
	total := 0.0
	for _, tree := range gb.trees {
		fi := tree.FeatureImportance()
		if out == nil {
			out = make([]float64, len(fi))
		}
		for i, v := range fi {
			out[i] += v
			total += v
		}
	}
	if total > 0 {
		for i := range out {
			out[i] /= total
		}
	}
	return out
}
