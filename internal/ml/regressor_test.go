package ml_test

import (
	"math"
	"testing"

	"mlgrid/internal/ml"
	"mlgrid/pkg/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linearDataset(n int) ([][]float64, []float64) {
	X := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x1 := float64(i)
		x2 := float64(n - i)
		X[i] = []float64{x1, x2}
		y[i] = 3*x1 + 0.5*x2 + 7
	}
	return X, y
}

func TestLinearRegressionExactFit(t *testing.T) {
	X, y := linearDataset(20)

	model := ml.NewLinearRegression()
	require.NoError(t, model.Fit(X, y))

	assert.InDelta(t, 3.0, model.W[0], 1e-6)
	assert.InDelta(t, 0.5, model.W[1], 1e-6)
	assert.InDelta(t, 7.0, model.Bias(), 1e-6)

	assert.InDelta(t, 3*5+0.5*2+7, model.Predict([]float64{5, 2}), 1e-6)

	fi := model.FeatureImportance()
	require.Len(t, fi, 2)
	assert.InDelta(t, 3.0, fi[0], 1e-6)
	assert.InDelta(t, 0.5, fi[1], 1e-6)
}

func TestLinearRegressionRejectsBadInput(t *testing.T) {
	model := ml.NewLinearRegression()
	assert.Error(t, model.Fit(nil, nil))
	assert.Error(t, model.Fit([][]float64{{1, 2}}, []float64{1, 2}))
	assert.Error(t, model.Fit([][]float64{{1, 2}, {1}}, []float64{1, 2}))
}

func TestRegressionTreeFitsStepFunction(t *testing.T) {
	X := [][]float64{{1}, {2}, {3}, {4}, {10}, {11}, {12}, {13}}
	y := []float64{5, 5, 5, 5, 50, 50, 50, 50}

	tree := ml.NewRegressionTree(ml.WithTreeRandomState(1))
	require.NoError(t, tree.Fit(X, y))

	assert.InDelta(t, 5, tree.Predict([]float64{2.5}), 1e-9)
	assert.InDelta(t, 50, tree.Predict([]float64{11.5}), 1e-9)

	fi := tree.FeatureImportance()
	require.Len(t, fi, 1)
	assert.InDelta(t, 1.0, fi[0], 1e-9)
}

func TestRandomForestRegressor(t *testing.T) {
	X, y := linearDataset(40)

	forest := ml.NewRandomForestRegressor(
		ml.WithForestNEstimators(25),
		ml.WithForestRandomState(42),
	)
	require.NoError(t, forest.Fit(X, y))

	pred := make([]float64, len(X))
	for i, x := range X {
		pred[i] = forest.Predict(x)
	}
	assert.Greater(t, ml.R2(y, pred), 0.8)

	fi := forest.FeatureImportance()
	require.Len(t, fi, 2)
	for _, v := range fi {
		assert.GreaterOrEqual(t, v, 0.0)
	}
}

func TestGradientBoostingRegressor(t *testing.T) {
	X, y := linearDataset(40)

	gb := ml.NewGradientBoostingRegressor(ml.WithBoostingRandomState(42))
	require.NoError(t, gb.Fit(X, y))

	pred := make([]float64, len(X))
	for i, x := range X {
		pred[i] = gb.Predict(x)
	}
	assert.Greater(t, ml.R2(y, pred), 0.95)
}

func TestEvaluateProducesMetrics(t *testing.T) {
	X, y := linearDataset(20)

	metrics, err := ml.Evaluate(api.ModelLinear, ml.NewLinearRegression(), X, y, []string{"a", "b"})
	require.NoError(t, err)

	assert.Equal(t, "Linear Regression", metrics.Name)
	assert.InDelta(t, 1.0, metrics.R2, 1e-9)
	assert.InDelta(t, 0.0, metrics.MAE, 1e-6)
	assert.InDelta(t, 0.0, metrics.RMSE, 1e-6)
	require.Contains(t, metrics.FeatureImportance, "a")
	require.Contains(t, metrics.FeatureImportance, "b")
	assert.False(t, math.IsNaN(metrics.R2))
}

func TestMetrics(t *testing.T) {
	yTrue := []float64{1, 2, 3, 4}
	yPred := []float64{1, 2, 3, 4}

	assert.Equal(t, 0.0, ml.MSE(yTrue, yPred))
	assert.Equal(t, 0.0, ml.MAE(yTrue, yPred))
	assert.Equal(t, 0.0, ml.RMSE(yTrue, yPred))
	assert.Equal(t, 1.0, ml.R2(yTrue, yPred))

	off := []float64{2, 3, 4, 5}
	assert.InDelta(t, 1.0, ml.MSE(yTrue, off), 1e-9)
	assert.InDelta(t, 1.0, ml.MAE(yTrue, off), 1e-9)
	assert.InDelta(t, 1.0, ml.RMSE(yTrue, off), 1e-9)
	assert.Less(t, ml.R2(yTrue, off), 1.0)
}
