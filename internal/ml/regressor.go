// Package ml implements the fixed set of regression models trained against
// the live dataset: ordinary least squares, a random forest of CART
// regression trees, and gradient boosted trees.
package ml

import (
	"errors"
	"fmt"

	"mlgrid/pkg/api"
)

var ErrNotTrained = errors.New("model is not trained")

// Regressor is a trainable single-output regression model.
type Regressor interface {
	// Fit trains on X (n rows of p features) and y (n targets).
	Fit(X [][]float64, y []float64) error
	// Predict returns the estimate for one feature row.
	Predict(x []float64) float64
	// FeatureImportance returns one non-negative weight per feature, or nil
	// when the model has not been trained.
	FeatureImportance() []float64
}

// NewRegressors builds the fixed model set keyed by api.Model* keys. The seed
// makes forest and boosting runs reproducible.
func NewRegressors(seed int64) map[string]Regressor {
	return map[string]Regressor{
		api.ModelLinear:           NewLinearRegression(),
		api.ModelRandomForest:     NewRandomForestRegressor(WithForestRandomState(seed)),
		api.ModelGradientBoosting: NewGradientBoostingRegressor(WithBoostingRandomState(seed)),
	}
}

// Evaluate fits the model and reports training-set metrics plus the feature
// importance mapping keyed by feature column name.
func Evaluate(key string, model Regressor, X [][]float64, y []float64, features []string) (api.ModelMetrics, error) {
	if err := model.Fit(X, y); err != nil {
		return api.ModelMetrics{}, fmt.Errorf("error training %s: %w", key, err)
	}

	pred := make([]float64, len(X))
	for i, x := range X {
		pred[i] = model.Predict(x)
	}

	metrics := api.ModelMetrics{
		Name: api.ModelNames[key],
		R2:   R2(y, pred),
		MAE:  MAE(y, pred),
		MSE:  MSE(y, pred),
		RMSE: RMSE(y, pred),
	}

	if fi := model.FeatureImportance(); fi != nil {
		metrics.FeatureImportance = make(map[string]float64, len(features))
		for i, name := range features {
			if i < len(fi) {
				metrics.FeatureImportance[name] = fi[i]
			}
		}
	}
	return metrics, nil
}

func validateFit(X [][]float64, y []float64) (p int, err error) {
	if len(X) == 0 {
		return 0, errors.New("empty training set")
	}
	if len(y) != len(X) {
		return 0, errors.New("X and y length mismatch")
	}
	p = len(X[0])
	if p == 0 {
		return 0, errors.New("no feature columns")
	}
	for i := range X {
		if len(X[i]) != p {
			return 0, errors.New("inconsistent number of features in X rows")
		}
	}
	return p, nil
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	s := 0.0
	for _, x := range v {
		s += x
	}
	return s / float64(len(v))
}
