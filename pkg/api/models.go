package api

// Wire types for the dynamic grid REST surface. Field names follow the
// snake_case keys the HTTP contract uses, so json tags are explicit here.

const (
	ModelLinear           = "linear"
	ModelRandomForest     = "random_forest"
	ModelGradientBoosting = "gradient_boosting"
)

// ModelKeys is the fixed set of regression models trained by /train, in
// display order.
var ModelKeys = []string{ModelLinear, ModelRandomForest, ModelGradientBoosting}

// ModelNames maps model keys to human readable labels.
var ModelNames = map[string]string{
	ModelLinear:           "Linear Regression",
	ModelRandomForest:     "Random Forest",
	ModelGradientBoosting: "Gradient Boosting",
}

// Schema describes the current dataset: column order, which columns are
// numeric, the inferred prediction target, and the derived feature columns.
type Schema struct {
	Columns        []string `json:"columns"`
	NumericColumns []string `json:"numeric_columns"`
	Target         string   `json:"target,omitempty"`
	FeatureColumns []string `json:"feature_columns"`
	Samples        int      `json:"samples"`
}

// Record is one row: a server-assigned id plus a column-keyed value mapping.
// Values are strings or numbers depending on how the backend typed the cell.
type Record struct {
	Id   string         `json:"id"`
	Data map[string]any `json:"data"`
}

// RecordPayload is the request body for creating or replacing a record.
type RecordPayload struct {
	Data map[string]any `json:"data"`
}

// CreateTableRequest creates an empty dataset with the given column names.
type CreateTableRequest struct {
	Columns []string `json:"columns"`
}

// ColumnRequest names a single column for add/delete column operations.
type ColumnRequest struct {
	Column string `json:"column"`
}

// ModelMetrics holds training-set metrics for one model, plus an optional
// per-feature importance mapping (non-negative weights keyed by column).
type ModelMetrics struct {
	Name              string             `json:"name"`
	R2                float64            `json:"r2"`
	MAE               float64            `json:"mae"`
	MSE               float64            `json:"mse"`
	RMSE              float64            `json:"rmse"`
	FeatureImportance map[string]float64 `json:"feature_importance,omitempty"`
}

// TrainResponse is the result of training the fixed model set. The schema it
// carries is authoritative: the trainer may re-derive the target/feature
// split, so clients replace their schema with this one.
type TrainResponse struct {
	Detail  string                  `json:"detail"`
	Samples int                     `json:"samples"`
	Schema  Schema                  `json:"schema"`
	Models  map[string]ModelMetrics `json:"models"`
}

type PredictRequest struct {
	Model    string             `json:"model"`
	Features map[string]float64 `json:"features"`
}

type PredictResponse struct {
	Prediction float64 `json:"prediction"`
}

// DetailResponse is the body of every non-2xx response and of bare acks.
type DetailResponse struct {
	Detail string `json:"detail"`
}
