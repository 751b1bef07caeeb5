package grid

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"mlgrid/pkg/api"
)

// Prediction is one scalar estimate plus the model key that produced it and
// the target name at the time of the request. The model key doubles as "the
// model currently selected for display" in the metrics panel.
type Prediction struct {
	Value    float64
	ModelKey string
	Target   string
}

// ModelOrchestrator drives the train -> result -> predict pipeline. It reads
// the current schema snapshot and never caches one of its own.
type ModelOrchestrator struct {
	mu         sync.Mutex
	client     *Client
	schema     *SchemaStore
	notifier   *Notifier
	result     *api.TrainResponse
	prediction *Prediction
}

func NewModelOrchestrator(client *Client, schema *SchemaStore, notifier *Notifier) *ModelOrchestrator {
	return &ModelOrchestrator{client: client, schema: schema, notifier: notifier}
}

// Train runs training across the fixed model set. On success the result is
// stored and the trainer's schema replaces the store's: training may
// canonicalize the target/feature split, so its view is authoritative.
// All-or-nothing from this side; there are no partial results.
func (o *ModelOrchestrator) Train(ctx context.Context) error {
	result, err := o.client.Train(ctx)
	if err != nil {
		o.notifier.Error(err.Error())
		return err
	}

	o.mu.Lock()
	o.result = &result
	o.mu.Unlock()

	o.schema.Replace(result.Schema)
	o.notifier.Ok(fmt.Sprintf("Models trained on %d samples.", result.Samples))
	return nil
}

// Predict submits one feature vector against a named model. The features
// arrive as the grid's display strings, one per feature column; empty inputs
// count as zero, anything else must parse as a number.
func (o *ModelOrchestrator) Predict(ctx context.Context, modelKey string, features map[string]string) error {
	schema, ok := o.schema.Current()
	if !ok {
		o.notifier.Error("No dataset loaded.")
		return fmt.Errorf("no dataset loaded")
	}

	parsed := make(map[string]float64, len(features))
	for col, raw := range features {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			parsed[col] = 0
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			o.notifier.Error(fmt.Sprintf("Invalid value for feature '%s'.", col))
			return fmt.Errorf("invalid value for feature %q: %w", col, err)
		}
		parsed[col] = v
	}

	result, err := o.client.Predict(ctx, modelKey, parsed)
	if err != nil {
		o.notifier.Error(err.Error())
		return err
	}

	o.mu.Lock()
	o.prediction = &Prediction{Value: result.Prediction, ModelKey: modelKey, Target: schema.Target}
	o.mu.Unlock()

	o.notifier.Ok("Prediction generated.")
	return nil
}

// Result returns the latest train result, if any.
func (o *ModelOrchestrator) Result() (api.TrainResponse, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.result == nil {
		return api.TrainResponse{}, false
	}
	return *o.result, true
}

// Metrics returns the stored metrics for one model key.
func (o *ModelOrchestrator) Metrics(modelKey string) (api.ModelMetrics, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.result == nil {
		return api.ModelMetrics{}, false
	}
	m, ok := o.result.Models[modelKey]
	return m, ok
}

// LastPrediction returns the most recent prediction. It only changes when
// the predict form is re-submitted; selecting a different model for display
// does not re-run prediction.
func (o *ModelOrchestrator) LastPrediction() (Prediction, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.prediction == nil {
		return Prediction{}, false
	}
	return *o.prediction, true
}

// Reset drops the train result and prediction. Fired when the dataset is
// replaced: metrics for the old dataset would be misleading.
func (o *ModelOrchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.result = nil
	o.prediction = nil
}
