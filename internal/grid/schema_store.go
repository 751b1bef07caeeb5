package grid

import (
	"context"
	"log/slog"
	"sync"

	"mlgrid/pkg/api"
)

// SchemaStore holds the live schema or the unloaded state. Exactly one
// schema is live at a time; it is replaced wholesale whenever the backend
// reports a change (upload, table creation, training).
type SchemaStore struct {
	mu     sync.RWMutex
	client *Client
	schema *api.Schema
}

func NewSchemaStore(client *Client) *SchemaStore {
	return &SchemaStore{client: client}
}

// normalize re-derives the feature columns as "all columns minus target, in
// schema order". The derived list is never edited independently, so whatever
// the server sent is recomputed here.
func normalize(schema api.Schema) api.Schema {
	features := make([]string, 0, len(schema.Columns))
	for _, col := range schema.Columns {
		if schema.Target == "" || col != schema.Target {
			features = append(features, col)
		}
	}
	schema.FeatureColumns = features
	return schema
}

// Load fetches the current schema. Failure never reaches the caller: it is
// logged and the store drops to the unloaded state, which renders as "upload
// a CSV to begin".
func (s *SchemaStore) Load(ctx context.Context) {
	schema, err := s.client.GetSchema(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		slog.Info("no schema available", "error", err)
		s.schema = nil
		return
	}
	normalized := normalize(schema)
	s.schema = &normalized
}

// Replace installs a schema delivered by a mutating operation. The training
// response's schema is authoritative and also arrives here.
func (s *SchemaStore) Replace(schema api.Schema) {
	normalized := normalize(schema)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schema = &normalized
}

// Unload drops to the "no dataset" state.
func (s *SchemaStore) Unload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schema = nil
}

// Current returns a copy of the live schema, or ok=false when no dataset is
// loaded. "Unloaded" is distinct from an empty dataset, which still has a
// schema.
func (s *SchemaStore) Current() (api.Schema, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.schema == nil {
		return api.Schema{}, false
	}
	out := *s.schema
	out.Columns = append([]string(nil), s.schema.Columns...)
	out.NumericColumns = append([]string(nil), s.schema.NumericColumns...)
	out.FeatureColumns = append([]string(nil), s.schema.FeatureColumns...)
	return out, true
}

// Columns returns the live column order, empty when unloaded.
func (s *SchemaStore) Columns() []string {
	schema, ok := s.Current()
	if !ok {
		return nil
	}
	return schema.Columns
}

// FeatureColumns returns the derived feature list, empty when unloaded.
func (s *SchemaStore) FeatureColumns() []string {
	schema, ok := s.Current()
	if !ok {
		return nil
	}
	return schema.FeatureColumns
}
