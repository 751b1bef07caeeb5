package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"mlgrid/internal/database"
	"mlgrid/internal/dataset"
	"mlgrid/internal/ml"
	"mlgrid/pkg/api"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

// BackendService implements the dynamic grid REST surface: schema and record
// CRUD, column mutations, CSV upload/download, and train/predict against the
// fixed regression model set. Records live in the database; the schema and
// trained models are in-memory state guarded by mu, with the column order and
// target persisted so restarts recover without re-inference.
type BackendService struct {
	db   *gorm.DB
	seed int64

	mu      sync.RWMutex
	columns []string // nil means no dataset is loaded
	target  string
	models  map[string]ml.Regressor
}

func NewBackendService(db *gorm.DB) *BackendService {
	s := &BackendService{db: db, seed: time.Now().UnixNano()}

	columns, target, ok, err := database.LoadSchemaState(context.Background(), db)
	if err != nil {
		slog.Error("error restoring schema state", "error", err)
	} else if ok {
		s.columns = columns
		s.target = target
	}

	return s
}

func (s *BackendService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))
	r.Get("/schema", RestHandler(s.GetSchema))
	r.Post("/upload-dataset", RestHandler(s.UploadDataset))
	r.Post("/create-empty-dataset", RestHandler(s.CreateEmptyDataset))
	r.Route("/records", func(r chi.Router) {
		r.Get("/", RestHandler(s.GetRecords))
		r.Post("/", RestHandler(s.CreateRecord))
		r.Put("/{record_id}", RestHandler(s.UpdateRecord))
		r.Delete("/{record_id}", RestHandler(s.DeleteRecord))
	})
	r.Post("/add_column", RestHandler(s.AddColumn))
	r.Post("/delete_column", RestHandler(s.DeleteColumn))
	r.Post("/train", RestHandler(s.Train))
	r.Post("/predict", RestHandler(s.Predict))
	r.Get("/download", s.Download)
}

// buildSchema derives the live schema from the column order and current rows.
// The pinned target survives as long as it is still a numeric column; when it
// is gone (e.g. the target column was deleted) the target is re-inferred and
// the pin updated.
func (s *BackendService) buildSchema(ctx context.Context, rows []database.Row) api.Schema {
	data := make([]map[string]any, len(rows))
	for i := range rows {
		data[i] = rows[i].Data
	}

	schema := dataset.InferSchema(s.columns, data)

	if s.target != "" && s.target != schema.Target {
		for _, col := range schema.NumericColumns {
			if col == s.target {
				schema.Target = s.target
				schema.FeatureColumns = schema.FeatureColumns[:0]
				for _, c := range schema.NumericColumns {
					if c != s.target {
						schema.FeatureColumns = append(schema.FeatureColumns, c)
					}
				}
				break
			}
		}
	}

	if schema.Target != s.target {
		s.target = schema.Target
		if err := database.SaveSchemaState(ctx, s.db, s.columns, s.target); err != nil {
			slog.Error("error persisting schema state", "error", err)
		}
	}

	return schema
}

func (s *BackendService) GetSchema(r *http.Request) (any, error) {
	ctx := r.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.columns == nil {
		// Fallback: infer column order from existing rows, if any.
		rows, err := database.ListRows(ctx, s.db)
		if err != nil {
			return nil, CodedErrorf(http.StatusInternalServerError, "error loading records")
		}
		if len(rows) == 0 {
			return nil, CodedErrorf(http.StatusNotFound, "No dataset loaded. Upload a CSV first.")
		}
		s.columns = columnsFromRows(rows)
	}

	rows, err := database.ListRows(ctx, s.db)
	if err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "error loading records")
	}

	return s.buildSchema(ctx, rows), nil
}

func columnsFromRows(rows []database.Row) []string {
	seen := make(map[string]struct{})
	var columns []string
	for _, row := range rows {
		for col := range row.Data {
			if _, ok := seen[col]; !ok {
				seen[col] = struct{}{}
				columns = append(columns, col)
			}
		}
	}
	return columns
}

func (s *BackendService) UploadDataset(r *http.Request) (any, error) {
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, CodedErrorf(http.StatusBadRequest, "missing file field in upload")
	}
	defer file.Close()

	columns, rows, err := dataset.ParseCSV(file)
	if errors.Is(err, dataset.ErrEmptyCSV) {
		return nil, CodedErrorf(http.StatusBadRequest, "Uploaded CSV is empty")
	}
	if err != nil {
		return nil, CodedErrorf(http.StatusBadRequest, "unable to parse uploaded CSV: %v", err)
	}

	ctx := r.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := database.ResetRows(ctx, s.db, rows); err != nil {
		slog.Error("error storing uploaded rows", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error storing uploaded dataset")
	}

	s.columns = columns
	s.target = ""
	s.models = nil

	stored, err := database.ListRows(ctx, s.db)
	if err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "error loading records")
	}

	schema := s.buildSchema(ctx, stored)
	if err := database.SaveSchemaState(ctx, s.db, s.columns, s.target); err != nil {
		slog.Error("error persisting schema state", "error", err)
	}

	slog.Info("dataset uploaded", "columns", len(columns), "rows", len(rows))
	return schema, nil
}

func (s *BackendService) CreateEmptyDataset(r *http.Request) (any, error) {
	req, err := ParseRequest[api.CreateTableRequest](r)
	if err != nil {
		return nil, err
	}

	var columns []string
	seen := make(map[string]struct{})
	for _, col := range req.Columns {
		col = strings.TrimSpace(col)
		if col == "" {
			continue
		}
		if _, dup := seen[col]; dup {
			return nil, CodedErrorf(http.StatusBadRequest, "duplicate column name '%s'", col)
		}
		seen[col] = struct{}{}
		columns = append(columns, col)
	}
	if len(columns) == 0 {
		return nil, CodedErrorf(http.StatusBadRequest, "at least one column name is required")
	}

	ctx := r.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := database.ResetRows(ctx, s.db, nil); err != nil {
		slog.Error("error clearing records", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error creating table")
	}

	s.columns = columns
	s.target = ""
	s.models = nil

	schema := s.buildSchema(ctx, nil)
	if err := database.SaveSchemaState(ctx, s.db, s.columns, s.target); err != nil {
		slog.Error("error persisting schema state", "error", err)
	}

	slog.Info("empty dataset created", "columns", len(columns))
	return schema, nil
}

func (s *BackendService) GetRecords(r *http.Request) (any, error) {
	rows, err := database.ListRows(r.Context(), s.db)
	if err != nil {
		slog.Error("error listing records", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error loading records")
	}

	records := make([]api.Record, len(rows))
	for i, row := range rows {
		records[i] = api.Record{Id: row.Id.String(), Data: row.Data}
	}
	return records, nil
}

// sanitizeData drops keys outside the current schema and coerces numeric
// strings, so arbitrary payloads cannot smuggle columns into the dataset.
func (s *BackendService) sanitizeData(data map[string]any) (map[string]any, error) {
	if s.columns == nil {
		return nil, CodedErrorf(http.StatusBadRequest, "No dataset loaded. Upload a CSV first.")
	}

	out := make(map[string]any, len(data))
	for _, col := range s.columns {
		v, ok := data[col]
		if !ok {
			continue
		}
		if str, isStr := v.(string); isStr {
			out[col] = dataset.CoerceValue(str)
		} else {
			out[col] = v
		}
	}
	return out, nil
}

func (s *BackendService) CreateRecord(r *http.Request) (any, error) {
	req, err := ParseRequest[api.RecordPayload](r)
	if err != nil {
		return nil, err
	}

	ctx := r.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.sanitizeData(req.Data)
	if err != nil {
		return nil, err
	}

	id, err := database.InsertRow(ctx, s.db, data)
	if err != nil {
		slog.Error("error creating record", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error creating record")
	}

	return api.Record{Id: id.String(), Data: data}, nil
}

func (s *BackendService) UpdateRecord(r *http.Request) (any, error) {
	id, err := URLParamUUID(r, "record_id")
	if err != nil {
		return nil, err
	}

	req, err := ParseRequest[api.RecordPayload](r)
	if err != nil {
		return nil, err
	}

	ctx := r.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.sanitizeData(req.Data)
	if err != nil {
		return nil, err
	}

	if err := database.ReplaceRow(ctx, s.db, id, data); err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "Record not found")
		}
		slog.Error("error updating record", "record_id", id, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error updating record")
	}

	return api.Record{Id: id.String(), Data: data}, nil
}

func (s *BackendService) DeleteRecord(r *http.Request) (any, error) {
	id, err := URLParamUUID(r, "record_id")
	if err != nil {
		return nil, err
	}

	if err := database.DeleteRow(r.Context(), s.db, id); err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "Record not found")
		}
		slog.Error("error deleting record", "record_id", id, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error deleting record")
	}

	return api.DetailResponse{Detail: "Record deleted"}, nil
}

func (s *BackendService) AddColumn(r *http.Request) (any, error) {
	req, err := ParseRequest[api.ColumnRequest](r)
	if err != nil {
		return nil, err
	}

	column := strings.TrimSpace(req.Column)
	if column == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "column name cannot be empty")
	}

	ctx := r.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.columns == nil {
		return nil, CodedErrorf(http.StatusBadRequest, "No dataset loaded. Upload a CSV first.")
	}
	for _, existing := range s.columns {
		if existing == column {
			return nil, CodedErrorf(http.StatusBadRequest, "column '%s' already exists", column)
		}
	}

	s.columns = append(s.columns, column)
	s.models = nil

	if err := database.SaveSchemaState(ctx, s.db, s.columns, s.target); err != nil {
		slog.Error("error persisting schema state", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error saving schema")
	}

	slog.Info("column added", "column", column)
	return api.DetailResponse{Detail: fmt.Sprintf("Column '%s' added", column)}, nil
}

func (s *BackendService) DeleteColumn(r *http.Request) (any, error) {
	req, err := ParseRequest[api.ColumnRequest](r)
	if err != nil {
		return nil, err
	}

	ctx := r.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	remaining := make([]string, 0, len(s.columns))
	for _, col := range s.columns {
		if col == req.Column {
			found = true
			continue
		}
		remaining = append(remaining, col)
	}
	if !found {
		return nil, CodedErrorf(http.StatusNotFound, "column '%s' does not exist", req.Column)
	}

	// Strip the key from every stored row; the column disappears uniformly.
	if err := database.RewriteRows(ctx, s.db, func(data map[string]any) map[string]any {
		delete(data, req.Column)
		return data
	}); err != nil {
		slog.Error("error stripping column from records", "column", req.Column, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error deleting column")
	}

	s.columns = remaining
	if s.target == req.Column {
		// Deleting the inferred target: the next schema build re-infers it
		// from the remaining numeric columns.
		s.target = ""
	}
	s.models = nil

	if err := database.SaveSchemaState(ctx, s.db, s.columns, s.target); err != nil {
		slog.Error("error persisting schema state", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error saving schema")
	}

	slog.Info("column deleted", "column", req.Column)
	return api.DetailResponse{Detail: fmt.Sprintf("Column '%s' deleted", req.Column)}, nil
}

func (s *BackendService) Train(r *http.Request) (any, error) {
	ctx := r.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.columns == nil {
		return nil, CodedErrorf(http.StatusBadRequest, "No dataset schema available")
	}

	rows, err := database.ListRows(ctx, s.db)
	if err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "error loading records")
	}

	schema := s.buildSchema(ctx, rows)
	if schema.Target == "" || len(schema.FeatureColumns) == 0 {
		return nil, CodedErrorf(http.StatusBadRequest, "Could not determine target/feature columns from dataset")
	}

	data := make([]map[string]any, len(rows))
	for i := range rows {
		data[i] = rows[i].Data
	}
	X, y := dataset.Matrix(data, schema.FeatureColumns, schema.Target)
	if len(X) < 2 {
		return nil, CodedErrorf(http.StatusBadRequest, "Not enough rows to train")
	}

	regressors := ml.NewRegressors(s.seed)
	results := make(map[string]api.ModelMetrics, len(api.ModelKeys))
	for _, key := range api.ModelKeys {
		metrics, err := ml.Evaluate(key, regressors[key], X, y, schema.FeatureColumns)
		if err != nil {
			slog.Error("error training model", "model", key, "error", err)
			return nil, CodedErrorf(http.StatusInternalServerError, "error training model '%s': %v", key, err)
		}
		results[key] = metrics
	}

	// All three trained; publish atomically from the client's perspective.
	s.models = regressors

	slog.Info("models trained", "samples", len(X), "features", len(schema.FeatureColumns))
	return api.TrainResponse{
		Detail:  "Models trained successfully",
		Samples: len(X),
		Schema:  schema,
		Models:  results,
	}, nil
}

func (s *BackendService) Predict(r *http.Request) (any, error) {
	req, err := ParseRequest[api.PredictRequest](r)
	if err != nil {
		return nil, err
	}

	ctx := r.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	model, ok := s.models[req.Model]
	if !ok {
		return nil, CodedErrorf(http.StatusBadRequest, "Model '%s' not trained yet", req.Model)
	}

	rows, err := database.ListRows(ctx, s.db)
	if err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "error loading records")
	}
	schema := s.buildSchema(ctx, rows)

	x := make([]float64, len(schema.FeatureColumns))
	for i, col := range schema.FeatureColumns {
		v, ok := req.Features[col]
		if !ok {
			return nil, CodedErrorf(http.StatusBadRequest, "Missing feature '%s' in prediction request", col)
		}
		x[i] = v
	}

	return api.PredictResponse{Prediction: model.Predict(x)}, nil
}

// Download streams the dataset as a CSV attachment. It bypasses RestHandler
// because the response is a byte stream, not JSON.
func (s *BackendService) Download(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	s.mu.RLock()
	columns := append([]string(nil), s.columns...)
	s.mu.RUnlock()

	rows, err := database.ListRows(ctx, s.db)
	if err != nil {
		slog.Error("error listing records for download", "error", err)
		writeDetail(w, http.StatusInternalServerError, "error loading records")
		return
	}
	if len(rows) == 0 {
		writeDetail(w, http.StatusNotFound, "No data to download")
		return
	}
	if columns == nil {
		columns = columnsFromRows(rows)
	}

	data := make([]map[string]any, len(rows))
	for i := range rows {
		data[i] = rows[i].Data
	}

	payload, err := dataset.WriteCSV(columns, data)
	if err != nil {
		slog.Error("error rendering CSV", "error", err)
		writeDetail(w, http.StatusInternalServerError, "error rendering CSV")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename=dataset.csv`)
	if _, err := w.Write(payload); err != nil {
		slog.Error("error writing CSV response", "error", err)
	}
}
