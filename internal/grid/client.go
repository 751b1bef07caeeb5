// Package grid is the client-side state layer for the dynamic dataset UI:
// schema and record stores kept in lockstep across CRUD and column
// mutations, transient grid-editing state, and the train/predict
// orchestration, all over the REST boundary exposed by the backend.
package grid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"mlgrid/pkg/api"

	"github.com/go-resty/resty/v2"
)

// Client wraps the backend REST surface. Every non-2xx response is reduced
// to an error carrying the server's detail message, falling back to an
// operation-specific generic message when the body has none.
type Client struct {
	http *resty.Client
}

func NewClient(baseURL string) *Client {
	return &Client{http: resty.New().SetBaseURL(baseURL)}
}

// apiError converts a transport failure or non-2xx response into the error
// the UI surfaces. Transport errors never expose internals, just the
// operation's generic message.
func apiError(res *resty.Response, err error, fallback string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", fallback, err)
	}
	if res.IsSuccess() {
		return nil
	}

	var detail api.DetailResponse
	if jsonErr := json.Unmarshal(res.Body(), &detail); jsonErr == nil && detail.Detail != "" {
		return errors.New(detail.Detail)
	}
	return errors.New(fallback)
}

func (c *Client) GetSchema(ctx context.Context) (api.Schema, error) {
	var schema api.Schema
	res, err := c.http.R().SetContext(ctx).SetResult(&schema).Get("/schema")
	if err := apiError(res, err, "Failed to load schema"); err != nil {
		return api.Schema{}, err
	}
	return schema, nil
}

func (c *Client) ListRecords(ctx context.Context) ([]api.Record, error) {
	var records []api.Record
	res, err := c.http.R().SetContext(ctx).SetResult(&records).Get("/records")
	if err := apiError(res, err, "Failed to load records"); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *Client) CreateRecord(ctx context.Context, data map[string]any) (api.Record, error) {
	var record api.Record
	res, err := c.http.R().SetContext(ctx).
		SetBody(api.RecordPayload{Data: data}).
		SetResult(&record).
		Post("/records")
	if err := apiError(res, err, "Create failed"); err != nil {
		return api.Record{}, err
	}
	return record, nil
}

func (c *Client) UpdateRecord(ctx context.Context, id string, data map[string]any) (api.Record, error) {
	var record api.Record
	res, err := c.http.R().SetContext(ctx).
		SetBody(api.RecordPayload{Data: data}).
		SetResult(&record).
		Put("/records/" + id)
	if err := apiError(res, err, "Update failed"); err != nil {
		return api.Record{}, err
	}
	return record, nil
}

func (c *Client) DeleteRecord(ctx context.Context, id string) error {
	res, err := c.http.R().SetContext(ctx).Delete("/records/" + id)
	return apiError(res, err, "Delete failed")
}

func (c *Client) UploadDataset(ctx context.Context, filename string, file io.Reader) (api.Schema, error) {
	var schema api.Schema
	res, err := c.http.R().SetContext(ctx).
		SetFileReader("file", filename, file).
		SetResult(&schema).
		Post("/upload-dataset")
	if err := apiError(res, err, "Upload failed"); err != nil {
		return api.Schema{}, err
	}
	return schema, nil
}

func (c *Client) CreateEmptyDataset(ctx context.Context, columns []string) (api.Schema, error) {
	var schema api.Schema
	res, err := c.http.R().SetContext(ctx).
		SetBody(api.CreateTableRequest{Columns: columns}).
		SetResult(&schema).
		Post("/create-empty-dataset")
	if err := apiError(res, err, "Create table failed"); err != nil {
		return api.Schema{}, err
	}
	return schema, nil
}

func (c *Client) AddColumn(ctx context.Context, column string) error {
	res, err := c.http.R().SetContext(ctx).
		SetBody(api.ColumnRequest{Column: column}).
		Post("/add_column")
	return apiError(res, err, "Add column failed")
}

func (c *Client) DeleteColumn(ctx context.Context, column string) error {
	res, err := c.http.R().SetContext(ctx).
		SetBody(api.ColumnRequest{Column: column}).
		Post("/delete_column")
	return apiError(res, err, "Delete column failed")
}

func (c *Client) Train(ctx context.Context) (api.TrainResponse, error) {
	var result api.TrainResponse
	res, err := c.http.R().SetContext(ctx).SetResult(&result).Post("/train")
	if err := apiError(res, err, "Training failed"); err != nil {
		return api.TrainResponse{}, err
	}
	return result, nil
}

func (c *Client) Predict(ctx context.Context, model string, features map[string]float64) (api.PredictResponse, error) {
	var result api.PredictResponse
	res, err := c.http.R().SetContext(ctx).
		SetBody(api.PredictRequest{Model: model, Features: features}).
		SetResult(&result).
		Post("/predict")
	if err := apiError(res, err, "Prediction failed"); err != nil {
		return api.PredictResponse{}, err
	}
	return result, nil
}

// DownloadCSV fetches the dataset as raw CSV bytes. The caller decides where
// the file lands; the client does not parse it.
func (c *Client) DownloadCSV(ctx context.Context) ([]byte, error) {
	res, err := c.http.R().SetContext(ctx).Get("/download")
	if err := apiError(res, err, "Download failed"); err != nil {
		return nil, err
	}
	return res.Body(), nil
}
