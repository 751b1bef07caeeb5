// Package dataset handles CSV ingestion, value typing, and schema inference
// for dynamically shaped tables.
package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"mlgrid/pkg/api"
)

var ErrEmptyCSV = errors.New("uploaded CSV is empty")

// CoerceValue turns a CSV cell into a typed value: numeric text becomes
// float64, everything else stays a string.
func CoerceValue(s string) any {
	if s == "" {
		return s
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// NumericValue reports the float value of a cell if it carries one. JSON
// round-trips deliver numbers as float64, but values written by clients may
// still be numeric strings.
func NumericValue(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		if t == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// ParseCSV reads an arbitrary CSV document: the first line names the columns,
// every following line becomes a row map. Lines with a mismatched field count
// are skipped rather than failing the whole upload.
func ParseCSV(r io.Reader) (columns []string, rows []map[string]any, err error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, ErrEmptyCSV
	}
	if err != nil {
		return nil, nil, fmt.Errorf("error reading CSV header: %w", err)
	}

	columns = make([]string, len(header))
	copy(columns, header)

	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Skip malformed records.
			continue
		}
		if len(rec) != len(columns) {
			continue
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = CoerceValue(rec[i])
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, nil, ErrEmptyCSV
	}
	return columns, rows, nil
}

// WriteCSV renders the rows under the given column order. Missing cells are
// written empty; numeric cells use the shortest exact representation.
func WriteCSV(columns []string, rows []map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(columns); err != nil {
		return nil, fmt.Errorf("error writing CSV header: %w", err)
	}

	cells := make([]string, len(columns))
	for _, row := range rows {
		for i, col := range columns {
			cells[i] = formatCell(row[col])
		}
		if err := writer.Write(cells); err != nil {
			return nil, fmt.Errorf("error writing CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("error flushing CSV: %w", err)
	}
	return buf.Bytes(), nil
}

func formatCell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// InferSchema derives the live schema from a column order and the current
// rows. A column is numeric when every non-empty value it holds parses as a
// number and at least one row carries a value for it. The target is the last
// numeric column; features are the remaining numeric columns in order.
func InferSchema(columns []string, rows []map[string]any) api.Schema {
	numeric := make([]string, 0, len(columns))
	for _, col := range columns {
		seen := false
		isNumeric := true
		for _, row := range rows {
			v, ok := row[col]
			if !ok {
				continue
			}
			if s, isStr := v.(string); isStr && s == "" {
				continue
			}
			if _, ok := NumericValue(v); !ok {
				isNumeric = false
				break
			}
			seen = true
		}
		if seen && isNumeric {
			numeric = append(numeric, col)
		}
	}

	schema := api.Schema{
		Columns:        append([]string(nil), columns...),
		NumericColumns: numeric,
		FeatureColumns: []string{},
		Samples:        len(rows),
	}
	if len(numeric) > 0 {
		schema.Target = numeric[len(numeric)-1]
		for _, col := range numeric {
			if col != schema.Target {
				schema.FeatureColumns = append(schema.FeatureColumns, col)
			}
		}
	}
	return schema
}

// Matrix extracts the feature matrix and target vector for training. Rows
// missing a numeric value for any feature or the target are dropped.
func Matrix(rows []map[string]any, features []string, target string) (X [][]float64, y []float64) {
	for _, row := range rows {
		tv, ok := NumericValue(row[target])
		if !ok {
			continue
		}
		x := make([]float64, len(features))
		usable := true
		for i, col := range features {
			fv, ok := NumericValue(row[col])
			if !ok {
				usable = false
				break
			}
			x[i] = fv
		}
		if !usable {
			continue
		}
		X = append(X, x)
		y = append(y, tv)
	}
	return X, y
}
