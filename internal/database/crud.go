package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrRecordNotFound = errors.New("record not found")

// Row is a decoded dataset record.
type Row struct {
	Id   uuid.UUID
	Data map[string]any
}

func decodeRecord(rec *DatasetRecord) (Row, error) {
	var data map[string]any
	if err := json.Unmarshal(rec.Data, &data); err != nil {
		return Row{}, fmt.Errorf("error decoding record %s: %w", rec.Id, err)
	}
	return Row{Id: rec.Id, Data: data}, nil
}

// ListRows returns all records in insertion order.
func ListRows(ctx context.Context, db *gorm.DB) ([]Row, error) {
	var records []DatasetRecord
	if err := db.WithContext(ctx).Order("seq").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("error listing records: %w", err)
	}

	rows := make([]Row, 0, len(records))
	for i := range records {
		row, err := decodeRecord(&records[i])
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// InsertRow stores a new record and returns its assigned id.
func InsertRow(ctx context.Context, db *gorm.DB, data map[string]any) (uuid.UUID, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return uuid.Nil, fmt.Errorf("error encoding record: %w", err)
	}

	record := DatasetRecord{Id: uuid.New(), Data: payload}
	if err := db.WithContext(ctx).Create(&record).Error; err != nil {
		return uuid.Nil, fmt.Errorf("error inserting record: %w", err)
	}
	return record.Id, nil
}

// GetRow loads a single record by id.
func GetRow(ctx context.Context, db *gorm.DB, id uuid.UUID) (Row, error) {
	var record DatasetRecord
	err := db.WithContext(ctx).First(&record, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Row{}, ErrRecordNotFound
	}
	if err != nil {
		return Row{}, fmt.Errorf("error getting record %s: %w", id, err)
	}
	return decodeRecord(&record)
}

// ReplaceRow overwrites the data document of an existing record.
func ReplaceRow(ctx context.Context, db *gorm.DB, id uuid.UUID, data map[string]any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("error encoding record: %w", err)
	}

	result := db.WithContext(ctx).Model(&DatasetRecord{}).Where("id = ?", id).Update("data", payload)
	if result.Error != nil {
		return fmt.Errorf("error updating record %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// DeleteRow removes one record.
func DeleteRow(ctx context.Context, db *gorm.DB, id uuid.UUID) error {
	result := db.WithContext(ctx).Delete(&DatasetRecord{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("error deleting record %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// ResetRows drops every record and inserts the given rows in order.
func ResetRows(ctx context.Context, db *gorm.DB, rows []map[string]any) error {
	return db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		if err := txn.Where("1 = 1").Delete(&DatasetRecord{}).Error; err != nil {
			return fmt.Errorf("error clearing records: %w", err)
		}
		for _, data := range rows {
			payload, err := json.Marshal(data)
			if err != nil {
				return fmt.Errorf("error encoding record: %w", err)
			}
			if err := txn.Create(&DatasetRecord{Id: uuid.New(), Data: payload}).Error; err != nil {
				return fmt.Errorf("error inserting record: %w", err)
			}
		}
		return nil
	})
}

// RewriteRows applies fn to every record's data document and stores the
// result. Used by column mutations, which redefine the shape of every row.
func RewriteRows(ctx context.Context, db *gorm.DB, fn func(data map[string]any) map[string]any) error {
	return db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		var records []DatasetRecord
		if err := txn.Order("seq").Find(&records).Error; err != nil {
			return fmt.Errorf("error listing records: %w", err)
		}
		for i := range records {
			row, err := decodeRecord(&records[i])
			if err != nil {
				return err
			}
			payload, err := json.Marshal(fn(row.Data))
			if err != nil {
				return fmt.Errorf("error encoding record: %w", err)
			}
			if err := txn.Model(&DatasetRecord{}).Where("seq = ?", records[i].Seq).Update("data", payload).Error; err != nil {
				return fmt.Errorf("error rewriting record %s: %w", row.Id, err)
			}
		}
		return nil
	})
}

// SaveSchemaState upserts the singleton schema row.
func SaveSchemaState(ctx context.Context, db *gorm.DB, columns []string, target string) error {
	payload, err := json.Marshal(columns)
	if err != nil {
		return fmt.Errorf("error encoding schema columns: %w", err)
	}

	state := SchemaState{ID: schemaStateID, Columns: payload, Target: target}
	if err := db.WithContext(ctx).Save(&state).Error; err != nil {
		return fmt.Errorf("error saving schema state: %w", err)
	}
	return nil
}

// LoadSchemaState returns the persisted column order and target, or ok=false
// when no schema has been stored yet.
func LoadSchemaState(ctx context.Context, db *gorm.DB) (columns []string, target string, ok bool, err error) {
	var state SchemaState
	findErr := db.WithContext(ctx).First(&state, "id = ?", schemaStateID).Error
	if errors.Is(findErr, gorm.ErrRecordNotFound) {
		return nil, "", false, nil
	}
	if findErr != nil {
		return nil, "", false, fmt.Errorf("error loading schema state: %w", findErr)
	}

	if err := json.Unmarshal(state.Columns, &columns); err != nil {
		return nil, "", false, fmt.Errorf("error decoding schema columns: %w", err)
	}
	return columns, state.Target, true, nil
}
