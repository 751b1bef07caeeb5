package database

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DatasetRecord is one dynamically shaped row. The cell values live in a JSON
// document because the column set is user-defined and can change mid-session.
// Seq preserves insertion order; Id is the identifier exposed over the API.
type DatasetRecord struct {
	Seq  int64          `gorm:"primaryKey;autoIncrement"`
	Id   uuid.UUID      `gorm:"type:uuid;uniqueIndex;not null"`
	Data datatypes.JSON `gorm:"not null"`
}

// SchemaState persists the current schema so a restarted server does not have
// to re-infer it from stored rows. There is at most one row (ID = 1).
type SchemaState struct {
	ID      int            `gorm:"primaryKey"`
	Columns datatypes.JSON `gorm:"not null"`
	Target  string
}

const schemaStateID = 1
