package database

import (
	"log"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func GetMigrator(db *gorm.DB) *gormigrate.Gormigrate {
	migrator := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "0",
			Migrate: func(txn *gorm.DB) error {
				return txn.AutoMigrate(&DatasetRecord{}, &SchemaState{})
			},
		},
	})

	migrator.InitSchema(func(txn *gorm.DB) error {
		// Run by the migrator when no previous migration is detected, so a
		// clean database jumps straight to the latest state.
		log.Println("clean database detected, running full schema initialization")

		return txn.AutoMigrate(&DatasetRecord{}, &SchemaState{})
	})

	return migrator
}
