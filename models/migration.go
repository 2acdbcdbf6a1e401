package models

import "gorm.io/gorm"

// MigrateTable creates or updates every table the sync engine touches. The
// orchestrator also runs it during the initializing phase as a schema
// compatibility check before writing anything.
func MigrateTable(db *gorm.DB) error {
	return db.AutoMigrate(
		&Client{},
		&Warehouse{},
		&Store{},
		&ReturnIntegration{},
		&Order{},
		&Product{},
		&Return{},
		&ReturnItem{},
		&SyncRun{},
		&Setting{},
	)
}
