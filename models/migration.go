package models

import (
	"github.com/mmdatafocus/docgen_backend/config"
)

// MigrateTable runs gorm automigrate for all persisted models.
func MigrateTable() {
	db := config.GetDB()
	err := db.AutoMigrate(
		&GenerationJob{},
		&ReportSnapshot{},
		&PrintSnapshot{},
	)
	if err != nil {
		panic(err)
	}
}
