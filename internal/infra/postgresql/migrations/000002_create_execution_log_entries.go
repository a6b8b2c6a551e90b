package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/notify-engine/internal/repository"
	"gorm.io/gorm"
)

func createExecutionLogEntriesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_execution_log_entries",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.LogEntryModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_execution_log_entries_timestamp ON execution_log_entries (timestamp)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.LogEntryModel{})
		},
	}
}
