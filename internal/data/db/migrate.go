package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/studyhub-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(types.Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if db.Dialector.Name() == "postgres" {
		// Feed candidate scans read public rows newest first.
		if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_user_activity_feed ON user_activity (visibility, created_at DESC) WHERE deleted_at IS NULL`).Error; err != nil {
			return fmt.Errorf("create feed index: %w", err)
		}
	}
	return nil
}
