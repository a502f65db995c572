// SPDX-License-Identifier: GPL-3.0-only

package migrations

import (
	"fmt"

	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"whoistel/models"
)

func List() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		{
			ID: "001_create_reports",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(models.AllModels...); err != nil {
					return fmt.Errorf("failed to create reports table: %w", err)
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&models.Report{})
			},
		},
		{
			// Databases created before public ids existed have rows without rid.
			ID: "002_backfill_report_ids",
			Migrate: func(tx *gorm.DB) error {
				var ids []uint
				if err := tx.Model(&models.Report{}).
					Where("rid IS NULL OR rid = ''").
					Pluck("id", &ids).Error; err != nil {
					return fmt.Errorf("failed to fetch reports without rid: %w", err)
				}

				for _, id := range ids {
					if err := tx.Model(&models.Report{}).
						Where("id = ?", id).
						Update("rid", uuid.New().String()).Error; err != nil {
						return fmt.Errorf("update report %d: %w", id, err)
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error { return nil },
		},
	}
}
