package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarcoPoloResearchLab/faceoff/internal/ledger"
)

// Earlier releases stored the third choice as "if_needed" while the reaction
// mapping produced "maybe". The canonical enumeration is yes/no/maybe; this
// migration folds legacy rows onto it.
const migrationNormalizeIfNeeded = "2026-08-12_normalize_if_needed_responses"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationNormalizeIfNeeded, apply: normalizeIfNeededResponses},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

func normalizeIfNeededResponses(db *gorm.DB) error {
	return db.Model(&ledger.Response{}).
		Where("choice = ?", "if_needed").
		Update("choice", string(ledger.ChoiceMaybe)).Error
}
