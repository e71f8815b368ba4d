package database

import (
	"errors"
	"time"

	"github.com/openscholar/journal-backend/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationLowercaseProfileEmails = "2026-03-10_lowercase_profile_emails"

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
		{name: migrationLowercaseProfileEmails, apply: lowercaseProfileEmails},
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

// lowercaseProfileEmails repairs rows written before email normalization was
// applied on every path; phone-to-email resolution relies on canonical emails.
func lowercaseProfileEmails(db *gorm.DB) error {
	return db.Model(&users.User{}).
		Where("email <> lower(email)").
		Update("email", gorm.Expr("lower(email)")).Error
}
