package storage

import (
	stderrors "errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"medid-server-go/internal/platform/errors"
	"medid-server-go/internal/platform/storage/migrations"
)

// Migration is one versioned schema change.
type Migration interface {
	Version() string
	Description() string
	Up(db *gorm.DB) error
	Down(db *gorm.DB) error
}

// SchemaVersion marks an applied migration.
type SchemaVersion struct {
	Version     string    `gorm:"primaryKey;size:64"`
	Description string    `gorm:"not null"`
	AppliedAt   time.Time `gorm:"not null"`
}

func (SchemaVersion) TableName() string { return "schema_versions" }

// schema lists migrations in the order they must run.
var schema = []Migration{
	&migrations.Migration001AnalysisRecords{},
	&migrations.Migration002DrugLabelCache{},
}

// Migrate applies the pending schema migrations, each in its own transaction.
func Migrate(db *gorm.DB) error {
	return migrate(db, schema)
}

func migrate(db *gorm.DB, steps []Migration) error {
	if err := db.AutoMigrate(&SchemaVersion{}); err != nil {
		return errors.Wrap(errors.KindStorage, "storage.migrate", "failed to create schema_versions", err)
	}

	applied, err := appliedSet(db)
	if err != nil {
		return err
	}

	for _, m := range steps {
		if applied[m.Version()] {
			continue
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := m.Up(tx); err != nil {
				return err
			}
			return tx.Create(&SchemaVersion{
				Version:     m.Version(),
				Description: m.Description(),
				AppliedAt:   time.Now().UTC(),
			}).Error
		})
		if err != nil {
			return errors.Wrap(errors.KindStorage, "storage.migrate", fmt.Sprintf("migration %s failed", m.Version()), err)
		}
	}
	return nil
}

func appliedSet(db *gorm.DB) (map[string]bool, error) {
	var versions []string
	if err := db.Model(&SchemaVersion{}).Pluck("version", &versions).Error; err != nil {
		return nil, errors.Wrap(errors.KindStorage, "storage.migrate", "failed to read schema_versions", err)
	}
	set := make(map[string]bool, len(versions))
	for _, v := range versions {
		set[v] = true
	}
	return set, nil
}

// AppliedMigrations lists applied versions, oldest first.
func AppliedMigrations(db *gorm.DB) ([]SchemaVersion, error) {
	var out []SchemaVersion
	if err := db.Order("version ASC").Find(&out).Error; err != nil {
		return nil, errors.Wrap(errors.KindStorage, "storage.applied", "failed to list schema_versions", err)
	}
	return out, nil
}

// Rollback reverts one applied version.
func Rollback(db *gorm.DB, version string) error {
	return rollback(db, schema, version)
}

func rollback(db *gorm.DB, steps []Migration, version string) error {
	var target Migration
	for _, m := range steps {
		if m.Version() == version {
			target = m
			break
		}
	}
	if target == nil {
		return errors.New(errors.KindStorage, "storage.rollback", fmt.Sprintf("migration %s not registered", version))
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		var row SchemaVersion
		if err := tx.First(&row, "version = ?", version).Error; err != nil {
			return err
		}
		if err := target.Down(tx); err != nil {
			return err
		}
		return tx.Delete(&row).Error
	})
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return errors.New(errors.KindStorage, "storage.rollback", fmt.Sprintf("migration %s not applied", version))
	}
	if err != nil {
		return errors.Wrap(errors.KindStorage, "storage.rollback", fmt.Sprintf("rollback of %s failed", version), err)
	}
	return nil
}
