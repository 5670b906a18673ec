package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/askgov/internal/catalog"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationNormalizePostStatus = "2026-09-14_normalize_post_status"
	migrationDetachForeignTopics = "2026-10-02_detach_foreign_topic_parents"
)

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

func catalogMigrations() []migrationDefinition {
	return []migrationDefinition{
		{name: migrationNormalizePostStatus, apply: normalizePostStatus},
		{name: migrationDetachForeignTopics, apply: detachForeignTopicParents},
	}
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	for _, migration := range catalogMigrations() {
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

// normalizePostStatus upper-cases statuses written by older importers.
func normalizePostStatus(db *gorm.DB) error {
	return db.Model(&catalog.Post{}).
		Where("status <> UPPER(status)").
		Update("status", gorm.Expr("UPPER(status)")).Error
}

// detachForeignTopicParents turns topics whose parent belongs to another agency into roots, so
// each agency's topic forest stays closed under its own ids.
func detachForeignTopicParents(db *gorm.DB) error {
	foreignParents := db.Table("topics AS child").
		Select("child.id").
		Joins("JOIN topics AS parent ON parent.id = child.parent_id").
		Where("parent.agency_id <> child.agency_id")
	return db.Model(&catalog.Topic{}).
		Where("id IN (?)", foreignParents).
		Update("parent_id", nil).Error
}
