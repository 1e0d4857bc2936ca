package repository

import (
	"github.com/helioscale/billmigrate/app/models"
	"gorm.io/gorm"
)

type migrationRecordRepository struct {
	db *gorm.DB
}

// NewMigrationRecordRepository creates a migration record repository backed by GORM.
func NewMigrationRecordRepository(db *gorm.DB) MigrationRecordRepository {
	return &migrationRecordRepository{db: db}
}

func (r *migrationRecordRepository) GetByOrganizationID(orgID uint) (*models.ClientMigrationRecord, error) {
	var record models.ClientMigrationRecord
	if err := r.db.Where("organization_id = ?", orgID).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *migrationRecordRepository) Create(record *models.ClientMigrationRecord) error {
	return r.db.Create(record).Error
}

// DeleteByOrganizationID removes the organization's active record. Deleting a
// non-existent record is a no-op so retries can always delete-then-recreate.
func (r *migrationRecordRepository) DeleteByOrganizationID(orgID uint) error {
	return r.db.Where("organization_id = ?", orgID).Delete(&models.ClientMigrationRecord{}).Error
}
