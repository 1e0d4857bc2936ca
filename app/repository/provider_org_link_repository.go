package repository

import (
	"github.com/helioscale/billmigrate/app/models"
	"gorm.io/gorm"
)

type providerOrganizationLinkRepository struct {
	db *gorm.DB
}

// NewProviderOrganizationLinkRepository creates a link repository backed by GORM.
func NewProviderOrganizationLinkRepository(db *gorm.DB) ProviderOrganizationLinkRepository {
	return &providerOrganizationLinkRepository{db: db}
}

func (r *providerOrganizationLinkRepository) ListByProviderID(providerID uint) ([]models.ProviderOrganizationLink, error) {
	var links []models.ProviderOrganizationLink
	err := r.db.Where("provider_id = ?", providerID).Order("organization_id asc").Find(&links).Error
	return links, err
}
