package repository

import (
	"github.com/helioscale/billmigrate/app/models"
	"gorm.io/gorm"
)

type providerRepository struct {
	db *gorm.DB
}

// NewProviderRepository creates a provider repository backed by GORM.
func NewProviderRepository(db *gorm.DB) ProviderRepository {
	return &providerRepository{db: db}
}

func (r *providerRepository) GetByID(id uint) (*models.Provider, error) {
	var provider models.Provider
	if err := r.db.First(&provider, id).Error; err != nil {
		return nil, err
	}
	return &provider, nil
}

func (r *providerRepository) Update(provider *models.Provider) error {
	return r.db.Save(provider).Error
}
