package repository

import (
	"github.com/helioscale/billmigrate/app/models"
	"gorm.io/gorm"
)

type planConfigRepository struct {
	db *gorm.DB
}

// NewPlanConfigRepository creates a plan config repository backed by GORM.
func NewPlanConfigRepository(db *gorm.DB) PlanConfigRepository {
	return &planConfigRepository{db: db}
}

func (r *planConfigRepository) GetByProviderID(providerID uint) ([]models.ProviderPlanConfig, error) {
	var configs []models.ProviderPlanConfig
	err := r.db.Where("provider_id = ?", providerID).Find(&configs).Error
	return configs, err
}

func (r *planConfigRepository) GetByProviderAndTier(providerID uint, tierFamily string) (*models.ProviderPlanConfig, error) {
	var config models.ProviderPlanConfig
	err := r.db.Where("provider_id = ? AND tier_family = ?", providerID, tierFamily).First(&config).Error
	if err != nil {
		return nil, err
	}
	return &config, nil
}

func (r *planConfigRepository) Create(config *models.ProviderPlanConfig) error {
	return r.db.Create(config).Error
}

func (r *planConfigRepository) Update(config *models.ProviderPlanConfig) error {
	return r.db.Save(config).Error
}
