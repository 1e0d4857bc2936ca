package repository

import (
	"github.com/helioscale/billmigrate/app/models"
	"gorm.io/gorm"
)

// ProviderRepository defines the interface for provider datastore operations
type ProviderRepository interface {
	GetByID(id uint) (*models.Provider, error)
	Update(provider *models.Provider) error
}

// OrganizationRepository defines the interface for client organization operations
type OrganizationRepository interface {
	GetByID(id uint) (*models.Organization, error)
	Update(org *models.Organization) error
}

// MigrationRecordRepository defines the interface for pre-migration snapshots.
// One active record exists per organization.
type MigrationRecordRepository interface {
	GetByOrganizationID(orgID uint) (*models.ClientMigrationRecord, error)
	Create(record *models.ClientMigrationRecord) error
	DeleteByOrganizationID(orgID uint) error
}

// PlanConfigRepository defines the interface for per-tier provider seat configs
type PlanConfigRepository interface {
	GetByProviderID(providerID uint) ([]models.ProviderPlanConfig, error)
	GetByProviderAndTier(providerID uint, tierFamily string) (*models.ProviderPlanConfig, error)
	Create(config *models.ProviderPlanConfig) error
	Update(config *models.ProviderPlanConfig) error
}

// ProviderOrganizationLinkRepository lists the client organizations attached
// to a provider together with their billing attributes
type ProviderOrganizationLinkRepository interface {
	ListByProviderID(providerID uint) ([]models.ProviderOrganizationLink, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	Provider        ProviderRepository
	Organization    OrganizationRepository
	MigrationRecord MigrationRecordRepository
	PlanConfig      PlanConfigRepository
	ProviderOrgLink ProviderOrganizationLinkRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Provider:        NewProviderRepository(db),
		Organization:    NewOrganizationRepository(db),
		MigrationRecord: NewMigrationRecordRepository(db),
		PlanConfig:      NewPlanConfigRepository(db),
		ProviderOrgLink: NewProviderOrganizationLinkRepository(db),
	}
}
