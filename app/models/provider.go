package models

import "time"

const (
	ProviderTypeReseller       = "reseller"
	ProviderTypeManagedService = "managed_service"
)

const (
	ProviderStatusCreated  = "created"
	ProviderStatusBillable = "billable"
)

// Provider is a reseller/managed-service entity that bills on behalf of its
// client organizations once consolidated billing is in place.
type Provider struct {
	ID                    uint      `gorm:"primaryKey" json:"id"`
	Name                  string    `gorm:"type:varchar(191);not null" json:"name"`
	Type                  string    `gorm:"type:varchar(32);not null;index" json:"type"`
	Status                string    `gorm:"type:varchar(32);not null;default:'created';index" json:"status"`
	GatewayCustomerID     string    `gorm:"type:varchar(191);not null;default:''" json:"gateway_customer_id"`
	GatewaySubscriptionID string    `gorm:"type:varchar(191);not null;default:''" json:"gateway_subscription_id"`
	CreatedAt             time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsReseller reports whether the provider type participates in consolidated
// billing migrations.
func (p *Provider) IsReseller() bool {
	return p.Type == ProviderTypeReseller || p.Type == ProviderTypeManagedService
}
