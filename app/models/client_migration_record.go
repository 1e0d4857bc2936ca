package models

import "time"

// ClientMigrationRecord is the immutable pre-migration snapshot of an
// organization's billing state. It is created before any billing field of the
// organization is mutated and is the basis for audit reporting and reversal.
// One active row exists per organization; a retry deletes and recreates it.
type ClientMigrationRecord struct {
	ID                    uint       `gorm:"primaryKey" json:"id"`
	ProviderID            uint       `gorm:"not null;index" json:"provider_id"`
	OrganizationID        uint       `gorm:"not null;uniqueIndex:ux_client_migration_records_org" json:"organization_id"`
	Plan                  string     `gorm:"type:varchar(64);not null" json:"plan"`
	Seats                 int        `gorm:"not null;default:0" json:"seats"`
	StorageUsedGB         int64      `gorm:"not null;default:0" json:"storage_used_gb"`
	StorageLimitGB        int64      `gorm:"not null;default:0" json:"storage_limit_gb"`
	APIAccess             bool       `gorm:"not null;default:false" json:"api_access"`
	SSOEnabled            bool       `gorm:"not null;default:false" json:"sso_enabled"`
	AuditLogEnabled       bool       `gorm:"not null;default:false" json:"audit_log_enabled"`
	MaxProjects           int        `gorm:"not null;default:0" json:"max_projects"`
	GatewayCustomerID     string     `gorm:"type:varchar(191);not null;default:''" json:"gateway_customer_id"`
	GatewaySubscriptionID string     `gorm:"type:varchar(191);not null;default:''" json:"gateway_subscription_id"`
	SubscriptionExpiresAt *time.Time `gorm:"type:timestamp;default:null" json:"subscription_expires_at,omitempty"`
	AutoscaleSeatCap      *int       `gorm:"default:null" json:"autoscale_seat_cap,omitempty"`
	Status                string     `gorm:"type:varchar(32);not null" json:"status"`
	CreatedAt             time.Time  `gorm:"autoCreateTime" json:"created_at"`
}
