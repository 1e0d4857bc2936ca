package models

import "time"

const (
	OrganizationStatusActive  = "active"
	OrganizationStatusManaged = "managed"
)

// Organization is a client tenant. Plan-derived feature columns are replaced
// wholesale when the organization is converted to a managed plan.
type Organization struct {
	ID                    uint       `gorm:"primaryKey" json:"id"`
	Name                  string     `gorm:"type:varchar(191);not null" json:"name"`
	Plan                  string     `gorm:"type:varchar(64);not null;index" json:"plan"`
	Seats                 int        `gorm:"not null;default:0" json:"seats"`
	Enabled               bool       `gorm:"not null;default:true" json:"enabled"`
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
	Status                string     `gorm:"type:varchar(32);not null;default:'active';index" json:"status"`
	CreatedAt             time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
