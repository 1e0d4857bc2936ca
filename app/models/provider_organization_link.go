package models

import "time"

// ProviderOrganizationLink associates a client organization with its provider
// and carries the billing attributes the provider sees for that client. It is
// the enumeration source when a provider migration collects its clients.
type ProviderOrganizationLink struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ProviderID     uint      `gorm:"not null;index:idx_provider_org_links_provider" json:"provider_id"`
	OrganizationID uint      `gorm:"not null;uniqueIndex:ux_provider_org_links_org" json:"organization_id"`
	Plan           string    `gorm:"type:varchar(64);not null" json:"plan"`
	Seats          int       `gorm:"not null;default:0" json:"seats"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}
