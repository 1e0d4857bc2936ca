package models

import "time"

// ProviderPlanConfig holds the per-tier seat commitment of a provider. The
// seat minimum is the contractually guaranteed minimum billed seat count for
// that tier.
type ProviderPlanConfig struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ProviderID     uint      `gorm:"not null;uniqueIndex:ux_provider_plan_configs_provider_tier,priority:1" json:"provider_id"`
	TierFamily     string    `gorm:"type:varchar(32);not null;uniqueIndex:ux_provider_plan_configs_provider_tier,priority:2" json:"tier_family"`
	SeatMinimum    int       `gorm:"not null;default:0" json:"seat_minimum"`
	PurchasedSeats int       `gorm:"not null;default:0" json:"purchased_seats"`
	AllocatedSeats int       `gorm:"not null;default:0" json:"allocated_seats"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
