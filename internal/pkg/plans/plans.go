package plans

import "strings"

// TierFamily is the tagged tier classification used everywhere a migration
// needs to know which consolidated tier a plan belongs to. Classification is
// resolved once from the catalog, never parsed out of display names.
type TierFamily string

const (
	TierFamilyTeams      TierFamily = "teams"
	TierFamilyEnterprise TierFamily = "enterprise"
	TierFamilyOther      TierFamily = "other"
)

// PlanID identifies a catalog plan.
type PlanID string

const (
	PlanTeamsMonthly           PlanID = "teams_monthly"
	PlanTeamsAnnual            PlanID = "teams_annual"
	PlanTeamsLegacyAnnual      PlanID = "teams_legacy_annual"
	PlanEnterpriseMonthly      PlanID = "enterprise_monthly"
	PlanEnterpriseAnnual       PlanID = "enterprise_annual"
	PlanEnterpriseLegacyAnnual PlanID = "enterprise_legacy_annual"
	PlanStarter                PlanID = "starter"
)

const (
	CadenceMonthly = "monthly"
	CadenceAnnual  = "annual"
)

// LegacyAnnualRebateCentsPerSeatMonth is the flat per-seat-per-month rebate
// rate credited to providers absorbing clients from legacy annual plans.
const LegacyAnnualRebateCentsPerSeatMonth int64 = 400

// Defaults is the full set of plan-derived organization attributes. When an
// organization changes plan during migration these values replace the
// organization's current ones; nothing is merged.
type Defaults struct {
	Family          TierFamily
	Cadence         string
	BaseStorageGB   int64
	APIAccess       bool
	SSOEnabled      bool
	AuditLogEnabled bool
	MaxProjects     int
	GatewayPriceID  string
	LegacyAnnual    bool
}

var catalog = map[PlanID]Defaults{
	PlanTeamsMonthly: {
		Family:         TierFamilyTeams,
		Cadence:        CadenceMonthly,
		BaseStorageGB:  250,
		APIAccess:      true,
		MaxProjects:    50,
		GatewayPriceID: "price_teams_monthly",
	},
	PlanTeamsAnnual: {
		Family:         TierFamilyTeams,
		Cadence:        CadenceAnnual,
		BaseStorageGB:  250,
		APIAccess:      true,
		MaxProjects:    50,
		GatewayPriceID: "price_teams_annual",
	},
	PlanTeamsLegacyAnnual: {
		Family:         TierFamilyTeams,
		Cadence:        CadenceAnnual,
		BaseStorageGB:  100,
		APIAccess:      true,
		MaxProjects:    25,
		GatewayPriceID: "price_teams_legacy_annual",
		LegacyAnnual:   true,
	},
	PlanEnterpriseMonthly: {
		Family:          TierFamilyEnterprise,
		Cadence:         CadenceMonthly,
		BaseStorageGB:   1000,
		APIAccess:       true,
		SSOEnabled:      true,
		AuditLogEnabled: true,
		MaxProjects:     0, // unlimited
		GatewayPriceID:  "price_enterprise_monthly",
	},
	PlanEnterpriseAnnual: {
		Family:          TierFamilyEnterprise,
		Cadence:         CadenceAnnual,
		BaseStorageGB:   1000,
		APIAccess:       true,
		SSOEnabled:      true,
		AuditLogEnabled: true,
		MaxProjects:     0,
		GatewayPriceID:  "price_enterprise_annual",
	},
	PlanEnterpriseLegacyAnnual: {
		Family:          TierFamilyEnterprise,
		Cadence:         CadenceAnnual,
		BaseStorageGB:   500,
		APIAccess:       true,
		SSOEnabled:      true,
		AuditLogEnabled: true,
		MaxProjects:     0,
		GatewayPriceID:  "price_enterprise_legacy_annual",
		LegacyAnnual:    true,
	},
	PlanStarter: {
		Family:         TierFamilyOther,
		Cadence:        CadenceMonthly,
		BaseStorageGB:  10,
		MaxProjects:    3,
		GatewayPriceID: "price_starter_monthly",
	},
}

// seatPriceIDs are the per-tier seat prices used on provider subscriptions.
var seatPriceIDs = map[TierFamily]string{
	TierFamilyTeams:      "price_provider_teams_seat",
	TierFamilyEnterprise: "price_provider_enterprise_seat",
}

// StorageOveragePriceID is the per-GB storage line item price used when a
// reversed subscription has to cover storage beyond its plan allotment.
const StorageOveragePriceID = "price_storage_overage_gb"

// Lookup returns the catalog defaults for a plan.
func Lookup(id PlanID) (Defaults, bool) {
	d, ok := catalog[normalize(id)]
	return d, ok
}

// Classify resolves the tier family of a plan; unknown plans are Other.
func Classify(id PlanID) TierFamily {
	d, ok := catalog[normalize(id)]
	if !ok {
		return TierFamilyOther
	}
	return d.Family
}

// TargetPlan returns the consolidated monthly plan a migrated client lands
// on: Teams-family plans convert to monthly Teams, everything else eligible
// converts to monthly Enterprise.
func TargetPlan(family TierFamily) PlanID {
	if family == TierFamilyTeams {
		return PlanTeamsMonthly
	}
	return PlanEnterpriseMonthly
}

// IsLegacyAnnual reports whether a plan belongs to the legacy annual set that
// earns the flat provider rebate.
func IsLegacyAnnual(id PlanID) bool {
	d, ok := catalog[normalize(id)]
	return ok && d.LegacyAnnual
}

// SeatPriceID returns the gateway price used for a tier's seat-minimum line
// item on the provider subscription.
func SeatPriceID(family TierFamily) (string, bool) {
	id, ok := seatPriceIDs[family]
	return id, ok
}

func normalize(id PlanID) PlanID {
	return PlanID(strings.ToLower(strings.TrimSpace(string(id))))
}
