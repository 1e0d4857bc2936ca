package plans

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		in   PlanID
		want TierFamily
	}{
		{in: PlanTeamsMonthly, want: TierFamilyTeams},
		{in: PlanTeamsAnnual, want: TierFamilyTeams},
		{in: PlanTeamsLegacyAnnual, want: TierFamilyTeams},
		{in: PlanEnterpriseMonthly, want: TierFamilyEnterprise},
		{in: PlanEnterpriseLegacyAnnual, want: TierFamilyEnterprise},
		{in: PlanStarter, want: TierFamilyOther},
		{in: "TEAMS_ANNUAL", want: TierFamilyTeams},
		{in: "something_unknown", want: TierFamilyOther},
		{in: "", want: TierFamilyOther},
	}

	for _, tt := range tests {
		if got := Classify(tt.in); got != tt.want {
			t.Fatalf("Classify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTargetPlan(t *testing.T) {
	if got := TargetPlan(TierFamilyTeams); got != PlanTeamsMonthly {
		t.Fatalf("TargetPlan(teams) = %q, want %q", got, PlanTeamsMonthly)
	}
	if got := TargetPlan(TierFamilyEnterprise); got != PlanEnterpriseMonthly {
		t.Fatalf("TargetPlan(enterprise) = %q, want %q", got, PlanEnterpriseMonthly)
	}
	// Anything that slipped past eligibility still converts to Enterprise.
	if got := TargetPlan(TierFamilyOther); got != PlanEnterpriseMonthly {
		t.Fatalf("TargetPlan(other) = %q, want %q", got, PlanEnterpriseMonthly)
	}
}

func TestIsLegacyAnnual(t *testing.T) {
	for _, id := range []PlanID{PlanTeamsLegacyAnnual, PlanEnterpriseLegacyAnnual} {
		if !IsLegacyAnnual(id) {
			t.Fatalf("expected %q to be legacy annual", id)
		}
	}
	for _, id := range []PlanID{PlanTeamsMonthly, PlanTeamsAnnual, PlanEnterpriseMonthly, PlanStarter, "unknown"} {
		if IsLegacyAnnual(id) {
			t.Fatalf("expected %q to not be legacy annual", id)
		}
	}
}

func TestTargetPlanDefaultsAreMonthly(t *testing.T) {
	for _, family := range []TierFamily{TierFamilyTeams, TierFamilyEnterprise} {
		d, ok := Lookup(TargetPlan(family))
		if !ok {
			t.Fatalf("target plan for %q missing from catalog", family)
		}
		if d.Cadence != CadenceMonthly {
			t.Fatalf("target plan for %q has cadence %q, want monthly", family, d.Cadence)
		}
		if d.Family != family {
			t.Fatalf("target plan for %q classified as %q", family, d.Family)
		}
	}
}

func TestSeatPriceID(t *testing.T) {
	for _, family := range []TierFamily{TierFamilyTeams, TierFamilyEnterprise} {
		if _, ok := SeatPriceID(family); !ok {
			t.Fatalf("expected seat price for %q", family)
		}
	}
	if _, ok := SeatPriceID(TierFamilyOther); ok {
		t.Fatalf("did not expect a seat price for the other family")
	}
}
