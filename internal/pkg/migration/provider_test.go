package migration

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helioscale/billmigrate/app/models"
	"github.com/helioscale/billmigrate/internal/pkg/gateway"
	"github.com/helioscale/billmigrate/internal/pkg/plans"
)

// seedScenarioA wires provider 1 with Org1 (Teams family, 5 seats, active
// subscription with a draft invoice) and Org2 (Enterprise family, 10 seats,
// no gateway ids).
func seedScenarioA(h *harness) {
	h.providers.providers[1] = &models.Provider{
		ID:     1,
		Name:   "Northwind MSP",
		Type:   models.ProviderTypeReseller,
		Status: models.ProviderStatusCreated,
	}
	h.orgs.orgs[10] = &models.Organization{
		ID:                    10,
		Name:                  "Org One",
		Plan:                  string(plans.PlanTeamsAnnual),
		Seats:                 5,
		Enabled:               true,
		GatewayCustomerID:     "cus_10",
		GatewaySubscriptionID: "sub_10",
		Status:                models.OrganizationStatusActive,
	}
	h.orgs.orgs[20] = &models.Organization{
		ID:      20,
		Name:    "Org Two",
		Plan:    string(plans.PlanEnterpriseAnnual),
		Seats:   10,
		Enabled: true,
		Status:  models.OrganizationStatusActive,
	}
	h.links.links = []models.ProviderOrganizationLink{
		{ProviderID: 1, OrganizationID: 10, Plan: string(plans.PlanTeamsAnnual), Seats: 5},
		{ProviderID: 1, OrganizationID: 20, Plan: string(plans.PlanEnterpriseAnnual), Seats: 10},
	}
	h.gw.subs["sub_10"] = &gateway.Subscription{
		ID:              "sub_10",
		CustomerID:      "cus_10",
		Status:          gateway.SubscriptionStatusActive,
		LatestInvoiceID: "in_10",
	}
	h.gw.invoices["in_10"] = &gateway.Invoice{ID: "in_10", Status: gateway.InvoiceStatusDraft}
	h.gw.customers["cus_10"] = &gateway.Customer{
		ID:           "cus_10",
		Name:         "Org One",
		Email:        "billing@orgone.test",
		AddressLine1: "1 Main St",
		City:         "Hamburg",
		Country:      "DE",
		TaxIDs:       []gateway.TaxID{{Type: "eu_vat", Value: "DE987654321"}},
	}
}

func TestMigrateScenarioA(t *testing.T) {
	h := newHarness()
	seedScenarioA(h)

	require.NoError(t, h.migrator.Migrate(context.Background(), 1))

	// Org1's subscription was canceled with proration and invoiced, and the
	// draft invoice was finalized.
	require.Len(t, h.gw.cancels, 1)
	assert.True(t, h.gw.cancels[0].Prorate)
	assert.True(t, h.gw.cancels[0].InvoiceNow)
	assert.Equal(t, cancellationComment, h.gw.cancels[0].Comment)
	assert.Equal(t, []string{"in_10"}, h.gw.finalized)

	// Both organizations are managed with cleared subscription linkage.
	for id, wantPlan := range map[uint]plans.PlanID{10: plans.PlanTeamsMonthly, 20: plans.PlanEnterpriseMonthly} {
		org := h.orgs.orgs[id]
		assert.Equal(t, models.OrganizationStatusManaged, org.Status, "org %d", id)
		assert.Equal(t, string(wantPlan), org.Plan, "org %d", id)
		assert.Empty(t, org.GatewaySubscriptionID, "org %d", id)
		assert.Nil(t, org.SubscriptionExpiresAt, "org %d", id)
		assert.Nil(t, org.AutoscaleSeatCap, "org %d", id)
	}

	// Tier plan configs converged on the per-tier seat sums.
	teams := h.configs.configs[configKey(1, string(plans.TierFamilyTeams))]
	require.NotNil(t, teams)
	assert.Equal(t, 5, teams.SeatMinimum)
	assert.Equal(t, 5, teams.AllocatedSeats)
	enterprise := h.configs.configs[configKey(1, string(plans.TierFamilyEnterprise))]
	require.NotNil(t, enterprise)
	assert.Equal(t, 10, enterprise.SeatMinimum)

	// Provider got a templated customer with the fixed discount, a
	// subscription seeded with seat minimums, and ended Billable.
	provider := h.providers.providers[1]
	assert.Equal(t, models.ProviderStatusBillable, provider.Status)
	require.NotEmpty(t, provider.GatewayCustomerID)
	require.NotEmpty(t, provider.GatewaySubscriptionID)

	require.Len(t, h.gw.createdCustParams, 1)
	assert.Equal(t, "Northwind MSP", h.gw.createdCustParams[0].Name)
	assert.Equal(t, "1 Main St", h.gw.createdCustParams[0].AddressLine1)
	assert.NotEmpty(t, h.gw.createdCustParams[0].CouponID)
	require.Len(t, h.gw.createdCustParams[0].TaxIDs, 1)

	require.Len(t, h.gw.createdSubParams, 1)
	items := h.gw.createdSubParams[0].Items
	require.Len(t, items, 2)
	teamsPrice, _ := plans.SeatPriceID(plans.TierFamilyTeams)
	enterprisePrice, _ := plans.SeatPriceID(plans.TierFamilyEnterprise)
	assert.Equal(t, teamsPrice, items[0].PriceID)
	assert.Equal(t, int64(5), items[0].Quantity)
	assert.Equal(t, enterprisePrice, items[1].PriceID)
	assert.Equal(t, int64(10), items[1].Quantity)

	// Progress trackers ended Completed.
	p, err := h.progress.GetProvider(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, ProviderCompleted, p.Checkpoint)
	assert.Equal(t, []uint{10, 20}, p.OrganizationIDs)
	for _, orgID := range []uint{10, 20} {
		c, err := h.progress.GetClient(context.Background(), 1, orgID)
		require.NoError(t, err)
		require.NotNil(t, c)
		assert.Equal(t, ClientCompleted, c.Checkpoint)
	}
}

func TestMigrateScenarioBNoClients(t *testing.T) {
	h := newHarness()
	h.providers.providers[1] = &models.Provider{
		ID:     1,
		Name:   "Empty MSP",
		Type:   models.ProviderTypeReseller,
		Status: models.ProviderStatusCreated,
	}

	require.NoError(t, h.migrator.Migrate(context.Background(), 1))

	assert.Equal(t, models.ProviderStatusCreated, h.providers.providers[1].Status)
	assert.Zero(t, h.gw.mutationCount())

	result, err := h.projector.GetResult(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.NoClients)
	assert.Equal(t, ProviderNoClients, result.Checkpoint)
	assert.Empty(t, result.Clients)
}

func TestMigrateScenarioCReinvocation(t *testing.T) {
	h := newHarness()
	seedScenarioA(h)
	require.NoError(t, h.migrator.Migrate(context.Background(), 1))

	recordsBefore := len(h.records.records)
	cancelsBefore := len(h.gw.cancels)
	teamsBefore := *h.configs.configs[configKey(1, string(plans.TierFamilyTeams))]

	// The provider is Billable now, so re-invocation is a silent no-op.
	require.NoError(t, h.migrator.Migrate(context.Background(), 1))

	assert.Equal(t, recordsBefore, len(h.records.records))
	assert.Equal(t, cancelsBefore, len(h.gw.cancels))
	teamsAfter := *h.configs.configs[configKey(1, string(plans.TierFamilyTeams))]
	assert.Equal(t, teamsBefore.SeatMinimum, teamsAfter.SeatMinimum)
	assert.Equal(t, models.ProviderStatusBillable, h.providers.providers[1].Status)
}

func TestMigrateResumesAfterFailure(t *testing.T) {
	h := newHarness()
	seedScenarioA(h)
	h.gw.failCreateSubscription = errors.New("gateway unavailable")

	err := h.migrator.Migrate(context.Background(), 1)
	require.Error(t, err)

	// Clients migrated, customer provisioned, but no subscription yet and
	// the provider never became billable.
	assert.Len(t, h.gw.cancels, 1)
	assert.Equal(t, models.ProviderStatusCreated, h.providers.providers[1].Status)
	assert.Empty(t, h.providers.providers[1].GatewaySubscriptionID)

	p, err := h.progress.GetProvider(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, ProviderCustomerSetup, p.Checkpoint)

	// Retry resumes: completed clients are skipped, steps 5-9 re-apply
	// idempotently, and the saga converges.
	require.NoError(t, h.migrator.Migrate(context.Background(), 1))

	assert.Len(t, h.gw.cancels, 1, "no duplicate cancellations on retry")
	assert.Equal(t, 2, h.records.creates, "one record per organization, none recreated on retry")
	assert.Equal(t, models.ProviderStatusBillable, h.providers.providers[1].Status)
	assert.NotEmpty(t, h.providers.providers[1].GatewaySubscriptionID)
	// Only one customer was ever created for the provider.
	assert.Len(t, h.gw.createdCustParams, 1)

	p, err = h.progress.GetProvider(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, ProviderCompleted, p.Checkpoint)
}

func TestMigrateReconcilesExistingSubscription(t *testing.T) {
	h := newHarness()
	seedScenarioA(h)
	// The provider already carries gateway objects from an earlier partial
	// run; the saga reconciles seat minimums instead of creating.
	h.providers.providers[1].GatewayCustomerID = "cus_p1"
	h.providers.providers[1].GatewaySubscriptionID = "sub_p1"
	h.gw.customers["cus_p1"] = &gateway.Customer{ID: "cus_p1", Name: "Northwind MSP"}
	teamsPrice, _ := plans.SeatPriceID(plans.TierFamilyTeams)
	h.gw.subs["sub_p1"] = &gateway.Subscription{
		ID:         "sub_p1",
		CustomerID: "cus_p1",
		Status:     gateway.SubscriptionStatusActive,
		Items:      []gateway.SubscriptionItem{{ID: "si_1", PriceID: teamsPrice, Quantity: 2}},
	}

	require.NoError(t, h.migrator.Migrate(context.Background(), 1))

	assert.Empty(t, h.gw.createdCustParams, "existing customer is kept")
	assert.Empty(t, h.gw.createdSubParams, "existing subscription is kept")
	require.Len(t, h.gw.updates, 1)
	items := h.gw.updates[0].Items
	require.Len(t, items, 2)
	assert.Equal(t, "si_1", items[0].ID, "existing teams item is updated in place")
	assert.Equal(t, int64(5), items[0].Quantity)
	assert.Empty(t, items[1].ID, "enterprise item is new")
	assert.Equal(t, int64(10), items[1].Quantity)
	assert.Equal(t, models.ProviderStatusBillable, h.providers.providers[1].Status)
}

func TestMigrateIneligibleProviderWritesNothing(t *testing.T) {
	tests := []struct {
		name     string
		provider *models.Provider
	}{
		{name: "missing provider", provider: nil},
		{name: "wrong type", provider: &models.Provider{ID: 1, Type: "direct", Status: models.ProviderStatusCreated}},
		{name: "already billable", provider: &models.Provider{ID: 1, Type: models.ProviderTypeReseller, Status: models.ProviderStatusBillable}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			if tt.provider != nil {
				h.providers.providers[tt.provider.ID] = tt.provider
			}

			require.NoError(t, h.migrator.Migrate(context.Background(), 1))

			assert.Zero(t, h.storeWrites(), "ineligible provider must cause zero store writes")
			assert.Zero(t, h.gw.mutationCount())
		})
	}
}

func TestApplyCreditComputation(t *testing.T) {
	h := newHarness()
	h.providers.providers[1] = &models.Provider{
		ID:     1,
		Name:   "Credit MSP",
		Type:   models.ProviderTypeReseller,
		Status: models.ProviderStatusCreated,
	}
	// Three clients: mixed balances, one on a legacy annual plan.
	h.orgs.orgs[10] = &models.Organization{ID: 10, Plan: string(plans.PlanTeamsAnnual), Enabled: true, GatewayCustomerID: "cus_10", Status: models.OrganizationStatusActive}
	h.orgs.orgs[20] = &models.Organization{ID: 20, Plan: string(plans.PlanTeamsLegacyAnnual), Enabled: true, GatewayCustomerID: "cus_20", Status: models.OrganizationStatusActive}
	h.orgs.orgs[30] = &models.Organization{ID: 30, Plan: string(plans.PlanEnterpriseAnnual), Enabled: true, GatewayCustomerID: "cus_30", Status: models.OrganizationStatusActive}
	h.links.links = []models.ProviderOrganizationLink{
		{ProviderID: 1, OrganizationID: 10, Plan: string(plans.PlanTeamsAnnual), Seats: 4},
		{ProviderID: 1, OrganizationID: 20, Plan: string(plans.PlanTeamsLegacyAnnual), Seats: 3},
		{ProviderID: 1, OrganizationID: 30, Plan: string(plans.PlanEnterpriseAnnual), Seats: 8},
	}
	h.gw.customers["cus_10"] = &gateway.Customer{ID: "cus_10", BalanceCents: -2500}
	h.gw.customers["cus_20"] = &gateway.Customer{ID: "cus_20", BalanceCents: 1000}
	h.gw.customers["cus_30"] = &gateway.Customer{ID: "cus_30", BalanceCents: 0}

	require.NoError(t, h.migrator.Migrate(context.Background(), 1))

	provider := h.providers.providers[1]
	require.Len(t, h.gw.txns, 2)
	balanceTxn := h.gw.txns[0]
	assert.Equal(t, provider.GatewayCustomerID, balanceTxn.CustomerID)
	assert.Equal(t, int64(-1500), balanceTxn.AmountCents, "sum of client balances")

	rebateTxn := h.gw.txns[1]
	assert.Equal(t, provider.GatewayCustomerID, rebateTxn.CustomerID)
	wantRebate := -3 * 12 * plans.LegacyAnnualRebateCentsPerSeatMonth
	assert.Equal(t, wantRebate, rebateTxn.AmountCents, "seats x 12 x rate, negated")
}

func TestApplyCreditSkipsZeroTransactions(t *testing.T) {
	h := newHarness()
	h.providers.providers[1] = &models.Provider{
		ID:     1,
		Name:   "Zero MSP",
		Type:   models.ProviderTypeReseller,
		Status: models.ProviderStatusCreated,
	}
	// Balances cancel out and nothing is on a legacy annual plan.
	h.orgs.orgs[10] = &models.Organization{ID: 10, Plan: string(plans.PlanTeamsAnnual), Enabled: true, GatewayCustomerID: "cus_10", Status: models.OrganizationStatusActive}
	h.orgs.orgs[20] = &models.Organization{ID: 20, Plan: string(plans.PlanTeamsAnnual), Enabled: true, GatewayCustomerID: "cus_20", Status: models.OrganizationStatusActive}
	h.links.links = []models.ProviderOrganizationLink{
		{ProviderID: 1, OrganizationID: 10, Plan: string(plans.PlanTeamsAnnual), Seats: 2},
		{ProviderID: 1, OrganizationID: 20, Plan: string(plans.PlanTeamsAnnual), Seats: 2},
	}
	h.gw.customers["cus_10"] = &gateway.Customer{ID: "cus_10", BalanceCents: 700}
	h.gw.customers["cus_20"] = &gateway.Customer{ID: "cus_20", BalanceCents: -700}

	require.NoError(t, h.migrator.Migrate(context.Background(), 1))

	assert.Empty(t, h.gw.txns, "zero amounts are never posted")
	assert.Equal(t, models.ProviderStatusBillable, h.providers.providers[1].Status)
}

func TestSeatMinimumCoversTierSeats(t *testing.T) {
	h := newHarness()
	seedScenarioA(h)
	require.NoError(t, h.migrator.Migrate(context.Background(), 1))

	for _, family := range []plans.TierFamily{plans.TierFamilyTeams, plans.TierFamilyEnterprise} {
		config := h.configs.configs[configKey(1, string(family))]
		require.NotNil(t, config, "tier %s", family)

		seats := 0
		for _, link := range h.links.links {
			if plans.Classify(plans.PlanID(link.Plan)) == family {
				seats += link.Seats
			}
		}
		assert.GreaterOrEqual(t, config.SeatMinimum, seats, "tier %s", family)
	}
}
