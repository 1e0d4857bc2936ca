package migration

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/helioscale/billmigrate/app/models"
	"github.com/helioscale/billmigrate/app/repository"
	"github.com/helioscale/billmigrate/internal/pkg/gateway"
	"github.com/helioscale/billmigrate/internal/pkg/money"
	"github.com/helioscale/billmigrate/internal/pkg/plans"
)

// ProviderMigrator runs the provider-level saga.
//
// Step order and resumption policy (checkpoints persist after each step):
//
//	validate provider      - silent no-op when ineligible
//	enumerate clients      - NoClients short-circuit when none
//	migrate clients        - skip-if-completed per client checkpoint
//	configure tier plans   - always re-applied (idempotent upsert)
//	ensure customer        - always re-applied (create only when absent)
//	ensure subscription    - always re-applied (create when absent, else
//	                         reconcile seat minimums)
//	apply credit           - always re-applied
//	finalize               - always re-applied
//
// There is no lock against concurrent invocations for the same provider;
// safety rests on the idempotency of the always-re-applied steps and the
// per-client checkpoint short-circuit.
type ProviderMigrator struct {
	gate      *EligibilityGate
	clients   *ClientMigrator
	providers repository.ProviderRepository
	configs   repository.PlanConfigRepository
	gw        gateway.BillingGateway
	billing   gateway.ProviderBilling
	progress  ProgressStore
}

// NewProviderMigrator wires a provider migrator.
func NewProviderMigrator(
	gate *EligibilityGate,
	clients *ClientMigrator,
	providers repository.ProviderRepository,
	configs repository.PlanConfigRepository,
	gw gateway.BillingGateway,
	billing gateway.ProviderBilling,
	progress ProgressStore,
) *ProviderMigrator {
	return &ProviderMigrator{
		gate:      gate,
		clients:   clients,
		providers: providers,
		configs:   configs,
		gw:        gw,
		billing:   billing,
		progress:  progress,
	}
}

// Migrate moves a provider and all its eligible clients to consolidated
// billing. Failure leaves the persisted checkpoints in place; the retry
// strategy is re-invoking Migrate, which resumes where work is left.
func (m *ProviderMigrator) Migrate(ctx context.Context, providerID uint) error {
	provider, err := m.gate.ValidateProvider(providerID)
	if err != nil {
		return err
	}
	if provider == nil {
		return nil
	}

	log.Infof("[ProviderMigration] migrating provider %d (%s)", provider.ID, provider.Name)
	if err := m.advance(ctx, providerID, ProviderStarted, nil); err != nil {
		return err
	}

	clients, err := m.gate.ValidateClients(ctx, providerID)
	if err != nil {
		return err
	}
	if len(clients) == 0 {
		log.Warnf("[ProviderMigration] provider %d has no eligible clients", providerID)
		return m.advance(ctx, providerID, ProviderNoClients, nil)
	}

	orgIDs := make([]uint, 0, len(clients))
	for _, client := range clients {
		orgIDs = append(orgIDs, client.Org.ID)
	}
	if err := m.advance(ctx, providerID, ProviderStarted, orgIDs); err != nil {
		return err
	}

	if err := m.migrateClients(ctx, providerID, clients); err != nil {
		return err
	}
	if err := m.configureTierPlans(ctx, providerID, clients); err != nil {
		return err
	}
	if err := m.ensureCustomer(ctx, provider, clients); err != nil {
		return err
	}
	if err := m.ensureSubscription(ctx, provider, clients); err != nil {
		return err
	}
	if err := m.applyCredit(ctx, provider, clients); err != nil {
		return err
	}
	if err := m.finalize(ctx, provider); err != nil {
		return err
	}

	log.Infof("[ProviderMigration] provider %d migrated", providerID)
	return nil
}

// migrateClients runs the per-client saga for every client whose tracker is
// not already Completed.
func (m *ProviderMigrator) migrateClients(ctx context.Context, providerID uint, clients []EligibleClient) error {
	for _, client := range clients {
		tracker, err := m.progress.GetClient(ctx, providerID, client.Org.ID)
		if err != nil {
			return err
		}
		if tracker != nil && tracker.Checkpoint == ClientCompleted {
			log.Infof("[ProviderMigration] organization %d already migrated, skipping", client.Org.ID)
			continue
		}
		if err := m.clients.Migrate(ctx, providerID, client); err != nil {
			return fmt.Errorf("migrate organization %d: %w", client.Org.ID, err)
		}
	}
	return m.advance(ctx, providerID, ProviderClientsMigrated, nil)
}

// configureTierPlans upserts one ProviderPlanConfig per tier. Seat minimum
// and allocated seats both converge on the sum of the migrated clients'
// seats in that tier, and are re-applied on every invocation.
func (m *ProviderMigrator) configureTierPlans(ctx context.Context, providerID uint, clients []EligibleClient) error {
	tiers := []struct {
		family     plans.TierFamily
		checkpoint ProviderCheckpoint
	}{
		{family: plans.TierFamilyTeams, checkpoint: ProviderTeamsPlanConfigured},
		{family: plans.TierFamilyEnterprise, checkpoint: ProviderEnterprisePlanConfigured},
	}

	for _, tier := range tiers {
		seats := 0
		for _, client := range clients {
			if client.Family == tier.family {
				seats += client.Link.Seats
			}
		}

		config, err := m.configs.GetByProviderAndTier(providerID, string(tier.family))
		switch {
		case err == nil:
			config.SeatMinimum = seats
			config.AllocatedSeats = seats
			if err := m.configs.Update(config); err != nil {
				return fmt.Errorf("update %s plan config for provider %d: %w", tier.family, providerID, err)
			}
		case isNotFound(err):
			config = &models.ProviderPlanConfig{
				ProviderID:     providerID,
				TierFamily:     string(tier.family),
				SeatMinimum:    seats,
				AllocatedSeats: seats,
			}
			if err := m.configs.Create(config); err != nil {
				return fmt.Errorf("create %s plan config for provider %d: %w", tier.family, providerID, err)
			}
		default:
			return fmt.Errorf("load %s plan config for provider %d: %w", tier.family, providerID, err)
		}

		if err := m.advance(ctx, providerID, tier.checkpoint, nil); err != nil {
			return err
		}
	}
	return nil
}

// ensureCustomer provisions the provider's gateway customer when absent,
// templated from any migrated client that has one.
func (m *ProviderMigrator) ensureCustomer(ctx context.Context, provider *models.Provider, clients []EligibleClient) error {
	if provider.GatewayCustomerID == "" {
		template, err := m.firstClientCustomer(ctx, clients)
		if err != nil {
			return err
		}
		if template == nil {
			log.Warnf("[ProviderMigration] no migrated client has a gateway customer, cannot template provider %d customer", provider.ID)
			return nil
		}

		customer, err := m.billing.CreateProviderCustomer(ctx, provider, template)
		if err != nil {
			return err
		}
		provider.GatewayCustomerID = customer.ID
		if err := m.providers.Update(provider); err != nil {
			return fmt.Errorf("store gateway customer on provider %d: %w", provider.ID, err)
		}
		log.Infof("[ProviderMigration] created gateway customer %s for provider %d", customer.ID, provider.ID)
	}
	return m.advance(ctx, provider.ID, ProviderCustomerSetup, nil)
}

// ensureSubscription creates the consolidated subscription when absent, or
// reconciles its seat minimums when present. Without a gateway customer the
// step is skipped and SubscriptionSetup stays unreached.
func (m *ProviderMigrator) ensureSubscription(ctx context.Context, provider *models.Provider, clients []EligibleClient) error {
	seatMinimums := m.seatMinimums(clients)

	if provider.GatewaySubscriptionID == "" {
		if provider.GatewayCustomerID == "" {
			log.Warnf("[ProviderMigration] provider %d has no gateway customer, skipping subscription setup", provider.ID)
			return nil
		}
		sub, err := m.billing.CreateProviderSubscription(ctx, provider, seatMinimums)
		if err != nil {
			return err
		}
		provider.GatewaySubscriptionID = sub.ID
		if err := m.providers.Update(provider); err != nil {
			return fmt.Errorf("store gateway subscription on provider %d: %w", provider.ID, err)
		}
		log.Infof("[ProviderMigration] created gateway subscription %s for provider %d", sub.ID, provider.ID)
	} else {
		if err := m.billing.UpdateSeatMinimums(ctx, provider, seatMinimums); err != nil {
			return err
		}
	}
	return m.advance(ctx, provider.ID, ProviderSubscriptionSetup, nil)
}

// applyCredit posts up to two balance transactions on the provider customer:
// the summed account balances of all migrated clients, and the flat rebate
// for clients absorbed from legacy annual plans. Each is posted only when
// non-zero.
func (m *ProviderMigrator) applyCredit(ctx context.Context, provider *models.Provider, clients []EligibleClient) error {
	customers, err := m.clientCustomers(ctx, clients)
	if err != nil {
		return err
	}

	total := money.Zero()
	for _, customer := range customers {
		total = total.Add(money.FromCents(customer.BalanceCents))
	}

	rebateSeats := 0
	for _, client := range clients {
		if plans.IsLegacyAnnual(plans.PlanID(client.Link.Plan)) {
			rebateSeats += client.Link.Seats
		}
	}
	rebate := money.FromCents(int64(rebateSeats) * 12 * plans.LegacyAnnualRebateCentsPerSeatMonth).Neg()

	if !total.IsZero() || !rebate.IsZero() {
		if provider.GatewayCustomerID == "" {
			return fmt.Errorf("provider %d has no gateway customer to credit: %w", provider.ID, gateway.ErrNoProviderCustomer)
		}
	}
	if !total.IsZero() {
		if _, err := m.gw.CreateBalanceTransaction(ctx, provider.GatewayCustomerID, total.Cents(), "Consolidated client balances"); err != nil {
			return fmt.Errorf("post balance consolidation for provider %d: %w", provider.ID, err)
		}
		log.Infof("[ProviderMigration] posted %s client balance consolidation on provider %d", total, provider.ID)
	}
	if !rebate.IsZero() {
		if _, err := m.gw.CreateBalanceTransaction(ctx, provider.GatewayCustomerID, rebate.Cents(), "Legacy annual plan rebate"); err != nil {
			return fmt.Errorf("post legacy annual rebate for provider %d: %w", provider.ID, err)
		}
		log.Infof("[ProviderMigration] posted %s legacy annual rebate on provider %d", rebate, provider.ID)
	}

	return m.advance(ctx, provider.ID, ProviderCreditApplied, nil)
}

// finalize marks the provider Billable. The gateway customer and
// subscription must exist by now; if not, an earlier step was skipped and
// the saga must be retried once its precondition is satisfied.
func (m *ProviderMigrator) finalize(ctx context.Context, provider *models.Provider) error {
	if provider.GatewayCustomerID == "" || provider.GatewaySubscriptionID == "" {
		return fmt.Errorf("provider %d cannot become billable without gateway customer and subscription", provider.ID)
	}
	provider.Status = models.ProviderStatusBillable
	if err := m.providers.Update(provider); err != nil {
		return fmt.Errorf("mark provider %d billable: %w", provider.ID, err)
	}
	return m.advance(ctx, provider.ID, ProviderCompleted, nil)
}

func (m *ProviderMigrator) seatMinimums(clients []EligibleClient) map[plans.TierFamily]int {
	minimums := make(map[plans.TierFamily]int, 2)
	for _, client := range clients {
		minimums[client.Family] += client.Link.Seats
	}
	return minimums
}

// clientCustomers fetches the gateway customers of all migrated clients
// concurrently, preserving client order and skipping clients without one.
func (m *ProviderMigrator) clientCustomers(ctx context.Context, clients []EligibleClient) ([]*gateway.Customer, error) {
	fetched := make([]*gateway.Customer, len(clients))
	grp, grpCtx := errgroup.WithContext(ctx)
	for i, client := range clients {
		if client.Org.GatewayCustomerID == "" {
			continue
		}
		grp.Go(func() error {
			customer, err := m.gw.GetCustomer(grpCtx, client.Org.GatewayCustomerID)
			if err != nil {
				return fmt.Errorf("load customer %s for organization %d: %w", client.Org.GatewayCustomerID, client.Org.ID, err)
			}
			fetched[i] = customer
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	customers := make([]*gateway.Customer, 0, len(clients))
	for _, customer := range fetched {
		if customer != nil {
			customers = append(customers, customer)
		}
	}
	return customers, nil
}

func (m *ProviderMigrator) firstClientCustomer(ctx context.Context, clients []EligibleClient) (*gateway.Customer, error) {
	customers, err := m.clientCustomers(ctx, clients)
	if err != nil {
		return nil, err
	}
	if len(customers) == 0 {
		return nil, nil
	}
	return customers[0], nil
}

// advance persists a provider checkpoint without ever regressing: a write
// ranking below the stored checkpoint keeps the stored one. The enumerated
// organization ids are carried forward unless new ones are supplied.
func (m *ProviderMigrator) advance(ctx context.Context, providerID uint, checkpoint ProviderCheckpoint, orgIDs []uint) error {
	current, err := m.progress.GetProvider(ctx, providerID)
	if err != nil {
		return err
	}
	entry := &ProviderProgress{ProviderID: providerID, Checkpoint: checkpoint}
	if current != nil {
		if current.Checkpoint.Rank() > checkpoint.Rank() {
			entry.Checkpoint = current.Checkpoint
		}
		entry.OrganizationIDs = current.OrganizationIDs
	}
	if orgIDs != nil {
		entry.OrganizationIDs = orgIDs
	}
	return m.progress.SetProvider(ctx, entry)
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
