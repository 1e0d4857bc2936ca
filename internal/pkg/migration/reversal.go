package migration

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/helioscale/billmigrate/internal/pkg/gateway"
	"github.com/helioscale/billmigrate/internal/pkg/plans"
)

// ReversalStep selects which compensation step to run. Reversal is invoked
// manually, one step at a time, by an operator; nothing triggers it
// automatically when the forward saga fails.
type ReversalStep string

const (
	ReversalStepRecreateSubscription ReversalStep = "recreate_subscription"
	ReversalStepResetOrganization    ReversalStep = "reset_organization"
)

// ErrNoMigrationRecord is returned when reversal is requested for an
// organization without a pre-migration snapshot to restore from.
var ErrNoMigrationRecord = errors.New("no migration record for organization")

// ErrNoGatewayCustomer is returned when a subscription cannot be recreated
// because the organization has no gateway customer to attach it to.
var ErrNoGatewayCustomer = errors.New("organization has no gateway customer")

// Reverse runs one compensation step for a migrated organization. The entity
// is marked Reversed on the first reversal call; each completed step then
// records its own checkpoint.
func (m *ClientMigrator) Reverse(ctx context.Context, providerID, orgID uint, step ReversalStep) error {
	current, err := m.progress.GetClient(ctx, providerID, orgID)
	if err != nil {
		return err
	}
	if current == nil || !current.Checkpoint.IsReversal() {
		if err := m.setReversalCheckpoint(ctx, providerID, orgID, ClientReversed); err != nil {
			return err
		}
	}

	switch step {
	case ReversalStepRecreateSubscription:
		return m.recreateSubscription(ctx, providerID, orgID)
	case ReversalStepResetOrganization:
		return m.resetOrganization(ctx, providerID, orgID)
	default:
		return fmt.Errorf("unknown reversal step %q", step)
	}
}

// recreateSubscription rebuilds the organization's own gateway subscription
// from the migration record. Collection method follows the presence of a
// default payment method; storage beyond the recreated plan's base allotment
// gets its own line item.
func (m *ClientMigrator) recreateSubscription(ctx context.Context, providerID, orgID uint) error {
	record, err := m.records.GetByOrganizationID(orgID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("organization %d: %w", orgID, ErrNoMigrationRecord)
	}
	if err != nil {
		return fmt.Errorf("load migration record for organization %d: %w", orgID, err)
	}

	org, err := m.orgs.GetByID(orgID)
	if err != nil {
		return fmt.Errorf("load organization %d: %w", orgID, err)
	}
	if org.GatewayCustomerID == "" {
		return fmt.Errorf("organization %d: %w", orgID, ErrNoGatewayCustomer)
	}

	defaults, ok := plans.Lookup(plans.PlanID(record.Plan))
	if !ok {
		return fmt.Errorf("recorded plan %s missing from catalog", record.Plan)
	}

	customer, err := m.gw.GetCustomer(ctx, org.GatewayCustomerID)
	if err != nil {
		return fmt.Errorf("load customer %s: %w", org.GatewayCustomerID, err)
	}

	params := gateway.CreateSubscriptionParams{
		CustomerID: org.GatewayCustomerID,
		Items: []gateway.SubscriptionItem{
			{PriceID: defaults.GatewayPriceID, Quantity: int64(record.Seats)},
		},
	}
	if customer.DefaultPaymentMethodID != "" {
		params.CollectionMethod = gateway.CollectionChargeAutomatically
	} else {
		params.CollectionMethod = gateway.CollectionSendInvoice
		params.DaysUntilDue = 30
	}
	if overage := record.StorageUsedGB - defaults.BaseStorageGB; overage > 0 {
		params.Items = append(params.Items, gateway.SubscriptionItem{
			PriceID:  plans.StorageOveragePriceID,
			Quantity: overage,
		})
	}

	sub, err := m.gw.CreateSubscription(ctx, params)
	if err != nil {
		return fmt.Errorf("recreate subscription for organization %d: %w", orgID, err)
	}

	org.GatewaySubscriptionID = sub.ID
	if err := m.orgs.Update(org); err != nil {
		return fmt.Errorf("store recreated subscription on organization %d: %w", orgID, err)
	}

	log.Infof("[ClientMigration] recreated subscription %s for organization %d", sub.ID, orgID)
	return m.setReversalCheckpoint(ctx, providerID, orgID, ClientRecreatedSubscription)
}

// resetOrganization restores the organization's pre-migration plan, limits
// and status from the record, then deletes the record.
func (m *ClientMigrator) resetOrganization(ctx context.Context, providerID, orgID uint) error {
	record, err := m.records.GetByOrganizationID(orgID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("organization %d: %w", orgID, ErrNoMigrationRecord)
	}
	if err != nil {
		return fmt.Errorf("load migration record for organization %d: %w", orgID, err)
	}

	org, err := m.orgs.GetByID(orgID)
	if err != nil {
		return fmt.Errorf("load organization %d: %w", orgID, err)
	}

	org.Plan = record.Plan
	org.StorageLimitGB = record.StorageLimitGB
	org.APIAccess = record.APIAccess
	org.SSOEnabled = record.SSOEnabled
	org.AuditLogEnabled = record.AuditLogEnabled
	org.MaxProjects = record.MaxProjects
	org.SubscriptionExpiresAt = record.SubscriptionExpiresAt
	org.AutoscaleSeatCap = record.AutoscaleSeatCap
	org.Status = record.Status

	if err := m.orgs.Update(org); err != nil {
		return fmt.Errorf("restore organization %d: %w", orgID, err)
	}
	if err := m.records.DeleteByOrganizationID(orgID); err != nil {
		return fmt.Errorf("delete migration record for organization %d: %w", orgID, err)
	}

	log.Infof("[ClientMigration] organization %d restored to plan %s", orgID, record.Plan)
	return m.setReversalCheckpoint(ctx, providerID, orgID, ClientResetOrganization)
}

func (m *ClientMigrator) setReversalCheckpoint(ctx context.Context, providerID, orgID uint, checkpoint ClientCheckpoint) error {
	return m.progress.SetClient(ctx, &ClientProgress{
		ProviderID:     providerID,
		OrganizationID: orgID,
		Checkpoint:     checkpoint,
	})
}
