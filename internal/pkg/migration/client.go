package migration

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/helioscale/billmigrate/app/models"
	"github.com/helioscale/billmigrate/app/repository"
	"github.com/helioscale/billmigrate/internal/pkg/gateway"
	"github.com/helioscale/billmigrate/internal/pkg/plans"
)

// cancellationComment tags every cancellation issued by a migration so the
// cancellations are recognizable in the gateway's records.
const cancellationComment = "Canceled by consolidated billing migration"

// ClientMigrator runs the per-organization saga: snapshot the billing state,
// end the organization's own gateway subscription, convert the organization
// to the managed target plan. Each step persists its checkpoint on success.
type ClientMigrator struct {
	orgs     repository.OrganizationRepository
	records  repository.MigrationRecordRepository
	gw       gateway.BillingGateway
	progress ProgressStore
}

// NewClientMigrator wires a client migrator.
func NewClientMigrator(
	orgs repository.OrganizationRepository,
	records repository.MigrationRecordRepository,
	gw gateway.BillingGateway,
	progress ProgressStore,
) *ClientMigrator {
	return &ClientMigrator{orgs: orgs, records: records, gw: gw, progress: progress}
}

// Migrate runs the forward saga for one client. Re-invocation is safe: the
// snapshot is deleted and recreated, cancellation no-ops on already-inactive
// subscriptions, and the organization update converges on the same values.
func (m *ClientMigrator) Migrate(ctx context.Context, providerID uint, client EligibleClient) error {
	org := client.Org
	log.Infof("[ClientMigration] migrating organization %d (provider %d, plan %s)", org.ID, providerID, client.Link.Plan)

	if err := m.advance(ctx, providerID, org.ID, ClientStarted); err != nil {
		return err
	}
	if err := m.createMigrationRecord(ctx, providerID, client); err != nil {
		return err
	}
	if err := m.cancelSubscription(ctx, providerID, org); err != nil {
		return err
	}
	if err := m.updateOrganization(ctx, providerID, client); err != nil {
		return err
	}

	log.Infof("[ClientMigration] organization %d migrated", org.ID)
	return nil
}

// createMigrationRecord replaces any stale record for the organization with
// a fresh immutable snapshot of its current billing state. The record must
// exist before any billing field of the organization is mutated.
func (m *ClientMigrator) createMigrationRecord(ctx context.Context, providerID uint, client EligibleClient) error {
	org := client.Org
	if err := m.records.DeleteByOrganizationID(org.ID); err != nil {
		return fmt.Errorf("delete stale migration record for organization %d: %w", org.ID, err)
	}

	record := &models.ClientMigrationRecord{
		ProviderID:            providerID,
		OrganizationID:        org.ID,
		Plan:                  org.Plan,
		Seats:                 client.Link.Seats,
		StorageUsedGB:         org.StorageUsedGB,
		StorageLimitGB:        org.StorageLimitGB,
		APIAccess:             org.APIAccess,
		SSOEnabled:            org.SSOEnabled,
		AuditLogEnabled:       org.AuditLogEnabled,
		MaxProjects:           org.MaxProjects,
		GatewayCustomerID:     org.GatewayCustomerID,
		GatewaySubscriptionID: org.GatewaySubscriptionID,
		SubscriptionExpiresAt: org.SubscriptionExpiresAt,
		AutoscaleSeatCap:      org.AutoscaleSeatCap,
		Status:                org.Status,
	}
	if err := m.records.Create(record); err != nil {
		return fmt.Errorf("create migration record for organization %d: %w", org.ID, err)
	}

	return m.advance(ctx, providerID, org.ID, ClientMigrationRecordCreated)
}

// cancelSubscription ends the organization's own gateway subscription. An
// already-inactive or absent subscription is a no-op; the checkpoint still
// advances so retries skip straight past this step.
func (m *ClientMigrator) cancelSubscription(ctx context.Context, providerID uint, org *models.Organization) error {
	if org.GatewaySubscriptionID == "" {
		log.Infof("[ClientMigration] organization %d has no gateway subscription, nothing to cancel", org.ID)
		return m.advance(ctx, providerID, org.ID, ClientSubscriptionEnded)
	}

	sub, err := m.gw.GetSubscription(ctx, org.GatewaySubscriptionID)
	if err != nil {
		return fmt.Errorf("load subscription %s for organization %d: %w", org.GatewaySubscriptionID, org.ID, err)
	}

	if !gateway.IsCancelable(sub.Status) {
		log.Infof("[ClientMigration] subscription %s is already %s, skipping cancellation", sub.ID, sub.Status)
		return m.advance(ctx, providerID, org.ID, ClientSubscriptionEnded)
	}

	if sub.CancelAtPeriodEnd {
		off := false
		if _, err := m.gw.UpdateSubscription(ctx, sub.ID, gateway.UpdateSubscriptionParams{CancelAtPeriodEnd: &off}); err != nil {
			return fmt.Errorf("clear pending cancellation on subscription %s: %w", sub.ID, err)
		}
	}

	canceled, err := m.gw.CancelSubscription(ctx, sub.ID, gateway.CancelSubscriptionParams{
		Prorate:    true,
		InvoiceNow: true,
		Comment:    cancellationComment,
	})
	if err != nil {
		return fmt.Errorf("cancel subscription %s: %w", sub.ID, err)
	}

	// Trial state is decided against the gateway's clock, which may be a
	// frozen test clock. A subscription still in trial produced no charges,
	// so its invoice is left alone.
	now, err := m.gw.Now(ctx)
	if err != nil {
		return fmt.Errorf("read gateway clock: %w", err)
	}
	inTrial := sub.TrialEnd != nil && sub.TrialEnd.After(now)

	if !inTrial && canceled.LatestInvoiceID != "" {
		invoice, err := m.gw.GetInvoice(ctx, canceled.LatestInvoiceID)
		if err != nil {
			return fmt.Errorf("load invoice %s: %w", canceled.LatestInvoiceID, err)
		}
		if invoice.Status == gateway.InvoiceStatusDraft {
			if _, err := m.gw.FinalizeInvoice(ctx, invoice.ID); err != nil {
				return fmt.Errorf("finalize invoice %s: %w", invoice.ID, err)
			}
			log.Infof("[ClientMigration] finalized cancellation invoice %s for organization %d", invoice.ID, org.ID)
		}
	}

	return m.advance(ctx, providerID, org.ID, ClientSubscriptionEnded)
}

// updateOrganization converts the organization to the managed target plan.
// Plan-derived attributes are replaced with the target plan's defaults, not
// merged; the organization's own gateway subscription linkage is cleared.
func (m *ClientMigrator) updateOrganization(ctx context.Context, providerID uint, client EligibleClient) error {
	org := client.Org
	target := plans.TargetPlan(client.Family)
	defaults, ok := plans.Lookup(target)
	if !ok {
		return fmt.Errorf("target plan %s missing from catalog", target)
	}

	org.Plan = string(target)
	org.StorageLimitGB = defaults.BaseStorageGB
	org.APIAccess = defaults.APIAccess
	org.SSOEnabled = defaults.SSOEnabled
	org.AuditLogEnabled = defaults.AuditLogEnabled
	org.MaxProjects = defaults.MaxProjects
	org.GatewaySubscriptionID = ""
	org.SubscriptionExpiresAt = nil
	org.AutoscaleSeatCap = nil
	org.Status = models.OrganizationStatusManaged

	if err := m.orgs.Update(org); err != nil {
		return fmt.Errorf("update organization %d: %w", org.ID, err)
	}

	return m.advance(ctx, providerID, org.ID, ClientCompleted)
}

// advance persists a forward checkpoint. Checkpoints never regress: a write
// that ranks at or below the stored forward checkpoint is dropped. A stored
// reversal checkpoint is overwritten, restarting the forward saga.
func (m *ClientMigrator) advance(ctx context.Context, providerID, orgID uint, checkpoint ClientCheckpoint) error {
	current, err := m.progress.GetClient(ctx, providerID, orgID)
	if err != nil {
		return err
	}
	if current != nil && !current.Checkpoint.IsReversal() && current.Checkpoint.ForwardRank() >= checkpoint.ForwardRank() {
		return nil
	}
	return m.progress.SetClient(ctx, &ClientProgress{
		ProviderID:     providerID,
		OrganizationID: orgID,
		Checkpoint:     checkpoint,
	})
}
