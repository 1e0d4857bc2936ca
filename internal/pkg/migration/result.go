package migration

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/helioscale/billmigrate/app/models"
	"github.com/helioscale/billmigrate/app/repository"
)

// Result is the reconstructed status/audit view of a provider migration.
type Result struct {
	ProviderID uint               `json:"provider_id"`
	Checkpoint ProviderCheckpoint `json:"checkpoint"`
	NoClients  bool               `json:"no_clients"`
	Clients    []ClientResult     `json:"clients,omitempty"`
}

// ClientResult pairs a client's live saga progress with its pre-migration
// snapshot. Either side can be absent: the tracker expires with inactivity
// and the record is deleted by a completed reversal.
type ClientResult struct {
	OrganizationID uint                          `json:"organization_id"`
	Checkpoint     ClientCheckpoint              `json:"checkpoint,omitempty"`
	Record         *models.ClientMigrationRecord `json:"record,omitempty"`
}

// ResultProjector rebuilds migration results from the progress store and the
// historical migration records.
type ResultProjector struct {
	progress ProgressStore
	records  repository.MigrationRecordRepository
}

// NewResultProjector wires a projector.
func NewResultProjector(progress ProgressStore, records repository.MigrationRecordRepository) *ResultProjector {
	return &ResultProjector{progress: progress, records: records}
}

// GetResult reports the state of a provider migration, or (nil, nil) when no
// progress entry exists (never started, or expired). Client trackers and
// records are fetched concurrently.
func (p *ResultProjector) GetResult(ctx context.Context, providerID uint) (*Result, error) {
	provider, err := p.progress.GetProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, nil
	}

	result := &Result{
		ProviderID: providerID,
		Checkpoint: provider.Checkpoint,
	}
	if provider.Checkpoint == ProviderNoClients {
		result.NoClients = true
		return result, nil
	}

	clients := make([]ClientResult, len(provider.OrganizationIDs))
	grp, grpCtx := errgroup.WithContext(ctx)
	for i, orgID := range provider.OrganizationIDs {
		grp.Go(func() error {
			tracker, err := p.progress.GetClient(grpCtx, providerID, orgID)
			if err != nil {
				return err
			}
			record, err := p.records.GetByOrganizationID(orgID)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("load migration record for organization %d: %w", orgID, err)
			}
			clients[i] = ClientResult{OrganizationID: orgID, Record: record}
			if tracker != nil {
				clients[i].Checkpoint = tracker.Checkpoint
			}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(clients, func(i, j int) bool {
		return clients[i].OrganizationID < clients[j].OrganizationID
	})
	result.Clients = clients
	return result, nil
}
