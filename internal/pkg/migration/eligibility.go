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
	"github.com/helioscale/billmigrate/internal/pkg/plans"
)

// EligibleClient is a client organization cleared for migration, with its
// provider link and the tier family its plan classified into.
type EligibleClient struct {
	Org    *models.Organization
	Link   models.ProviderOrganizationLink
	Family plans.TierFamily
}

// EligibilityGate decides whether a provider and its clients are in a
// migratable state. Ineligibility is a silent no-op by contract, so that
// re-invoking a migration on an already-migrated provider does nothing.
type EligibilityGate struct {
	providers repository.ProviderRepository
	links     repository.ProviderOrganizationLinkRepository
	orgs      repository.OrganizationRepository
}

// NewEligibilityGate wires the gate to its stores.
func NewEligibilityGate(
	providers repository.ProviderRepository,
	links repository.ProviderOrganizationLinkRepository,
	orgs repository.OrganizationRepository,
) *EligibilityGate {
	return &EligibilityGate{providers: providers, links: links, orgs: orgs}
}

// ValidateProvider returns the provider when it exists, is a reseller type
// and still has Created status. Everything else returns (nil, nil) with a
// warning log; only infrastructure failures surface as errors.
func (g *EligibilityGate) ValidateProvider(id uint) (*models.Provider, error) {
	provider, err := g.providers.GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Warnf("[Migration] provider %d not found, skipping migration", id)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load provider %d: %w", id, err)
	}
	if !provider.IsReseller() {
		log.Warnf("[Migration] provider %d has type %s, skipping migration", id, provider.Type)
		return nil, nil
	}
	if provider.Status != models.ProviderStatusCreated {
		log.Warnf("[Migration] provider %d has status %s, skipping migration", id, provider.Status)
		return nil, nil
	}
	return provider, nil
}

// ValidateClients returns the provider's enabled client organizations whose
// plan classifies into the Teams or Enterprise tier family. Organizations
// are fetched concurrently; link order (by organization id) is preserved.
func (g *EligibilityGate) ValidateClients(ctx context.Context, providerID uint) ([]EligibleClient, error) {
	links, err := g.links.ListByProviderID(providerID)
	if err != nil {
		return nil, fmt.Errorf("list client links for provider %d: %w", providerID, err)
	}
	if len(links) == 0 {
		return nil, nil
	}

	orgsByLink := make([]*models.Organization, len(links))
	grp, _ := errgroup.WithContext(ctx)
	for i, link := range links {
		grp.Go(func() error {
			org, err := g.orgs.GetByID(link.OrganizationID)
			if err != nil {
				return fmt.Errorf("load organization %d: %w", link.OrganizationID, err)
			}
			orgsByLink[i] = org
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	var eligible []EligibleClient
	for i, link := range links {
		org := orgsByLink[i]
		if !org.Enabled {
			log.Infof("[Migration] organization %d is disabled, skipping", org.ID)
			continue
		}
		family := plans.Classify(plans.PlanID(link.Plan))
		if family == plans.TierFamilyOther {
			log.Warnf("[Migration] organization %d plan %s is outside the migratable tiers, skipping", org.ID, link.Plan)
			continue
		}
		eligible = append(eligible, EligibleClient{Org: org, Link: link, Family: family})
	}
	return eligible, nil
}
