package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/helioscale/billmigrate/app/models"
	"github.com/helioscale/billmigrate/internal/pkg/plans"
)

// providerCouponID is the fixed discount attached to every provider customer
// created by a consolidation migration.
const providerCouponID = "consolidated-provider"

// ErrNoProviderCustomer is returned when a provider-level billing operation
// requires a gateway customer that has not been provisioned yet.
var ErrNoProviderCustomer = errors.New("provider has no gateway customer")

// ProviderBilling provisions and reconciles the provider-level gateway
// objects that replace the clients' individual subscriptions.
type ProviderBilling interface {
	CreateProviderCustomer(ctx context.Context, provider *models.Provider, template *Customer) (*Customer, error)
	CreateProviderSubscription(ctx context.Context, provider *models.Provider, seatMinimums map[plans.TierFamily]int) (*Subscription, error)
	UpdateSeatMinimums(ctx context.Context, provider *models.Provider, seatMinimums map[plans.TierFamily]int) error
}

type providerBilling struct {
	gw BillingGateway
}

// NewProviderBilling builds the provider billing facade on a gateway.
func NewProviderBilling(gw BillingGateway) ProviderBilling {
	return &providerBilling{gw: gw}
}

// CreateProviderCustomer creates the provider's gateway customer. Address and
// tax registrations are copied from a migrated client's customer so invoices
// carry a plausible billing address from day one; the fixed consolidation
// discount is attached at creation.
func (b *providerBilling) CreateProviderCustomer(ctx context.Context, provider *models.Provider, template *Customer) (*Customer, error) {
	params := CreateCustomerParams{
		Name:     provider.Name,
		CouponID: providerCouponID,
	}
	if template != nil {
		params.Email = template.Email
		params.AddressLine1 = template.AddressLine1
		params.AddressLine2 = template.AddressLine2
		params.City = template.City
		params.PostalCode = template.PostalCode
		params.Country = template.Country
		params.TaxIDs = template.TaxIDs
	}
	cust, err := b.gw.CreateCustomer(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create provider customer for provider %d: %w", provider.ID, err)
	}
	return cust, nil
}

// CreateProviderSubscription creates the consolidated subscription seeded
// with one seat-minimum line item per tier that has a non-zero minimum.
func (b *providerBilling) CreateProviderSubscription(ctx context.Context, provider *models.Provider, seatMinimums map[plans.TierFamily]int) (*Subscription, error) {
	if provider.GatewayCustomerID == "" {
		return nil, ErrNoProviderCustomer
	}
	items := seatItems(seatMinimums)
	if len(items) == 0 {
		return nil, fmt.Errorf("provider %d has no billable seat minimums", provider.ID)
	}
	sub, err := b.gw.CreateSubscription(ctx, CreateSubscriptionParams{
		CustomerID:       provider.GatewayCustomerID,
		Items:            items,
		CollectionMethod: CollectionSendInvoice,
		DaysUntilDue:     30,
	})
	if err != nil {
		return nil, fmt.Errorf("create provider subscription for provider %d: %w", provider.ID, err)
	}
	return sub, nil
}

// UpdateSeatMinimums pushes the current per-tier seat minimums into the
// existing provider subscription. Existing items for a tier are updated in
// place; tiers without an item get a new one. This is reconciliation, not
// creation, and is safe to re-apply.
func (b *providerBilling) UpdateSeatMinimums(ctx context.Context, provider *models.Provider, seatMinimums map[plans.TierFamily]int) error {
	if provider.GatewaySubscriptionID == "" {
		return fmt.Errorf("provider %d has no gateway subscription to reconcile", provider.ID)
	}
	sub, err := b.gw.GetSubscription(ctx, provider.GatewaySubscriptionID)
	if err != nil {
		return fmt.Errorf("load provider subscription %s: %w", provider.GatewaySubscriptionID, err)
	}

	existing := make(map[string]SubscriptionItem, len(sub.Items))
	for _, item := range sub.Items {
		existing[item.PriceID] = item
	}

	var items []SubscriptionItem
	for _, want := range seatItems(seatMinimums) {
		if cur, ok := existing[want.PriceID]; ok {
			want.ID = cur.ID
		}
		items = append(items, want)
	}
	if len(items) == 0 {
		return nil
	}

	if _, err := b.gw.UpdateSubscription(ctx, sub.ID, UpdateSubscriptionParams{Items: items}); err != nil {
		return fmt.Errorf("reconcile seat minimums on subscription %s: %w", sub.ID, err)
	}
	return nil
}

func seatItems(seatMinimums map[plans.TierFamily]int) []SubscriptionItem {
	var items []SubscriptionItem
	for _, family := range []plans.TierFamily{plans.TierFamilyTeams, plans.TierFamilyEnterprise} {
		seats := seatMinimums[family]
		if seats <= 0 {
			continue
		}
		priceID, ok := plans.SeatPriceID(family)
		if !ok {
			continue
		}
		items = append(items, SubscriptionItem{PriceID: priceID, Quantity: int64(seats)})
	}
	return items
}
