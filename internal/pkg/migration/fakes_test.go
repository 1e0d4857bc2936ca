package migration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/helioscale/billmigrate/app/models"
	"github.com/helioscale/billmigrate/internal/pkg/gateway"
)

type fakeProviderRepo struct {
	providers map[uint]*models.Provider
	updates   int
}

func (r *fakeProviderRepo) GetByID(id uint) (*models.Provider, error) {
	p, ok := r.providers[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

func (r *fakeProviderRepo) Update(p *models.Provider) error {
	r.updates++
	r.providers[p.ID] = p
	return nil
}

type fakeOrgRepo struct {
	orgs    map[uint]*models.Organization
	updates int
}

func (r *fakeOrgRepo) GetByID(id uint) (*models.Organization, error) {
	o, ok := r.orgs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return o, nil
}

func (r *fakeOrgRepo) Update(o *models.Organization) error {
	r.updates++
	r.orgs[o.ID] = o
	return nil
}

type fakeRecordRepo struct {
	records map[uint]*models.ClientMigrationRecord
	creates int
	deletes int
	nextID  uint
}

func (r *fakeRecordRepo) GetByOrganizationID(orgID uint) (*models.ClientMigrationRecord, error) {
	rec, ok := r.records[orgID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return rec, nil
}

func (r *fakeRecordRepo) Create(rec *models.ClientMigrationRecord) error {
	r.creates++
	r.nextID++
	rec.ID = r.nextID
	rec.CreatedAt = time.Now()
	r.records[rec.OrganizationID] = rec
	return nil
}

func (r *fakeRecordRepo) DeleteByOrganizationID(orgID uint) error {
	r.deletes++
	delete(r.records, orgID)
	return nil
}

type fakeConfigRepo struct {
	configs map[string]*models.ProviderPlanConfig
	creates int
	updates int
}

func configKey(providerID uint, tier string) string {
	return fmt.Sprintf("%d:%s", providerID, tier)
}

func (r *fakeConfigRepo) GetByProviderID(providerID uint) ([]models.ProviderPlanConfig, error) {
	var out []models.ProviderPlanConfig
	for _, c := range r.configs {
		if c.ProviderID == providerID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeConfigRepo) GetByProviderAndTier(providerID uint, tier string) (*models.ProviderPlanConfig, error) {
	c, ok := r.configs[configKey(providerID, tier)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return c, nil
}

func (r *fakeConfigRepo) Create(c *models.ProviderPlanConfig) error {
	r.creates++
	r.configs[configKey(c.ProviderID, c.TierFamily)] = c
	return nil
}

func (r *fakeConfigRepo) Update(c *models.ProviderPlanConfig) error {
	r.updates++
	r.configs[configKey(c.ProviderID, c.TierFamily)] = c
	return nil
}

type fakeLinkRepo struct {
	links []models.ProviderOrganizationLink
}

func (r *fakeLinkRepo) ListByProviderID(providerID uint) ([]models.ProviderOrganizationLink, error) {
	var out []models.ProviderOrganizationLink
	for _, l := range r.links {
		if l.ProviderID == providerID {
			out = append(out, l)
		}
	}
	return out, nil
}

type fakeProgress struct {
	mu        sync.Mutex
	providers map[uint]*ProviderProgress
	clients   map[string]*ClientProgress
	sets      int
}

func newFakeProgress() *fakeProgress {
	return &fakeProgress{
		providers: make(map[uint]*ProviderProgress),
		clients:   make(map[string]*ClientProgress),
	}
}

func clientKey(providerID, orgID uint) string {
	return fmt.Sprintf("%d:%d", providerID, orgID)
}

func (s *fakeProgress) GetProvider(_ context.Context, providerID uint) (*ProviderProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.providers[providerID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *fakeProgress) SetProvider(_ context.Context, p *ProviderProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets++
	p.UpdatedAt = time.Now()
	cp := *p
	s.providers[p.ProviderID] = &cp
	return nil
}

func (s *fakeProgress) GetClient(_ context.Context, providerID, orgID uint) (*ClientProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[clientKey(providerID, orgID)]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *fakeProgress) SetClient(_ context.Context, c *ClientProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets++
	c.UpdatedAt = time.Now()
	cp := *c
	s.clients[clientKey(c.ProviderID, c.OrganizationID)] = &cp
	return nil
}

// fakeGateway is an in-memory BillingGateway that records every mutating
// call so tests can assert on exactly what the sagas did.
type fakeGateway struct {
	mu sync.Mutex

	now       time.Time
	subs      map[string]*gateway.Subscription
	customers map[string]*gateway.Customer
	invoices  map[string]*gateway.Invoice

	txns              []*gateway.BalanceTransaction
	cancels           []gateway.CancelSubscriptionParams
	updates           []gateway.UpdateSubscriptionParams
	createdSubParams  []gateway.CreateSubscriptionParams
	createdCustParams []gateway.CreateCustomerParams
	finalized         []string
	nextID            int

	failCreateSubscription error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		now:       time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		subs:      make(map[string]*gateway.Subscription),
		customers: make(map[string]*gateway.Customer),
		invoices:  make(map[string]*gateway.Invoice),
	}
}

func (g *fakeGateway) mutationCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.txns) + len(g.cancels) + len(g.updates) + len(g.createdSubParams) + len(g.createdCustParams) + len(g.finalized)
}

func (g *fakeGateway) GetSubscription(_ context.Context, id string) (*gateway.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	sub, ok := g.subs[id]
	if !ok {
		return nil, fmt.Errorf("no such subscription %s", id)
	}
	cp := *sub
	return &cp, nil
}

func (g *fakeGateway) UpdateSubscription(_ context.Context, id string, params gateway.UpdateSubscriptionParams) (*gateway.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	sub, ok := g.subs[id]
	if !ok {
		return nil, fmt.Errorf("no such subscription %s", id)
	}
	g.updates = append(g.updates, params)
	if params.CancelAtPeriodEnd != nil {
		sub.CancelAtPeriodEnd = *params.CancelAtPeriodEnd
	}
	if len(params.Items) > 0 {
		sub.Items = params.Items
	}
	cp := *sub
	return &cp, nil
}

func (g *fakeGateway) CancelSubscription(_ context.Context, id string, params gateway.CancelSubscriptionParams) (*gateway.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	sub, ok := g.subs[id]
	if !ok {
		return nil, fmt.Errorf("no such subscription %s", id)
	}
	g.cancels = append(g.cancels, params)
	sub.Status = gateway.SubscriptionStatusCanceled
	cp := *sub
	return &cp, nil
}

func (g *fakeGateway) CreateSubscription(_ context.Context, params gateway.CreateSubscriptionParams) (*gateway.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failCreateSubscription != nil {
		err := g.failCreateSubscription
		g.failCreateSubscription = nil
		return nil, err
	}
	g.createdSubParams = append(g.createdSubParams, params)
	g.nextID++
	sub := &gateway.Subscription{
		ID:         fmt.Sprintf("sub_new_%d", g.nextID),
		CustomerID: params.CustomerID,
		Status:     gateway.SubscriptionStatusActive,
		Items:      params.Items,
	}
	g.subs[sub.ID] = sub
	cp := *sub
	return &cp, nil
}

func (g *fakeGateway) GetCustomer(_ context.Context, id string) (*gateway.Customer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	cust, ok := g.customers[id]
	if !ok {
		return nil, fmt.Errorf("no such customer %s", id)
	}
	cp := *cust
	return &cp, nil
}

func (g *fakeGateway) CreateCustomer(_ context.Context, params gateway.CreateCustomerParams) (*gateway.Customer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createdCustParams = append(g.createdCustParams, params)
	g.nextID++
	cust := &gateway.Customer{
		ID:               fmt.Sprintf("cus_new_%d", g.nextID),
		Name:             params.Name,
		Email:            params.Email,
		AddressLine1:     params.AddressLine1,
		City:             params.City,
		PostalCode:       params.PostalCode,
		Country:          params.Country,
		TaxIDs:           params.TaxIDs,
		DiscountCouponID: params.CouponID,
	}
	g.customers[cust.ID] = cust
	cp := *cust
	return &cp, nil
}

func (g *fakeGateway) GetInvoice(_ context.Context, id string) (*gateway.Invoice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	inv, ok := g.invoices[id]
	if !ok {
		return nil, fmt.Errorf("no such invoice %s", id)
	}
	cp := *inv
	return &cp, nil
}

func (g *fakeGateway) FinalizeInvoice(_ context.Context, id string) (*gateway.Invoice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	inv, ok := g.invoices[id]
	if !ok {
		return nil, fmt.Errorf("no such invoice %s", id)
	}
	g.finalized = append(g.finalized, id)
	inv.Status = gateway.InvoiceStatusOpen
	cp := *inv
	return &cp, nil
}

func (g *fakeGateway) CreateBalanceTransaction(_ context.Context, customerID string, amountCents int64, description string) (*gateway.BalanceTransaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	txn := &gateway.BalanceTransaction{
		ID:          fmt.Sprintf("cbtxn_%d", g.nextID),
		CustomerID:  customerID,
		AmountCents: amountCents,
		Description: description,
	}
	g.txns = append(g.txns, txn)
	return txn, nil
}

func (g *fakeGateway) Now(_ context.Context) (time.Time, error) {
	return g.now, nil
}

// harness wires the whole saga stack onto the in-memory fakes.
type harness struct {
	providers *fakeProviderRepo
	orgs      *fakeOrgRepo
	records   *fakeRecordRepo
	configs   *fakeConfigRepo
	links     *fakeLinkRepo
	progress  *fakeProgress
	gw        *fakeGateway

	clientMigrator *ClientMigrator
	migrator       *ProviderMigrator
	projector      *ResultProjector
}

func newHarness() *harness {
	h := &harness{
		providers: &fakeProviderRepo{providers: make(map[uint]*models.Provider)},
		orgs:      &fakeOrgRepo{orgs: make(map[uint]*models.Organization)},
		records:   &fakeRecordRepo{records: make(map[uint]*models.ClientMigrationRecord)},
		configs:   &fakeConfigRepo{configs: make(map[string]*models.ProviderPlanConfig)},
		links:     &fakeLinkRepo{},
		progress:  newFakeProgress(),
		gw:        newFakeGateway(),
	}
	gate := NewEligibilityGate(h.providers, h.links, h.orgs)
	h.clientMigrator = NewClientMigrator(h.orgs, h.records, h.gw, h.progress)
	h.migrator = NewProviderMigrator(gate, h.clientMigrator, h.providers, h.configs, h.gw, gateway.NewProviderBilling(h.gw), h.progress)
	h.projector = NewResultProjector(h.progress, h.records)
	return h
}

func (h *harness) storeWrites() int {
	return h.providers.updates + h.orgs.updates + h.records.creates + h.records.deletes +
		h.configs.creates + h.configs.updates + h.progress.sets
}
