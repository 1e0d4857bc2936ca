package gateway

import "time"

const (
	SubscriptionStatusActive     = "active"
	SubscriptionStatusTrialing   = "trialing"
	SubscriptionStatusPastDue    = "past_due"
	SubscriptionStatusCanceled   = "canceled"
	SubscriptionStatusIncomplete = "incomplete"
	SubscriptionStatusUnpaid     = "unpaid"
)

const (
	InvoiceStatusDraft = "draft"
	InvoiceStatusOpen  = "open"
	InvoiceStatusPaid  = "paid"
	InvoiceStatusVoid  = "void"
)

const (
	CollectionChargeAutomatically = "charge_automatically"
	CollectionSendInvoice         = "send_invoice"
)

// Subscription mirrors a gateway subscription.
type Subscription struct {
	ID                string
	CustomerID        string
	Status            string
	CancelAtPeriodEnd bool
	TrialEnd          *time.Time
	LatestInvoiceID   string
	Items             []SubscriptionItem
}

// SubscriptionItem is a priced line on a subscription.
type SubscriptionItem struct {
	ID       string
	PriceID  string
	Quantity int64
}

// Customer mirrors a gateway customer, including the billing attributes a
// provider customer is templated from.
type Customer struct {
	ID                     string
	Name                   string
	Email                  string
	AddressLine1           string
	AddressLine2           string
	City                   string
	PostalCode             string
	Country                string
	TaxIDs                 []TaxID
	DefaultPaymentMethodID string
	BalanceCents           int64
	DiscountCouponID       string
}

// TaxID is a tax registration attached to a customer.
type TaxID struct {
	Type  string
	Value string
}

// Invoice carries the subset of invoice state the migration inspects.
type Invoice struct {
	ID     string
	Status string
}

// BalanceTransaction is a posted customer balance adjustment.
type BalanceTransaction struct {
	ID          string
	CustomerID  string
	AmountCents int64
	Description string
}

// CancelSubscriptionParams controls an immediate cancellation.
type CancelSubscriptionParams struct {
	Prorate    bool
	InvoiceNow bool
	Comment    string
}

// UpdateSubscriptionParams carries the mutable subscription fields the
// migration touches. Nil/empty fields are left untouched.
type UpdateSubscriptionParams struct {
	CancelAtPeriodEnd *bool
	Items             []SubscriptionItem
}

// CreateSubscriptionParams describes a subscription to create.
type CreateSubscriptionParams struct {
	CustomerID       string
	Items            []SubscriptionItem
	CollectionMethod string
	DaysUntilDue     int
	TrialEnd         *time.Time
}

// CreateCustomerParams describes a customer to create.
type CreateCustomerParams struct {
	Name         string
	Email        string
	AddressLine1 string
	AddressLine2 string
	City         string
	PostalCode   string
	Country      string
	TaxIDs       []TaxID
	CouponID     string
}

// IsCancelable reports whether a subscription in the given status can still
// be canceled; anything else is treated as already ended.
func IsCancelable(status string) bool {
	switch status {
	case SubscriptionStatusActive, SubscriptionStatusPastDue, SubscriptionStatusTrialing:
		return true
	default:
		return false
	}
}
