package gateway

import (
	"context"
	"time"
)

// BillingGateway is the external billing system the migration talks to.
// Calls are blocking network calls; callers bound them via ctx deadlines.
type BillingGateway interface {
	GetSubscription(ctx context.Context, id string) (*Subscription, error)
	UpdateSubscription(ctx context.Context, id string, params UpdateSubscriptionParams) (*Subscription, error)
	CancelSubscription(ctx context.Context, id string, params CancelSubscriptionParams) (*Subscription, error)
	CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*Subscription, error)

	GetCustomer(ctx context.Context, id string) (*Customer, error)
	CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error)

	GetInvoice(ctx context.Context, id string) (*Invoice, error)
	FinalizeInvoice(ctx context.Context, id string) (*Invoice, error)

	CreateBalanceTransaction(ctx context.Context, customerID string, amountCents int64, description string) (*BalanceTransaction, error)

	// Now returns the gateway's authoritative clock. When a frozen test
	// clock is configured the returned time is the clock's frozen time, so
	// trial comparisons agree with what the gateway itself would decide.
	Now(ctx context.Context) (time.Time, error)
}
