package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/helioscale/billmigrate/internal/pkg/env"
)

const defaultAPIBaseURL = "https://api.paygrid.dev/v1"

// Client is an HTTP implementation of BillingGateway against a
// Stripe-compatible REST API: form-encoded requests, bearer auth, JSON
// responses with integer-cent amounts and unix timestamps.
type Client struct {
	APIBaseURL  string
	SecretKey   string
	TestClockID string

	HTTPClient *http.Client
}

// NewClientFromEnv builds a gateway client from the environment.
// BILLING_TEST_CLOCK_ID pins Now() to a frozen gateway test clock.
func NewClientFromEnv() *Client {
	return &Client{
		APIBaseURL:  strings.TrimRight(env.GetEnv("BILLING_API_BASE_URL", defaultAPIBaseURL), "/"),
		SecretKey:   strings.TrimSpace(env.GetEnv("BILLING_SECRET_KEY", "")),
		TestClockID: strings.TrimSpace(env.GetEnv("BILLING_TEST_CLOCK_ID", "")),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, out interface{}) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.APIBaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if method != http.MethodGet {
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("billing gateway %s %s failed: status=%d body=%s", method, path, resp.StatusCode, string(raw))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

type rawSubscription struct {
	ID                string `json:"id"`
	Customer          string `json:"customer"`
	Status            string `json:"status"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
	TrialEnd          int64  `json:"trial_end"`
	LatestInvoice     string `json:"latest_invoice"`
	Items             struct {
		Data []struct {
			ID       string `json:"id"`
			Quantity int64  `json:"quantity"`
			Price    struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

func (r *rawSubscription) toSubscription() *Subscription {
	sub := &Subscription{
		ID:                r.ID,
		CustomerID:        r.Customer,
		Status:            r.Status,
		CancelAtPeriodEnd: r.CancelAtPeriodEnd,
		LatestInvoiceID:   r.LatestInvoice,
	}
	if r.TrialEnd > 0 {
		t := time.Unix(r.TrialEnd, 0).UTC()
		sub.TrialEnd = &t
	}
	for _, item := range r.Items.Data {
		sub.Items = append(sub.Items, SubscriptionItem{
			ID:       item.ID,
			PriceID:  item.Price.ID,
			Quantity: item.Quantity,
		})
	}
	return sub
}

type rawCustomer struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Balance int64  `json:"balance"`
	Address struct {
		Line1      string `json:"line1"`
		Line2      string `json:"line2"`
		City       string `json:"city"`
		PostalCode string `json:"postal_code"`
		Country    string `json:"country"`
	} `json:"address"`
	TaxIDs struct {
		Data []struct {
			Type  string `json:"type"`
			Value string `json:"value"`
		} `json:"data"`
	} `json:"tax_ids"`
	InvoiceSettings struct {
		DefaultPaymentMethod string `json:"default_payment_method"`
	} `json:"invoice_settings"`
	Discount struct {
		Coupon struct {
			ID string `json:"id"`
		} `json:"coupon"`
	} `json:"discount"`
}

func (r *rawCustomer) toCustomer() *Customer {
	cust := &Customer{
		ID:                     r.ID,
		Name:                   r.Name,
		Email:                  r.Email,
		AddressLine1:           r.Address.Line1,
		AddressLine2:           r.Address.Line2,
		City:                   r.Address.City,
		PostalCode:             r.Address.PostalCode,
		Country:                r.Address.Country,
		DefaultPaymentMethodID: r.InvoiceSettings.DefaultPaymentMethod,
		BalanceCents:           r.Balance,
		DiscountCouponID:       r.Discount.Coupon.ID,
	}
	for _, id := range r.TaxIDs.Data {
		cust.TaxIDs = append(cust.TaxIDs, TaxID{Type: id.Type, Value: id.Value})
	}
	return cust
}

func (c *Client) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("subscription id is required")
	}
	var raw rawSubscription
	if err := c.do(ctx, http.MethodGet, "/subscriptions/"+url.PathEscape(id), nil, &raw); err != nil {
		return nil, err
	}
	return raw.toSubscription(), nil
}

func (c *Client) UpdateSubscription(ctx context.Context, id string, params UpdateSubscriptionParams) (*Subscription, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("subscription id is required")
	}
	form := url.Values{}
	if params.CancelAtPeriodEnd != nil {
		form.Set("cancel_at_period_end", strconv.FormatBool(*params.CancelAtPeriodEnd))
	}
	for i, item := range params.Items {
		prefix := fmt.Sprintf("items[%d]", i)
		if item.ID != "" {
			form.Set(prefix+"[id]", item.ID)
		}
		form.Set(prefix+"[price]", item.PriceID)
		form.Set(prefix+"[quantity]", strconv.FormatInt(item.Quantity, 10))
	}
	var raw rawSubscription
	if err := c.do(ctx, http.MethodPost, "/subscriptions/"+url.PathEscape(id), form, &raw); err != nil {
		return nil, err
	}
	return raw.toSubscription(), nil
}

func (c *Client) CancelSubscription(ctx context.Context, id string, params CancelSubscriptionParams) (*Subscription, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("subscription id is required")
	}
	form := url.Values{}
	form.Set("prorate", strconv.FormatBool(params.Prorate))
	form.Set("invoice_now", strconv.FormatBool(params.InvoiceNow))
	if params.Comment != "" {
		form.Set("cancellation_details[comment]", params.Comment)
	}
	var raw rawSubscription
	if err := c.do(ctx, http.MethodDelete, "/subscriptions/"+url.PathEscape(id), form, &raw); err != nil {
		return nil, err
	}
	return raw.toSubscription(), nil
}

func (c *Client) CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*Subscription, error) {
	if strings.TrimSpace(params.CustomerID) == "" {
		return nil, errors.New("customer id is required")
	}
	if len(params.Items) == 0 {
		return nil, errors.New("at least one subscription item is required")
	}
	form := url.Values{}
	form.Set("customer", params.CustomerID)
	for i, item := range params.Items {
		prefix := fmt.Sprintf("items[%d]", i)
		form.Set(prefix+"[price]", item.PriceID)
		form.Set(prefix+"[quantity]", strconv.FormatInt(item.Quantity, 10))
	}
	if params.CollectionMethod != "" {
		form.Set("collection_method", params.CollectionMethod)
	}
	if params.DaysUntilDue > 0 {
		form.Set("days_until_due", strconv.Itoa(params.DaysUntilDue))
	}
	if params.TrialEnd != nil {
		form.Set("trial_end", strconv.FormatInt(params.TrialEnd.Unix(), 10))
	}
	var raw rawSubscription
	if err := c.do(ctx, http.MethodPost, "/subscriptions", form, &raw); err != nil {
		return nil, err
	}
	return raw.toSubscription(), nil
}

func (c *Client) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("customer id is required")
	}
	path := "/customers/" + url.PathEscape(id) + "?" + url.Values{
		"expand[]": []string{"tax_ids", "discount"},
	}.Encode()
	var raw rawCustomer
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	return raw.toCustomer(), nil
}

func (c *Client) CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error) {
	if strings.TrimSpace(params.Name) == "" {
		return nil, errors.New("customer name is required")
	}
	form := url.Values{}
	form.Set("name", params.Name)
	if params.Email != "" {
		form.Set("email", params.Email)
	}
	if params.AddressLine1 != "" {
		form.Set("address[line1]", params.AddressLine1)
	}
	if params.AddressLine2 != "" {
		form.Set("address[line2]", params.AddressLine2)
	}
	if params.City != "" {
		form.Set("address[city]", params.City)
	}
	if params.PostalCode != "" {
		form.Set("address[postal_code]", params.PostalCode)
	}
	if params.Country != "" {
		form.Set("address[country]", params.Country)
	}
	for i, id := range params.TaxIDs {
		prefix := fmt.Sprintf("tax_id_data[%d]", i)
		form.Set(prefix+"[type]", id.Type)
		form.Set(prefix+"[value]", id.Value)
	}
	if params.CouponID != "" {
		form.Set("coupon", params.CouponID)
	}
	var raw rawCustomer
	if err := c.do(ctx, http.MethodPost, "/customers", form, &raw); err != nil {
		return nil, err
	}
	return raw.toCustomer(), nil
}

func (c *Client) GetInvoice(ctx context.Context, id string) (*Invoice, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("invoice id is required")
	}
	var inv Invoice
	var raw struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/invoices/"+url.PathEscape(id), nil, &raw); err != nil {
		return nil, err
	}
	inv.ID = raw.ID
	inv.Status = raw.Status
	return &inv, nil
}

func (c *Client) FinalizeInvoice(ctx context.Context, id string) (*Invoice, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("invoice id is required")
	}
	var raw struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodPost, "/invoices/"+url.PathEscape(id)+"/finalize", url.Values{}, &raw); err != nil {
		return nil, err
	}
	return &Invoice{ID: raw.ID, Status: raw.Status}, nil
}

func (c *Client) CreateBalanceTransaction(ctx context.Context, customerID string, amountCents int64, description string) (*BalanceTransaction, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, errors.New("customer id is required")
	}
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amountCents, 10))
	form.Set("currency", "usd")
	if description != "" {
		form.Set("description", description)
	}
	var raw struct {
		ID          string `json:"id"`
		Customer    string `json:"customer"`
		Amount      int64  `json:"amount"`
		Description string `json:"description"`
	}
	path := "/customers/" + url.PathEscape(customerID) + "/balance_transactions"
	if err := c.do(ctx, http.MethodPost, path, form, &raw); err != nil {
		return nil, err
	}
	return &BalanceTransaction{
		ID:          raw.ID,
		CustomerID:  raw.Customer,
		AmountCents: raw.Amount,
		Description: raw.Description,
	}, nil
}

// Now returns the frozen test clock time when one is configured, otherwise
// the local wall clock. Trial-state decisions must use this, not time.Now.
func (c *Client) Now(ctx context.Context) (time.Time, error) {
	if c.TestClockID == "" {
		return time.Now().UTC(), nil
	}
	var raw struct {
		ID         string `json:"id"`
		FrozenTime int64  `json:"frozen_time"`
	}
	if err := c.do(ctx, http.MethodGet, "/test_helpers/test_clocks/"+url.PathEscape(c.TestClockID), nil, &raw); err != nil {
		return time.Time{}, err
	}
	if raw.FrozenTime == 0 {
		return time.Time{}, fmt.Errorf("test clock %s has no frozen time", c.TestClockID)
	}
	return time.Unix(raw.FrozenTime, 0).UTC(), nil
}
