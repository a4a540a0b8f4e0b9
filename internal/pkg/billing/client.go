package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

// SubscriptionDetail is the subset of a subscription mirrored onto a profile.
type SubscriptionDetail struct {
	ID                string
	PriceID           string
	Status            string
	CurrentPeriodEnd  time.Time
	CancelAtPeriodEnd bool
}

// Active reports whether the subscription currently entitles the customer.
func (d *SubscriptionDetail) Active() bool {
	switch stripe.SubscriptionStatus(d.Status) {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return true
	}
	return false
}

// Canceled reports whether the subscription has ended for good.
func (d *SubscriptionDetail) Canceled() bool {
	return stripe.SubscriptionStatus(d.Status) == stripe.SubscriptionStatusCanceled
}

type CheckoutParams struct {
	UserID     int64
	CustomerID string
	PriceID    string
	SuccessURL string
	CancelURL  string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// Client talks to the payment processor with its own key; nothing here
// touches the package-level stripe.Key.
type Client struct {
	api           *client.API
	webhookSecret string
}

// NewClient builds a client. backends may be nil to use the live API.
func NewClient(secretKey, webhookSecret string, backends *stripe.Backends) *Client {
	return &Client{
		api:           client.New(secretKey, backends),
		webhookSecret: webhookSecret,
	}
}

// NewBackends points every API surface at baseURL, used to talk to a fake.
func NewBackends(baseURL string) *stripe.Backends {
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(baseURL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	})
	return &stripe.Backends{API: backend, Connect: backend, Uploads: backend}
}

func (c *Client) CreateCustomer(ctx context.Context, userID int64, username string) (string, error) {
	params := &stripe.CustomerParams{
		Name: stripe.String(username),
		Metadata: map[string]string{
			"user_id": strconv.FormatInt(userID, 10),
		},
	}
	params.Context = ctx

	cust, err := c.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("create customer: %w", err)
	}
	return cust.ID, nil
}

func (c *Client) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	userID := strconv.FormatInt(p.UserID, 10)
	params := &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer: stripe.String(p.CustomerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(p.SuccessURL),
		CancelURL:         stripe.String(p.CancelURL),
		ClientReferenceID: stripe.String(userID),
		Metadata: map[string]string{
			"user_id": userID,
		},
	}
	params.Context = ctx

	sess, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (c *Client) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	sess, err := c.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create portal session: %w", err)
	}
	return sess.URL, nil
}

func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (*SubscriptionDetail, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := c.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("get subscription %s: %w", subscriptionID, err)
	}

	detail := &SubscriptionDetail{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CurrentPeriodEnd:  time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		detail.PriceID = sub.Items.Data[0].Price.ID
	}
	return detail, nil
}

// ConstructEvent verifies the signature header and decodes the payload.
func (c *Client) ConstructEvent(payload []byte, signature string) (Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, c.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return DecodeEvent(event)
}
