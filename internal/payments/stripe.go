package payments

import (
	"fmt"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"
)

type Config struct {
	SecretKey      string
	PublishableKey string
	WebhookSecret  string
	PriceID        string
}

// Client wraps the Stripe SDK. The processor owns the canonical subscription
// state machine; this client only issues commands and verifies its events.
type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	stripe.Key = cfg.SecretKey
	return &Client{cfg: cfg}
}

// PublishableKey returns the client-side billing key.
func (c *Client) PublishableKey() string {
	return c.cfg.PublishableKey
}

// SubscriptionIntent is what a newly created subscription hands back to the
// frontend: the subscription reference plus the confirmation secret for the
// first invoice's payment.
type SubscriptionIntent struct {
	SubscriptionID string
	Status         string
	ClientSecret   string
}

// SubscriptionSummary is one row of the admin subscription listing.
type SubscriptionSummary struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer_id"`
	Status     string `json:"status"`
	Created    int64  `json:"created"`
}

// CreateCustomer creates a Stripe customer and returns the customer ID.
func (c *Client) CreateCustomer(email, name string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	cust, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	return cust.ID, nil
}

// CreateSubscription creates an incomplete subscription so the frontend can
// confirm the first payment with the returned client secret.
func (c *Client) CreateSubscription(customerID string) (*SubscriptionIntent, error) {
	params := &stripe.SubscriptionParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(c.cfg.PriceID)},
		},
		PaymentBehavior: stripe.String("default_incomplete"),
	}
	params.AddExpand("latest_invoice.confirmation_secret")

	sub, err := subscription.New(params)
	if err != nil {
		return nil, fmt.Errorf("create stripe subscription: %w", err)
	}

	intent := &SubscriptionIntent{
		SubscriptionID: sub.ID,
		Status:         string(sub.Status),
	}
	if sub.LatestInvoice != nil && sub.LatestInvoice.ConfirmationSecret != nil {
		intent.ClientSecret = sub.LatestInvoice.ConfirmationSecret.ClientSecret
	}
	return intent, nil
}

// GetSubscriptionStatus retrieves the processor-side status for the id.
func (c *Client) GetSubscriptionStatus(subscriptionID string) (string, error) {
	sub, err := subscription.Get(subscriptionID, nil)
	if err != nil {
		return "", fmt.Errorf("get stripe subscription: %w", err)
	}
	return string(sub.Status), nil
}

// CancelSubscription cancels the subscription immediately.
func (c *Client) CancelSubscription(subscriptionID string) error {
	if _, err := subscription.Cancel(subscriptionID, nil); err != nil {
		return fmt.Errorf("cancel stripe subscription: %w", err)
	}
	return nil
}

// ListSubscriptions pages through processor-side subscriptions.
func (c *Client) ListSubscriptions(limit int64, startingAfter string) ([]SubscriptionSummary, error) {
	params := &stripe.SubscriptionListParams{}
	params.Limit = stripe.Int64(limit)
	if startingAfter != "" {
		params.StartingAfter = stripe.String(startingAfter)
	}

	var out []SubscriptionSummary
	iter := subscription.List(params)
	for iter.Next() {
		sub := iter.Subscription()
		summary := SubscriptionSummary{
			ID:      sub.ID,
			Status:  string(sub.Status),
			Created: sub.Created,
		}
		if sub.Customer != nil {
			summary.CustomerID = sub.Customer.ID
		}
		out = append(out, summary)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list stripe subscriptions: %w", err)
	}
	return out, nil
}

// ConstructWebhookEvent verifies the signature over the exact received bytes
// and returns the parsed event. API version mismatches are tolerated; the
// reconciler only reads fields that are stable across versions.
func (c *Client) ConstructWebhookEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, sigHeader, c.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
}
