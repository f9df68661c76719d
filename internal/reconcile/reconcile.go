// Package reconcile translates payment-processor events into local user
// subscription state.
//
// The processor delivers events at-least-once and in no guaranteed order, so
// every handler here is idempotent: replaying a processed event leaves the
// user row and the payment audit log unchanged. Events are applied in
// arrival order; the processor payloads carry no per-subscription sequence
// to order by.
package reconcile

import (
	"encoding/json"
	"fmt"
	"log/slog"

	stripe "github.com/stripe/stripe-go/v82"

	"github.com/ednova/ednova/internal/model"
	"github.com/ednova/ednova/internal/store"
)

const (
	eventPaymentSucceeded    = "invoice.payment_succeeded"
	eventPaymentFailed       = "invoice.payment_failed"
	eventSubscriptionDeleted = "customer.subscription.deleted"
)

type Reconciler struct {
	users    *store.UserStore
	payments *store.PaymentStore
	logger   *slog.Logger
}

func New(users *store.UserStore, payments *store.PaymentStore, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		users:    users,
		payments: payments,
		logger:   logger,
	}
}

// invoiceEvent is the slice of the processor's invoice object this system
// acts on.
type invoiceEvent struct {
	Subscription  string `json:"subscription"`
	PaymentIntent string `json:"payment_intent"`
	AmountPaid    int64  `json:"amount_paid"`
}

// subscriptionEvent is the slice of the processor's subscription object this
// system acts on.
type subscriptionEvent struct {
	ID string `json:"id"`
}

// Apply routes one verified processor event to its handler. Unrecognized
// event kinds are acknowledged as no-ops so processor-side additions never
// turn into redelivery storms. A returned error means a storage failure, not
// a bad event.
func (r *Reconciler) Apply(event stripe.Event) error {
	switch string(event.Type) {
	case eventPaymentSucceeded:
		return r.applyPaymentSucceeded(event)
	case eventPaymentFailed:
		return r.applyPaymentFailed(event)
	case eventSubscriptionDeleted:
		return r.applySubscriptionDeleted(event)
	default:
		r.logger.Debug("ignoring unhandled event type", "type", event.Type)
		return nil
	}
}

func (r *Reconciler) applyPaymentSucceeded(event stripe.Event) error {
	var invoice invoiceEvent
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return fmt.Errorf("unmarshal invoice: %w", err)
	}
	if invoice.Subscription == "" {
		r.logger.Warn("payment succeeded event without subscription id", "event", event.ID)
		return nil
	}

	user, err := r.users.GetByStripeSubscriptionID(invoice.Subscription)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		// Deliberate no-op: a redelivery cannot make the user appear, and
		// rejecting would only trigger the processor's retry loop.
		r.logger.Warn("payment succeeded for unknown subscription",
			"subscription_id", invoice.Subscription, "event", event.ID)
		return nil
	}

	if _, err := r.users.UpdateStatusBySubscriptionID(invoice.Subscription, model.SubscriptionActive); err != nil {
		return fmt.Errorf("activate subscription: %w", err)
	}

	created, err := r.payments.Record(user.ID, invoice.PaymentIntent, invoice.Subscription, invoice.AmountPaid, "succeeded")
	if err != nil {
		return fmt.Errorf("record payment: %w", err)
	}
	if created {
		r.logger.Info("payment recorded",
			"user_id", user.ID,
			"payment_intent", invoice.PaymentIntent,
			"amount", invoice.AmountPaid)
	} else {
		r.logger.Info("duplicate payment event absorbed",
			"payment_intent", invoice.PaymentIntent)
	}
	return nil
}

func (r *Reconciler) applyPaymentFailed(event stripe.Event) error {
	var invoice invoiceEvent
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return fmt.Errorf("unmarshal invoice: %w", err)
	}
	if invoice.Subscription == "" {
		r.logger.Warn("payment failed event without subscription id", "event", event.ID)
		return nil
	}

	found, err := r.users.UpdateStatusBySubscriptionID(invoice.Subscription, model.SubscriptionPastDue)
	if err != nil {
		return fmt.Errorf("mark past due: %w", err)
	}
	if !found {
		r.logger.Warn("payment failed for unknown subscription",
			"subscription_id", invoice.Subscription, "event", event.ID)
		return nil
	}

	r.logger.Info("subscription marked past due", "subscription_id", invoice.Subscription)
	return nil
}

func (r *Reconciler) applySubscriptionDeleted(event stripe.Event) error {
	var sub subscriptionEvent
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("unmarshal subscription: %w", err)
	}
	if sub.ID == "" {
		r.logger.Warn("subscription deleted event without id", "event", event.ID)
		return nil
	}

	found, err := r.users.ClearSubscriptionBySubscriptionID(sub.ID)
	if err != nil {
		return fmt.Errorf("clear subscription: %w", err)
	}
	if !found {
		r.logger.Warn("deletion event for unknown subscription",
			"subscription_id", sub.ID, "event", event.ID)
		return nil
	}

	r.logger.Info("subscription canceled", "subscription_id", sub.ID)
	return nil
}
