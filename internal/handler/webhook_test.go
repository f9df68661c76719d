package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ednova/ednova/internal/database"
	"github.com/ednova/ednova/internal/model"
	"github.com/ednova/ednova/internal/payments"
	"github.com/ednova/ednova/internal/reconcile"
	"github.com/ednova/ednova/internal/store"
)

const webhookTestSecret = "whsec_test"

func setupWebhookHandler(t *testing.T) (*WebhookHandler, *store.UserStore, *store.PaymentStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	users := store.NewUserStore(db)
	paymentStore := store.NewPaymentStore(db)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := payments.NewClient(payments.Config{WebhookSecret: webhookTestSecret})
	rec := reconcile.New(users, paymentStore, logger)
	return NewWebhookHandler(client, rec, logger), users, paymentStore
}

// signPayload produces a Stripe-Signature header over the exact payload
// bytes, the same scheme the SDK verifies.
func signPayload(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func postWebhook(t *testing.T, h *WebhookHandler, payload, sigHeader string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", strings.NewReader(payload))
	req.Header.Set("Stripe-Signature", sigHeader)
	rec := httptest.NewRecorder()
	h.HandleEvent(rec, req)
	return rec
}

func paymentSucceededPayload(eventID, subscriptionID, paymentIntentID string, amount int64) string {
	return fmt.Sprintf(`{
		"id": %q,
		"type": "invoice.payment_succeeded",
		"data": {
			"object": {
				"subscription": %q,
				"payment_intent": %q,
				"amount_paid": %d
			}
		}
	}`, eventID, subscriptionID, paymentIntentID, amount)
}

func TestWebhookInvalidSignature(t *testing.T) {
	h, users, paymentStore := setupWebhookHandler(t)
	u, _ := users.Create("Alice", "alice@example.com", "hash", model.RoleUser)
	users.AttachSubscription(u.ID, nil, "sub_1", model.SubscriptionPastDue)

	payload := paymentSucceededPayload("evt_1", "sub_1", "pi_1", 999)
	rec := postWebhook(t, h, payload, signPayload([]byte(payload), "whsec_wrong"))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	got, _ := users.GetByID(u.ID)
	if got.SubscriptionStatus != model.SubscriptionPastDue {
		t.Errorf("status = %q, unsigned event must not mutate state", got.SubscriptionStatus)
	}
	if p, _ := paymentStore.GetByPaymentIntentID("pi_1"); p != nil {
		t.Error("unsigned event must not record a payment")
	}
}

func TestWebhookPaymentSucceeded(t *testing.T) {
	h, users, paymentStore := setupWebhookHandler(t)
	u, _ := users.Create("Alice", "alice@example.com", "hash", model.RoleUser)
	users.AttachSubscription(u.ID, nil, "sub_1", model.SubscriptionPastDue)

	payload := paymentSucceededPayload("evt_1", "sub_1", "pi_1", 999)
	rec := postWebhook(t, h, payload, signPayload([]byte(payload), webhookTestSecret))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	got, _ := users.GetByID(u.ID)
	if got.SubscriptionStatus != model.SubscriptionActive {
		t.Errorf("status = %q, want %q", got.SubscriptionStatus, model.SubscriptionActive)
	}
	p, err := paymentStore.GetByPaymentIntentID("pi_1")
	if err != nil || p == nil {
		t.Fatalf("expected recorded payment, got %v, %v", p, err)
	}
	if p.AmountPaid != 999 {
		t.Errorf("amount = %d, want 999", p.AmountPaid)
	}
}

func TestWebhookRedelivery(t *testing.T) {
	h, users, paymentStore := setupWebhookHandler(t)
	u, _ := users.Create("Alice", "alice@example.com", "hash", model.RoleUser)
	users.AttachSubscription(u.ID, nil, "sub_1", model.SubscriptionPastDue)

	payload := paymentSucceededPayload("evt_1", "sub_1", "pi_1", 999)
	for i := 0; i < 3; i++ {
		rec := postWebhook(t, h, payload, signPayload([]byte(payload), webhookTestSecret))
		if rec.Code != http.StatusOK {
			t.Fatalf("delivery %d: status = %d, want 200", i+1, rec.Code)
		}
	}

	n, err := paymentStore.CountBySubscriptionID("sub_1")
	if err != nil {
		t.Fatalf("count payments: %v", err)
	}
	if n != 1 {
		t.Errorf("payments recorded = %d, want exactly 1 across redeliveries", n)
	}
}

func TestWebhookSubscriptionDeleted(t *testing.T) {
	h, users, _ := setupWebhookHandler(t)
	u, _ := users.Create("Alice", "alice@example.com", "hash", model.RoleUser)
	users.AttachSubscription(u.ID, nil, "sub_1", model.SubscriptionActive)

	payload := `{
		"id": "evt_del",
		"type": "customer.subscription.deleted",
		"data": {"object": {"id": "sub_1"}}
	}`
	rec := postWebhook(t, h, payload, signPayload([]byte(payload), webhookTestSecret))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	got, _ := users.GetByID(u.ID)
	if got.SubscriptionStatus != model.SubscriptionCanceled {
		t.Errorf("status = %q, want %q", got.SubscriptionStatus, model.SubscriptionCanceled)
	}
	if got.StripeSubscriptionID != nil {
		t.Error("expected subscription id cleared")
	}
}

func TestWebhookUnknownEventAcked(t *testing.T) {
	h, _, _ := setupWebhookHandler(t)

	payload := `{"id": "evt_x", "type": "charge.refunded", "data": {"object": {}}}`
	rec := postWebhook(t, h, payload, signPayload([]byte(payload), webhookTestSecret))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, unknown event kinds must still be acknowledged", rec.Code)
	}
}
