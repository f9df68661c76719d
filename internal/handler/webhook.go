package handler

import (
	"io"
	"log/slog"
	"net/http"

	stripe "github.com/stripe/stripe-go/v82"

	"github.com/ednova/ednova/internal/reconcile"
)

const maxWebhookBytes = 65536

// EventVerifier checks the processor's signature over the exact received
// bytes and parses the event. The raw body must never be re-serialized
// before verification.
type EventVerifier interface {
	ConstructWebhookEvent(payload []byte, sigHeader string) (stripe.Event, error)
}

type WebhookHandler struct {
	verifier   EventVerifier
	reconciler *reconcile.Reconciler
	logger     *slog.Logger
}

func NewWebhookHandler(v EventVerifier, r *reconcile.Reconciler, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		verifier:   v,
		reconciler: r,
		logger:     logger,
	}
}

// HandleEvent is the processor's webhook endpoint. Only a signature failure
// is rejected; everything after verification is acknowledged with a generic
// 200 so the processor never redelivers errors a redelivery cannot fix.
func (h *WebhookHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	event, err := h.verifier.ConstructWebhookEvent(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		respondError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	if err := h.reconciler.Apply(event); err != nil {
		h.logger.Error("webhook event failed", "type", event.Type, "event", event.ID, "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{"received": true})
}
