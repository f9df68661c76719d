package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ednova/ednova/internal/auth"
	"github.com/ednova/ednova/internal/model"
	"github.com/ednova/ednova/internal/payments"
	"github.com/ednova/ednova/internal/store"
)

// Processor is the slice of the payment client the subscription handlers
// need, substitutable with a fake in tests.
type Processor interface {
	PublishableKey() string
	CreateCustomer(email, name string) (string, error)
	CreateSubscription(customerID string) (*payments.SubscriptionIntent, error)
	GetSubscriptionStatus(subscriptionID string) (string, error)
	CancelSubscription(subscriptionID string) error
	ListSubscriptions(limit int64, startingAfter string) ([]payments.SubscriptionSummary, error)
}

type PaymentHandler struct {
	users     *store.UserStore
	payments  *store.PaymentStore
	processor Processor
	logger    *slog.Logger
}

func NewPaymentHandler(us *store.UserStore, ps *store.PaymentStore, proc Processor, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{
		users:     us,
		payments:  ps,
		processor: proc,
		logger:    logger,
	}
}

// StripeKey hands the publishable billing key to the frontend.
func (h *PaymentHandler) StripeKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "stripe publishable key",
		"key":     h.processor.PublishableKey(),
	})
}

// localStatus maps a processor subscription status onto the local enum. With
// a subscription id attached the row must be active or past_due, so anything
// not yet active (incomplete, trialing variants) lands on past_due until the
// payment-succeeded event arrives.
func localStatus(processorStatus string) string {
	if processorStatus == model.SubscriptionActive {
		return model.SubscriptionActive
	}
	return model.SubscriptionPastDue
}

func (h *PaymentHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByID(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("subscribe lookup", "error", err)
		respondError(w, http.StatusInternalServerError, "subscription failed")
		return
	}
	if user == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized, please login")
		return
	}
	if user.Role == model.RoleAdmin {
		respondError(w, http.StatusBadRequest, "admin cannot purchase a subscription")
		return
	}

	// Idempotent: a still-active subscription is returned, not duplicated.
	if user.StripeSubscriptionID != nil {
		status, err := h.processor.GetSubscriptionStatus(*user.StripeSubscriptionID)
		if err == nil && status == "active" {
			writeJSON(w, http.StatusOK, map[string]any{
				"success":         true,
				"message":         "already subscribed",
				"subscription_id": *user.StripeSubscriptionID,
			})
			return
		}
	}

	customerID := ""
	if user.StripeCustomerID != nil {
		customerID = *user.StripeCustomerID
	}
	if customerID == "" {
		customerID, err = h.processor.CreateCustomer(user.Email, user.Name)
		if err != nil {
			h.logger.Error("create customer", "user_id", user.ID, "error", err)
			respondError(w, http.StatusBadGateway, "failed to create billing customer")
			return
		}
		if err := h.users.UpdateStripeCustomerID(user.ID, customerID); err != nil {
			h.logger.Error("persist customer id", "user_id", user.ID, "error", err)
			respondError(w, http.StatusInternalServerError, "subscription failed")
			return
		}
	}

	intent, err := h.processor.CreateSubscription(customerID)
	if err != nil {
		h.logger.Error("create subscription", "user_id", user.ID, "error", err)
		respondError(w, http.StatusBadGateway, "failed to create subscription")
		return
	}

	// Guarded by the subscription id the user held when this call started:
	// replacing a stale non-active subscription succeeds, while a concurrent
	// subscribe that already moved the row loses.
	ok, err := h.users.AttachSubscription(user.ID, user.StripeSubscriptionID, intent.SubscriptionID, localStatus(intent.Status))
	if err != nil {
		h.logger.Error("persist subscription", "user_id", user.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "subscription failed")
		return
	}
	if !ok {
		// A concurrent subscribe won the conditional update; report the
		// reference that actually stuck.
		current, err := h.users.GetByID(user.ID)
		if err != nil || current == nil || current.StripeSubscriptionID == nil {
			respondError(w, http.StatusConflict, "subscription already in progress")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":         true,
			"message":         "already subscribed",
			"subscription_id": *current.StripeSubscriptionID,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"message":         "subscription created successfully",
		"subscription_id": intent.SubscriptionID,
		"client_secret":   intent.ClientSecret,
	})
}

func (h *PaymentHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByID(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("unsubscribe lookup", "error", err)
		respondError(w, http.StatusInternalServerError, "cancellation failed")
		return
	}
	if user == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized, please login")
		return
	}
	if user.Role == model.RoleAdmin {
		respondError(w, http.StatusBadRequest, "admin cannot cancel a subscription")
		return
	}
	if user.StripeSubscriptionID == nil {
		respondError(w, http.StatusBadRequest, "no active subscription found")
		return
	}
	subscriptionID := *user.StripeSubscriptionID

	// Processor first: if this fails, local state stays untouched.
	if err := h.processor.CancelSubscription(subscriptionID); err != nil {
		h.logger.Error("cancel subscription", "user_id", user.ID, "error", err)
		respondError(w, http.StatusBadGateway, "failed to cancel subscription")
		return
	}

	if _, err := h.users.ClearSubscription(user.ID, subscriptionID); err != nil {
		h.logger.Error("clear subscription", "user_id", user.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "cancellation failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "subscription canceled successfully",
	})
}

var monthNames = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// AllSubscriptions lists processor-side subscriptions for administrators,
// bucketed by creation month for the sales chart.
func (h *PaymentHandler) AllSubscriptions(w http.ResponseWriter, r *http.Request) {
	limit := int64(10)
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 1 || n > 100 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	startingAfter := r.URL.Query().Get("starting_after")

	subs, err := h.processor.ListSubscriptions(limit, startingAfter)
	if err != nil {
		h.logger.Error("list subscriptions", "error", err)
		respondError(w, http.StatusBadGateway, "failed to list subscriptions")
		return
	}
	if subs == nil {
		subs = []payments.SubscriptionSummary{}
	}

	finalMonths := make(map[string]int64, len(monthNames))
	for _, m := range monthNames {
		finalMonths[m] = 0
	}
	for _, sub := range subs {
		month := monthNames[time.Unix(sub.Created, 0).UTC().Month()-1]
		finalMonths[month]++
	}
	monthlySalesRecord := make([]int64, len(monthNames))
	for i, m := range monthNames {
		monthlySalesRecord[i] = finalMonths[m]
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":              true,
		"message":              "all subscriptions",
		"subscriptions":        subs,
		"final_months":         finalMonths,
		"monthly_sales_record": monthlySalesRecord,
	})
}

// Stats reports local user and subscriber counts for the admin dashboard.
func (h *PaymentHandler) Stats(w http.ResponseWriter, r *http.Request) {
	totalUsers, err := h.users.CountUsers()
	if err != nil {
		h.logger.Error("count users", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	activeSubscribers, err := h.users.CountActiveSubscribers()
	if err != nil {
		h.logger.Error("count subscribers", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":            true,
		"message":            "admin stats",
		"registered_users":   totalUsers,
		"active_subscribers": activeSubscribers,
	})
}
