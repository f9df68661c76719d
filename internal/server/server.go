package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ednova/ednova/internal/handler"
	"github.com/ednova/ednova/internal/media"
	"github.com/ednova/ednova/internal/middleware"
	"github.com/ednova/ednova/internal/payments"
	"github.com/ednova/ednova/internal/reconcile"
	"github.com/ednova/ednova/internal/store"
)

type Config struct {
	JWTSecret []byte
	Stripe    payments.Config
	Media     media.Config
}

type Server struct {
	db          *sql.DB
	users       *store.UserStore
	courses     *store.CourseStore
	payments    *store.PaymentStore
	authH       *handler.AuthHandler
	courseH     *handler.CourseHandler
	paymentH    *handler.PaymentHandler
	webhookH    *handler.WebhookHandler
	jwtSecret   []byte
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	users := store.NewUserStore(db)
	courses := store.NewCourseStore(db)
	paymentStore := store.NewPaymentStore(db)

	stripeClient := payments.NewClient(cfg.Stripe)
	mediaStore := media.New(cfg.Media)

	reconciler := reconcile.New(users, paymentStore, logger.With("component", "reconcile"))

	return &Server{
		db:          db,
		users:       users,
		courses:     courses,
		payments:    paymentStore,
		authH:       handler.NewAuthHandler(users, cfg.JWTSecret, logger.With("component", "auth")),
		courseH:     handler.NewCourseHandler(courses, mediaStore, logger.With("component", "course")),
		paymentH:    handler.NewPaymentHandler(users, paymentStore, stripeClient, logger.With("component", "payment")),
		webhookH:    handler.NewWebhookHandler(stripeClient, reconciler, logger.With("component", "webhook")),
		jwtSecret:   cfg.JWTSecret,
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
	}
}

// RateLimiter exposes the limiter for periodic cleanup.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	authMw := middleware.RequireAuth(s.jwtSecret)
	adminMw := func(h http.Handler) http.Handler {
		return authMw(middleware.RequireAdmin(h))
	}
	rateLimitMw := middleware.LimitByIP(s.rateLimiter, 10, time.Minute)

	// Liveness
	mux.HandleFunc("GET /ping", s.ping)

	// User auth surface
	mux.Handle("POST /api/v1/user/register", rateLimitMw(http.HandlerFunc(s.authH.Register)))
	mux.Handle("POST /api/v1/user/login", rateLimitMw(http.HandlerFunc(s.authH.Login)))
	mux.HandleFunc("POST /api/v1/user/logout", s.authH.Logout)
	mux.Handle("GET /api/v1/user/me", authMw(http.HandlerFunc(s.authH.Me)))

	// Course surface
	mux.HandleFunc("GET /api/v1/courses", s.courseH.List)
	mux.Handle("GET /api/v1/courses/{id}/lectures", authMw(http.HandlerFunc(s.courseH.Lectures)))
	mux.Handle("POST /api/v1/courses", adminMw(http.HandlerFunc(s.courseH.Create)))
	mux.Handle("PUT /api/v1/courses/{id}", adminMw(http.HandlerFunc(s.courseH.Update)))
	mux.Handle("DELETE /api/v1/courses/{id}", adminMw(http.HandlerFunc(s.courseH.Delete)))
	mux.Handle("POST /api/v1/courses/{id}/lectures", adminMw(http.HandlerFunc(s.courseH.AddLecture)))
	mux.Handle("DELETE /api/v1/courses/{course_id}/lectures/{lecture_id}", adminMw(http.HandlerFunc(s.courseH.RemoveLecture)))

	// Subscription surface
	mux.Handle("GET /api/v1/payments/stripe-key", authMw(http.HandlerFunc(s.paymentH.StripeKey)))
	mux.Handle("POST /api/v1/payments/subscribe", authMw(http.HandlerFunc(s.paymentH.Subscribe)))
	mux.Handle("POST /api/v1/payments/unsubscribe", authMw(http.HandlerFunc(s.paymentH.Unsubscribe)))
	mux.Handle("GET /api/v1/payments", adminMw(http.HandlerFunc(s.paymentH.AllSubscriptions)))
	mux.Handle("GET /api/v1/admin/stats", adminMw(http.HandlerFunc(s.paymentH.Stats)))

	// Processor webhook: public, raw body, signature-verified inside.
	mux.HandleFunc("POST /api/v1/payments/webhook", s.webhookH.HandleEvent)

	// Everything else is a generic not-found.
	mux.HandleFunc("/", s.notFound)

	return middleware.RequestLogger(s.logger)(mux)
}

func (s *Server) ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Pong"})
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "resource not found"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
