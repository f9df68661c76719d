package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ednova/ednova/internal/database"
	"github.com/ednova/ednova/internal/logging"
	"github.com/ednova/ednova/internal/media"
	"github.com/ednova/ednova/internal/payments"
	"github.com/ednova/ednova/internal/server"
)

func main() {
	logger := logging.Setup(os.Getenv("EDNOVA_LOG_LEVEL"), os.Getenv("EDNOVA_LOG_FORMAT"))

	port := os.Getenv("EDNOVA_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("EDNOVA_DB_PATH")
	if dbPath == "" {
		dbPath = "ednova.db"
	}

	jwtSecret := os.Getenv("EDNOVA_JWT_SECRET")
	if jwtSecret == "" {
		// An ephemeral secret invalidates tokens on restart; fine for dev,
		// wrong for production, hence the warning.
		buf := make([]byte, 32)
		rand.Read(buf)
		jwtSecret = hex.EncodeToString(buf)
		slog.Warn("EDNOVA_JWT_SECRET not set, using ephemeral secret")
	}

	db, err := database.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	cfg := server.Config{
		JWTSecret: []byte(jwtSecret),
		Stripe: payments.Config{
			SecretKey:      os.Getenv("STRIPE_SECRET_KEY"),
			PublishableKey: os.Getenv("STRIPE_PUBLISHABLE_KEY"),
			WebhookSecret:  os.Getenv("STRIPE_WEBHOOK_SECRET"),
			PriceID:        os.Getenv("STRIPE_PRICE_ID"),
		},
		Media: media.Config{
			Endpoint:      os.Getenv("MEDIA_S3_ENDPOINT"),
			Bucket:        os.Getenv("MEDIA_S3_BUCKET"),
			Region:        os.Getenv("MEDIA_S3_REGION"),
			AccessKey:     os.Getenv("MEDIA_S3_ACCESS_KEY"),
			SecretKey:     os.Getenv("MEDIA_S3_SECRET_KEY"),
			PublicBaseURL: os.Getenv("MEDIA_PUBLIC_BASE_URL"),
		},
	}

	srv := server.New(db, cfg, logger)

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Minute, // large lecture video uploads
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	// Background cleanup goroutine
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	go func() {
		slog.Info("ednova api starting", "addr", ":"+port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	cleanupCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
