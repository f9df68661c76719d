package store

import (
	"database/sql"
	"fmt"

	"github.com/ednova/ednova/internal/model"
)

// PaymentStore writes the append-only audit log of successful charges.
// Rows are never updated or deleted.
type PaymentStore struct {
	db *sql.DB
}

func NewPaymentStore(db *sql.DB) *PaymentStore {
	return &PaymentStore{db: db}
}

const paymentCols = `id, user_id, stripe_payment_intent_id, stripe_subscription_id, amount_paid, status, created_at`

func scanPayment(scanner interface{ Scan(...any) error }) (*model.Payment, error) {
	var p model.Payment
	err := scanner.Scan(
		&p.ID, &p.UserID, &p.StripePaymentIntentID, &p.StripeSubscriptionID,
		&p.AmountPaid, &p.Status, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Record inserts one audit row per payment intent. Redelivered events hit
// the unique index and are absorbed, so the returned bool reports whether
// this call actually created the row.
func (s *PaymentStore) Record(userID int64, paymentIntentID, subscriptionID string, amountPaid int64, status string) (bool, error) {
	result, err := s.db.Exec(
		`INSERT INTO payments (user_id, stripe_payment_intent_id, stripe_subscription_id, amount_paid, status)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(stripe_payment_intent_id) DO NOTHING`,
		userID, paymentIntentID, subscriptionID, amountPaid, status,
	)
	if err != nil {
		return false, fmt.Errorf("insert payment: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *PaymentStore) GetByPaymentIntentID(paymentIntentID string) (*model.Payment, error) {
	row := s.db.QueryRow(
		`SELECT `+paymentCols+` FROM payments WHERE stripe_payment_intent_id = ?`,
		paymentIntentID,
	)
	p, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

func (s *PaymentStore) ListByUser(userID int64) ([]model.Payment, error) {
	rows, err := s.db.Query(
		`SELECT `+paymentCols+` FROM payments WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

func (s *PaymentStore) CountBySubscriptionID(subscriptionID string) (int64, error) {
	var n int64
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM payments WHERE stripe_subscription_id = ?`,
		subscriptionID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count payments: %w", err)
	}
	return n, nil
}
