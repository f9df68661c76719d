package store

import (
	"database/sql"
	"fmt"

	"github.com/ednova/ednova/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var customerID, subscriptionID sql.NullString
	err := scanner.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role,
		&u.SubscriptionStatus, &customerID, &subscriptionID,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if customerID.Valid {
		u.StripeCustomerID = &customerID.String
	}
	if subscriptionID.Valid {
		u.StripeSubscriptionID = &subscriptionID.String
	}
	return &u, nil
}

const userCols = `id, name, email, password_hash, role, subscription_status, stripe_customer_id, stripe_subscription_id, created_at, updated_at`

// Create inserts a user. Callers on the public surface must pass RoleUser;
// the admin path exists for seeding accounts out of band.
func (s *UserStore) Create(name, email, passwordHash, role string) (*model.User, error) {
	if role != model.RoleAdmin {
		role = model.RoleUser
	}
	result, err := s.db.Exec(
		`INSERT INTO users (name, email, password_hash, role) VALUES (?, ?, ?, ?)`,
		name, email, passwordHash, role,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByStripeSubscriptionID(subscriptionID string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE stripe_subscription_id = ?`, subscriptionID)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by stripe subscription id: %w", err)
	}
	return u, nil
}

func (s *UserStore) UpdateStripeCustomerID(id int64, customerID string) error {
	_, err := s.db.Exec(
		`UPDATE users SET stripe_customer_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		customerID, id,
	)
	if err != nil {
		return fmt.Errorf("update stripe customer id: %w", err)
	}
	return nil
}

// AttachSubscription records a newly created processor subscription. The
// update is conditional on the user still holding priorSubscriptionID (nil
// for none), so a sequential replace of a stale subscription succeeds while
// two racing subscribe calls cannot both win. Returns false when the guard
// rejected the write.
func (s *UserStore) AttachSubscription(userID int64, priorSubscriptionID *string, subscriptionID, status string) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE users
		 SET stripe_subscription_id = ?, subscription_status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND stripe_subscription_id IS ?`,
		subscriptionID, status, userID, priorSubscriptionID,
	)
	if err != nil {
		return false, fmt.Errorf("attach subscription: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// UpdateStatusBySubscriptionID sets the subscription status of whichever
// user currently holds the given subscription id. A single conditional
// statement, so concurrent webhook deliveries serialize at the row. Returns
// false when no user holds the id.
func (s *UserStore) UpdateStatusBySubscriptionID(subscriptionID, status string) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE users SET subscription_status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE stripe_subscription_id = ?`,
		status, subscriptionID,
	)
	if err != nil {
		return false, fmt.Errorf("update subscription status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ClearSubscriptionBySubscriptionID marks the holder of the subscription id
// as canceled and clears the id. Used by the reconciler on
// subscription-deletion events.
func (s *UserStore) ClearSubscriptionBySubscriptionID(subscriptionID string) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE users
		 SET subscription_status = ?, stripe_subscription_id = NULL, updated_at = CURRENT_TIMESTAMP
		 WHERE stripe_subscription_id = ?`,
		model.SubscriptionCanceled, subscriptionID,
	)
	if err != nil {
		return false, fmt.Errorf("clear subscription: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ClearSubscription is the user-initiated variant: it only clears when the
// user still holds the expected subscription id, so a cancel racing a
// webhook cannot clobber a newer subscription.
func (s *UserStore) ClearSubscription(userID int64, subscriptionID string) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE users
		 SET subscription_status = ?, stripe_subscription_id = NULL, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND stripe_subscription_id = ?`,
		model.SubscriptionCanceled, userID, subscriptionID,
	)
	if err != nil {
		return false, fmt.Errorf("clear subscription: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *UserStore) CountUsers() (int64, error) {
	var n int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (s *UserStore) CountActiveSubscribers() (int64, error) {
	var n int64
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM users WHERE subscription_status = ?`,
		model.SubscriptionActive,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active subscribers: %w", err)
	}
	return n, nil
}
