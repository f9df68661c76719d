package model

import "time"

// Roles carried by users. Admin-only endpoints reject anything else.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// Subscription statuses mirrored from the payment processor.
const (
	SubscriptionNone     = "none"
	SubscriptionActive   = "active"
	SubscriptionPastDue  = "past_due"
	SubscriptionCanceled = "canceled"
)

type User struct {
	ID                   int64     `json:"id"`
	Name                 string    `json:"name"`
	Email                string    `json:"email"`
	PasswordHash         string    `json:"-"`
	Role                 string    `json:"role"`
	SubscriptionStatus   string    `json:"subscription_status"`
	StripeCustomerID     *string   `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID *string   `json:"stripe_subscription_id,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Course holds its thumbnail as an opaque media store id plus the public URL
// derived at upload time. An empty media id means no real asset exists yet.
type Course struct {
	ID               int64     `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Category         string    `json:"category"`
	CreatedBy        string    `json:"created_by"`
	ThumbnailMediaID string    `json:"thumbnail_media_id"`
	ThumbnailURL     string    `json:"thumbnail_url"`
	NumberOfLectures int       `json:"number_of_lectures"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type Lecture struct {
	ID           int64     `json:"id"`
	CourseID     int64     `json:"course_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	VideoMediaID string    `json:"video_media_id"`
	VideoURL     string    `json:"video_url"`
	Position     int       `json:"position"`
	CreatedAt    time.Time `json:"created_at"`
}

// Payment is an append-only audit record of a successful charge. One row per
// payment intent, enforced by a unique index.
type Payment struct {
	ID                    int64     `json:"id"`
	UserID                int64     `json:"user_id"`
	StripePaymentIntentID string    `json:"stripe_payment_intent_id"`
	StripeSubscriptionID  string    `json:"stripe_subscription_id"`
	AmountPaid            int64     `json:"amount_paid"`
	Status                string    `json:"status"`
	CreatedAt             time.Time `json:"created_at"`
}
