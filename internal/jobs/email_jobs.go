package jobs

import (
	"time"

	"github.com/google/uuid"
)

type JobType string

const (
	// Customer-facing confirmation, requires email + first name.
	JobOrderConfirmation JobType = "orderConfirmation"

	// Admin notices, sent regardless of customer contact data.
	JobOrderCreated   JobType = "orderCreated"
	JobOrderConfirmed JobType = "orderConfirmed"
)

// EmailJob is the envelope handed to the external email worker. The retry
// policy is honored by the worker, not by this service.
type EmailJob struct {
	ID        uuid.UUID   `json:"id"`
	Type      JobType     `json:"type"`
	Payload   interface{} `json:"payload"`
	Retry     RetryPolicy `json:"retry"`
	Timestamp time.Time   `json:"timestamp"`
}

type RetryPolicy struct {
	MaxAttempts    int `json:"max_attempts"`
	BackoffSeconds int `json:"backoff_seconds"`
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BackoffSeconds: 30}
}

// OrderConfirmationPayload addresses the confirmation template.
type OrderConfirmationPayload struct {
	Email     string  `json:"email"`
	FirstName string  `json:"first_name"`
	PaymentID string  `json:"payment_id"`
	Total     float64 `json:"total"`
	Currency  string  `json:"currency"`
}

// AdminNoticePayload backs the order-created and order-confirmed notices.
type AdminNoticePayload struct {
	PaymentID string  `json:"payment_id"`
	Total     float64 `json:"total"`
	Currency  string  `json:"currency"`
}
