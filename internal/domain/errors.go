package domain

import "fmt"

// ValidationError marks a malformed client request, mapped to 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError marks an unknown catalog item or order, mapped to 404.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// SignatureError marks a missing or invalid webhook signature. It is raised
// before any event processing so unauthenticated payloads never cause side
// effects. Mapped to 400.
type SignatureError struct {
	Reason string
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("webhook signature verification failed: %s", e.Reason)
}

// InvariantError marks local state out of sync with the gateway, e.g. a
// terminal event for an order this service never created. Mapped to 500 so
// the gateway redelivers after an operator investigates.
type InvariantError struct {
	Message string
}

func (e *InvariantError) Error() string {
	return e.Message
}

func NewInvariantError(format string, args ...interface{}) *InvariantError {
	return &InvariantError{Message: fmt.Sprintf(format, args...)}
}

// GatewayError carries the payment gateway's own error semantics through to
// the HTTP layer.
type GatewayError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway error (%d %s): %s", e.StatusCode, e.Code, e.Message)
}
