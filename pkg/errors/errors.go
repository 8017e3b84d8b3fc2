package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies a payment failure for handling and reporting
type ErrorCategory string

const (
	// CategoryConfiguration - unknown provider, missing tenant config,
	// MOTO/recurring not provisioned. Detected before any provider call.
	CategoryConfiguration ErrorCategory = "configuration"
	// CategoryPrecondition - contract missing/inactive, capability unsupported,
	// transaction not in a refundable state. No network call is made.
	CategoryPrecondition ErrorCategory = "precondition"
	// CategoryBusiness - the provider processed the request and declined it
	// (insufficient funds, 3-D Secure failure, expired card).
	CategoryBusiness ErrorCategory = "business"
	// CategoryTransport - timeout, network error, malformed provider response.
	// The true provider-side outcome is unknown; reconcile via status polling.
	CategoryTransport ErrorCategory = "transport"
)

// Sentinel errors shared across the storage layer
var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrContractNotFound    = errors.New("recurring contract not found")
	// ErrDuplicateIdempotencyKey is returned by the ledger when a concurrent
	// insert lost the (tenant_id, idempotency_key) uniqueness race. The caller
	// must re-read and return the winner's record.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
	// ErrOperationNotSupported is returned by an adapter when an optional
	// operation is invoked despite the capability flag being false. The
	// orchestrator is expected to prevent this.
	ErrOperationNotSupported = errors.New("operation not supported by provider")
)

// PaymentError carries a structured payment failure with provider context
type PaymentError struct {
	Code            string
	Message         string
	ProviderMessage string
	Category        ErrorCategory
	Retriable       bool
}

func (e *PaymentError) Error() string {
	if e.ProviderMessage != "" {
		return fmt.Sprintf("%s: %s (provider: %s)", e.Code, e.Message, e.ProviderMessage)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewPaymentError creates a new payment error
func NewPaymentError(code, message string, category ErrorCategory, retriable bool) *PaymentError {
	return &PaymentError{
		Code:      code,
		Message:   message,
		Category:  category,
		Retriable: retriable,
	}
}

// NewConfigurationError creates a non-retriable configuration error
func NewConfigurationError(code, message string) *PaymentError {
	return NewPaymentError(code, message, CategoryConfiguration, false)
}

// NewPreconditionError creates a non-retriable precondition error
func NewPreconditionError(code, message string) *PaymentError {
	return NewPaymentError(code, message, CategoryPrecondition, false)
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
