package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus represents the current lifecycle state of a transaction
type TransactionStatus string

const (
	StatusPending       TransactionStatus = "pending"
	StatusProcessing    TransactionStatus = "processing"
	StatusCompleted     TransactionStatus = "completed"
	StatusFailed        TransactionStatus = "failed"
	StatusPartialRefund TransactionStatus = "partial_refund"
	StatusRefunded      TransactionStatus = "refunded"
)

// IsTerminal returns true once no further provider-driven transition is expected
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusPartialRefund, StatusRefunded:
		return true
	}
	return false
}

// PaymentType distinguishes how the payment was initiated
type PaymentType string

const (
	PaymentTypeOnClick   PaymentType = "onclick"
	PaymentTypeMoto      PaymentType = "moto"
	PaymentTypeRecurrent PaymentType = "recurrent"
)

// Event types recorded in the transaction's append-only history
const (
	EventPaymentInitiated        = "payment.initiated"
	EventPaymentProviderAccepted = "payment.provider_accepted"
	EventPaymentProviderRejected = "payment.provider_rejected"
	EventPaymentProviderError    = "payment.provider_error"
	EventPaymentCaptured         = "payment.captured"
	EventPaymentRefunded         = "payment.refunded"
	EventPaymentReconciled       = "payment.reconciled"
)

// Transaction represents a single payment attempt in the ledger.
// NetAmount is always GrossAmount - CommissionAmount, computed once at
// creation by the commission calculator and never recomputed afterwards.
type Transaction struct {
	ID                string
	TenantID          string
	OrderID           string
	CustomerID        string
	IdempotencyKey    string
	Provider          string
	ProviderPaymentID string
	PaymentType       PaymentType
	GrossAmount       decimal.Decimal
	Currency          string
	CommissionRate    decimal.Decimal
	CommissionAmount  decimal.Decimal
	NetAmount         decimal.Decimal
	Status            TransactionStatus
	FailureReason     string
	FailureCode       string
	ReconcileAttempts int
	Metadata          map[string]string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CanBeCaptured returns true if the transaction is awaiting settlement
func (t *Transaction) CanBeCaptured() bool {
	return t.Status == StatusProcessing && t.ProviderPaymentID != ""
}

// CanBeRefunded returns true if funds have settled and can be returned
func (t *Transaction) CanBeRefunded() bool {
	return t.Status == StatusCompleted || t.Status == StatusPartialRefund
}

// Event is one entry in a transaction's append-only audit history.
// Events are never mutated or deleted.
type Event struct {
	ID            string
	TransactionID string
	Type          string
	Status        TransactionStatus
	Metadata      map[string]string
	CreatedAt     time.Time
}
