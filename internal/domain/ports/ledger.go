package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lumapay/payment-core/internal/domain/models"
)

// StatusUpdate carries the optional fields set alongside a status transition.
// Nil pointers leave the stored value untouched.
type StatusUpdate struct {
	ProviderPaymentID *string
	FailureReason     *string
	FailureCode       *string
}

// TransactionLedger is the persistent, append-only record of payment attempts
// and the source of truth for idempotency. Implementations enforce a
// uniqueness constraint on (tenant_id, idempotency_key): a losing concurrent
// Create returns pkg/errors.ErrDuplicateIdempotencyKey and the caller re-reads
// the winner. Events are append-only; transactions are never hard-deleted.
type TransactionLedger interface {
	Create(ctx context.Context, tx DBTX, transaction *models.Transaction) error

	GetByID(ctx context.Context, db DBTX, id uuid.UUID) (*models.Transaction, error)

	GetByIdempotencyKey(ctx context.Context, db DBTX, tenantID, key string) (*models.Transaction, error)

	// AppendEvent adds one entry to the transaction's audit history
	AppendEvent(ctx context.Context, tx DBTX, event *models.Event) error

	// UpdateStatus transitions a transaction's status. Callers are expected
	// to append a matching event within the same database transaction; a
	// status change without an event recording why is a defect.
	UpdateStatus(ctx context.Context, tx DBTX, id uuid.UUID, status models.TransactionStatus, update *StatusUpdate) error

	ListEvents(ctx context.Context, db DBTX, transactionID uuid.UUID) ([]*models.Event, error)

	ListByTenant(ctx context.Context, db DBTX, tenantID string, limit, offset int32) ([]*models.Transaction, error)

	// ListStuck returns transactions sitting in pending/processing since
	// before the cutoff with fewer than maxAttempts reconcile attempts
	ListStuck(ctx context.Context, db DBTX, cutoff time.Time, maxAttempts int, limit int32) ([]*models.Transaction, error)

	IncrementReconcileAttempts(ctx context.Context, tx DBTX, id uuid.UUID) error
}
