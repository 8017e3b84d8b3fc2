package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lumapay/payment-core/internal/domain/models"
	"github.com/shopspring/decimal"
)

// ContractRepository owns RecurringContract records. Contracts are never
// hard-deleted; only status transitions represent change over time.
type ContractRepository interface {
	Create(ctx context.Context, tx DBTX, contract *models.RecurringContract) error

	GetByID(ctx context.Context, db DBTX, id uuid.UUID) (*models.RecurringContract, error)

	UpdateStatus(ctx context.Context, tx DBTX, id uuid.UUID, status models.ContractStatus) error

	// RecordCharge bumps the usage accumulators after a successful recurring
	// charge and advances next_charge_date for scheduled contracts.
	// Accumulators are never decremented.
	RecordCharge(ctx context.Context, tx DBTX, id uuid.UUID, amount decimal.Decimal, chargedAt time.Time, nextChargeDate *time.Time) error

	ListByCustomer(ctx context.Context, db DBTX, tenantID, customerID string) ([]*models.RecurringContract, error)

	// ListDue returns active scheduled contracts whose next_charge_date has
	// arrived, for the billing sweep
	ListDue(ctx context.Context, db DBTX, asOf time.Time, limit int32) ([]*models.RecurringContract, error)
}
