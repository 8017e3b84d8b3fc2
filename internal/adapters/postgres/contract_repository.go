package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/lumapay/payment-core/internal/domain/models"
	"github.com/lumapay/payment-core/internal/domain/ports"
	pkgerrors "github.com/lumapay/payment-core/pkg/errors"
)

// ContractRepository is the PostgreSQL implementation of recurring contract
// storage. Contracts are never hard-deleted; cancellation is a status change.
type ContractRepository struct{}

// NewContractRepository creates a new ContractRepository
func NewContractRepository() *ContractRepository {
	return &ContractRepository{}
}

const contractColumns = `
	id, tenant_id, customer_id, provider, provider_contract_id, contract_type,
	token_id, card_last_four, card_brand, card_expiry_month, card_expiry_year,
	frequency_days, max_amount, next_charge_date, status,
	total_charges, total_amount_charged, last_charge_date, last_charge_amount,
	created_at, updated_at, cancelled_at`

// Create inserts a new contract row
func (r *ContractRepository) Create(ctx context.Context, tx ports.DBTX, c *models.RecurringContract) error {
	maxAmount, err := numericFromDecimal(c.MaxAmount)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO recurring_contracts (
			id, tenant_id, customer_id, provider, provider_contract_id, contract_type,
			token_id, card_last_four, card_brand, card_expiry_month, card_expiry_year,
			frequency_days, max_amount, next_charge_date, status
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)`

	_, err = tx.Exec(ctx, query,
		c.ID, c.TenantID, c.CustomerID, c.Provider, nullText(c.ProviderContractID), string(c.Type),
		nullText(c.TokenID), nullText(c.CardLastFour), nullText(c.CardBrand), c.CardExpiryMonth, c.CardExpiryYear,
		c.FrequencyDays, maxAmount, c.NextChargeDate, string(c.Status),
	)
	if err != nil {
		return fmt.Errorf("insert recurring contract: %w", err)
	}
	return nil
}

// GetByID fetches one contract by its identifier
func (r *ContractRepository) GetByID(ctx context.Context, db ports.DBTX, id uuid.UUID) (*models.RecurringContract, error) {
	query := `SELECT` + contractColumns + ` FROM recurring_contracts WHERE id = $1`
	c, err := scanContractFrom(db.QueryRow(ctx, query, id).Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pkgerrors.ErrContractNotFound
		}
		return nil, err
	}
	return c, nil
}

// UpdateStatus transitions the contract's status; cancelled_at is stamped on
// the transition into cancelled
func (r *ContractRepository) UpdateStatus(ctx context.Context, tx ports.DBTX, id uuid.UUID, status models.ContractStatus) error {
	const query = `
		UPDATE recurring_contracts
		SET status = $2,
		    cancelled_at = CASE WHEN $2 = 'cancelled' AND cancelled_at IS NULL THEN now() ELSE cancelled_at END,
		    updated_at = now()
		WHERE id = $1`

	tag, err := tx.Exec(ctx, query, id, string(status))
	if err != nil {
		return fmt.Errorf("update contract status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pkgerrors.ErrContractNotFound
	}
	return nil
}

// RecordCharge bumps the usage accumulators after a successful charge.
// Accumulators only ever grow.
func (r *ContractRepository) RecordCharge(ctx context.Context, tx ports.DBTX, id uuid.UUID, amount decimal.Decimal, chargedAt time.Time, nextChargeDate *time.Time) error {
	charged, err := numericFromDecimal(amount)
	if err != nil {
		return err
	}

	const query = `
		UPDATE recurring_contracts
		SET total_charges = total_charges + 1,
		    total_amount_charged = total_amount_charged + $2,
		    last_charge_date = $3,
		    last_charge_amount = $2,
		    next_charge_date = COALESCE($4, next_charge_date),
		    updated_at = now()
		WHERE id = $1`

	tag, err := tx.Exec(ctx, query, id, charged, chargedAt, nextChargeDate)
	if err != nil {
		return fmt.Errorf("record contract charge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pkgerrors.ErrContractNotFound
	}
	return nil
}

// ListByCustomer returns a customer's contracts, newest first
func (r *ContractRepository) ListByCustomer(ctx context.Context, db ports.DBTX, tenantID, customerID string) ([]*models.RecurringContract, error) {
	query := `SELECT` + contractColumns + `
		FROM recurring_contracts
		WHERE tenant_id = $1 AND customer_id = $2
		ORDER BY created_at DESC`

	rows, err := db.Query(ctx, query, tenantID, customerID)
	if err != nil {
		return nil, fmt.Errorf("query contracts by customer: %w", err)
	}
	defer rows.Close()
	return scanContracts(rows)
}

// ListDue returns active scheduled contracts whose next charge date has
// arrived, oldest due first
func (r *ContractRepository) ListDue(ctx context.Context, db ports.DBTX, asOf time.Time, limit int32) ([]*models.RecurringContract, error) {
	query := `SELECT` + contractColumns + `
		FROM recurring_contracts
		WHERE status = 'active' AND contract_type = 'scheduled'
		  AND next_charge_date IS NOT NULL AND next_charge_date <= $1
		ORDER BY next_charge_date
		LIMIT $2`

	rows, err := db.Query(ctx, query, asOf, limit)
	if err != nil {
		return nil, fmt.Errorf("query due contracts: %w", err)
	}
	defer rows.Close()
	return scanContracts(rows)
}

func scanContracts(rows pgx.Rows) ([]*models.RecurringContract, error) {
	var out []*models.RecurringContract
	for rows.Next() {
		c, err := scanContractFrom(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanContractFrom(scan func(dest ...any) error) (*models.RecurringContract, error) {
	var (
		c                  models.RecurringContract
		providerContractID pgtype.Text
		contractType       string
		tokenID            pgtype.Text
		cardLastFour       pgtype.Text
		cardBrand          pgtype.Text
		expiryMonth        pgtype.Int4
		expiryYear         pgtype.Int4
		maxAmount          pgtype.Numeric
		status             string
		totalCharged       pgtype.Numeric
		lastChargeAmount   pgtype.Numeric
	)

	err := scan(
		&c.ID, &c.TenantID, &c.CustomerID, &c.Provider, &providerContractID, &contractType,
		&tokenID, &cardLastFour, &cardBrand, &expiryMonth, &expiryYear,
		&c.FrequencyDays, &maxAmount, &c.NextChargeDate, &status,
		&c.TotalCharges, &totalCharged, &c.LastChargeDate, &lastChargeAmount,
		&c.CreatedAt, &c.UpdatedAt, &c.CancelledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, fmt.Errorf("scan recurring contract: %w", err)
	}

	c.ProviderContractID = providerContractID.String
	c.Type = models.ContractType(contractType)
	c.TokenID = tokenID.String
	c.CardLastFour = cardLastFour.String
	c.CardBrand = cardBrand.String
	c.CardExpiryMonth = int(expiryMonth.Int32)
	c.CardExpiryYear = int(expiryYear.Int32)
	c.MaxAmount = decimalFromNumeric(maxAmount)
	c.Status = models.ContractStatus(status)
	c.TotalAmountCharged = decimalFromNumeric(totalCharged)
	c.LastChargeAmount = decimalFromNumeric(lastChargeAmount)
	return &c, nil
}
