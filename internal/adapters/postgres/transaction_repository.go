package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lumapay/payment-core/internal/domain/models"
	"github.com/lumapay/payment-core/internal/domain/ports"
	pkgerrors "github.com/lumapay/payment-core/pkg/errors"
)

const pgUniqueViolation = "23505"

// TransactionRepository is the PostgreSQL implementation of the transaction
// ledger. Idempotency is enforced by the partial unique index on
// (tenant_id, idempotency_key); a losing concurrent insert surfaces as
// ErrDuplicateIdempotencyKey for the caller to re-read the winner.
type TransactionRepository struct{}

// NewTransactionRepository creates a new TransactionRepository
func NewTransactionRepository() *TransactionRepository {
	return &TransactionRepository{}
}

const transactionColumns = `
	id, tenant_id, order_id, customer_id, idempotency_key,
	provider, provider_payment_id, payment_type,
	gross_amount, currency, commission_rate, commission_amount, net_amount,
	status, failure_reason, failure_code, reconcile_attempts, metadata,
	created_at, updated_at`

// Create inserts a new ledger row. The caller sets ID, amounts and status;
// timestamps default in the database.
func (r *TransactionRepository) Create(ctx context.Context, tx ports.DBTX, t *models.Transaction) error {
	gross, err := numericFromDecimal(t.GrossAmount)
	if err != nil {
		return err
	}
	rate, err := numericFromDecimal(t.CommissionRate)
	if err != nil {
		return err
	}
	commission, err := numericFromDecimal(t.CommissionAmount)
	if err != nil {
		return err
	}
	net, err := numericFromDecimal(t.NetAmount)
	if err != nil {
		return err
	}
	meta, err := metadataJSON(t.Metadata)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO transactions (
			id, tenant_id, order_id, customer_id, idempotency_key,
			provider, provider_payment_id, payment_type,
			gross_amount, currency, commission_rate, commission_amount, net_amount,
			status, failure_reason, failure_code, metadata
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17
		)`

	_, err = tx.Exec(ctx, query,
		t.ID, t.TenantID, t.OrderID, nullText(t.CustomerID), nullText(t.IdempotencyKey),
		t.Provider, nullText(t.ProviderPaymentID), string(t.PaymentType),
		gross, t.Currency, rate, commission, net,
		string(t.Status), nullText(t.FailureReason), nullText(t.FailureCode), meta,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return pkgerrors.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetByID fetches one transaction by its identifier
func (r *TransactionRepository) GetByID(ctx context.Context, db ports.DBTX, id uuid.UUID) (*models.Transaction, error) {
	query := `SELECT` + transactionColumns + ` FROM transactions WHERE id = $1`
	return scanTransaction(db.QueryRow(ctx, query, id))
}

// GetByIdempotencyKey fetches the transaction recorded for a tenant's
// idempotency key, if any
func (r *TransactionRepository) GetByIdempotencyKey(ctx context.Context, db ports.DBTX, tenantID, key string) (*models.Transaction, error) {
	query := `SELECT` + transactionColumns + ` FROM transactions WHERE tenant_id = $1 AND idempotency_key = $2`
	return scanTransaction(db.QueryRow(ctx, query, tenantID, key))
}

// AppendEvent adds one row to the append-only audit history
func (r *TransactionRepository) AppendEvent(ctx context.Context, tx ports.DBTX, event *models.Event) error {
	meta, err := metadataJSON(event.Metadata)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO transaction_events (id, transaction_id, event_type, status, metadata)
		VALUES ($1, $2, $3, $4, $5)`

	if _, err := tx.Exec(ctx, query, event.ID, event.TransactionID, event.Type, string(event.Status), meta); err != nil {
		return fmt.Errorf("insert transaction event: %w", err)
	}
	return nil
}

// UpdateStatus transitions the transaction's status. Optional fields in update
// are applied only when non-nil; COALESCE keeps the stored value otherwise.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, tx ports.DBTX, id uuid.UUID, status models.TransactionStatus, update *ports.StatusUpdate) error {
	if update == nil {
		update = &ports.StatusUpdate{}
	}

	const query = `
		UPDATE transactions
		SET status = $2,
		    provider_payment_id = COALESCE($3, provider_payment_id),
		    failure_reason = COALESCE($4, failure_reason),
		    failure_code = COALESCE($5, failure_code),
		    updated_at = now()
		WHERE id = $1`

	tag, err := tx.Exec(ctx, query, id, string(status),
		update.ProviderPaymentID, update.FailureReason, update.FailureCode)
	if err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pkgerrors.ErrTransactionNotFound
	}
	return nil
}

// ListEvents returns the audit history for a transaction in insertion order
func (r *TransactionRepository) ListEvents(ctx context.Context, db ports.DBTX, transactionID uuid.UUID) ([]*models.Event, error) {
	const query = `
		SELECT id, transaction_id, event_type, status, metadata, created_at
		FROM transaction_events
		WHERE transaction_id = $1
		ORDER BY created_at, id`

	rows, err := db.Query(ctx, query, transactionID)
	if err != nil {
		return nil, fmt.Errorf("query transaction events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		var (
			e      models.Event
			status string
			meta   []byte
		)
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.Type, &status, &meta, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction event: %w", err)
		}
		e.Status = models.TransactionStatus(status)
		if e.Metadata, err = metadataFromJSON(meta); err != nil {
			return nil, err
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

// ListByTenant returns a tenant's transactions, newest first
func (r *TransactionRepository) ListByTenant(ctx context.Context, db ports.DBTX, tenantID string, limit, offset int32) ([]*models.Transaction, error) {
	query := `SELECT` + transactionColumns + `
		FROM transactions
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := db.Query(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query transactions by tenant: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// ListStuck returns non-terminal transactions untouched since before the
// cutoff, skipping rows the reconciler has already given up on
func (r *TransactionRepository) ListStuck(ctx context.Context, db ports.DBTX, cutoff time.Time, maxAttempts int, limit int32) ([]*models.Transaction, error) {
	query := `SELECT` + transactionColumns + `
		FROM transactions
		WHERE status IN ('pending', 'processing')
		  AND updated_at < $1
		  AND reconcile_attempts < $2
		ORDER BY updated_at
		LIMIT $3`

	rows, err := db.Query(ctx, query, cutoff, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("query stuck transactions: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// IncrementReconcileAttempts bumps the sweep attempt counter
func (r *TransactionRepository) IncrementReconcileAttempts(ctx context.Context, tx ports.DBTX, id uuid.UUID) error {
	const query = `
		UPDATE transactions
		SET reconcile_attempts = reconcile_attempts + 1, updated_at = now()
		WHERE id = $1`

	tag, err := tx.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("increment reconcile attempts: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pkgerrors.ErrTransactionNotFound
	}
	return nil
}

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	t, err := scanTransactionFrom(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pkgerrors.ErrTransactionNotFound
		}
		return nil, err
	}
	return t, nil
}

func scanTransactions(rows pgx.Rows) ([]*models.Transaction, error) {
	var out []*models.Transaction
	for rows.Next() {
		t, err := scanTransactionFrom(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTransactionFrom(scan func(dest ...any) error) (*models.Transaction, error) {
	var (
		t             models.Transaction
		customerID    pgtype.Text
		idemKey       pgtype.Text
		providerPayID pgtype.Text
		paymentType   string
		gross         pgtype.Numeric
		rate          pgtype.Numeric
		commission    pgtype.Numeric
		net           pgtype.Numeric
		status        string
		failureReason pgtype.Text
		failureCode   pgtype.Text
		meta          []byte
	)

	err := scan(
		&t.ID, &t.TenantID, &t.OrderID, &customerID, &idemKey,
		&t.Provider, &providerPayID, &paymentType,
		&gross, &t.Currency, &rate, &commission, &net,
		&status, &failureReason, &failureCode, &t.ReconcileAttempts, &meta,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}

	t.CustomerID = customerID.String
	t.IdempotencyKey = idemKey.String
	t.ProviderPaymentID = providerPayID.String
	t.PaymentType = models.PaymentType(paymentType)
	t.GrossAmount = decimalFromNumeric(gross)
	t.CommissionRate = decimalFromNumeric(rate)
	t.CommissionAmount = decimalFromNumeric(commission)
	t.NetAmount = decimalFromNumeric(net)
	t.Status = models.TransactionStatus(status)
	t.FailureReason = failureReason.String
	t.FailureCode = failureCode.String
	if t.Metadata, err = metadataFromJSON(meta); err != nil {
		return nil, err
	}
	return &t, nil
}
