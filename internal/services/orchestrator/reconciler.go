package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/time/rate"

	"github.com/lumapay/payment-core/internal/domain/models"
	"github.com/lumapay/payment-core/internal/domain/ports"
	"github.com/lumapay/payment-core/pkg/observability"
	"github.com/lumapay/payment-core/pkg/resilience"
)

// ReconcilerConfig tunes the reconciliation sweep
type ReconcilerConfig struct {
	// Interval between sweeps
	Interval time.Duration
	// StuckAfter is how long a transaction may sit in pending/processing
	// before the sweep picks it up
	StuckAfter time.Duration
	// BatchSize caps the transactions examined per sweep
	BatchSize int32
	// MaxAttempts is the per-transaction poll budget before giving up
	MaxAttempts int
	// PollRate caps provider status polls per second across the sweep
	PollRate rate.Limit
}

// DefaultReconcilerConfig returns production sweep settings
func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		Interval:    time.Minute,
		StuckAfter:  5 * time.Minute,
		BatchSize:   50,
		MaxAttempts: 10,
		PollRate:    5,
	}
}

// Reconciler resolves transactions stranded in pending or processing by
// polling the provider for the authoritative outcome. Webhooks are the fast
// path; the sweep is the guarantee.
type Reconciler struct {
	db        ports.DBPort
	ledger    ports.TransactionLedger
	providers ProviderResolver
	tenants   ports.TenantConfigStore
	logger    ports.Logger
	timeouts  *resilience.TimeoutConfig
	config    ReconcilerConfig
	limiter   *rate.Limiter
	backoff   resilience.BackoffStrategy
}

// NewReconciler creates a new reconciliation sweep
func NewReconciler(
	db ports.DBPort,
	ledger ports.TransactionLedger,
	providers ProviderResolver,
	tenants ports.TenantConfigStore,
	logger ports.Logger,
	timeouts *resilience.TimeoutConfig,
	config ReconcilerConfig,
) *Reconciler {
	return &Reconciler{
		db:        db,
		ledger:    ledger,
		providers: providers,
		tenants:   tenants,
		logger:    logger,
		timeouts:  timeouts,
		config:    config,
		limiter:   rate.NewLimiter(config.PollRate, 1),
		backoff:   resilience.ReconcileBackoff(config.StuckAfter),
	}
}

// Run sweeps on the configured interval until the context is cancelled
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	r.logger.Info("reconciler started",
		ports.String("interval", r.config.Interval.String()),
		ports.String("stuck_after", r.config.StuckAfter.String()),
	)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return
		case <-ticker.C:
			if err := r.SweepOnce(ctx); err != nil {
				r.logger.Error("reconciliation sweep failed", ports.Err(err))
			}
		}
	}
}

// SweepOnce examines one batch of stuck transactions and polls the provider
// for each. Provider polls are rate limited so a large backlog cannot flood
// an acquirer that is likely already struggling.
func (r *Reconciler) SweepOnce(ctx context.Context) error {
	ctx, cancel := r.timeouts.SweepContext(ctx)
	defer cancel()

	observability.RecordSweep()

	cutoff := time.Now().Add(-r.config.StuckAfter)
	stuck, err := r.ledger.ListStuck(ctx, r.db.GetDB(), cutoff, r.config.MaxAttempts, r.config.BatchSize)
	if err != nil {
		return fmt.Errorf("list stuck transactions: %w", err)
	}
	if len(stuck) == 0 {
		return nil
	}

	r.logger.Info("reconciling stuck transactions", ports.Int("count", len(stuck)))

	for _, txn := range stuck {
		// Each unresolved poll doubles the wait before the next one; a row
		// listed before its turn is left for a later sweep without burning
		// attempt budget or a rate-limiter slot.
		if time.Since(txn.UpdatedAt) < r.backoff.NextDelay(txn.ReconcileAttempts) {
			continue
		}
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}
		if err := r.reconcileOne(ctx, txn); err != nil {
			r.logger.Warn("failed to reconcile transaction",
				ports.String("transaction_id", txn.ID),
				ports.Err(err),
			)
		}
	}
	return nil
}

func (r *Reconciler) reconcileOne(ctx context.Context, txn *models.Transaction) error {
	txnID, err := uuid.Parse(txn.ID)
	if err != nil {
		return fmt.Errorf("parse transaction id: %w", err)
	}

	// Without a provider payment ID there is nothing to poll: the provider
	// never acknowledged the payment. Give it the full attempt budget in
	// case a webhook is merely late, then fail it.
	if txn.ProviderPaymentID == "" {
		if txn.ReconcileAttempts+1 >= r.config.MaxAttempts {
			return r.resolve(ctx, txnID, txn, models.StatusFailed, "provider never acknowledged the payment")
		}
		return r.bumpAttempts(ctx, txnID)
	}

	provider, cfg, err := r.resolveProvider(ctx, txn.TenantID, txn.Provider)
	if err != nil {
		// Tenant config problems do not fix themselves between polls, but
		// they are operator-fixable; keep counting attempts.
		if bumpErr := r.bumpAttempts(ctx, txnID); bumpErr != nil {
			return bumpErr
		}
		return err
	}

	pollCtx, cancel := r.timeouts.StatusPollContext(ctx)
	defer cancel()

	result, err := provider.GetPaymentStatus(pollCtx, cfg, txn.ProviderPaymentID)
	if err != nil {
		return r.bumpAttempts(ctx, txnID)
	}

	resolved := statusFromProvider(result.Status)
	if resolved == models.StatusProcessing && txn.Status == models.StatusProcessing {
		// Still in flight at the provider; try again next sweep
		return r.bumpAttempts(ctx, txnID)
	}
	if resolved == txn.Status {
		return r.bumpAttempts(ctx, txnID)
	}

	reason := ""
	if resolved == models.StatusFailed && result.Error != "" {
		reason = result.Error
	}
	return r.resolve(ctx, txnID, txn, resolved, reason)
}

// resolve settles the transaction to its polled status and records a
// reconciled event
func (r *Reconciler) resolve(ctx context.Context, txnID uuid.UUID, txn *models.Transaction, status models.TransactionStatus, reason string) error {
	var update ports.StatusUpdate
	if reason != "" {
		update.FailureReason = &reason
	}

	err := r.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := r.ledger.UpdateStatus(ctx, tx, txnID, status, &update); err != nil {
			return err
		}
		meta := map[string]string{"previous_status": string(txn.Status)}
		if reason != "" {
			meta["reason"] = reason
		}
		return r.ledger.AppendEvent(ctx, tx, &models.Event{
			ID:            uuid.NewString(),
			TransactionID: txn.ID,
			Type:          models.EventPaymentReconciled,
			Status:        status,
			Metadata:      meta,
		})
	})
	if err != nil {
		return fmt.Errorf("resolve transaction: %w", err)
	}

	observability.RecordReconciled(txn.Provider, string(status))
	r.logger.Info("transaction reconciled",
		ports.String("transaction_id", txn.ID),
		ports.String("from", string(txn.Status)),
		ports.String("to", string(status)),
	)
	return nil
}

func (r *Reconciler) bumpAttempts(ctx context.Context, txnID uuid.UUID) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return r.ledger.IncrementReconcileAttempts(ctx, tx, txnID)
	})
}

func (r *Reconciler) resolveProvider(ctx context.Context, tenantID, providerName string) (ports.PaymentProvider, *ports.ProviderConfig, error) {
	provider, err := r.providers.Get(providerName)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := r.tenants.GetProviderConfig(ctx, tenantID, providerName)
	if err != nil {
		return nil, nil, err
	}
	if cfg == nil {
		return nil, nil, fmt.Errorf("tenant %s has no configuration for provider %s", tenantID, providerName)
	}
	return provider, cfg, nil
}
