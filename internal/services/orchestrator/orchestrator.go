// Package orchestrator implements the payment pipeline: provider resolution,
// tenant configuration, commission calculation, ledger writes and the
// provider call itself. Provider calls are always made outside database
// transactions; a payment row is created pending first, and the outcome is
// recorded in a second transaction once the provider answers.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/lumapay/payment-core/internal/domain/commission"
	"github.com/lumapay/payment-core/internal/domain/models"
	"github.com/lumapay/payment-core/internal/domain/ports"
	pkgerrors "github.com/lumapay/payment-core/pkg/errors"
	"github.com/lumapay/payment-core/pkg/observability"
	"github.com/lumapay/payment-core/pkg/resilience"
)

// ProviderResolver resolves a provider name to its adapter
type ProviderResolver interface {
	Get(name string) (ports.PaymentProvider, error)
}

// Service coordinates payment processing across the ledger, tenant
// configuration and provider adapters
type Service struct {
	db        ports.DBPort
	ledger    ports.TransactionLedger
	contracts ports.ContractRepository
	providers ProviderResolver
	tenants   ports.TenantConfigStore
	logger    ports.Logger
	timeouts  *resilience.TimeoutConfig
}

// NewService creates a new payment orchestrator
func NewService(
	db ports.DBPort,
	ledger ports.TransactionLedger,
	contracts ports.ContractRepository,
	providers ProviderResolver,
	tenants ports.TenantConfigStore,
	logger ports.Logger,
	timeouts *resilience.TimeoutConfig,
) *Service {
	return &Service{
		db:        db,
		ledger:    ledger,
		contracts: contracts,
		providers: providers,
		tenants:   tenants,
		logger:    logger,
		timeouts:  timeouts,
	}
}

// ProcessPaymentRequest carries the inputs for a payment. Amounts arrive
// already finalized from the order subsystem.
type ProcessPaymentRequest struct {
	TenantID       string
	OrderID        string
	CustomerID     string
	Provider       string
	Amount         decimal.Decimal
	Currency       string
	Description    string
	IdempotencyKey string
	ReturnURL      string
	Metadata       map[string]string
}

// PaymentResponse is the outcome of a payment operation
type PaymentResponse struct {
	Success           bool
	TransactionID     string
	Status            models.TransactionStatus
	ProviderPaymentID string
	RedirectURL       string
	ClientSecret      string
	ErrorCode         string
	Error             string
	// Replayed is true when the response was served from the ledger for a
	// previously seen idempotency key, without a provider call
	Replayed bool
}

// ProcessPayment runs a standard customer-initiated payment
func (s *Service) ProcessPayment(ctx context.Context, req ProcessPaymentRequest) (*PaymentResponse, error) {
	return s.processPayment(ctx, req, models.PaymentTypeOnClick)
}

// ProcessMotoPayment runs an operator-keyed MOTO payment. The provider must
// support MOTO and the tenant's merchant profile must have it provisioned;
// neither failure reaches the provider or the ledger.
func (s *Service) ProcessMotoPayment(ctx context.Context, req ProcessPaymentRequest) (*PaymentResponse, error) {
	return s.processPayment(ctx, req, models.PaymentTypeMoto)
}

func (s *Service) processPayment(ctx context.Context, req ProcessPaymentRequest, paymentType models.PaymentType) (*PaymentResponse, error) {
	ctx, cancel := s.timeouts.ServiceContext(ctx)
	defer cancel()

	if err := validatePaymentRequest(&req); err != nil {
		return nil, err
	}

	// Replay wins before anything else is consulted: a recorded response is
	// returned even when the tenant's provider config has since been removed.
	if req.IdempotencyKey != "" {
		existing, err := s.ledger.GetByIdempotencyKey(ctx, s.db.GetDB(), req.TenantID, req.IdempotencyKey)
		if err != nil && !errors.Is(err, pkgerrors.ErrTransactionNotFound) {
			return nil, fmt.Errorf("idempotency lookup: %w", err)
		}
		if existing != nil {
			observability.RecordIdempotentReplay(existing.Provider)
			return replayResponse(existing), nil
		}
	}

	provider, cfg, err := s.resolveProvider(ctx, req.TenantID, req.Provider)
	if err != nil {
		return nil, err
	}

	caps := provider.Capabilities()
	switch paymentType {
	case models.PaymentTypeOnClick:
		if !caps.SupportsOnClick {
			return nil, pkgerrors.NewPreconditionError("capability_unsupported",
				fmt.Sprintf("provider %s does not support on-click payments", req.Provider))
		}
	case models.PaymentTypeMoto:
		if !caps.SupportsMoto {
			return nil, pkgerrors.NewPreconditionError("capability_unsupported",
				fmt.Sprintf("provider %s does not support MOTO payments", req.Provider))
		}
	}

	// Fail fast for an unprovisioned MOTO profile before touching the ledger
	if paymentType == models.PaymentTypeMoto && cfg.CardLink != nil && !cfg.CardLink.MotoEnabled {
		return nil, pkgerrors.NewConfigurationError("moto_not_provisioned",
			fmt.Sprintf("MOTO is not provisioned for tenant %s", req.TenantID))
	}

	rate, err := s.tenants.GetCommissionRate(ctx, req.TenantID)
	if err != nil {
		return nil, pkgerrors.NewConfigurationError("commission_rate_unavailable", err.Error())
	}
	breakdown, err := commission.Calculate(req.Amount, rate, req.Currency)
	if err != nil {
		return nil, err
	}

	txn := &models.Transaction{
		ID:               uuid.NewString(),
		TenantID:         req.TenantID,
		OrderID:          req.OrderID,
		CustomerID:       req.CustomerID,
		IdempotencyKey:   req.IdempotencyKey,
		Provider:         req.Provider,
		PaymentType:      paymentType,
		GrossAmount:      req.Amount,
		Currency:         req.Currency,
		CommissionRate:   breakdown.Rate,
		CommissionAmount: breakdown.Commission,
		NetAmount:        breakdown.Net,
		Status:           models.StatusPending,
		Metadata:         req.Metadata,
	}

	replayed, err := s.createPending(ctx, txn)
	if err != nil {
		return nil, err
	}
	if replayed != nil {
		observability.RecordIdempotentReplay(req.Provider)
		return replayResponse(replayed), nil
	}

	params := ports.CreatePaymentParams{
		OrderID:        req.OrderID,
		CustomerID:     req.CustomerID,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Description:    req.Description,
		IdempotencyKey: req.IdempotencyKey,
		ReturnURL:      req.ReturnURL,
		Metadata:       req.Metadata,
	}

	callCtx, callCancel := s.timeouts.ProviderCallContext(ctx)
	defer callCancel()

	var result *ports.PaymentResult
	switch paymentType {
	case models.PaymentTypeMoto:
		result, err = provider.CreateMotoPayment(callCtx, cfg, params)
	default:
		result, err = provider.CreatePayment(callCtx, cfg, params)
	}

	return s.recordOutcome(ctx, txn, result, err)
}

// createPending inserts the pending row and its initiated event in one
// transaction. When the insert loses the idempotency race, the winner's row
// is returned instead.
func (s *Service) createPending(ctx context.Context, txn *models.Transaction) (*models.Transaction, error) {
	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.ledger.Create(ctx, tx, txn); err != nil {
			return err
		}
		return s.ledger.AppendEvent(ctx, tx, &models.Event{
			ID:            uuid.NewString(),
			TransactionID: txn.ID,
			Type:          models.EventPaymentInitiated,
			Status:        models.StatusPending,
			Metadata: map[string]string{
				"gross_amount":      formatAmount(txn.GrossAmount, txn.Currency),
				"commission_amount": formatAmount(txn.CommissionAmount, txn.Currency),
				"net_amount":        formatAmount(txn.NetAmount, txn.Currency),
				"currency":          txn.Currency,
			},
		})
	})
	if err == nil {
		return nil, nil
	}
	if errors.Is(err, pkgerrors.ErrDuplicateIdempotencyKey) {
		// Lost the uniqueness race; the winner's record is the response
		winner, readErr := s.ledger.GetByIdempotencyKey(ctx, s.db.GetDB(), txn.TenantID, txn.IdempotencyKey)
		if readErr != nil {
			return nil, fmt.Errorf("re-read after duplicate idempotency key: %w", readErr)
		}
		return winner, nil
	}
	return nil, err
}

// recordOutcome writes the provider's answer to the ledger. A transport
// failure marks the row failed with the transport error as the failure
// reason; pending is never a final answer.
func (s *Service) recordOutcome(ctx context.Context, txn *models.Transaction, result *ports.PaymentResult, callErr error) (*PaymentResponse, error) {
	txnID, err := uuid.Parse(txn.ID)
	if err != nil {
		return nil, fmt.Errorf("parse transaction id: %w", err)
	}

	if callErr != nil {
		s.logger.Warn("provider call failed, marking transaction failed",
			ports.String("transaction_id", txn.ID),
			ports.String("provider", txn.Provider),
			ports.Err(callErr),
		)

		reason := callErr.Error()
		code := "provider_unavailable"
		txErr := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
			if err := s.ledger.UpdateStatus(ctx, tx, txnID, models.StatusFailed, &ports.StatusUpdate{
				FailureReason: &reason,
				FailureCode:   &code,
			}); err != nil {
				return err
			}
			return s.ledger.AppendEvent(ctx, tx, &models.Event{
				ID:            uuid.NewString(),
				TransactionID: txn.ID,
				Type:          models.EventPaymentProviderError,
				Status:        models.StatusFailed,
				Metadata:      map[string]string{"error": reason},
			})
		})
		if txErr != nil {
			return nil, fmt.Errorf("record provider error: %w", txErr)
		}

		observability.RecordPayment(txn.Provider, string(txn.PaymentType), "error")
		return &PaymentResponse{
			Success:       false,
			TransactionID: txn.ID,
			Status:        models.StatusFailed,
			ErrorCode:     code,
			Error:         reason,
		}, nil
	}

	var (
		status    models.TransactionStatus
		eventType string
		update    ports.StatusUpdate
	)

	if result.Success {
		// An accepted payment lands in processing no matter how optimistic
		// the provider's create-time answer is; completed is reached only
		// through capture, a webhook, or the reconciliation sweep.
		status = models.StatusProcessing
		eventType = models.EventPaymentProviderAccepted
		if result.ProviderPaymentID != "" {
			update.ProviderPaymentID = &result.ProviderPaymentID
		}
	} else {
		status = models.StatusFailed
		eventType = models.EventPaymentProviderRejected
		if result.Error != "" {
			update.FailureReason = &result.Error
		}
		if result.ErrorCode != "" {
			update.FailureCode = &result.ErrorCode
		}
		if result.ProviderPaymentID != "" {
			update.ProviderPaymentID = &result.ProviderPaymentID
		}
	}

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.ledger.UpdateStatus(ctx, tx, txnID, status, &update); err != nil {
			return err
		}
		meta := map[string]string{"provider_status": string(result.Status)}
		if result.ErrorCode != "" {
			meta["error_code"] = result.ErrorCode
		}
		return s.ledger.AppendEvent(ctx, tx, &models.Event{
			ID:            uuid.NewString(),
			TransactionID: txn.ID,
			Type:          eventType,
			Status:        status,
			Metadata:      meta,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("record payment outcome: %w", err)
	}

	observability.RecordPayment(txn.Provider, string(txn.PaymentType), string(status))

	return &PaymentResponse{
		Success:           result.Success,
		TransactionID:     txn.ID,
		Status:            status,
		ProviderPaymentID: result.ProviderPaymentID,
		RedirectURL:       result.RedirectURL,
		ClientSecret:      result.ClientSecret,
		ErrorCode:         result.ErrorCode,
		Error:             result.Error,
	}, nil
}

// ChargeRecurringRequest carries the inputs for a merchant-initiated charge
type ChargeRecurringRequest struct {
	TenantID       string
	ContractID     string
	OrderID        string
	Amount         decimal.Decimal
	Currency       string
	Description    string
	IdempotencyKey string
	Metadata       map[string]string
}

// ChargeRecurring performs a merchant-initiated charge against an active
// recurring contract. An inactive contract or an amount above the contract
// ceiling is rejected before any provider call.
func (s *Service) ChargeRecurring(ctx context.Context, req ChargeRecurringRequest) (*PaymentResponse, error) {
	ctx, cancel := s.timeouts.ServiceContext(ctx)
	defer cancel()

	// A replayed charge is answered from the ledger before contract state is
	// consulted; pausing or cancelling a contract does not invalidate
	// responses already given.
	if req.IdempotencyKey != "" {
		existing, err := s.ledger.GetByIdempotencyKey(ctx, s.db.GetDB(), req.TenantID, req.IdempotencyKey)
		if err != nil && !errors.Is(err, pkgerrors.ErrTransactionNotFound) {
			return nil, fmt.Errorf("idempotency lookup: %w", err)
		}
		if existing != nil {
			observability.RecordIdempotentReplay(existing.Provider)
			return replayResponse(existing), nil
		}
	}

	contractID, err := uuid.Parse(req.ContractID)
	if err != nil {
		return nil, pkgerrors.NewValidationError("contract_id", "must be a valid UUID")
	}

	contract, err := s.contracts.GetByID(ctx, s.db.GetDB(), contractID)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrContractNotFound) {
			return nil, pkgerrors.NewPreconditionError("contract_not_found", "recurring contract does not exist")
		}
		return nil, err
	}
	if contract.TenantID != req.TenantID {
		return nil, pkgerrors.NewPreconditionError("contract_not_found", "recurring contract does not exist")
	}
	if !contract.CanCharge() {
		return nil, pkgerrors.NewPreconditionError("contract_not_chargeable",
			fmt.Sprintf("contract is %s, only active contracts can be charged", contract.Status))
	}
	if contract.MaxAmount.IsPositive() && req.Amount.GreaterThan(contract.MaxAmount) {
		return nil, pkgerrors.NewPreconditionError("amount_exceeds_contract_max",
			fmt.Sprintf("charge amount %s exceeds contract ceiling %s", req.Amount, contract.MaxAmount))
	}

	provider, cfg, err := s.resolveProvider(ctx, req.TenantID, contract.Provider)
	if err != nil {
		return nil, err
	}
	if !provider.Capabilities().SupportsRecurring {
		return nil, pkgerrors.NewPreconditionError("capability_unsupported",
			fmt.Sprintf("provider %s does not support recurring charges", contract.Provider))
	}

	rate, err := s.tenants.GetCommissionRate(ctx, req.TenantID)
	if err != nil {
		return nil, pkgerrors.NewConfigurationError("commission_rate_unavailable", err.Error())
	}
	breakdown, err := commission.Calculate(req.Amount, rate, req.Currency)
	if err != nil {
		return nil, err
	}

	meta := req.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	meta["contract_id"] = contract.ID

	txn := &models.Transaction{
		ID:               uuid.NewString(),
		TenantID:         req.TenantID,
		OrderID:          req.OrderID,
		CustomerID:       contract.CustomerID,
		IdempotencyKey:   req.IdempotencyKey,
		Provider:         contract.Provider,
		PaymentType:      models.PaymentTypeRecurrent,
		GrossAmount:      req.Amount,
		Currency:         req.Currency,
		CommissionRate:   breakdown.Rate,
		CommissionAmount: breakdown.Commission,
		NetAmount:        breakdown.Net,
		Status:           models.StatusPending,
		Metadata:         meta,
	}

	replayed, err := s.createPending(ctx, txn)
	if err != nil {
		return nil, err
	}
	if replayed != nil {
		observability.RecordIdempotentReplay(contract.Provider)
		return replayResponse(replayed), nil
	}

	callCtx, callCancel := s.timeouts.ProviderCallContext(ctx)
	defer callCancel()

	result, callErr := provider.ChargeRecurring(callCtx, cfg, contract.ProviderContractID, ports.CreatePaymentParams{
		OrderID:        req.OrderID,
		CustomerID:     contract.CustomerID,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Description:    req.Description,
		IdempotencyKey: req.IdempotencyKey,
		Metadata:       meta,
	})

	resp, err := s.recordOutcome(ctx, txn, result, callErr)
	if err != nil {
		return nil, err
	}

	if resp.Success {
		chargedAt := time.Now().UTC()
		var next *time.Time
		if contract.IsScheduled() && contract.FrequencyDays > 0 {
			n := chargedAt.AddDate(0, 0, contract.FrequencyDays)
			next = &n
		}
		if err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
			return s.contracts.RecordCharge(ctx, tx, contractID, req.Amount, chargedAt, next)
		}); err != nil {
			// The charge went through; accumulator lag is recoverable noise
			s.logger.Error("failed to record contract charge",
				ports.String("contract_id", contract.ID), ports.Err(err))
		}
	}

	return resp, nil
}

// RefundRequest carries the inputs for a refund. A nil Amount refunds in full.
type RefundRequest struct {
	TenantID      string
	TransactionID string
	Amount        *decimal.Decimal
	Reason        string
}

// RefundResponse is the outcome of a refund
type RefundResponse struct {
	Success          bool
	TransactionID    string
	Status           models.TransactionStatus
	ProviderRefundID string
	ErrorCode        string
	Error            string
}

// RefundTransaction refunds a settled transaction. On provider failure the
// transaction's status is left unchanged.
func (s *Service) RefundTransaction(ctx context.Context, req RefundRequest) (*RefundResponse, error) {
	ctx, cancel := s.timeouts.ServiceContext(ctx)
	defer cancel()

	txnID, err := uuid.Parse(req.TransactionID)
	if err != nil {
		return nil, pkgerrors.NewValidationError("transaction_id", "must be a valid UUID")
	}

	txn, err := s.ledger.GetByID(ctx, s.db.GetDB(), txnID)
	if err != nil {
		return nil, err
	}
	if txn.TenantID != req.TenantID {
		return nil, pkgerrors.ErrTransactionNotFound
	}
	if !txn.CanBeRefunded() {
		return nil, pkgerrors.NewPreconditionError("not_refundable",
			fmt.Sprintf("transaction is %s, only settled transactions can be refunded", txn.Status))
	}
	if req.Amount != nil {
		if !req.Amount.IsPositive() {
			return nil, pkgerrors.NewValidationError("amount", "must be positive")
		}
		if req.Amount.GreaterThan(txn.GrossAmount) {
			return nil, pkgerrors.NewValidationError("amount", "must not exceed the original gross amount")
		}
	}

	provider, cfg, err := s.resolveProvider(ctx, req.TenantID, txn.Provider)
	if err != nil {
		return nil, err
	}

	callCtx, callCancel := s.timeouts.ProviderCallContext(ctx)
	defer callCancel()

	result, callErr := provider.RefundPayment(callCtx, cfg, txn.ProviderPaymentID, req.Amount)
	if callErr != nil {
		observability.RecordRefund(txn.Provider, "error")
		return nil, callErr
	}
	if !result.Success {
		// Status unchanged; the refund simply did not happen
		observability.RecordRefund(txn.Provider, "rejected")
		return &RefundResponse{
			Success:       false,
			TransactionID: txn.ID,
			Status:        txn.Status,
			ErrorCode:     result.ErrorCode,
			Error:         result.Error,
		}, nil
	}

	status := models.StatusRefunded
	if req.Amount != nil && req.Amount.LessThan(txn.GrossAmount) {
		status = models.StatusPartialRefund
	}
	// A further partial refund of an already partially refunded transaction
	// keeps the partial_refund status; amounts live in the event history.

	meta := map[string]string{"provider_refund_id": result.ProviderRefundID}
	if req.Amount != nil {
		meta["refund_amount"] = formatAmount(*req.Amount, txn.Currency)
	} else {
		meta["refund_amount"] = formatAmount(txn.GrossAmount, txn.Currency)
	}
	if req.Reason != "" {
		meta["reason"] = req.Reason
	}

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.ledger.UpdateStatus(ctx, tx, txnID, status, nil); err != nil {
			return err
		}
		return s.ledger.AppendEvent(ctx, tx, &models.Event{
			ID:            uuid.NewString(),
			TransactionID: txn.ID,
			Type:          models.EventPaymentRefunded,
			Status:        status,
			Metadata:      meta,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("record refund: %w", err)
	}

	observability.RecordRefund(txn.Provider, string(status))

	return &RefundResponse{
		Success:          true,
		TransactionID:    txn.ID,
		Status:           status,
		ProviderRefundID: result.ProviderRefundID,
	}, nil
}

// CaptureTransaction settles a previously authorized payment. A nil amount
// captures the full authorized sum.
func (s *Service) CaptureTransaction(ctx context.Context, tenantID, transactionID string, amount *decimal.Decimal) (*PaymentResponse, error) {
	ctx, cancel := s.timeouts.ServiceContext(ctx)
	defer cancel()

	txnID, err := uuid.Parse(transactionID)
	if err != nil {
		return nil, pkgerrors.NewValidationError("transaction_id", "must be a valid UUID")
	}

	txn, err := s.ledger.GetByID(ctx, s.db.GetDB(), txnID)
	if err != nil {
		return nil, err
	}
	if txn.TenantID != tenantID {
		return nil, pkgerrors.ErrTransactionNotFound
	}
	if !txn.CanBeCaptured() {
		return nil, pkgerrors.NewPreconditionError("not_capturable",
			fmt.Sprintf("transaction is %s, only authorized transactions can be captured", txn.Status))
	}

	provider, cfg, err := s.resolveProvider(ctx, tenantID, txn.Provider)
	if err != nil {
		return nil, err
	}

	callCtx, callCancel := s.timeouts.ProviderCallContext(ctx)
	defer callCancel()

	result, callErr := provider.CapturePayment(callCtx, cfg, txn.ProviderPaymentID, amount)
	if callErr != nil {
		return nil, callErr
	}
	if !result.Success {
		return &PaymentResponse{
			Success:       false,
			TransactionID: txn.ID,
			Status:        txn.Status,
			ErrorCode:     result.ErrorCode,
			Error:         result.Error,
		}, nil
	}

	meta := map[string]string{}
	if amount != nil {
		meta["captured_amount"] = formatAmount(*amount, txn.Currency)
	}

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.ledger.UpdateStatus(ctx, tx, txnID, models.StatusCompleted, nil); err != nil {
			return err
		}
		return s.ledger.AppendEvent(ctx, tx, &models.Event{
			ID:            uuid.NewString(),
			TransactionID: txn.ID,
			Type:          models.EventPaymentCaptured,
			Status:        models.StatusCompleted,
			Metadata:      meta,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("record capture: %w", err)
	}

	return &PaymentResponse{
		Success:           true,
		TransactionID:     txn.ID,
		Status:            models.StatusCompleted,
		ProviderPaymentID: txn.ProviderPaymentID,
	}, nil
}

// GetTransaction returns a transaction and its audit history
func (s *Service) GetTransaction(ctx context.Context, tenantID, transactionID string) (*models.Transaction, []*models.Event, error) {
	txnID, err := uuid.Parse(transactionID)
	if err != nil {
		return nil, nil, pkgerrors.NewValidationError("transaction_id", "must be a valid UUID")
	}

	txn, err := s.ledger.GetByID(ctx, s.db.GetDB(), txnID)
	if err != nil {
		return nil, nil, err
	}
	if txn.TenantID != tenantID {
		return nil, nil, pkgerrors.ErrTransactionNotFound
	}

	events, err := s.ledger.ListEvents(ctx, s.db.GetDB(), txnID)
	if err != nil {
		return nil, nil, err
	}
	return txn, events, nil
}

// ListTransactions returns a page of a tenant's transactions, newest first
func (s *Service) ListTransactions(ctx context.Context, tenantID string, limit, offset int32) ([]*models.Transaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.ledger.ListByTenant(ctx, s.db.GetDB(), tenantID, limit, offset)
}

// FeeEstimate combines the platform commission with the provider's own
// processing-fee estimate, when the provider publishes one
type FeeEstimate struct {
	GrossAmount      decimal.Decimal
	CommissionRate   decimal.Decimal
	CommissionAmount decimal.Decimal
	NetAmount        decimal.Decimal
	ProviderFees     *ports.ProviderFees
}

// EstimateFees previews the commission split and provider cost for an amount
// without creating any transaction
func (s *Service) EstimateFees(ctx context.Context, tenantID, providerName string, amount decimal.Decimal, currency string) (*FeeEstimate, error) {
	provider, err := s.providers.Get(providerName)
	if err != nil {
		return nil, pkgerrors.NewConfigurationError("unknown_provider", err.Error())
	}

	rate, err := s.tenants.GetCommissionRate(ctx, tenantID)
	if err != nil {
		return nil, pkgerrors.NewConfigurationError("commission_rate_unavailable", err.Error())
	}
	breakdown, err := commission.Calculate(amount, rate, currency)
	if err != nil {
		return nil, err
	}

	estimate := &FeeEstimate{
		GrossAmount:      amount,
		CommissionRate:   breakdown.Rate,
		CommissionAmount: breakdown.Commission,
		NetAmount:        breakdown.Net,
	}

	fees, err := provider.CalculateFees(amount, currency)
	if err != nil && !errors.Is(err, pkgerrors.ErrOperationNotSupported) {
		return nil, err
	}
	estimate.ProviderFees = fees

	return estimate, nil
}

// resolveProvider looks up the adapter and the tenant's configuration for it.
// Both failures are configuration errors detected before any provider call.
func (s *Service) resolveProvider(ctx context.Context, tenantID, providerName string) (ports.PaymentProvider, *ports.ProviderConfig, error) {
	provider, err := s.providers.Get(providerName)
	if err != nil {
		return nil, nil, pkgerrors.NewConfigurationError("unknown_provider", err.Error())
	}

	cfg, err := s.tenants.GetProviderConfig(ctx, tenantID, providerName)
	if err != nil {
		return nil, nil, fmt.Errorf("load tenant provider config: %w", err)
	}
	if cfg == nil {
		return nil, nil, pkgerrors.NewConfigurationError("tenant_not_configured",
			fmt.Sprintf("tenant %s has no configuration for provider %s", tenantID, providerName))
	}
	return provider, cfg, nil
}

func validatePaymentRequest(req *ProcessPaymentRequest) error {
	if req.TenantID == "" {
		return pkgerrors.NewValidationError("tenant_id", "is required")
	}
	if req.OrderID == "" {
		return pkgerrors.NewValidationError("order_id", "is required")
	}
	if req.Provider == "" {
		return pkgerrors.NewValidationError("provider", "is required")
	}
	if !req.Amount.IsPositive() {
		return pkgerrors.NewValidationError("amount", "must be positive")
	}
	if len(req.Currency) != 3 {
		return pkgerrors.NewValidationError("currency", "must be a three-letter ISO code")
	}
	return nil
}

func replayResponse(txn *models.Transaction) *PaymentResponse {
	return &PaymentResponse{
		Success:           txn.Status != models.StatusFailed,
		TransactionID:     txn.ID,
		Status:            txn.Status,
		ProviderPaymentID: txn.ProviderPaymentID,
		ErrorCode:         txn.FailureCode,
		Error:             txn.FailureReason,
		Replayed:          true,
	}
}

// formatAmount renders an amount with the currency's full minor-unit scale,
// so "30" and "30.00" cannot both appear in the event history for EUR.
func formatAmount(amount decimal.Decimal, currency string) string {
	return amount.StringFixed(commission.MinorUnits(currency))
}

// statusFromProvider maps a polled provider status onto the ledger. Only the
// reconciliation sweep settles a row as completed from a provider-side
// succeeded; create-time answers never do.
func statusFromProvider(s ports.PaymentStatus) models.TransactionStatus {
	switch s {
	case ports.PaymentStatusSucceeded:
		return models.StatusCompleted
	case ports.PaymentStatusProcessing, ports.PaymentStatusPending:
		return models.StatusProcessing
	case ports.PaymentStatusRefunded:
		return models.StatusRefunded
	default:
		return models.StatusFailed
	}
}
