// Package contracts manages the recurring contract lifecycle: creation
// through the provider, activation once the first customer-initiated charge
// confirms the token, pause/resume, and cancellation. Charging against a
// contract lives in the orchestrator.
package contracts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/lumapay/payment-core/internal/domain/models"
	"github.com/lumapay/payment-core/internal/domain/ports"
	pkgerrors "github.com/lumapay/payment-core/pkg/errors"
	"github.com/lumapay/payment-core/pkg/resilience"
)

// ProviderResolver resolves a provider name to its adapter
type ProviderResolver interface {
	Get(name string) (ports.PaymentProvider, error)
}

// Service manages recurring contracts
type Service struct {
	db        ports.DBPort
	contracts ports.ContractRepository
	providers ProviderResolver
	tenants   ports.TenantConfigStore
	logger    ports.Logger
	timeouts  *resilience.TimeoutConfig
}

// NewService creates a new contract service
func NewService(
	db ports.DBPort,
	contracts ports.ContractRepository,
	providers ProviderResolver,
	tenants ports.TenantConfigStore,
	logger ports.Logger,
	timeouts *resilience.TimeoutConfig,
) *Service {
	return &Service{
		db:        db,
		contracts: contracts,
		providers: providers,
		tenants:   tenants,
		logger:    logger,
		timeouts:  timeouts,
	}
}

// CreateContractRequest carries the inputs for establishing a recurring
// authorization
type CreateContractRequest struct {
	TenantID      string
	CustomerID    string
	Provider      string
	Type          models.ContractType
	FrequencyDays int
	MaxAmount     decimal.Decimal
	Currency      string
	ReturnURL     string
	Metadata      map[string]string
}

// CreateContract establishes a recurring authorization with the provider and
// stores the contract. Most contracts start pending: the token materializes
// once the first customer-initiated charge completes and ActivateContract is
// invoked from the webhook path.
func (s *Service) CreateContract(ctx context.Context, req CreateContractRequest) (*models.RecurringContract, error) {
	ctx, cancel := s.timeouts.ServiceContext(ctx)
	defer cancel()

	if req.TenantID == "" {
		return nil, pkgerrors.NewValidationError("tenant_id", "is required")
	}
	if req.CustomerID == "" {
		return nil, pkgerrors.NewValidationError("customer_id", "is required")
	}
	if req.Type == models.ContractTypeScheduled && req.FrequencyDays <= 0 {
		return nil, pkgerrors.NewValidationError("frequency_days", "must be positive for scheduled contracts")
	}
	if req.MaxAmount.IsNegative() {
		return nil, pkgerrors.NewValidationError("max_amount", "must not be negative")
	}

	provider, cfg, err := s.resolveProvider(ctx, req.TenantID, req.Provider)
	if err != nil {
		return nil, err
	}
	if !provider.Capabilities().SupportsRecurring {
		return nil, pkgerrors.NewPreconditionError("capability_unsupported",
			fmt.Sprintf("provider %s does not support recurring contracts", req.Provider))
	}

	callCtx, callCancel := s.timeouts.ProviderCallContext(ctx)
	defer callCancel()

	result, err := provider.CreateContract(callCtx, cfg, ports.ContractParams{
		CustomerID:    req.CustomerID,
		Type:          req.Type,
		FrequencyDays: req.FrequencyDays,
		MaxAmount:     req.MaxAmount,
		Currency:      req.Currency,
		ReturnURL:     req.ReturnURL,
		Metadata:      req.Metadata,
	})
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, &pkgerrors.PaymentError{
			Code:     result.ErrorCode,
			Message:  result.Error,
			Category: pkgerrors.CategoryBusiness,
		}
	}

	contract := &models.RecurringContract{
		ID:                 uuid.NewString(),
		TenantID:           req.TenantID,
		CustomerID:         req.CustomerID,
		Provider:           req.Provider,
		ProviderContractID: result.ProviderContractID,
		Type:               req.Type,
		TokenID:            result.TokenID,
		CardLastFour:       result.CardLastFour,
		CardBrand:          result.CardBrand,
		CardExpiryMonth:    result.CardExpiryMonth,
		CardExpiryYear:     result.CardExpiryYear,
		FrequencyDays:      req.FrequencyDays,
		MaxAmount:          req.MaxAmount,
		Status:             result.Status,
	}
	if contract.Status == "" {
		contract.Status = models.ContractStatusPending
	}
	if contract.Status == models.ContractStatusActive && contract.IsScheduled() {
		next := time.Now().UTC().AddDate(0, 0, req.FrequencyDays)
		contract.NextChargeDate = &next
	}

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.contracts.Create(ctx, tx, contract)
	})
	if err != nil {
		return nil, fmt.Errorf("store contract: %w", err)
	}

	s.logger.Info("recurring contract created",
		ports.String("contract_id", contract.ID),
		ports.String("tenant_id", contract.TenantID),
		ports.String("provider", contract.Provider),
		ports.String("status", string(contract.Status)),
	)
	return contract, nil
}

// ActivateContract transitions a pending contract to active once the first
// customer-initiated charge confirms the token. Called from the webhook path.
func (s *Service) ActivateContract(ctx context.Context, tenantID, contractID string) error {
	contract, id, err := s.loadContract(ctx, tenantID, contractID)
	if err != nil {
		return err
	}
	if contract.Status == models.ContractStatusActive {
		return nil
	}
	if contract.Status != models.ContractStatusPending {
		return pkgerrors.NewPreconditionError("not_activatable",
			fmt.Sprintf("contract is %s, only pending contracts can be activated", contract.Status))
	}

	return s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.contracts.UpdateStatus(ctx, tx, id, models.ContractStatusActive)
	})
}

// PauseContract suspends charging without invalidating the token
func (s *Service) PauseContract(ctx context.Context, tenantID, contractID string) error {
	contract, id, err := s.loadContract(ctx, tenantID, contractID)
	if err != nil {
		return err
	}
	if contract.Status != models.ContractStatusActive {
		return pkgerrors.NewPreconditionError("not_pausable",
			fmt.Sprintf("contract is %s, only active contracts can be paused", contract.Status))
	}

	return s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.contracts.UpdateStatus(ctx, tx, id, models.ContractStatusPaused)
	})
}

// ResumeContract reactivates a paused contract
func (s *Service) ResumeContract(ctx context.Context, tenantID, contractID string) error {
	contract, id, err := s.loadContract(ctx, tenantID, contractID)
	if err != nil {
		return err
	}
	if contract.Status != models.ContractStatusPaused {
		return pkgerrors.NewPreconditionError("not_resumable",
			fmt.Sprintf("contract is %s, only paused contracts can be resumed", contract.Status))
	}

	return s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.contracts.UpdateStatus(ctx, tx, id, models.ContractStatusActive)
	})
}

// CancelContract invalidates the token at the provider first, then records
// the cancellation. If the provider call fails the contract stays in its
// current status so cancellation can be retried; a token must never outlive
// its local record.
func (s *Service) CancelContract(ctx context.Context, tenantID, contractID string) error {
	ctx, cancel := s.timeouts.ServiceContext(ctx)
	defer cancel()

	contract, id, err := s.loadContract(ctx, tenantID, contractID)
	if err != nil {
		return err
	}
	if contract.Status == models.ContractStatusCancelled {
		return nil
	}

	provider, cfg, err := s.resolveProvider(ctx, tenantID, contract.Provider)
	if err != nil {
		return err
	}

	if contract.ProviderContractID != "" {
		callCtx, callCancel := s.timeouts.ProviderCallContext(ctx)
		defer callCancel()

		if err := provider.CancelContract(callCtx, cfg, contract.ProviderContractID); err != nil {
			return fmt.Errorf("cancel contract at provider: %w", err)
		}
	}

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.contracts.UpdateStatus(ctx, tx, id, models.ContractStatusCancelled)
	})
	if err != nil {
		return fmt.Errorf("record contract cancellation: %w", err)
	}

	s.logger.Info("recurring contract cancelled",
		ports.String("contract_id", contract.ID),
		ports.String("tenant_id", tenantID),
	)
	return nil
}

// GetContract returns one contract scoped to the tenant
func (s *Service) GetContract(ctx context.Context, tenantID, contractID string) (*models.RecurringContract, error) {
	contract, _, err := s.loadContract(ctx, tenantID, contractID)
	return contract, err
}

// ListCustomerContracts returns a customer's contracts, newest first
func (s *Service) ListCustomerContracts(ctx context.Context, tenantID, customerID string) ([]*models.RecurringContract, error) {
	return s.contracts.ListByCustomer(ctx, s.db.GetDB(), tenantID, customerID)
}

// ListDueContracts returns active scheduled contracts whose next charge date
// has arrived, for the billing sweep
func (s *Service) ListDueContracts(ctx context.Context, asOf time.Time, limit int32) ([]*models.RecurringContract, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.contracts.ListDue(ctx, s.db.GetDB(), asOf, limit)
}

func (s *Service) loadContract(ctx context.Context, tenantID, contractID string) (*models.RecurringContract, uuid.UUID, error) {
	id, err := uuid.Parse(contractID)
	if err != nil {
		return nil, uuid.Nil, pkgerrors.NewValidationError("contract_id", "must be a valid UUID")
	}

	contract, err := s.contracts.GetByID(ctx, s.db.GetDB(), id)
	if err != nil {
		return nil, uuid.Nil, err
	}
	if contract.TenantID != tenantID {
		return nil, uuid.Nil, pkgerrors.ErrContractNotFound
	}
	return contract, id, nil
}

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
