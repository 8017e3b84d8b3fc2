package orchestrator_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/lumapay/payment-core/internal/domain/models"
	"github.com/lumapay/payment-core/internal/domain/ports"
)

// fakeDB satisfies DBPort without a real database: callbacks run with a nil
// pgx.Tx, which the repository mocks never touch.
type fakeDB struct{}

func (fakeDB) GetDB() *pgxpool.Pool { return nil }

func (fakeDB) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return fn(ctx, nil)
}

func (fakeDB) WithReadOnlyTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return fn(ctx, nil)
}

type stubResolver struct {
	provider ports.PaymentProvider
	err      error
}

func (r stubResolver) Get(name string) (ports.PaymentProvider, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.provider, nil
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Create(ctx context.Context, tx ports.DBTX, t *models.Transaction) error {
	args := m.Called(ctx, tx, t)
	return args.Error(0)
}

func (m *MockLedger) GetByID(ctx context.Context, db ports.DBTX, id uuid.UUID) (*models.Transaction, error) {
	args := m.Called(ctx, db, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockLedger) GetByIdempotencyKey(ctx context.Context, db ports.DBTX, tenantID, key string) (*models.Transaction, error) {
	args := m.Called(ctx, db, tenantID, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockLedger) AppendEvent(ctx context.Context, tx ports.DBTX, event *models.Event) error {
	args := m.Called(ctx, tx, event)
	return args.Error(0)
}

func (m *MockLedger) UpdateStatus(ctx context.Context, tx ports.DBTX, id uuid.UUID, status models.TransactionStatus, update *ports.StatusUpdate) error {
	args := m.Called(ctx, tx, id, status, update)
	return args.Error(0)
}

func (m *MockLedger) ListEvents(ctx context.Context, db ports.DBTX, transactionID uuid.UUID) ([]*models.Event, error) {
	args := m.Called(ctx, db, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Event), args.Error(1)
}

func (m *MockLedger) ListByTenant(ctx context.Context, db ports.DBTX, tenantID string, limit, offset int32) ([]*models.Transaction, error) {
	args := m.Called(ctx, db, tenantID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Transaction), args.Error(1)
}

func (m *MockLedger) ListStuck(ctx context.Context, db ports.DBTX, cutoff time.Time, maxAttempts int, limit int32) ([]*models.Transaction, error) {
	args := m.Called(ctx, db, cutoff, maxAttempts, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Transaction), args.Error(1)
}

func (m *MockLedger) IncrementReconcileAttempts(ctx context.Context, tx ports.DBTX, id uuid.UUID) error {
	args := m.Called(ctx, tx, id)
	return args.Error(0)
}

type MockContracts struct {
	mock.Mock
}

func (m *MockContracts) Create(ctx context.Context, tx ports.DBTX, contract *models.RecurringContract) error {
	args := m.Called(ctx, tx, contract)
	return args.Error(0)
}

func (m *MockContracts) GetByID(ctx context.Context, db ports.DBTX, id uuid.UUID) (*models.RecurringContract, error) {
	args := m.Called(ctx, db, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RecurringContract), args.Error(1)
}

func (m *MockContracts) UpdateStatus(ctx context.Context, tx ports.DBTX, id uuid.UUID, status models.ContractStatus) error {
	args := m.Called(ctx, tx, id, status)
	return args.Error(0)
}

func (m *MockContracts) RecordCharge(ctx context.Context, tx ports.DBTX, id uuid.UUID, amount decimal.Decimal, chargedAt time.Time, nextChargeDate *time.Time) error {
	args := m.Called(ctx, tx, id, amount, chargedAt, nextChargeDate)
	return args.Error(0)
}

func (m *MockContracts) ListByCustomer(ctx context.Context, db ports.DBTX, tenantID, customerID string) ([]*models.RecurringContract, error) {
	args := m.Called(ctx, db, tenantID, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.RecurringContract), args.Error(1)
}

func (m *MockContracts) ListDue(ctx context.Context, db ports.DBTX, asOf time.Time, limit int32) ([]*models.RecurringContract, error) {
	args := m.Called(ctx, db, asOf, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.RecurringContract), args.Error(1)
}

type MockTenants struct {
	mock.Mock
}

func (m *MockTenants) GetProviderConfig(ctx context.Context, tenantID, provider string) (*ports.ProviderConfig, error) {
	args := m.Called(ctx, tenantID, provider)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.ProviderConfig), args.Error(1)
}

func (m *MockTenants) GetCommissionRate(ctx context.Context, tenantID string) (decimal.Decimal, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

type MockProvider struct {
	mock.Mock
	name string
	caps ports.Capabilities
}

func (m *MockProvider) Name() string                    { return m.name }
func (m *MockProvider) Capabilities() ports.Capabilities { return m.caps }

func (m *MockProvider) CreatePayment(ctx context.Context, cfg *ports.ProviderConfig, params ports.CreatePaymentParams) (*ports.PaymentResult, error) {
	args := m.Called(ctx, cfg, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.PaymentResult), args.Error(1)
}

func (m *MockProvider) CapturePayment(ctx context.Context, cfg *ports.ProviderConfig, providerPaymentID string, amount *decimal.Decimal) (*ports.PaymentResult, error) {
	args := m.Called(ctx, cfg, providerPaymentID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.PaymentResult), args.Error(1)
}

func (m *MockProvider) RefundPayment(ctx context.Context, cfg *ports.ProviderConfig, providerPaymentID string, amount *decimal.Decimal) (*ports.RefundResult, error) {
	args := m.Called(ctx, cfg, providerPaymentID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.RefundResult), args.Error(1)
}

func (m *MockProvider) GetPaymentStatus(ctx context.Context, cfg *ports.ProviderConfig, providerPaymentID string) (*ports.PaymentResult, error) {
	args := m.Called(ctx, cfg, providerPaymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.PaymentResult), args.Error(1)
}

func (m *MockProvider) VerifyWebhookSignature(payload []byte, signature, secret string) bool {
	args := m.Called(payload, signature, secret)
	return args.Bool(0)
}

func (m *MockProvider) ParseWebhookEvent(payload []byte) (*models.WebhookEvent, error) {
	args := m.Called(payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WebhookEvent), args.Error(1)
}

func (m *MockProvider) CreateMotoPayment(ctx context.Context, cfg *ports.ProviderConfig, params ports.CreatePaymentParams) (*ports.PaymentResult, error) {
	args := m.Called(ctx, cfg, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.PaymentResult), args.Error(1)
}

func (m *MockProvider) CreateContract(ctx context.Context, cfg *ports.ProviderConfig, params ports.ContractParams) (*ports.ContractResult, error) {
	args := m.Called(ctx, cfg, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.ContractResult), args.Error(1)
}

func (m *MockProvider) ChargeRecurring(ctx context.Context, cfg *ports.ProviderConfig, providerContractID string, params ports.CreatePaymentParams) (*ports.PaymentResult, error) {
	args := m.Called(ctx, cfg, providerContractID, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.PaymentResult), args.Error(1)
}

func (m *MockProvider) CancelContract(ctx context.Context, cfg *ports.ProviderConfig, providerContractID string) error {
	args := m.Called(ctx, cfg, providerContractID)
	return args.Error(0)
}

func (m *MockProvider) CalculateFees(amount decimal.Decimal, currency string) (*ports.ProviderFees, error) {
	args := m.Called(amount, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.ProviderFees), args.Error(1)
}
