package orchestrator_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lumapay/payment-core/internal/domain/models"
	"github.com/lumapay/payment-core/internal/domain/ports"
	"github.com/lumapay/payment-core/internal/logging"
	"github.com/lumapay/payment-core/internal/services/orchestrator"
	pkgerrors "github.com/lumapay/payment-core/pkg/errors"
	"github.com/lumapay/payment-core/pkg/resilience"
)

func newService(provider ports.PaymentProvider, ledger *MockLedger, contracts *MockContracts, tenants *MockTenants) *orchestrator.Service {
	return orchestrator.NewService(
		fakeDB{},
		ledger,
		contracts,
		stubResolver{provider: provider},
		tenants,
		logging.NewZapLogger(zap.NewNop()),
		resilience.TestTimeoutConfig(),
	)
}

func cardlinkConfig(motoEnabled bool) *ports.ProviderConfig {
	return &ports.ProviderConfig{
		TenantID: "tenant-1",
		Provider: "cardlink",
		CardLink: &ports.CardLinkConfig{
			BaseURL:     "https://api.cardlink.example",
			MerchantID:  "m-1",
			MotoEnabled: motoEnabled,
		},
	}
}

func fullCaps() ports.Capabilities {
	return ports.Capabilities{SupportsOnClick: true, SupportsMoto: true, SupportsRecurring: true}
}

func paymentRequest() orchestrator.ProcessPaymentRequest {
	return orchestrator.ProcessPaymentRequest{
		TenantID:       "tenant-1",
		OrderID:        "order-1",
		Provider:       "cardlink",
		Amount:         decimal.RequireFromString("100.00"),
		Currency:       "EUR",
		IdempotencyKey: "idem-1",
	}
}

func TestProcessPayment_SuccessRecordsCommissionAndEvents(t *testing.T) {
	ledger := new(MockLedger)
	tenants := new(MockTenants)
	provider := &MockProvider{name: "cardlink", caps: fullCaps()}
	svc := newService(provider, ledger, new(MockContracts), tenants)

	tenants.On("GetProviderConfig", mock.Anything, "tenant-1", "cardlink").Return(cardlinkConfig(false), nil)
	tenants.On("GetCommissionRate", mock.Anything, "tenant-1").Return(decimal.RequireFromString("0.05"), nil)
	ledger.On("GetByIdempotencyKey", mock.Anything, mock.Anything, "tenant-1", "idem-1").
		Return(nil, pkgerrors.ErrTransactionNotFound)

	ledger.On("Create", mock.Anything, mock.Anything, mock.MatchedBy(func(txn *models.Transaction) bool {
		return txn.Status == models.StatusPending &&
			txn.CommissionAmount.Equal(decimal.RequireFromString("5.00")) &&
			txn.NetAmount.Equal(decimal.RequireFromString("95.00")) &&
			txn.GrossAmount.Equal(txn.CommissionAmount.Add(txn.NetAmount))
	})).Return(nil)

	var eventTypes []string
	ledger.On("AppendEvent", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			eventTypes = append(eventTypes, args.Get(2).(*models.Event).Type)
		}).Return(nil)

	provider.On("CreatePayment", mock.Anything, mock.Anything, mock.Anything).
		Return(&ports.PaymentResult{
			Success:           true,
			ProviderPaymentID: "pay-1",
			Status:            ports.PaymentStatusSucceeded,
		}, nil)

	// Provider-side succeeded at create time still lands in processing;
	// completed is reserved for capture, webhooks and the sweep.
	ledger.On("UpdateStatus", mock.Anything, mock.Anything, mock.Anything, models.StatusProcessing,
		mock.MatchedBy(func(u *ports.StatusUpdate) bool {
			return u.ProviderPaymentID != nil && *u.ProviderPaymentID == "pay-1"
		})).Return(nil)

	resp, err := svc.ProcessPayment(context.Background(), paymentRequest())

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, models.StatusProcessing, resp.Status)
	assert.Equal(t, "pay-1", resp.ProviderPaymentID)
	assert.False(t, resp.Replayed)
	assert.Equal(t, []string{models.EventPaymentInitiated, models.EventPaymentProviderAccepted}, eventTypes)
	ledger.AssertExpectations(t)
	provider.AssertExpectations(t)
}

func TestProcessPayment_IdempotentReplaySkipsProvider(t *testing.T) {
	ledger := new(MockLedger)
	tenants := new(MockTenants)
	provider := &MockProvider{name: "cardlink", caps: fullCaps()}
	svc := newService(provider, ledger, new(MockContracts), tenants)

	existing := &models.Transaction{
		ID:                uuid.NewString(),
		TenantID:          "tenant-1",
		IdempotencyKey:    "idem-1",
		Provider:          "cardlink",
		Status:            models.StatusCompleted,
		ProviderPaymentID: "pay-1",
	}

	ledger.On("GetByIdempotencyKey", mock.Anything, mock.Anything, "tenant-1", "idem-1").Return(existing, nil)

	resp, err := svc.ProcessPayment(context.Background(), paymentRequest())

	require.NoError(t, err)
	assert.True(t, resp.Replayed)
	assert.Equal(t, existing.ID, resp.TransactionID)
	assert.Equal(t, models.StatusCompleted, resp.Status)
	provider.AssertNotCalled(t, "CreatePayment", mock.Anything, mock.Anything, mock.Anything)
	ledger.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	// The replay is answered before provider or config resolution, so a key
	// recorded under a since-removed config still replays.
	tenants.AssertNotCalled(t, "GetProviderConfig", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessPayment_DuplicateKeyRaceReturnsWinner(t *testing.T) {
	ledger := new(MockLedger)
	tenants := new(MockTenants)
	provider := &MockProvider{name: "cardlink", caps: fullCaps()}
	svc := newService(provider, ledger, new(MockContracts), tenants)

	winner := &models.Transaction{
		ID:       uuid.NewString(),
		TenantID: "tenant-1",
		Status:   models.StatusProcessing,
	}

	tenants.On("GetProviderConfig", mock.Anything, "tenant-1", "cardlink").Return(cardlinkConfig(false), nil)
	tenants.On("GetCommissionRate", mock.Anything, "tenant-1").Return(decimal.RequireFromString("0.05"), nil)
	// First lookup sees nothing; the concurrent writer commits in between
	ledger.On("GetByIdempotencyKey", mock.Anything, mock.Anything, "tenant-1", "idem-1").
		Return(nil, pkgerrors.ErrTransactionNotFound).Once()
	ledger.On("Create", mock.Anything, mock.Anything, mock.Anything).
		Return(pkgerrors.ErrDuplicateIdempotencyKey)
	ledger.On("GetByIdempotencyKey", mock.Anything, mock.Anything, "tenant-1", "idem-1").
		Return(winner, nil).Once()

	resp, err := svc.ProcessPayment(context.Background(), paymentRequest())

	require.NoError(t, err)
	assert.True(t, resp.Replayed)
	assert.Equal(t, winner.ID, resp.TransactionID)
	provider.AssertNotCalled(t, "CreatePayment", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessPayment_DeclineMarksFailed(t *testing.T) {
	ledger := new(MockLedger)
	tenants := new(MockTenants)
	provider := &MockProvider{name: "cardlink", caps: fullCaps()}
	svc := newService(provider, ledger, new(MockContracts), tenants)

	tenants.On("GetProviderConfig", mock.Anything, "tenant-1", "cardlink").Return(cardlinkConfig(false), nil)
	tenants.On("GetCommissionRate", mock.Anything, "tenant-1").Return(decimal.RequireFromString("0.05"), nil)
	ledger.On("GetByIdempotencyKey", mock.Anything, mock.Anything, "tenant-1", "idem-1").
		Return(nil, pkgerrors.ErrTransactionNotFound)
	ledger.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	var eventTypes []string
	ledger.On("AppendEvent", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			eventTypes = append(eventTypes, args.Get(2).(*models.Event).Type)
		}).Return(nil)

	provider.On("CreatePayment", mock.Anything, mock.Anything, mock.Anything).
		Return(&ports.PaymentResult{
			Success:   false,
			Status:    ports.PaymentStatusFailed,
			ErrorCode: "51",
			Error:     "insufficient funds",
		}, nil)

	ledger.On("UpdateStatus", mock.Anything, mock.Anything, mock.Anything, models.StatusFailed,
		mock.MatchedBy(func(u *ports.StatusUpdate) bool {
			return u.FailureCode != nil && *u.FailureCode == "51"
		})).Return(nil)

	resp, err := svc.ProcessPayment(context.Background(), paymentRequest())

	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, models.StatusFailed, resp.Status)
	assert.Equal(t, "51", resp.ErrorCode)
	assert.Equal(t, []string{models.EventPaymentInitiated, models.EventPaymentProviderRejected}, eventTypes)
}

func TestProcessPayment_TransportErrorMarksFailed(t *testing.T) {
	ledger := new(MockLedger)
	tenants := new(MockTenants)
	provider := &MockProvider{name: "cardlink", caps: fullCaps()}
	svc := newService(provider, ledger, new(MockContracts), tenants)

	tenants.On("GetProviderConfig", mock.Anything, "tenant-1", "cardlink").Return(cardlinkConfig(false), nil)
	tenants.On("GetCommissionRate", mock.Anything, "tenant-1").Return(decimal.RequireFromString("0.05"), nil)
	ledger.On("GetByIdempotencyKey", mock.Anything, mock.Anything, "tenant-1", "idem-1").
		Return(nil, pkgerrors.ErrTransactionNotFound)
	ledger.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	var eventTypes []string
	ledger.On("AppendEvent", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			eventTypes = append(eventTypes, args.Get(2).(*models.Event).Type)
		}).Return(nil)

	provider.On("CreatePayment", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &pkgerrors.PaymentError{
			Code:      "network_error",
			Message:   "connection reset",
			Category:  pkgerrors.CategoryTransport,
			Retriable: true,
		})

	ledger.On("UpdateStatus", mock.Anything, mock.Anything, mock.Anything, models.StatusFailed,
		mock.MatchedBy(func(u *ports.StatusUpdate) bool {
			return u.FailureCode != nil && *u.FailureCode == "provider_unavailable" &&
				u.FailureReason != nil && *u.FailureReason != ""
		})).Return(nil)

	resp, err := svc.ProcessPayment(context.Background(), paymentRequest())

	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, models.StatusFailed, resp.Status, "an unreachable provider must not leave the row pending")
	assert.Equal(t, "provider_unavailable", resp.ErrorCode)
	assert.Equal(t, []string{models.EventPaymentInitiated, models.EventPaymentProviderError}, eventTypes)
	ledger.AssertExpectations(t)
}

func TestProcessPayment_UnconfiguredTenantFailsBeforeLedger(t *testing.T) {
	ledger := new(MockLedger)
	tenants := new(MockTenants)
	provider := &MockProvider{name: "cardlink", caps: fullCaps()}
	svc := newService(provider, ledger, new(MockContracts), tenants)

	ledger.On("GetByIdempotencyKey", mock.Anything, mock.Anything, "tenant-1", "idem-1").
		Return(nil, pkgerrors.ErrTransactionNotFound)
	tenants.On("GetProviderConfig", mock.Anything, "tenant-1", "cardlink").Return(nil, nil)

	_, err := svc.ProcessPayment(context.Background(), paymentRequest())

	require.Error(t, err)
	var payErr *pkgerrors.PaymentError
	require.True(t, errors.As(err, &payErr))
	assert.Equal(t, pkgerrors.CategoryConfiguration, payErr.Category)
	ledger.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	provider.AssertNotCalled(t, "CreatePayment", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessMotoPayment_UnsupportedProviderMakesNoCalls(t *testing.T) {
	ledger := new(MockLedger)
	tenants := new(MockTenants)
	provider := &MockProvider{name: "hostedpay", caps: ports.Capabilities{SupportsOnClick: true}}
	svc := newService(provider, ledger, new(MockContracts), tenants)

	ledger.On("GetByIdempotencyKey", mock.Anything, mock.Anything, "tenant-1", "idem-1").
		Return(nil, pkgerrors.ErrTransactionNotFound)
	tenants.On("GetProviderConfig", mock.Anything, "tenant-1", "cardlink").
		Return(&ports.ProviderConfig{TenantID: "tenant-1", Provider: "hostedpay", HostedPay: &ports.HostedPayConfig{}}, nil)

	_, err := svc.ProcessMotoPayment(context.Background(), paymentRequest())

	require.Error(t, err)
	var payErr *pkgerrors.PaymentError
	require.True(t, errors.As(err, &payErr))
	assert.Equal(t, pkgerrors.CategoryPrecondition, payErr.Category)
	provider.AssertNotCalled(t, "CreateMotoPayment", mock.Anything, mock.Anything, mock.Anything)
	ledger.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessMotoPayment_UnprovisionedProfileIsConfigurationError(t *testing.T) {
	ledger := new(MockLedger)
	tenants := new(MockTenants)
	provider := &MockProvider{name: "cardlink", caps: fullCaps()}
	svc := newService(provider, ledger, new(MockContracts), tenants)

	ledger.On("GetByIdempotencyKey", mock.Anything, mock.Anything, "tenant-1", "idem-1").
		Return(nil, pkgerrors.ErrTransactionNotFound)
	tenants.On("GetProviderConfig", mock.Anything, "tenant-1", "cardlink").Return(cardlinkConfig(false), nil)

	_, err := svc.ProcessMotoPayment(context.Background(), paymentRequest())

	require.Error(t, err)
	var payErr *pkgerrors.PaymentError
	require.True(t, errors.As(err, &payErr))
	assert.Equal(t, pkgerrors.CategoryConfiguration, payErr.Category)
	ledger.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestChargeRecurring_PausedContractRejectedBeforeProvider(t *testing.T) {
	ledger := new(MockLedger)
	tenants := new(MockTenants)
	contracts := new(MockContracts)
	provider := &MockProvider{name: "cardlink", caps: fullCaps()}
	svc := newService(provider, ledger, contracts, tenants)

	contractID := uuid.New()
	contracts.On("GetByID", mock.Anything, mock.Anything, contractID).Return(&models.RecurringContract{
		ID:       contractID.String(),
		TenantID: "tenant-1",
		Provider: "cardlink",
		Status:   models.ContractStatusPaused,
	}, nil)

	_, err := svc.ChargeRecurring(context.Background(), orchestrator.ChargeRecurringRequest{
		TenantID:   "tenant-1",
		ContractID: contractID.String(),
		OrderID:    "order-1",
		Amount:     decimal.RequireFromString("10.00"),
		Currency:   "EUR",
	})

	require.Error(t, err)
	var payErr *pkgerrors.PaymentError
	require.True(t, errors.As(err, &payErr))
	assert.Equal(t, pkgerrors.CategoryPrecondition, payErr.Category)
	provider.AssertNotCalled(t, "ChargeRecurring", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	ledger.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestChargeRecurring_SuccessRecordsChargeAndAdvancesSchedule(t *testing.T) {
	ledger := new(MockLedger)
	tenants := new(MockTenants)
	contracts := new(MockContracts)
	provider := &MockProvider{name: "cardlink", caps: fullCaps()}
	svc := newService(provider, ledger, contracts, tenants)

	contractID := uuid.New()
	contracts.On("GetByID", mock.Anything, mock.Anything, contractID).Return(&models.RecurringContract{
		ID:                 contractID.String(),
		TenantID:           "tenant-1",
		CustomerID:         "cust-1",
		Provider:           "cardlink",
		ProviderContractID: "pc-1",
		Type:               models.ContractTypeScheduled,
		FrequencyDays:      30,
		MaxAmount:          decimal.RequireFromString("50.00"),
		Status:             models.ContractStatusActive,
	}, nil)

	tenants.On("GetProviderConfig", mock.Anything, "tenant-1", "cardlink").Return(cardlinkConfig(false), nil)
	tenants.On("GetCommissionRate", mock.Anything, "tenant-1").Return(decimal.RequireFromString("0.05"), nil)
	ledger.On("GetByIdempotencyKey", mock.Anything, mock.Anything, "tenant-1", "idem-r1").
		Return(nil, pkgerrors.ErrTransactionNotFound)
	ledger.On("Create", mock.Anything, mock.Anything, mock.MatchedBy(func(txn *models.Transaction) bool {
		return txn.PaymentType == models.PaymentTypeRecurrent && txn.CustomerID == "cust-1"
	})).Return(nil)
	ledger.On("AppendEvent", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	provider.On("ChargeRecurring", mock.Anything, mock.Anything, "pc-1", mock.Anything).
		Return(&ports.PaymentResult{Success: true, ProviderPaymentID: "pay-9", Status: ports.PaymentStatusSucceeded}, nil)

	ledger.On("UpdateStatus", mock.Anything, mock.Anything, mock.Anything, models.StatusProcessing, mock.Anything).Return(nil)
	contracts.On("RecordCharge", mock.Anything, mock.Anything, contractID,
		decimal.RequireFromString("10.00"), mock.Anything,
		mock.MatchedBy(func(next *time.Time) bool { return next != nil })).Return(nil)

	resp, err := svc.ChargeRecurring(context.Background(), orchestrator.ChargeRecurringRequest{
		TenantID:       "tenant-1",
		ContractID:     contractID.String(),
		OrderID:        "order-1",
		Amount:         decimal.RequireFromString("10.00"),
		Currency:       "EUR",
		IdempotencyKey: "idem-r1",
	})

	require.NoError(t, err)
	assert.True(t, resp.Success)
	contracts.AssertExpectations(t)
}

func TestChargeRecurring_ReplayWinsOverContractState(t *testing.T) {
	ledger := new(MockLedger)
	tenants := new(MockTenants)
	contracts := new(MockContracts)
	provider := &MockProvider{name: "cardlink", caps: fullCaps()}
	svc := newService(provider, ledger, contracts, tenants)

	existing := &models.Transaction{
		ID:                uuid.NewString(),
		TenantID:          "tenant-1",
		IdempotencyKey:    "idem-r1",
		Provider:          "cardlink",
		Status:            models.StatusCompleted,
		ProviderPaymentID: "pay-9",
	}
	ledger.On("GetByIdempotencyKey", mock.Anything, mock.Anything, "tenant-1", "idem-r1").Return(existing, nil)

	// The contract was paused after the original charge; the recorded
	// response is still replayed without consulting contract state.
	resp, err := svc.ChargeRecurring(context.Background(), orchestrator.ChargeRecurringRequest{
		TenantID:       "tenant-1",
		ContractID:     uuid.NewString(),
		OrderID:        "order-1",
		Amount:         decimal.RequireFromString("10.00"),
		Currency:       "EUR",
		IdempotencyKey: "idem-r1",
	})

	require.NoError(t, err)
	assert.True(t, resp.Replayed)
	assert.Equal(t, existing.ID, resp.TransactionID)
	contracts.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything, mock.Anything)
	provider.AssertNotCalled(t, "ChargeRecurring", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestChargeRecurring_AmountAboveCeilingRejected(t *testing.T) {
	ledger := new(MockLedger)
	tenants := new(MockTenants)
	contracts := new(MockContracts)
	provider := &MockProvider{name: "cardlink", caps: fullCaps()}
	svc := newService(provider, ledger, contracts, tenants)

	contractID := uuid.New()
	contracts.On("GetByID", mock.Anything, mock.Anything, contractID).Return(&models.RecurringContract{
		ID:        contractID.String(),
		TenantID:  "tenant-1",
		Provider:  "cardlink",
		MaxAmount: decimal.RequireFromString("50.00"),
		Status:    models.ContractStatusActive,
	}, nil)

	_, err := svc.ChargeRecurring(context.Background(), orchestrator.ChargeRecurringRequest{
		TenantID:   "tenant-1",
		ContractID: contractID.String(),
		OrderID:    "order-1",
		Amount:     decimal.RequireFromString("75.00"),
		Currency:   "EUR",
	})

	require.Error(t, err)
	var payErr *pkgerrors.PaymentError
	require.True(t, errors.As(err, &payErr))
	assert.Equal(t, pkgerrors.CategoryPrecondition, payErr.Category)
	provider.AssertNotCalled(t, "ChargeRecurring", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRefundTransaction_ProviderRejectionLeavesStatusUnchanged(t *testing.T) {
	ledger := new(MockLedger)
	tenants := new(MockTenants)
	provider := &MockProvider{name: "cardlink", caps: fullCaps()}
	svc := newService(provider, ledger, new(MockContracts), tenants)

	txnID := uuid.New()
	ledger.On("GetByID", mock.Anything, mock.Anything, txnID).Return(&models.Transaction{
		ID:                txnID.String(),
		TenantID:          "tenant-1",
		Provider:          "cardlink",
		ProviderPaymentID: "pay-1",
		GrossAmount:       decimal.RequireFromString("100.00"),
		Status:            models.StatusCompleted,
	}, nil)
	tenants.On("GetProviderConfig", mock.Anything, "tenant-1", "cardlink").Return(cardlinkConfig(false), nil)

	provider.On("RefundPayment", mock.Anything, mock.Anything, "pay-1", (*decimal.Decimal)(nil)).
		Return(&ports.RefundResult{Success: false, ErrorCode: "refund_window_closed", Error: "too late"}, nil)

	resp, err := svc.RefundTransaction(context.Background(), orchestrator.RefundRequest{
		TenantID:      "tenant-1",
		TransactionID: txnID.String(),
	})

	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, models.StatusCompleted, resp.Status, "failed refund must not change the status")
	ledger.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRefundTransaction_PartialThenStatus(t *testing.T) {
	ledger := new(MockLedger)
	tenants := new(MockTenants)
	provider := &MockProvider{name: "cardlink", caps: fullCaps()}
	svc := newService(provider, ledger, new(MockContracts), tenants)

	txnID := uuid.New()
	amount := decimal.RequireFromString("30.00")

	ledger.On("GetByID", mock.Anything, mock.Anything, txnID).Return(&models.Transaction{
		ID:                txnID.String(),
		TenantID:          "tenant-1",
		Provider:          "cardlink",
		ProviderPaymentID: "pay-1",
		GrossAmount:       decimal.RequireFromString("100.00"),
		Status:            models.StatusCompleted,
	}, nil)
	tenants.On("GetProviderConfig", mock.Anything, "tenant-1", "cardlink").Return(cardlinkConfig(false), nil)
	provider.On("RefundPayment", mock.Anything, mock.Anything, "pay-1", &amount).
		Return(&ports.RefundResult{Success: true, ProviderRefundID: "ref-1"}, nil)
	ledger.On("UpdateStatus", mock.Anything, mock.Anything, txnID, models.StatusPartialRefund, mock.Anything).Return(nil)
	ledger.On("AppendEvent", mock.Anything, mock.Anything, mock.MatchedBy(func(e *models.Event) bool {
		return e.Type == models.EventPaymentRefunded && e.Metadata["refund_amount"] == "30.00"
	})).Return(nil)

	resp, err := svc.RefundTransaction(context.Background(), orchestrator.RefundRequest{
		TenantID:      "tenant-1",
		TransactionID: txnID.String(),
		Amount:        &amount,
	})

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, models.StatusPartialRefund, resp.Status)
	ledger.AssertExpectations(t)
}

func TestRefundTransaction_PendingNotRefundable(t *testing.T) {
	ledger := new(MockLedger)
	tenants := new(MockTenants)
	provider := &MockProvider{name: "cardlink", caps: fullCaps()}
	svc := newService(provider, ledger, new(MockContracts), tenants)

	txnID := uuid.New()
	ledger.On("GetByID", mock.Anything, mock.Anything, txnID).Return(&models.Transaction{
		ID:       txnID.String(),
		TenantID: "tenant-1",
		Provider: "cardlink",
		Status:   models.StatusPending,
	}, nil)

	_, err := svc.RefundTransaction(context.Background(), orchestrator.RefundRequest{
		TenantID:      "tenant-1",
		TransactionID: txnID.String(),
	})

	require.Error(t, err)
	var payErr *pkgerrors.PaymentError
	require.True(t, errors.As(err, &payErr))
	assert.Equal(t, pkgerrors.CategoryPrecondition, payErr.Category)
	provider.AssertNotCalled(t, "RefundPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEstimateFees(t *testing.T) {
	ledger := new(MockLedger)
	tenants := new(MockTenants)
	provider := &MockProvider{name: "cardlink", caps: fullCaps()}
	svc := newService(provider, ledger, new(MockContracts), tenants)

	tenants.On("GetCommissionRate", mock.Anything, "tenant-1").Return(decimal.RequireFromString("0.05"), nil)
	provider.On("CalculateFees", decimal.RequireFromString("100.00"), "EUR").
		Return(&ports.ProviderFees{Estimated: decimal.RequireFromString("3.20"), Currency: "EUR"}, nil)

	estimate, err := svc.EstimateFees(context.Background(), "tenant-1", "cardlink", decimal.RequireFromString("100.00"), "EUR")

	require.NoError(t, err)
	assert.True(t, estimate.CommissionAmount.Equal(decimal.RequireFromString("5.00")))
	assert.True(t, estimate.NetAmount.Equal(decimal.RequireFromString("95.00")))
	require.NotNil(t, estimate.ProviderFees)
	assert.True(t, estimate.ProviderFees.Estimated.Equal(decimal.RequireFromString("3.20")))
}
