package ports

import (
	"context"

	"github.com/lumapay/payment-core/internal/domain/models"
	"github.com/shopspring/decimal"
)

// Capabilities declares which optional operations a provider adapter supports.
// The orchestrator checks these flags before invoking the corresponding
// operation; calling an unsupported operation is a contract violation the
// orchestrator prevents, not something the adapter has to guard against.
type Capabilities struct {
	SupportsOnClick        bool
	SupportsMoto           bool
	SupportsRecurring      bool
	SupportsAutomaticSplit bool
}

// PaymentStatus is the provider-neutral status an adapter normalizes its
// responses into.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusSucceeded  PaymentStatus = "succeeded"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

// CardLinkConfig holds per-tenant credentials for the CardLink acquirer
type CardLinkConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	MerchantID   string
	// MotoEnabled mirrors the acquirer-side merchant profile provisioning.
	// MOTO charges against an unprovisioned profile fail fast.
	MotoEnabled   bool
	WebhookSecret string
}

// HostedPayConfig holds per-tenant credentials for the HostedPay wallet network
type HostedPayConfig struct {
	BaseURL       string
	MerchantCode  string
	SigningKey    string
	ReturnURL     string
	WebhookSecret string
}

// ProviderConfig is the tenant's stored configuration for one provider,
// modeled as a tagged union keyed by provider name: exactly one variant is
// non-nil, and each adapter resolves its own variant at the point of use.
type ProviderConfig struct {
	TenantID  string
	Provider  string
	CardLink  *CardLinkConfig
	HostedPay *HostedPayConfig
}

// CreatePaymentParams carries the generic inputs for initiating a payment.
// Amounts and order identity arrive already finalized from the order
// subsystem; this core never recomputes pricing.
type CreatePaymentParams struct {
	OrderID        string
	CustomerID     string
	Amount         decimal.Decimal
	Currency       string
	Description    string
	IdempotencyKey string
	ReturnURL      string
	Metadata       map[string]string
}

// PaymentResult is the normalized outcome of a provider payment operation.
// Business failures set Success=false with Error/ErrorCode populated; the
// adapter returns a Go error only for transport-level faults.
type PaymentResult struct {
	Success           bool
	ProviderPaymentID string
	Status            PaymentStatus
	RedirectURL       string
	ClientSecret      string
	ErrorCode         string
	Error             string
}

// RefundResult is the normalized outcome of a provider refund
type RefundResult struct {
	Success          bool
	ProviderRefundID string
	ErrorCode        string
	Error            string
}

// ContractParams carries the inputs for establishing a recurring authorization
type ContractParams struct {
	CustomerID    string
	Type          models.ContractType
	FrequencyDays int
	MaxAmount     decimal.Decimal
	Currency      string
	ReturnURL     string
	Metadata      map[string]string
}

// ContractResult is the normalized outcome of a provider contract creation.
// Most acquirers return a pending placeholder: the token materializes only
// after the first customer-initiated charge completes.
type ContractResult struct {
	Success            bool
	ProviderContractID string
	TokenID            string
	Status             models.ContractStatus
	CardLastFour       string
	CardBrand          string
	CardExpiryMonth    int
	CardExpiryYear     int
	ErrorCode          string
	Error              string
}

// ProviderFees is the provider's own processing-fee estimate, independent of
// the platform commission. Used for cost transparency, not settlement math.
type ProviderFees struct {
	FixedFee    decimal.Decimal
	PercentRate decimal.Decimal
	Estimated   decimal.Decimal
	Currency    string
}

// PaymentProvider is the capability-gated contract every provider adapter
// must satisfy. Required operations must work for every adapter; optional
// operations (CreateMotoPayment, CreateContract, ChargeRecurring,
// CancelContract, CalculateFees) are only invoked when the matching
// Capabilities flag is true.
type PaymentProvider interface {
	// Name returns the registry key for this adapter
	Name() string

	// Capabilities reports which optional operations this adapter supports
	Capabilities() Capabilities

	// CreatePayment initiates a standard customer-initiated (OnClick) payment
	CreatePayment(ctx context.Context, cfg *ProviderConfig, params CreatePaymentParams) (*PaymentResult, error)

	// CapturePayment settles a previously authorized amount; a partial
	// capture is performed when amount is non-nil and below the authorized sum
	CapturePayment(ctx context.Context, cfg *ProviderConfig, providerPaymentID string, amount *decimal.Decimal) (*PaymentResult, error)

	// RefundPayment refunds in full when amount is nil, partially otherwise
	RefundPayment(ctx context.Context, cfg *ProviderConfig, providerPaymentID string, amount *decimal.Decimal) (*RefundResult, error)

	// GetPaymentStatus polls the provider for the current payment state,
	// used for reconciliation when webhooks are delayed or missed
	GetPaymentStatus(ctx context.Context, cfg *ProviderConfig, providerPaymentID string) (*PaymentResult, error)

	// VerifyWebhookSignature checks an inbound notification's authenticity
	VerifyWebhookSignature(payload []byte, signature, secret string) bool

	// ParseWebhookEvent normalizes an inbound notification
	ParseWebhookEvent(payload []byte) (*models.WebhookEvent, error)

	// CreateMotoPayment performs an operator-keyed card-not-present charge.
	// Gated by SupportsMoto.
	CreateMotoPayment(ctx context.Context, cfg *ProviderConfig, params CreatePaymentParams) (*PaymentResult, error)

	// CreateContract establishes a recurring authorization. Gated by
	// SupportsRecurring.
	CreateContract(ctx context.Context, cfg *ProviderConfig, params ContractParams) (*ContractResult, error)

	// ChargeRecurring performs a merchant-initiated charge against an
	// existing token, without a 3-D Secure challenge. Gated by
	// SupportsRecurring.
	ChargeRecurring(ctx context.Context, cfg *ProviderConfig, providerContractID string, params CreatePaymentParams) (*PaymentResult, error)

	// CancelContract invalidates the token at the provider so it cannot be
	// charged again. Gated by SupportsRecurring.
	CancelContract(ctx context.Context, cfg *ProviderConfig, providerContractID string) error

	// CalculateFees estimates the provider's own processing fees. Gated by
	// a non-nil result from adapters that publish their fee schedule.
	CalculateFees(amount decimal.Decimal, currency string) (*ProviderFees, error)
}
