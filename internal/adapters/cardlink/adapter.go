package cardlink

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/lumapay/payment-core/internal/domain/commission"
	"github.com/lumapay/payment-core/internal/domain/models"
	"github.com/lumapay/payment-core/internal/domain/ports"
	pkgerrors "github.com/lumapay/payment-core/pkg/errors"
	pkghttp "github.com/lumapay/payment-core/pkg/http"
	"github.com/lumapay/payment-core/pkg/observability"
	"github.com/lumapay/payment-core/pkg/resilience"
)

const ProviderName = "cardlink"

// Published fee schedule for cost estimates
var (
	feeFixed   = decimal.NewFromFloat(0.30)
	feePercent = decimal.NewFromFloat(0.029)
)

// Adapter integrates the CardLink acquirer: card-present-quality REST API
// with OAuth client-credentials auth, server-side MOTO charges and tokenized
// recurring billing.
type Adapter struct {
	httpClient *http.Client
	tokens     *tokenSource
	breaker    *resilience.CircuitBreaker
	logger     *zap.Logger
}

// NewAdapter creates a new CardLink adapter
func NewAdapter(logger *zap.Logger) *Adapter {
	client := pkghttp.NewHTTPClient(pkghttp.AcquirerClientConfig(), 35*time.Second)
	return &Adapter{
		httpClient: client,
		tokens:     newTokenSource(client),
		breaker:    resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
		logger:     logger,
	}
}

// Name returns the registry key for this adapter
func (a *Adapter) Name() string {
	return ProviderName
}

// Capabilities reports which optional operations this adapter supports
func (a *Adapter) Capabilities() ports.Capabilities {
	return ports.Capabilities{
		SupportsOnClick:        true,
		SupportsMoto:           true,
		SupportsRecurring:      true,
		SupportsAutomaticSplit: false,
	}
}

type paymentRequest struct {
	MerchantID     string            `json:"merchant_id"`
	OrderID        string            `json:"order_id"`
	CustomerID     string            `json:"customer_id,omitempty"`
	Amount         string            `json:"amount"`
	Currency       string            `json:"currency"`
	Description    string            `json:"description,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	ReturnURL      string            `json:"return_url,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

type paymentResponse struct {
	PaymentID    string `json:"payment_id"`
	Status       string `json:"status"`
	ResponseCode string `json:"response_code"`
	Message      string `json:"message"`
	ClientSecret string `json:"client_secret,omitempty"`
}

type refundResponse struct {
	RefundID     string `json:"refund_id"`
	Status       string `json:"status"`
	ResponseCode string `json:"response_code"`
	Message      string `json:"message"`
}

type contractRequest struct {
	MerchantID    string `json:"merchant_id"`
	CustomerID    string `json:"customer_id"`
	ContractType  string `json:"contract_type"`
	FrequencyDays int    `json:"frequency_days,omitempty"`
	MaxAmount     string `json:"max_amount"`
	Currency      string `json:"currency"`
	ReturnURL     string `json:"return_url,omitempty"`
}

type contractResponse struct {
	ContractID      string `json:"contract_id"`
	TokenID         string `json:"token_id,omitempty"`
	Status          string `json:"status"`
	CardLastFour    string `json:"card_last_four,omitempty"`
	CardBrand       string `json:"card_brand,omitempty"`
	CardExpiryMonth int    `json:"card_expiry_month,omitempty"`
	CardExpiryYear  int    `json:"card_expiry_year,omitempty"`
	ResponseCode    string `json:"response_code"`
	Message         string `json:"message"`
}

// CreatePayment initiates a customer-initiated card payment
func (a *Adapter) CreatePayment(ctx context.Context, cfg *ports.ProviderConfig, params ports.CreatePaymentParams) (*ports.PaymentResult, error) {
	return a.createPayment(ctx, cfg, params, "/v1/payments", "create_payment")
}

// CreateMotoPayment performs an operator-keyed card-not-present charge.
// The acquirer rejects MOTO against an unprovisioned merchant profile, so an
// unprovisioned tenant fails here before any network call.
func (a *Adapter) CreateMotoPayment(ctx context.Context, cfg *ports.ProviderConfig, params ports.CreatePaymentParams) (*ports.PaymentResult, error) {
	cl, err := cardLinkConfig(cfg)
	if err != nil {
		return nil, err
	}
	if !cl.MotoEnabled {
		return nil, pkgerrors.NewConfigurationError("moto_not_provisioned",
			fmt.Sprintf("MOTO is not provisioned for tenant %s on the CardLink merchant profile", cfg.TenantID))
	}
	return a.createPayment(ctx, cfg, params, "/v1/payments/moto", "create_moto_payment")
}

func (a *Adapter) createPayment(ctx context.Context, cfg *ports.ProviderConfig, params ports.CreatePaymentParams, endpoint, operation string) (*ports.PaymentResult, error) {
	cl, err := cardLinkConfig(cfg)
	if err != nil {
		return nil, err
	}

	req := paymentRequest{
		MerchantID:     cl.MerchantID,
		OrderID:        params.OrderID,
		CustomerID:     params.CustomerID,
		Amount:         params.Amount.String(),
		Currency:       params.Currency,
		Description:    params.Description,
		IdempotencyKey: params.IdempotencyKey,
		ReturnURL:      params.ReturnURL,
		Metadata:       params.Metadata,
	}

	var resp paymentResponse
	if err := a.doJSON(ctx, cl, http.MethodPost, endpoint, operation, req, &resp); err != nil {
		return nil, err
	}
	return a.toPaymentResult(&resp), nil
}

// CapturePayment settles a previously authorized amount
func (a *Adapter) CapturePayment(ctx context.Context, cfg *ports.ProviderConfig, providerPaymentID string, amount *decimal.Decimal) (*ports.PaymentResult, error) {
	cl, err := cardLinkConfig(cfg)
	if err != nil {
		return nil, err
	}

	req := map[string]string{}
	if amount != nil {
		req["amount"] = amount.String()
	}

	var resp paymentResponse
	endpoint := fmt.Sprintf("/v1/payments/%s/capture", providerPaymentID)
	if err := a.doJSON(ctx, cl, http.MethodPost, endpoint, "capture_payment", req, &resp); err != nil {
		return nil, err
	}
	return a.toPaymentResult(&resp), nil
}

// RefundPayment refunds in full when amount is nil, partially otherwise
func (a *Adapter) RefundPayment(ctx context.Context, cfg *ports.ProviderConfig, providerPaymentID string, amount *decimal.Decimal) (*ports.RefundResult, error) {
	cl, err := cardLinkConfig(cfg)
	if err != nil {
		return nil, err
	}

	req := map[string]string{}
	if amount != nil {
		req["amount"] = amount.String()
	}

	var resp refundResponse
	endpoint := fmt.Sprintf("/v1/payments/%s/refunds", providerPaymentID)
	if err := a.doJSON(ctx, cl, http.MethodPost, endpoint, "refund_payment", req, &resp); err != nil {
		return nil, err
	}

	if resp.Status == "refunded" || resp.ResponseCode == "00" {
		return &ports.RefundResult{Success: true, ProviderRefundID: resp.RefundID}, nil
	}
	info := GetResponseCode(resp.ResponseCode)
	return &ports.RefundResult{
		Success:   false,
		ErrorCode: info.Code,
		Error:     info.UserMessage,
	}, nil
}

// GetPaymentStatus polls the acquirer for the current payment state
func (a *Adapter) GetPaymentStatus(ctx context.Context, cfg *ports.ProviderConfig, providerPaymentID string) (*ports.PaymentResult, error) {
	cl, err := cardLinkConfig(cfg)
	if err != nil {
		return nil, err
	}

	var resp paymentResponse
	endpoint := fmt.Sprintf("/v1/payments/%s", providerPaymentID)
	if err := a.doJSON(ctx, cl, http.MethodGet, endpoint, "get_payment_status", nil, &resp); err != nil {
		return nil, err
	}
	return a.toPaymentResult(&resp), nil
}

// CreateContract establishes a recurring authorization. The acquirer returns
// a pending contract; the token materializes once the first customer-initiated
// charge completes and the activation webhook arrives.
func (a *Adapter) CreateContract(ctx context.Context, cfg *ports.ProviderConfig, params ports.ContractParams) (*ports.ContractResult, error) {
	cl, err := cardLinkConfig(cfg)
	if err != nil {
		return nil, err
	}

	req := contractRequest{
		MerchantID:    cl.MerchantID,
		CustomerID:    params.CustomerID,
		ContractType:  string(params.Type),
		FrequencyDays: params.FrequencyDays,
		MaxAmount:     params.MaxAmount.String(),
		Currency:      params.Currency,
		ReturnURL:     params.ReturnURL,
	}

	var resp contractResponse
	if err := a.doJSON(ctx, cl, http.MethodPost, "/v1/contracts", "create_contract", req, &resp); err != nil {
		return nil, err
	}

	if resp.ResponseCode != "" && resp.ResponseCode != "00" {
		info := GetResponseCode(resp.ResponseCode)
		return &ports.ContractResult{
			Success:   false,
			ErrorCode: info.Code,
			Error:     info.UserMessage,
		}, nil
	}

	status := models.ContractStatusPending
	if resp.Status == "active" {
		status = models.ContractStatusActive
	}

	return &ports.ContractResult{
		Success:            true,
		ProviderContractID: resp.ContractID,
		TokenID:            resp.TokenID,
		Status:             status,
		CardLastFour:       resp.CardLastFour,
		CardBrand:          resp.CardBrand,
		CardExpiryMonth:    resp.CardExpiryMonth,
		CardExpiryYear:     resp.CardExpiryYear,
	}, nil
}

// ChargeRecurring performs a merchant-initiated charge against a stored token,
// without a 3-D Secure challenge
func (a *Adapter) ChargeRecurring(ctx context.Context, cfg *ports.ProviderConfig, providerContractID string, params ports.CreatePaymentParams) (*ports.PaymentResult, error) {
	cl, err := cardLinkConfig(cfg)
	if err != nil {
		return nil, err
	}

	req := paymentRequest{
		MerchantID:     cl.MerchantID,
		OrderID:        params.OrderID,
		CustomerID:     params.CustomerID,
		Amount:         params.Amount.String(),
		Currency:       params.Currency,
		Description:    params.Description,
		IdempotencyKey: params.IdempotencyKey,
		Metadata:       params.Metadata,
	}

	var resp paymentResponse
	endpoint := fmt.Sprintf("/v1/contracts/%s/charges", providerContractID)
	if err := a.doJSON(ctx, cl, http.MethodPost, endpoint, "charge_recurring", req, &resp); err != nil {
		return nil, err
	}
	return a.toPaymentResult(&resp), nil
}

// CancelContract invalidates the token at the acquirer
func (a *Adapter) CancelContract(ctx context.Context, cfg *ports.ProviderConfig, providerContractID string) error {
	cl, err := cardLinkConfig(cfg)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("/v1/contracts/%s", providerContractID)
	return a.doJSON(ctx, cl, http.MethodDelete, endpoint, "cancel_contract", nil, nil)
}

// CalculateFees estimates the acquirer's processing fees from its published
// schedule. This is a cost estimate, not settlement math.
func (a *Adapter) CalculateFees(amount decimal.Decimal, currency string) (*ports.ProviderFees, error) {
	if amount.IsNegative() {
		return nil, pkgerrors.NewValidationError("amount", "must not be negative")
	}
	estimated := commission.Round(feeFixed.Add(amount.Mul(feePercent)), currency)
	return &ports.ProviderFees{
		FixedFee:    feeFixed,
		PercentRate: feePercent,
		Estimated:   estimated,
		Currency:    currency,
	}, nil
}

// VerifyWebhookSignature checks the hex HMAC-SHA256 of the raw payload
func (a *Adapter) VerifyWebhookSignature(payload []byte, signature, secret string) bool {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	expected := hex.EncodeToString(h.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

type webhookPayload struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	CreatedAt time.Time         `json:"created_at"`
	Data      map[string]string `json:"data"`
}

// ParseWebhookEvent normalizes an inbound acquirer notification
func (a *Adapter) ParseWebhookEvent(payload []byte) (*models.WebhookEvent, error) {
	var wp webhookPayload
	if err := json.Unmarshal(payload, &wp); err != nil {
		return nil, fmt.Errorf("decode cardlink webhook: %w", err)
	}
	if wp.EventID == "" || wp.EventType == "" {
		return nil, fmt.Errorf("cardlink webhook missing event_id or event_type")
	}

	return &models.WebhookEvent{
		Provider:   ProviderName,
		EventType:  wp.EventType,
		EventID:    wp.EventID,
		Timestamp:  wp.CreatedAt,
		Data:       wp.Data,
		RawPayload: payload,
	}, nil
}

func cardLinkConfig(cfg *ports.ProviderConfig) (*ports.CardLinkConfig, error) {
	if cfg == nil || cfg.CardLink == nil {
		return nil, pkgerrors.NewConfigurationError("provider_not_configured",
			"tenant has no CardLink configuration")
	}
	return cfg.CardLink, nil
}

// doJSON performs an authenticated JSON round trip through the circuit
// breaker. A nil out discards the response body.
func (a *Adapter) doJSON(ctx context.Context, cl *ports.CardLinkConfig, method, endpoint, operation string, in, out interface{}) error {
	token, err := a.tokens.Token(ctx, cl.BaseURL, cl.ClientID, cl.ClientSecret)
	if err != nil {
		return &pkgerrors.PaymentError{
			Code:      "auth_failed",
			Message:   "failed to authenticate with CardLink",
			Category:  pkgerrors.CategoryTransport,
			Retriable: true,
		}
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", operation, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, cl.BaseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", operation, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	err = a.breaker.Call(func() error {
		resp, err := a.httpClient.Do(req)
		if err != nil {
			return &pkgerrors.PaymentError{
				Code:      "network_error",
				Message:   fmt.Sprintf("CardLink %s call failed", operation),
				Category:  pkgerrors.CategoryTransport,
				Retriable: true,
			}
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusUnauthorized {
			a.tokens.invalidate(cl.ClientID)
			return &pkgerrors.PaymentError{
				Code:      "auth_rejected",
				Message:   "CardLink rejected the access token",
				Category:  pkgerrors.CategoryTransport,
				Retriable: true,
			}
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return &pkgerrors.PaymentError{
				Code:      fmt.Sprintf("http_%d", resp.StatusCode),
				Message:   fmt.Sprintf("CardLink %s returned status %d", operation, resp.StatusCode),
				Category:  pkgerrors.CategoryTransport,
				Retriable: true,
			}
		}

		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &pkgerrors.PaymentError{
				Code:      "malformed_response",
				Message:   fmt.Sprintf("CardLink %s response could not be decoded", operation),
				Category:  pkgerrors.CategoryTransport,
				Retriable: true,
			}
		}
		return nil
	})
	observability.ObserveProviderCall(ProviderName, operation, time.Since(start))

	if err != nil {
		a.logger.Warn("CardLink call failed",
			zap.String("operation", operation),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// toPaymentResult maps an acquirer response to the normalized result. A
// decline is a business outcome carried in the result, not a Go error.
func (a *Adapter) toPaymentResult(resp *paymentResponse) *ports.PaymentResult {
	status := mapPaymentStatus(resp.Status)
	info := GetResponseCode(resp.ResponseCode)

	if info.IsApproved || status == ports.PaymentStatusSucceeded || status == ports.PaymentStatusProcessing || status == ports.PaymentStatusPending {
		if resp.ResponseCode == "" || info.IsApproved {
			return &ports.PaymentResult{
				Success:           true,
				ProviderPaymentID: resp.PaymentID,
				Status:            status,
				ClientSecret:      resp.ClientSecret,
			}
		}
	}

	return &ports.PaymentResult{
		Success:           false,
		ProviderPaymentID: resp.PaymentID,
		Status:            ports.PaymentStatusFailed,
		ErrorCode:         info.Code,
		Error:             info.UserMessage,
	}
}

func mapPaymentStatus(s string) ports.PaymentStatus {
	switch s {
	case "approved", "captured", "settled":
		return ports.PaymentStatusSucceeded
	case "authorized", "processing":
		return ports.PaymentStatusProcessing
	case "pending":
		return ports.PaymentStatusPending
	case "refunded":
		return ports.PaymentStatusRefunded
	default:
		return ports.PaymentStatusFailed
	}
}
