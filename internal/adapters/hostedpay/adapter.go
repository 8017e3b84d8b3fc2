package hostedpay

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

	"github.com/lumapay/payment-core/internal/domain/models"
	"github.com/lumapay/payment-core/internal/domain/ports"
	pkgerrors "github.com/lumapay/payment-core/pkg/errors"
	pkghttp "github.com/lumapay/payment-core/pkg/http"
	"github.com/lumapay/payment-core/pkg/observability"
	"github.com/lumapay/payment-core/pkg/resilience"
)

const ProviderName = "hostedpay"

// Adapter integrates the HostedPay wallet network: the customer is redirected
// to a provider-hosted page and the outcome arrives by webhook. Requests are
// signed with HMAC-SHA256 over endpoint + payload.
//
// HostedPay supports redirect payments only; MOTO and recurring operations
// report ErrOperationNotSupported and are gated off by Capabilities.
type Adapter struct {
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	logger     *zap.Logger
}

// NewAdapter creates a new HostedPay adapter
func NewAdapter(logger *zap.Logger) *Adapter {
	return &Adapter{
		httpClient: pkghttp.NewHTTPClient(pkghttp.HostedPageClientConfig(), 20*time.Second),
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
		SupportsMoto:           false,
		SupportsRecurring:      false,
		SupportsAutomaticSplit: false,
	}
}

type sessionRequest struct {
	MerchantCode string            `json:"merchant_code"`
	OrderID      string            `json:"order_id"`
	Amount       string            `json:"amount"`
	Currency     string            `json:"currency"`
	Description  string            `json:"description,omitempty"`
	ReturnURL    string            `json:"return_url,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

type sessionResponse struct {
	SessionID   string `json:"session_id"`
	Status      string `json:"status"`
	RedirectURL string `json:"redirect_url"`
	ErrorCode   string `json:"error_code,omitempty"`
	Message     string `json:"message,omitempty"`
}

type refundResponse struct {
	RefundID  string `json:"refund_id"`
	Status    string `json:"status"`
	ErrorCode string `json:"error_code,omitempty"`
	Message   string `json:"message,omitempty"`
}

// CreatePayment creates a hosted checkout session. The returned payment is
// pending with a redirect URL; completion arrives via webhook or polling.
func (a *Adapter) CreatePayment(ctx context.Context, cfg *ports.ProviderConfig, params ports.CreatePaymentParams) (*ports.PaymentResult, error) {
	hp, err := hostedPayConfig(cfg)
	if err != nil {
		return nil, err
	}

	returnURL := params.ReturnURL
	if returnURL == "" {
		returnURL = hp.ReturnURL
	}

	req := sessionRequest{
		MerchantCode: hp.MerchantCode,
		OrderID:      params.OrderID,
		Amount:       params.Amount.String(),
		Currency:     params.Currency,
		Description:  params.Description,
		ReturnURL:    returnURL,
		Metadata:     params.Metadata,
	}

	var resp sessionResponse
	if err := a.doSigned(ctx, hp, http.MethodPost, "/v1/sessions", "create_session", req, &resp); err != nil {
		return nil, err
	}

	if resp.ErrorCode != "" {
		return &ports.PaymentResult{
			Success:   false,
			Status:    ports.PaymentStatusFailed,
			ErrorCode: resp.ErrorCode,
			Error:     resp.Message,
		}, nil
	}

	return &ports.PaymentResult{
		Success:           true,
		ProviderPaymentID: resp.SessionID,
		Status:            mapSessionStatus(resp.Status),
		RedirectURL:       resp.RedirectURL,
	}, nil
}

// CapturePayment is not meaningful for hosted sessions: the network settles
// automatically when the customer completes the page
func (a *Adapter) CapturePayment(ctx context.Context, cfg *ports.ProviderConfig, providerPaymentID string, amount *decimal.Decimal) (*ports.PaymentResult, error) {
	return nil, pkgerrors.ErrOperationNotSupported
}

// RefundPayment refunds a completed session, in full when amount is nil
func (a *Adapter) RefundPayment(ctx context.Context, cfg *ports.ProviderConfig, providerPaymentID string, amount *decimal.Decimal) (*ports.RefundResult, error) {
	hp, err := hostedPayConfig(cfg)
	if err != nil {
		return nil, err
	}

	req := map[string]string{}
	if amount != nil {
		req["amount"] = amount.String()
	}

	var resp refundResponse
	endpoint := fmt.Sprintf("/v1/sessions/%s/refunds", providerPaymentID)
	if err := a.doSigned(ctx, hp, http.MethodPost, endpoint, "refund_session", req, &resp); err != nil {
		return nil, err
	}

	if resp.ErrorCode != "" {
		return &ports.RefundResult{
			Success:   false,
			ErrorCode: resp.ErrorCode,
			Error:     resp.Message,
		}, nil
	}
	return &ports.RefundResult{Success: true, ProviderRefundID: resp.RefundID}, nil
}

// GetPaymentStatus polls the wallet network for the current session state
func (a *Adapter) GetPaymentStatus(ctx context.Context, cfg *ports.ProviderConfig, providerPaymentID string) (*ports.PaymentResult, error) {
	hp, err := hostedPayConfig(cfg)
	if err != nil {
		return nil, err
	}

	var resp sessionResponse
	endpoint := fmt.Sprintf("/v1/sessions/%s", providerPaymentID)
	if err := a.doSigned(ctx, hp, http.MethodGet, endpoint, "get_session", nil, &resp); err != nil {
		return nil, err
	}

	status := mapSessionStatus(resp.Status)
	return &ports.PaymentResult{
		Success:           status != ports.PaymentStatusFailed,
		ProviderPaymentID: resp.SessionID,
		Status:            status,
		RedirectURL:       resp.RedirectURL,
		ErrorCode:         resp.ErrorCode,
		Error:             resp.Message,
	}, nil
}

// CreateMotoPayment is not supported by the hosted page flow
func (a *Adapter) CreateMotoPayment(ctx context.Context, cfg *ports.ProviderConfig, params ports.CreatePaymentParams) (*ports.PaymentResult, error) {
	return nil, pkgerrors.ErrOperationNotSupported
}

// CreateContract is not supported; HostedPay has no tokenization API
func (a *Adapter) CreateContract(ctx context.Context, cfg *ports.ProviderConfig, params ports.ContractParams) (*ports.ContractResult, error) {
	return nil, pkgerrors.ErrOperationNotSupported
}

// ChargeRecurring is not supported; HostedPay has no tokenization API
func (a *Adapter) ChargeRecurring(ctx context.Context, cfg *ports.ProviderConfig, providerContractID string, params ports.CreatePaymentParams) (*ports.PaymentResult, error) {
	return nil, pkgerrors.ErrOperationNotSupported
}

// CancelContract is not supported; HostedPay has no tokenization API
func (a *Adapter) CancelContract(ctx context.Context, cfg *ports.ProviderConfig, providerContractID string) error {
	return pkgerrors.ErrOperationNotSupported
}

// CalculateFees is not supported; HostedPay does not publish a fee schedule
func (a *Adapter) CalculateFees(amount decimal.Decimal, currency string) (*ports.ProviderFees, error) {
	return nil, pkgerrors.ErrOperationNotSupported
}

// VerifyWebhookSignature checks the hex HMAC-SHA256 of the raw payload
func (a *Adapter) VerifyWebhookSignature(payload []byte, signature, secret string) bool {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	expected := hex.EncodeToString(h.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

type webhookPayload struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Data      map[string]string `json:"data"`
}

// ParseWebhookEvent normalizes an inbound wallet network notification
func (a *Adapter) ParseWebhookEvent(payload []byte) (*models.WebhookEvent, error) {
	var wp webhookPayload
	if err := json.Unmarshal(payload, &wp); err != nil {
		return nil, fmt.Errorf("decode hostedpay webhook: %w", err)
	}
	if wp.ID == "" || wp.Type == "" {
		return nil, fmt.Errorf("hostedpay webhook missing id or type")
	}

	return &models.WebhookEvent{
		Provider:   ProviderName,
		EventType:  wp.Type,
		EventID:    wp.ID,
		Timestamp:  wp.Timestamp,
		Data:       wp.Data,
		RawPayload: payload,
	}, nil
}

func hostedPayConfig(cfg *ports.ProviderConfig) (*ports.HostedPayConfig, error) {
	if cfg == nil || cfg.HostedPay == nil {
		return nil, pkgerrors.NewConfigurationError("provider_not_configured",
			"tenant has no HostedPay configuration")
	}
	return cfg.HostedPay, nil
}

// signRequest calculates the request signature over endpoint + payload
func signRequest(signingKey, endpoint string, payload []byte) string {
	h := hmac.New(sha256.New, []byte(signingKey))
	h.Write([]byte(endpoint))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

func (a *Adapter) doSigned(ctx context.Context, hp *ports.HostedPayConfig, method, endpoint, operation string, in, out interface{}) error {
	var payload []byte
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", operation, err)
		}
		payload = data
	}

	req, err := http.NewRequestWithContext(ctx, method, hp.BaseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", operation, err)
	}
	req.Header.Set("X-Merchant-Code", hp.MerchantCode)
	req.Header.Set("X-Signature", signRequest(hp.SigningKey, endpoint, payload))
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	err = a.breaker.Call(func() error {
		resp, err := a.httpClient.Do(req)
		if err != nil {
			return &pkgerrors.PaymentError{
				Code:      "network_error",
				Message:   fmt.Sprintf("HostedPay %s call failed", operation),
				Category:  pkgerrors.CategoryTransport,
				Retriable: true,
			}
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError {
			return &pkgerrors.PaymentError{
				Code:      fmt.Sprintf("http_%d", resp.StatusCode),
				Message:   fmt.Sprintf("HostedPay %s returned status %d", operation, resp.StatusCode),
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
				Message:   fmt.Sprintf("HostedPay %s response could not be decoded", operation),
				Category:  pkgerrors.CategoryTransport,
				Retriable: true,
			}
		}
		return nil
	})
	observability.ObserveProviderCall(ProviderName, operation, time.Since(start))

	if err != nil {
		a.logger.Warn("HostedPay call failed",
			zap.String("operation", operation),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func mapSessionStatus(s string) ports.PaymentStatus {
	switch s {
	case "completed", "paid":
		return ports.PaymentStatusSucceeded
	case "created", "pending":
		return ports.PaymentStatusPending
	case "processing":
		return ports.PaymentStatusProcessing
	case "refunded":
		return ports.PaymentStatusRefunded
	default:
		return ports.PaymentStatusFailed
	}
}
