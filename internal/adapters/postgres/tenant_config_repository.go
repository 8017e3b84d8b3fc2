package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/lumapay/payment-core/internal/domain/ports"
)

// cardLinkSettings is the JSONB shape stored for a CardLink tenant config.
// Credential fields hold secret-store paths, not the material itself.
type cardLinkSettings struct {
	BaseURL          string `json:"base_url"`
	ClientID         string `json:"client_id"`
	ClientSecretRef  string `json:"client_secret_ref"`
	MerchantID       string `json:"merchant_id"`
	MotoEnabled      bool   `json:"moto_enabled"`
	WebhookSecretRef string `json:"webhook_secret_ref"`
}

type hostedPaySettings struct {
	BaseURL          string `json:"base_url"`
	MerchantCode     string `json:"merchant_code"`
	SigningKeyRef    string `json:"signing_key_ref"`
	ReturnURL        string `json:"return_url"`
	WebhookSecretRef string `json:"webhook_secret_ref"`
}

// TenantConfigRepository resolves per-tenant provider configuration from
// PostgreSQL rows, hydrating credential references through the secret backend.
type TenantConfigRepository struct {
	db      ports.DBPort
	secrets ports.SecretManagerAdapter
}

// NewTenantConfigRepository creates a new TenantConfigRepository
func NewTenantConfigRepository(db ports.DBPort, secrets ports.SecretManagerAdapter) *TenantConfigRepository {
	return &TenantConfigRepository{db: db, secrets: secrets}
}

// GetProviderConfig returns the tenant's configuration for the named provider,
// or (nil, nil) when the tenant has not configured it
func (r *TenantConfigRepository) GetProviderConfig(ctx context.Context, tenantID, provider string) (*ports.ProviderConfig, error) {
	const query = `
		SELECT settings
		FROM tenant_provider_configs
		WHERE tenant_id = $1 AND provider = $2 AND enabled`

	var settings []byte
	err := r.db.GetDB().QueryRow(ctx, query, tenantID, provider).Scan(&settings)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query tenant provider config: %w", err)
	}

	cfg := &ports.ProviderConfig{TenantID: tenantID, Provider: provider}

	switch provider {
	case "cardlink":
		var s cardLinkSettings
		if err := json.Unmarshal(settings, &s); err != nil {
			return nil, fmt.Errorf("decode cardlink settings for tenant %s: %w", tenantID, err)
		}
		clientSecret, err := r.resolveSecret(ctx, s.ClientSecretRef)
		if err != nil {
			return nil, err
		}
		webhookSecret, err := r.resolveSecret(ctx, s.WebhookSecretRef)
		if err != nil {
			return nil, err
		}
		cfg.CardLink = &ports.CardLinkConfig{
			BaseURL:       s.BaseURL,
			ClientID:      s.ClientID,
			ClientSecret:  clientSecret,
			MerchantID:    s.MerchantID,
			MotoEnabled:   s.MotoEnabled,
			WebhookSecret: webhookSecret,
		}
	case "hostedpay":
		var s hostedPaySettings
		if err := json.Unmarshal(settings, &s); err != nil {
			return nil, fmt.Errorf("decode hostedpay settings for tenant %s: %w", tenantID, err)
		}
		signingKey, err := r.resolveSecret(ctx, s.SigningKeyRef)
		if err != nil {
			return nil, err
		}
		webhookSecret, err := r.resolveSecret(ctx, s.WebhookSecretRef)
		if err != nil {
			return nil, err
		}
		cfg.HostedPay = &ports.HostedPayConfig{
			BaseURL:       s.BaseURL,
			MerchantCode:  s.MerchantCode,
			SigningKey:    signingKey,
			ReturnURL:     s.ReturnURL,
			WebhookSecret: webhookSecret,
		}
	default:
		return nil, fmt.Errorf("unknown provider %q in tenant config for tenant %s", provider, tenantID)
	}

	return cfg, nil
}

// GetCommissionRate returns the tenant's current commission rate as a fraction
// (0.05 means 5%)
func (r *TenantConfigRepository) GetCommissionRate(ctx context.Context, tenantID string) (decimal.Decimal, error) {
	const query = `SELECT commission_rate FROM tenants WHERE tenant_id = $1`

	var rate pgtype.Numeric
	err := r.db.GetDB().QueryRow(ctx, query, tenantID).Scan(&rate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("tenant %s is not registered", tenantID)
		}
		return decimal.Zero, fmt.Errorf("query commission rate: %w", err)
	}
	return decimalFromNumeric(rate), nil
}

func (r *TenantConfigRepository) resolveSecret(ctx context.Context, ref string) (string, error) {
	if ref == "" {
		return "", nil
	}
	secret, err := r.secrets.GetSecret(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("resolve secret %s: %w", ref, err)
	}
	return secret.Value, nil
}
