package ports

import (
	"context"

	"github.com/shopspring/decimal"
)

// TenantConfigStore resolves per-tenant provider configuration and commission
// rates. GetProviderConfig returns (nil, nil) for a tenant that has not
// configured the provider - that is a configuration failure for the caller,
// not a storage error. Commission rates are read fresh per payment; they are
// tenant-specific and can change.
type TenantConfigStore interface {
	GetProviderConfig(ctx context.Context, tenantID, provider string) (*ProviderConfig, error)
	GetCommissionRate(ctx context.Context, tenantID string) (decimal.Decimal, error)
}
