package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/lumapay/payment-core/internal/adapters/secrets"
	"github.com/lumapay/payment-core/internal/config"
	"github.com/lumapay/payment-core/internal/domain/ports"
)

// initSecretManager initializes the secret backend that tenant provider
// credentials are hydrated from.
//
// Supports:
//   - AWS Secrets Manager: SECRETS_BACKEND=aws (AWS_REGION, optional
//     AWS_PROFILE / AWS_SECRETS_ENDPOINT for LocalStack)
//   - HashiCorp Vault: SECRETS_BACKEND=vault (VAULT_ADDR plus VAULT_TOKEN or
//     VAULT_ROLE_ID/VAULT_SECRET_ID)
//   - Local files: SECRETS_BACKEND=local (SECRETS_LOCAL_PATH, development only)
func initSecretManager(ctx context.Context, cfg *config.SecretsConfig, logger *zap.Logger) (ports.SecretManagerAdapter, error) {
	switch cfg.Backend {
	case "aws":
		awsCfg := secrets.DefaultAWSSecretsManagerConfig(cfg.AWSRegion)
		awsCfg.Profile = cfg.AWSProfile
		awsCfg.Endpoint = cfg.AWSEndpoint
		awsCfg.CacheTTL = cfg.CacheTTL
		return secrets.NewAWSSecretsManagerAdapter(ctx, awsCfg, logger)

	case "vault":
		vaultCfg := secrets.DefaultVaultConfig(cfg.VaultAddress)
		vaultCfg.MountPath = cfg.VaultMountPath
		vaultCfg.CacheTTL = cfg.CacheTTL
		if cfg.VaultRoleID != "" {
			vaultCfg.AuthMethod = "approle"
			vaultCfg.RoleID = cfg.VaultRoleID
			vaultCfg.SecretID = cfg.VaultSecretID
		} else {
			vaultCfg.Token = cfg.VaultToken
		}
		return secrets.NewVaultAdapter(ctx, vaultCfg, logger)

	default:
		logger.Warn("Using local file secret backend - NOT for production use!",
			zap.String("path", cfg.LocalPath),
		)
		return secrets.NewLocalSecretManager(cfg.LocalPath, logger), nil
	}
}
