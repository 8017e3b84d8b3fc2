package ports

import "context"

// Secret represents a secret retrieved from a secret backend
type Secret struct {
	Value     string
	Version   string
	CreatedAt string
	Metadata  map[string]string
}

// SecretManagerAdapter abstracts the secret backend that stores provider
// credentials (API keys, signing secrets). Tenant configuration rows hold
// references into this store, never the credential material itself.
type SecretManagerAdapter interface {
	// GetSecret retrieves a secret by its path
	GetSecret(ctx context.Context, path string) (*Secret, error)

	// PutSecret creates or updates a secret, returning the new version
	PutSecret(ctx context.Context, path string, value string, metadata map[string]string) (string, error)
}
