package secrets

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a Provider when the named secret does not exist.
var ErrNotFound = errors.New("secret not found")

// Provider defines a generic secrets manager interface.
// Concrete implementations (AWS, GCP, etc.) can satisfy this.
type Provider interface {
	// GetSecret retrieves a secret by name and returns its key-value map.
	GetSecret(ctx context.Context, name string) (map[string]string, error)

	// CreateSecret stores a new secret. It fails if the name is taken.
	CreateSecret(ctx context.Context, name string, value map[string]string) error

	// PutSecret replaces the value of an existing secret.
	PutSecret(ctx context.Context, name string, value map[string]string) error
}
