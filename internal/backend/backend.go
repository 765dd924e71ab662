// Package backend defines the storage contract behind the settings form: a
// collection holding the ingest URL and a vault holding the access token.
//
// Reads normalize three outcomes into (result, error): a record, a nil record
// with a nil error meaning "definitively absent", or an error.
package backend

import (
	"context"
	"errors"

	"github.com/signalfx/sfx-forwarder-app/pkg/model"
)

// ErrACLNotApplied is returned, wrapped, by CreateAccessToken when the
// credential was stored but its sharing/permissions could not be set.
var ErrACLNotApplied = errors.New("credential acl not applied")

// ConfigStore holds the single ingest config row.
type ConfigStore interface {
	ReadIngestConfig(ctx context.Context) (*model.IngestConfig, error)
	CreateIngestConfig(ctx context.Context, ingestURL string) (*model.IngestConfig, error)
	UpdateIngestConfig(ctx context.Context, key, ingestURL string) (*model.IngestConfig, error)
}

// CredentialVault holds the access token under the fixed realm/username.
type CredentialVault interface {
	ReadAccessToken(ctx context.Context) (*model.AccessCredential, error)
	CreateAccessToken(ctx context.Context, token string) error
	UpdateAccessToken(ctx context.Context, token string) error
}

// Backend is everything the settings form talks to.
type Backend interface {
	ConfigStore
	CredentialVault
}

type composite struct {
	ConfigStore
	CredentialVault
}

// Compose pairs a config store with a vault from a different system.
func Compose(store ConfigStore, vault CredentialVault) Backend {
	return composite{ConfigStore: store, CredentialVault: vault}
}
