package settings

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/signalfx/sfx-forwarder-app/internal/backend"
	"github.com/signalfx/sfx-forwarder-app/pkg/model"
)

// Warning attached to a submit whose token was stored without its ACL.
const WarnACLNotApplied = "access token saved, but its sharing permissions could not be applied"

// saveIngestURL re-reads the collection and updates the row it finds, or
// creates one when there is none.
func saveIngestURL(ctx context.Context, store backend.ConfigStore, ingestURL string) (*model.IngestConfig, error) {
	current, err := store.ReadIngestConfig(ctx)
	if err != nil {
		return nil, err
	}
	if current != nil && current.Key != "" {
		return store.UpdateIngestConfig(ctx, current.Key, ingestURL)
	}
	return store.CreateIngestConfig(ctx, ingestURL)
}

// saveAccessToken re-reads the vault and updates the credential it finds, or
// creates it. An unapplied ACL is returned as a warning, not an error.
func saveAccessToken(ctx context.Context, vault backend.CredentialVault, logger *zap.Logger, token string) ([]string, error) {
	current, err := vault.ReadAccessToken(ctx)
	if err != nil {
		return nil, err
	}
	if current != nil {
		return nil, vault.UpdateAccessToken(ctx, token)
	}

	err = vault.CreateAccessToken(ctx, token)
	if errors.Is(err, backend.ErrACLNotApplied) {
		logger.Warn("settings.token_acl_not_applied", zap.Error(err))
		return []string{WarnACLNotApplied}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create access token: %w", err)
	}
	return nil, nil
}
