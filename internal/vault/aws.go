// Package vault keeps the SignalFx access token in AWS Secrets Manager for
// deployments that do not store it in splunkd.
package vault

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/signalfx/sfx-forwarder-app/internal/backend"
	"github.com/signalfx/sfx-forwarder-app/pkg/model"
	"github.com/signalfx/sfx-forwarder-app/pkg/secrets"
)

// AWSVault stores the credential as the JSON secret
// {env}/sfx/{realm}/{username} = {"realm", "username", "clear_password"}.
type AWSVault struct {
	provider secrets.Provider
	logger   *zap.Logger
	env      string
	realm    string
	username string
}

var _ backend.CredentialVault = (*AWSVault)(nil)

// NewAWSVault binds the fixed realm/username to provider.
func NewAWSVault(provider secrets.Provider, env string, logger *zap.Logger) *AWSVault {
	if logger == nil {
		logger = zap.NewNop()
	}
	if env == "" {
		env = "dev"
	}
	return &AWSVault{
		provider: provider,
		logger:   logger,
		env:      env,
		realm:    model.TokenRealm,
		username: model.TokenUsername,
	}
}

// SecretName is the Secrets Manager name of the credential.
func (v *AWSVault) SecretName() string {
	return fmt.Sprintf("%s/sfx/%s/%s", v.env, v.realm, v.username)
}

func (v *AWSVault) ReadAccessToken(ctx context.Context) (*model.AccessCredential, error) {
	name := v.SecretName()
	values, err := v.provider.GetSecret(ctx, name)
	if errors.Is(err, secrets.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		v.logger.Warn("vault.read_failed", zap.String("secret", name), zap.Error(err))
		return nil, fmt.Errorf("read access token: %w", err)
	}

	cred := model.AccessCredential{
		Realm:         values["realm"],
		Username:      values["username"],
		ClearPassword: values["clear_password"],
	}
	if !cred.Matches(v.realm, v.username) || cred.ClearPassword == "" {
		v.logger.Warn("vault.secret_mismatch", zap.String("secret", name))
		return nil, nil
	}
	return &cred, nil
}

func (v *AWSVault) CreateAccessToken(ctx context.Context, token string) error {
	name := v.SecretName()
	if err := v.provider.CreateSecret(ctx, name, v.payload(token)); err != nil {
		v.logger.Warn("vault.create_failed", zap.String("secret", name), zap.Error(err))
		return fmt.Errorf("create access token: %w", err)
	}
	v.logger.Info("vault.access_token_created", zap.String("secret", name))
	return nil
}

func (v *AWSVault) UpdateAccessToken(ctx context.Context, token string) error {
	name := v.SecretName()
	if err := v.provider.PutSecret(ctx, name, v.payload(token)); err != nil {
		v.logger.Warn("vault.update_failed", zap.String("secret", name), zap.Error(err))
		return fmt.Errorf("update access token: %w", err)
	}
	v.logger.Info("vault.access_token_updated", zap.String("secret", name))
	return nil
}

func (v *AWSVault) payload(token string) map[string]string {
	return map[string]string{
		"realm":          v.realm,
		"username":       v.username,
		"clear_password": token,
	}
}
