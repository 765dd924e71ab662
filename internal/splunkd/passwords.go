package splunkd

import (
	"context"
	"fmt"
	"net/url"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/signalfx/sfx-forwarder-app/internal/backend"
	"github.com/signalfx/sfx-forwarder-app/pkg/model"
)

// ReadAccessToken scans the app's storage/passwords for the fixed
// realm/username pair. The REST listing has no server-side filter on the
// pair, so every entry is fetched.
// GET storage/passwords
func (b *Backend) ReadAccessToken(ctx context.Context) (*model.AccessCredential, error) {
	q := url.Values{}
	q.Set("count", "0")

	var feed PasswordsFeed
	if err := b.client.get(ctx, "storage/passwords", q, &feed); err != nil {
		b.logger.Warn("splunkd.read_access_token_failed", zap.Error(err))
		return nil, fmt.Errorf("read access token: %w", err)
	}

	entry, ok := lo.Find(feed.Entry, func(e PasswordEntry) bool {
		return e.Content.Realm == b.realm && e.Content.Username == b.username
	})
	if !ok || entry.Content.ClearPassword == "" {
		return nil, nil
	}
	return &model.AccessCredential{
		Realm:         entry.Content.Realm,
		Username:      entry.Content.Username,
		ClearPassword: entry.Content.ClearPassword,
	}, nil
}

// CreateAccessToken stores the credential and then opens its ACL to the whole
// system (read for everyone, write for admin). An ACL failure leaves the
// credential in place and is reported as backend.ErrACLNotApplied.
// POST storage/passwords, POST storage/passwords/_acl
func (b *Backend) CreateAccessToken(ctx context.Context, token string) error {
	form := url.Values{}
	form.Set("name", b.username)
	form.Set("realm", b.realm)
	form.Set("password", token)

	if err := b.client.postForm(ctx, "storage/passwords", form, nil); err != nil {
		b.logger.Warn("splunkd.create_access_token_failed", zap.Error(err))
		return fmt.Errorf("create access token: %w", err)
	}

	acl := url.Values{}
	acl.Set("sharing", "system")
	acl.Set("perms.read", "*")
	acl.Set("perms.write", "admin")
	if err := b.client.postForm(ctx, "storage/passwords/_acl", acl, nil); err != nil {
		b.logger.Warn("splunkd.access_token_acl_failed", zap.Error(err))
		return fmt.Errorf("%w: %v", backend.ErrACLNotApplied, err)
	}

	b.logger.Info("splunkd.access_token_created")
	return nil
}

// UpdateAccessToken replaces the stored password.
// POST storage/passwords/{realm}:{username}:
func (b *Backend) UpdateAccessToken(ctx context.Context, token string) error {
	form := url.Values{}
	form.Set("password", token)

	if err := b.client.postForm(ctx, credentialPath(b.realm, b.username), form, nil); err != nil {
		b.logger.Warn("splunkd.update_access_token_failed", zap.Error(err))
		return fmt.Errorf("update access token: %w", err)
	}

	b.logger.Info("splunkd.access_token_updated")
	return nil
}

// credentialPath encodes the compound realm:username: entity name.
func credentialPath(realm, username string) string {
	return "storage/passwords/" + url.PathEscape(realm) + ":" + url.PathEscape(username) + ":"
}
