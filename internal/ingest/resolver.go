package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/signalfx/sfx-forwarder-app/internal/backend"
	"github.com/signalfx/sfx-forwarder-app/pkg/eventbus"
	"github.com/signalfx/sfx-forwarder-app/pkg/model"
	"github.com/signalfx/sfx-forwarder-app/pkg/secrets"
)

// ErrNoAccessToken means no credential is stored, so nothing can be sent.
var ErrNoAccessToken = errors.New("no signalfx access token configured")

const resolverCacheKey = "forwarder"

// Resolver reads the ingest URL and access token through the backend and
// caches the pair until it expires or a settings save invalidates it.
type Resolver struct {
	backend backend.Backend
	cache   *secrets.Cache[model.ForwarderConfig]
	logger  *zap.Logger
}

// NewResolver creates a Resolver. ttl <= 0 caches until Invalidate.
func NewResolver(b backend.Backend, ttl time.Duration, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		backend: b,
		cache:   secrets.NewCache[model.ForwarderConfig](ttl),
		logger:  logger,
	}
}

// Resolve returns the forwarder config. A missing URL falls back to the
// default ingest endpoint. A missing token returns the config with
// ErrNoAccessToken, so callers can still use the URL.
func (r *Resolver) Resolve(ctx context.Context) (model.ForwarderConfig, error) {
	cfg, hit, err := r.cache.GetOrLoad(ctx, resolverCacheKey, r.load)
	if err != nil {
		return model.ForwarderConfig{}, err
	}
	if !hit {
		r.logger.Debug("ingest.config_resolved",
			zap.String("ingest_url", cfg.IngestURL),
			zap.Bool("has_token", cfg.AccessToken != ""))
	}
	if cfg.AccessToken == "" {
		return cfg, ErrNoAccessToken
	}
	return cfg, nil
}

func (r *Resolver) load(ctx context.Context) (model.ForwarderConfig, error) {
	cfg := model.ForwarderConfig{IngestURL: model.DefaultIngestURL}

	row, err := r.backend.ReadIngestConfig(ctx)
	if err != nil {
		return cfg, fmt.Errorf("resolve ingest url: %w", err)
	}
	if row != nil && row.IngestURL != "" {
		cfg.IngestURL = row.IngestURL
	}

	cred, err := r.backend.ReadAccessToken(ctx)
	if err != nil {
		return cfg, fmt.Errorf("resolve access token: %w", err)
	}
	if cred != nil {
		cfg.AccessToken = cred.ClearPassword
	}
	return cfg, nil
}

// Invalidate drops the cached config. A load already in flight is not
// cached, so it cannot bring back the pre-save values.
func (r *Resolver) Invalidate() {
	r.cache.Bust(resolverCacheKey)
	r.logger.Debug("ingest.config_invalidated")
}

// Subscribe invalidates the cache whenever settings are saved. The handler
// runs inline, so the cache is clear before the save's Publish returns.
func (r *Resolver) Subscribe(bus *eventbus.EventBus) {
	bus.SubscribeInline(model.EventSettingsSaved, func(_ context.Context, _ *model.Envelope) {
		r.Invalidate()
	})
}
