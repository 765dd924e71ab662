// Package settings is the ingest settings form: it loads the ingest URL and
// access token from the backend, validates edits, and persists them URL first.
package settings

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/signalfx/sfx-forwarder-app/internal/backend"
	"github.com/signalfx/sfx-forwarder-app/internal/metrics"
	"github.com/signalfx/sfx-forwarder-app/pkg/eventbus"
	"github.com/signalfx/sfx-forwarder-app/pkg/model"
	"github.com/signalfx/sfx-forwarder-app/pkg/utils"
)

// Manager hands out forms bound to one backend. All of its forms share a
// submit lock, so two fetch-then-decide sequences never interleave.
type Manager struct {
	backend backend.Backend
	bus     *eventbus.EventBus
	logger  *zap.Logger
	submit  chan struct{}
}

// NewManager creates a Manager. bus may be nil.
func NewManager(b backend.Backend, bus *eventbus.EventBus, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		backend: b,
		bus:     bus,
		logger:  logger,
		submit:  make(chan struct{}, 1),
	}
}

// NewForm returns a form in the Loading state.
func (m *Manager) NewForm() *Form {
	return &Form{mgr: m, state: StateLoading}
}

// Load is a convenience for NewForm followed by Load.
func (m *Manager) Load(ctx context.Context) (*Form, error) {
	f := m.NewForm()
	return f, f.Load(ctx)
}

// Busy reports whether some form currently holds the submit lock.
func (m *Manager) Busy() bool {
	return len(m.submit) > 0
}

func (m *Manager) lock(ctx context.Context) error {
	select {
	case m.submit <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrSubmitInProgress, ctx.Err())
	}
}

func (m *Manager) unlock() {
	<-m.submit
}

// submitResult is what a successful persist reports back to the form.
type submitResult struct {
	config       *model.IngestConfig
	tokenChanged bool
	warnings     []string
}

// persist writes the URL, then the token unless it is the placeholder. The
// chain stops at the first failure; nothing already written is undone.
func (m *Manager) persist(ctx context.Context, ingestURL, token string) (*submitResult, error) {
	if err := m.lock(ctx); err != nil {
		return nil, err
	}
	defer m.unlock()

	log := m.logger.With(zap.String("ingest_host", utils.HostOf(ingestURL)))

	cfg, err := saveIngestURL(ctx, m.backend, ingestURL)
	if err != nil {
		log.Warn("settings.ingest_url_save_failed", zap.Error(err))
		m.publishFailure(ctx, model.EventSettingsSubmitFailed, "ingest_url", ingestURL, err)
		return nil, fmt.Errorf("%w: ingest url: %w", ErrSubmitFailed, err)
	}

	res := &submitResult{config: cfg}
	if token != Placeholder {
		warnings, err := saveAccessToken(ctx, m.backend, log, token)
		if err != nil {
			log.Warn("settings.access_token_save_failed", zap.Error(err))
			m.publishFailure(ctx, model.EventSettingsSubmitFailed, "access_token", ingestURL, err)
			return nil, fmt.Errorf("%w: access token: %w", ErrSubmitFailed, err)
		}
		res.tokenChanged = true
		res.warnings = warnings
	}

	log.Info("settings.saved",
		zap.String("config_key", cfg.Key),
		zap.Bool("token_changed", res.tokenChanged),
		zap.Int("warnings", len(res.warnings)))

	metrics.IncSettingsOutcome(model.EventSettingsSaved)
	env := model.NewEnvelope(model.EventSettingsSaved)
	env.IngestURL = ingestURL
	env.ConfigKey = cfg.Key
	env.TokenChanged = res.tokenChanged
	env.Warnings = res.warnings
	m.publish(ctx, env)

	return res, nil
}

func (m *Manager) publishFailure(ctx context.Context, eventType, stage, ingestURL string, err error) {
	metrics.IncSettingsOutcome(eventType)
	env := model.NewEnvelope(eventType)
	env.Stage = stage
	env.IngestURL = ingestURL
	env.Error = err.Error()
	m.publish(ctx, env)
}

func (m *Manager) publish(ctx context.Context, env *model.Envelope) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(ctx, env)
}
