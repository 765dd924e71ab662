package settings

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/signalfx/sfx-forwarder-app/pkg/model"
	"github.com/signalfx/sfx-forwarder-app/pkg/utils"
)

// State is the form's lifecycle position.
type State string

const (
	StateLoading     State = "loading"
	StateReady       State = "ready"
	StateSubmitting  State = "submitting"
	StateFetchFailed State = "fetch_failed"
)

// Banners are the page-level messages.
type Banners struct {
	FetchError    bool `json:"fetch_error"`
	SubmitError   bool `json:"submit_error"`
	SubmitSuccess bool `json:"submit_success"`
}

// FieldErrors marks fields that failed validation.
type FieldErrors struct {
	IngestURL   bool `json:"ingest_url"`
	AccessToken bool `json:"access_token"`
}

// Snapshot is a point-in-time copy of the form. AccessToken is the
// placeholder, empty, or a masked rendering of what was typed.
type Snapshot struct {
	State       State       `json:"state"`
	Enabled     bool        `json:"enabled"`
	IngestURL   string      `json:"ingest_url"`
	AccessToken string      `json:"access_token"`
	ConfigKey   string      `json:"config_key,omitempty"`
	Banners     Banners     `json:"banners"`
	FieldErrors FieldErrors `json:"field_errors"`
	Nudge       bool        `json:"nudge"`
	Warnings    []string    `json:"warnings,omitempty"`
}

// Form holds one operator's view of the settings.
type Form struct {
	mgr *Manager

	mu          sync.Mutex
	state       State
	ingestURL   string
	accessToken string
	configKey   string
	banners     Banners
	fieldErrors FieldErrors
	nudge       bool
	warnings    []string
}

// Load fetches the URL and then, if that worked, the token. Both must
// finish before the form is Ready; any error leaves it in FetchFailed.
func (f *Form) Load(ctx context.Context) error {
	f.mu.Lock()
	if f.state == StateFetchFailed {
		f.mu.Unlock()
		return ErrFetchFailed
	}
	if f.state == StateSubmitting {
		f.mu.Unlock()
		return ErrSubmitInProgress
	}
	f.state = StateLoading
	f.mu.Unlock()

	if err := f.LoadIngestURL(ctx); err != nil {
		return err
	}
	if err := f.LoadAccessToken(ctx); err != nil {
		return err
	}

	f.mu.Lock()
	f.state = StateReady
	f.mu.Unlock()
	return nil
}

// LoadIngestURL reads the collection row into the URL field; no row leaves
// the field empty.
func (f *Form) LoadIngestURL(ctx context.Context) error {
	cfg, err := f.mgr.backend.ReadIngestConfig(ctx)
	if err != nil {
		return f.fetchFailed(ctx, "ingest_url", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.ingestURL = ""
	f.configKey = ""
	if cfg != nil {
		f.ingestURL = cfg.IngestURL
		f.configKey = cfg.Key
	}
	return nil
}

// LoadAccessToken shows the placeholder when a credential exists.
func (f *Form) LoadAccessToken(ctx context.Context) error {
	cred, err := f.mgr.backend.ReadAccessToken(ctx)
	if err != nil {
		return f.fetchFailed(ctx, "access_token", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.accessToken = ""
	if cred != nil && cred.ClearPassword != "" {
		f.accessToken = Placeholder
	}
	return nil
}

func (f *Form) fetchFailed(ctx context.Context, stage string, err error) error {
	f.mgr.logger.Warn("settings.fetch_failed", zap.String("stage", stage), zap.Error(err))

	f.mu.Lock()
	f.state = StateFetchFailed
	f.banners = Banners{FetchError: true}
	f.mu.Unlock()

	f.mgr.publishFailure(ctx, model.EventSettingsFetchFailed, stage, "", err)
	return fmt.Errorf("%w: %s: %w", ErrFetchFailed, stage, err)
}

// SetIngestURL replaces the URL field.
func (f *Form) SetIngestURL(v string) {
	f.mu.Lock()
	f.ingestURL = v
	f.mu.Unlock()
}

// SetAccessToken replaces the token field.
func (f *Form) SetAccessToken(v string) {
	f.mu.Lock()
	f.accessToken = v
	f.mu.Unlock()
}

// AccessToken returns the raw token field.
func (f *Form) AccessToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accessToken
}

// IngestURL returns the URL field.
func (f *Form) IngestURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ingestURL
}

// State returns the current state.
func (f *Form) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Form) ValidateAccessToken() bool {
	return ValidAccessToken(f.AccessToken())
}

func (f *Form) ValidateIngestURL() bool {
	return ValidIngestURL(f.IngestURL())
}

// FocusAccessToken clears the placeholder so a new token can be typed.
func (f *Form) FocusAccessToken() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.accessToken == Placeholder {
		f.accessToken = ""
	}
	f.fieldErrors.AccessToken = false
	f.hideSubmitBanners()
}

func (f *Form) FocusIngestURL() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fieldErrors.IngestURL = false
	f.hideSubmitBanners()
}

func (f *Form) BlurAccessToken() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !ValidAccessToken(f.accessToken) {
		f.fieldErrors.AccessToken = true
	}
}

func (f *Form) BlurIngestURL() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !ValidIngestURL(f.ingestURL) {
		f.fieldErrors.IngestURL = true
	}
}

// Clear empties both fields and hides submit banners and field errors.
// Nothing is sent to the backend.
func (f *Form) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateReady {
		return ErrNotReady
	}
	f.ingestURL = ""
	f.accessToken = ""
	f.fieldErrors = FieldErrors{}
	f.nudge = false
	f.warnings = nil
	f.hideSubmitBanners()
	return nil
}

func (f *Form) hideSubmitBanners() {
	f.banners.SubmitError = false
	f.banners.SubmitSuccess = false
}

// Submit validates both fields and, if they pass, persists the URL and then
// the token. Invalid fields set the nudge flag and make no backend call.
func (f *Form) Submit(ctx context.Context) error {
	f.mu.Lock()
	switch f.state {
	case StateSubmitting:
		f.mu.Unlock()
		return ErrSubmitInProgress
	case StateLoading, StateFetchFailed:
		f.mu.Unlock()
		return ErrNotReady
	}

	f.hideSubmitBanners()
	f.nudge = false
	f.warnings = nil

	urlOK := ValidIngestURL(f.ingestURL)
	tokenOK := ValidAccessToken(f.accessToken)
	f.fieldErrors.IngestURL = !urlOK
	f.fieldErrors.AccessToken = !tokenOK
	if !urlOK || !tokenOK {
		f.nudge = true
		f.mu.Unlock()
		return ErrValidation
	}

	ingestURL, token := f.ingestURL, f.accessToken
	f.state = StateSubmitting
	f.mu.Unlock()

	res, err := f.mgr.persist(ctx, ingestURL, token)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = StateReady
	if err != nil {
		f.banners.SubmitError = true
		return err
	}

	f.banners.SubmitSuccess = true
	f.configKey = res.config.Key
	f.warnings = res.warnings
	if res.tokenChanged && f.accessToken == token {
		f.accessToken = Placeholder
	}
	return nil
}

// Snapshot copies the form. The token is never returned in the clear.
func (f *Form) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	token := f.accessToken
	if token != "" && token != Placeholder {
		token = utils.MaskSecret(token)
	}
	return Snapshot{
		State:       f.state,
		Enabled:     f.state == StateReady,
		IngestURL:   f.ingestURL,
		AccessToken: token,
		ConfigKey:   f.configKey,
		Banners:     f.banners,
		FieldErrors: f.fieldErrors,
		Nudge:       f.nudge,
		Warnings:    append([]string(nil), f.warnings...),
	}
}
