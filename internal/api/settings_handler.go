package api

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/signalfx/sfx-forwarder-app/internal/settings"
	"github.com/signalfx/sfx-forwarder-app/pkg/model"
)

// AuditReader serves recorded settings outcomes.
type AuditReader interface {
	LastOutcome(ctx context.Context) (*model.Envelope, error)
	History(ctx context.Context, limit int) ([]model.Envelope, error)
}

// SettingsHandler exposes the settings form over HTTP. Every request works on
// a fresh form, loaded from the backend.
type SettingsHandler struct {
	logger        *zap.Logger
	manager       *settings.Manager
	audit         AuditReader
	submitTimeout time.Duration
}

// NewSettingsHandler creates a SettingsHandler. audit may be nil.
func NewSettingsHandler(logger *zap.Logger, manager *settings.Manager, audit AuditReader, submitTimeout time.Duration) *SettingsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsHandler{
		logger:        logger,
		manager:       manager,
		audit:         audit,
		submitTimeout: submitTimeout,
	}
}

// SettingsResponse wraps a form snapshot with a user-facing message.
type SettingsResponse struct {
	Form  settings.Snapshot `json:"form"`
	Error string            `json:"error,omitempty"`
}

// Get loads the current settings.
func (h *SettingsHandler) Get(c *fiber.Ctx) error {
	form, err := h.manager.Load(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(SettingsResponse{
			Form:  form.Snapshot(),
			Error: "could not load the current settings",
		})
	}
	return c.JSON(SettingsResponse{Form: form.Snapshot()})
}

// Submit loads the form, applies the request's fields and submits them.
func (h *SettingsHandler) Submit(c *fiber.Ctx) error {
	var req SettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": FormatValidationError(err)})
	}

	ctx := c.UserContext()
	if h.submitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.submitTimeout)
		defer cancel()
	}

	form, err := h.manager.Load(ctx)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(SettingsResponse{
			Form:  form.Snapshot(),
			Error: "could not load the current settings",
		})
	}

	form.FocusIngestURL()
	form.SetIngestURL(req.IngestURL)
	if req.AccessToken != settings.Placeholder {
		form.FocusAccessToken()
	}
	form.SetAccessToken(req.AccessToken)

	err = form.Submit(ctx)
	resp := SettingsResponse{Form: form.Snapshot()}
	switch {
	case err == nil:
		return c.JSON(resp)
	case errors.Is(err, settings.ErrValidation):
		resp.Error = "some fields are invalid"
		return c.Status(fiber.StatusUnprocessableEntity).JSON(resp)
	case errors.Is(err, settings.ErrSubmitInProgress):
		resp.Error = "another submit is in progress"
		return c.Status(fiber.StatusConflict).JSON(resp)
	case errors.Is(err, settings.ErrSubmitFailed):
		resp.Error = "settings could not be saved"
		return c.Status(fiber.StatusBadGateway).JSON(resp)
	default:
		h.logger.Error("settings.submit_unexpected", zap.Error(err))
		resp.Error = "settings could not be saved"
		return c.Status(fiber.StatusInternalServerError).JSON(resp)
	}
}

// Validate reports field validity only.
func (h *SettingsHandler) Validate(c *fiber.Ctx) error {
	var req SettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": FormatValidationError(err)})
	}

	// Same field checks the page runs when an input loses focus.
	form := h.manager.NewForm()
	form.FocusIngestURL()
	form.SetIngestURL(req.IngestURL)
	form.BlurIngestURL()
	form.FocusAccessToken()
	form.SetAccessToken(req.AccessToken)
	form.BlurAccessToken()

	fieldErrors := form.Snapshot().FieldErrors
	urlOK := !fieldErrors.IngestURL
	tokenOK := !fieldErrors.AccessToken
	return c.JSON(ValidateResponse{
		Valid:       urlOK && tokenOK,
		IngestURL:   urlOK,
		AccessToken: tokenOK,
	})
}

// Audit returns the last recorded outcome and recent history.
func (h *SettingsHandler) Audit(c *fiber.Ctx) error {
	if h.audit == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "audit store not configured"})
	}

	ctx := c.UserContext()
	last, err := h.audit.LastOutcome(ctx)
	if err != nil {
		h.logger.Error("settings.audit_read_failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "audit store unavailable"})
	}
	if last == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no settings submit recorded"})
	}

	history, err := h.audit.History(ctx, c.QueryInt("limit", 10))
	if err != nil {
		h.logger.Warn("settings.audit_history_failed", zap.Error(err))
	}
	return c.JSON(fiber.Map{"last": redact(last), "history": lo.Map(history, func(env model.Envelope, _ int) *model.Envelope {
		return redact(&env)
	})})
}

// redact drops the backend error detail, which may echo splunkd responses.
func redact(env *model.Envelope) *model.Envelope {
	out := *env
	if out.Error != "" {
		out.Error = "redacted"
	}
	return &out
}
