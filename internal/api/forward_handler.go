package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/signalfx/sfx-forwarder-app/internal/ingest"
	"github.com/signalfx/sfx-forwarder-app/pkg/model"
)

// Forwarder sends rows to SignalFx ingest.
type Forwarder interface {
	Forward(ctx context.Context, kind ingest.Kind, rows []model.Row, opts ingest.Options) ([]model.Row, error)
}

// ForwardHandler exposes the datapoint and event forwarders.
type ForwardHandler struct {
	logger    *zap.Logger
	forwarder Forwarder
}

func NewForwardHandler(logger *zap.Logger, forwarder Forwarder) *ForwardHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ForwardHandler{logger: logger, forwarder: forwarder}
}

func (h *ForwardHandler) Datapoints(c *fiber.Ctx) error {
	return h.forward(c, ingest.KindDatapoints)
}

func (h *ForwardHandler) Events(c *fiber.Ctx) error {
	return h.forward(c, ingest.KindEvents)
}

func (h *ForwardHandler) forward(c *fiber.Ctx, kind ingest.Kind) error {
	var req ForwardRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": FormatValidationError(err)})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": FormatValidationError(err)})
	}

	rows := make([]model.Row, 0, len(req.Rows))
	for i, r := range req.Rows {
		row, err := toRow(r)
		if err != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": fmt.Sprintf("rows[%d]: %v", i, err)})
		}
		rows = append(rows, row)
	}
	out, err := h.forwarder.Forward(c.UserContext(), kind, rows, ingest.Options{DryRun: req.DryRun, Debug: req.Debug})
	if err != nil {
		h.logger.Warn("forward.failed", zap.String("kind", string(kind)), zap.Error(err))
		switch {
		case errors.Is(err, ingest.ErrNoAccessToken):
			return c.Status(fiber.StatusPreconditionFailed).JSON(fiber.Map{"error": "no SignalFx access token configured"})
		case errors.Is(err, ingest.ErrBuild):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
		default:
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "forwarding failed"})
		}
	}

	return c.JSON(fiber.Map{"rows": out})
}
