package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthChecker is anything /health should probe.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Pinger checks splunkd reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RegisterRoutes mounts the service endpoints. nc and st are optional.
func RegisterRoutes(app *fiber.App, splunkd Pinger, nc *nats.Conn, st HealthChecker,
	settingsHandler *SettingsHandler,
	forwardHandler *ForwardHandler,
) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Get("/health", func(c *fiber.Ctx) error {
		checks := map[string]string{"splunkd": "ok"}
		status := "ok"
		code := fiber.StatusOK
		degrade := func(name, reason string) {
			checks[name] = reason
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}

		healthCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := splunkd.Ping(healthCtx); err != nil {
			degrade("splunkd", err.Error())
		}

		if nc != nil {
			checks["nats"] = "ok"
			if !nc.IsConnected() {
				degrade("nats", "disconnected")
			} else if err := nc.FlushTimeout(1 * time.Second); err != nil {
				degrade("nats", err.Error())
			}
		}

		if st != nil {
			checks["store"] = "ok"
			if err := st.HealthCheck(healthCtx); err != nil {
				degrade("store", err.Error())
			}
		}

		if settingsHandler != nil && settingsHandler.manager != nil {
			checks["settings_submit"] = "idle"
			if settingsHandler.manager.Busy() {
				checks["settings_submit"] = "in_progress"
			}
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	})

	v1 := app.Group("/api/v1")
	v1.Get("/settings", settingsHandler.Get)
	v1.Post("/settings", settingsHandler.Submit)
	v1.Post("/settings/validate", settingsHandler.Validate)
	v1.Get("/settings/audit", settingsHandler.Audit)

	v1.Post("/forward/datapoints", forwardHandler.Datapoints)
	v1.Post("/forward/events", forwardHandler.Events)
}
