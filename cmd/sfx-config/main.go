package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/signalfx/sfx-forwarder-app/internal/api"
	"github.com/signalfx/sfx-forwarder-app/internal/backend"
	"github.com/signalfx/sfx-forwarder-app/internal/ingest"
	"github.com/signalfx/sfx-forwarder-app/internal/jobs"
	"github.com/signalfx/sfx-forwarder-app/internal/metrics"
	"github.com/signalfx/sfx-forwarder-app/internal/publisher"
	"github.com/signalfx/sfx-forwarder-app/internal/rate"
	"github.com/signalfx/sfx-forwarder-app/internal/settings"
	"github.com/signalfx/sfx-forwarder-app/internal/splunkd"
	"github.com/signalfx/sfx-forwarder-app/internal/store"
	"github.com/signalfx/sfx-forwarder-app/internal/vault"
	"github.com/signalfx/sfx-forwarder-app/pkg/config"
	"github.com/signalfx/sfx-forwarder-app/pkg/eventbus"
	"github.com/signalfx/sfx-forwarder-app/pkg/logger"
	"github.com/signalfx/sfx-forwarder-app/pkg/secrets"
	"github.com/signalfx/sfx-forwarder-app/pkg/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}

	logger.Init(logger.Options{
		Service:  cfg.ServiceName,
		Env:      cfg.Env,
		Level:    cfg.LogLevel,
		Instance: cfg.InstanceID,
	})
	defer logger.Sync()
	logg := logger.S()
	logg.Infof("starting [%s]...", cfg.ServiceName)
	logg.Infow("splunkd endpoint", "url", cfg.SplunkdURL, "vault", cfg.VaultBackend)

	// --- splunkd client ---
	splunkdRate := rate.NewManager(rate.Config{
		RequestsPerSecond: cfg.SplunkdRPS,
		Burst:             cfg.SplunkdBurst,
	})
	splunkdClient := splunkd.NewClient(logger.Named("splunkd"), splunkd.Config{
		BaseURL:            cfg.SplunkdURL,
		SessionKey:         cfg.SplunkdSessionKey,
		Token:              cfg.SplunkdToken,
		Username:           cfg.SplunkdUsername,
		Password:           cfg.SplunkdPassword,
		InsecureSkipVerify: cfg.SplunkdInsecure,
		Timeout:            cfg.SplunkdTimeout,
		RetryMax:           cfg.SplunkdRetryMax,
	}, splunkdRate)
	splunkdClient.Executor().SetObserver(metrics.ObserveHTTP)

	// --- Backend: KV store collection plus a credential vault ---
	var be backend.Backend = splunkd.NewBackend(splunkdClient, logger.Named("splunkd"))
	if cfg.VaultBackend == config.VaultAWS {
		awsProvider, err := secrets.NewAWSProvider(ctx, cfg.AWSRegion)
		if err != nil {
			logg.Fatalw("failed to create AWS Secrets Manager provider", "error", err)
		}
		awsVault := vault.NewAWSVault(awsProvider, cfg.Env, logger.Named("vault"))
		be = backend.Compose(be, awsVault)
		logg.Infow("access token stored in AWS Secrets Manager", "secret", awsVault.SecretName())
	}

	// --- Settings ---
	bus := eventbus.New()
	manager := settings.NewManager(be, bus, logger.Named("settings"))

	// --- Ingest forwarder ---
	resolver := ingest.NewResolver(be, cfg.ConfigCacheTTL, logger.Named("ingest"))
	resolver.Subscribe(bus)

	ingestRate := rate.NewManager(rate.Config{
		RequestsPerSecond: cfg.IngestRPS,
		Burst:             cfg.IngestBurst,
	})
	sender := ingest.NewSender(logger.Named("ingest"), ingestRate, &http.Client{Timeout: cfg.IngestTimeout}, cfg.IngestRetryMax)
	sender.Executor().SetObserver(metrics.ObserveHTTP)
	forwarder := ingest.NewForwarder(resolver, sender, logger.Named("ingest"))

	// --- Store (Redis + Postgres hybrid), optional ---
	var (
		st     *store.HybridStore
		audit  api.AuditReader
		hc     api.HealthChecker
		pruner *jobs.AuditPruner
	)
	if cfg.RedisAddr != "" {
		logg.Info("connection to DSN: ", utils.MaskDSN(cfg.DatabaseURL))
		var err error
		st, err = store.NewHybrid(store.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
			DB:       cfg.RedisDB,
		}, cfg.DatabaseURL, store.PGPoolConfig{
			MaxConns:          int32(cfg.PGMaxConns),
			MinConns:          int32(cfg.PGMinConns),
			MaxConnLifetime:   cfg.PGMaxConnLifetime,
			MaxConnIdleTime:   cfg.PGMaxConnIdleTime,
			HealthCheckPeriod: cfg.PGHealthCheckPeriod,
		}, logger.Named("store"))
		if err != nil {
			logg.Fatalw("failed to init store", "error", err)
		}
		st.Attach(bus)
		audit, hc = st, st

		if st.PG != nil && cfg.AuditRetention > 0 {
			pruner = jobs.NewAuditPruner(logger.Named("jobs"), st.PG, cfg.AuditRetention)
			if err := pruner.Start(ctx, cfg.AuditPruneSchedule); err != nil {
				logg.Fatalw("failed to schedule audit pruning", "error", err)
			}
		}
	} else {
		logg.Warn("REDIS_ADDR not configured; settings audit disabled")
	}

	// --- NATS publisher, optional ---
	var nc *nats.Conn
	if cfg.NATSURL != "" {
		var err error
		nc, err = nats.Connect(cfg.NATSURL, nats.Name(cfg.ServiceName))
		if err != nil {
			logg.Fatalw("failed to connect to NATS", "error", err)
		}
		natsPub, err := publisher.NewNATS(nc, cfg.NATSSubject, cfg.ServiceName, cfg.InstanceID, logger.Named("publisher"))
		if err != nil {
			logg.Fatalw("failed to init NATS publisher", "error", err)
		}
		natsPub.Attach(bus)
		if _, err := natsPub.SubscribeInvalidations(resolver.Invalidate); err != nil {
			logg.Warnw("failed to subscribe to settings invalidations", "error", err)
		}
	}

	// --- AMQP publisher, optional ---
	var amqpPub *publisher.AMQPPublisher
	if cfg.AMQPURL != "" {
		var err error
		amqpPub, err = publisher.NewAMQP(cfg.AMQPURL, cfg.AMQPExchange, logger.Named("publisher"))
		if err != nil {
			logg.Fatalw("failed to init AMQP publisher", "error", err)
		}
		amqpPub.Attach(bus)
	}

	// --- Fiber HTTP Server ---
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		BodyLimit:    cfg.HTTPBodyLimit,
	})

	if len(cfg.CORSAllowOrigins) > 0 {
		app.Use(cors.New(cors.Config{
			AllowOrigins: strings.Join(cfg.CORSAllowOrigins, ","),
			AllowMethods: "GET,POST",
		}))
	}

	settingsHandler := api.NewSettingsHandler(logger.Named("api"), manager, audit, cfg.SubmitTimeout)
	forwardHandler := api.NewForwardHandler(logger.Named("api"), forwarder)
	api.RegisterRoutes(app, splunkdClient, nc, hc, settingsHandler, forwardHandler)

	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.Port)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	logg.Infow(fmt.Sprintf("[%s] running", cfg.ServiceName),
		"env", cfg.Env,
		"instance", cfg.InstanceID,
		"nats", cfg.NATSURL != "",
		"amqp", cfg.AMQPURL != "",
		"store", st != nil)

	<-ctx.Done()
	logg.Infof("shutting down [%s]...", cfg.ServiceName)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Warnw("fiber.shutdown_failed", "error", err)
	}
	// Let queued settings events reach the sinks before closing them.
	bus.Wait()
	if pruner != nil {
		pruner.Stop()
	}
	if nc != nil {
		if err := nc.Drain(); err != nil {
			logg.Warnw("nats.drain_failed", "error", err)
		}
	}
	if amqpPub != nil {
		if err := amqpPub.Close(); err != nil {
			logg.Warnw("amqp.close_failed", "error", err)
		}
	}
	if st != nil {
		if err := st.Close(); err != nil {
			logg.Warnw("store.close_failed", "error", err)
		}
	}
}
