// Package store keeps the outcome of settings submits: the latest one and a
// short history in Redis, and an immutable audit trail in Postgres.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/signalfx/sfx-forwarder-app/pkg/eventbus"
	"github.com/signalfx/sfx-forwarder-app/pkg/model"
)

// Redis keys.
const (
	KeyLastOutcome = "sfx:settings:last"
	KeyHistory     = "sfx:settings:history"
)

// HistoryLen is how many outcomes the Redis history list keeps.
const HistoryLen = 50

// Store defines the contract for recording and reading settings outcomes.
type Store interface {
	RecordOutcome(ctx context.Context, env *model.Envelope) error
	LastOutcome(ctx context.Context) (*model.Envelope, error)
	History(ctx context.Context, limit int) ([]model.Envelope, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

type HybridStore struct {
	redis  *redis.Client
	PG     *pgxpool.Pool
	logger *zap.Logger
}

type PGPoolConfig struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// RedisConfig locates the Redis instance.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewHybrid creates a Redis-first store; Postgres is optional (empty pgURL).
func NewHybrid(rc RedisConfig, pgURL string, pgPoolConfig PGPoolConfig, logger *zap.Logger) (*HybridStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	var pgPool *pgxpool.Pool
	if pgURL != "" {
		cfg, err := pgxpool.ParseConfig(pgURL)
		if err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("invalid pg config: %w", err)
		}
		if pgPoolConfig.MaxConns > 0 {
			cfg.MaxConns = pgPoolConfig.MaxConns
		}
		if pgPoolConfig.MinConns > 0 {
			cfg.MinConns = pgPoolConfig.MinConns
		}
		if pgPoolConfig.MaxConnLifetime > 0 {
			cfg.MaxConnLifetime = pgPoolConfig.MaxConnLifetime
		}
		if pgPoolConfig.MaxConnIdleTime > 0 {
			cfg.MaxConnIdleTime = pgPoolConfig.MaxConnIdleTime
		}
		if pgPoolConfig.HealthCheckPeriod > 0 {
			cfg.HealthCheckPeriod = pgPoolConfig.HealthCheckPeriod
		}
		pgPool, err = pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
	}

	return &HybridStore{redis: rdb, PG: pgPool, logger: logger}, nil
}

// Attach records every bus envelope.
func (s *HybridStore) Attach(bus *eventbus.EventBus) {
	bus.Subscribe(eventbus.AllEvents, func(ctx context.Context, env *model.Envelope) {
		_ = s.RecordOutcome(ctx, env)
	})
}

// RecordOutcome pushes env onto the history list and appends an audit row.
// Only submit outcomes replace the latest outcome.
func (s *HybridStore) RecordOutcome(ctx context.Context, env *model.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	pipe := s.redis.TxPipeline()
	if env.IsSubmitOutcome() {
		pipe.Set(ctx, KeyLastOutcome, data, 0)
	}
	pipe.LPush(ctx, KeyHistory, data)
	pipe.LTrim(ctx, KeyHistory, 0, HistoryLen-1)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Error("store.redis.record_failed", zap.Error(err))
		return fmt.Errorf("record outcome: %w", err)
	}

	return s.insertAudit(ctx, env)
}

// insertAudit appends to sfx.settings_audit; a no-op without Postgres.
func (s *HybridStore) insertAudit(ctx context.Context, env *model.Envelope) error {
	if s.PG == nil {
		return nil
	}
	_, err := s.PG.Exec(ctx, `
		INSERT INTO sfx.settings_audit (
			id, event_type, occurred_at, ingest_url, config_key,
			token_changed, stage, warnings, error
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`, env.ID, env.EventType, env.OccurredAt, env.IngestURL, env.ConfigKey,
		env.TokenChanged, env.Stage, env.Warnings, env.Error)
	if err != nil {
		s.logger.Error("store.pg.insert_audit_failed", zap.Error(err))
	}
	return err
}

// LastOutcome returns the most recent outcome, or nil when none was recorded.
func (s *HybridStore) LastOutcome(ctx context.Context) (*model.Envelope, error) {
	data, err := s.redis.Get(ctx, KeyLastOutcome).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	var env model.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// History returns up to limit outcomes, newest first.
func (s *HybridStore) History(ctx context.Context, limit int) ([]model.Envelope, error) {
	if limit <= 0 || limit > HistoryLen {
		limit = HistoryLen
	}
	items, err := s.redis.LRange(ctx, KeyHistory, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	out := make([]model.Envelope, 0, len(items))
	for _, item := range items {
		var env model.Envelope
		if err := json.Unmarshal([]byte(item), &env); err != nil {
			s.logger.Warn("store.redis.bad_history_item", zap.Error(err))
			continue
		}
		out = append(out, env)
	}
	return out, nil
}

func (s *HybridStore) HealthCheck(ctx context.Context) error {
	if s.redis == nil {
		return fmt.Errorf("redis not initialized")
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	if s.PG != nil {
		if err := s.PG.Ping(ctx); err != nil {
			return fmt.Errorf("postgres ping failed: %w", err)
		}
	}
	return nil
}

func (s *HybridStore) Close() error {
	if s.PG != nil {
		s.PG.Close()
	}
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}
