package config

import (
	"time"

	"github.com/joho/godotenv"
)

// Vault backends.
const (
	VaultSplunk = "splunk"
	VaultAWS    = "aws"
)

// Config holds the runtime configuration of the settings service.
type Config struct {
	ServiceName string // e.g. "sfx-config"
	Env         string // e.g. "dev", "uat", "prod"
	InstanceID  string
	LogLevel    string
	Port        int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	HTTPBodyLimit    int
	// Origins allowed to call the API from a browser (the Splunk Web host).
	CORSAllowOrigins []string

	// splunkd
	SplunkdURL        string // e.g. https://localhost:8089
	SplunkdSessionKey string
	SplunkdToken      string
	SplunkdUsername   string
	SplunkdPassword   string
	SplunkdInsecure   bool
	SplunkdTimeout    time.Duration
	SplunkdRetryMax   int
	SplunkdRPS        float64
	SplunkdBurst      int

	// Where the access token lives: "splunk" (storage/passwords) or "aws".
	VaultBackend string
	AWSRegion    string

	SubmitTimeout time.Duration

	// SignalFx ingest
	IngestTimeout  time.Duration
	IngestRetryMax int
	IngestRPS      float64
	IngestBurst    int
	ConfigCacheTTL time.Duration

	// Optional sinks; empty disables.
	RedisAddr    string
	RedisDB      int
	RedisPass    string
	DatabaseURL  string
	NATSURL      string
	NATSSubject  string
	AMQPURL      string
	AMQPExchange string

	PGMaxConns          int
	PGMinConns          int
	PGMaxConnLifetime   time.Duration
	PGMaxConnIdleTime   time.Duration
	PGHealthCheckPeriod time.Duration

	// Settings audit retention in Postgres; zero disables pruning.
	AuditRetention     time.Duration
	AuditPruneSchedule string // cron expression, seconds first
}

// Load loads configuration from environment variables and .env file if present.
func Load() *Config {
	// load .env silently (no error if missing)
	_ = godotenv.Load()

	cfg := &Config{
		ServiceName: GetEnv("SERVICE_NAME", "sfx-config"),
		Env:         GetEnv("ENV", "dev"),
		InstanceID:  GetEnv("INSTANCE_ID", ""),
		LogLevel:    GetEnv("LOG_LEVEL", "info"),
		Port:        GetEnvInt("PORT", 9020),

		HTTPReadTimeout:  GetEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second),
		HTTPWriteTimeout: GetEnvDuration("HTTP_WRITE_TIMEOUT", 70*time.Second),
		HTTPIdleTimeout:  GetEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		HTTPBodyLimit:    GetEnvInt("HTTP_BODY_LIMIT", 4*1024*1024),
		CORSAllowOrigins: GetEnvList("CORS_ALLOW_ORIGINS", nil),

		SplunkdURL:        GetEnv("SPLUNKD_URL", "https://localhost:8089"),
		SplunkdSessionKey: GetEnv("SPLUNKD_SESSION_KEY", ""),
		SplunkdToken:      GetEnv("SPLUNKD_TOKEN", ""),
		SplunkdUsername:   GetEnv("SPLUNKD_USERNAME", ""),
		SplunkdPassword:   GetEnv("SPLUNKD_PASSWORD", ""),
		SplunkdInsecure:   GetEnvBool("SPLUNKD_INSECURE_SKIP_VERIFY", false),
		SplunkdTimeout:    GetEnvDuration("SPLUNKD_TIMEOUT", 30*time.Second),
		SplunkdRetryMax:   GetEnvInt("SPLUNKD_RETRY_MAX", 0),
		SplunkdRPS:        GetEnvFloat("SPLUNKD_RPS", 20),
		SplunkdBurst:      GetEnvInt("SPLUNKD_BURST", 10),

		VaultBackend: GetEnv("VAULT_BACKEND", VaultSplunk),
		AWSRegion:    GetEnv("AWS_REGION", "us-east-1"),

		SubmitTimeout: GetEnvDuration("SETTINGS_SUBMIT_TIMEOUT", 60*time.Second),

		IngestTimeout:  GetEnvDuration("INGEST_TIMEOUT", 30*time.Second),
		IngestRetryMax: GetEnvInt("INGEST_RETRY_MAX", 2),
		IngestRPS:      GetEnvFloat("INGEST_RPS", 10),
		IngestBurst:    GetEnvInt("INGEST_BURST", 5),
		ConfigCacheTTL: GetEnvDuration("CONFIG_CACHE_TTL", 5*time.Minute),

		RedisAddr:    GetEnv("REDIS_ADDR", ""),
		RedisDB:      GetEnvInt("REDIS_DB", 0),
		RedisPass:    GetEnv("REDIS_PASS", ""),
		DatabaseURL:  GetEnv("DATABASE_URL", ""),
		NATSURL:      GetEnv("NATS_URL", ""),
		NATSSubject:  GetEnv("NATS_SUBJECT", "evt.sfx.settings"),
		AMQPURL:      GetEnv("AMQP_URL", ""),
		AMQPExchange: GetEnv("AMQP_EXCHANGE", "sfx.settings"),

		PGMaxConns:          GetEnvInt("PG_MAX_CONNS", 5),
		PGMinConns:          GetEnvInt("PG_MIN_CONNS", 1),
		PGMaxConnLifetime:   GetEnvDuration("PG_MAX_CONN_LIFETIME", 30*time.Minute),
		PGMaxConnIdleTime:   GetEnvDuration("PG_MAX_CONN_IDLE_TIME", 5*time.Minute),
		PGHealthCheckPeriod: GetEnvDuration("PG_HEALTH_CHECK_PERIOD", 1*time.Minute),

		AuditRetention:     GetEnvDuration("AUDIT_RETENTION", 90*24*time.Hour),
		AuditPruneSchedule: GetEnv("AUDIT_PRUNE_SCHEDULE", "0 0 3 * * *"),
	}

	return cfg
}
