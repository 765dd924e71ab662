package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const defaultService = "sfx-config"

var (
	mu    sync.RWMutex
	log   *zap.Logger
	sugar *zap.SugaredLogger
)

// Options identify the process in every log line.
type Options struct {
	Service  string
	Env      string // "dev" logs colored console output, anything else JSON
	Level    string
	Instance string
}

// Init initializes the global logger.
func Init(opts Options) {
	var cfg zap.Config
	if opts.Env == "dev" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	if lvl, err := zapcore.ParseLevel(opts.Level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	if opts.Service == "" {
		opts.Service = defaultService
	}
	fields := map[string]any{"service": opts.Service}
	if opts.Instance != "" {
		fields["instance"] = opts.Instance
	}
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.InitialFields = fields

	l, err := cfg.Build(zap.AddCaller())
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}

	mu.Lock()
	log, sugar = l, l.Sugar()
	mu.Unlock()

	l.Info("logger initialized",
		zap.String("env", opts.Env),
		zap.String("level", cfg.Level.String()))
}

func current() *zap.Logger {
	mu.RLock()
	l := log
	mu.RUnlock()
	if l == nil {
		Init(Options{Service: defaultService, Env: "dev", Level: "info"})
		mu.RLock()
		l = log
		mu.RUnlock()
	}
	return l
}

// L returns the base structured logger.
func L() *zap.Logger {
	return current()
}

// S returns the sugared logger.
func S() *zap.SugaredLogger {
	current()
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// Named returns a child logger for one component (splunkd, ingest, store).
func Named(component string) *zap.Logger {
	return current().Named(component)
}

// Sync flushes any buffered logs (defer this in main()).
func Sync() {
	mu.RLock()
	l := log
	mu.RUnlock()
	if l != nil {
		_ = l.Sync()
	}
}
