package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/signalfx/sfx-forwarder-app/internal/metrics"
)

// DefaultPruneSchedule runs daily at 03:00 (seconds field first).
const DefaultPruneSchedule = "0 0 3 * * *"

const pruneAuditSQL = `DELETE FROM sfx.settings_audit WHERE occurred_at < $1`

// DBExecutor defines minimal subset of pgxpool.Pool needed for execution.
type DBExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AuditPruner deletes settings audit rows older than the retention window on
// a cron schedule.
type AuditPruner struct {
	logger    *zap.Logger
	db        DBExecutor
	retention time.Duration
	cron      *cron.Cron
	now       func() time.Time
}

func NewAuditPruner(logger *zap.Logger, db DBExecutor, retention time.Duration) *AuditPruner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditPruner{
		logger:    logger,
		db:        db,
		retention: retention,
		cron:      cron.New(cron.WithSeconds()),
		now:       time.Now,
	}
}

// Start registers the prune job under schedule and starts the scheduler.
// Runs use ctx, so canceling it aborts an in-flight delete.
func (p *AuditPruner) Start(ctx context.Context, schedule string) error {
	if schedule == "" {
		schedule = DefaultPruneSchedule
	}
	id, err := p.cron.AddFunc(schedule, func() { p.RunOnce(ctx) })
	if err != nil {
		return fmt.Errorf("audit prune schedule %q: %w", schedule, err)
	}
	p.cron.Start()

	p.logger.Info("audit_pruner.started",
		zap.String("schedule", schedule),
		zap.Int("entry_id", int(id)),
		zap.Duration("retention", p.retention))
	return nil
}

// Stop halts the scheduler and waits for a running prune to finish.
func (p *AuditPruner) Stop() {
	<-p.cron.Stop().Done()
	p.logger.Info("audit_pruner.stopped")
}

// RunOnce deletes expired rows and returns how many went.
func (p *AuditPruner) RunOnce(ctx context.Context) int64 {
	start := time.Now()
	cutoff := p.now().UTC().Add(-p.retention)

	tag, err := p.db.Exec(ctx, pruneAuditSQL, cutoff)
	if err != nil {
		p.logger.Error("audit_pruner.prune_failed", zap.Error(err))
		return 0
	}

	n := tag.RowsAffected()
	metrics.AddAuditPruned(n)
	p.logger.Info("audit_pruner.success",
		zap.Int64("rows", n),
		zap.Time("cutoff", cutoff),
		zap.Duration("duration", time.Since(start)))
	return n
}
