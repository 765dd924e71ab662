package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockExec struct {
	mu    sync.Mutex
	calls int
	sql   string
	args  []any
	tag   string
	err   error
}

func (m *mockExec) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.sql = sql
	m.args = args
	if m.err != nil {
		return pgconn.CommandTag{}, m.err
	}
	return pgconn.NewCommandTag(m.tag), nil
}

func (m *mockExec) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestRunOnce_DeletesOlderThanRetention(t *testing.T) {
	db := &mockExec{tag: "DELETE 3"}
	p := NewAuditPruner(zap.NewNop(), db, 48*time.Hour)
	fixed := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	n := p.RunOnce(context.Background())

	assert.Equal(t, int64(3), n)
	assert.Contains(t, db.sql, "sfx.settings_audit")
	require.Len(t, db.args, 1)
	assert.Equal(t, fixed.Add(-48*time.Hour), db.args[0])
}

func TestRunOnce_ExecError(t *testing.T) {
	db := &mockExec{err: errors.New("connection reset")}
	p := NewAuditPruner(nil, db, time.Hour)

	assert.Equal(t, int64(0), p.RunOnce(context.Background()))
	assert.Equal(t, 1, db.Calls())
}

func TestStart_RunsOnSchedule(t *testing.T) {
	db := &mockExec{tag: "DELETE 0"}
	p := NewAuditPruner(zap.NewNop(), db, time.Hour)

	require.NoError(t, p.Start(context.Background(), "@every 1s"))
	defer p.Stop()

	require.Eventually(t, func() bool { return db.Calls() >= 1 }, 3*time.Second, 20*time.Millisecond)
}

func TestStart_InvalidSchedule(t *testing.T) {
	p := NewAuditPruner(zap.NewNop(), &mockExec{}, time.Hour)

	err := p.Start(context.Background(), "every tuesday")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "every tuesday")
}

func TestStart_DefaultSchedule(t *testing.T) {
	p := NewAuditPruner(zap.NewNop(), &mockExec{}, time.Hour)

	require.NoError(t, p.Start(context.Background(), ""))
	entries := p.cron.Entries()
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Next.IsZero())
	p.Stop()
}
