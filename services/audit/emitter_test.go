package audit

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"hrplane/internal/config"
	"hrplane/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestEmitter(t *testing.T, buffer int) *Emitter {
	t.Helper()

	db := testutil.NewTestDB(t, &Record{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Licensing.AuditBuffer = buffer
	return NewEmitter(EmitterParams{DB: db, Node: node, Config: cfg})
}

func TestEmitterPersistsRecords(t *testing.T) {
	e := newTestEmitter(t, 16)
	e.Start()

	e.Record("tenant-1", "payroll", EventValidationFailure, Context{Path: "/api/payroll/runs", Method: "POST", IP: "10.0.0.1"})
	e.Record("tenant-1", "leave", EventRateLimited, Context{})
	e.Record("tenant-2", "payroll", EventValidationSuccess, Context{})

	e.Stop()

	var count int64
	require.NoError(t, e.db.Model(&Record{}).Count(&count).Error)
	require.Equal(t, int64(3), count)

	var rec Record
	require.NoError(t, e.db.Where("module_key = ?", "leave").First(&rec).Error)
	require.Equal(t, EventRateLimited, rec.EventType)

	stats := e.Stats()
	require.Equal(t, int64(3), stats.Total)
	require.Equal(t, int64(3), stats.Succeeded)
	require.Zero(t, stats.Failed)
	require.Zero(t, stats.Dropped)
	require.Equal(t, float64(1), stats.SuccessRatio)
}

func TestEmitterStopDrainsBuffer(t *testing.T) {
	e := newTestEmitter(t, 64)
	e.Start()

	for i := 0; i < 50; i++ {
		e.Record("tenant-1", "payroll", EventValidationFailure, Context{})
	}
	e.Stop()

	var count int64
	require.NoError(t, e.db.Model(&Record{}).Count(&count).Error)
	require.Equal(t, int64(50), count)
}

func TestEmitterDropsWhenBufferFull(t *testing.T) {
	// writer never started, so the buffer fills and the overflow is dropped
	e := newTestEmitter(t, 2)

	for i := 0; i < 5; i++ {
		e.Record("tenant-1", "payroll", EventValidationFailure, Context{})
	}

	stats := e.Stats()
	require.Equal(t, int64(5), stats.Total)
	require.Equal(t, int64(3), stats.Dropped)
}

func TestEmitterDropsAfterStop(t *testing.T) {
	e := newTestEmitter(t, 16)
	e.Start()
	e.Stop()

	e.Record("tenant-1", "payroll", EventValidationFailure, Context{})
	require.Equal(t, int64(1), e.Stats().Dropped)
}

func TestEmitterRecordNeverBlocks(t *testing.T) {
	e := newTestEmitter(t, 1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			e.Record("tenant-1", "payroll", EventValidationFailure, Context{})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Record blocked with a full buffer")
	}
}
