package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"hrplane/internal/config"
)

// Emitter persists audit records off the request path. Record never blocks and
// never returns an error: when the buffer is full or the sink is down the
// event is counted as lost and logged, nothing more.
type Emitter struct {
	db   *gorm.DB
	node *snowflake.Node

	records chan *Record
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once

	total     atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

type EmitterParams struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Config *config.Config
}

func NewEmitter(p EmitterParams) *Emitter {
	buffer := p.Config.Licensing.AuditBuffer
	if buffer <= 0 {
		buffer = 1024
	}

	return &Emitter{
		db:      p.DB,
		node:    p.Node,
		records: make(chan *Record, buffer),
		done:    make(chan struct{}),
	}
}

// Start launches the background writer.
func (e *Emitter) Start() {
	e.wg.Add(1)
	go e.run()
}

// Stop drains the buffer and waits for the writer to finish.
func (e *Emitter) Stop() {
	e.once.Do(func() {
		close(e.done)
	})
	e.wg.Wait()
}

func (e *Emitter) run() {
	defer e.wg.Done()
	for {
		select {
		case rec := <-e.records:
			e.write(rec)
		case <-e.done:
			for {
				select {
				case rec := <-e.records:
					e.write(rec)
				default:
					return
				}
			}
		}
	}
}

func (e *Emitter) write(rec *Record) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err := e.db.WithContext(ctx).Create(rec).Error
	cancel()

	if err != nil {
		e.failed.Add(1)
		zap.L().Warn("audit write failed",
			zap.String("tenant_id", rec.TenantID),
			zap.String("module_key", rec.ModuleKey),
			zap.Error(err))
		return
	}
	e.succeeded.Add(1)
}

// Record enqueues an audit event. Fire-and-forget: a full buffer drops the
// event rather than delaying the caller.
func (e *Emitter) Record(tenantID, moduleKey string, eventType EventType, c Context) {
	e.total.Add(1)

	rec := &Record{
		ID:        e.node.Generate().String(),
		CreatedAt: time.Now(),
		TenantID:  tenantID,
		ModuleKey: moduleKey,
		EventType: eventType,
		Context:   datatypes.NewJSONType(c),
	}

	select {
	case <-e.done:
		e.dropped.Add(1)
		return
	default:
	}

	select {
	case e.records <- rec:
	default:
		e.dropped.Add(1)
		zap.L().Debug("audit buffer full, event dropped",
			zap.String("tenant_id", tenantID),
			zap.String("module_key", moduleKey))
	}
}

// ProcessingStats reports emitter throughput for health surfaces.
type ProcessingStats struct {
	Total        int64   `json:"total"`
	Succeeded    int64   `json:"succeeded"`
	Failed       int64   `json:"failed"`
	Dropped      int64   `json:"dropped"`
	SuccessRatio float64 `json:"success_ratio"`
}

func (e *Emitter) Stats() ProcessingStats {
	s := ProcessingStats{
		Total:     e.total.Load(),
		Succeeded: e.succeeded.Load(),
		Failed:    e.failed.Load(),
		Dropped:   e.dropped.Load(),
	}
	if s.Total > 0 {
		s.SuccessRatio = float64(s.Succeeded) / float64(s.Total)
	}
	return s
}

var Module = fx.Module("audit.module",
	fx.Provide(NewEmitter),
	fx.Invoke(registerLifecycle),
)

func registerLifecycle(lc fx.Lifecycle, e *Emitter) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			e.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			e.Stop()
			return nil
		},
	})
}
