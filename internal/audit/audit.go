package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

type AuditLog struct {
	Timestamp  time.Time
	EntityType string
	EntityID   string
	OldState   string
	NewState   string
	Actor      string
	Endpoint   string
	Request    string
	Message    string
}

type AuditPoolConfig struct {
	BatchSize   int
	Timeout     time.Duration
	ChannelSize int
}

type AuditLogProcessor interface {
	Process(ctx context.Context, batch []AuditLog) error
}

// Auditor accepts records without blocking the caller.
type Auditor interface {
	Log(record AuditLog)
}

type DBProcessor struct {
	db *sql.DB
}

func NewDBProcessor(db *sql.DB) *DBProcessor {
	return &DBProcessor{db: db}
}

func (p *DBProcessor) Process(ctx context.Context, batch []AuditLog) error {
	if len(batch) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO audit_logs (timestamp, entity_type, entity_id, old_state, new_state, actor, endpoint, request, message) VALUES `)

	const cols = 9
	params := make([]any, 0, len(batch)*cols)
	for i, rec := range batch {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(")
		for c := 1; c <= cols; c++ {
			if c > 1 {
				sb.WriteString(",")
			}
			fmt.Fprintf(&sb, "$%d", i*cols+c)
		}
		sb.WriteString(")")
		params = append(params, rec.Timestamp, rec.EntityType, rec.EntityID, rec.OldState, rec.NewState,
			rec.Actor, rec.Endpoint, rec.Request, rec.Message)
	}
	if _, err := p.db.ExecContext(ctx, sb.String(), params...); err != nil {
		return fmt.Errorf("insert audit logs: %w", err)
	}
	return nil
}

// LogProcessor writes records to the structured log. A non-empty Filter keeps
// only records whose message contains it, case-insensitively.
type LogProcessor struct {
	Log    *slog.Logger
	Filter string
}

func (p *LogProcessor) Process(_ context.Context, batch []AuditLog) error {
	for _, rec := range batch {
		if p.Filter != "" &&
			!strings.Contains(strings.ToLower(rec.Message), strings.ToLower(p.Filter)) {
			continue
		}
		p.Log.Info("audit",
			"entity_type", rec.EntityType,
			"entity_id", rec.EntityID,
			"old_state", rec.OldState,
			"new_state", rec.NewState,
			"actor", rec.Actor,
			"endpoint", rec.Endpoint,
			"message", rec.Message,
		)
	}
	return nil
}

type AuditWorkerPool struct {
	inputCh    chan AuditLog
	processors []AuditLogProcessor
	batchSize  int
	timeout    time.Duration
	log        *slog.Logger

	wg sync.WaitGroup
}

func NewAuditWorkerPool(cfg AuditPoolConfig, log *slog.Logger, processors ...AuditLogProcessor) *AuditWorkerPool {
	return &AuditWorkerPool{
		inputCh:    make(chan AuditLog, cfg.ChannelSize),
		processors: processors,
		batchSize:  cfg.BatchSize,
		timeout:    cfg.Timeout,
		log:        log,
	}
}

func (p *AuditWorkerPool) Start(ctx context.Context, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.worker(ctx)
		}()
	}
}

func (p *AuditWorkerPool) worker(ctx context.Context) {
	var batch []AuditLog
	timer := time.NewTimer(p.timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			batch = p.drain(batch)
			if len(batch) > 0 {
				p.processBatch(batch)
			}
			return
		case rec := <-p.inputCh:
			batch = append(batch, rec)
			if len(batch) >= p.batchSize {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				p.processBatch(batch)
				batch = nil
				timer.Reset(p.timeout)
			}
		case <-timer.C:
			if len(batch) > 0 {
				p.processBatch(batch)
				batch = nil
			}
			timer.Reset(p.timeout)
		}
	}
}

// drain takes whatever is still buffered so shutdown loses nothing.
func (p *AuditWorkerPool) drain(batch []AuditLog) []AuditLog {
	for {
		select {
		case rec := <-p.inputCh:
			batch = append(batch, rec)
		default:
			return batch
		}
	}
}

func (p *AuditWorkerPool) processBatch(batch []AuditLog) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, proc := range p.processors {
		if err := proc.Process(ctx, batch); err != nil {
			p.log.Error("audit_batch_failed", "error", err, "size", len(batch))
		}
	}
}

func (p *AuditWorkerPool) Log(record AuditLog) {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	select {
	case p.inputCh <- record:
	default:
		p.log.Warn("audit_channel_full", "entity_type", record.EntityType, "entity_id", record.EntityID)
	}
}

func (p *AuditWorkerPool) Shutdown(cancelFunc context.CancelFunc) {
	cancelFunc()
	p.wg.Wait()
}

// Nop discards records.
type Nop struct{}

func (Nop) Log(AuditLog) {}
