// Package audit writes audit log rows off the request path. Entries are
// buffered in memory and flushed by a small worker pool; a full buffer drops
// the entry with a warning rather than blocking the handler.
package audit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mentorlink/mentorlink-api/internal/models"
)

// Sink persists audit entries. Satisfied by the account repository.
type Sink interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Config tunes the recorder's worker pool.
type Config struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Recorder is an asynchronous audit log writer.
type Recorder struct {
	sink       Sink
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger

	entries chan *models.AuditLog
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewRecorder builds a recorder writing to the sink.
func NewRecorder(sink Sink, cfg Config) *Recorder {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 16
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	r := &Recorder{
		sink:       sink,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger,
		entries:    make(chan *models.AuditLog, cfg.BufferSize),
	}

	r.ctx, r.cancel = context.WithCancel(context.Background())
	for i := 0; i < cfg.Workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	r.started = true
	return r
}

// Record queues an entry for persistence. Never blocks; when the buffer is
// full the entry is dropped and logged.
func (r *Recorder) Record(entry *models.AuditLog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return
	}

	select {
	case r.entries <- entry:
	default:
		r.logger.Warn("audit buffer full, dropping entry", zap.String("action", entry.Action))
	}
}

// Close drains queued entries and stops the workers.
func (r *Recorder) Close() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.started = false
	close(r.entries)
	r.mu.Unlock()

	r.wg.Wait()
	r.cancel()
}

func (r *Recorder) worker() {
	defer r.wg.Done()
	for entry := range r.entries {
		r.persist(entry)
	}
}

func (r *Recorder) persist(entry *models.AuditLog) {
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(r.retryDelay)
			select {
			case <-r.ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
		if err := r.sink.CreateAuditLog(r.ctx, entry); err != nil {
			r.logger.Warn("audit write failed",
				zap.String("action", entry.Action),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			continue
		}
		return
	}
	r.logger.Error("audit entry exceeded retries", zap.String("action", entry.Action))
}
