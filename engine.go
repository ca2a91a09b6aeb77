package goVault

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goVault/audit"
	"github.com/MrEthical07/goVault/cryptox"
	"github.com/MrEthical07/goVault/internal/cpu"
	"github.com/MrEthical07/goVault/internal/keylock"
	"github.com/MrEthical07/goVault/password"
	"github.com/MrEthical07/goVault/session"
	"github.com/MrEthical07/goVault/store"
	"github.com/MrEthical07/goVault/totp"
)

// Session is the authenticated device binding returned by Login.
type Session = session.Session

// Engine is the vault's authentication and cryptographic core. All methods
// are safe for concurrent use; per-user state changes are serialized.
type Engine struct {
	config     Config
	kv         store.Store
	hasher     *password.Hasher
	totp       *totp.Manager
	sessions   *session.Store
	audit      *audit.Log
	dispatcher *audit.Dispatcher
	metrics    *Metrics
	pool       *cpu.Pool
	locks      keylock.Locker
	logger     *slog.Logger
	now        func() time.Time

	dummyOnce sync.Once
	dummyHash string

	closed    atomic.Bool
	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Close stops the session janitor and flushes the audit sink. The store is
// owned by the caller and left open.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		close(e.stop)
		e.wg.Wait()
		e.dispatcher.Close()
	})
}

// AuditDropped reports events the sink dispatcher dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.dispatcher.Dropped()
}

// AuditFailures reports events that could not be persisted plus events
// whose delivery panicked inside the audit sink.
func (e *Engine) AuditFailures() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Failures() + e.dispatcher.Panicked()
}

// MetricsSnapshot copies the current counters and histograms.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return NewMetrics(MetricsConfig{}).Snapshot()
	}
	return e.metrics.Snapshot()
}

// SecurityEvents returns up to limit events of userID, most recent first.
func (e *Engine) SecurityEvents(ctx context.Context, userID string, limit int) ([]audit.Event, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.audit.Events(ctx, userID, limit)
}

func (e *Engine) ready() error {
	if e == nil || e.closed.Load() {
		return ErrEngineNotReady
	}
	return nil
}

func (e *Engine) metricInc(id MetricID) {
	e.metrics.Inc(id)
}

func (e *Engine) record(ctx context.Context, userID string, eventType audit.EventType, details map[string]string) {
	e.audit.Record(ctx, userID, eventType, details)
}

// CPU-bound argon2id work runs on the bounded pool. A caller whose ctx ends
// gets ctx.Err(); the work itself finishes in the background.

func (e *Engine) hashPassword(ctx context.Context, pw string) (string, error) {
	start := time.Now()
	defer func() { e.metrics.Observe(MetricKDFLatency, time.Since(start)) }()

	return cpu.Run(ctx, e.pool, func() (string, error) {
		return e.hasher.HashPassword(pw)
	})
}

func (e *Engine) verifyPassword(ctx context.Context, pw, encoded string) (bool, error) {
	start := time.Now()
	defer func() { e.metrics.Observe(MetricKDFLatency, time.Since(start)) }()

	return cpu.Run(ctx, e.pool, func() (bool, error) {
		return e.hasher.VerifyPassword(pw, encoded)
	})
}

func (e *Engine) deriveVaultKey(ctx context.Context, pw string, salt []byte) ([]byte, error) {
	start := time.Now()
	defer func() { e.metrics.Observe(MetricKDFLatency, time.Since(start)) }()

	return cpu.Run(ctx, e.pool, func() ([]byte, error) {
		return cryptox.DeriveKey([]byte(pw), salt, e.config.kdfParams())
	})
}

func (e *Engine) startJanitor(interval time.Duration) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				e.sweepSessions()
			case <-e.stop:
				return
			}
		}
	}()
}

func (e *Engine) sweepSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := e.SweepSessions(ctx); err != nil {
		e.logger.Warn("goVault: session sweep failed", slog.Any("error", err))
	}
}

// SweepSessions removes every session past its idle timeout and reports how
// many were removed. The janitor calls it on Session.CleanupInterval.
func (e *Engine) SweepSessions(ctx context.Context) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	n, err := e.sessions.Sweep(ctx)
	for i := 0; i < n; i++ {
		e.metricInc(MetricSessionExpired)
	}
	if n > 0 {
		e.logger.DebugContext(ctx, "goVault: swept expired sessions", slog.Int("count", n))
	}
	return n, err
}
