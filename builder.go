package goVault

import (
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/goVault/audit"
	"github.com/MrEthical07/goVault/internal/cpu"
	"github.com/MrEthical07/goVault/password"
	"github.com/MrEthical07/goVault/session"
	"github.com/MrEthical07/goVault/store"
	"github.com/MrEthical07/goVault/totp"
)

// Builder assembles an Engine. It is single-use.
type Builder struct {
	config    Config
	store     store.Store
	auditSink audit.Sink
	logger    *slog.Logger
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithStore sets the persistence collaborator. Required.
func (b *Builder) WithStore(s store.Store) *Builder {
	b.store = s
	return b
}

// WithAuditSink forwards every security event to sink through a buffered
// dispatcher, in addition to the persisted per-user log.
func (b *Builder) WithAuditSink(sink audit.Sink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger used for failures the engine swallows.
// Defaults to slog.Default().
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides time.Now. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires the engine. A session janitor
// goroutine starts when Session.CleanupInterval > 0; Close stops it.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.store == nil {
		return nil, errors.New("store required")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(cfg.passwordConfig())
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	engine := &Engine{
		config:   cfg,
		kv:       b.store,
		hasher:   hasher,
		totp:     totp.NewManager(cfg.totpConfig()),
		sessions: session.NewStore(b.store, cfg.Session.IdleTimeout, now),
		metrics:  NewMetrics(cfg.Metrics),
		pool:     cpu.NewPool(cfg.KeyDerivation.Concurrency),
		logger:   logger,
		now:      now,
		stop:     make(chan struct{}),
	}

	logOpts := []audit.Option{audit.WithLogger(logger), audit.WithClock(now)}
	if b.auditSink != nil {
		engine.dispatcher = audit.NewDispatcher(audit.DispatcherConfig{
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
			Logger:     logger,
		}, b.auditSink)
		logOpts = append(logOpts, audit.WithSink(engine.dispatcher))
	}
	engine.audit = audit.NewLog(b.store, logOpts...)

	if cfg.Session.CleanupInterval > 0 {
		engine.startJanitor(cfg.Session.CleanupInterval)
	}

	b.built = true

	return engine, nil
}
