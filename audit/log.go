package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goVault/store"
)

func eventsKey(userID string) string {
	return "audit:" + userID
}

// Log is the persisted, per-user security event log.
type Log struct {
	kv       store.Store
	sink     Sink
	logger   *slog.Logger
	now      func() time.Time
	failures atomic.Uint64
}

// Option configures a Log.
type Option func(*Log)

// WithSink forwards every recorded event to sink in addition to storage.
func WithSink(sink Sink) Option {
	return func(l *Log) {
		if sink != nil {
			l.sink = sink
		}
	}
}

// WithLogger sets the logger that reports persistence failures.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithClock sets the time source for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLog returns a Log persisting events in kv.
func NewLog(kv store.Store, opts ...Option) *Log {
	l := &Log{
		kv:     kv,
		sink:   NoOpSink{},
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record appends an event for userID stamped with the current time. It never
// returns an error: failures are logged and counted. Events without a user id
// go to the sink only.
func (l *Log) Record(ctx context.Context, userID string, eventType EventType, details map[string]string) {
	event := Event{
		Timestamp: l.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		Details:   maps.Clone(details),
	}

	if userID != "" {
		if err := l.persist(ctx, event); err != nil {
			l.failures.Add(1)
			l.logger.WarnContext(ctx, "goVault: audit record failed",
				slog.String("event_type", string(eventType)),
				slog.String("user_id", userID),
				slog.Any("error", err),
			)
		}
	}
	l.sink.Emit(ctx, event)
}

func (l *Log) persist(ctx context.Context, event Event) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return l.kv.Append(ctx, eventsKey(event.UserID), raw)
}

// Events returns up to limit events of userID, most recent first. limit <= 0
// returns all of them.
func (l *Log) Events(ctx context.Context, userID string, limit int) ([]Event, error) {
	raws, err := l.kv.List(ctx, eventsKey(userID), limit)
	if err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}

	out := make([]Event, 0, len(raws))
	for _, raw := range raws {
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("audit: decode: %w", err)
		}
		out = append(out, ev)
	}
	return out, nil
}

// Purge deletes every stored event of userID. Only account deletion calls it.
func (l *Log) Purge(ctx context.Context, userID string) error {
	if err := l.kv.Delete(ctx, eventsKey(userID)); err != nil {
		return fmt.Errorf("audit: purge: %w", err)
	}
	return nil
}

// Failures reports how many events could not be persisted.
func (l *Log) Failures() uint64 {
	return l.failures.Load()
}
