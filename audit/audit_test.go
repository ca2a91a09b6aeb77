package audit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goVault/store"
)

type failingStore struct {
	*store.Memory
}

func (failingStore) Append(context.Context, string, []byte) error {
	return errors.New("disk full")
}

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{gate: make(chan struct{})}
}

func (s *gateSink) Emit(context.Context, Event) {
	<-s.gate
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRecordAndEventsNewestFirst(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	log := NewLog(store.NewMemory(), WithClock(func() time.Time {
		now = now.Add(time.Second)
		return now
	}))

	log.Record(ctx, "u1", EventAccountCreated, nil)
	log.Record(ctx, "u1", EventLoginFailed, map[string]string{"reason": "password"})
	log.Record(ctx, "u1", EventLoginSuccess, nil)
	log.Record(ctx, "u2", EventAccountCreated, nil)

	events, err := log.Events(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	want := []EventType{EventLoginSuccess, EventLoginFailed, EventAccountCreated}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(events))
	}
	for i, ev := range events {
		if ev.EventType != want[i] {
			t.Fatalf("event %d is %s, want %s", i, ev.EventType, want[i])
		}
		if ev.UserID != "u1" {
			t.Fatalf("event %d has user %q", i, ev.UserID)
		}
	}
	if !events[0].Timestamp.After(events[2].Timestamp) {
		t.Fatal("expected newest event to carry the latest timestamp")
	}
	if events[1].Details["reason"] != "password" {
		t.Fatalf("details not persisted: %+v", events[1].Details)
	}

	limited, err := log.Events(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if len(limited) != 2 || limited[0].EventType != EventLoginSuccess {
		t.Fatalf("unexpected limited events %+v", limited)
	}
}

func TestRecordCopiesDetails(t *testing.T) {
	ctx := context.Background()
	sink := NewChannelSink(1)
	log := NewLog(store.NewMemory(), WithSink(sink))

	details := map[string]string{"device": "laptop"}
	log.Record(ctx, "u1", EventLoginSuccess, details)
	details["device"] = "mutated"

	ev := <-sink.Events()
	if ev.Details["device"] != "laptop" {
		t.Fatalf("sink saw caller mutation: %+v", ev.Details)
	}
}

func TestRecordNeverFailsCaller(t *testing.T) {
	ctx := context.Background()
	var logs syncBuffer
	sink := NewChannelSink(1)
	log := NewLog(failingStore{store.NewMemory()},
		WithSink(sink),
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
	)

	log.Record(ctx, "u1", EventAccountLocked, nil)

	if log.Failures() != 1 {
		t.Fatalf("expected 1 failure, got %d", log.Failures())
	}
	if !strings.Contains(logs.String(), "audit record failed") {
		t.Fatalf("expected failure to be logged, got %q", logs.String())
	}
	select {
	case ev := <-sink.Events():
		if ev.EventType != EventAccountLocked {
			t.Fatalf("unexpected event %s", ev.EventType)
		}
	default:
		t.Fatal("sink must still receive the event when storage fails")
	}
}

func TestRecordWithoutUserSkipsStorage(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	sink := NewChannelSink(1)
	log := NewLog(kv, WithSink(sink))

	log.Record(ctx, "", EventLoginFailed, map[string]string{"reason": "unknown_user"})

	events, err := kv.List(ctx, eventsKey(""), 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("anonymous event persisted: %d", len(events))
	}
	if ev := <-sink.Events(); ev.EventType != EventLoginFailed {
		t.Fatalf("unexpected event %s", ev.EventType)
	}
}

func TestPurge(t *testing.T) {
	ctx := context.Background()
	log := NewLog(store.NewMemory())
	log.Record(ctx, "u1", EventAccountCreated, nil)

	if err := log.Purge(ctx, "u1"); err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	events, err := log.Events(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events after purge, got %d", len(events))
	}
}

func TestDispatcherDropIfFullDoesNotBlock(t *testing.T) {
	sink := newGateSink()
	d := NewDispatcher(DispatcherConfig{BufferSize: 1, DropIfFull: true}, sink)
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	d.Emit(context.Background(), Event{EventType: EventLoginSuccess})
	d.Emit(context.Background(), Event{EventType: EventLoginSuccess})

	start := time.Now()
	d.Emit(context.Background(), Event{EventType: EventLoginSuccess})
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("expected non-blocking emit when DropIfFull is true")
	}
	if d.Dropped() == 0 {
		t.Fatal("expected dropped counter to increment when queue is full")
	}
}

func TestDispatcherBlocksUntilSpace(t *testing.T) {
	sink := newGateSink()
	d := NewDispatcher(DispatcherConfig{BufferSize: 1}, sink)
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	d.Emit(context.Background(), Event{EventType: EventLogout})
	d.Emit(context.Background(), Event{EventType: EventLogout})

	done := make(chan struct{})
	go func() {
		d.Emit(context.Background(), Event{EventType: EventLogout})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("expected emit to block while buffer is full")
	case <-time.After(150 * time.Millisecond):
	}

	sink.gate <- struct{}{}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected blocked emit to proceed after space is available")
	}
}

func TestDispatcherCloseFlushes(t *testing.T) {
	sink := NewChannelSink(8)
	d := NewDispatcher(DispatcherConfig{BufferSize: 8}, sink)
	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{EventType: EventLoginSuccess})
	}
	d.Close()
	d.Close()

	if got := len(sink.Events()); got != 5 {
		t.Fatalf("expected 5 flushed events, got %d", got)
	}

	d.Emit(context.Background(), Event{EventType: EventLoginSuccess})
	if got := len(sink.Events()); got != 5 {
		t.Fatalf("emit after close must be ignored, got %d", got)
	}
}

type panicSink struct{}

func (panicSink) Emit(_ context.Context, ev Event) {
	if ev.EventType == EventAccountLocked {
		panic("sink exploded")
	}
}

func TestDispatcherIsolatesSinkPanics(t *testing.T) {
	var logs syncBuffer
	d := NewDispatcher(DispatcherConfig{
		BufferSize: 4,
		Logger:     slog.New(slog.NewTextHandler(&logs, nil)),
	}, panicSink{})

	d.Emit(context.Background(), Event{EventType: EventLoginSuccess})
	d.Emit(context.Background(), Event{EventType: EventAccountLocked})
	d.Emit(context.Background(), Event{EventType: EventLogout})
	d.Close()

	if got := d.Delivered(); got != 2 {
		t.Fatalf("expected 2 delivered events, got %d", got)
	}
	if got := d.Panicked(); got != 1 {
		t.Fatalf("expected 1 panicked event, got %d", got)
	}
	if !strings.Contains(logs.String(), "audit sink panicked") {
		t.Fatalf("expected panic to be logged, got %q", logs.String())
	}
}

func TestDispatcherCancelledContextDrops(t *testing.T) {
	sink := newGateSink()
	d := NewDispatcher(DispatcherConfig{BufferSize: 1}, sink)
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	d.Emit(context.Background(), Event{EventType: EventLogout})
	d.Emit(context.Background(), Event{EventType: EventLogout})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Emit(ctx, Event{EventType: EventLogout})
	if got := d.Dropped(); got != 1 {
		t.Fatalf("expected cancelled emit to be dropped, got %d", got)
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf syncBuffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), Event{
		Timestamp: time.Now().UTC(),
		EventType: EventTwoFactorEnabled,
		UserID:    "u1",
	})

	out := buf.String()
	if !strings.Contains(out, `"event_type":"2fa_enabled"`) || !strings.Contains(out, `"user_id":"u1"`) {
		t.Fatalf("unexpected JSON line %q", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Fatal("expected newline-terminated JSON line")
	}

	var nilSink *JSONWriterSink
	nilSink.Emit(context.Background(), Event{})
}

func TestSlogSink(t *testing.T) {
	var buf syncBuffer
	sink := NewSlogSink(slog.New(slog.NewJSONHandler(&buf, nil)), slog.LevelInfo)
	sink.Emit(context.Background(), Event{
		EventType: EventSessionRevoked,
		UserID:    "u9",
		Details:   map[string]string{"session_id": "abc"},
	})

	out := buf.String()
	for _, part := range []string{`"event_type":"session_revoked"`, `"user_id":"u9"`, `"session_id":"abc"`} {
		if !strings.Contains(out, part) {
			t.Fatalf("log line %q missing %s", out, part)
		}
	}
}
