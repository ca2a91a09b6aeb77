package otel

import (
	"context"
	"sync"
	"testing"

	goVault "github.com/MrEthical07/goVault"
	"github.com/MrEthical07/goVault/store"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	counters map[goVault.MetricID]uint64
	kdf      []uint64
	dropped  uint64
	failures uint64
}

func (f *fakeSource) MetricsSnapshot() goVault.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := goVault.MetricsSnapshot{
		Counters:   make(map[goVault.MetricID]uint64, len(f.counters)),
		Histograms: map[goVault.MetricID][]uint64{},
	}
	for k, v := range f.counters {
		out.Counters[k] = v
	}
	if f.kdf != nil {
		out.Histograms[goVault.MetricKDFLatency] = append([]uint64(nil), f.kdf...)
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64  { return f.dropped }
func (f *fakeSource) AuditFailures() uint64 { return f.failures }

func newReader() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] += dp.Value
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] += dp.Value
				}
			}
		}
	}
	return out
}

func TestExporterCollectsSnapshot(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{
		counters: map[goVault.MetricID]uint64{goVault.MetricLoginSuccess: 3},
		kdf:      []uint64{1, 1, 1, 1, 1, 1, 1, 1},
		dropped:  1,
		failures: 2,
	}

	exp, err := NewExporterFromSource(provider.Meter("govault-test"), src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	got := collect(t, reader)
	checks := map[string]int64{
		"govault_login_success_total":                  3,
		"govault_kdf_duration_seconds_bucket_le_0_025": 1,
		"govault_kdf_duration_seconds_bucket_le_inf":   8,
		"govault_kdf_duration_seconds_count":           8,
		"govault_audit_dropped_total":                  1,
		"govault_audit_persist_failures_total":         2,
	}
	for name, want := range checks {
		if got[name] != want {
			t.Fatalf("%s = %d, want %d", name, got[name], want)
		}
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	_, provider := newReader()
	if _, err := NewExporterFromSource(provider.Meter("govault-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterReadsEngine(t *testing.T) {
	cfg := goVault.DefaultConfig()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	engine, err := goVault.New().WithConfig(cfg).WithStore(store.NewMemory()).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := engine.Register(context.Background(), "alice", "Str0ng!Passw0rd"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	reader, provider := newReader()
	exp, err := NewExporter(provider.Meter("govault-test"), engine)
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}
	defer exp.Close()

	if got := collect(t, reader)["govault_register_success_total"]; got != 1 {
		t.Fatalf("expected one registration, got %d", got)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{counters: map[goVault.MetricID]uint64{goVault.MetricLoginSuccess: 1}}

	exp, err := NewExporterFromSource(provider.Meter("govault-test"), src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.counters[goVault.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
