package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goVault "github.com/MrEthical07/goVault"
	"github.com/MrEthical07/goVault/cryptox"
	"github.com/MrEthical07/goVault/metrics/export/prometheus"
	"github.com/spf13/cobra"
)

const benchPassword = "B3nch!Mark#Vault"

type benchOptions struct {
	logins      int
	concurrency int
	ops         int
	metrics     bool
}

func newBenchCmd(a *app) *cobra.Command {
	var opts benchOptions
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure login and session throughput against the configured store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.logins <= 0 || opts.concurrency <= 0 || opts.ops <= 0 {
				return errors.New("logins, concurrency and ops must be > 0")
			}
			return runBench(cmd.Context(), a.engine, opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVar(&opts.logins, "logins", 32, "sessions to create through full logins")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 16, "concurrent workers")
	cmd.Flags().IntVar(&opts.ops, "ops", 10000, "session authentications to run")
	cmd.Flags().BoolVar(&opts.metrics, "metrics", false, "print engine metrics in Prometheus format afterwards")
	return cmd
}

func runBench(ctx context.Context, engine *goVault.Engine, opts benchOptions, out io.Writer) error {
	suffix, err := cryptox.RandomToken(6)
	if err != nil {
		return err
	}
	username := "bench-" + suffix
	u, err := engine.Register(ctx, username, benchPassword)
	if err != nil {
		return fmt.Errorf("register bench user: %w", err)
	}
	fmt.Fprintf(out, "bench user %s\n", username)

	sessions := make([]string, opts.logins)
	loginStats := runPhase(opts.logins, opts.concurrency, func(i int) error {
		sess, err := engine.Login(ctx, username, benchPassword)
		if err != nil {
			return err
		}
		sessions[i] = sess.ID
		return nil
	})

	live := sessions[:0]
	for _, id := range sessions {
		if id != "" {
			live = append(live, id)
		}
	}
	if len(live) == 0 {
		return errors.New("no login succeeded")
	}

	authStats := runPhase(opts.ops, opts.concurrency, func(i int) error {
		_, err := engine.Authenticate(ctx, live[i%len(live)])
		return err
	})

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "login", loginStats)
	printStats(out, "authenticate", authStats)

	if _, err := engine.RevokeAllSessions(ctx, u.ID); err != nil {
		return err
	}
	if opts.metrics {
		fmt.Fprint(out, prometheus.NewExporter(engine).Render())
	}
	return nil
}

// runPhase hands out op indexes to concurrency workers from a shared cursor.
func runPhase(ops, concurrency int, op func(i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    atomic.Int64
		failures  atomic.Int64
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, ops)
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(cursor.Add(1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(i)
				d := time.Since(t0)
				if err != nil {
					failures.Add(1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures.Load())
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

// percentile expects samples sorted ascending.
func percentile(samples []time.Duration, p int) time.Duration {
	switch {
	case len(samples) == 0:
		return 0
	case p <= 0:
		return samples[0]
	case p >= 100:
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(w io.Writer, name string, s phaseStats) {
	fmt.Fprintf(w, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
