package repl

import (
	"fmt"
	"net"
	"time"

	"github.com/cyberdelia/go-metrics-graphite"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"mrkv-repl/internal/repl/etc"
)

// Metrics bundles the two metrics stacks the teacher's go.mod carries:
// Prometheus counters (scraped via internal/admin's /metrics handler,
// same promauto idiom as internal/master/server.go's opsProcessed
// counter) and a legacy go-metrics registry that can additionally be
// flushed to Graphite, for deployments that haven't migrated off it yet.
type Metrics struct {
	BatchesSent   prometheus.Counter
	RowsSent      prometheus.Counter
	BytesSent     prometheus.Counter
	FullSyncsDone prometheus.Counter
	PushErrors    prometheus.Counter

	promReg    *prometheus.Registry
	registry   gometrics.Registry
	throughput gometrics.Meter
}

// NewMetrics builds a fresh set of counters against their own Prometheus
// registry rather than promauto's package-global DefaultRegisterer —
// unlike the teacher's package-level, process-lifetime master.opsProcessed,
// a Metrics here is owned by one Manager, and a second Manager in the
// same process (tests spin up several) must not collide with the first
// one's collector names.
func NewMetrics() *Metrics {
	promReg := prometheus.NewRegistry()
	factory := promauto.With(promReg)

	reg := gometrics.NewRegistry()
	throughput := gometrics.NewMeter()
	_ = reg.Register("repl.bytesPerSecond", throughput)

	return &Metrics{
		BatchesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mrkv_repl",
			Name:      "batches_sent_total",
			Help:      "Binlog batches successfully acked by a replica.",
		}),
		RowsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mrkv_repl",
			Name:      "rows_sent_total",
			Help:      "Binlog rows successfully acked by a replica.",
		}),
		BytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mrkv_repl",
			Name:      "bytes_sent_total",
			Help:      "Binlog payload bytes successfully acked by a replica.",
		}),
		FullSyncsDone: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mrkv_repl",
			Name:      "full_syncs_total",
			Help:      "Full-sync snapshots streamed to completion.",
		}),
		PushErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mrkv_repl",
			Name:      "push_errors_total",
			Help:      "Push iterations that ended in a network or protocol error.",
		}),
		promReg:    promReg,
		registry:   reg,
		throughput: throughput,
	}
}

// Registry exposes the Prometheus registry backing this Metrics, for a
// caller (the admin surface) to serve over /metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.promReg
}

func (m *Metrics) observeBatch(rows int, bytes int) {
	m.BatchesSent.Inc()
	m.RowsSent.Add(float64(rows))
	m.BytesSent.Add(float64(bytes))
	m.throughput.Mark(int64(bytes))
}

// StartGraphiteReporter periodically flushes the go-metrics registry to
// Graphite, mirroring the cyberdelia/go-metrics-graphite reporter's usual
// call shape. It is a no-op if cfg.Addr is empty.
func (m *Metrics) StartGraphiteReporter(cfg etc.GraphiteConf, stop <-chan struct{}) error {
	if cfg.Addr == "" {
		return nil
	}
	addr, err := net.ResolveTCPAddr("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("repl: resolve graphite addr: %w", err)
	}
	interval := time.Duration(cfg.Interval) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-time.After(interval):
				graphite.Once(graphite.Config{
					Addr:          addr,
					Registry:      m.registry,
					FlushInterval: interval,
					DurationUnit:  time.Nanosecond,
					Prefix:        cfg.Prefix,
				})
			}
		}
	}()
	return nil
}
