// Package metrics exposes bot activity as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "alisbot"

// Metrics owns a registry and the collectors shared by all instances.
type Metrics struct {
	registry *prometheus.Registry

	refreshes       *prometheus.CounterVec
	refreshDuration *prometheus.HistogramVec
	aborts          *prometheus.CounterVec
	dropped         *prometheus.CounterVec
	entries         *prometheus.GaugeVec
	waits           *prometheus.HistogramVec
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	connections     *prometheus.CounterVec
}

// New builds a Metrics with its own registry, including Go and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "list_refreshes_total",
			Help:      "Channel list refreshes started, by reason.",
		}, []string{"instance", "reason"}),
		refreshDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "list_refresh_duration_seconds",
			Help:      "Time from LIST request to end of list.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"instance"}),
		aborts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "list_refresh_aborts_total",
			Help:      "Refreshes abandoned because the session was lost.",
		}, []string{"instance"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "list_records_dropped_total",
			Help:      "RPL_LIST records that were malformed or arrived outside a refresh.",
		}, []string{"instance"}),
		entries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "list_entries",
			Help:      "Channels in the last completed listing.",
		}, []string{"instance"}),
		waits: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_wait_seconds",
			Help:      "Time queries spent waiting for the listing.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"instance"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Private message requests handled, by outcome.",
		}, []string{"instance", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time to build the reply to a request.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"instance"}),
		connections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "IRC connection attempts, by result.",
		}, []string{"instance", "result"}),
	}
	m.registry.MustRegister(
		m.refreshes, m.refreshDuration, m.aborts, m.dropped, m.entries,
		m.waits, m.requests, m.requestDuration, m.connections,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Instance returns the recorder for one bot instance.
func (m *Metrics) Instance(name string) *Instance {
	return &Instance{m: m, name: name}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, log *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen metrics: %w", err)
	}
	srv := &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	log.Info("metrics available", "addr", ln.Addr().String(), "path", "/metrics")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown metrics: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve metrics: %w", err)
	}
}

// Instance records metrics for one bot instance. It satisfies the listing
// Observer and the bot Recorder.
type Instance struct {
	m    *Metrics
	name string
}

func (i *Instance) RefreshStarted(reason string) {
	i.m.refreshes.WithLabelValues(i.name, reason).Inc()
}

func (i *Instance) RefreshCompleted(entries int, elapsed time.Duration) {
	i.m.entries.WithLabelValues(i.name).Set(float64(entries))
	i.m.refreshDuration.WithLabelValues(i.name).Observe(elapsed.Seconds())
}

func (i *Instance) RefreshAborted() {
	i.m.aborts.WithLabelValues(i.name).Inc()
	i.m.entries.WithLabelValues(i.name).Set(0)
}

func (i *Instance) RecordDropped() {
	i.m.dropped.WithLabelValues(i.name).Inc()
}

func (i *Instance) Waited(elapsed time.Duration) {
	i.m.waits.WithLabelValues(i.name).Observe(elapsed.Seconds())
}

func (i *Instance) RequestHandled(outcome string, elapsed time.Duration) {
	i.m.requests.WithLabelValues(i.name, outcome).Inc()
	i.m.requestDuration.WithLabelValues(i.name).Observe(elapsed.Seconds())
}

// Connection counts a connection attempt; ok reports whether the session
// registered.
func (i *Instance) Connection(ok bool) {
	result := "failed"
	if ok {
		result = "registered"
	}
	i.m.connections.WithLabelValues(i.name, result).Inc()
}
