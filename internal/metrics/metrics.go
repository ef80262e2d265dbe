// Package metrics holds the daemon's Prometheus collectors.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "wppcrm"

// Metrics groups the counters updated by the sync engine and the outbox.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	MessagesIngested *prometheus.CounterVec
	GatewayEvents    *prometheus.CounterVec
	Sends            *prometheus.CounterVec
	RateLimited      prometheus.Counter
	SendLatency      *prometheus.HistogramVec
	BusDropped       *prometheus.CounterVec
	RPCs             *prometheus.CounterVec
	RPCLatency       *prometheus.HistogramVec
}

// New creates the collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		MessagesIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_ingested_total",
			Help:      "Messages written to the store, by source (live, sent, history).",
		}, []string{"source"}),
		GatewayEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_events_published_total",
			Help:      "Push events published to watchers, by gateway kind.",
		}, []string{"kind"}),
		Sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sends_total",
			Help:      "Outgoing sends, by message kind and result.",
		}, []string{"kind", "result"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sends_rate_limited_total",
			Help:      "Sends rejected by the per-chat rate limiter.",
		}),
		SendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "send_duration_seconds",
			Help:      "Time spent in the gateway send call.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		BusDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_events_dropped_total",
			Help:      "Bus events dropped because a subscriber was full, by event kind.",
		}, []string{"kind"}),
		RPCs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_calls_total",
			Help:      "Daemon API calls, by method and status code.",
		}, []string{"method", "code"}),
		RPCLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_call_duration_seconds",
			Help:      "Daemon API call duration. Watch streams last for the life of the client.",
			Buckets:   []float64{.001, .005, .025, .1, .5, 2.5, 10, 60, 600},
		}, []string{"method"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.MessagesIngested,
		m.GatewayEvents,
		m.Sends,
		m.RateLimited,
		m.SendLatency,
		m.BusDropped,
		m.RPCs,
		m.RPCLatency,
	)
	return m
}

// Ingested counts n messages stored from source.
func (m *Metrics) Ingested(source string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.MessagesIngested.WithLabelValues(source).Add(float64(n))
}

// Published counts one push event of the given gateway kind.
func (m *Metrics) Published(kind string) {
	if m == nil {
		return
	}
	m.GatewayEvents.WithLabelValues(kind).Inc()
}

// Sent records the outcome and duration of one send.
func (m *Metrics) Sent(kind, result string, took time.Duration) {
	if m == nil {
		return
	}
	m.Sends.WithLabelValues(kind, result).Inc()
	if took > 0 {
		m.SendLatency.WithLabelValues(kind).Observe(took.Seconds())
	}
}

// Limited counts one rate-limited send.
func (m *Metrics) Limited() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}

// Dropped counts one bus event lost to a full subscriber.
func (m *Metrics) Dropped(kind string) {
	if m == nil {
		return
	}
	m.BusDropped.WithLabelValues(kind).Inc()
}

// RPC records one finished API call.
func (m *Metrics) RPC(method, code string, took time.Duration) {
	if m == nil {
		return
	}
	m.RPCs.WithLabelValues(method, code).Inc()
	m.RPCLatency.WithLabelValues(method).Observe(took.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Server exposes /metrics on a TCP address.
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

// NewServer returns nil when addr is empty.
func NewServer(addr string, m *Metrics, logger *zap.Logger) *Server {
	if addr == "" || m == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return &Server{
		srv:    &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		logger: logger,
	}
}

// Start listens and serves in the background.
func (s *Server) Start() error {
	if s == nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("metrics listening", zap.String("addr", ln.Addr().String()))
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop shuts the server down.
func (s *Server) Stop(ctx context.Context) {
	if s == nil {
		return
	}
	_ = s.srv.Shutdown(ctx)
}
