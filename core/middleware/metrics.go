package middleware

import (
	"bytes"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/zap"

	"github.com/searchktools/tiny-server/core/http"
)

// Metrics records request counts and latencies in a Prometheus registry. When
// Path is set, GET requests to it are answered with the registry contents in
// the text exposition format.
type Metrics struct {
	Path string

	registry *prometheus.Registry
	logger   *zap.Logger
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the request collectors on registry (a fresh registry
// when nil).
func NewMetrics(registry *prometheus.Registry, logger *zap.Logger) (*Metrics, error) {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		Path:     "/metrics",
		registry: registry,
		logger:   logger.Named("metrics"),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tiny_server",
			Name:      "requests_total",
			Help:      "Responses sent, by request method and status code.",
		}, []string{"method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tiny_server",
			Name:      "request_duration_seconds",
			Help:      "Time from decoded request to final response.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	for _, c := range []prometheus.Collector{m.requests, m.duration} {
		if err := registry.Register(c); err != nil {
			return nil, errors.Wrap(err, "failed to register metrics collector")
		}
	}
	return m, nil
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) PreRequest(req *http.Request) *http.Response {
	if m.Path == "" || req.Method != "GET" || req.Path != m.Path {
		return nil
	}

	families, err := m.registry.Gather()
	if err != nil {
		m.logger.Warn("gathering metrics failed", zap.Error(err))
	}

	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, format)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			m.logger.Error("encoding metrics failed", zap.Error(err))
			return http.HTML(500, "<h1>500</h1>")
		}
	}

	resp := http.NewResponse(200, buf.Bytes())
	resp.Header.Set("Content-Type", string(format))
	return resp
}

func (m *Metrics) PostResponse(req *http.Request, resp *http.Response) {
	m.requests.WithLabelValues(req.Method, strconv.Itoa(resp.StatusCode)).Inc()
	if !req.ReceivedAt.IsZero() {
		m.duration.WithLabelValues(req.Method).Observe(time.Since(req.ReceivedAt).Seconds())
	}
}
