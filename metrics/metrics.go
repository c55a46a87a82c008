// Package metrics holds the Prometheus collectors of the client engine and
// the reference server. All methods are safe on a nil receiver so metrics
// stay optional.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "karma"

type Outcome string

const (
	OutcomeCommitted  Outcome = "committed"
	OutcomeRolledBack Outcome = "rolled_back"
	OutcomeRejected   Outcome = "rejected"
)

type Result string

const (
	ResultSuccess Result = "success"
	ResultError   Result = "error"
	ResultStale   Result = "stale"
)

// Collector counts client side mutations and refreshes.
type Collector struct {
	LikesTotal       *prometheus.CounterVec
	DeletesTotal     *prometheus.CounterVec
	RefreshTotal     *prometheus.CounterVec
	MutationDuration *prometheus.HistogramVec
}

// New registers the client collectors with reg. Pass prometheus.NewRegistry()
// in tests to keep the default registry clean.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		LikesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "likes_total",
			Help:      "Like toggles by entity kind and outcome",
		}, []string{"kind", "outcome"}),
		DeletesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "deletes_total",
			Help:      "Deletions by entity kind and outcome",
		}, []string{"kind", "outcome"}),
		RefreshTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "refresh_total",
			Help:      "Collection reads by collection and result",
		}, []string{"collection", "result"}),
		MutationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "mutation_duration_seconds",
			Help:      "Time from optimistic apply to commit or rollback",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"kind"}),
	}
}

func (c *Collector) RecordLike(kind string, outcome Outcome) {
	if c == nil {
		return
	}

	c.LikesTotal.WithLabelValues(kind, string(outcome)).Inc()
}

func (c *Collector) RecordDelete(kind string, outcome Outcome) {
	if c == nil {
		return
	}

	c.DeletesTotal.WithLabelValues(kind, string(outcome)).Inc()
}

func (c *Collector) RecordRefresh(collection string, result Result) {
	if c == nil {
		return
	}

	c.RefreshTotal.WithLabelValues(collection, string(result)).Inc()
}

func (c *Collector) ObserveMutation(kind string, started time.Time) {
	if c == nil {
		return
	}

	c.MutationDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
}

// HTTPCollector counts requests served by the reference server.
type HTTPCollector struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

func NewHTTP(reg prometheus.Registerer) *HTTPCollector {
	factory := promauto.With(reg)

	return &HTTPCollector{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"route", "code"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Instrument wraps next and records its status code under route.
func (c *HTTPCollector) Instrument(route string, next http.Handler) http.Handler {
	if c == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		c.RequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		c.RequestDuration.WithLabelValues(route).Observe(time.Since(started).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}
