// Package metrics exposes Prometheus instrumentation for the keyshare server.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/atomic"

	"github.com/Davincible/shardwallet/pkg/sharestore"
)

const (
	Namespace = "keyshare"

	LabelOperation  = "operation"
	LabelBackend    = "backend"
	LabelStatus     = "status"
	LabelMethod     = "method"
	LabelRoute      = "route"
	LabelStatusCode = "status_code"

	StatusSuccess  = "success"
	StatusNotFound = "not_found"
	StatusTimeout  = "timeout"
	StatusError    = "error"

	OpStore = "store"
	OpFetch = "fetch"
)

var enabled = atomic.NewBool(true)

var (
	// OperationsTotal counts backend operations by outcome.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operations_total",
			Help:      "Total number of keyshare store operations by type, backend, and status",
		},
		[]string{LabelOperation, LabelBackend, LabelStatus},
	)

	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of keyshare store operations in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{LabelOperation, LabelBackend},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route, and status code",
		},
		[]string{LabelMethod, LabelRoute, LabelStatusCode},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelMethod, LabelRoute},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by the per-client rate limiter",
		},
	)

	Ready = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "ready",
			Help:      "1 when the server accepts keyshare traffic",
		},
	)
)

func Enable()         { enabled.Store(true) }
func Disable()        { enabled.Store(false) }
func IsEnabled() bool { return enabled.Load() }

// Status maps a store error onto the status label.
func Status(err error) string {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, sharestore.ErrNotFound):
		return StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return StatusTimeout
	default:
		return StatusError
	}
}

func RecordOperation(operation, backend string, err error, duration time.Duration) {
	if !IsEnabled() {
		return
	}
	OperationsTotal.WithLabelValues(operation, backend, Status(err)).Inc()
	OperationDuration.WithLabelValues(operation, backend).Observe(duration.Seconds())
}

func SetReady(ready bool) {
	if ready {
		Ready.Set(1)
		return
	}
	Ready.Set(0)
}

// HTTPMiddleware records request counts and latencies. The route label is the
// chi route pattern so that query strings do not explode cardinality.
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsEnabled() {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// instrumentedBackend records every backend call.
type instrumentedBackend struct {
	sharestore.Backend
}

// InstrumentBackend wraps b so each Put and Get is counted and timed.
func InstrumentBackend(b sharestore.Backend) sharestore.Backend {
	return &instrumentedBackend{Backend: b}
}

func (b *instrumentedBackend) Put(ctx context.Context, key string, share []byte) error {
	start := time.Now()
	err := b.Backend.Put(ctx, key, share)
	RecordOperation(OpStore, b.Name(), err, time.Since(start))
	return err
}

func (b *instrumentedBackend) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	share, err := b.Backend.Get(ctx, key)
	RecordOperation(OpFetch, b.Name(), err, time.Since(start))
	return share, err
}
