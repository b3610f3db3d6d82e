// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AttrDesk Contributors

package httpapi

import (
	"context"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// requestIDHeader carries the caller-assigned request id, echoed back on
// the response. A fresh UUID is generated when the caller sends none.
const requestIDHeader = "X-Request-ID"

// requestIDKey is the context key for the request id.
type requestIDKey struct{}

// RequestIDFromContext returns the request id assigned by the middleware,
// or the empty string when none was set.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// withRequestID assigns every request an id, honoring X-Request-ID when
// the caller provides one, and echoes it on the response.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// HTTP transport metrics.
var (
	// requestCounter counts requests by route pattern, method, and status.
	requestCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attrdesk_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"route", "method", "status"})

	// requestDuration tracks request latency per route pattern and method.
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "attrdesk_http_request_duration_seconds",
		Help:    "Histogram of HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})
)

// statusRecorder captures the status code the handler chain writes.
// Handlers that never call WriteHeader implicitly write 200.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(statusCode int) {
	rec.status = statusCode
	rec.ResponseWriter.WriteHeader(statusCode)
}

// observeRequests logs one line per request and records the transport
// metrics. The route label uses the mux pattern, not the raw path, so
// metric cardinality stays bounded by the route table.
func (a *API) observeRequests(mux *http.ServeMux, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		_, route := mux.Handler(r)
		if route == "" {
			route = "unmatched"
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		requestCounter.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		requestDuration.WithLabelValues(route, r.Method).Observe(elapsed.Seconds())

		a.log.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", elapsed.Milliseconds(),
			"request_id", RequestIDFromContext(r.Context()),
		)
	})
}

// recoverPanics converts handler panics into 500 envelopes so one bad
// request cannot take the process down. http.ErrAbortHandler passes
// through untouched per the net/http contract.
func (a *API) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler { //nolint:errorlint // sentinel comparison per net/http docs
				panic(v)
			}
			a.log.ErrorContext(r.Context(), "handler panic",
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", RequestIDFromContext(r.Context()),
				"panic", v,
				"stack", string(debug.Stack()),
			)
			// If the handler already wrote headers this write fails;
			// the connection is torn down either way.
			env := errorEnvelope{Success: false, Error: "internal server error"}
			_ = writeJSON(w, http.StatusInternalServerError, env) //nolint:errcheck
		}()
		next.ServeHTTP(w, r)
	})
}
