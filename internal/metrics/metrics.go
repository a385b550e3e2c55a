// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "deptdocs"

// Metrics holds all Prometheus metrics.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	DocumentActionsTotal *prometheus.CounterVec
	AccessDeniedTotal    *prometheus.CounterVec
	LoginAttemptsTotal   *prometheus.CounterVec

	BlobOperationsTotal   *prometheus.CounterVec
	BlobOperationDuration *prometheus.HistogramVec

	DocumentsTotal   prometheus.Gauge
	UsersTotal       prometheus.Gauge
	DepartmentsTotal prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		DocumentActionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "document_actions_total",
				Help:      "Document uploads, edits, deletions and downloads",
			},
			[]string{"action", "outcome"},
		),
		AccessDeniedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "access_denied_total",
				Help:      "Actions refused by the access gate",
			},
			[]string{"reason"},
		),
		LoginAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "login_attempts_total",
				Help:      "Login attempts by outcome",
			},
			[]string{"outcome"},
		),
		BlobOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "blob_operations_total",
				Help:      "Blob store operations",
			},
			[]string{"operation", "status"},
		),
		BlobOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "blob_operation_duration_seconds",
				Help:      "Blob store operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		DocumentsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "documents_total",
			Help:      "Number of stored documents",
		}),
		UsersTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "users_total",
			Help:      "Number of users",
		}),
		DepartmentsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "departments_total",
			Help:      "Number of departments",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.DocumentActionsTotal,
		m.AccessDeniedTotal,
		m.LoginAttemptsTotal,
		m.BlobOperationsTotal,
		m.BlobOperationDuration,
		m.DocumentsTotal,
		m.UsersTotal,
		m.DepartmentsTotal,
	)
	return m
}

// RegisterDB exports connection pool statistics for db.
func (m *Metrics) RegisterDB(db *sql.DB) {
	m.registry.MustRegister(collectors.NewDBStatsCollector(db, "deptdocs"))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// DocumentAction counts one document action.
func (m *Metrics) DocumentAction(action string, err error) {
	if m == nil {
		return
	}
	m.DocumentActionsTotal.WithLabelValues(action, outcome(err)).Inc()
}

// AccessDenied counts a refusal by reason.
func (m *Metrics) AccessDenied(reason string) {
	if m == nil {
		return
	}
	m.AccessDeniedTotal.WithLabelValues(reason).Inc()
}

// LoginAttempt counts a login outcome (success, failure, locked).
func (m *Metrics) LoginAttempt(result string) {
	if m == nil {
		return
	}
	m.LoginAttemptsTotal.WithLabelValues(result).Inc()
}

// ObserveBlob records one blob store operation.
func (m *Metrics) ObserveBlob(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.BlobOperationsTotal.WithLabelValues(operation, outcome(err)).Inc()
	m.BlobOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// SetTotals updates the inventory gauges.
func (m *Metrics) SetTotals(documents, users, departments int64) {
	if m == nil {
		return
	}
	m.DocumentsTotal.Set(float64(documents))
	m.UsersTotal.Set(float64(users))
	m.DepartmentsTotal.Set(float64(departments))
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Middleware instruments requests. Routes are labelled by their chi pattern
// so document IDs do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
