// Package metrics exposes statement counters for the /metrics endpoint.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StatementsTotal counts statements by kind and outcome.
	StatementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novaquery_statements_total",
			Help: "Total number of executed statements",
		},
		[]string{"kind", "status"},
	)
	// StatementDuration is the latency of statements, parse included.
	StatementDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "novaquery_statement_duration_seconds",
			Help:    "Statement latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
	RowsReturned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "novaquery_rows_returned_total",
			Help: "Total number of records returned by SELECT",
		},
	)
	// PlanCacheLookups counts statement cache lookups by result, hit or miss.
	PlanCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novaquery_plan_cache_lookups_total",
			Help: "Statement cache lookups",
		},
		[]string{"result"},
	)
	// Sessions is the number of open wire sessions.
	Sessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "novaquery_wire_sessions",
			Help: "Open wire protocol sessions",
		},
	)
)

// ObserveStatement records one statement. status is "ok" or the error kind.
func ObserveStatement(kind, status string, started time.Time, rows int) {
	if kind == "" {
		kind = "unknown"
	}
	StatementsTotal.WithLabelValues(kind, status).Inc()
	StatementDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
	if rows > 0 {
		RowsReturned.Add(float64(rows))
	}
}
