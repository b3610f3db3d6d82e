// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AttrDesk Contributors

package attribute

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the attribute definition lifecycle.
var (
	// parseCounter counts permitted-value parses by data type and outcome.
	parseCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attrdesk_value_parses_total",
		Help: "Total number of permitted-value text parses",
	}, []string{"data_type", "outcome"})

	// violationCounter counts constraint violations by rule kind.
	violationCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attrdesk_constraint_violations_total",
		Help: "Total number of constraint violations by rule kind",
	}, []string{"kind"})

	// editPolicyCounter counts edit-policy derivations by resulting policy.
	editPolicyCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attrdesk_edit_policy_decisions_total",
		Help: "Total number of edit policy derivations",
	}, []string{"policy"})

	// mutationCounter counts definition mutations by operation and outcome.
	mutationCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attrdesk_attribute_mutations_total",
		Help: "Total number of attribute definition mutations",
	}, []string{"operation", "outcome"})

	// mutationDuration tracks mutation latency per operation.
	mutationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "attrdesk_mutation_duration_seconds",
		Help:    "Histogram of attribute mutation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// bulkItemCounter counts bulk-delete items by final classification.
	bulkItemCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attrdesk_bulk_delete_items_total",
		Help: "Total number of bulk-delete items by classification",
	}, []string{"outcome"})

	// updateRetryCounter counts update attempts replayed after a version
	// conflict.
	updateRetryCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attrdesk_update_retries_total",
		Help: "Total number of update attempts retried after a version conflict",
	})
)

func recordParse(dt DataType, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	parseCounter.WithLabelValues(dt.String(), outcome).Inc()
}

func recordViolation(err error) {
	if v, ok := asConstraintViolation(err); ok {
		violationCounter.WithLabelValues(string(v.Kind)).Inc()
	}
}

func recordEditPolicy(p EditPolicy) {
	editPolicyCounter.WithLabelValues(p.String()).Inc()
}

// recordMutation records the counter and latency for one mutation. Call
// with the operation start time once the outcome is known.
func recordMutation(operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	mutationCounter.WithLabelValues(operation, outcome).Inc()
	mutationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func recordBulkItem(outcome string) {
	bulkItemCounter.WithLabelValues(outcome).Inc()
}

func recordUpdateRetry() {
	updateRetryCounter.Inc()
}
