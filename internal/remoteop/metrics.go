// SPDX-FileCopyrightText: The RamenDR authors
// SPDX-License-Identifier: Apache-2.0

package remoteop

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

const (
	metricNamespace = "odf"
	metricSubsystem = "remoteop"

	OperationsTotal          = "operations_total"
	OperationDurationSeconds = "operation_duration_seconds"
	PollAttempts             = "poll_attempts"
	OperationsInFlight       = "operations_in_flight"

	KindLabel    = "kind"
	OutcomeLabel = "outcome"
)

// Outcome is the terminal state of one remote operation.
type Outcome string

const (
	OutcomeSucceeded Outcome = "Succeeded"
	OutcomeFailed    Outcome = "Failed"
	OutcomeTimedOut  Outcome = "TimedOut"
	OutcomeErrored   Outcome = "Errored"
	OutcomeCanceled  Outcome = "Canceled"
)

var (
	operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: metricSubsystem,
			Name:      OperationsTotal,
			Help:      "Remote operations by request kind and outcome",
		},
		[]string{KindLabel, OutcomeLabel},
	)

	operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricNamespace,
			Subsystem: metricSubsystem,
			Name:      OperationDurationSeconds,
			Help:      "Time from request creation to outcome",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2.0, 8),
		},
		[]string{KindLabel},
	)

	pollAttempts = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricNamespace,
			Subsystem: metricSubsystem,
			Name:      PollAttempts,
			Help:      "Reads of the request object needed to reach an outcome",
			Buckets:   prometheus.LinearBuckets(1, 2, 10),
		},
		[]string{KindLabel},
	)

	operationsInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Subsystem: metricSubsystem,
			Name:      OperationsInFlight,
			Help:      "Remote operations waiting for an outcome",
		},
		[]string{KindLabel},
	)
)

type operationMetrics struct {
	kind  string
	start time.Time
}

func newOperationMetrics(kind string) operationMetrics {
	operationsInFlight.WithLabelValues(kind).Inc()

	return operationMetrics{kind: kind, start: time.Now()}
}

func (m operationMetrics) done(outcome Outcome, attempts int) {
	operationsInFlight.WithLabelValues(m.kind).Dec()
	operationsTotal.WithLabelValues(m.kind, string(outcome)).Inc()
	operationDuration.WithLabelValues(m.kind).Observe(time.Since(m.start).Seconds())

	if attempts > 0 {
		pollAttempts.WithLabelValues(m.kind).Observe(float64(attempts))
	}
}

func init() {
	// Register custom metrics with the global prometheus registry
	metrics.Registry.MustRegister(operationsTotal)
	metrics.Registry.MustRegister(operationDuration)
	metrics.Registry.MustRegister(pollAttempts)
	metrics.Registry.MustRegister(operationsInFlight)
}
