// Package metrics holds the Prometheus collectors for the propagation
// core and the zerolog-backed sink failure observer.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var metrics = []prometheus.Collector{
	SinkFailures,
	AnalysisDispatches,
	AnalysisDispatchFailures,
	AnalysisPublishFailures,
	AnalysisRequestsDropped,
}

// Register registers all Prometheus metrics with the default registry.
func Register() error {
	for _, c := range metrics {
		if err := prometheus.Register(c); err != nil {
			return fmt.Errorf("could not register %s with Prometheus", c)
		}
	}

	return nil
}

// Unregister unregisters all Prometheus metrics.
//
// This is needed to cleanly exit.
func Unregister() bool {
	for _, c := range metrics {
		if ok := prometheus.Unregister(c); !ok {
			return false
		}
	}

	return true
}

var SinkFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sink_failures_total",
		Help: "How many best-effort sink writes failed after a committed ledger mutation, partitioned by sink and operation.",
	},
	[]string{"sink", "operation"},
)

var AnalysisDispatches = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "analysis_dispatches_total",
		Help: "How many analysis requests were enqueued.",
	},
)

var AnalysisDispatchFailures = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "analysis_dispatch_failures_total",
		Help: "How many analysis requests could not be enqueued.",
	},
)

var AnalysisPublishFailures = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "analysis_publish_failures_total",
		Help: "How many analysis results could not be published to their topic.",
	},
)

var AnalysisRequestsDropped = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "analysis_requests_dropped_total",
		Help: "How many analysis requests were dropped because the queue was full.",
	},
)

// SinkFailure describes a failed write to a best-effort sink. The
// triggering ledger mutation has already committed when one of these is
// produced.
type SinkFailure struct {
	Sink      string
	Operation string
	Err       error
}

// Observer receives sink failures from the mutation path. The policy is
// fixed, a sink failure never aborts or retries the committed ledger
// write, but the failure itself stays visible through the observer.
type Observer interface {
	SinkFailed(ctx context.Context, failure SinkFailure)
}

// PrometheusObserver counts and logs sink failures.
type PrometheusObserver struct{}

func (PrometheusObserver) SinkFailed(_ context.Context, failure SinkFailure) {
	SinkFailures.WithLabelValues(failure.Sink, failure.Operation).Inc()
	log.Error().
		Err(failure.Err).
		Str("sink", failure.Sink).
		Str("operation", failure.Operation).
		Msg("sink sync failed")
}
