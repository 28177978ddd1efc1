// Package metrics defines the Prometheus collectors exported by the engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	eventsIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "flarewatch",
			Name:      "events_ingested_total",
			Help:      "Total telemetry events accepted into the buffer.",
		},
	)

	evaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flarewatch",
			Name:      "rule_evaluations_total",
			Help:      "Total rule evaluations, partitioned by result.",
		},
		[]string{"result"},
	)

	evaluationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "flarewatch",
			Name:      "rule_evaluation_seconds",
			Help:      "Single-rule evaluation latency in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		},
	)

	alertsFired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flarewatch",
			Name:      "alerts_fired_total",
			Help:      "Total alerts created, partitioned by severity.",
		},
		[]string{"severity"},
	)

	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flarewatch",
			Name:      "notifications_total",
			Help:      "Notification dispatch attempts, partitioned by channel type and outcome.",
		},
		[]string{"channel", "outcome"},
	)
)

// Evaluation result labels.
const (
	ResultFired  = "fired"
	ResultPassed = "passed"
	ResultFailed = "failed" // evaluation error or recovered panic
)

// Notification outcome labels.
const (
	OutcomeSent   = "sent"
	OutcomeFailed = "failed"
)

// Register attaches all flarewatch collectors to reg. Already-registered
// collectors are skipped so Register is safe to call more than once.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		eventsIngested,
		evaluationsTotal,
		evaluationSeconds,
		alertsFired,
		notificationsTotal,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveIngest counts one accepted event.
func ObserveIngest() {
	eventsIngested.Inc()
}

// ObserveEvaluation records one rule evaluation with its latency and result.
func ObserveEvaluation(d time.Duration, result string) {
	evaluationsTotal.WithLabelValues(result).Inc()
	if d < 0 {
		d = 0
	}
	evaluationSeconds.Observe(d.Seconds())
}

// ObserveAlert counts one created alert.
func ObserveAlert(severity string) {
	alertsFired.WithLabelValues(severity).Inc()
}

// ObserveNotification counts one dispatch attempt.
func ObserveNotification(channelType, outcome string) {
	notificationsTotal.WithLabelValues(channelType, outcome).Inc()
}
