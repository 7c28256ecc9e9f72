// Package metrics exposes Prometheus collectors for the exchange server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exchange outcomes recorded in ExchangesTotal.
const (
	OutcomeIssued          = "issued"
	OutcomeBadRequest      = "bad_request"
	OutcomeMissing         = "missing_credential"
	OutcomeInvalid         = "invalid_credential"
	OutcomeRevoked         = "revoked_credential"
	OutcomeIdentityMissing = "identity_not_found"
	OutcomeConfigError     = "config_error"
	OutcomeError           = "error"
	OutcomeRateLimited     = "rate_limited"
)

var (
	ExchangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devicetoken",
			Name:      "exchanges_total",
			Help:      "Device token exchange attempts by outcome.",
		},
		[]string{"outcome"},
	)
	ExchangeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "devicetoken",
			Name:      "exchange_duration_seconds",
			Help:      "Time spent serving device token exchanges.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(ExchangesTotal, ExchangeDuration)
}

// ObserveExchange records one exchange attempt.
func ObserveExchange(outcome string, elapsed time.Duration) {
	ExchangesTotal.WithLabelValues(outcome).Inc()
	ExchangeDuration.Observe(elapsed.Seconds())
}

// ObserveRateLimited counts an exchange rejected before any work was done.
// No latency sample is recorded.
func ObserveRateLimited() {
	ExchangesTotal.WithLabelValues(OutcomeRateLimited).Inc()
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
