package metrics

import "github.com/prometheus/client_golang/prometheus"

// Gate names used as the "gate" label.
const (
	GateChapters = "chapters"
	GateStories  = "stories"
	GateCredits  = "credits"
)

// Quota Prometheus metrics.
var (
	QuotaDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taleforge",
			Name:      "quota_decisions_total",
			Help:      "Admission decisions by gate, tier and result",
		},
		[]string{"gate", "tier", "result"}, // result: "admitted" / "denied"
	)

	CreditsChargedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taleforge",
			Name:      "credits_charged_total",
			Help:      "Credits debited by operation",
		},
		[]string{"operation", "tier"},
	)

	CreditsGrantedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "taleforge",
			Name:      "credits_granted_total",
			Help:      "Credits added by admin top-ups",
		},
	)

	StoreRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "taleforge",
			Name:      "store_request_duration_seconds",
			Help:      "Account store call duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		},
		[]string{"driver", "op"},
	)

	StoreErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taleforge",
			Name:      "store_errors_total",
			Help:      "Account store call failures",
		},
		[]string{"driver", "op"},
	)
)

var quotaMetricsRegistered bool

// RegisterQuotaMetrics registers Prometheus quota metrics. Must be called once from main.
func RegisterQuotaMetrics() {
	if quotaMetricsRegistered {
		return
	}
	prometheus.MustRegister(QuotaDecisionsTotal)
	prometheus.MustRegister(CreditsChargedTotal)
	prometheus.MustRegister(CreditsGrantedTotal)
	prometheus.MustRegister(StoreRequestDuration)
	prometheus.MustRegister(StoreErrorsTotal)
	quotaMetricsRegistered = true
}

// Decision returns the result label for an admission outcome.
func Decision(admitted bool) string {
	if admitted {
		return "admitted"
	}
	return "denied"
}
