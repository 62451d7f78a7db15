package observ

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	settlements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scalapay_settlements_total",
			Help: "Settlement callbacks by outcome",
		},
		[]string{"outcome"},
	)

	gatewayDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scalapay_gateway_request_duration_ms",
			Help:    "Duration of Scalapay API calls in ms",
			Buckets: []float64{25, 50, 100, 200, 400, 800, 1600, 3200, 6400},
		},
		[]string{"op", "outcome"},
	)
)

// Settlement outcomes.
const (
	OutcomeSettled   = "settled"
	OutcomeReplayed  = "replayed"
	OutcomeMalformed = "malformed"
	OutcomeDeclined  = "declined"
	OutcomeFailed    = "failed"
	OutcomeFatal     = "fatal"
)

func SettlementObserved(outcome string) {
	settlements.WithLabelValues(outcome).Inc()
}

func GatewayObserved(op string, err error, start time.Time) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	gatewayDuration.WithLabelValues(op, outcome).Observe(float64(time.Since(start).Milliseconds()))
}
