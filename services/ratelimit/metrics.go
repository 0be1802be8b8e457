package ratelimit

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var DecisionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rate_limit_decisions_total",
		Help: "Rate limit decisions by bucket, mode and outcome",
	},
	[]string{"bucket", "mode", "allowed"},
)

func observeDecision(bucket string, mode Mode, allowed bool) {
	DecisionsTotal.WithLabelValues(bucket, mode.String(), strconv.FormatBool(allowed)).Inc()
}
