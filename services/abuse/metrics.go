package abuse

import "github.com/prometheus/client_golang/prometheus"

var (
	ChallengeVerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "challenge_verifications_total",
			Help: "Challenge token verifications by result",
		},
		[]string{"result"},
	)

	EscalationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "abuse_escalations_total",
			Help: "Abuse escalator outcomes",
		},
		[]string{"outcome"},
	)
)

const (
	outcomeAllowed           = "allowed"
	outcomeThrottled         = "throttled"
	outcomeChallengeRequired = "challenge_required"
	outcomeChallengeFailed   = "challenge_failed"
	outcomeChallengePassed   = "challenge_passed"
	outcomeSuspended         = "suspended"
	outcomeRestricted        = "restricted"
)

func observeVerification(result string) {
	ChallengeVerificationsTotal.WithLabelValues(result).Inc()
}

func observeEscalation(outcome string) {
	EscalationsTotal.WithLabelValues(outcome).Inc()
}
