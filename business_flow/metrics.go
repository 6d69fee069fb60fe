package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	campaignTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_transitions_total",
			Help: "Campaign lifecycle transition attempts by source status, resulting status and outcome",
		},
		[]string{"from", "to", "result"},
	)

	paymentReconciliationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_reconciliations_total",
			Help: "Payment gateway callbacks by reconciliation outcome",
		},
		[]string{"outcome"},
	)
)

func observeTransition(from, to string, err error) {
	campaignTransitionsTotal.WithLabelValues(from, to, resultLabel(err)).Inc()
}

func observeReconciliation(outcome string) {
	paymentReconciliationsTotal.WithLabelValues(outcome).Inc()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsTransitionInProgress(err):
		return "busy"
	case IsValidationError(err):
		return "invalid"
	case IsCampaignLocked(err), IsInvalidTransition(err):
		return "rejected"
	default:
		return "error"
	}
}
