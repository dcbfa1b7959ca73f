package observability

import "github.com/prometheus/client_golang/prometheus"

// Domain counters. Labels are fixed small enums to keep cardinality bounded.
var (
	// CreditsDebited counts successful one-credit debits.
	CreditsDebited = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "credits_debited_total",
		Help: "Credits debited for chat and recipe requests.",
	})

	// CreditsRefunded counts compensating refunds after provider failures.
	CreditsRefunded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "credits_refunded_total",
		Help: "Credits refunded after a failed completion.",
	})

	// CreditsGranted counts credits added by purchases and signup grants,
	// labeled by source ("purchase", "welcome").
	CreditsGranted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "credits_granted_total",
		Help: "Credits added to customer balances.",
	}, []string{"source"})

	// LLMRequests counts completion outcomes by model and result
	// ("ok", "transient", "permanent").
	LLMRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ai_completions_total",
		Help: "Completion requests by model and outcome.",
	}, []string{"model", "outcome"})

	// LLMLatency observes per-attempt provider latency.
	LLMLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ai_completion_seconds",
		Help:    "Latency of single completion attempts.",
		Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 20, 30},
	}, []string{"model"})

	// LLMFallbacks counts replies served from canned text.
	LLMFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ai_fallbacks_total",
		Help: "Replies that used canned fallback text.",
	})

	// PaymentEvents counts webhook notifications by gateway and result: the
	// notified outcome ("success", "pending", "failed", "ignored") or
	// "duplicate", "invalid_signature", "error".
	PaymentEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhooks_total",
		Help: "Payment notifications processed by gateway and result.",
	}, []string{"gateway", "result"})

	// FeedbackVotes counts recorded ratings by direction ("up", "down").
	FeedbackVotes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "message_feedback_total",
		Help: "Ratings left on assistant replies.",
	}, []string{"vote"})
)

func init() {
	prometheus.MustRegister(
		CreditsDebited, CreditsRefunded, CreditsGranted,
		LLMRequests, LLMLatency, LLMFallbacks,
		PaymentEvents, FeedbackVotes,
	)
}
