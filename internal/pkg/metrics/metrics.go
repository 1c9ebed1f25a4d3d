// Package metrics registers Prometheus collectors for the approvals service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Decisions counts approval step decisions by module and action.
	Decisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smepp",
		Subsystem: "approvals",
		Name:      "decisions_total",
		Help:      "Approval step decisions recorded, by module and action.",
	}, []string{"module", "action"})

	// RequestsSubmitted counts workflow submissions by module and outcome
	// (matched, auto_approved).
	RequestsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smepp",
		Subsystem: "approvals",
		Name:      "requests_submitted_total",
		Help:      "Requests entering the approval workflow, by module and policy outcome.",
	}, []string{"module", "outcome"})

	// TokenRedemptions counts remote action token consume attempts by outcome
	// (consumed, expired, already_used, race_lost, invalid, not_found).
	TokenRedemptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smepp",
		Subsystem: "approvals",
		Name:      "token_redemptions_total",
		Help:      "Remote action token consume attempts, by outcome.",
	}, []string{"outcome"})

	// MessagesSent counts outbound gateway messages by template and status.
	MessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smepp",
		Subsystem: "approvals",
		Name:      "messages_sent_total",
		Help:      "Outbound WhatsApp template messages, by template and delivery status.",
	}, []string{"template", "status"})
)
