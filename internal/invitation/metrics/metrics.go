package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds invitation counters. All increments are nil-safe so tests can
// run services without a registry.
type Metrics struct {
	InvitationsCreated prometheus.Counter
	PendingCreated     prometheus.Counter
	PendingPromoted    prometheus.Counter
	EmailFailures      prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		InvitationsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tripsync_invitations_created_total",
			Help: "Durable invitations created.",
		}),
		PendingCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tripsync_pending_invitations_created_total",
			Help: "Placeholder invitations created for emails without accounts.",
		}),
		PendingPromoted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tripsync_pending_invitations_promoted_total",
			Help: "Placeholder invitations promoted to durable on account creation.",
		}),
		EmailFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tripsync_invitation_email_failures_total",
			Help: "Invitation email sends that reported failure.",
		}),
	}
}

func (m *Metrics) IncInvitationsCreated() {
	if m != nil {
		m.InvitationsCreated.Inc()
	}
}

func (m *Metrics) IncPendingCreated() {
	if m != nil {
		m.PendingCreated.Inc()
	}
}

func (m *Metrics) IncPendingPromoted() {
	if m != nil {
		m.PendingPromoted.Inc()
	}
}

func (m *Metrics) IncEmailFailures() {
	if m != nil {
		m.EmailFailures.Inc()
	}
}
