package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds voting counters. Increments are nil-safe.
type Metrics struct {
	SessionsCreated prometheus.Counter
	VotesCast       prometheus.Counter
	ClosedByQuorum  prometheus.Counter
	ClosedByExpiry  prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tripsync_voting_sessions_created_total",
			Help: "Voting sessions created.",
		}),
		VotesCast: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tripsync_votes_cast_total",
			Help: "Votes cast, including rank updates.",
		}),
		ClosedByQuorum: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tripsync_voting_sessions_closed_quorum_total",
			Help: "Voting sessions closed by reaching quorum.",
		}),
		ClosedByExpiry: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tripsync_voting_sessions_closed_expiry_total",
			Help: "Voting sessions closed on discovering a passed deadline.",
		}),
	}
}

func (m *Metrics) IncSessionsCreated() {
	if m != nil {
		m.SessionsCreated.Inc()
	}
}

func (m *Metrics) IncVotesCast() {
	if m != nil {
		m.VotesCast.Inc()
	}
}

func (m *Metrics) IncClosedByQuorum() {
	if m != nil {
		m.ClosedByQuorum.Inc()
	}
}

func (m *Metrics) IncClosedByExpiry() {
	if m != nil {
		m.ClosedByExpiry.Inc()
	}
}
