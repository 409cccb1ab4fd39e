package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds survey counters. Increments are nil-safe.
type Metrics struct {
	SurveysCreated     prometheus.Counter
	ResponsesSubmitted prometheus.Counter
	SurveysClosed      prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		SurveysCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tripsync_surveys_created_total",
			Help: "Surveys created.",
		}),
		ResponsesSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tripsync_survey_responses_total",
			Help: "Survey responses submitted, including resubmissions.",
		}),
		SurveysClosed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tripsync_surveys_closed_total",
			Help: "Surveys auto-closed by reaching quorum.",
		}),
	}
}

func (m *Metrics) IncSurveysCreated() {
	if m != nil {
		m.SurveysCreated.Inc()
	}
}

func (m *Metrics) IncResponsesSubmitted() {
	if m != nil {
		m.ResponsesSubmitted.Inc()
	}
}

func (m *Metrics) IncSurveysClosed() {
	if m != nil {
		m.SurveysClosed.Inc()
	}
}
