package models

import (
	"time"

	id "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain"
)

// Status of a survey. CLOSED is terminal; there is no reopening path.
type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusClosed Status = "CLOSED"
)

// Survey collects one round of preferences from a trip's members. At most one
// survey exists per trip.
type Survey struct {
	ID        id.SurveyID
	TripID    id.TripID
	Title     string
	Status    Status
	Questions []Question
	ExpiresAt time.Time
	CreatedAt time.Time
	ClosedAt  *time.Time
}

// QuestionByID returns the question definition, if present.
func (s *Survey) QuestionByID(questionID string) (Question, bool) {
	for _, q := range s.Questions {
		if q.ID == questionID {
			return q, true
		}
	}
	return Question{}, false
}

// Response holds one member's answers, keyed by question ID. Resubmission
// replaces the previous row.
type Response struct {
	SurveyID    id.SurveyID
	UserID      id.UserID
	Answers     map[string]Answer
	SubmittedAt time.Time
}
