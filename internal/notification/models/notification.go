package models

import (
	"time"

	id "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain"
)

// Kind classifies a notification for client-side rendering and routing.
type Kind string

const (
	KindTripInvitation Kind = "TRIP_INVITATION"
	KindSurveyCreated  Kind = "SURVEY_CREATED"
	KindSurveyClosed   Kind = "SURVEY_CLOSED"
	KindVoteCreated    Kind = "VOTE_CREATED"
	KindVoteClosed     Kind = "VOTE_CLOSED"
)

// Notification is an in-app message for a single user. Delivery is
// fire-and-forget: producers log failures and move on.
type Notification struct {
	ID        id.NotificationID
	UserID    id.UserID
	Kind      Kind
	Title     string
	Message   string
	Payload   map[string]any
	CreatedAt time.Time
	ReadAt    *time.Time
}
