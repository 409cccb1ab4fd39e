package audit

import (
	"time"

	id "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain"
)

// Action names a coordination milestone worth an audit trail entry.
type Action string

const (
	ActionInvitationSent       Action = "invitation_sent"
	ActionInvitationPromoted   Action = "invitation_promoted"
	ActionInvitationAccepted   Action = "invitation_accepted"
	ActionInvitationDeclined   Action = "invitation_declined"
	ActionSurveyCreated        Action = "survey_created"
	ActionSurveyClosed         Action = "survey_closed"
	ActionVotingSessionCreated Action = "voting_session_created"
	ActionVotingSessionClosed  Action = "voting_session_closed"
	ActionTripStatusAdvanced   Action = "trip_status_advanced"
	ActionTripCancelled        Action = "trip_cancelled"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time
	TripID    id.TripID
	ActorID   id.UserID
	Action    Action
	// Subject identifies what was acted on when it is not the trip itself
	// (an email address, a survey ID, a session ID).
	Subject   string
	RequestID string
	// Device describes the client surface the actor used, when known.
	Device string
}
