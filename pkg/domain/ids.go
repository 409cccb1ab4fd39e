// Package domain defines the typed identifiers shared across the coordination
// engine. Wrapping uuid.UUID in distinct named types makes cross-entity ID
// mixups a compile error instead of a data corruption incident.
package domain

import (
	"github.com/google/uuid"

	dErrors "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain-errors"
)

type (
	// TripID identifies a trip.
	TripID uuid.UUID
	// UserID identifies an account.
	UserID uuid.UUID
	// InvitationID identifies a durable invitation.
	InvitationID uuid.UUID
	// SurveyID identifies a trip survey.
	SurveyID uuid.UUID
	// SessionID identifies a voting session.
	SessionID uuid.UUID
	// NotificationID identifies a notification record.
	NotificationID uuid.UUID
)

func (id TripID) String() string         { return uuid.UUID(id).String() }
func (id UserID) String() string         { return uuid.UUID(id).String() }
func (id InvitationID) String() string   { return uuid.UUID(id).String() }
func (id SurveyID) String() string       { return uuid.UUID(id).String() }
func (id SessionID) String() string      { return uuid.UUID(id).String() }
func (id NotificationID) String() string { return uuid.UUID(id).String() }

func (id TripID) IsZero() bool    { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsZero() bool    { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }

// parseUUID enforces the shared invariant: IDs must be valid, non-empty,
// non-nil UUIDs. All typed parsers funnel through here so behavior cannot
// drift between ID types.
func parseUUID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be empty")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil UUID")
	}
	return parsed, nil
}

func ParseTripID(raw string) (TripID, error) {
	u, err := parseUUID(raw)
	return TripID(u), err
}

func ParseUserID(raw string) (UserID, error) {
	u, err := parseUUID(raw)
	return UserID(u), err
}

func ParseInvitationID(raw string) (InvitationID, error) {
	u, err := parseUUID(raw)
	return InvitationID(u), err
}

func ParseSurveyID(raw string) (SurveyID, error) {
	u, err := parseUUID(raw)
	return SurveyID(u), err
}

func ParseSessionID(raw string) (SessionID, error) {
	u, err := parseUUID(raw)
	return SessionID(u), err
}

func ParseNotificationID(raw string) (NotificationID, error) {
	u, err := parseUUID(raw)
	return NotificationID(u), err
}

func NewTripID() TripID                 { return TripID(uuid.New()) }
func NewUserID() UserID                 { return UserID(uuid.New()) }
func NewInvitationID() InvitationID     { return InvitationID(uuid.New()) }
func NewSurveyID() SurveyID             { return SurveyID(uuid.New()) }
func NewSessionID() SessionID           { return SessionID(uuid.New()) }
func NewNotificationID() NotificationID { return NotificationID(uuid.New()) }
