package models

import (
	"time"

	id "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain"
)

// Status of a durable invitation.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusAccepted Status = "ACCEPTED"
	StatusDeclined Status = "DECLINED"
	StatusExpired  Status = "EXPIRED"
)

// Invitation is a durable invitation addressed to an existing account.
// At most one row exists per (TripID, UserID); re-invites refresh it.
type Invitation struct {
	ID        id.InvitationID
	TripID    id.TripID
	UserID    id.UserID
	InvitedBy id.UserID
	Status    Status
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ExpiredAt reports whether the invitation deadline has passed.
func (i *Invitation) ExpiredAt(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// PendingInvitation is the placeholder used when no account exists for an
// email. It never coexists with a durable Invitation for the same
// (trip, identity): account creation promotes and deletes it.
type PendingInvitation struct {
	Email     string
	TripID    id.TripID
	InvitedBy id.UserID
	ExpiresAt time.Time
	CreatedAt time.Time
}

// ExpiredAt reports whether the placeholder deadline has passed.
func (p *PendingInvitation) ExpiredAt(now time.Time) bool {
	return now.After(p.ExpiresAt)
}
