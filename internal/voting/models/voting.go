package models

import (
	"time"

	id "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain"
)

// Status of a voting session. CLOSED is terminal whether reached by quorum
// or by expiry.
type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusClosed Status = "CLOSED"
)

// SessionType labels what the group is deciding.
type SessionType string

const (
	TypeDestination   SessionType = "DESTINATION"
	TypeActivity      SessionType = "ACTIVITY"
	TypeDate          SessionType = "DATE"
	TypeAccommodation SessionType = "ACCOMMODATION"
	TypeCustom        SessionType = "CUSTOM"
)

// Valid reports whether t is a known session type.
func (t SessionType) Valid() bool {
	switch t {
	case TypeDestination, TypeActivity, TypeDate, TypeAccommodation, TypeCustom:
		return true
	}
	return false
}

// Option is one choice within a session. Declared order matters: it is the
// tally tiebreak.
type Option struct {
	ID          string
	Title       string
	Description string
}

// VotingSession is one decision round. A trip can run many sessions, serially
// or in parallel.
type VotingSession struct {
	ID        id.SessionID
	TripID    id.TripID
	Type      SessionType
	Title     string
	Status    Status
	Options   []Option
	CreatedBy id.UserID
	ExpiresAt time.Time
	CreatedAt time.Time
	ClosedAt  *time.Time
}

// Expired reports whether the session's deadline has passed. Expiry is
// discovered lazily on access, there is no timer.
func (s *VotingSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// HasOption reports whether optionID is among the session's options.
func (s *VotingSession) HasOption(optionID string) bool {
	for _, o := range s.Options {
		if o.ID == optionID {
			return true
		}
	}
	return false
}

// Vote is keyed by (session, voter, option): one voter can hold votes on
// several options, which is what lets the same shape serve single-choice,
// multi-select, and ranked sessions. Rank is nil for unranked votes.
type Vote struct {
	SessionID id.SessionID
	VoterID   id.UserID
	OptionID  string
	Rank      *int
	CastAt    time.Time
}

// OptionTally is one row of a tally view.
type OptionTally struct {
	Option     Option
	Count      int
	Percentage int
}

// Tally is the derived result view for a session. TotalVotes counts vote
// rows; Turnout counts distinct voters.
type Tally struct {
	SessionID  id.SessionID
	Status     Status
	Options    []OptionTally
	TotalVotes int
	Turnout    int
}
