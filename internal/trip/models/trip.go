package models

import (
	"time"

	id "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain"
)

// Status is the coarse-grained planning stage of a trip. It is an advisory
// progress indicator, not a gate: engines advance it as a side effect of
// their milestones and never block on it.
type Status string

const (
	StatusPlanning   Status = "PLANNING"
	StatusInviting   Status = "INVITING"
	StatusSurveying  Status = "SURVEYING"
	StatusVoting     Status = "VOTING"
	StatusBooked     Status = "BOOKED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Trip is the aggregate the lifecycle controller owns. Member data lives in
// the membership store; deletion is an external collaborator concern.
type Trip struct {
	ID        id.TripID
	Title     string
	OwnerID   id.UserID
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTrip constructs a trip in PLANNING.
func NewTrip(tripID id.TripID, title string, ownerID id.UserID, now time.Time) *Trip {
	return &Trip{
		ID:        tripID,
		Title:     title,
		OwnerID:   ownerID,
		Status:    StatusPlanning,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
