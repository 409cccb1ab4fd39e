package models

import (
	"time"

	id "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain"
)

// Role is a member's role on a trip.
type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

// CanManage reports whether the role may create invitations, surveys, and
// voting sessions for the trip.
func (r Role) CanManage() bool {
	return r == RoleOwner || r == RoleAdmin
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	}
	return false
}

// Membership ties a user to a trip. The membership count is the quorum
// denominator for surveys and voting sessions.
type Membership struct {
	TripID   id.TripID
	UserID   id.UserID
	Role     Role
	JoinedAt time.Time
}
