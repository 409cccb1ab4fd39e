package service

import (
	"time"

	"github.com/pcettina/OutTheGroupchat-sub001/internal/invitation/models"
	membershipmodels "github.com/pcettina/OutTheGroupchat-sub001/internal/membership/models"
	id "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain"
	dErrors "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain-errors"
)

func (s *InvitationServiceSuite) inviteOnTrip(tripID id.TripID, address string) {
	s.Require().NoError(s.memberships.Add(s.ctx, membershipmodels.Membership{
		TripID: tripID,
		UserID: s.inviter,
		Role:   membershipmodels.RoleOwner,
	}))
	_, err := s.service.Invite(s.ctx, tripID, s.inviter, []string{address}, 7*24*time.Hour)
	s.Require().NoError(err)
}

// TestPromotionIsExhaustive converts every live placeholder for the email and
// deletes the sources.
func (s *InvitationServiceSuite) TestPromotionIsExhaustive() {
	trips := []id.TripID{s.tripID, id.NewTripID(), id.NewTripID()}
	s.invite("newcomer@example.com")
	s.inviteOnTrip(trips[1], "newcomer@example.com")
	s.inviteOnTrip(trips[2], "newcomer@example.com")

	newUser := s.addAccount("newcomer@example.com")
	promoted, err := s.service.PromotePending(s.ctx, "newcomer@example.com", newUser)
	s.Require().NoError(err)
	s.Equal(3, promoted)

	placeholders, err := s.pending.ListByEmail(s.ctx, "newcomer@example.com")
	s.Require().NoError(err)
	s.Empty(placeholders)

	for _, tripID := range trips {
		inv, err := s.invitations.FindByTripAndUser(s.ctx, tripID, newUser)
		s.Require().NoError(err)
		s.Equal(models.StatusPending, inv.Status)
	}
	s.Equal(3, s.notifier.sentTo(newUser))
}

func (s *InvitationServiceSuite) TestPromotionSkipsExpiredPlaceholders() {
	_, _, err := s.pending.UpsertRefresh(s.ctx, models.PendingInvitation{
		Email:     "stale@example.com",
		TripID:    s.tripID,
		InvitedBy: s.inviter,
		ExpiresAt: s.now.Add(-time.Minute),
		CreatedAt: s.now.Add(-48 * time.Hour),
	})
	s.Require().NoError(err)

	newUser := s.addAccount("stale@example.com")
	promoted, err := s.service.PromotePending(s.ctx, "stale@example.com", newUser)
	s.Require().NoError(err)
	s.Equal(0, promoted)

	_, err = s.invitations.FindByTripAndUser(s.ctx, s.tripID, newUser)
	s.Require().Error(err)
}

func (s *InvitationServiceSuite) TestPromotionReplayIsNoOp() {
	s.invite("newcomer@example.com")
	newUser := s.addAccount("newcomer@example.com")

	promoted, err := s.service.PromotePending(s.ctx, "newcomer@example.com", newUser)
	s.Require().NoError(err)
	s.Equal(1, promoted)

	promoted, err = s.service.PromotePending(s.ctx, "newcomer@example.com", newUser)
	s.Require().NoError(err)
	s.Equal(0, promoted)
}

func (s *InvitationServiceSuite) TestPromotionRequiresUserID() {
	_, err := s.service.PromotePending(s.ctx, "whoever@example.com", id.UserID{})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}
