package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/pcettina/OutTheGroupchat-sub001/internal/audit"
	"github.com/pcettina/OutTheGroupchat-sub001/internal/invitation/models"
	"github.com/pcettina/OutTheGroupchat-sub001/internal/mailer"
	membershipmodels "github.com/pcettina/OutTheGroupchat-sub001/internal/membership/models"
	membershipstore "github.com/pcettina/OutTheGroupchat-sub001/internal/membership/store"
	id "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain"
	dErrors "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain-errors"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/requestcontext"
)

// pendingInvitationFor invites the address and returns the stored row.
func (s *InvitationServiceSuite) pendingInvitationFor(address string) (*models.Invitation, id.UserID) {
	invitee := s.addAccount(address)
	s.invite(address)
	inv, err := s.invitations.FindByTripAndUser(s.ctx, s.tripID, invitee)
	s.Require().NoError(err)
	return inv, invitee
}

func (s *InvitationServiceSuite) TestAcceptCreatesMembership() {
	inv, invitee := s.pendingInvitationFor("friend@example.com")

	accepted, err := s.service.Accept(s.ctx, inv.ID, invitee)
	s.Require().NoError(err)
	s.Equal(models.StatusAccepted, accepted.Status)

	role, err := s.memberships.RoleOf(s.ctx, s.tripID, invitee)
	s.Require().NoError(err)
	s.Equal(membershipmodels.RoleMember, role)
}

// failingMemberships simulates a membership store whose writes are down.
type failingMemberships struct {
	*membershipstore.InMemory
}

func (failingMemberships) Add(context.Context, membershipmodels.Membership) error {
	return errors.New("membership store down")
}

func (s *InvitationServiceSuite) TestAcceptIsAtomicWithMembership() {
	inv, invitee := s.pendingInvitationFor("friend@example.com")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	broken := NewService(
		s.invitations, s.pending, failingMemberships{InMemory: s.memberships}, s.accounts,
		s.notifier, s.lifecycle, mailer.NewLogSender(logger),
		audit.NewPublisher(audit.NewInMemoryStore(), logger),
		nil, logger,
	)

	_, err := broken.Accept(s.ctx, inv.ID, invitee)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	// A failed membership write must not leave an ACCEPTED invitation behind.
	stored, err := s.invitations.FindByID(s.ctx, inv.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, stored.Status)

	// Once the membership store recovers the same accept goes through.
	accepted, err := s.service.Accept(s.ctx, inv.ID, invitee)
	s.Require().NoError(err)
	s.Equal(models.StatusAccepted, accepted.Status)

	role, err := s.memberships.RoleOf(s.ctx, s.tripID, invitee)
	s.Require().NoError(err)
	s.Equal(membershipmodels.RoleMember, role)
}

func (s *InvitationServiceSuite) TestDecline() {
	inv, invitee := s.pendingInvitationFor("friend@example.com")

	declined, err := s.service.Decline(s.ctx, inv.ID, invitee)
	s.Require().NoError(err)
	s.Equal(models.StatusDeclined, declined.Status)

	// Declining leaves no membership behind.
	_, err = s.memberships.RoleOf(s.ctx, s.tripID, invitee)
	s.Require().Error(err)
}

func (s *InvitationServiceSuite) TestRespondAfterDeadline() {
	inv, invitee := s.pendingInvitationFor("friend@example.com")

	late := requestcontext.WithTime(context.Background(), s.now.Add(8*24*time.Hour))
	_, err := s.service.Accept(late, inv.ID, invitee)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeExpired))

	// The row is marked on access, not merely rejected.
	stored, err := s.invitations.FindByID(s.ctx, inv.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusExpired, stored.Status)

	// A later response hits the terminal status, not the expiry path.
	_, err = s.service.Decline(s.ctx, inv.ID, invitee)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *InvitationServiceSuite) TestRespondWrongUser() {
	inv, _ := s.pendingInvitationFor("friend@example.com")

	_, err := s.service.Accept(s.ctx, inv.ID, id.NewUserID())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *InvitationServiceSuite) TestRespondTwice() {
	inv, invitee := s.pendingInvitationFor("friend@example.com")

	_, err := s.service.Accept(s.ctx, inv.ID, invitee)
	s.Require().NoError(err)

	_, err = s.service.Decline(s.ctx, inv.ID, invitee)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *InvitationServiceSuite) TestRespondUnknownInvitation() {
	_, err := s.service.Accept(s.ctx, id.NewInvitationID(), id.NewUserID())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
