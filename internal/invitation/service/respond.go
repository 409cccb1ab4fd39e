package service

import (
	"context"
	"errors"

	"github.com/pcettina/OutTheGroupchat-sub001/internal/audit"
	"github.com/pcettina/OutTheGroupchat-sub001/internal/invitation/models"
	membershipmodels "github.com/pcettina/OutTheGroupchat-sub001/internal/membership/models"
	id "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain"
	dErrors "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain-errors"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/platform/sentinel"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/requestcontext"
)

// Accept moves a PENDING, unexpired invitation to ACCEPTED and creates a
// MEMBER membership for the invitee. The status flip and the membership write
// land in the store's atomic section, so neither persists without the other.
// An invitation past its deadline is marked EXPIRED on access and the accept
// fails.
func (s *Service) Accept(ctx context.Context, invitationID id.InvitationID, userID id.UserID) (*models.Invitation, error) {
	inv, err := s.respond(ctx, invitationID, userID, models.StatusAccepted,
		func(ctx context.Context, i *models.Invitation) error {
			if i.Status != models.StatusAccepted {
				return nil
			}
			err := s.memberships.Add(ctx, membershipmodels.Membership{
				TripID:   i.TripID,
				UserID:   userID,
				Role:     membershipmodels.RoleMember,
				JoinedAt: requestcontext.Now(ctx),
			})
			if err != nil && !errors.Is(err, sentinel.ErrConflict) {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create membership")
			}
			return nil
		})
	if err != nil {
		return nil, err
	}

	s.auditor.Emit(ctx, audit.Event{
		TripID:  inv.TripID,
		ActorID: userID,
		Action:  audit.ActionInvitationAccepted,
		Subject: inv.ID.String(),
	})
	return inv, nil
}

// Decline moves a PENDING, unexpired invitation to DECLINED.
func (s *Service) Decline(ctx context.Context, invitationID id.InvitationID, userID id.UserID) (*models.Invitation, error) {
	inv, err := s.respond(ctx, invitationID, userID, models.StatusDeclined, nil)
	if err != nil {
		return nil, err
	}
	s.auditor.Emit(ctx, audit.Event{
		TripID:  inv.TripID,
		ActorID: userID,
		Action:  audit.ActionInvitationDeclined,
		Subject: inv.ID.String(),
	})
	return inv, nil
}

func (s *Service) respond(ctx context.Context, invitationID id.InvitationID, userID id.UserID, to models.Status,
	post func(context.Context, *models.Invitation) error) (*models.Invitation, error) {
	now := requestcontext.Now(ctx)
	expired := false

	inv, err := s.invitations.Execute(ctx, invitationID,
		func(i *models.Invitation) error {
			if i.UserID != userID {
				return dErrors.New(dErrors.CodeForbidden, "invitation belongs to another user")
			}
			if i.Status != models.StatusPending {
				return dErrors.New(dErrors.CodeInvalidState, "invitation is no longer pending")
			}
			if i.ExpiredAt(now) {
				expired = true
				return nil // fall through to mutate: mark the row EXPIRED
			}
			return nil
		},
		func(i *models.Invitation) {
			if expired {
				i.Status = models.StatusExpired
			} else {
				i.Status = to
			}
			i.UpdatedAt = now
		},
		post,
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "invitation not found")
		}
		if dErrors.HasCode(err, dErrors.CodeForbidden) || dErrors.HasCode(err, dErrors.CodeInvalidState) ||
			dErrors.HasCode(err, dErrors.CodeInternal) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update invitation")
	}
	if expired {
		return nil, dErrors.New(dErrors.CodeExpired, "invitation has expired")
	}
	return inv, nil
}
