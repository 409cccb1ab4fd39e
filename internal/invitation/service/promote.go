package service

import (
	"context"
	"fmt"

	"github.com/pcettina/OutTheGroupchat-sub001/internal/audit"
	"github.com/pcettina/OutTheGroupchat-sub001/internal/invitation/models"
	notifmodels "github.com/pcettina/OutTheGroupchat-sub001/internal/notification/models"
	id "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain"
	dErrors "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain-errors"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/requestcontext"
)

// PromotePending converts every live placeholder for an email into a durable
// invitation for the freshly created account, then deletes the placeholder.
// Rows are independent: one failing is logged and skipped, the rest proceed.
// Replaying promotion is a no-op because promoted placeholders no longer
// exist.
func (s *Service) PromotePending(ctx context.Context, address string, newUserID id.UserID) (int, error) {
	if newUserID.IsZero() {
		return 0, dErrors.New(dErrors.CodeBadRequest, "new user id is required")
	}

	placeholders, err := s.pending.ListByEmail(ctx, address)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list pending invitations")
	}

	now := requestcontext.Now(ctx)
	promoted := 0
	for _, p := range placeholders {
		if p.ExpiredAt(now) {
			continue
		}
		if err := s.promoteOne(ctx, p, newUserID); err != nil {
			s.logger.WarnContext(ctx, "pending invitation promotion failed",
				"trip_id", p.TripID,
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
			continue
		}
		promoted++
	}
	return promoted, nil
}

func (s *Service) promoteOne(ctx context.Context, p models.PendingInvitation, newUserID id.UserID) error {
	now := requestcontext.Now(ctx)
	stored, _, err := s.invitations.Upsert(ctx, models.Invitation{
		ID:        id.NewInvitationID(),
		TripID:    p.TripID,
		UserID:    newUserID,
		InvitedBy: p.InvitedBy,
		Status:    models.StatusPending,
		ExpiresAt: p.ExpiresAt, // promotion keeps the placeholder's deadline
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("promote pending invitation: %w", err)
	}

	s.notifier.Notify(ctx, newUserID, notifmodels.KindTripInvitation,
		"You're invited",
		"An invitation was waiting for you",
		map[string]any{
			"trip_id":       p.TripID.String(),
			"invitation_id": stored.ID.String(),
			"expires_at":    stored.ExpiresAt,
		})
	s.auditor.Emit(ctx, audit.Event{
		TripID:  p.TripID,
		ActorID: p.InvitedBy,
		Action:  audit.ActionInvitationPromoted,
		Subject: p.Email,
	})
	s.metrics.IncPendingPromoted()

	// Delete last: if this fails the placeholder survives alongside the
	// durable row and the next promotion pass converges via the upsert.
	if err := s.pending.Delete(ctx, p.Email, p.TripID); err != nil {
		return fmt.Errorf("delete promoted placeholder: %w", err)
	}
	return nil
}
