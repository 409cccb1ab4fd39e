// Package service implements the invitation reconciler: it resolves each
// invited email to an account or a placeholder, keeps the two invitation
// shapes mutually exclusive per (trip, identity), and promotes placeholders
// when accounts appear.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pcettina/OutTheGroupchat-sub001/internal/audit"
	invmetrics "github.com/pcettina/OutTheGroupchat-sub001/internal/invitation/metrics"
	"github.com/pcettina/OutTheGroupchat-sub001/internal/invitation/models"
	"github.com/pcettina/OutTheGroupchat-sub001/internal/mailer"
	membershipmodels "github.com/pcettina/OutTheGroupchat-sub001/internal/membership/models"
	notifmodels "github.com/pcettina/OutTheGroupchat-sub001/internal/notification/models"
	tripservice "github.com/pcettina/OutTheGroupchat-sub001/internal/trip/service"
	id "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain"
	dErrors "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain-errors"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/email"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/platform/sentinel"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/requestcontext"
)

// InvitationStore persists durable invitations keyed by (trip, user).
type InvitationStore interface {
	Upsert(ctx context.Context, inv models.Invitation) (models.Invitation, bool, error)
	FindByID(ctx context.Context, invitationID id.InvitationID) (*models.Invitation, error)
	FindByTripAndUser(ctx context.Context, tripID id.TripID, userID id.UserID) (*models.Invitation, error)
	Execute(ctx context.Context, invitationID id.InvitationID,
		validate func(*models.Invitation) error,
		mutate func(*models.Invitation),
		post func(context.Context, *models.Invitation) error) (*models.Invitation, error)
}

// PendingStore persists placeholder invitations keyed by (email, trip).
type PendingStore interface {
	UpsertRefresh(ctx context.Context, p models.PendingInvitation) (models.PendingInvitation, bool, error)
	ListByEmail(ctx context.Context, address string) ([]models.PendingInvitation, error)
	Delete(ctx context.Context, address string, tripID id.TripID) error
}

// MembershipStore is the read/write slice of membership the reconciler needs.
type MembershipStore interface {
	RoleOf(ctx context.Context, tripID id.TripID, userID id.UserID) (membershipmodels.Role, error)
	Add(ctx context.Context, m membershipmodels.Membership) error
}

// Accounts resolves emails to user IDs and back.
type Accounts interface {
	FindByEmail(ctx context.Context, address string) (id.UserID, error)
	EmailOf(ctx context.Context, userID id.UserID) (string, error)
}

// Notifier is the fire-and-forget notification surface.
type Notifier interface {
	Notify(ctx context.Context, userID id.UserID, kind notifmodels.Kind, title, message string, payload map[string]any)
}

// Lifecycle is the advisory trip-status surface.
type Lifecycle interface {
	MarkInviting(ctx context.Context, tripID id.TripID) tripservice.Advisory
	Get(ctx context.Context, tripID id.TripID) (TripInfo, error)
}

// TripInfo is the slice of trip data invitations need for email copy.
type TripInfo struct {
	ID    id.TripID
	Title string
}

// Outcome classifies what happened for one email in a batch invite.
type Outcome string

const (
	OutcomeAlreadyMember    Outcome = "ALREADY_MEMBER"
	OutcomeInvited          Outcome = "INVITED"
	OutcomeRefreshed        Outcome = "REFRESHED"
	OutcomePendingCreated   Outcome = "PENDING_CREATED"
	OutcomePendingRefreshed Outcome = "PENDING_REFRESHED"
)

// EmailResult is the per-email success entry in an invite report.
type EmailResult struct {
	Email     string
	Outcome   Outcome
	Delivery  mailer.Delivery
	ExpiresAt time.Time
}

// EmailError is the per-email failure entry; one email failing never aborts
// the rest of the batch.
type EmailError struct {
	Email string
	Err   error
}

// InviteReport is the aggregate outcome of one invite call. The call itself
// succeeds as long as the batch was processed, regardless of per-item errors.
type InviteReport struct {
	Results []EmailResult
	Errors  []EmailError
	// StatusAdvisory records whether the PLANNING -> INVITING side effect
	// landed; callers must not treat a miss as a failure.
	StatusAdvisory tripservice.Advisory
}

// Service is the invitation reconciler.
type Service struct {
	invitations InvitationStore
	pending     PendingStore
	memberships MembershipStore
	accounts    Accounts
	notifier    Notifier
	lifecycle   Lifecycle
	sender      mailer.Sender
	auditor     *audit.Publisher
	metrics     *invmetrics.Metrics
	logger      *slog.Logger
}

func NewService(
	invitations InvitationStore,
	pending PendingStore,
	memberships MembershipStore,
	accounts Accounts,
	notifier Notifier,
	lifecycle Lifecycle,
	sender mailer.Sender,
	auditor *audit.Publisher,
	metrics *invmetrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		invitations: invitations,
		pending:     pending,
		memberships: memberships,
		accounts:    accounts,
		notifier:    notifier,
		lifecycle:   lifecycle,
		sender:      sender,
		auditor:     auditor,
		metrics:     metrics,
		logger:      logger,
	}
}

// Invite processes each email independently: account holders get a durable
// invitation (or a deadline refresh), unknown emails get a placeholder plus
// an advisory email send. Emails are processed concurrently; per-email
// failures land in the report's Errors list.
func (s *Service) Invite(ctx context.Context, tripID id.TripID, inviterID id.UserID, emails []string, ttl time.Duration) (*InviteReport, error) {
	if len(emails) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "at least one email is required")
	}
	if ttl <= 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invitation ttl must be positive")
	}

	role, err := s.memberships.RoleOf(ctx, tripID, inviterID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "inviter is not a member of this trip")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check inviter role")
	}
	if !role.CanManage() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "only owners and admins can invite")
	}

	trip, err := s.lifecycle.Get(ctx, tripID)
	if err != nil {
		return nil, err
	}

	report := &InviteReport{}
	var mu sync.Mutex

	// Emails have no ordering dependency between each other; run them
	// concurrently and let each record its own outcome or error.
	g, gctx := errgroup.WithContext(ctx)
	for _, address := range emails {
		g.Go(func() error {
			result, err := s.inviteOne(gctx, trip, inviterID, address, ttl)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Errors = append(report.Errors, EmailError{Email: address, Err: err})
				return nil
			}
			report.Results = append(report.Results, result)
			return nil
		})
	}
	// Workers only return nil; Wait is for completion, not errors.
	_ = g.Wait()

	if createdAny(report.Results) {
		report.StatusAdvisory = s.lifecycle.MarkInviting(ctx, tripID)
	}
	return report, nil
}

func createdAny(results []EmailResult) bool {
	for _, r := range results {
		if r.Outcome != OutcomeAlreadyMember {
			return true
		}
	}
	return false
}

func (s *Service) inviteOne(ctx context.Context, trip TripInfo, inviterID id.UserID, address string, ttl time.Duration) (EmailResult, error) {
	normalized := email.Normalize(address)
	if !email.IsValid(normalized) {
		return EmailResult{}, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("invalid email address %q", address))
	}

	now := requestcontext.Now(ctx)
	expiresAt := now.Add(ttl)

	userID, err := s.accounts.FindByEmail(ctx, normalized)
	switch {
	case err == nil:
		return s.inviteAccount(ctx, trip, inviterID, normalized, userID, expiresAt)
	case errors.Is(err, sentinel.ErrNotFound):
		return s.invitePlaceholder(ctx, trip, inviterID, normalized, expiresAt)
	default:
		return EmailResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "account lookup failed")
	}
}

// inviteAccount handles emails that resolve to an account: member check,
// then a durable invitation upsert. Any leftover placeholder for the same
// (email, trip) is removed so the two shapes never coexist.
func (s *Service) inviteAccount(ctx context.Context, trip TripInfo, inviterID id.UserID, address string, userID id.UserID, expiresAt time.Time) (EmailResult, error) {
	_, err := s.memberships.RoleOf(ctx, trip.ID, userID)
	if err == nil {
		return EmailResult{Email: address, Outcome: OutcomeAlreadyMember}, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return EmailResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "membership check failed")
	}

	now := requestcontext.Now(ctx)
	stored, refreshed, err := s.invitations.Upsert(ctx, models.Invitation{
		ID:        id.NewInvitationID(),
		TripID:    trip.ID,
		UserID:    userID,
		InvitedBy: inviterID,
		Status:    models.StatusPending,
		ExpiresAt: expiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return EmailResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store invitation")
	}

	if err := s.pending.Delete(ctx, address, trip.ID); err != nil {
		s.logger.WarnContext(ctx, "failed to clear placeholder after durable invite",
			"trip_id", trip.ID,
			"error", err,
		)
	}

	outcome := OutcomeInvited
	if refreshed {
		outcome = OutcomeRefreshed
	} else {
		s.metrics.IncInvitationsCreated()
		s.notifier.Notify(ctx, userID, notifmodels.KindTripInvitation,
			"You're invited",
			fmt.Sprintf("You've been invited to join %q", trip.Title),
			map[string]any{
				"trip_id":       trip.ID.String(),
				"invitation_id": stored.ID.String(),
				"expires_at":    stored.ExpiresAt,
			})
		s.auditor.Emit(ctx, audit.Event{
			TripID:  trip.ID,
			ActorID: inviterID,
			Action:  audit.ActionInvitationSent,
			Subject: address,
		})
	}

	return EmailResult{Email: address, Outcome: outcome, ExpiresAt: stored.ExpiresAt}, nil
}

// invitePlaceholder handles emails without an account: a placeholder row plus
// an advisory email send. The record is durable before the send is attempted,
// and a failed send never fails the invite.
func (s *Service) invitePlaceholder(ctx context.Context, trip TripInfo, inviterID id.UserID, address string, expiresAt time.Time) (EmailResult, error) {
	stored, refreshed, err := s.pending.UpsertRefresh(ctx, models.PendingInvitation{
		Email:     address,
		TripID:    trip.ID,
		InvitedBy: inviterID,
		ExpiresAt: expiresAt,
		CreatedAt: requestcontext.Now(ctx),
	})
	if err != nil {
		return EmailResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store pending invitation")
	}

	outcome := OutcomePendingCreated
	if refreshed {
		outcome = OutcomePendingRefreshed
	} else {
		s.metrics.IncPendingCreated()
		s.auditor.Emit(ctx, audit.Event{
			TripID:  trip.ID,
			ActorID: inviterID,
			Action:  audit.ActionInvitationSent,
			Subject: address,
		})
	}

	delivery := s.sender.SendInvitation(ctx, mailer.Invitation{
		To:          address,
		TripID:      trip.ID,
		TripTitle:   trip.Title,
		InviterName: s.inviterName(ctx, inviterID),
		ExpiresAt:   stored.ExpiresAt,
	})
	if delivery == mailer.DeliveryFailed {
		s.metrics.IncEmailFailures()
		s.logger.WarnContext(ctx, "invitation email failed",
			"trip_id", trip.ID,
			"request_id", requestcontext.RequestID(ctx),
		)
	}

	return EmailResult{Email: address, Outcome: outcome, Delivery: delivery, ExpiresAt: stored.ExpiresAt}, nil
}

// inviterName derives a display name for email copy from the inviter's own
// address. Profile names belong to the identity provider; the local part of
// the email is good enough for invitation copy.
func (s *Service) inviterName(ctx context.Context, inviterID id.UserID) string {
	address, err := s.accounts.EmailOf(ctx, inviterID)
	if err != nil {
		return "A fellow traveler"
	}
	first, last := email.DeriveNameFromEmail(address)
	return first + " " + last
}
