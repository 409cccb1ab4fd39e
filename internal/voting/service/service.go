// Package service implements the voting engine: multi-session ballots with
// vote upsert by (session, voter, option), lazy expiry, and quorum
// auto-close.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pcettina/OutTheGroupchat-sub001/internal/audit"
	membershipmodels "github.com/pcettina/OutTheGroupchat-sub001/internal/membership/models"
	notifmodels "github.com/pcettina/OutTheGroupchat-sub001/internal/notification/models"
	tripservice "github.com/pcettina/OutTheGroupchat-sub001/internal/trip/service"
	votingmetrics "github.com/pcettina/OutTheGroupchat-sub001/internal/voting/metrics"
	"github.com/pcettina/OutTheGroupchat-sub001/internal/voting/models"
	id "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain"
	dErrors "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain-errors"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/platform/sentinel"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/requestcontext"
)

// Store is the voting persistence contract. CastAndCount runs the
// cast-recount-close sequence atomically with respect to other voters.
type Store interface {
	Create(ctx context.Context, session *models.VotingSession) error
	FindByID(ctx context.Context, sessionID id.SessionID) (*models.VotingSession, error)
	ListByTrip(ctx context.Context, tripID id.TripID) ([]*models.VotingSession, error)
	CastAndCount(ctx context.Context, sessionID id.SessionID, vote models.Vote,
		quorum func(context.Context) (int, error)) (bool, error)
	ListVotes(ctx context.Context, sessionID id.SessionID) ([]models.Vote, error)
	MarkClosed(ctx context.Context, sessionID id.SessionID) error
}

// MembershipStore is the membership slice the engine needs.
type MembershipStore interface {
	RoleOf(ctx context.Context, tripID id.TripID, userID id.UserID) (membershipmodels.Role, error)
	CountMembers(ctx context.Context, tripID id.TripID) (int, error)
	ListUserIDs(ctx context.Context, tripID id.TripID) ([]id.UserID, error)
}

// Notifier is the fire-and-forget notification surface.
type Notifier interface {
	NotifyAll(ctx context.Context, userIDs []id.UserID, kind notifmodels.Kind, title, message string, payload map[string]any)
}

// Lifecycle is the advisory trip-status surface.
type Lifecycle interface {
	MarkVoting(ctx context.Context, tripID id.TripID) tripservice.Advisory
}

// Service is the voting engine.
type Service struct {
	sessions    Store
	memberships MembershipStore
	notifier    Notifier
	lifecycle   Lifecycle
	auditor     *audit.Publisher
	metrics     *votingmetrics.Metrics
	logger      *slog.Logger
	tracer      trace.Tracer
}

func NewService(
	sessions Store,
	memberships MembershipStore,
	notifier Notifier,
	lifecycle Lifecycle,
	auditor *audit.Publisher,
	metrics *votingmetrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		sessions:    sessions,
		memberships: memberships,
		notifier:    notifier,
		lifecycle:   lifecycle,
		auditor:     auditor,
		metrics:     metrics,
		logger:      logger,
		tracer:      otel.Tracer("voting"),
	}
}

// CreateResult pairs the persisted session with the advisory status outcome.
type CreateResult struct {
	Session        *models.VotingSession
	StatusAdvisory tripservice.Advisory
}

// Create persists an ACTIVE voting session. A trip can run any number of
// sessions. On success the trip is moved to VOTING (advisory) and every
// other member is notified.
func (s *Service) Create(ctx context.Context, tripID id.TripID, actorID id.UserID, sessionType models.SessionType, title string, options []models.Option, ttl time.Duration) (*CreateResult, error) {
	ctx, span := s.tracer.Start(ctx, "voting.Create",
		trace.WithAttributes(attribute.String("trip_id", tripID.String())))
	defer span.End()

	if title == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "session title is required")
	}
	if !sessionType.Valid() {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown session type %q", sessionType))
	}
	if len(options) < 2 {
		return nil, dErrors.New(dErrors.CodeValidation, "a session needs at least two options")
	}
	if ttl <= 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "session ttl must be positive")
	}
	seen := make(map[string]struct{}, len(options))
	for _, o := range options {
		if o.ID == "" {
			return nil, dErrors.New(dErrors.CodeValidation, "option id is required")
		}
		if o.Title == "" {
			return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("option %q has no title", o.ID))
		}
		if _, dup := seen[o.ID]; dup {
			return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("duplicate option id %q", o.ID))
		}
		seen[o.ID] = struct{}{}
	}

	if err := s.requireManager(ctx, tripID, actorID); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	session := &models.VotingSession{
		ID:        id.NewSessionID(),
		TripID:    tripID,
		Type:      sessionType,
		Title:     title,
		Status:    models.StatusActive,
		Options:   options,
		CreatedBy: actorID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create voting session")
	}
	s.metrics.IncSessionsCreated()

	advisory := s.lifecycle.MarkVoting(ctx, tripID)

	s.notifyMembers(ctx, tripID, actorID, notifmodels.KindVoteCreated,
		"New vote",
		fmt.Sprintf("Voting is open on %q", title),
		map[string]any{
			"trip_id":    tripID.String(),
			"session_id": session.ID.String(),
		})
	s.auditor.Emit(ctx, audit.Event{
		TripID:  tripID,
		ActorID: actorID,
		Action:  audit.ActionVotingSessionCreated,
		Subject: session.ID.String(),
	})

	return &CreateResult{Session: session, StatusAdvisory: advisory}, nil
}

// CastResult reports whether this cast closed the session.
type CastResult struct {
	Vote   models.Vote
	Closed bool
}

// CastVote upserts the voter's vote for one option and closes the session
// once every member has voted. A session past its deadline is closed on
// access and the cast fails as expired.
func (s *Service) CastVote(ctx context.Context, sessionID id.SessionID, voterID id.UserID, optionID string, rank *int) (*CastResult, error) {
	ctx, span := s.tracer.Start(ctx, "voting.CastVote",
		trace.WithAttributes(attribute.String("session_id", sessionID.String())))
	defer span.End()

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "voting session not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load voting session")
	}

	if _, err := s.memberships.RoleOf(ctx, session.TripID, voterID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "only members can vote")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check membership")
	}
	if session.Status != models.StatusActive {
		return nil, dErrors.New(dErrors.CodeInvalidState, "voting session is closed")
	}
	// Options are immutable after creation, so validating against this
	// snapshot is race-free.
	if !session.HasOption(optionID) {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("option %q is not part of this session", optionID))
	}

	// The member count is read by the store inside its atomic section, so a
	// membership added concurrently cannot race the close against a stale
	// denominator.
	var quorum int
	countMembers := func(ctx context.Context) (int, error) {
		n, err := s.memberships.CountMembers(ctx, session.TripID)
		if err != nil {
			return 0, err
		}
		quorum = n
		return n, nil
	}

	vote := models.Vote{
		SessionID: sessionID,
		VoterID:   voterID,
		OptionID:  optionID,
		Rank:      rank,
		CastAt:    requestcontext.Now(ctx),
	}
	closed, err := s.sessions.CastAndCount(ctx, sessionID, vote, countMembers)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "voting session not found")
		case errors.Is(err, sentinel.ErrInvalidState):
			return nil, dErrors.New(dErrors.CodeInvalidState, "voting session is closed")
		case errors.Is(err, sentinel.ErrExpired):
			s.metrics.IncClosedByExpiry()
			s.notifyClosed(ctx, session, voterID)
			return nil, dErrors.New(dErrors.CodeExpired, "voting session has expired")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store vote")
		}
	}
	s.metrics.IncVotesCast()

	if closed {
		s.metrics.IncClosedByQuorum()
		s.logger.InfoContext(ctx, "voting session closed at quorum",
			"trip_id", session.TripID,
			"session_id", sessionID,
			"quorum", quorum,
		)
		s.notifyClosed(ctx, session, voterID)
	}

	return &CastResult{Vote: vote, Closed: closed}, nil
}

// Tally computes the derived result view: per-option counts and percentages
// of total vote rows, ordered by descending count with ties broken by the
// options' declared order. A session found past its deadline is closed here
// as a side effect; the tally is still returned.
func (s *Service) Tally(ctx context.Context, sessionID id.SessionID, actorID id.UserID) (*models.Tally, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "voting session not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load voting session")
	}

	if _, err := s.memberships.RoleOf(ctx, session.TripID, actorID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "only members can view the tally")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check membership")
	}

	if session.Status == models.StatusActive && session.Expired(requestcontext.Now(ctx)) {
		if err := s.sessions.MarkClosed(ctx, sessionID); err != nil {
			s.logger.WarnContext(ctx, "failed to close expired session on read",
				"session_id", sessionID,
				"error", err,
			)
		} else {
			session.Status = models.StatusClosed
			s.metrics.IncClosedByExpiry()
		}
	}

	votes, err := s.sessions.ListVotes(ctx, sessionID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list votes")
	}
	return buildTally(session, votes), nil
}

// ListByTrip returns the trip's voting sessions for members.
func (s *Service) ListByTrip(ctx context.Context, tripID id.TripID, actorID id.UserID) ([]*models.VotingSession, error) {
	if _, err := s.memberships.RoleOf(ctx, tripID, actorID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "not a member of this trip")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check membership")
	}
	sessions, err := s.sessions.ListByTrip(ctx, tripID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list voting sessions")
	}
	return sessions, nil
}

// buildTally derives the result view from the session's declared options and
// the raw vote rows. Deterministic: count desc, then declared option order.
func buildTally(session *models.VotingSession, votes []models.Vote) *models.Tally {
	counts := make(map[string]int, len(session.Options))
	voters := make(map[id.UserID]struct{})
	for _, v := range votes {
		counts[v.OptionID]++
		voters[v.VoterID] = struct{}{}
	}
	total := len(votes)

	declared := make(map[string]int, len(session.Options))
	rows := make([]models.OptionTally, 0, len(session.Options))
	for i, option := range session.Options {
		declared[option.ID] = i
		count := counts[option.ID]
		percentage := 0
		if total > 0 {
			percentage = int(math.Round(float64(count) / float64(total) * 100))
		}
		rows = append(rows, models.OptionTally{Option: option, Count: count, Percentage: percentage})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return declared[rows[i].Option.ID] < declared[rows[j].Option.ID]
	})

	return &models.Tally{
		SessionID:  session.ID,
		Status:     session.Status,
		Options:    rows,
		TotalVotes: total,
		Turnout:    len(voters),
	}
}

func (s *Service) requireManager(ctx context.Context, tripID id.TripID, actorID id.UserID) error {
	role, err := s.memberships.RoleOf(ctx, tripID, actorID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeUnauthorized, "not a member of this trip")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check membership")
	}
	if !role.CanManage() {
		return dErrors.New(dErrors.CodeUnauthorized, "only owners and admins can do this")
	}
	return nil
}

func (s *Service) notifyClosed(ctx context.Context, session *models.VotingSession, actorID id.UserID) {
	s.notifyMembers(ctx, session.TripID, actorID, notifmodels.KindVoteClosed,
		"Vote closed",
		fmt.Sprintf("Voting on %q has ended", session.Title),
		map[string]any{
			"trip_id":    session.TripID.String(),
			"session_id": session.ID.String(),
		})
	s.auditor.Emit(ctx, audit.Event{
		TripID:  session.TripID,
		ActorID: actorID,
		Action:  audit.ActionVotingSessionClosed,
		Subject: session.ID.String(),
	})
}

func (s *Service) notifyMembers(ctx context.Context, tripID id.TripID, actorID id.UserID, kind notifmodels.Kind, title, message string, payload map[string]any) {
	members, err := s.memberships.ListUserIDs(ctx, tripID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to list members for notification",
			"trip_id", tripID,
			"error", err,
		)
		return
	}
	recipients := members[:0:0]
	for _, userID := range members {
		if userID != actorID {
			recipients = append(recipients, userID)
		}
	}
	s.notifier.NotifyAll(ctx, recipients, kind, title, message, payload)
}
