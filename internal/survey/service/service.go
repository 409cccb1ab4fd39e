// Package service implements the survey engine: one survey per trip,
// idempotent response upsert, and synchronous quorum auto-close.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pcettina/OutTheGroupchat-sub001/internal/audit"
	membershipmodels "github.com/pcettina/OutTheGroupchat-sub001/internal/membership/models"
	notifmodels "github.com/pcettina/OutTheGroupchat-sub001/internal/notification/models"
	surveymetrics "github.com/pcettina/OutTheGroupchat-sub001/internal/survey/metrics"
	"github.com/pcettina/OutTheGroupchat-sub001/internal/survey/models"
	tripservice "github.com/pcettina/OutTheGroupchat-sub001/internal/trip/service"
	id "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain"
	dErrors "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain-errors"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/platform/sentinel"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/requestcontext"
)

// Store is the survey persistence contract. Submit runs the
// upsert-recount-close sequence atomically with respect to other submitters.
type Store interface {
	Create(ctx context.Context, survey *models.Survey) error
	FindByTrip(ctx context.Context, tripID id.TripID) (*models.Survey, error)
	Submit(ctx context.Context, surveyID id.SurveyID, response models.Response,
		quorum func(context.Context) (int, error)) (bool, error)
	ListResponses(ctx context.Context, surveyID id.SurveyID) ([]models.Response, error)
}

// MembershipStore is the membership slice the engine needs: authorization,
// the quorum denominator, and the notification fan-out list.
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
	MarkSurveying(ctx context.Context, tripID id.TripID) tripservice.Advisory
}

// Service is the survey engine.
type Service struct {
	surveys     Store
	memberships MembershipStore
	notifier    Notifier
	lifecycle   Lifecycle
	auditor     *audit.Publisher
	metrics     *surveymetrics.Metrics
	logger      *slog.Logger
	tracer      trace.Tracer
}

func NewService(
	surveys Store,
	memberships MembershipStore,
	notifier Notifier,
	lifecycle Lifecycle,
	auditor *audit.Publisher,
	metrics *surveymetrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		surveys:     surveys,
		memberships: memberships,
		notifier:    notifier,
		lifecycle:   lifecycle,
		auditor:     auditor,
		metrics:     metrics,
		logger:      logger,
		tracer:      otel.Tracer("survey"),
	}
}

// CreateResult pairs the persisted survey with the advisory status outcome.
type CreateResult struct {
	Survey         *models.Survey
	StatusAdvisory tripservice.Advisory
}

// Create persists an ACTIVE survey for the trip. A trip holds at most one
// survey ever, regardless of its status. On success the trip is moved to
// SURVEYING (advisory) and every other member is notified.
func (s *Service) Create(ctx context.Context, tripID id.TripID, actorID id.UserID, title string, questions []models.Question, ttl time.Duration) (*CreateResult, error) {
	ctx, span := s.tracer.Start(ctx, "survey.Create",
		trace.WithAttributes(attribute.String("trip_id", tripID.String())))
	defer span.End()

	if title == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "survey title is required")
	}
	if len(questions) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "a survey needs at least one question")
	}
	if ttl <= 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "survey ttl must be positive")
	}
	seen := make(map[string]struct{}, len(questions))
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[q.ID]; dup {
			return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("duplicate question id %q", q.ID))
		}
		seen[q.ID] = struct{}{}
	}

	if err := s.requireManager(ctx, tripID, actorID); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	survey := &models.Survey{
		ID:        id.NewSurveyID(),
		TripID:    tripID,
		Title:     title,
		Status:    models.StatusActive,
		Questions: questions,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := s.surveys.Create(ctx, survey); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "this trip already has a survey")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create survey")
	}
	s.metrics.IncSurveysCreated()

	advisory := s.lifecycle.MarkSurveying(ctx, tripID)

	s.notifyMembers(ctx, tripID, actorID, notifmodels.KindSurveyCreated,
		"New trip survey",
		fmt.Sprintf("The survey %q is open; share your preferences", title),
		map[string]any{
			"trip_id":   tripID.String(),
			"survey_id": survey.ID.String(),
		})
	s.auditor.Emit(ctx, audit.Event{
		TripID:  tripID,
		ActorID: actorID,
		Action:  audit.ActionSurveyCreated,
		Subject: survey.ID.String(),
	})

	return &CreateResult{Survey: survey, StatusAdvisory: advisory}, nil
}

// Get returns the trip's survey.
func (s *Service) Get(ctx context.Context, tripID id.TripID, actorID id.UserID) (*models.Survey, error) {
	if _, err := s.memberships.RoleOf(ctx, tripID, actorID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "not a member of this trip")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check membership")
	}
	survey, err := s.surveys.FindByTrip(ctx, tripID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "this trip has no survey")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load survey")
	}
	return survey, nil
}

// SubmitResult reports whether this submission closed the survey.
type SubmitResult struct {
	Response models.Response
	Closed   bool
}

// SubmitResponse upserts the member's answers and closes the survey once
// every member has responded. Answers are validated against the question
// definitions before anything is written; a mismatch is never partially
// applied. Resubmission by the same member replaces the earlier answers and
// cannot close an already-closed survey.
func (s *Service) SubmitResponse(ctx context.Context, tripID id.TripID, userID id.UserID, raw map[string]json.RawMessage) (*SubmitResult, error) {
	ctx, span := s.tracer.Start(ctx, "survey.SubmitResponse",
		trace.WithAttributes(attribute.String("trip_id", tripID.String())))
	defer span.End()

	if _, err := s.memberships.RoleOf(ctx, tripID, userID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "only members can respond to the survey")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check membership")
	}

	survey, err := s.surveys.FindByTrip(ctx, tripID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "this trip has no survey")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load survey")
	}
	if survey.Status != models.StatusActive {
		return nil, dErrors.New(dErrors.CodeInvalidState, "survey is no longer accepting responses")
	}

	answers := make(map[string]models.Answer, len(raw))
	for questionID, value := range raw {
		question, ok := survey.QuestionByID(questionID)
		if !ok {
			return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown question %q", questionID))
		}
		answer, err := models.ParseAnswer(question, value)
		if err != nil {
			return nil, err
		}
		answers[questionID] = answer
	}
	if len(answers) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "a response needs at least one answer")
	}

	// The member count is read by the store inside its atomic section, so a
	// membership added concurrently cannot race the close against a stale
	// denominator.
	var quorum int
	countMembers := func(ctx context.Context) (int, error) {
		n, err := s.memberships.CountMembers(ctx, tripID)
		if err != nil {
			return 0, err
		}
		quorum = n
		return n, nil
	}

	response := models.Response{
		SurveyID:    survey.ID,
		UserID:      userID,
		Answers:     answers,
		SubmittedAt: requestcontext.Now(ctx),
	}
	closed, err := s.surveys.Submit(ctx, survey.ID, response, countMembers)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "this trip has no survey")
		case errors.Is(err, sentinel.ErrInvalidState):
			return nil, dErrors.New(dErrors.CodeInvalidState, "survey is no longer accepting responses")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store survey response")
		}
	}
	s.metrics.IncResponsesSubmitted()

	if closed {
		s.metrics.IncSurveysClosed()
		s.logger.InfoContext(ctx, "survey closed at quorum",
			"trip_id", tripID,
			"survey_id", survey.ID,
			"quorum", quorum,
		)
		s.notifyMembers(ctx, tripID, id.UserID{}, notifmodels.KindSurveyClosed,
			"Survey closed",
			fmt.Sprintf("Everyone has responded to %q", survey.Title),
			map[string]any{
				"trip_id":   tripID.String(),
				"survey_id": survey.ID.String(),
			})
		s.auditor.Emit(ctx, audit.Event{
			TripID:  tripID,
			ActorID: userID,
			Action:  audit.ActionSurveyClosed,
			Subject: survey.ID.String(),
		})
	}

	return &SubmitResult{Response: response, Closed: closed}, nil
}

// Responses lists the survey's responses for organizers.
func (s *Service) Responses(ctx context.Context, tripID id.TripID, actorID id.UserID) ([]models.Response, error) {
	if err := s.requireManager(ctx, tripID, actorID); err != nil {
		return nil, err
	}
	survey, err := s.surveys.FindByTrip(ctx, tripID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "this trip has no survey")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load survey")
	}
	responses, err := s.surveys.ListResponses(ctx, survey.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list responses")
	}
	return responses, nil
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

// notifyMembers fans a notification out to every member except the actor.
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
