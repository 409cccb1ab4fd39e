package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/pcettina/OutTheGroupchat-sub001/internal/audit"
	membershipmodels "github.com/pcettina/OutTheGroupchat-sub001/internal/membership/models"
	membershipstore "github.com/pcettina/OutTheGroupchat-sub001/internal/membership/store"
	notifmodels "github.com/pcettina/OutTheGroupchat-sub001/internal/notification/models"
	"github.com/pcettina/OutTheGroupchat-sub001/internal/survey/models"
	surveystore "github.com/pcettina/OutTheGroupchat-sub001/internal/survey/store"
	tripservice "github.com/pcettina/OutTheGroupchat-sub001/internal/trip/service"
	id "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain"
	dErrors "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain-errors"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/requestcontext"
)

type recordedNotification struct {
	users []id.UserID
	kind  notifmodels.Kind
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []recordedNotification
}

func (f *fakeNotifier) NotifyAll(_ context.Context, userIDs []id.UserID, kind notifmodels.Kind, _, _ string, _ map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, recordedNotification{users: userIDs, kind: kind})
}

func (f *fakeNotifier) byKind(kind notifmodels.Kind) []recordedNotification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedNotification
	for _, n := range f.sent {
		if n.kind == kind {
			out = append(out, n)
		}
	}
	return out
}

type fakeLifecycle struct {
	marked []id.TripID
}

func (f *fakeLifecycle) MarkSurveying(_ context.Context, tripID id.TripID) tripservice.Advisory {
	f.marked = append(f.marked, tripID)
	return tripservice.Advisory{Applied: true, To: "SURVEYING"}
}

type SurveyServiceSuite struct {
	suite.Suite
	ctx         context.Context
	service     *Service
	memberships *membershipstore.InMemory
	notifier    *fakeNotifier
	lifecycle   *fakeLifecycle

	tripID  id.TripID
	owner   id.UserID
	members []id.UserID
}

func TestSurveyServiceSuite(t *testing.T) {
	suite.Run(t, new(SurveyServiceSuite))
}

func (s *SurveyServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))
	s.memberships = membershipstore.NewInMemory()
	s.notifier = &fakeNotifier{}
	s.lifecycle = &fakeLifecycle{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service = NewService(
		surveystore.NewInMemory(),
		s.memberships,
		s.notifier,
		s.lifecycle,
		audit.NewPublisher(audit.NewInMemoryStore(), logger),
		nil,
		logger,
	)

	s.tripID = id.NewTripID()
	s.owner = id.NewUserID()
	s.members = []id.UserID{s.owner, id.NewUserID(), id.NewUserID()}
	for i, userID := range s.members {
		role := membershipmodels.RoleMember
		if i == 0 {
			role = membershipmodels.RoleOwner
		}
		s.Require().NoError(s.memberships.Add(s.ctx, membershipmodels.Membership{
			TripID: s.tripID,
			UserID: userID,
			Role:   role,
		}))
	}
}

func (s *SurveyServiceSuite) questions() []models.Question {
	return []models.Question{
		{ID: "dest", Prompt: "Where to?", Type: models.QuestionSingleChoice, Options: []string{"beach", "mountains"}},
		{ID: "budget", Prompt: "Max budget?", Type: models.QuestionNumber},
	}
}

func (s *SurveyServiceSuite) createSurvey() *models.Survey {
	result, err := s.service.Create(s.ctx, s.tripID, s.owner, "Trip preferences", s.questions(), 72*time.Hour)
	s.Require().NoError(err)
	return result.Survey
}

func (s *SurveyServiceSuite) answers() map[string]json.RawMessage {
	return map[string]json.RawMessage{
		"dest":   json.RawMessage(`"beach"`),
		"budget": json.RawMessage(`1200`),
	}
}

func (s *SurveyServiceSuite) TestCreateNotifiesOtherMembers() {
	survey := s.createSurvey()
	s.Equal(models.StatusActive, survey.Status)
	s.Equal(s.tripID, survey.TripID)
	s.Equal([]id.TripID{s.tripID}, s.lifecycle.marked)

	created := s.notifier.byKind(notifmodels.KindSurveyCreated)
	s.Require().Len(created, 1)
	s.Len(created[0].users, len(s.members)-1)
	s.NotContains(created[0].users, s.owner)
}

func (s *SurveyServiceSuite) TestCreateRejectsSecondSurvey() {
	s.createSurvey()
	_, err := s.service.Create(s.ctx, s.tripID, s.owner, "Another", s.questions(), time.Hour)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *SurveyServiceSuite) TestCreateRejectsNonManagers() {
	member := s.members[1]
	_, err := s.service.Create(s.ctx, s.tripID, member, "Nope", s.questions(), time.Hour)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *SurveyServiceSuite) TestCreateRejectsDuplicateQuestionIDs() {
	questions := []models.Question{
		{ID: "q", Prompt: "a", Type: models.QuestionText},
		{ID: "q", Prompt: "b", Type: models.QuestionText},
	}
	_, err := s.service.Create(s.ctx, s.tripID, s.owner, "Dup", questions, time.Hour)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *SurveyServiceSuite) TestQuorumClosesExactlyAtThreshold() {
	s.createSurvey()

	// N-1 distinct respondents leave the survey ACTIVE.
	for _, userID := range s.members[:len(s.members)-1] {
		result, err := s.service.SubmitResponse(s.ctx, s.tripID, userID, s.answers())
		s.Require().NoError(err)
		s.False(result.Closed)
	}

	// A resubmission by an already-counted member never closes it.
	result, err := s.service.SubmitResponse(s.ctx, s.tripID, s.members[0], s.answers())
	s.Require().NoError(err)
	s.False(result.Closed)

	// The Nth distinct respondent closes it.
	last := s.members[len(s.members)-1]
	result, err = s.service.SubmitResponse(s.ctx, s.tripID, last, s.answers())
	s.Require().NoError(err)
	s.True(result.Closed)

	closed := s.notifier.byKind(notifmodels.KindSurveyClosed)
	s.Len(closed, 1)

	// A closed survey never reopens and rejects further responses.
	_, err = s.service.SubmitResponse(s.ctx, s.tripID, s.members[0], s.answers())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *SurveyServiceSuite) TestQuorumFollowsMembershipGrowth() {
	s.createSurvey()

	for _, userID := range s.members[:2] {
		result, err := s.service.SubmitResponse(s.ctx, s.tripID, userID, s.answers())
		s.Require().NoError(err)
		s.False(result.Closed)
	}

	// A member joining mid-survey raises the bar before the last response.
	joined := id.NewUserID()
	s.Require().NoError(s.memberships.Add(s.ctx, membershipmodels.Membership{
		TripID: s.tripID,
		UserID: joined,
		Role:   membershipmodels.RoleMember,
	}))

	result, err := s.service.SubmitResponse(s.ctx, s.tripID, s.members[2], s.answers())
	s.Require().NoError(err)
	s.False(result.Closed, "three of four respondents must not close the survey")

	result, err = s.service.SubmitResponse(s.ctx, s.tripID, joined, s.answers())
	s.Require().NoError(err)
	s.True(result.Closed)
}

func (s *SurveyServiceSuite) TestSubmitWithoutSurvey() {
	_, err := s.service.SubmitResponse(s.ctx, s.tripID, s.owner, s.answers())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *SurveyServiceSuite) TestSubmitValidation() {
	s.createSurvey()

	s.Run("rejects non-members", func() {
		_, err := s.service.SubmitResponse(s.ctx, s.tripID, id.NewUserID(), s.answers())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("rejects a type mismatch without applying anything", func() {
		bad := map[string]json.RawMessage{
			"dest":   json.RawMessage(`"beach"`),
			"budget": json.RawMessage(`"not a number"`),
		}
		_, err := s.service.SubmitResponse(s.ctx, s.tripID, s.owner, bad)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		responses, err := s.service.Responses(s.ctx, s.tripID, s.owner)
		s.Require().NoError(err)
		s.Empty(responses)
	})

	s.Run("rejects an option outside the question's choices", func() {
		bad := map[string]json.RawMessage{"dest": json.RawMessage(`"desert"`)}
		_, err := s.service.SubmitResponse(s.ctx, s.tripID, s.owner, bad)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects answers to unknown questions", func() {
		bad := map[string]json.RawMessage{"mystery": json.RawMessage(`"?"`)}
		_, err := s.service.SubmitResponse(s.ctx, s.tripID, s.owner, bad)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *SurveyServiceSuite) TestResubmissionReplaces() {
	s.createSurvey()

	_, err := s.service.SubmitResponse(s.ctx, s.tripID, s.owner, map[string]json.RawMessage{
		"dest": json.RawMessage(`"beach"`),
	})
	s.Require().NoError(err)

	_, err = s.service.SubmitResponse(s.ctx, s.tripID, s.owner, map[string]json.RawMessage{
		"dest": json.RawMessage(`"mountains"`),
	})
	s.Require().NoError(err)

	responses, err := s.service.Responses(s.ctx, s.tripID, s.owner)
	s.Require().NoError(err)
	s.Require().Len(responses, 1)
	s.Equal("mountains", responses[0].Answers["dest"].Choice)
}
