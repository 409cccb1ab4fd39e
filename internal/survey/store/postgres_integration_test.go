//go:build integration

package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/pcettina/OutTheGroupchat-sub001/internal/survey/models"
	tripmodels "github.com/pcettina/OutTheGroupchat-sub001/internal/trip/models"
	tripstore "github.com/pcettina/OutTheGroupchat-sub001/internal/trip/store"
	id "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/platform/sentinel"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/requestcontext"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/testutil/containers"
)

// quorumOf is a fixed-size quorum source for store tests.
func quorumOf(n int) func(context.Context) (int, error) {
	return func(context.Context) (int, error) { return n, nil }
}

type SurveyPostgresSuite struct {
	suite.Suite
	ctx       context.Context
	container *containers.PostgresContainer
	store     *Postgres
	trips     *tripstore.Postgres
	tripID    id.TripID
}

func TestSurveyPostgresSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	suite.Run(t, new(SurveyPostgresSuite))
}

func (s *SurveyPostgresSuite) SetupSuite() {
	s.container = containers.NewPostgresContainer(s.T())
	s.store = NewPostgres(s.container.DB)
	s.trips = tripstore.NewPostgres(s.container.DB)
}

func (s *SurveyPostgresSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))
	s.Require().NoError(s.container.TruncateTables(context.Background(), "trips"))

	s.tripID = id.NewTripID()
	s.Require().NoError(s.trips.Create(s.ctx, tripmodels.NewTrip(
		s.tripID, "Cancun 2026", id.NewUserID(), requestcontext.Now(s.ctx))))
}

func (s *SurveyPostgresSuite) newSurvey() *models.Survey {
	survey := &models.Survey{
		ID:     id.NewSurveyID(),
		TripID: s.tripID,
		Title:  "Trip preferences",
		Status: models.StatusActive,
		Questions: []models.Question{
			{ID: "dest", Prompt: "Where to?", Type: models.QuestionSingleChoice, Options: []string{"beach", "mountains"}},
		},
		ExpiresAt: requestcontext.Now(s.ctx).Add(72 * time.Hour),
		CreatedAt: requestcontext.Now(s.ctx),
	}
	s.Require().NoError(s.store.Create(s.ctx, survey))
	return survey
}

func (s *SurveyPostgresSuite) response(userID id.UserID) models.Response {
	return models.Response{
		UserID:      userID,
		Answers:     map[string]models.Answer{"dest": {Type: models.QuestionSingleChoice, Choice: "beach"}},
		SubmittedAt: requestcontext.Now(s.ctx),
	}
}

func (s *SurveyPostgresSuite) TestOneSurveyPerTrip() {
	s.newSurvey()

	second := &models.Survey{
		ID:        id.NewSurveyID(),
		TripID:    s.tripID,
		Title:     "Another",
		Status:    models.StatusActive,
		Questions: []models.Question{{ID: "q", Prompt: "?", Type: models.QuestionText}},
		ExpiresAt: requestcontext.Now(s.ctx).Add(time.Hour),
		CreatedAt: requestcontext.Now(s.ctx),
	}
	err := s.store.Create(s.ctx, second)
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *SurveyPostgresSuite) TestSubmitUpsertAndQuorum() {
	survey := s.newSurvey()
	users := []id.UserID{id.NewUserID(), id.NewUserID(), id.NewUserID()}

	closed, err := s.store.Submit(s.ctx, survey.ID, s.response(users[0]), quorumOf(3))
	s.Require().NoError(err)
	s.False(closed)

	// Resubmission replaces the row and never advances the count.
	closed, err = s.store.Submit(s.ctx, survey.ID, s.response(users[0]), quorumOf(3))
	s.Require().NoError(err)
	s.False(closed)

	responses, err := s.store.ListResponses(s.ctx, survey.ID)
	s.Require().NoError(err)
	s.Len(responses, 1)

	closed, err = s.store.Submit(s.ctx, survey.ID, s.response(users[1]), quorumOf(3))
	s.Require().NoError(err)
	s.False(closed)

	closed, err = s.store.Submit(s.ctx, survey.ID, s.response(users[2]), quorumOf(3))
	s.Require().NoError(err)
	s.True(closed)

	stored, err := s.store.FindByTrip(s.ctx, s.tripID)
	s.Require().NoError(err)
	s.Equal(models.StatusClosed, stored.Status)
	s.NotNil(stored.ClosedAt)

	_, err = s.store.Submit(s.ctx, survey.ID, s.response(id.NewUserID()), quorumOf(3))
	s.Require().ErrorIs(err, sentinel.ErrInvalidState)
}

// TestConcurrentSubmitsCloseOnce drives the quorum boundary from many
// goroutines at once; the row lock must serialize them so exactly one
// submission observes the close.
func (s *SurveyPostgresSuite) TestConcurrentSubmitsCloseOnce() {
	survey := s.newSurvey()
	const members = 8

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		closedBy int
	)
	for i := 0; i < members; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			closed, err := s.store.Submit(s.ctx, survey.ID, s.response(id.NewUserID()), quorumOf(members))
			mu.Lock()
			defer mu.Unlock()
			s.NoError(err)
			if closed {
				closedBy++
			}
		}()
	}
	wg.Wait()

	s.Equal(1, closedBy)
	stored, err := s.store.FindByTrip(s.ctx, s.tripID)
	s.Require().NoError(err)
	s.Equal(models.StatusClosed, stored.Status)
}
