package store

import (
	"context"
	"sync"

	"github.com/pcettina/OutTheGroupchat-sub001/internal/survey/models"
	id "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/platform/sentinel"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/requestcontext"
)

type responseKey struct {
	survey id.SurveyID
	user   id.UserID
}

// InMemory keeps surveys and responses under one mutex, which is what makes
// the submit-recount-close sequence atomic with respect to other submitters.
type InMemory struct {
	mu        sync.Mutex
	byTrip    map[id.TripID]*models.Survey
	byID      map[id.SurveyID]id.TripID
	responses map[responseKey]*models.Response
}

func NewInMemory() *InMemory {
	return &InMemory{
		byTrip:    make(map[id.TripID]*models.Survey),
		byID:      make(map[id.SurveyID]id.TripID),
		responses: make(map[responseKey]*models.Response),
	}
}

// Create rejects a second survey for the same trip regardless of status.
func (s *InMemory) Create(_ context.Context, survey *models.Survey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byTrip[survey.TripID]; ok {
		return sentinel.ErrConflict
	}
	copied := *survey
	s.byTrip[survey.TripID] = &copied
	s.byID[survey.ID] = survey.TripID
	return nil
}

func (s *InMemory) FindByTrip(_ context.Context, tripID id.TripID) (*models.Survey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	survey, ok := s.byTrip[tripID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *survey
	return &copied, nil
}

// Submit upserts the response, recounts distinct respondents, and closes the
// survey at quorum, all under the store lock so concurrent submissions cannot
// both observe a pre-quorum count or double-close. The quorum callback runs
// under the same lock, keeping the denominator current with membership
// changes. Returns whether this submission closed the survey.
func (s *InMemory) Submit(ctx context.Context, surveyID id.SurveyID, response models.Response,
	quorum func(context.Context) (int, error)) (bool, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	tripID, ok := s.byID[surveyID]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	survey := s.byTrip[tripID]
	if survey.Status != models.StatusActive {
		return false, sentinel.ErrInvalidState
	}

	needed, err := quorum(ctx)
	if err != nil {
		return false, err
	}

	copied := response
	s.responses[responseKey{survey: surveyID, user: response.UserID}] = &copied

	distinct := 0
	for key := range s.responses {
		if key.survey == surveyID {
			distinct++
		}
	}
	if distinct >= needed {
		now := requestcontext.Now(ctx)
		survey.Status = models.StatusClosed
		survey.ClosedAt = &now
		return true, nil
	}
	return false, nil
}

func (s *InMemory) ListResponses(_ context.Context, surveyID id.SurveyID) ([]models.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Response
	for key, r := range s.responses {
		if key.survey == surveyID {
			out = append(out, *r)
		}
	}
	return out, nil
}
