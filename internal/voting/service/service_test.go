package service

import (
	"context"
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
	tripservice "github.com/pcettina/OutTheGroupchat-sub001/internal/trip/service"
	"github.com/pcettina/OutTheGroupchat-sub001/internal/voting/models"
	votingstore "github.com/pcettina/OutTheGroupchat-sub001/internal/voting/store"
	id "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain"
	dErrors "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain-errors"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/requestcontext"
)

type fakeNotifier struct {
	mu    sync.Mutex
	kinds []notifmodels.Kind
}

func (f *fakeNotifier) NotifyAll(_ context.Context, _ []id.UserID, kind notifmodels.Kind, _, _ string, _ map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kinds = append(f.kinds, kind)
}

func (f *fakeNotifier) count(kind notifmodels.Kind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, k := range f.kinds {
		if k == kind {
			n++
		}
	}
	return n
}

type fakeLifecycle struct {
	marked []id.TripID
}

func (f *fakeLifecycle) MarkVoting(_ context.Context, tripID id.TripID) tripservice.Advisory {
	f.marked = append(f.marked, tripID)
	return tripservice.Advisory{Applied: true, To: "VOTING"}
}

type VotingServiceSuite struct {
	suite.Suite
	ctx         context.Context
	now         time.Time
	service     *Service
	memberships *membershipstore.InMemory
	notifier    *fakeNotifier
	lifecycle   *fakeLifecycle

	tripID  id.TripID
	owner   id.UserID
	members []id.UserID
}

func TestVotingServiceSuite(t *testing.T) {
	suite.Run(t, new(VotingServiceSuite))
}

func (s *VotingServiceSuite) SetupTest() {
	s.now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.memberships = membershipstore.NewInMemory()
	s.notifier = &fakeNotifier{}
	s.lifecycle = &fakeLifecycle{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service = NewService(
		votingstore.NewInMemory(),
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

func (s *VotingServiceSuite) createSession(options ...string) *models.VotingSession {
	parsed := make([]models.Option, 0, len(options))
	for _, o := range options {
		parsed = append(parsed, models.Option{ID: o, Title: o})
	}
	result, err := s.service.Create(s.ctx, s.tripID, s.owner,
		models.TypeDestination, "Where to?", parsed, 48*time.Hour)
	s.Require().NoError(err)
	return result.Session
}

func (s *VotingServiceSuite) TestCreateValidation() {
	s.Run("rejects duplicate option ids", func() {
		options := []models.Option{
			{ID: "a", Title: "A"},
			{ID: "a", Title: "A again"},
		}
		_, err := s.service.Create(s.ctx, s.tripID, s.owner,
			models.TypeCustom, "Dup", options, time.Hour)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects unknown session types", func() {
		options := []models.Option{{ID: "a", Title: "A"}, {ID: "b", Title: "B"}}
		_, err := s.service.Create(s.ctx, s.tripID, s.owner,
			models.SessionType("RAFFLE"), "Nope", options, time.Hour)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects non-managers", func() {
		options := []models.Option{{ID: "a", Title: "A"}, {ID: "b", Title: "B"}}
		_, err := s.service.Create(s.ctx, s.tripID, s.members[1],
			models.TypeCustom, "Nope", options, time.Hour)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *VotingServiceSuite) TestMultipleSessionsPerTrip() {
	first := s.createSession("a", "b")
	second := s.createSession("x", "y")
	s.NotEqual(first.ID, second.ID)

	sessions, err := s.service.ListByTrip(s.ctx, s.tripID, s.owner)
	s.Require().NoError(err)
	s.Len(sessions, 2)
	s.Equal([]id.TripID{s.tripID, s.tripID}, s.lifecycle.marked)
}

func (s *VotingServiceSuite) TestVoteUpsertIdempotence() {
	session := s.createSession("cancun", "miami")
	voter := s.members[1]

	rank1, rank2 := 1, 2
	_, err := s.service.CastVote(s.ctx, session.ID, voter, "cancun", &rank1)
	s.Require().NoError(err)
	_, err = s.service.CastVote(s.ctx, session.ID, voter, "cancun", &rank2)
	s.Require().NoError(err)

	tally, err := s.service.Tally(s.ctx, session.ID, voter)
	s.Require().NoError(err)
	s.Equal(1, tally.TotalVotes, "same (voter, option) twice is one row")
	s.Equal(1, tally.Turnout)

	_, err = s.service.CastVote(s.ctx, session.ID, voter, "miami", &rank1)
	s.Require().NoError(err)

	tally, err = s.service.Tally(s.ctx, session.ID, voter)
	s.Require().NoError(err)
	s.Equal(2, tally.TotalVotes, "a second option is a second row")
	s.Equal(1, tally.Turnout, "still one distinct voter")
}

func (s *VotingServiceSuite) TestVoteValidation() {
	session := s.createSession("cancun", "miami")

	s.Run("rejects unknown sessions", func() {
		_, err := s.service.CastVote(s.ctx, id.NewSessionID(), s.owner, "cancun", nil)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("rejects non-members", func() {
		_, err := s.service.CastVote(s.ctx, session.ID, id.NewUserID(), "cancun", nil)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("rejects options outside the session", func() {
		_, err := s.service.CastVote(s.ctx, session.ID, s.owner, "tulum", nil)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *VotingServiceSuite) TestQuorumClosesSession() {
	session := s.createSession("cancun", "miami")

	result, err := s.service.CastVote(s.ctx, session.ID, s.members[0], "cancun", nil)
	s.Require().NoError(err)
	s.False(result.Closed)

	result, err = s.service.CastVote(s.ctx, session.ID, s.members[1], "cancun", nil)
	s.Require().NoError(err)
	s.False(result.Closed)

	// The third of three distinct voters closes the session.
	result, err = s.service.CastVote(s.ctx, session.ID, s.members[2], "miami", nil)
	s.Require().NoError(err)
	s.True(result.Closed)
	s.Equal(1, s.notifier.count(notifmodels.KindVoteClosed))

	tally, err := s.service.Tally(s.ctx, session.ID, s.owner)
	s.Require().NoError(err)
	s.Equal(models.StatusClosed, tally.Status)
	s.Require().Len(tally.Options, 2)
	s.Equal("cancun", tally.Options[0].Option.ID)
	s.Equal(2, tally.Options[0].Count)
	s.Equal(67, tally.Options[0].Percentage)
	s.Equal("miami", tally.Options[1].Option.ID)
	s.Equal(1, tally.Options[1].Count)
	s.Equal(33, tally.Options[1].Percentage)

	// A closed session rejects further votes.
	_, err = s.service.CastVote(s.ctx, session.ID, s.members[0], "miami", nil)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *VotingServiceSuite) TestExpiredSessionRejectsAndSelfCloses() {
	session := s.createSession("cancun", "miami")

	// Jump past the deadline with zero prior votes.
	later := requestcontext.WithTime(context.Background(), s.now.Add(72*time.Hour))
	_, err := s.service.CastVote(later, session.ID, s.owner, "cancun", nil)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeExpired))

	tally, err := s.service.Tally(later, session.ID, s.owner)
	s.Require().NoError(err)
	s.Equal(models.StatusClosed, tally.Status)
	s.Equal(0, tally.TotalVotes)
}

func (s *VotingServiceSuite) TestTallyClosesExpiredSessionOnRead() {
	session := s.createSession("cancun", "miami")

	later := requestcontext.WithTime(context.Background(), s.now.Add(72*time.Hour))
	tally, err := s.service.Tally(later, session.ID, s.owner)
	s.Require().NoError(err)
	s.Equal(models.StatusClosed, tally.Status)

	found, err := s.service.ListByTrip(later, s.tripID, s.owner)
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	s.Equal(models.StatusClosed, found[0].Status)
}

func (s *VotingServiceSuite) TestTallyDeterminism() {
	// Seven votes over [a, b, c]: a:3, b:3, c:1. Ties keep declared order.
	session := s.createSession("a", "b", "c")

	voters := make([]id.UserID, 7)
	for i := range voters {
		voters[i] = id.NewUserID()
		s.Require().NoError(s.memberships.Add(s.ctx, membershipmodels.Membership{
			TripID: s.tripID,
			UserID: voters[i],
			Role:   membershipmodels.RoleMember,
		}))
	}
	for i, option := range []string{"a", "a", "a", "b", "b", "b", "c"} {
		_, err := s.service.CastVote(s.ctx, session.ID, voters[i], option, nil)
		s.Require().NoError(err)
	}

	tally, err := s.service.Tally(s.ctx, session.ID, s.owner)
	s.Require().NoError(err)
	s.Require().Len(tally.Options, 3)
	s.Equal("a", tally.Options[0].Option.ID)
	s.Equal("b", tally.Options[1].Option.ID)
	s.Equal("c", tally.Options[2].Option.ID)
	s.Equal(3, tally.Options[0].Count)
	s.Equal(3, tally.Options[1].Count)
	s.Equal(1, tally.Options[2].Count)
	s.Equal(tally.Options[0].Percentage, tally.Options[1].Percentage)
	s.Equal(14, tally.Options[2].Percentage)
	s.Equal(7, tally.TotalVotes)
	s.Equal(7, tally.Turnout)
}

func (s *VotingServiceSuite) TestTallyEmptySession() {
	session := s.createSession("a", "b")
	tally, err := s.service.Tally(s.ctx, session.ID, s.owner)
	s.Require().NoError(err)
	s.Equal(0, tally.TotalVotes)
	for _, row := range tally.Options {
		s.Equal(0, row.Count)
		s.Equal(0, row.Percentage, "zero total votes means 0%, not NaN")
	}
}
