package store

import (
	"context"
	"sync"

	"github.com/pcettina/OutTheGroupchat-sub001/internal/voting/models"
	id "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/platform/sentinel"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/requestcontext"
)

type voteKey struct {
	session id.SessionID
	voter   id.UserID
	option  string
}

// InMemory keeps sessions and votes under one mutex, making the
// cast-recount-close sequence atomic across submitters.
type InMemory struct {
	mu       sync.Mutex
	sessions map[id.SessionID]*models.VotingSession
	byTrip   map[id.TripID][]id.SessionID
	votes    map[voteKey]*models.Vote
}

func NewInMemory() *InMemory {
	return &InMemory{
		sessions: make(map[id.SessionID]*models.VotingSession),
		byTrip:   make(map[id.TripID][]id.SessionID),
		votes:    make(map[voteKey]*models.Vote),
	}
}

func (s *InMemory) Create(_ context.Context, session *models.VotingSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; ok {
		return sentinel.ErrConflict
	}
	copied := *session
	s.sessions[session.ID] = &copied
	s.byTrip[session.TripID] = append(s.byTrip[session.TripID], session.ID)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, sessionID id.SessionID) (*models.VotingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *session
	return &copied, nil
}

// ListByTrip returns the trip's sessions in creation order.
func (s *InMemory) ListByTrip(_ context.Context, tripID id.TripID) ([]*models.VotingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.VotingSession
	for _, sessionID := range s.byTrip[tripID] {
		copied := *s.sessions[sessionID]
		out = append(out, &copied)
	}
	return out, nil
}

// CastAndCount runs the vote path's mutation atomically: check the session is
// still ACTIVE and unexpired (closing it if the deadline passed), upsert the
// vote, recount distinct voters, close at quorum. The quorum callback runs
// under the same lock, keeping the denominator current with membership
// changes. Returns whether this cast closed the session; an expiry discovered
// here closes the session and returns sentinel.ErrExpired.
func (s *InMemory) CastAndCount(ctx context.Context, sessionID id.SessionID, vote models.Vote,
	quorum func(context.Context) (int, error)) (bool, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	if session.Status != models.StatusActive {
		return false, sentinel.ErrInvalidState
	}
	now := requestcontext.Now(ctx)
	if session.Expired(now) {
		session.Status = models.StatusClosed
		session.ClosedAt = &now
		return false, sentinel.ErrExpired
	}

	needed, err := quorum(ctx)
	if err != nil {
		return false, err
	}

	copied := vote
	s.votes[voteKey{session: sessionID, voter: vote.VoterID, option: vote.OptionID}] = &copied

	voters := make(map[id.UserID]struct{})
	for key := range s.votes {
		if key.session == sessionID {
			voters[key.voter] = struct{}{}
		}
	}
	if len(voters) >= needed {
		session.Status = models.StatusClosed
		session.ClosedAt = &now
		return true, nil
	}
	return false, nil
}

func (s *InMemory) ListVotes(_ context.Context, sessionID id.SessionID) ([]models.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Vote
	for key, vote := range s.votes {
		if key.session == sessionID {
			out = append(out, *vote)
		}
	}
	return out, nil
}

// MarkClosed closes an ACTIVE session, used by read paths that discover an
// expired deadline. Closing an already-closed session is a no-op.
func (s *InMemory) MarkClosed(ctx context.Context, sessionID id.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if session.Status != models.StatusActive {
		return nil
	}
	now := requestcontext.Now(ctx)
	session.Status = models.StatusClosed
	session.ClosedAt = &now
	return nil
}
