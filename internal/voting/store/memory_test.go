package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcettina/OutTheGroupchat-sub001/internal/voting/models"
	id "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/platform/sentinel"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/requestcontext"
)

// members is a fixed-size quorum source for store tests.
func members(n int) func(context.Context) (int, error) {
	return func(context.Context) (int, error) { return n, nil }
}

func testSession(tripID id.TripID, now time.Time, ttl time.Duration) *models.VotingSession {
	return &models.VotingSession{
		ID:     id.NewSessionID(),
		TripID: tripID,
		Type:   models.TypeDestination,
		Title:  "Where to?",
		Status: models.StatusActive,
		Options: []models.Option{
			{ID: "cancun", Title: "Cancun"},
			{ID: "miami", Title: "Miami"},
		},
		CreatedBy: id.NewUserID(),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

func TestInMemoryListByTripKeepsCreationOrder(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()
	tripID := id.NewTripID()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	first := testSession(tripID, now, time.Hour)
	second := testSession(tripID, now, time.Hour)
	require.NoError(t, store.Create(ctx, first))
	require.NoError(t, store.Create(ctx, second))

	sessions, err := store.ListByTrip(ctx, tripID)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, first.ID, sessions[0].ID)
	assert.Equal(t, second.ID, sessions[1].ID)
}

func TestInMemoryCastAndCount(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)
	store := NewInMemory()
	session := testSession(id.NewTripID(), now, 48*time.Hour)
	require.NoError(t, store.Create(ctx, session))

	voter := id.NewUserID()
	closed, err := store.CastAndCount(ctx, session.ID, models.Vote{VoterID: voter, OptionID: "cancun", CastAt: now}, members(2))
	require.NoError(t, err)
	assert.False(t, closed)

	// Recast replaces, the voter still counts once.
	closed, err = store.CastAndCount(ctx, session.ID, models.Vote{VoterID: voter, OptionID: "cancun", CastAt: now}, members(2))
	require.NoError(t, err)
	assert.False(t, closed)

	votes, err := store.ListVotes(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, votes, 1)

	closed, err = store.CastAndCount(ctx, session.ID, models.Vote{VoterID: id.NewUserID(), OptionID: "miami", CastAt: now}, members(2))
	require.NoError(t, err)
	assert.True(t, closed)

	_, err = store.CastAndCount(ctx, session.ID, models.Vote{VoterID: id.NewUserID(), OptionID: "miami", CastAt: now}, members(2))
	require.ErrorIs(t, err, sentinel.ErrInvalidState)
}

func TestInMemoryQuorumErrorAbortsCast(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)
	store := NewInMemory()
	session := testSession(id.NewTripID(), now, 48*time.Hour)
	require.NoError(t, store.Create(ctx, session))

	boom := errors.New("membership lookup down")
	_, err := store.CastAndCount(ctx, session.ID,
		models.Vote{VoterID: id.NewUserID(), OptionID: "cancun", CastAt: now},
		func(context.Context) (int, error) { return 0, boom })
	require.ErrorIs(t, err, boom)

	// A cast whose denominator could not be read stores nothing.
	votes, err := store.ListVotes(ctx, session.ID)
	require.NoError(t, err)
	assert.Empty(t, votes)
}

func TestInMemoryCastClosesExpiredSession(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	store := NewInMemory()
	session := testSession(id.NewTripID(), now, time.Hour)
	require.NoError(t, store.Create(context.Background(), session))

	late := requestcontext.WithTime(context.Background(), now.Add(2*time.Hour))
	_, err := store.CastAndCount(late, session.ID, models.Vote{VoterID: id.NewUserID(), OptionID: "cancun"}, members(5))
	require.ErrorIs(t, err, sentinel.ErrExpired)

	stored, err := store.FindByID(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, stored.Status)
	assert.NotNil(t, stored.ClosedAt)
}

func TestInMemoryConcurrentCastsCloseOnce(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)
	store := NewInMemory()
	session := testSession(id.NewTripID(), now, 48*time.Hour)
	require.NoError(t, store.Create(ctx, session))

	const voters = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		closedBy int
	)
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			closed, err := store.CastAndCount(ctx, session.ID, models.Vote{VoterID: id.NewUserID(), OptionID: "cancun", CastAt: now}, members(voters))
			mu.Lock()
			defer mu.Unlock()
			assert.NoError(t, err)
			if closed {
				closedBy++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, closedBy)
}

func TestInMemoryMarkClosed(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)
	store := NewInMemory()
	session := testSession(id.NewTripID(), now, time.Hour)
	require.NoError(t, store.Create(ctx, session))

	require.NoError(t, store.MarkClosed(ctx, session.ID))
	require.NoError(t, store.MarkClosed(ctx, session.ID))
	require.ErrorIs(t, store.MarkClosed(ctx, id.NewSessionID()), sentinel.ErrNotFound)
}
