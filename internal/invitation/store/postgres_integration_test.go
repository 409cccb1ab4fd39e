//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/pcettina/OutTheGroupchat-sub001/internal/invitation/models"
	tripmodels "github.com/pcettina/OutTheGroupchat-sub001/internal/trip/models"
	tripstore "github.com/pcettina/OutTheGroupchat-sub001/internal/trip/store"
	id "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/testutil/containers"
)

type InvitationPostgresSuite struct {
	suite.Suite
	ctx       context.Context
	now       time.Time
	container *containers.PostgresContainer
	store     *Postgres
	pending   *PendingPostgres
	trips     *tripstore.Postgres
	tripID    id.TripID
}

func TestInvitationPostgresSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	suite.Run(t, new(InvitationPostgresSuite))
}

func (s *InvitationPostgresSuite) SetupSuite() {
	s.container = containers.NewPostgresContainer(s.T())
	s.store = NewPostgres(s.container.DB)
	s.pending = NewPendingPostgres(s.container.DB)
	s.trips = tripstore.NewPostgres(s.container.DB)
}

func (s *InvitationPostgresSuite) SetupTest() {
	s.now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = context.Background()
	s.Require().NoError(s.container.TruncateTables(s.ctx, "trips"))

	s.tripID = id.NewTripID()
	s.Require().NoError(s.trips.Create(s.ctx, tripmodels.NewTrip(
		s.tripID, "Cancun 2026", id.NewUserID(), s.now)))
}

func (s *InvitationPostgresSuite) invitation(userID id.UserID, ttl time.Duration) models.Invitation {
	return models.Invitation{
		ID:        id.NewInvitationID(),
		TripID:    s.tripID,
		UserID:    userID,
		InvitedBy: id.NewUserID(),
		Status:    models.StatusPending,
		ExpiresAt: s.now.Add(ttl),
		CreatedAt: s.now,
		UpdatedAt: s.now,
	}
}

func (s *InvitationPostgresSuite) TestUpsertKeepsOneRowPerIdentity() {
	userID := id.NewUserID()

	first, refreshed, err := s.store.Upsert(s.ctx, s.invitation(userID, 24*time.Hour))
	s.Require().NoError(err)
	s.False(refreshed)

	// The second upsert refreshes the existing row; the original ID survives.
	second, refreshed, err := s.store.Upsert(s.ctx, s.invitation(userID, 48*time.Hour))
	s.Require().NoError(err)
	s.True(refreshed)
	s.Equal(first.ID, second.ID)
	s.Equal(s.now.Add(48*time.Hour).Unix(), second.ExpiresAt.Unix())

	// A shorter deadline never wins against a PENDING row.
	third, refreshed, err := s.store.Upsert(s.ctx, s.invitation(userID, time.Hour))
	s.Require().NoError(err)
	s.True(refreshed)
	s.Equal(s.now.Add(48*time.Hour).Unix(), third.ExpiresAt.Unix())
}

func (s *InvitationPostgresSuite) TestUpsertResetsRespondedRow() {
	userID := id.NewUserID()
	created, _, err := s.store.Upsert(s.ctx, s.invitation(userID, 24*time.Hour))
	s.Require().NoError(err)

	_, err = s.store.Execute(s.ctx, created.ID,
		func(*models.Invitation) error { return nil },
		func(inv *models.Invitation) { inv.Status = models.StatusDeclined },
		nil,
	)
	s.Require().NoError(err)

	// Re-inviting a declined user is a fresh PENDING invitation, and the
	// deadline is taken verbatim rather than GREATEST-merged.
	stored, refreshed, err := s.store.Upsert(s.ctx, s.invitation(userID, time.Hour))
	s.Require().NoError(err)
	s.False(refreshed)
	s.Equal(models.StatusPending, stored.Status)
	s.Equal(s.now.Add(time.Hour).Unix(), stored.ExpiresAt.Unix())
}

func (s *InvitationPostgresSuite) TestPendingUpsertAndDelete() {
	placeholder := models.PendingInvitation{
		Email:     "Guest@Example.com",
		TripID:    s.tripID,
		InvitedBy: id.NewUserID(),
		ExpiresAt: s.now.Add(24 * time.Hour),
		CreatedAt: s.now,
	}

	stored, refreshed, err := s.pending.UpsertRefresh(s.ctx, placeholder)
	s.Require().NoError(err)
	s.False(refreshed)
	s.Equal("guest@example.com", stored.Email)

	placeholder.ExpiresAt = s.now.Add(48 * time.Hour)
	stored, refreshed, err = s.pending.UpsertRefresh(s.ctx, placeholder)
	s.Require().NoError(err)
	s.True(refreshed)
	s.Equal(s.now.Add(48*time.Hour).Unix(), stored.ExpiresAt.Unix())

	listed, err := s.pending.ListByEmail(s.ctx, "GUEST@example.com")
	s.Require().NoError(err)
	s.Len(listed, 1)

	s.Require().NoError(s.pending.Delete(s.ctx, "guest@example.com", s.tripID))
	listed, err = s.pending.ListByEmail(s.ctx, "guest@example.com")
	s.Require().NoError(err)
	s.Empty(listed)
}
