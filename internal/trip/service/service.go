// Package service hosts the trip lifecycle controller. Status transitions are
// side effects of the other engines' milestones: they are applied best-effort
// and their failure is never surfaced to the triggering operation.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/pcettina/OutTheGroupchat-sub001/internal/trip/models"
	id "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain"
	dErrors "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain-errors"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/requestcontext"
)

// Store is the trip persistence contract. Execute runs validate-then-mutate
// under the store's lock (mutex or FOR UPDATE) so concurrent status writes
// cannot interleave.
type Store interface {
	Create(ctx context.Context, trip *models.Trip) error
	FindByID(ctx context.Context, tripID id.TripID) (*models.Trip, error)
	Execute(ctx context.Context, tripID id.TripID,
		validate func(*models.Trip) error,
		mutate func(*models.Trip)) (*models.Trip, error)
}

// errSkipTransition aborts an Execute without treating it as a failure: the
// trip exists but the transition's precondition does not hold.
var errSkipTransition = errors.New("transition precondition not met")

// Advisory reports the outcome of a best-effort status transition. Callers
// can log or expose it, but must not fail their primary operation on it.
type Advisory struct {
	Applied bool
	From    models.Status
	To      models.Status
	Err     error
}

// Lifecycle owns the trip status field.
type Lifecycle struct {
	trips  Store
	logger *slog.Logger
}

func NewLifecycle(trips Store, logger *slog.Logger) *Lifecycle {
	return &Lifecycle{trips: trips, logger: logger}
}

// Create persists a new trip in PLANNING owned by ownerID.
func (s *Lifecycle) Create(ctx context.Context, title string, ownerID id.UserID) (*models.Trip, error) {
	if title == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "trip title is required")
	}
	trip := models.NewTrip(id.NewTripID(), title, ownerID, requestcontext.Now(ctx))
	if err := s.trips.Create(ctx, trip); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create trip")
	}
	return trip, nil
}

// Get returns a trip by ID.
func (s *Lifecycle) Get(ctx context.Context, tripID id.TripID) (*models.Trip, error) {
	trip, err := s.trips.FindByID(ctx, tripID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "trip not found")
	}
	return trip, nil
}

// MarkInviting advances a trip to INVITING only when it is still in PLANNING.
// Fired on the first successful invitation of a trip.
func (s *Lifecycle) MarkInviting(ctx context.Context, tripID id.TripID) Advisory {
	return s.advance(ctx, tripID, models.StatusInviting, func(t *models.Trip) bool {
		return t.Status == models.StatusPlanning
	})
}

// MarkSurveying moves a trip to SURVEYING unconditionally (organizers may
// re-survey from any non-terminal stage).
func (s *Lifecycle) MarkSurveying(ctx context.Context, tripID id.TripID) Advisory {
	return s.advance(ctx, tripID, models.StatusSurveying, nil)
}

// MarkVoting moves a trip to VOTING unconditionally.
func (s *Lifecycle) MarkVoting(ctx context.Context, tripID id.TripID) Advisory {
	return s.advance(ctx, tripID, models.StatusVoting, nil)
}

// Cancel moves a non-terminal trip to CANCELLED. Unlike the milestone
// transitions this is a primary operation and returns its error.
func (s *Lifecycle) Cancel(ctx context.Context, tripID id.TripID, actorID id.UserID) (*models.Trip, error) {
	now := requestcontext.Now(ctx)
	trip, err := s.trips.Execute(ctx, tripID,
		func(t *models.Trip) error {
			if t.OwnerID != actorID {
				return dErrors.New(dErrors.CodeForbidden, "only the owner can cancel a trip")
			}
			if t.Status.Terminal() {
				return dErrors.New(dErrors.CodeInvalidState, "trip is already finished")
			}
			return nil
		},
		func(t *models.Trip) {
			t.Status = models.StatusCancelled
			t.UpdatedAt = now
		},
	)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeForbidden) || dErrors.HasCode(err, dErrors.CodeInvalidState) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "trip not found")
	}
	return trip, nil
}

// advance applies a status transition under the store lock. A nil guard means
// unconditional overwrite; terminal trips are never touched. All failures are
// swallowed into the Advisory after logging.
func (s *Lifecycle) advance(ctx context.Context, tripID id.TripID, to models.Status, guard func(*models.Trip) bool) Advisory {
	now := requestcontext.Now(ctx)
	var from models.Status

	trip, err := s.trips.Execute(ctx, tripID,
		func(t *models.Trip) error {
			from = t.Status
			if t.Status.Terminal() || t.Status == to {
				return errSkipTransition
			}
			if guard != nil && !guard(t) {
				return errSkipTransition
			}
			return nil
		},
		func(t *models.Trip) {
			t.Status = to
			t.UpdatedAt = now
		},
	)
	if err != nil {
		if !errors.Is(err, errSkipTransition) {
			s.logger.WarnContext(ctx, "advisory status transition failed",
				"trip_id", tripID,
				"to", to,
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		return Advisory{Applied: false, From: from, To: to, Err: err}
	}

	s.logger.InfoContext(ctx, "trip status advanced",
		"trip_id", tripID,
		"from", from,
		"to", trip.Status,
		"request_id", requestcontext.RequestID(ctx),
	)
	return Advisory{Applied: true, From: from, To: trip.Status}
}
