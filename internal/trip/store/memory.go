package store

import (
	"context"
	"sync"

	"github.com/pcettina/OutTheGroupchat-sub001/internal/trip/models"
	id "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/platform/sentinel"
)

// InMemory keeps trips in a mutex-guarded map.
type InMemory struct {
	mu    sync.RWMutex
	trips map[id.TripID]*models.Trip
}

func NewInMemory() *InMemory {
	return &InMemory{trips: make(map[id.TripID]*models.Trip)}
}

func (s *InMemory) Create(_ context.Context, trip *models.Trip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.trips[trip.ID]; ok {
		return sentinel.ErrConflict
	}
	copied := *trip
	s.trips[trip.ID] = &copied
	return nil
}

func (s *InMemory) FindByID(_ context.Context, tripID id.TripID) (*models.Trip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	trip, ok := s.trips[tripID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *trip
	return &copied, nil
}

// Execute runs validate-then-mutate while holding the store lock, so no other
// writer can observe or change the trip between the two callbacks.
func (s *InMemory) Execute(_ context.Context, tripID id.TripID,
	validate func(*models.Trip) error,
	mutate func(*models.Trip)) (*models.Trip, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	trip, ok := s.trips[tripID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(trip); err != nil {
		return nil, err
	}
	mutate(trip)
	copied := *trip
	return &copied, nil
}
