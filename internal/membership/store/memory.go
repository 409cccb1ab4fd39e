package store

import (
	"context"
	"sync"

	"github.com/pcettina/OutTheGroupchat-sub001/internal/membership/models"
	id "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/platform/sentinel"
)

type memberKey struct {
	trip id.TripID
	user id.UserID
}

// InMemory keeps memberships in a mutex-guarded map. It intentionally favors
// clarity over performance.
type InMemory struct {
	mu      sync.RWMutex
	members map[memberKey]models.Membership
}

func NewInMemory() *InMemory {
	return &InMemory{members: make(map[memberKey]models.Membership)}
}

func (s *InMemory) Add(_ context.Context, m models.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memberKey{trip: m.TripID, user: m.UserID}
	if _, ok := s.members[key]; ok {
		return sentinel.ErrConflict
	}
	s.members[key] = m
	return nil
}

func (s *InMemory) CountMembers(_ context.Context, tripID id.TripID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for key := range s.members {
		if key.trip == tripID {
			count++
		}
	}
	return count, nil
}

func (s *InMemory) RoleOf(_ context.Context, tripID id.TripID, userID id.UserID) (models.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[memberKey{trip: tripID, user: userID}]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	return m.Role, nil
}

func (s *InMemory) ListUserIDs(_ context.Context, tripID id.TripID) ([]id.UserID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var users []id.UserID
	for key := range s.members {
		if key.trip == tripID {
			users = append(users, key.user)
		}
	}
	return users, nil
}
