// Package store provides account lookup backends. The coordination engine
// only needs email resolution; account lifecycle belongs to the identity
// provider.
package store

import (
	"context"
	"sync"

	id "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/email"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/platform/sentinel"
)

// InMemory keeps email → account mappings in a mutex-guarded map.
type InMemory struct {
	mu       sync.RWMutex
	accounts map[string]id.UserID
}

func NewInMemory() *InMemory {
	return &InMemory{accounts: make(map[string]id.UserID)}
}

func (s *InMemory) Create(_ context.Context, address string, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := email.Normalize(address)
	if _, ok := s.accounts[key]; ok {
		return sentinel.ErrConflict
	}
	s.accounts[key] = userID
	return nil
}

func (s *InMemory) FindByEmail(_ context.Context, address string) (id.UserID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.accounts[email.Normalize(address)]
	if !ok {
		return id.UserID{}, sentinel.ErrNotFound
	}
	return userID, nil
}

func (s *InMemory) EmailOf(_ context.Context, userID id.UserID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for address, uid := range s.accounts {
		if uid == userID {
			return address, nil
		}
	}
	return "", sentinel.ErrNotFound
}
