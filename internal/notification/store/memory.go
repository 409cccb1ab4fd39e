package store

import (
	"context"
	"sync"

	"github.com/pcettina/OutTheGroupchat-sub001/internal/notification/models"
	id "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/platform/sentinel"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/requestcontext"
)

// InMemory keeps notifications per user in append order.
type InMemory struct {
	mu     sync.RWMutex
	byUser map[id.UserID][]models.Notification
}

func NewInMemory() *InMemory {
	return &InMemory{byUser: make(map[id.UserID][]models.Notification)}
}

func (s *InMemory) Append(_ context.Context, n models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byUser[n.UserID] = append(s.byUser[n.UserID], n)
	return nil
}

func (s *InMemory) ListByUser(_ context.Context, userID id.UserID) ([]models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.byUser[userID]
	out := make([]models.Notification, len(list))
	copy(out, list)
	return out, nil
}

func (s *InMemory) MarkRead(ctx context.Context, notificationID id.NotificationID, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.byUser[userID]
	for i := range list {
		if list[i].ID == notificationID {
			now := requestcontext.Now(ctx)
			list[i].ReadAt = &now
			return nil
		}
	}
	return sentinel.ErrNotFound
}
