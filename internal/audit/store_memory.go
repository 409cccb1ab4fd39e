package audit

import (
	"context"
	"sync"

	id "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain"
)

// InMemoryStore buffers audit events; the default sink when Kafka is not
// configured, and what tests assert against.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// ListByTrip returns the recorded events for a trip in emission order.
func (s *InMemoryStore) ListByTrip(_ context.Context, tripID id.TripID) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, e := range s.events {
		if e.TripID == tripID {
			out = append(out, e)
		}
	}
	return out, nil
}
