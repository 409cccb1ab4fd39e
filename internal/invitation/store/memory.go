package store

import (
	"context"
	"sync"

	"github.com/pcettina/OutTheGroupchat-sub001/internal/invitation/models"
	id "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/email"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/platform/sentinel"
)

type inviteKey struct {
	trip id.TripID
	user id.UserID
}

// InMemory implements the durable invitation store with upsert semantics
// keyed by (trip, user). The single mutex makes upsert-or-refresh atomic
// with respect to concurrent invites of the same identity.
type InMemory struct {
	mu    sync.Mutex
	byKey map[inviteKey]*models.Invitation
	byID  map[id.InvitationID]inviteKey
}

func NewInMemory() *InMemory {
	return &InMemory{
		byKey: make(map[inviteKey]*models.Invitation),
		byID:  make(map[id.InvitationID]inviteKey),
	}
}

// Upsert creates the invitation or refreshes the existing row for the same
// (trip, user). A PENDING row keeps its identity and only has its deadline
// extended (never shortened); a non-pending row is reset to PENDING with the
// new deadline. Returns the stored row and whether a refresh happened.
func (s *InMemory) Upsert(_ context.Context, inv models.Invitation) (models.Invitation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := inviteKey{trip: inv.TripID, user: inv.UserID}
	existing, ok := s.byKey[key]
	if !ok {
		copied := inv
		s.byKey[key] = &copied
		s.byID[inv.ID] = key
		return copied, false, nil
	}

	if existing.Status == models.StatusPending {
		if inv.ExpiresAt.After(existing.ExpiresAt) {
			existing.ExpiresAt = inv.ExpiresAt
		}
		existing.UpdatedAt = inv.UpdatedAt
		return *existing, true, nil
	}

	existing.Status = models.StatusPending
	existing.InvitedBy = inv.InvitedBy
	existing.ExpiresAt = inv.ExpiresAt
	existing.UpdatedAt = inv.UpdatedAt
	return *existing, false, nil
}

func (s *InMemory) FindByID(_ context.Context, invitationID id.InvitationID) (*models.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.byID[invitationID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *s.byKey[key]
	return &copied, nil
}

func (s *InMemory) FindByTripAndUser(_ context.Context, tripID id.TripID, userID id.UserID) (*models.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.byKey[inviteKey{trip: tripID, user: userID}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *inv
	return &copied, nil
}

// Execute runs validate-then-mutate on one invitation under the store lock.
// The callbacks work on a copy; the row is written back only after post (when
// given) succeeds, so a failed post leaves the invitation untouched.
func (s *InMemory) Execute(ctx context.Context, invitationID id.InvitationID,
	validate func(*models.Invitation) error,
	mutate func(*models.Invitation),
	post func(context.Context, *models.Invitation) error) (*models.Invitation, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.byID[invitationID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *s.byKey[key]
	if err := validate(&copied); err != nil {
		return nil, err
	}
	mutate(&copied)
	if post != nil {
		if err := post(ctx, &copied); err != nil {
			return nil, err
		}
	}
	*s.byKey[key] = copied
	result := copied
	return &result, nil
}

type pendingKey struct {
	email string
	trip  id.TripID
}

// PendingInMemory implements the placeholder store keyed by (email, trip).
type PendingInMemory struct {
	mu    sync.Mutex
	byKey map[pendingKey]*models.PendingInvitation
}

func NewPendingInMemory() *PendingInMemory {
	return &PendingInMemory{byKey: make(map[pendingKey]*models.PendingInvitation)}
}

// UpsertRefresh creates the placeholder or extends the existing one. The
// deadline never shrinks. Returns the stored row and whether a refresh
// happened.
func (s *PendingInMemory) UpsertRefresh(_ context.Context, p models.PendingInvitation) (models.PendingInvitation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pendingKey{email: email.Normalize(p.Email), trip: p.TripID}
	existing, ok := s.byKey[key]
	if !ok {
		copied := p
		copied.Email = key.email
		s.byKey[key] = &copied
		return copied, false, nil
	}

	if p.ExpiresAt.After(existing.ExpiresAt) {
		existing.ExpiresAt = p.ExpiresAt
	}
	existing.InvitedBy = p.InvitedBy
	return *existing, true, nil
}

func (s *PendingInMemory) ListByEmail(_ context.Context, address string) ([]models.PendingInvitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	normalized := email.Normalize(address)
	var out []models.PendingInvitation
	for key, p := range s.byKey {
		if key.email == normalized {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *PendingInMemory) Delete(_ context.Context, address string, tripID id.TripID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byKey, pendingKey{email: email.Normalize(address), trip: tripID})
	return nil
}
