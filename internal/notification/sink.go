// Package notification delivers in-app notifications. Producers treat the
// sink as advisory: a failed notify is logged, never propagated.
package notification

import (
	"context"
	"log/slog"

	"github.com/pcettina/OutTheGroupchat-sub001/internal/notification/models"
	id "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/requestcontext"
)

// Store persists notifications.
type Store interface {
	Append(ctx context.Context, n models.Notification) error
	ListByUser(ctx context.Context, userID id.UserID) ([]models.Notification, error)
	MarkRead(ctx context.Context, notificationID id.NotificationID, userID id.UserID) error
}

// Sink is the producer-facing contract.
type Sink interface {
	Notify(ctx context.Context, userID id.UserID, kind models.Kind, title, message string, payload map[string]any) error
}

// StoreSink writes notifications into a Store.
type StoreSink struct {
	store Store
}

func NewStoreSink(store Store) *StoreSink {
	return &StoreSink{store: store}
}

func (s *StoreSink) Notify(ctx context.Context, userID id.UserID, kind models.Kind, title, message string, payload map[string]any) error {
	return s.store.Append(ctx, models.Notification{
		ID:        id.NewNotificationID(),
		UserID:    userID,
		Kind:      kind,
		Title:     title,
		Message:   message,
		Payload:   payload,
		CreatedAt: requestcontext.Now(ctx),
	})
}

// BestEffort wraps a Sink so engine code can notify without error plumbing:
// failures are logged with enough context to investigate and then dropped.
type BestEffort struct {
	sink   Sink
	logger *slog.Logger
}

func NewBestEffort(sink Sink, logger *slog.Logger) *BestEffort {
	return &BestEffort{sink: sink, logger: logger}
}

func (b *BestEffort) Notify(ctx context.Context, userID id.UserID, kind models.Kind, title, message string, payload map[string]any) {
	if b.sink == nil {
		return
	}
	if err := b.sink.Notify(ctx, userID, kind, title, message, payload); err != nil {
		b.logger.WarnContext(ctx, "notification delivery failed",
			"user_id", userID,
			"kind", kind,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

// NotifyAll fans a notification out to several users.
func (b *BestEffort) NotifyAll(ctx context.Context, userIDs []id.UserID, kind models.Kind, title, message string, payload map[string]any) {
	for _, userID := range userIDs {
		b.Notify(ctx, userID, kind, title, message, payload)
	}
}
