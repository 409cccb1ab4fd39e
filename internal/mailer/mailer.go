// Package mailer sends invitation emails. Delivery is advisory everywhere:
// the invitation record is durable before any send is attempted, and a failed
// send surfaces only as a per-email field in the invite report.
package mailer

import (
	"context"
	"log/slog"
	"time"

	id "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain"
)

// Delivery is the advisory outcome of a send attempt.
type Delivery string

const (
	DeliverySent    Delivery = "email_sent"
	DeliveryFailed  Delivery = "email_failed"
	DeliveryPending Delivery = "email_pending"
)

// Invitation is the content of an invitation email.
type Invitation struct {
	To          string
	TripID      id.TripID
	TripTitle   string
	InviterName string
	ExpiresAt   time.Time
}

// Sender delivers invitation emails.
type Sender interface {
	SendInvitation(ctx context.Context, inv Invitation) Delivery
}

// LogSender logs instead of sending. Used in development and as the fallback
// when no provider is configured; invitations still work, recipients just
// find them in-app.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendInvitation(ctx context.Context, inv Invitation) Delivery {
	s.logger.InfoContext(ctx, "invitation email (log sender)",
		"to", inv.To,
		"trip_id", inv.TripID,
		"trip_title", inv.TripTitle,
		"inviter", inv.InviterName,
		"expires_at", inv.ExpiresAt,
	)
	return DeliveryPending
}
