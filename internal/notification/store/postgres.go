package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/pcettina/OutTheGroupchat-sub001/internal/notification/models"
	id "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/platform/sentinel"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/requestcontext"
)

// Postgres persists notifications. Payload is stored as JSONB.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Append(ctx context.Context, n models.Notification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	query := `
		INSERT INTO notifications (id, user_id, kind, title, message, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = s.db.ExecContext(ctx, query,
		n.ID.String(), n.UserID.String(), string(n.Kind), n.Title, n.Message, payload, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("append notification: %w", err)
	}
	return nil
}

func (s *Postgres) ListByUser(ctx context.Context, userID id.UserID) ([]models.Notification, error) {
	query := `
		SELECT id, user_id, kind, title, message, payload, created_at, read_at
		FROM notifications WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var (
			n              models.Notification
			rawID, rawUser string
			kind           string
			payload        []byte
			readAt         sql.NullTime
		)
		if err := rows.Scan(&rawID, &rawUser, &kind, &n.Title, &n.Message, &payload, &n.CreatedAt, &readAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		nID, err := id.ParseNotificationID(rawID)
		if err != nil {
			return nil, fmt.Errorf("parse notification id: %w", err)
		}
		uID, err := id.ParseUserID(rawUser)
		if err != nil {
			return nil, fmt.Errorf("parse notification user id: %w", err)
		}
		n.ID = nID
		n.UserID = uID
		n.Kind = models.Kind(kind)
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &n.Payload); err != nil {
				return nil, fmt.Errorf("unmarshal notification payload: %w", err)
			}
		}
		if readAt.Valid {
			n.ReadAt = &readAt.Time
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Postgres) MarkRead(ctx context.Context, notificationID id.NotificationID, userID id.UserID) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read_at = $3 WHERE id = $1 AND user_id = $2 AND read_at IS NULL`,
		notificationID.String(), userID.String(), requestcontext.Now(ctx))
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark notification read rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
