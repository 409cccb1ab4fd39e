package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pcettina/OutTheGroupchat-sub001/internal/membership/models"
	id "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/platform/sentinel"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/platform/tx"
)

// Postgres persists memberships. Pure I/O; authorization rules live in the
// services that consume RoleOf.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Add(ctx context.Context, m models.Membership) error {
	query := `
		INSERT INTO memberships (trip_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := tx.Pick(ctx, s.db).ExecContext(ctx, query,
		m.TripID.String(), m.UserID.String(), string(m.Role), m.JoinedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("add membership: %w", err)
	}
	return nil
}

func (s *Postgres) CountMembers(ctx context.Context, tripID id.TripID) (int, error) {
	var count int
	err := tx.Pick(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memberships WHERE trip_id = $1`, tripID.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return count, nil
}

func (s *Postgres) RoleOf(ctx context.Context, tripID id.TripID, userID id.UserID) (models.Role, error) {
	var role string
	err := tx.Pick(ctx, s.db).QueryRowContext(ctx,
		`SELECT role FROM memberships WHERE trip_id = $1 AND user_id = $2`,
		tripID.String(), userID.String()).Scan(&role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", sentinel.ErrNotFound
		}
		return "", fmt.Errorf("role of member: %w", err)
	}
	return models.Role(role), nil
}

func (s *Postgres) ListUserIDs(ctx context.Context, tripID id.TripID) ([]id.UserID, error) {
	rows, err := tx.Pick(ctx, s.db).QueryContext(ctx,
		`SELECT user_id FROM memberships WHERE trip_id = $1 ORDER BY joined_at`, tripID.String())
	if err != nil {
		return nil, fmt.Errorf("list member ids: %w", err)
	}
	defer rows.Close()

	var users []id.UserID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan member id: %w", err)
		}
		userID, err := id.ParseUserID(raw)
		if err != nil {
			return nil, fmt.Errorf("parse member id: %w", err)
		}
		users = append(users, userID)
	}
	return users, rows.Err()
}

// isUniqueViolation reports whether err is a Postgres 23505 unique violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
