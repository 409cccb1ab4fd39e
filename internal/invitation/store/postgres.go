package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pcettina/OutTheGroupchat-sub001/internal/invitation/models"
	id "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/email"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/platform/sentinel"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/platform/tx"
)

// Postgres implements the durable invitation store. The unique constraint on
// (trip_id, user_id) plus ON CONFLICT upserts keep the at-most-one-row
// invariant under concurrent invites of the same identity.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Upsert inserts or refreshes the (trip, user) row in one statement.
// A PENDING row only has its deadline extended (GREATEST); any other status
// is reset to PENDING with the new deadline. The refreshed flag is true only
// when a live PENDING row was extended; resetting a responded or expired row
// counts as a new invitation. xmax alone cannot tell the two apart, so the
// prior status is captured before the upsert.
func (s *Postgres) Upsert(ctx context.Context, inv models.Invitation) (models.Invitation, bool, error) {
	query := `
		WITH prior AS (
			SELECT status FROM invitations WHERE trip_id = $2 AND user_id = $3
		), upserted AS (
			INSERT INTO invitations (id, trip_id, user_id, invited_by, status, expires_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (trip_id, user_id) DO UPDATE SET
				status = 'PENDING',
				invited_by = EXCLUDED.invited_by,
				expires_at = CASE
					WHEN invitations.status = 'PENDING'
						THEN GREATEST(invitations.expires_at, EXCLUDED.expires_at)
					ELSE EXCLUDED.expires_at
				END,
				updated_at = EXCLUDED.updated_at
			RETURNING id, trip_id, user_id, invited_by, status, expires_at, created_at, updated_at
		)
		SELECT u.id, u.trip_id, u.user_id, u.invited_by, u.status, u.expires_at, u.created_at, u.updated_at,
			COALESCE((SELECT prior.status = 'PENDING' FROM prior), FALSE) AS refreshed
		FROM upserted u
	`
	row := s.db.QueryRowContext(ctx, query,
		inv.ID.String(), inv.TripID.String(), inv.UserID.String(), inv.InvitedBy.String(),
		string(inv.Status), inv.ExpiresAt, inv.CreatedAt, inv.UpdatedAt)

	stored, refreshed, err := scanInvitationWithFlag(row)
	if err != nil {
		return models.Invitation{}, false, fmt.Errorf("upsert invitation: %w", err)
	}
	return *stored, refreshed, nil
}

func (s *Postgres) FindByID(ctx context.Context, invitationID id.InvitationID) (*models.Invitation, error) {
	query := `
		SELECT id, trip_id, user_id, invited_by, status, expires_at, created_at, updated_at
		FROM invitations WHERE id = $1
	`
	inv, err := scanInvitation(s.db.QueryRowContext(ctx, query, invitationID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find invitation: %w", err)
	}
	return inv, nil
}

func (s *Postgres) FindByTripAndUser(ctx context.Context, tripID id.TripID, userID id.UserID) (*models.Invitation, error) {
	query := `
		SELECT id, trip_id, user_id, invited_by, status, expires_at, created_at, updated_at
		FROM invitations WHERE trip_id = $1 AND user_id = $2
	`
	inv, err := scanInvitation(s.db.QueryRowContext(ctx, query, tripID.String(), userID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find invitation by trip and user: %w", err)
	}
	return inv, nil
}

// Execute locks the invitation row for the validate-then-mutate window. The
// post callback runs inside the same transaction (exposed through the
// context), so writes it performs commit or roll back with the invitation.
func (s *Postgres) Execute(ctx context.Context, invitationID id.InvitationID,
	validate func(*models.Invitation) error,
	mutate func(*models.Invitation),
	post func(context.Context, *models.Invitation) error) (*models.Invitation, error) {

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin invitation execute: %w", err)
	}
	defer func() {
		_ = dbTx.Rollback()
	}()

	query := `
		SELECT id, trip_id, user_id, invited_by, status, expires_at, created_at, updated_at
		FROM invitations WHERE id = $1
		FOR UPDATE
	`
	inv, err := scanInvitation(dbTx.QueryRowContext(ctx, query, invitationID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("lock invitation: %w", err)
	}

	if err := validate(inv); err != nil {
		return nil, err
	}
	mutate(inv)

	_, err = dbTx.ExecContext(ctx,
		`UPDATE invitations SET status = $2, expires_at = $3, updated_at = $4 WHERE id = $1`,
		inv.ID.String(), string(inv.Status), inv.ExpiresAt, inv.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update invitation: %w", err)
	}

	if post != nil {
		if err := post(tx.WithTx(ctx, dbTx), inv); err != nil {
			return nil, err
		}
	}

	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("commit invitation execute: %w", err)
	}
	return inv, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvitation(row rowScanner) (*models.Invitation, error) {
	var (
		inv                                 models.Invitation
		rawID, rawTrip, rawUser, rawInviter string
		status                              string
	)
	err := row.Scan(&rawID, &rawTrip, &rawUser, &rawInviter, &status,
		&inv.ExpiresAt, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return hydrateInvitation(&inv, rawID, rawTrip, rawUser, rawInviter, status)
}

func scanInvitationWithFlag(row rowScanner) (*models.Invitation, bool, error) {
	var (
		inv                                 models.Invitation
		rawID, rawTrip, rawUser, rawInviter string
		status                              string
		refreshed                           bool
	)
	err := row.Scan(&rawID, &rawTrip, &rawUser, &rawInviter, &status,
		&inv.ExpiresAt, &inv.CreatedAt, &inv.UpdatedAt, &refreshed)
	if err != nil {
		return nil, false, err
	}
	hydrated, err := hydrateInvitation(&inv, rawID, rawTrip, rawUser, rawInviter, status)
	return hydrated, refreshed, err
}

func hydrateInvitation(inv *models.Invitation, rawID, rawTrip, rawUser, rawInviter, status string) (*models.Invitation, error) {
	invID, err := id.ParseInvitationID(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse invitation id: %w", err)
	}
	tripID, err := id.ParseTripID(rawTrip)
	if err != nil {
		return nil, fmt.Errorf("parse invitation trip id: %w", err)
	}
	userID, err := id.ParseUserID(rawUser)
	if err != nil {
		return nil, fmt.Errorf("parse invitation user id: %w", err)
	}
	inviterID, err := id.ParseUserID(rawInviter)
	if err != nil {
		return nil, fmt.Errorf("parse invitation inviter id: %w", err)
	}
	inv.ID = invID
	inv.TripID = tripID
	inv.UserID = userID
	inv.InvitedBy = inviterID
	inv.Status = models.Status(status)
	return inv, nil
}

// PendingPostgres implements the placeholder store with a unique key on
// (email, trip_id).
type PendingPostgres struct {
	db *sql.DB
}

func NewPendingPostgres(db *sql.DB) *PendingPostgres {
	return &PendingPostgres{db: db}
}

func (s *PendingPostgres) UpsertRefresh(ctx context.Context, p models.PendingInvitation) (models.PendingInvitation, bool, error) {
	query := `
		INSERT INTO pending_invitations (email, trip_id, invited_by, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email, trip_id) DO UPDATE SET
			invited_by = EXCLUDED.invited_by,
			expires_at = GREATEST(pending_invitations.expires_at, EXCLUDED.expires_at)
		RETURNING email, trip_id, invited_by, expires_at, created_at, (xmax <> 0) AS refreshed
	`
	row := s.db.QueryRowContext(ctx, query,
		email.Normalize(p.Email), p.TripID.String(), p.InvitedBy.String(), p.ExpiresAt, p.CreatedAt)

	var (
		stored              models.PendingInvitation
		rawTrip, rawInviter string
		refreshed           bool
	)
	err := row.Scan(&stored.Email, &rawTrip, &rawInviter, &stored.ExpiresAt, &stored.CreatedAt, &refreshed)
	if err != nil {
		return models.PendingInvitation{}, false, fmt.Errorf("upsert pending invitation: %w", err)
	}
	tripID, err := id.ParseTripID(rawTrip)
	if err != nil {
		return models.PendingInvitation{}, false, fmt.Errorf("parse pending trip id: %w", err)
	}
	inviterID, err := id.ParseUserID(rawInviter)
	if err != nil {
		return models.PendingInvitation{}, false, fmt.Errorf("parse pending inviter id: %w", err)
	}
	stored.TripID = tripID
	stored.InvitedBy = inviterID
	return stored, refreshed, nil
}

func (s *PendingPostgres) ListByEmail(ctx context.Context, address string) ([]models.PendingInvitation, error) {
	query := `
		SELECT email, trip_id, invited_by, expires_at, created_at
		FROM pending_invitations WHERE email = $1
		ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query, email.Normalize(address))
	if err != nil {
		return nil, fmt.Errorf("list pending invitations: %w", err)
	}
	defer rows.Close()

	var out []models.PendingInvitation
	for rows.Next() {
		var (
			p                   models.PendingInvitation
			rawTrip, rawInviter string
		)
		if err := rows.Scan(&p.Email, &rawTrip, &rawInviter, &p.ExpiresAt, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending invitation: %w", err)
		}
		tripID, err := id.ParseTripID(rawTrip)
		if err != nil {
			return nil, fmt.Errorf("parse pending trip id: %w", err)
		}
		inviterID, err := id.ParseUserID(rawInviter)
		if err != nil {
			return nil, fmt.Errorf("parse pending inviter id: %w", err)
		}
		p.TripID = tripID
		p.InvitedBy = inviterID
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PendingPostgres) Delete(ctx context.Context, address string, tripID id.TripID) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM pending_invitations WHERE email = $1 AND trip_id = $2`,
		email.Normalize(address), tripID.String())
	if err != nil {
		return fmt.Errorf("delete pending invitation: %w", err)
	}
	return nil
}
