package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pcettina/OutTheGroupchat-sub001/internal/trip/models"
	id "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/platform/sentinel"
)

// Postgres persists trips. Execute holds a row lock (SELECT ... FOR UPDATE)
// for the validate-then-mutate window.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Create(ctx context.Context, trip *models.Trip) error {
	query := `
		INSERT INTO trips (id, title, owner_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		trip.ID.String(), trip.Title, trip.OwnerID.String(),
		string(trip.Status), trip.CreatedAt, trip.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create trip: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, tripID id.TripID) (*models.Trip, error) {
	query := `
		SELECT id, title, owner_id, status, created_at, updated_at
		FROM trips WHERE id = $1
	`
	return scanTrip(s.db.QueryRowContext(ctx, query, tripID.String()))
}

func (s *Postgres) Execute(ctx context.Context, tripID id.TripID,
	validate func(*models.Trip) error,
	mutate func(*models.Trip)) (*models.Trip, error) {

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin trip execute: %w", err)
	}
	defer func() {
		_ = dbTx.Rollback()
	}()

	query := `
		SELECT id, title, owner_id, status, created_at, updated_at
		FROM trips WHERE id = $1
		FOR UPDATE
	`
	trip, err := scanTrip(dbTx.QueryRowContext(ctx, query, tripID.String()))
	if err != nil {
		return nil, err
	}

	if err := validate(trip); err != nil {
		return nil, err
	}
	mutate(trip)

	_, err = dbTx.ExecContext(ctx,
		`UPDATE trips SET status = $2, updated_at = $3 WHERE id = $1`,
		trip.ID.String(), string(trip.Status), trip.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update trip: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("commit trip execute: %w", err)
	}
	return trip, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrip(row rowScanner) (*models.Trip, error) {
	var (
		trip            models.Trip
		rawID, rawOwner string
		status          string
	)
	err := row.Scan(&rawID, &trip.Title, &rawOwner, &status, &trip.CreatedAt, &trip.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan trip: %w", err)
	}

	tripID, err := id.ParseTripID(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse trip id: %w", err)
	}
	ownerID, err := id.ParseUserID(rawOwner)
	if err != nil {
		return nil, fmt.Errorf("parse trip owner id: %w", err)
	}
	trip.ID = tripID
	trip.OwnerID = ownerID
	trip.Status = models.Status(status)
	return &trip, nil
}
