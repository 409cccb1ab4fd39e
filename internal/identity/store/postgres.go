package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	id "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/email"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/platform/sentinel"
)

// Postgres resolves accounts against the identity provider's users table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Create(ctx context.Context, address string, userID id.UserID) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (email, user_id) VALUES ($1, $2)`,
		email.Normalize(address), userID.String())
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (s *Postgres) FindByEmail(ctx context.Context, address string) (id.UserID, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id FROM accounts WHERE email = $1`, email.Normalize(address)).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return id.UserID{}, sentinel.ErrNotFound
		}
		return id.UserID{}, fmt.Errorf("find account by email: %w", err)
	}
	return id.ParseUserID(raw)
}

func (s *Postgres) EmailOf(ctx context.Context, userID id.UserID) (string, error) {
	var address string
	err := s.db.QueryRowContext(ctx,
		`SELECT email FROM accounts WHERE user_id = $1`, userID.String()).Scan(&address)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", sentinel.ErrNotFound
		}
		return "", fmt.Errorf("email of user: %w", err)
	}
	return address, nil
}
