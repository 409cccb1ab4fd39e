package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pcettina/OutTheGroupchat-sub001/internal/voting/models"
	id "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/platform/sentinel"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/platform/tx"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/requestcontext"
)

// Postgres persists voting sessions with options as JSONB. CastAndCount runs
// its sequence inside one transaction holding the session row lock.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const sessionColumns = `id, trip_id, type, title, status, options, created_by, expires_at, created_at, closed_at`

func (s *Postgres) Create(ctx context.Context, session *models.VotingSession) error {
	options, err := json.Marshal(session.Options)
	if err != nil {
		return fmt.Errorf("marshal session options: %w", err)
	}
	query := `
		INSERT INTO voting_sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULL)
	`
	_, err = s.db.ExecContext(ctx, query,
		session.ID.String(), session.TripID.String(), string(session.Type),
		session.Title, string(session.Status), options,
		session.CreatedBy.String(), session.ExpiresAt, session.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create voting session: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, sessionID id.SessionID) (*models.VotingSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM voting_sessions WHERE id = $1`
	session, err := scanSession(s.db.QueryRowContext(ctx, query, sessionID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find voting session: %w", err)
	}
	return session, nil
}

func (s *Postgres) ListByTrip(ctx context.Context, tripID id.TripID) ([]*models.VotingSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM voting_sessions WHERE trip_id = $1 ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, query, tripID.String())
	if err != nil {
		return nil, fmt.Errorf("list voting sessions: %w", err)
	}
	defer rows.Close()

	var out []*models.VotingSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan voting session: %w", err)
		}
		out = append(out, session)
	}
	return out, rows.Err()
}

// CastAndCount locks the session row, re-checks status and deadline under the
// lock, upserts the vote, recounts distinct voters, and closes at quorum. The
// quorum callback runs inside the transaction (exposed through the context),
// so the denominator is read under the same lock as the close. An expiry
// discovered here closes the session and returns sentinel.ErrExpired.
func (s *Postgres) CastAndCount(ctx context.Context, sessionID id.SessionID, vote models.Vote,
	quorum func(context.Context) (int, error)) (bool, error) {

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin vote cast: %w", err)
	}
	defer func() {
		_ = dbTx.Rollback()
	}()

	var (
		status    string
		expiresAt sql.NullTime
	)
	err = dbTx.QueryRowContext(ctx,
		`SELECT status, expires_at FROM voting_sessions WHERE id = $1 FOR UPDATE`,
		sessionID.String()).Scan(&status, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, sentinel.ErrNotFound
		}
		return false, fmt.Errorf("lock voting session: %w", err)
	}
	if models.Status(status) != models.StatusActive {
		return false, sentinel.ErrInvalidState
	}

	now := requestcontext.Now(ctx)
	if expiresAt.Valid && now.After(expiresAt.Time) {
		_, err = dbTx.ExecContext(ctx,
			`UPDATE voting_sessions SET status = 'CLOSED', closed_at = $2 WHERE id = $1`,
			sessionID.String(), now)
		if err != nil {
			return false, fmt.Errorf("close expired session: %w", err)
		}
		if err := dbTx.Commit(); err != nil {
			return false, fmt.Errorf("commit expiry close: %w", err)
		}
		return false, sentinel.ErrExpired
	}

	needed, err := quorum(tx.WithTx(ctx, dbTx))
	if err != nil {
		return false, fmt.Errorf("count quorum for session: %w", err)
	}

	_, err = dbTx.ExecContext(ctx, `
		INSERT INTO votes (session_id, voter_id, option_id, rank, cast_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id, voter_id, option_id) DO UPDATE SET
			rank = EXCLUDED.rank,
			cast_at = EXCLUDED.cast_at
	`, sessionID.String(), vote.VoterID.String(), vote.OptionID, vote.Rank, vote.CastAt)
	if err != nil {
		return false, fmt.Errorf("upsert vote: %w", err)
	}

	var distinct int
	err = dbTx.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT voter_id) FROM votes WHERE session_id = $1`,
		sessionID.String()).Scan(&distinct)
	if err != nil {
		return false, fmt.Errorf("count voters: %w", err)
	}

	closed := false
	if distinct >= needed {
		_, err = dbTx.ExecContext(ctx,
			`UPDATE voting_sessions SET status = 'CLOSED', closed_at = $2 WHERE id = $1`,
			sessionID.String(), now)
		if err != nil {
			return false, fmt.Errorf("close session at quorum: %w", err)
		}
		closed = true
	}

	if err := dbTx.Commit(); err != nil {
		return false, fmt.Errorf("commit vote cast: %w", err)
	}
	return closed, nil
}

func (s *Postgres) ListVotes(ctx context.Context, sessionID id.SessionID) ([]models.Vote, error) {
	query := `
		SELECT session_id, voter_id, option_id, rank, cast_at
		FROM votes WHERE session_id = $1
	`
	rows, err := s.db.QueryContext(ctx, query, sessionID.String())
	if err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	defer rows.Close()

	var out []models.Vote
	for rows.Next() {
		var (
			v          models.Vote
			rawSession string
			rawVoter   string
			rank       sql.NullInt64
		)
		if err := rows.Scan(&rawSession, &rawVoter, &v.OptionID, &rank, &v.CastAt); err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		sessionID, err := id.ParseSessionID(rawSession)
		if err != nil {
			return nil, fmt.Errorf("parse vote session id: %w", err)
		}
		voterID, err := id.ParseUserID(rawVoter)
		if err != nil {
			return nil, fmt.Errorf("parse voter id: %w", err)
		}
		v.SessionID = sessionID
		v.VoterID = voterID
		if rank.Valid {
			r := int(rank.Int64)
			v.Rank = &r
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// MarkClosed closes an ACTIVE session; closing an already-closed session is
// a no-op.
func (s *Postgres) MarkClosed(ctx context.Context, sessionID id.SessionID) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE voting_sessions SET status = 'CLOSED', closed_at = $2
		WHERE id = $1 AND status = 'ACTIVE'
	`, sessionID.String(), requestcontext.Now(ctx))
	if err != nil {
		return fmt.Errorf("close voting session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("close voting session: %w", err)
	}
	if affected == 0 {
		var exists bool
		err = s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM voting_sessions WHERE id = $1)`,
			sessionID.String()).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check voting session: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
	}
	return nil
}

func scanSession(row interface{ Scan(dest ...any) error }) (*models.VotingSession, error) {
	var (
		session                  models.VotingSession
		rawID, rawTrip, rawOwner string
		sessionType, status      string
		options                  []byte
		closedAt                 sql.NullTime
	)
	err := row.Scan(&rawID, &rawTrip, &sessionType, &session.Title, &status,
		&options, &rawOwner, &session.ExpiresAt, &session.CreatedAt, &closedAt)
	if err != nil {
		return nil, err
	}
	sessionID, err := id.ParseSessionID(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse session id: %w", err)
	}
	tripID, err := id.ParseTripID(rawTrip)
	if err != nil {
		return nil, fmt.Errorf("parse session trip id: %w", err)
	}
	ownerID, err := id.ParseUserID(rawOwner)
	if err != nil {
		return nil, fmt.Errorf("parse session creator id: %w", err)
	}
	session.ID = sessionID
	session.TripID = tripID
	session.CreatedBy = ownerID
	session.Type = models.SessionType(sessionType)
	session.Status = models.Status(status)
	if err := json.Unmarshal(options, &session.Options); err != nil {
		return nil, fmt.Errorf("unmarshal session options: %w", err)
	}
	if closedAt.Valid {
		session.ClosedAt = &closedAt.Time
	}
	return &session, nil
}
