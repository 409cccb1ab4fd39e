package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pcettina/OutTheGroupchat-sub001/internal/survey/models"
	id "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/platform/sentinel"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/platform/tx"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/requestcontext"
)

// Postgres persists surveys with questions as JSONB. Submit wraps the
// upsert-recount-close sequence in a transaction holding the survey row lock.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Create(ctx context.Context, survey *models.Survey) error {
	questions, err := json.Marshal(survey.Questions)
	if err != nil {
		return fmt.Errorf("marshal survey questions: %w", err)
	}
	query := `
		INSERT INTO surveys (id, trip_id, title, status, questions, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = s.db.ExecContext(ctx, query,
		survey.ID.String(), survey.TripID.String(), survey.Title,
		string(survey.Status), questions, survey.ExpiresAt, survey.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create survey: %w", err)
	}
	return nil
}

func (s *Postgres) FindByTrip(ctx context.Context, tripID id.TripID) (*models.Survey, error) {
	query := `
		SELECT id, trip_id, title, status, questions, expires_at, created_at, closed_at
		FROM surveys WHERE trip_id = $1
	`
	survey, err := scanSurvey(s.db.QueryRowContext(ctx, query, tripID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find survey by trip: %w", err)
	}
	return survey, nil
}

// Submit performs the atomic unit: lock the survey row, verify it is still
// ACTIVE, upsert the response, recount distinct respondents, close at quorum.
// The quorum callback runs inside the transaction (exposed through the
// context), so the denominator is read under the same lock as the close.
func (s *Postgres) Submit(ctx context.Context, surveyID id.SurveyID, response models.Response,
	quorum func(context.Context) (int, error)) (bool, error) {

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin survey submit: %w", err)
	}
	defer func() {
		_ = dbTx.Rollback()
	}()

	var status string
	err = dbTx.QueryRowContext(ctx,
		`SELECT status FROM surveys WHERE id = $1 FOR UPDATE`, surveyID.String()).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, sentinel.ErrNotFound
		}
		return false, fmt.Errorf("lock survey: %w", err)
	}
	if models.Status(status) != models.StatusActive {
		return false, sentinel.ErrInvalidState
	}

	needed, err := quorum(tx.WithTx(ctx, dbTx))
	if err != nil {
		return false, fmt.Errorf("count quorum for survey: %w", err)
	}

	answers, err := json.Marshal(response.Answers)
	if err != nil {
		return false, fmt.Errorf("marshal answers: %w", err)
	}
	_, err = dbTx.ExecContext(ctx, `
		INSERT INTO survey_responses (survey_id, user_id, answers, submitted_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (survey_id, user_id) DO UPDATE SET
			answers = EXCLUDED.answers,
			submitted_at = EXCLUDED.submitted_at
	`, surveyID.String(), response.UserID.String(), answers, response.SubmittedAt)
	if err != nil {
		return false, fmt.Errorf("upsert survey response: %w", err)
	}

	var distinct int
	err = dbTx.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT user_id) FROM survey_responses WHERE survey_id = $1`,
		surveyID.String()).Scan(&distinct)
	if err != nil {
		return false, fmt.Errorf("count survey respondents: %w", err)
	}

	closed := false
	if distinct >= needed {
		_, err = dbTx.ExecContext(ctx,
			`UPDATE surveys SET status = 'CLOSED', closed_at = $2 WHERE id = $1`,
			surveyID.String(), requestcontext.Now(ctx))
		if err != nil {
			return false, fmt.Errorf("close survey: %w", err)
		}
		closed = true
	}

	if err := dbTx.Commit(); err != nil {
		return false, fmt.Errorf("commit survey submit: %w", err)
	}
	return closed, nil
}

func (s *Postgres) ListResponses(ctx context.Context, surveyID id.SurveyID) ([]models.Response, error) {
	query := `
		SELECT survey_id, user_id, answers, submitted_at
		FROM survey_responses WHERE survey_id = $1
		ORDER BY submitted_at
	`
	rows, err := s.db.QueryContext(ctx, query, surveyID.String())
	if err != nil {
		return nil, fmt.Errorf("list survey responses: %w", err)
	}
	defer rows.Close()

	var out []models.Response
	for rows.Next() {
		var (
			r         models.Response
			rawSurvey string
			rawUser   string
			answers   []byte
		)
		if err := rows.Scan(&rawSurvey, &rawUser, &answers, &r.SubmittedAt); err != nil {
			return nil, fmt.Errorf("scan survey response: %w", err)
		}
		surveyID, err := id.ParseSurveyID(rawSurvey)
		if err != nil {
			return nil, fmt.Errorf("parse response survey id: %w", err)
		}
		userID, err := id.ParseUserID(rawUser)
		if err != nil {
			return nil, fmt.Errorf("parse response user id: %w", err)
		}
		r.SurveyID = surveyID
		r.UserID = userID
		if err := json.Unmarshal(answers, &r.Answers); err != nil {
			return nil, fmt.Errorf("unmarshal answers: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanSurvey(row interface{ Scan(dest ...any) error }) (*models.Survey, error) {
	var (
		survey         models.Survey
		rawID, rawTrip string
		status         string
		questions      []byte
		closedAt       sql.NullTime
	)
	err := row.Scan(&rawID, &rawTrip, &survey.Title, &status, &questions,
		&survey.ExpiresAt, &survey.CreatedAt, &closedAt)
	if err != nil {
		return nil, err
	}
	surveyID, err := id.ParseSurveyID(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse survey id: %w", err)
	}
	tripID, err := id.ParseTripID(rawTrip)
	if err != nil {
		return nil, fmt.Errorf("parse survey trip id: %w", err)
	}
	survey.ID = surveyID
	survey.TripID = tripID
	survey.Status = models.Status(status)
	if err := json.Unmarshal(questions, &survey.Questions); err != nil {
		return nil, fmt.Errorf("unmarshal survey questions: %w", err)
	}
	if closedAt.Valid {
		survey.ClosedAt = &closedAt.Time
	}
	return &survey, nil
}
