package handler

import (
	"time"

	"github.com/pcettina/OutTheGroupchat-sub001/internal/voting/models"
	"github.com/pcettina/OutTheGroupchat-sub001/internal/voting/service"
)

type sessionResponse struct {
	ID        string          `json:"id"`
	TripID    string          `json:"trip_id"`
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Status    string          `json:"status"`
	Options   []optionPayload `json:"options"`
	ExpiresAt time.Time       `json:"expires_at"`
	CreatedAt time.Time       `json:"created_at"`
	ClosedAt  *time.Time      `json:"closed_at,omitempty"`
}

func fromSession(s *models.VotingSession) sessionResponse {
	options := make([]optionPayload, 0, len(s.Options))
	for _, o := range s.Options {
		options = append(options, optionPayload{
			ID:          o.ID,
			Title:       o.Title,
			Description: o.Description,
		})
	}
	return sessionResponse{
		ID:        s.ID.String(),
		TripID:    s.TripID.String(),
		Type:      string(s.Type),
		Title:     s.Title,
		Status:    string(s.Status),
		Options:   options,
		ExpiresAt: s.ExpiresAt,
		CreatedAt: s.CreatedAt,
		ClosedAt:  s.ClosedAt,
	}
}

type createResultResponse struct {
	Session    sessionResponse `json:"session"`
	TripStatus string          `json:"trip_status,omitempty"`
}

func fromCreateResult(result *service.CreateResult) createResultResponse {
	resp := createResultResponse{Session: fromSession(result.Session)}
	if result.StatusAdvisory.Applied {
		resp.TripStatus = string(result.StatusAdvisory.To)
	}
	return resp
}

type tallyRow struct {
	OptionID   string `json:"option_id"`
	Title      string `json:"title"`
	Count      int    `json:"count"`
	Percentage int    `json:"percentage"`
}

type tallyResponse struct {
	SessionID  string     `json:"session_id"`
	Status     string     `json:"status"`
	Results    []tallyRow `json:"results"`
	TotalVotes int        `json:"total_votes"`
	Turnout    int        `json:"turnout"`
}

func fromTally(t *models.Tally) tallyResponse {
	rows := make([]tallyRow, 0, len(t.Options))
	for _, row := range t.Options {
		rows = append(rows, tallyRow{
			OptionID:   row.Option.ID,
			Title:      row.Option.Title,
			Count:      row.Count,
			Percentage: row.Percentage,
		})
	}
	return tallyResponse{
		SessionID:  t.SessionID.String(),
		Status:     string(t.Status),
		Results:    rows,
		TotalVotes: t.TotalVotes,
		Turnout:    t.Turnout,
	}
}
