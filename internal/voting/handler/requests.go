package handler

import (
	"time"

	"github.com/pcettina/OutTheGroupchat-sub001/internal/voting/models"
	dErrors "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain-errors"
)

type optionPayload struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// createRequest is the POST /trips/{tripID}/votes body.
type createRequest struct {
	Type       string          `json:"type"`
	Title      string          `json:"title"`
	Options    []optionPayload `json:"options"`
	TTLSeconds int             `json:"ttl_seconds,omitempty"`
}

func (r createRequest) Validate() error {
	if r.Title == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if len(r.Options) == 0 {
		return dErrors.New(dErrors.CodeValidation, "options are required")
	}
	if r.TTLSeconds < 0 {
		return dErrors.New(dErrors.CodeValidation, "ttl_seconds must not be negative")
	}
	return nil
}

func (r createRequest) Parsed() []models.Option {
	options := make([]models.Option, 0, len(r.Options))
	for _, o := range r.Options {
		options = append(options, models.Option{
			ID:          o.ID,
			Title:       o.Title,
			Description: o.Description,
		})
	}
	return options
}

func (r createRequest) TTL(fallback time.Duration) time.Duration {
	if r.TTLSeconds > 0 {
		return time.Duration(r.TTLSeconds) * time.Second
	}
	return fallback
}

// ballotRequest is the POST /votes/{sessionID}/ballots body.
type ballotRequest struct {
	OptionID string `json:"option_id"`
	Rank     *int   `json:"rank,omitempty"`
}

func (r ballotRequest) Validate() error {
	if r.OptionID == "" {
		return dErrors.New(dErrors.CodeValidation, "option_id is required")
	}
	if r.Rank != nil && *r.Rank < 1 {
		return dErrors.New(dErrors.CodeValidation, "rank must be positive")
	}
	return nil
}
