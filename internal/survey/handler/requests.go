package handler

import (
	"encoding/json"
	"time"

	"github.com/pcettina/OutTheGroupchat-sub001/internal/survey/models"
	dErrors "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain-errors"
)

type questionPayload struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Type    string   `json:"type"`
	Options []string `json:"options,omitempty"`
}

// createRequest is the POST /trips/{tripID}/survey body. Question semantics
// are validated by the engine; the handler only checks shape.
type createRequest struct {
	Title      string            `json:"title"`
	Questions  []questionPayload `json:"questions"`
	TTLSeconds int               `json:"ttl_seconds,omitempty"`
}

func (r createRequest) Validate() error {
	if r.Title == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if len(r.Questions) == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one question is required")
	}
	if r.TTLSeconds < 0 {
		return dErrors.New(dErrors.CodeValidation, "ttl_seconds must not be negative")
	}
	return nil
}

func (r createRequest) Parsed() []models.Question {
	questions := make([]models.Question, 0, len(r.Questions))
	for _, q := range r.Questions {
		questions = append(questions, models.Question{
			ID:      q.ID,
			Prompt:  q.Prompt,
			Type:    models.QuestionType(q.Type),
			Options: q.Options,
		})
	}
	return questions
}

func (r createRequest) TTL(fallback time.Duration) time.Duration {
	if r.TTLSeconds > 0 {
		return time.Duration(r.TTLSeconds) * time.Second
	}
	return fallback
}

// submitRequest is the POST /trips/{tripID}/survey/responses body. Answer
// values stay raw here; the engine types them against the question
// definitions.
type submitRequest struct {
	Answers map[string]json.RawMessage `json:"answers"`
}

func (r submitRequest) Validate() error {
	if len(r.Answers) == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one answer is required")
	}
	return nil
}
