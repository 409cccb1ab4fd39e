package handler

import (
	"time"

	"github.com/pcettina/OutTheGroupchat-sub001/internal/survey/models"
	"github.com/pcettina/OutTheGroupchat-sub001/internal/survey/service"
)

type surveyResponse struct {
	ID        string            `json:"id"`
	TripID    string            `json:"trip_id"`
	Title     string            `json:"title"`
	Status    string            `json:"status"`
	Questions []questionPayload `json:"questions"`
	ExpiresAt time.Time         `json:"expires_at"`
	CreatedAt time.Time         `json:"created_at"`
	ClosedAt  *time.Time        `json:"closed_at,omitempty"`
}

func fromSurvey(s *models.Survey) surveyResponse {
	questions := make([]questionPayload, 0, len(s.Questions))
	for _, q := range s.Questions {
		questions = append(questions, questionPayload{
			ID:      q.ID,
			Prompt:  q.Prompt,
			Type:    string(q.Type),
			Options: q.Options,
		})
	}
	return surveyResponse{
		ID:        s.ID.String(),
		TripID:    s.TripID.String(),
		Title:     s.Title,
		Status:    string(s.Status),
		Questions: questions,
		ExpiresAt: s.ExpiresAt,
		CreatedAt: s.CreatedAt,
		ClosedAt:  s.ClosedAt,
	}
}

type createResultResponse struct {
	Survey     surveyResponse `json:"survey"`
	TripStatus string         `json:"trip_status,omitempty"`
}

func fromCreateResult(result *service.CreateResult) createResultResponse {
	resp := createResultResponse{Survey: fromSurvey(result.Survey)}
	if result.StatusAdvisory.Applied {
		resp.TripStatus = string(result.StatusAdvisory.To)
	}
	return resp
}

type responseEntry struct {
	UserID      string         `json:"user_id"`
	Answers     map[string]any `json:"answers"`
	SubmittedAt time.Time      `json:"submitted_at"`
}

func fromResponses(responses []models.Response) []responseEntry {
	out := make([]responseEntry, 0, len(responses))
	for _, r := range responses {
		answers := make(map[string]any, len(r.Answers))
		for questionID, a := range r.Answers {
			answers[questionID] = answerValue(a)
		}
		out = append(out, responseEntry{
			UserID:      r.UserID.String(),
			Answers:     answers,
			SubmittedAt: r.SubmittedAt,
		})
	}
	return out
}

// answerValue flattens the tagged union back to its natural JSON shape.
func answerValue(a models.Answer) any {
	switch a.Type {
	case models.QuestionText:
		return a.Text
	case models.QuestionSingleChoice:
		return a.Choice
	case models.QuestionMultiChoice:
		return a.Choices
	case models.QuestionNumber:
		return a.Number
	case models.QuestionDateRange:
		return a.Range
	default:
		return nil
	}
}
