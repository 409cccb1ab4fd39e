package handler

import (
	"time"

	"github.com/pcettina/OutTheGroupchat-sub001/internal/invitation/models"
	"github.com/pcettina/OutTheGroupchat-sub001/internal/invitation/service"
)

type emailResultResponse struct {
	Email     string    `json:"email"`
	Outcome   string    `json:"outcome"`
	Delivery  string    `json:"delivery,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

type emailErrorResponse struct {
	Email string `json:"email"`
	Error string `json:"error"`
}

type inviteResponse struct {
	Results    []emailResultResponse `json:"results"`
	Errors     []emailErrorResponse  `json:"errors,omitempty"`
	TripStatus string                `json:"trip_status,omitempty"`
}

func fromReport(report *service.InviteReport) inviteResponse {
	resp := inviteResponse{Results: make([]emailResultResponse, 0, len(report.Results))}
	for _, r := range report.Results {
		resp.Results = append(resp.Results, emailResultResponse{
			Email:     r.Email,
			Outcome:   string(r.Outcome),
			Delivery:  string(r.Delivery),
			ExpiresAt: r.ExpiresAt,
		})
	}
	for _, e := range report.Errors {
		resp.Errors = append(resp.Errors, emailErrorResponse{Email: e.Email, Error: e.Err.Error()})
	}
	if report.StatusAdvisory.Applied {
		resp.TripStatus = string(report.StatusAdvisory.To)
	}
	return resp
}

type invitationResponse struct {
	ID        string    `json:"id"`
	TripID    string    `json:"trip_id"`
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expires_at"`
}

func fromInvitation(inv *models.Invitation) invitationResponse {
	return invitationResponse{
		ID:        inv.ID.String(),
		TripID:    inv.TripID.String(),
		Status:    string(inv.Status),
		ExpiresAt: inv.ExpiresAt,
	}
}
