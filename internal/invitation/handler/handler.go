package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pcettina/OutTheGroupchat-sub001/internal/invitation/models"
	"github.com/pcettina/OutTheGroupchat-sub001/internal/invitation/service"
	id "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain"
	dErrors "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain-errors"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/email"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/platform/httputil"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/requestcontext"
)

// Service defines the invitation operations the handler exposes.
type Service interface {
	Invite(ctx context.Context, tripID id.TripID, inviterID id.UserID, emails []string, ttl time.Duration) (*service.InviteReport, error)
	Accept(ctx context.Context, invitationID id.InvitationID, userID id.UserID) (*models.Invitation, error)
	Decline(ctx context.Context, invitationID id.InvitationID, userID id.UserID) (*models.Invitation, error)
	PromotePending(ctx context.Context, address string, newUserID id.UserID) (int, error)
}

// Handler wires invitation endpoints to the reconciler.
type Handler struct {
	service    Service
	defaultTTL time.Duration
	logger     *slog.Logger
}

func New(service Service, defaultTTL time.Duration, logger *slog.Logger) *Handler {
	return &Handler{service: service, defaultTTL: defaultTTL, logger: logger}
}

// Register mounts invitation endpoints on the router. The limiter guards the
// batch invite route, which fans out email sends.
func (h *Handler) Register(r chi.Router, limiter func(http.Handler) http.Handler) {
	if limiter != nil {
		r.With(limiter).Post("/trips/{tripID}/invitations", h.HandleInvite)
	} else {
		r.Post("/trips/{tripID}/invitations", h.HandleInvite)
	}
	r.Post("/invitations/{invitationID}/accept", h.HandleAccept)
	r.Post("/invitations/{invitationID}/decline", h.HandleDecline)
	r.Post("/internal/promotions", h.HandlePromote)
}

// HandleInvite handles POST /trips/{tripID}/invitations.
func (h *Handler) HandleInvite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID := requestcontext.UserID(ctx)
	if userID.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	tripID, err := id.ParseTripID(chi.URLParam(r, "tripID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[inviteRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	report, err := h.service.Invite(ctx, tripID, userID, req.Emails, req.TTL(h.defaultTTL))
	if err != nil {
		h.logger.ErrorContext(ctx, "invite failed",
			"request_id", requestID,
			"trip_id", tripID,
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "invite processed",
		"request_id", requestID,
		"trip_id", tripID,
		"user_id", userID,
		"succeeded", len(report.Results),
		"failed", len(report.Errors),
	)
	httputil.WriteJSON(w, http.StatusOK, fromReport(report))
}

// HandleAccept handles POST /invitations/{invitationID}/accept.
func (h *Handler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, "accepted", h.service.Accept)
}

// HandleDecline handles POST /invitations/{invitationID}/decline.
func (h *Handler) HandleDecline(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, "declined", h.service.Decline)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, verb string,
	op func(context.Context, id.InvitationID, id.UserID) (*models.Invitation, error)) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID := requestcontext.UserID(ctx)
	if userID.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	invitationID, err := id.ParseInvitationID(chi.URLParam(r, "invitationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	inv, err := op(ctx, invitationID, userID)
	if err != nil {
		h.logger.WarnContext(ctx, "invitation response failed",
			"request_id", requestID,
			"invitation_id", invitationID,
			"user_id", userID,
			"verb", verb,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "invitation "+verb,
		"request_id", requestID,
		"invitation_id", invitationID,
		"user_id", userID,
	)
	httputil.WriteJSON(w, http.StatusOK, fromInvitation(inv))
}

// HandlePromote handles POST /internal/promotions, the account-creation hook.
func (h *Handler) HandlePromote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[promoteRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	userID, err := id.ParseUserID(req.UserID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	promoted, err := h.service.PromotePending(ctx, email.Normalize(req.Email), userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "pending promotion failed",
			"request_id", requestID,
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "pending invitations promoted",
		"request_id", requestID,
		"user_id", userID,
		"promoted", promoted,
	)
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"promoted": promoted})
}
