package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pcettina/OutTheGroupchat-sub001/internal/voting/models"
	"github.com/pcettina/OutTheGroupchat-sub001/internal/voting/service"
	id "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain"
	dErrors "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain-errors"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/platform/httputil"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/requestcontext"
)

// Service defines the voting operations the handler exposes.
type Service interface {
	Create(ctx context.Context, tripID id.TripID, actorID id.UserID, sessionType models.SessionType, title string, options []models.Option, ttl time.Duration) (*service.CreateResult, error)
	CastVote(ctx context.Context, sessionID id.SessionID, voterID id.UserID, optionID string, rank *int) (*service.CastResult, error)
	Tally(ctx context.Context, sessionID id.SessionID, actorID id.UserID) (*models.Tally, error)
	ListByTrip(ctx context.Context, tripID id.TripID, actorID id.UserID) ([]*models.VotingSession, error)
}

// Handler wires voting endpoints to the voting engine.
type Handler struct {
	service    Service
	defaultTTL time.Duration
	logger     *slog.Logger
}

func New(service Service, defaultTTL time.Duration, logger *slog.Logger) *Handler {
	return &Handler{service: service, defaultTTL: defaultTTL, logger: logger}
}

// Register mounts voting endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/trips/{tripID}/votes", h.HandleCreate)
	r.Get("/trips/{tripID}/votes", h.HandleList)
	r.Post("/votes/{sessionID}/ballots", h.HandleCast)
	r.Get("/votes/{sessionID}/tally", h.HandleTally)
}

// HandleCreate handles POST /trips/{tripID}/votes.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
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

	req, ok := httputil.DecodeAndPrepare[createRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Create(ctx, tripID, userID,
		models.SessionType(req.Type), req.Title, req.Parsed(), req.TTL(h.defaultTTL))
	if err != nil {
		h.logger.WarnContext(ctx, "voting session creation failed",
			"request_id", requestID,
			"trip_id", tripID,
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "voting session created",
		"request_id", requestID,
		"trip_id", tripID,
		"session_id", result.Session.ID,
		"user_id", userID,
	)
	httputil.WriteJSON(w, http.StatusCreated, fromCreateResult(result))
}

// HandleList handles GET /trips/{tripID}/votes.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

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

	sessions, err := h.service.ListByTrip(ctx, tripID, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, fromSession(s))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// HandleCast handles POST /votes/{sessionID}/ballots.
func (h *Handler) HandleCast(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID := requestcontext.UserID(ctx)
	if userID.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[ballotRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.CastVote(ctx, sessionID, userID, req.OptionID, req.Rank)
	if err != nil {
		h.logger.WarnContext(ctx, "vote rejected",
			"request_id", requestID,
			"session_id", sessionID,
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "vote cast",
		"request_id", requestID,
		"session_id", sessionID,
		"user_id", userID,
		"closed", result.Closed,
	)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"option_id": result.Vote.OptionID,
		"cast_at":   result.Vote.CastAt,
		"closed":    result.Closed,
	})
}

// HandleTally handles GET /votes/{sessionID}/tally.
func (h *Handler) HandleTally(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := requestcontext.UserID(ctx)
	if userID.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	tally, err := h.service.Tally(ctx, sessionID, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromTally(tally))
}
