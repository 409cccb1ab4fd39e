package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pcettina/OutTheGroupchat-sub001/internal/survey/models"
	"github.com/pcettina/OutTheGroupchat-sub001/internal/survey/service"
	id "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain"
	dErrors "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain-errors"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/platform/httputil"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/requestcontext"
)

// Service defines the survey operations the handler exposes.
type Service interface {
	Create(ctx context.Context, tripID id.TripID, actorID id.UserID, title string, questions []models.Question, ttl time.Duration) (*service.CreateResult, error)
	Get(ctx context.Context, tripID id.TripID, actorID id.UserID) (*models.Survey, error)
	SubmitResponse(ctx context.Context, tripID id.TripID, userID id.UserID, raw map[string]json.RawMessage) (*service.SubmitResult, error)
	Responses(ctx context.Context, tripID id.TripID, actorID id.UserID) ([]models.Response, error)
}

// Handler wires survey endpoints to the survey engine.
type Handler struct {
	service    Service
	defaultTTL time.Duration
	logger     *slog.Logger
}

func New(service Service, defaultTTL time.Duration, logger *slog.Logger) *Handler {
	return &Handler{service: service, defaultTTL: defaultTTL, logger: logger}
}

// Register mounts survey endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/trips/{tripID}/survey", h.HandleCreate)
	r.Get("/trips/{tripID}/survey", h.HandleGet)
	r.Post("/trips/{tripID}/survey/responses", h.HandleSubmit)
	r.Get("/trips/{tripID}/survey/responses", h.HandleListResponses)
}

// HandleCreate handles POST /trips/{tripID}/survey.
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

	result, err := h.service.Create(ctx, tripID, userID, req.Title, req.Parsed(), req.TTL(h.defaultTTL))
	if err != nil {
		h.logger.WarnContext(ctx, "survey creation failed",
			"request_id", requestID,
			"trip_id", tripID,
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "survey created",
		"request_id", requestID,
		"trip_id", tripID,
		"survey_id", result.Survey.ID,
		"user_id", userID,
	)
	httputil.WriteJSON(w, http.StatusCreated, fromCreateResult(result))
}

// HandleGet handles GET /trips/{tripID}/survey.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
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

	survey, err := h.service.Get(ctx, tripID, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromSurvey(survey))
}

// HandleSubmit handles POST /trips/{tripID}/survey/responses.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
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

	req, ok := httputil.DecodeAndPrepare[submitRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.SubmitResponse(ctx, tripID, userID, req.Answers)
	if err != nil {
		h.logger.WarnContext(ctx, "survey response rejected",
			"request_id", requestID,
			"trip_id", tripID,
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "survey response submitted",
		"request_id", requestID,
		"trip_id", tripID,
		"user_id", userID,
		"closed", result.Closed,
	)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"submitted_at": result.Response.SubmittedAt,
		"closed":       result.Closed,
	})
}

// HandleListResponses handles GET /trips/{tripID}/survey/responses.
func (h *Handler) HandleListResponses(w http.ResponseWriter, r *http.Request) {
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

	responses, err := h.service.Responses(ctx, tripID, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromResponses(responses))
}
