package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pcettina/OutTheGroupchat-sub001/internal/trip/models"
	id "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain"
	dErrors "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain-errors"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/platform/httputil"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/requestcontext"
)

// Service defines the trip operations the handler exposes.
type Service interface {
	Create(ctx context.Context, title string, ownerID id.UserID) (*models.Trip, error)
	Get(ctx context.Context, tripID id.TripID) (*models.Trip, error)
	Cancel(ctx context.Context, tripID id.TripID, actorID id.UserID) (*models.Trip, error)
}

// Handler wires trip endpoints to the lifecycle controller.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts trip endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/trips", h.HandleCreate)
	r.Get("/trips/{tripID}", h.HandleGet)
	r.Post("/trips/{tripID}/cancel", h.HandleCancel)
}

type createRequest struct {
	Title string `json:"title"`
}

func (r createRequest) Validate() error {
	if r.Title == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required")
	}
	return nil
}

type tripResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	OwnerID   string    `json:"owner_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func fromTrip(t *models.Trip) tripResponse {
	return tripResponse{
		ID:        t.ID.String(),
		Title:     t.Title,
		OwnerID:   t.OwnerID.String(),
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

// HandleCreate handles POST /trips.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID := requestcontext.UserID(ctx)
	if userID.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[createRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	trip, err := h.service.Create(ctx, req.Title, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "trip creation failed",
			"request_id", requestID,
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "trip created",
		"request_id", requestID,
		"trip_id", trip.ID,
		"user_id", userID,
	)
	httputil.WriteJSON(w, http.StatusCreated, fromTrip(trip))
}

// HandleGet handles GET /trips/{tripID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tripID, err := id.ParseTripID(chi.URLParam(r, "tripID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	trip, err := h.service.Get(ctx, tripID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromTrip(trip))
}

// HandleCancel handles POST /trips/{tripID}/cancel.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
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

	trip, err := h.service.Cancel(ctx, tripID, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "trip cancellation failed",
			"request_id", requestID,
			"trip_id", tripID,
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "trip cancelled",
		"request_id", requestID,
		"trip_id", tripID,
		"user_id", userID,
	)
	httputil.WriteJSON(w, http.StatusOK, fromTrip(trip))
}
