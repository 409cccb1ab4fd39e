// Package httptransport assembles the HTTP surface: middleware chain, public
// health endpoints, and the authenticated coordination API.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	invitationhandler "github.com/pcettina/OutTheGroupchat-sub001/internal/invitation/handler"
	notificationhandler "github.com/pcettina/OutTheGroupchat-sub001/internal/notification/handler"
	"github.com/pcettina/OutTheGroupchat-sub001/internal/platform/metrics"
	"github.com/pcettina/OutTheGroupchat-sub001/internal/platform/middleware"
	surveyhandler "github.com/pcettina/OutTheGroupchat-sub001/internal/survey/handler"
	triphandler "github.com/pcettina/OutTheGroupchat-sub001/internal/trip/handler"
	votinghandler "github.com/pcettina/OutTheGroupchat-sub001/internal/voting/handler"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/platform/httputil"
)

// Deps carries everything the router mounts.
type Deps struct {
	Trips         *triphandler.Handler
	Invitations   *invitationhandler.Handler
	Surveys       *surveyhandler.Handler
	Voting        *votinghandler.Handler
	Notifications *notificationhandler.Handler

	Auth          func(http.Handler) http.Handler
	InviteLimiter func(http.Handler) http.Handler
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
}

// NewRouter builds the chi router with the shared middleware chain.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Device)
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.Logger(d.Logger))
	r.Use(metrics.Latency(d.Metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(d.Auth)
		d.Trips.Register(r)
		d.Invitations.Register(r, d.InviteLimiter)
		d.Surveys.Register(r)
		d.Voting.Register(r)
		d.Notifications.Register(r)
	})

	return r
}
