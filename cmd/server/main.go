package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pcettina/OutTheGroupchat-sub001/internal/audit"
	identitystore "github.com/pcettina/OutTheGroupchat-sub001/internal/identity/store"
	invitationhandler "github.com/pcettina/OutTheGroupchat-sub001/internal/invitation/handler"
	invitationmetrics "github.com/pcettina/OutTheGroupchat-sub001/internal/invitation/metrics"
	invitationservice "github.com/pcettina/OutTheGroupchat-sub001/internal/invitation/service"
	invitationstore "github.com/pcettina/OutTheGroupchat-sub001/internal/invitation/store"
	"github.com/pcettina/OutTheGroupchat-sub001/internal/jwttoken"
	"github.com/pcettina/OutTheGroupchat-sub001/internal/mailer"
	membershipstore "github.com/pcettina/OutTheGroupchat-sub001/internal/membership/store"
	"github.com/pcettina/OutTheGroupchat-sub001/internal/notification"
	notificationhandler "github.com/pcettina/OutTheGroupchat-sub001/internal/notification/handler"
	notificationstore "github.com/pcettina/OutTheGroupchat-sub001/internal/notification/store"
	"github.com/pcettina/OutTheGroupchat-sub001/internal/platform/config"
	"github.com/pcettina/OutTheGroupchat-sub001/internal/platform/httpserver"
	"github.com/pcettina/OutTheGroupchat-sub001/internal/platform/logger"
	"github.com/pcettina/OutTheGroupchat-sub001/internal/platform/metrics"
	"github.com/pcettina/OutTheGroupchat-sub001/internal/platform/middleware"
	"github.com/pcettina/OutTheGroupchat-sub001/internal/platform/postgres"
	platformredis "github.com/pcettina/OutTheGroupchat-sub001/internal/platform/redis"
	"github.com/pcettina/OutTheGroupchat-sub001/internal/ratelimit"
	surveyhandler "github.com/pcettina/OutTheGroupchat-sub001/internal/survey/handler"
	surveymetrics "github.com/pcettina/OutTheGroupchat-sub001/internal/survey/metrics"
	surveyservice "github.com/pcettina/OutTheGroupchat-sub001/internal/survey/service"
	surveystore "github.com/pcettina/OutTheGroupchat-sub001/internal/survey/store"
	httptransport "github.com/pcettina/OutTheGroupchat-sub001/internal/transport/http"
	triphandler "github.com/pcettina/OutTheGroupchat-sub001/internal/trip/handler"
	tripservice "github.com/pcettina/OutTheGroupchat-sub001/internal/trip/service"
	tripstore "github.com/pcettina/OutTheGroupchat-sub001/internal/trip/store"
	votinghandler "github.com/pcettina/OutTheGroupchat-sub001/internal/voting/handler"
	votingmetrics "github.com/pcettina/OutTheGroupchat-sub001/internal/voting/metrics"
	votingservice "github.com/pcettina/OutTheGroupchat-sub001/internal/voting/service"
	votingstore "github.com/pcettina/OutTheGroupchat-sub001/internal/voting/store"
	id "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain"
)

// main wires the coordination engine. Stores come in memory and Postgres
// flavors; the env decides which runs. Business logic lives in the internal
// service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	db, err := postgres.Open(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
	}

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var auditSink audit.Sink = audit.NewInMemoryStore()
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err := audit.NewKafkaSink(cfg.KafkaBrokers, audit.DefaultTopic, log)
		if err != nil {
			log.Error("kafka connection failed", "error", err)
			os.Exit(1)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := kafkaSink.Close(ctx); err != nil {
				log.Warn("audit producer close failed", "error", err)
			}
		}()
		auditSink = kafkaSink
	}
	auditor := audit.NewPublisher(auditSink, log)

	stores := buildStores(db)

	notifier := notification.NewBestEffort(notification.NewStoreSink(stores.notifications), log)
	httpMetrics := metrics.New()

	lifecycle := tripservice.NewLifecycle(stores.trips, log)

	invitations := invitationservice.NewService(
		stores.invitations,
		stores.pending,
		stores.memberships,
		stores.accounts,
		notifier,
		tripInfoAdapter{lifecycle},
		mailer.NewLogSender(log),
		auditor,
		invitationmetrics.New(),
		log,
	)
	surveys := surveyservice.NewService(
		stores.surveys, stores.memberships, notifier, lifecycle,
		auditor, surveymetrics.New(), log,
	)
	voting := votingservice.NewService(
		stores.voting, stores.memberships, notifier, lifecycle,
		auditor, votingmetrics.New(), log,
	)

	var counter ratelimit.CounterStore = ratelimit.NewMemoryStore()
	if redisClient != nil {
		counter = ratelimit.NewRedisStore(redisClient.Client)
	}
	limiter := ratelimit.New(counter, cfg.InviteBurst, cfg.InviteWindow, log)

	tokens := jwttoken.NewService(cfg.JWTSigningKey, "tripsync")

	router := httptransport.NewRouter(httptransport.Deps{
		Trips:         triphandler.New(lifecycle, log),
		Invitations:   invitationhandler.New(invitations, cfg.InviteTTL, log),
		Surveys:       surveyhandler.New(surveys, cfg.SurveyTTL, log),
		Voting:        votinghandler.New(voting, cfg.VotingTTL, log),
		Notifications: notificationhandler.New(stores.notifications, log),
		Auth:          middleware.RequireAuth(tokens, log),
		InviteLimiter: limiter.Middleware,
		Metrics:       httpMetrics,
		Logger:        log,
	})

	srv := httpserver.New(cfg, router)

	go func() {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

// membershipStore is the union of the membership slices the engines consume.
type membershipStore interface {
	invitationservice.MembershipStore
	surveyservice.MembershipStore
}

// storeSet groups the per-domain stores behind their service interfaces.
type storeSet struct {
	trips         tripservice.Store
	memberships   membershipStore
	accounts      invitationservice.Accounts
	invitations   invitationservice.InvitationStore
	pending       invitationservice.PendingStore
	surveys       surveyservice.Store
	voting        votingservice.Store
	notifications notification.Store
}

func buildStores(db *sql.DB) storeSet {
	if db == nil {
		return storeSet{
			trips:         tripstore.NewInMemory(),
			memberships:   membershipstore.NewInMemory(),
			accounts:      identitystore.NewInMemory(),
			invitations:   invitationstore.NewInMemory(),
			pending:       invitationstore.NewPendingInMemory(),
			surveys:       surveystore.NewInMemory(),
			voting:        votingstore.NewInMemory(),
			notifications: notificationstore.NewInMemory(),
		}
	}
	return storeSet{
		trips:         tripstore.NewPostgres(db),
		memberships:   membershipstore.NewPostgres(db),
		accounts:      identitystore.NewPostgres(db),
		invitations:   invitationstore.NewPostgres(db),
		pending:       invitationstore.NewPendingPostgres(db),
		surveys:       surveystore.NewPostgres(db),
		voting:        votingstore.NewPostgres(db),
		notifications: notificationstore.NewPostgres(db),
	}
}

// tripInfoAdapter narrows the lifecycle controller to the slice the
// invitation reconciler needs.
type tripInfoAdapter struct {
	*tripservice.Lifecycle
}

func (a tripInfoAdapter) Get(ctx context.Context, tripID id.TripID) (invitationservice.TripInfo, error) {
	trip, err := a.Lifecycle.Get(ctx, tripID)
	if err != nil {
		return invitationservice.TripInfo{}, err
	}
	return invitationservice.TripInfo{ID: trip.ID, Title: trip.Title}, nil
}
