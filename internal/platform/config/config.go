package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration loaded from the environment.
type Server struct {
	Addr          string
	DatabaseURL   string
	RedisURL      string
	KafkaBrokers  []string
	JWTSigningKey string

	// Default deadlines applied when a request omits a TTL.
	InviteTTL time.Duration
	SurveyTTL time.Duration
	VotingTTL time.Duration

	// InviteBurst is the per-user invite call allowance per InviteWindow.
	InviteBurst  int
	InviteWindow time.Duration

	// HTTP server deadlines.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("TRIPSYNC_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default; override in production.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}

	return Server{
		Addr:          addr,
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisURL:      os.Getenv("REDIS_URL"),
		KafkaBrokers:  brokers,
		JWTSigningKey: jwtSigningKey,
		InviteTTL:     durationEnv("INVITE_TTL", 7*24*time.Hour),
		SurveyTTL:     durationEnv("SURVEY_TTL", 72*time.Hour),
		VotingTTL:     durationEnv("VOTING_TTL", 48*time.Hour),
		InviteBurst:   intEnv("INVITE_BURST", 20),
		InviteWindow:  durationEnv("INVITE_WINDOW", time.Hour),
		ReadTimeout:   durationEnv("HTTP_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:  durationEnv("HTTP_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:   durationEnv("HTTP_IDLE_TIMEOUT", time.Minute),
	}
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

func intEnv(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
