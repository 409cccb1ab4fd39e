// Package ratelimit provides a fixed-window request limiter for the write
// endpoints that fan out work, such as batch invites.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pcettina/OutTheGroupchat-sub001/pkg/platform/httputil"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/requestcontext"
)

// CounterStore increments a counter for a window key. Implementations reset
// the counter when the window elapses.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Limiter enforces at most burst requests per window per key.
type Limiter struct {
	store  CounterStore
	burst  int
	window time.Duration
	logger *slog.Logger
}

func New(store CounterStore, burst int, window time.Duration, logger *slog.Logger) *Limiter {
	return &Limiter{store: store, burst: burst, window: window, logger: logger}
}

// Middleware limits requests per authenticated user. Requests without a user
// in context pass through untouched: authentication rejects them later. A
// counter-store failure fails open.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := requestcontext.UserID(r.Context())
		if userID.IsZero() {
			next.ServeHTTP(w, r)
			return
		}
		key := fmt.Sprintf("ratelimit:%s:%s", r.URL.Path, userID)
		count, err := l.store.Incr(r.Context(), key, l.window)
		if err != nil {
			l.logger.WarnContext(r.Context(), "rate limit counter unavailable",
				"key", key,
				"error", err,
			)
			next.ServeHTTP(w, r)
			return
		}
		if count > int64(l.burst) {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(l.window.Seconds())))
			httputil.WriteJSON(w, http.StatusTooManyRequests, map[string]string{
				"error":             "rate_limited",
				"error_description": "too many requests, slow down",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
