package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain"
	"github.com/pcettina/OutTheGroupchat-sub001/pkg/requestcontext"
)

func testLimiter(store CounterStore, burst int) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	limiter := New(store, burst, time.Minute, logger)
	return limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
}

func requestAt(t *testing.T, userID id.UserID, at time.Time) *http.Request {
	t.Helper()
	ctx := requestcontext.WithTime(context.Background(), at)
	if !userID.IsZero() {
		ctx = requestcontext.WithUserID(ctx, userID)
	}
	req := httptest.NewRequest(http.MethodPost, "/trips/abc/invitations", nil)
	return req.WithContext(ctx)
}

func TestLimiterBlocksAboveBurst(t *testing.T) {
	handler := testLimiter(NewMemoryStore(), 2)
	userID := id.NewUserID()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, requestAt(t, userID, now))
		require.Equal(t, http.StatusNoContent, rec.Code)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAt(t, userID, now))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestLimiterWindowResets(t *testing.T) {
	handler := testLimiter(NewMemoryStore(), 1)
	userID := id.NewUserID()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAt(t, userID, now))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAt(t, userID, now))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAt(t, userID, now.Add(2*time.Minute)))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	handler := testLimiter(NewMemoryStore(), 1)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, requestAt(t, id.NewUserID(), now))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}

func TestLimiterPassesAnonymousRequests(t *testing.T) {
	handler := testLimiter(NewMemoryStore(), 0)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAt(t, id.UserID{}, now))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

type brokenStore struct{}

func (brokenStore) Incr(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("connection refused")
}

func TestLimiterFailsOpen(t *testing.T) {
	handler := testLimiter(brokenStore{}, 1)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAt(t, id.NewUserID(), now))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
