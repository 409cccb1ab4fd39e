package httpserver

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pcettina/OutTheGroupchat-sub001/internal/platform/config"
)

func TestNewAppliesConfigDeadlines(t *testing.T) {
	cfg := config.Server{
		Addr:         ":0",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  time.Minute,
	}

	srv := New(cfg, http.NewServeMux())

	assert.Equal(t, ":0", srv.Addr)
	assert.Equal(t, cfg.ReadTimeout, srv.ReadTimeout)
	assert.Equal(t, cfg.WriteTimeout, srv.WriteTimeout)
	assert.Equal(t, cfg.IdleTimeout, srv.IdleTimeout)
	assert.NotZero(t, srv.ReadHeaderTimeout)
}
