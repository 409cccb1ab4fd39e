package httpserver

import (
	"net/http"
	"time"

	"github.com/pcettina/OutTheGroupchat-sub001/internal/platform/config"
)

// New builds the HTTP server from the process config so timeouts follow
// deployment settings. Invite batches fan out per email, so the write
// deadline must cover the slowest mail provider in the batch.
func New(cfg config.Server, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}
