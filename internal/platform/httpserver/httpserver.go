package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with defaults for this project. There is no
// WriteTimeout because card creation holds the request open for the ledger
// confirmation window; per-route timeouts are set in the handlers.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
