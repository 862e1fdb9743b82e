package httpserver

import (
	"net/http"
	"time"
)

// New builds the API server. The write timeout sits above the router's
// 90s request deadline so slow ledger confirmations are cut off by the
// handler timeout, not the connection.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
