package http

import (
	nethttp "net/http"

	"github.com/Tapu45/CurioAi-sub001/internal/config"
)

// NewServer wraps the router in an http.Server carrying the configured
// timeouts. WriteTimeout stays 0 so a long visualization fetch is bounded by
// the client, not the server.
func NewServer(cfg *config.Config, rc RouterConfig) *nethttp.Server {
	return &nethttp.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           NewRouter(rc),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout.Duration,
		IdleTimeout:       cfg.HTTP.IdleTimeout.Duration,
		WriteTimeout:      0,
	}
}
