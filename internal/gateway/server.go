package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config configures the gateway server.
type Config struct {
	ListenAddr  string
	AgentSecret string
	Metrics     bool
}

// Server is the ingestion gateway HTTP server.
type Server struct {
	srv *http.Server
}

// NewServer wires the ingestion endpoint and, optionally, Prometheus
// metrics onto one mux.
func NewServer(cfg Config, pub Publisher) (*Server, error) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.AgentSecret == "" {
		return nil, fmt.Errorf("gateway agent secret is required")
	}

	mux := http.NewServeMux()
	mux.Handle("/api/incident", IncidentHandler(cfg.AgentSecret, pub))
	if cfg.Metrics {
		mux.Handle("/metrics", promhttp.Handler())
	}

	return &Server{
		srv: &http.Server{Addr: cfg.ListenAddr, Handler: mux},
	}, nil
}

// ListenAndServe blocks serving requests.
func (s *Server) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

// Shutdown drains the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
