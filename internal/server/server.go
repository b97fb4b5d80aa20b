package server

import (
	"net/http"
)

// DefaultAddr is the default address for the notification server.
const DefaultAddr = ":8080"

// Config configures a Server.
type Config struct {
	Addr          string
	Notifications *NotificationHandler
	Health        *HealthChecker
}

// Server serves the notification webhooks and health probes.
type Server struct {
	httpService
	health *HealthChecker
}

// New creates a Server. Health defaults to a checker without queue stats.
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Health == nil {
		cfg.Health = NewHealthChecker(nil)
	}

	mux := http.NewServeMux()
	if cfg.Notifications != nil {
		cfg.Notifications.Register(mux)
	}
	cfg.Health.RegisterHealthEndpoints(mux)

	return &Server{
		httpService: httpService{name: "notification server", addr: cfg.Addr, handler: mux},
		health:      cfg.Health,
	}
}

// Health returns the server's health checker.
func (s *Server) Health() *HealthChecker {
	return s.health
}
