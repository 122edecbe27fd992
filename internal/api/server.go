package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Server runs the HTTP API as a supervised service.
type Server struct {
	srv *http.Server
}

// NewServer returns a server bound to addr.
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Name identifies the server to the lifecycle supervisor.
func (s *Server) Name() string { return "http-api" }

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("HTTP server shutdown failed")
		}
	}()

	log.Info().Str("addr", s.srv.Addr).Msg("HTTP server starting")
	if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
