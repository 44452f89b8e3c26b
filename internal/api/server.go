package api

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// ServerTimeouts bound request reads and response writes. Event streams
// lift the write deadline for themselves.
type ServerTimeouts struct {
	Read  time.Duration
	Write time.Duration
}

// Server serves the control API.
type Server struct {
	srv *http.Server
}

// NewServer creates a server for handler on addr.
func NewServer(addr string, handler http.Handler, timeouts ServerTimeouts) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       timeouts.Read,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      timeouts.Write,
		},
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.srv.Addr
}

// Start listens and serves until Shutdown. A clean shutdown returns nil.
func (s *Server) Start() error {
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
