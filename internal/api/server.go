package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"mysql-backup-restore/internal/logging"
)

// ServerConfig holds the HTTP listener settings
type ServerConfig struct {
	Address         string        `mapstructure:"address" yaml:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// SetDefaults fills unset values
func (c *ServerConfig) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 30 * time.Second
	}
	// Restores and downloads of large dumps can run for a long time.
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Minute
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
}

// Server serves a Handler
type Server struct {
	http    *http.Server
	config  ServerConfig
	logger  *logging.Logger
	errChan chan error
}

// NewServer creates a server for the handler's router
func NewServer(handler *Handler, config ServerConfig, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	config.SetDefaults()
	return &Server{
		http: &http.Server{
			Addr:         config.Address,
			Handler:      handler.Router(),
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
		},
		config:  config,
		logger:  logger,
		errChan: make(chan error, 1),
	}
}

// Start listens in the background. Errors other than a clean shutdown are
// delivered on Errors.
func (s *Server) Start() {
	s.logger.WithField("address", s.config.Address).Info("HTTP API listening")
	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errChan <- err
		}
		close(s.errChan)
	}()
}

// Errors reports a fatal listener error
func (s *Server) Errors() <-chan error {
	return s.errChan
}

// Shutdown drains in-flight requests within the configured timeout
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	s.logger.Info("HTTP API shutting down")
	return s.http.Shutdown(ctx)
}
