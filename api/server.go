package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/marquezdaniela/reciclaje-municipal/pkg/config"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/logger"
)

const shutdownGrace = 15 * time.Second

// Server owns the HTTP listener for the api process.
type Server struct {
	http *http.Server
	logg *logger.Logger
}

// NewServer binds handler to the configured port. PORT from the platform
// takes precedence over RECICLAJE_APP_PORT.
func NewServer(cfg *config.Config, handler http.Handler, logg *logger.Logger) *Server {
	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	return &Server{
		http: &http.Server{
			Addr:              ":" + port,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logg: logg,
	}
}

func (s *Server) Addr() string { return s.http.Addr }

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logg.Info(ctx, "api server draining")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
