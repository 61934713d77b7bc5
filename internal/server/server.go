// Package server exposes the option codec over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/optwire/internal/observability"
	"github.com/danmuck/optwire/internal/protocol/options"
)

const (
	Version = "0.1.0"

	// MaxBodyBytes caps request bodies; a hex region is twice its byte size.
	MaxBodyBytes = 1 << 20

	shutdownTimeout = 5 * time.Second
)

type Server struct {
	ID       string
	Addr     string
	Appeared time.Time
	Registry *options.Registry
	Decoder  *options.Decoder

	router *gin.Engine
}

// New builds a server around a sealed registry. Routes are installed by
// RegisterRoutes.
func New(id, addr string, reg *options.Registry, limits options.Limits) *Server {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(id))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	dec := options.NewDecoder(reg)
	dec.Limits = limits
	return &Server{
		ID:       id,
		Addr:     addr,
		Appeared: time.Now(),
		Registry: reg,
		Decoder:  dec,
		router:   r,
	}
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

// Serve installs the routes and listens until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.RegisterRoutes()
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("server", s.ID).Str("addr", s.Addr).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info().Str("server", s.ID).Msg("server shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
