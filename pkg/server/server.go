// Package server exposes the marketplace over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ujjwalredd/Axiomeer/pkg/marketplace"
	"github.com/ujjwalredd/Axiomeer/pkg/metrics"
	"github.com/ujjwalredd/Axiomeer/pkg/ratelimit"
)

const shutdownTimeout = 10 * time.Second

// Server routes HTTP requests to a marketplace service.
type Server struct {
	svc     *marketplace.Service
	limiter *ratelimit.Limiter
	logger  *zap.Logger
	engine  *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRateLimiter throttles /shop and /execute per client.
func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(s *Server) { s.limiter = l }
}

// New builds the router.
func New(svc *marketplace.Service, opts ...Option) *Server {
	s := &Server{svc: svc, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	e := gin.New()
	e.Use(requestID(), accessLog(s.logger), recovery(s.logger), metrics.Middleware())

	e.GET("/health", s.health)
	e.GET("/metrics", gin.WrapH(metrics.Handler()))

	e.GET("/apps", s.listApps)
	e.POST("/apps", s.createApp)
	e.GET("/apps/:id", s.getApp)
	e.PUT("/apps/:id", s.upsertApp)
	e.GET("/apps/:id/trust", s.appTrust)

	limited := e.Group("/", ratelimit.Middleware(s.limiter))
	limited.POST("/shop", s.shop)
	limited.POST("/execute", s.execute)

	e.GET("/runs", s.listRuns)
	e.GET("/runs/:id", s.getRun)
	e.GET("/trust", s.listTrust)

	e.POST("/messages", s.postMessage)
	e.GET("/history", s.history)
	e.GET("/history/:client_id", s.history)

	s.engine = e
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is canceled, then drains
// in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
