// Package httpserver exposes subscriptions, stored digests and manual runs over HTTP.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"newsletter-digest/internal/logging"
	"newsletter-digest/internal/models"
	"newsletter-digest/internal/runner"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Store is the read and subscription surface of store.Store
type Store interface {
	Ping(ctx context.Context) error
	AddSubscriber(ctx context.Context, email string) (*models.Subscriber, error)
	Unsubscribe(ctx context.Context, email string) error
	LatestItems(ctx context.Context, limit int, category string) ([]models.PersistedItem, error)
	LatestDigests(ctx context.Context, limit int) ([]models.PersistedDigest, error)
	DigestByID(ctx context.Context, id int64) (*models.PersistedDigest, []models.PersistedItem, error)
}

type Runner interface {
	RunOnce(ctx context.Context) (*runner.Result, error)
}

type Server struct {
	store      Store
	runner     Runner
	adminToken string
	engine     *gin.Engine
}

func New(st Store, r Runner, adminToken string) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{store: st, runner: r, adminToken: adminToken, engine: gin.New()}
	s.engine.Use(gin.Recovery(), requestLogger())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.engine.Group("/api")
	{
		api.GET("/health", s.health)

		subscribers := api.Group("/subscribers")
		{
			subscribers.POST("", s.subscribe)
			subscribers.POST("/unsubscribe", s.unsubscribe)
		}

		api.GET("/news", s.news)
		api.GET("/newsletters", s.newsletters)
		api.GET("/newsletters/:id", s.newsletter)
		api.POST("/newsletter/trigger", s.requireAdmin, s.trigger)
	}
}

// Handler returns the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then drains in-flight requests
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Log.WithField("addr", addr).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logging.Log.Info("Shutting down HTTP server")
	return srv.Shutdown(shutdownCtx)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.Log.WithField("method", c.Request.Method).
			WithField("path", c.FullPath()).
			WithField("status", c.Writer.Status()).
			WithField("duration_ms", time.Since(start).Milliseconds()).
			Debug("HTTP request")
	}
}
