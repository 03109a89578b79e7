// Package server exposes collections over HTTP as server-sent event streams.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	tiktok "github.com/RavensCloud/tiktok-collector"
)

// VideoCollector runs one collection, reporting to sink until it returns.
type VideoCollector interface {
	Collect(ctx context.Context, profileURL string, sink tiktok.EventSink) error
}

// Options configure admission and CORS.
type Options struct {
	AllowedOrigins    []string
	MaxSessions       int
	SessionsPerMinute int
	SessionBurst      int
	ShutdownTimeout   time.Duration
}

// Server serves GET /api/tiktok/user-videos and GET /health.
type Server struct {
	collector VideoCollector
	opts      Options
	logger    zerolog.Logger
	engine    *gin.Engine

	limiter  *rate.Limiter
	sessions *semaphore.Weighted
	active   atomic.Int64
}

// New builds the gin engine. Options with non-positive limits fall back to
// one session and one start per minute.
func New(c VideoCollector, opts Options, logger zerolog.Logger) *Server {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 1
	}
	if opts.SessionsPerMinute <= 0 {
		opts.SessionsPerMinute = 1
	}
	if opts.SessionBurst <= 0 {
		opts.SessionBurst = 1
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		collector: c,
		opts:      opts,
		logger:    logger,
		limiter:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.SessionsPerMinute)), opts.SessionBurst),
		sessions:  semaphore.NewWeighted(int64(opts.MaxSessions)),
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))
	r.Use(cors.New(corsConfig(opts.AllowedOrigins)))

	r.GET("/health", s.health)
	r.GET("/api/tiktok/user-videos", s.userVideos)

	s.engine = r
	return s
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Accept", "Cache-Control", "Last-Event-ID"},
		ExposeHeaders: []string{"X-Collection-ID"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	return cfg
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ActiveSessions returns the number of collections in progress.
func (s *Server) ActiveSessions() int {
	return int(s.active.Load())
}

// Run serves on addr until ctx is cancelled. In-flight collections are
// cancelled first so their browsers are released, then the server is shut
// down within Options.ShutdownTimeout.
func (s *Server) Run(ctx context.Context, addr string) error {
	base, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info().Int("active_sessions", s.ActiveSessions()).Msg("shutting down")
	cancelBase()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		_ = srv.Close()
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "activeSessions": s.ActiveSessions()})
}

func (s *Server) userVideos(c *gin.Context) {
	profileURL := c.Query("url")
	if profileURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "URL is required"})
		return
	}
	if _, err := tiktok.ParseProfileHandle(profileURL); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid profile URL"})
		return
	}

	if !s.limiter.Allow() {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many collections started, try again shortly"})
		return
	}
	if !s.sessions.TryAcquire(1) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many collections in progress"})
		return
	}
	defer s.sessions.Release(1)
	s.active.Add(1)
	defer s.active.Add(-1)

	id := uuid.NewString()
	logger := s.logger.With().Str("collection_id", id).Logger()
	ctx, cancel := context.WithCancel(logger.WithContext(c.Request.Context()))
	defer cancel()

	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	header.Set("X-Collection-ID", id)
	c.Status(http.StatusOK)
	c.Writer.Flush()

	events := make(chan tiktok.Event)
	sink := tiktok.EventSinkFunc(func(e tiktok.Event) error {
		select {
		case events <- e:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	var collectErr error
	go func() {
		defer close(events)
		collectErr = s.collector.Collect(ctx, profileURL, sink)
	}()

	// Drain until the collector returns so the browser is gone before the
	// session slot is released. A failed write cancels the collection.
	writeFailed, ended := false, false
	for e := range events {
		if writeFailed {
			continue
		}
		c.Render(-1, sseFrame{event: e})
		if err := c.Errors.Last(); err != nil {
			logger.Debug().Err(err).Msg("event write failed, cancelling collection")
			writeFailed = true
			cancel()
			continue
		}
		c.Writer.Flush()
		ended = e.Terminal()
	}

	switch {
	case writeFailed || ctx.Err() != nil:
	case collectErr != nil:
		logger.Warn().Err(collectErr).Msg("collection ended with error")
	case !ended:
		logger.Warn().Msg("collection ended without a terminal event")
	}
}

// requestLogger logs one line per request.
func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		ev := logger.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			ev = logger.Error()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Str("client_ip", c.ClientIP()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
