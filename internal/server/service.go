// Package server provides the HTTP dashboard API with per-session state.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/theirongolddev/snapdash/internal/metrics"
	"github.com/theirongolddev/snapdash/internal/model"
	"github.com/theirongolddev/snapdash/internal/session"
	"github.com/theirongolddev/snapdash/internal/store"
)

// Config controls the server runtime behavior.
type Config struct {
	Addr           string
	MaxUploadBytes int64
	Tracked        []model.TrackedMetric
	DefaultParams  model.TrendParams
	Backend        string
	EventsBuffer   int
}

// Status is served at /v1/status.
type Status struct {
	StartedAt       time.Time `json:"started_at"`
	Addr            string    `json:"addr"`
	Backend         string    `json:"session_backend"`
	SessionsCreated int64     `json:"sessions_created"`
	Uploads         int64     `json:"uploads"`
	UploadErrors    int64     `json:"upload_errors"`
	LastUploadAt    time.Time `json:"last_upload_at,omitempty"`
	LastError       string    `json:"last_error,omitempty"`
	EventCount      int       `json:"event_count"`
	SubscriberCount int       `json:"subscriber_count"`
}

// Service provides the dashboard HTTP API.
type Service struct {
	cfg      Config
	sessions session.Store
	history  *store.Cache
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	router   *gin.Engine

	mu              sync.RWMutex
	startedAt       time.Time
	sessionsCreated int64
	uploads         int64
	uploadErrors    int64
	lastUploadAt    time.Time
	lastError       string
	nextEventID     int64
	events          []Event
	nextSubID       int
	subs            map[int]subscriber
}

// New returns a service backed by sessions. history may be nil; when set,
// every accepted upload is appended to it.
func New(cfg Config, sessions session.Store, history *store.Cache) *Service {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8050"
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 32 << 20
	}
	if len(cfg.Tracked) == 0 {
		cfg.Tracked = model.DefaultTrackedMetrics
	}
	if cfg.DefaultParams == (model.TrendParams{}) {
		cfg.DefaultParams = model.DefaultTrendParams()
	}
	cfg.DefaultParams = cfg.DefaultParams.Normalize()
	if cfg.EventsBuffer < 1 {
		cfg.EventsBuffer = 200
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	if err := router.SetTrustedProxies(nil); err != nil {
		log.Err(err).Msg("setting trusted proxies")
	}
	router.Use(recoveryMiddleware(), loggingMiddleware("/healthz", "/metrics"))

	s := &Service{
		cfg:       cfg,
		sessions:  sessions,
		history:   history,
		metrics:   metrics.New(reg),
		registry:  reg,
		router:    router,
		startedAt: time.Now(),
		subs:      make(map[int]subscriber),
	}
	s.initRouter()
	return s
}

// Handler returns the HTTP handler.
func (s *Service) Handler() http.Handler {
	return s.router
}

// Run serves HTTP until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	log.Info().Str("addr", s.cfg.Addr).Str("backend", s.cfg.Backend).Msg("dashboard server listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.closeSubscribers()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		log.Info().Msg("dashboard server stopped")
		return nil
	case err := <-errCh:
		return fmt.Errorf("dashboard http server: %w", err)
	}
}

func (s *Service) status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Status{
		StartedAt:       s.startedAt,
		Addr:            s.cfg.Addr,
		Backend:         s.cfg.Backend,
		SessionsCreated: s.sessionsCreated,
		Uploads:         s.uploads,
		UploadErrors:    s.uploadErrors,
		LastUploadAt:    s.lastUploadAt,
		LastError:       s.lastError,
		EventCount:      len(s.events),
		SubscriberCount: len(s.subs),
	}
}

func (s *Service) recordUploadError(reason string, err error) {
	s.metrics.UploadFailed(reason)
	s.mu.Lock()
	s.uploadErrors++
	s.lastError = err.Error()
	s.mu.Unlock()
}
