package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pscheid92/brandpulse/internal/app"
	"github.com/pscheid92/brandpulse/internal/config"
	"github.com/pscheid92/brandpulse/internal/domain"
	apperrors "github.com/pscheid92/brandpulse/internal/errors"
	"github.com/pscheid92/brandpulse/internal/query"
)

// ingestor admits posts into the pipeline.
type ingestor interface {
	SubmitAndWait(ctx context.Context, input app.SubmitInput) (domain.PersistedRecord, error)
}

// querier answers read queries.
type querier interface {
	ListPosts(ctx context.Context, brand string, from, to *time.Time, page, pageSize int) (query.PostPage, error)
	SentimentStats(ctx context.Context, brand string, from, to *time.Time) query.Stats
	Timeline(ctx context.Context, brand string, from, to *time.Time) []query.TimelinePoint
	CompareBrands(ctx context.Context, brands []string, from, to *time.Time) (map[string]query.Stats, error)
	Granularity() domain.Granularity
}

// storageHealth is the readiness slice of the repository.
type storageHealth interface {
	HealthCheck(ctx context.Context) error
}

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	ingest    ingestor
	queries   querier
	storage   storageHealth
	startTime time.Time
}

func NewServer(cfg *config.Config, ingest ingestor, queries querier, storage storageHealth) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(apperrors.Middleware())

	srv := &Server{
		echo:      e,
		config:    cfg,
		ingest:    ingest,
		queries:   queries,
		storage:   storage,
		startTime: time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
