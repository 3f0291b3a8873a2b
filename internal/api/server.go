// Package api exposes the orchestrator over HTTP: session creation and
// listing, live status reads, the manual reward retry hook and the
// leaderboard.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"king-tiles-orchestrator/internal/config"
	"king-tiles-orchestrator/internal/leaderboard"
	"king-tiles-orchestrator/internal/orchestrator"
)

// Leaderboard is the slice of the score store the HTTP layer reads.
type Leaderboard interface {
	Top(ctx context.Context, limit int) ([]*leaderboard.Rank, error)
	ForGame(ctx context.Context, gameID uint64) ([]*leaderboard.Entry, error)
}

// Pinger reports database reachability for the health endpoint.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// Server hosts the HTTP surface. Scores and health may be nil when no database
// is configured; the leaderboard routes then answer 503.
type Server struct {
	echo   *echo.Echo
	cfg    *config.Config
	orch   *orchestrator.Orchestrator
	scores Leaderboard
	health Pinger
}

func NewServer(cfg *config.Config, orch *orchestrator.Orchestrator, scores Leaderboard, health Pinger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:   e,
		cfg:    cfg,
		orch:   orch,
		scores: scores,
		health: health,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.POST("/sessions", s.postCreateSession)
	s.echo.GET("/sessions", s.getSessions)
	s.echo.GET("/status", s.getStatus)
	s.echo.POST("/retry-reward", s.postRetryReward)
	s.echo.GET("/leaderboard", s.getLeaderboard)
	s.echo.GET("/healthz", s.getHealthz)
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.cfg.HTTP.Addr).Msg("HTTP server listening")
	if err := s.echo.Start(s.cfg.HTTP.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the routed handler, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// httpError maps orchestrator errors onto HTTP status codes.
func httpError(err error) error {
	switch {
	case errors.Is(err, orchestrator.ErrInvalidMode):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, orchestrator.ErrDuplicateSession):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, orchestrator.ErrSessionActive):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, orchestrator.ErrCustodyMismatch):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, orchestrator.ErrUnknownSession):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, orchestrator.ErrTemporarilyUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
