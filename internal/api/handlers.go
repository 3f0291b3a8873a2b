package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// CreateSessionRequest is the POST /sessions payload.
type CreateSessionRequest struct {
	SessionID               uint64 `json:"session_id"`
	BoardSideLen            uint8  `json:"board_side_len"`
	MaxPlayers              uint8  `json:"max_players"`
	RegistrationFeeLamports uint64 `json:"registration_fee_lamports"`
	LamportsPerScore        uint64 `json:"lamports_per_score"`
}

// CreateSessionResponse echoes the accepted configuration plus the start
// transaction hash.
type CreateSessionResponse struct {
	SessionID    uint64 `json:"session_id"`
	BoardAddress string `json:"board_address"`
	StartTx      string `json:"start_tx"`
}

func (s *Server) postCreateSession(c echo.Context) error {
	var req CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	sess, err := s.orch.CreateSession(
		c.Request().Context(),
		req.SessionID,
		req.BoardSideLen,
		req.MaxPlayers,
		req.RegistrationFeeLamports,
		req.LamportsPerScore,
	)
	if err != nil {
		log.Warn().Uint64("game_id", req.SessionID).Err(err).Msg("Session creation rejected")
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, CreateSessionResponse{
		SessionID:    sess.ID,
		BoardAddress: sess.BoardAddress.String(),
		StartTx:      sess.Trace().Start,
	})
}

func (s *Server) getSessions(c echo.Context) error {
	return c.JSON(http.StatusOK, s.orch.Sessions())
}

// getStatus serves GET /status. With an id parameter it answers for that
// session; without one it answers for the most recent session.
func (s *Server) getStatus(c echo.Context) error {
	ctx := c.Request().Context()

	raw := c.QueryParam("id")
	if raw == "" {
		payload, err := s.orch.LatestStatus(ctx)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, payload)
	}

	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id must be an unsigned integer")
	}
	payload, err := s.orch.GetStatus(ctx, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, payload)
}

// RetryRewardRequest is the POST /retry-reward payload.
type RetryRewardRequest struct {
	SessionID uint64 `json:"session_id"`
}

func (s *Server) postRetryReward(c echo.Context) error {
	var req RetryRewardRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if err := s.orch.RetryReward(req.SessionID); err != nil {
		return httpError(err)
	}
	// Distribution runs in the background; the result lands on the snapshot.
	return c.JSON(http.StatusAccepted, map[string]any{"session_id": req.SessionID, "accepted": true})
}

func (s *Server) getLeaderboard(c echo.Context) error {
	if s.scores == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "leaderboard is not configured")
	}
	ctx := c.Request().Context()

	if raw := c.QueryParam("game_id"); raw != "" {
		gameID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "game_id must be an unsigned integer")
		}
		entries, err := s.scores.ForGame(ctx, gameID)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, entries)
	}

	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be between 1 and 200")
		}
		limit = n
	}
	ranks, err := s.scores.Top(ctx, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, ranks)
}

func (s *Server) getHealthz(c echo.Context) error {
	dbStatus := "disabled"
	if s.health != nil {
		dbStatus = "ok"
		if err := s.health.HealthCheck(c.Request().Context()); err != nil {
			log.Warn().Err(err).Msg("Database health check failed")
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status":   "degraded",
				"database": "unreachable",
			})
		}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":        "ok",
		"database":      dbStatus,
		"live_sessions": s.orch.Registry().Len(),
	})
}
