package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/susnake/Lyssa/internal/settings"
	"github.com/susnake/Lyssa/internal/verify"
)

// Service exposes a read-only operational surface: health, the
// resolved settings and engine counters. Settings change through chat
// commands, never through HTTP.
type Service struct {
	store  *settings.Store
	engine *verify.Engine
}

func NewService(store *settings.Store, engine *verify.Engine) *Service {
	return &Service{store: store, engine: engine}
}

func (s *Service) Register(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)
	e.GET("/config", s.handleConfig)
	e.GET("/stats", s.handleStats)
}

func (s *Service) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func (s *Service) handleConfig(c echo.Context) error {
	snap := s.store.Snapshot()
	return c.JSON(http.StatusOK, echo.Map{
		"challenge_kind": snap.ChallengeKind,
		"time_limit":     int(snap.TimeLimit.Seconds()),
		"prompt_message": snap.PromptMessage,
		"button_text":    snap.ButtonText,
		"access_level":   snap.AccessLevel.String(),
		"ban_users":      snap.BanOnFailure,
		"cas_enabled":    snap.CASEnabled,
	})
}

func (s *Service) handleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"pending_challenges": s.engine.PendingCount(),
		"verified_users":     s.engine.VerifiedCount(),
	})
}
