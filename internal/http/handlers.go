package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/recall/internal/logging"
	"github.com/fyrsmithlabs/recall/internal/memory"
)

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleAppend(c echo.Context) error {
	var req AppendRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid append request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	rec, err := s.memory.Append(userContext(c), c.Param("key"), req.User, req.Assistant)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, RecordResponse{Record: rec})
}

func (s *Server) handleLatest(c echo.Context) error {
	n, err := queryInt(c, "n", s.config.LatestN)
	if err != nil {
		return err
	}
	records, err := s.memory.LatestN(userContext(c), c.Param("key"), n)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, RecordsResponse{Records: records})
}

func (s *Server) handleClear(c echo.Context) error {
	if err := s.memory.Clear(userContext(c), c.Param("key")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleContext(c echo.Context) error {
	var req ContextRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid context request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	mc, err := s.memory.BuildContext(userContext(c), c.Param("key"), req.Query)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ContextResponse{
		Semantic:      mc.Semantic,
		Triggered:     mc.Triggered,
		GlobalSummary: mc.GlobalSummary,
		ShortTerm:     mc.ShortTerm,
		Degraded:      mc.Degraded,
		Prompt:        memory.FormatPrompt(mc, req.Query),
	})
}

func (s *Server) handleSummary(c echo.Context) error {
	summary, err := s.memory.SummarizeUserHistory(userContext(c), c.Param("key"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, SummaryResponse{Summary: summary})
}

func (s *Server) handleShortTerm(c echo.Context) error {
	n, err := queryInt(c, "n", 0)
	if err != nil {
		return err
	}
	st, err := s.memory.ShortTerm(userContext(c), c.Param("key"), n)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ShortTermResponse{ShortTerm: st})
}

func (s *Server) handleTags(c echo.Context) error {
	var req TagsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return c.JSON(http.StatusOK, TagsResponse{Tags: s.memory.ExtractTags(req.Text)})
}

func userContext(c echo.Context) context.Context {
	return logging.WithUserKey(c.Request().Context(), c.Param("key"))
}

func queryInt(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" must be a non-negative integer")
	}
	return n, nil
}
