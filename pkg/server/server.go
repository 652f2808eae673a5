// Package server exposes a small HTTP API over the monitor: health,
// status, the day's opportunities, and the same start/stop/mode
// controls the chat commands offer.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"seoradar/internal/control"
	"seoradar/internal/monitor"
	"seoradar/internal/store"
)

// Server is the HTTP status and control API.
type Server struct {
	echo    *echo.Echo
	monitor *monitor.Monitor
	control *control.State
	store   store.Store
	port    int
}

// New creates the server and registers routes.
func New(mon *monitor.Monitor, ctl *control.State, st store.Store, port int) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{echo: e, monitor: mon, control: ctl, store: st, port: port}

	e.GET("/health", s.handleHealth)
	e.GET("/api/v1/status", s.handleStatus)
	e.GET("/api/v1/opportunities", s.handleOpportunities)
	e.POST("/api/v1/control/start", s.handleStart)
	e.POST("/api/v1/control/stop", s.handleStop)
	e.POST("/api/v1/control/mode", s.handleMode)

	return s
}

// Start runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(fmt.Sprintf(":%d", s.port))
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.echo.Shutdown(shutCtx)
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.monitor.Status(c.Request().Context()))
}

// handleOpportunities lists recorded opportunities. Query params: day
// (2006-01-02), since (RFC 3339), limit.
func (s *Server) handleOpportunities(c echo.Context) error {
	opts := store.OpportunityListOpts{Day: c.QueryParam("day")}

	if v := c.QueryParam("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "since must be RFC 3339")
		}
		opts.Since = since
	}
	if v := c.QueryParam("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		opts.Limit = limit
	}

	opps, err := s.store.ListOpportunities(c.Request().Context(), opts)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if opps == nil {
		opps = []store.Opportunity{}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"count":         len(opps),
		"opportunities": opps,
	})
}

func (s *Server) handleStart(c echo.Context) error {
	if err := s.control.Start(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "running"})
}

func (s *Server) handleStop(c echo.Context) error {
	if err := s.control.Stop(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "stopped"})
}

// handleMode switches between locale-only and global alerting. Body or
// query param "mode" must be "locale" or "global".
func (s *Server) handleMode(c echo.Context) error {
	mode := c.QueryParam("mode")
	if mode == "" {
		var body struct {
			Mode string `json:"mode"`
		}
		if err := c.Bind(&body); err == nil {
			mode = body.Mode
		}
	}

	ctx := c.Request().Context()
	switch mode {
	case "locale":
		if err := s.control.SetLocaleOnly(ctx); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	case "global":
		if err := s.control.SetGlobal(ctx); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "mode must be locale or global")
	}
	return c.JSON(http.StatusOK, map[string]string{"mode": mode})
}
