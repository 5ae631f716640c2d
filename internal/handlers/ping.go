// Package handlers holds the HTTP API surface.
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const serviceName = "zapdesk"

// Version is stamped at build time via -ldflags.
var Version = "dev"

// PingHandler answers liveness probes with the service identity.
type PingHandler struct {
	logger  *slog.Logger
	started time.Time
}

func NewPingHandler(log *slog.Logger) *PingHandler {
	if log == nil {
		log = slog.Default()
	}
	return &PingHandler{
		logger:  log.With(slog.String("handler", "ping")),
		started: time.Now(),
	}
}

func (h *PingHandler) Register(e *echo.Echo) {
	e.GET("/ping", h.Ping)
	e.HEAD("/health", h.PingHead)
}

func (h *PingHandler) Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"service": serviceName,
		"version": Version,
		"uptime":  time.Since(h.started).Round(time.Second).String(),
	})
}

func (h *PingHandler) PingHead(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}
