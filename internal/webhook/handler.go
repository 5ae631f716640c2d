package webhook

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/zapdeskhq/zapdesk/internal/inbound"
)

const webhookMaxBodyBytes int64 = 1 << 20

// Handler exposes the Evolution webhook endpoint.
type Handler struct {
	logger    *slog.Logger
	processor *Processor
}

func NewHandler(log *slog.Logger, processor *Processor) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		logger:    log.With(slog.String("handler", "webhook")),
		processor: processor,
	}
}

func (h *Handler) Register(e *echo.Echo) {
	e.GET("/webhook/evolution", h.probe)
	e.POST("/webhook/evolution", h.handle)
}

// probe lets the gateway verify the endpoint is reachable.
func (h *Handler) probe(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// handle answers 400 only for bodies that cannot be parsed at all;
// every business outcome is a 200 so the gateway does not redeliver.
func (h *Handler) handle(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, webhookMaxBodyBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "read body")
	}
	if int64(len(body)) > webhookMaxBodyBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "body too large")
	}

	result, err := h.processor.Process(c.Request().Context(), body)
	if err != nil {
		if errors.Is(err, inbound.ErrMalformedPayload) {
			return echo.NewHTTPError(http.StatusBadRequest, "malformed payload")
		}
		if errors.Is(err, inbound.ErrMissingEnvelope) {
			return echo.NewHTTPError(http.StatusBadRequest, "missing data envelope")
		}
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			return httpErr
		}
		h.logger.Error("webhook processing failed", slog.Any("error", err))
		// Storage-level failures are retryable; let the gateway redeliver.
		return echo.NewHTTPError(http.StatusInternalServerError, "processing failed")
	}
	return c.JSON(http.StatusOK, result)
}
