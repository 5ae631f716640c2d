package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/zapdeskhq/zapdesk/internal/instance"
)

type instanceStore interface {
	List(ctx context.Context) ([]instance.Instance, error)
	Get(ctx context.Context, id uuid.UUID) (instance.Instance, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (instance.Instance, error)
}

type connectionSyncer interface {
	SyncAll(ctx context.Context) error
	SyncOne(ctx context.Context, id uuid.UUID) (instance.Instance, error)
}

// InstancesHandler manages registered gateway instances.
type InstancesHandler struct {
	logger    *slog.Logger
	instances instanceStore
	syncer    connectionSyncer
}

func NewInstancesHandler(log *slog.Logger, instances instanceStore) *InstancesHandler {
	if log == nil {
		log = slog.Default()
	}
	return &InstancesHandler{
		logger:    log.With(slog.String("handler", "instances")),
		instances: instances,
	}
}

// SetSyncer sets the optional connection state syncer.
func (h *InstancesHandler) SetSyncer(syncer connectionSyncer) {
	h.syncer = syncer
}

func (h *InstancesHandler) Register(e *echo.Echo) {
	e.GET("/instances", h.List)
	e.GET("/instances/:id", h.Get)
	e.PUT("/instances/:id/active", h.SetActive)
	e.POST("/instances/:id/sync", h.SyncOne)
	e.POST("/instances/sync", h.SyncAll)
}

func (h *InstancesHandler) List(c echo.Context) error {
	items, err := h.instances.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

func (h *InstancesHandler) Get(c echo.Context) error {
	id, err := h.instanceID(c)
	if err != nil {
		return err
	}
	inst, err := h.instances.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, instance.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "instance not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, inst)
}

type setActiveRequest struct {
	Active *bool `json:"active"`
}

// SetActive toggles whether the instance dispatches inbound messages.
func (h *InstancesHandler) SetActive(c echo.Context) error {
	id, err := h.instanceID(c)
	if err != nil {
		return err
	}
	var req setActiveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Active == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "active is required")
	}
	inst, err := h.instances.SetActive(c.Request().Context(), id, *req.Active)
	if err != nil {
		if errors.Is(err, instance.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "instance not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.logger.Info("instance activation changed",
		slog.String("instance", inst.InstanceName),
		slog.Bool("active", inst.IsActive))
	return c.JSON(http.StatusOK, inst)
}

// SyncOne refreshes one instance's connection state from the gateway.
func (h *InstancesHandler) SyncOne(c echo.Context) error {
	if h.syncer == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "syncer not configured")
	}
	id, err := h.instanceID(c)
	if err != nil {
		return err
	}
	inst, err := h.syncer.SyncOne(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, instance.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "instance not found")
		}
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, inst)
}

// SyncAll refreshes connection state for every registered instance.
func (h *InstancesHandler) SyncAll(c echo.Context) error {
	if h.syncer == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "syncer not configured")
	}
	if err := h.syncer.SyncAll(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "synced"})
}

func (h *InstancesHandler) instanceID(c echo.Context) (uuid.UUID, error) {
	raw := strings.TrimSpace(c.Param("id"))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid instance id")
	}
	return id, nil
}
