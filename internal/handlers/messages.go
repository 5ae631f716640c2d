package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/zapdeskhq/zapdesk/internal/media"
	"github.com/zapdeskhq/zapdesk/internal/message"
	"github.com/zapdeskhq/zapdesk/internal/session"
)

type messageStore interface {
	ListRecent(ctx context.Context, limit int) ([]message.Message, error)
	GetByMessageID(ctx context.Context, messageID string) (message.Message, error)
}

type sessionGetter interface {
	Get(ctx context.Context, id uuid.UUID) (session.Session, error)
}

type mediaOpener interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessagesHandler exposes the processed message history and stored
// media assets.
type MessagesHandler struct {
	logger   *slog.Logger
	messages messageStore
	sessions sessionGetter
	storage  mediaOpener
}

func NewMessagesHandler(log *slog.Logger, messages messageStore, sessions sessionGetter) *MessagesHandler {
	if log == nil {
		log = slog.Default()
	}
	return &MessagesHandler{
		logger:   log.With(slog.String("handler", "messages")),
		messages: messages,
		sessions: sessions,
	}
}

// SetStorage sets the optional provider for serving stored media.
func (h *MessagesHandler) SetStorage(storage mediaOpener) {
	h.storage = storage
}

func (h *MessagesHandler) Register(e *echo.Echo) {
	e.GET("/messages", h.List)
	e.GET("/messages/:message_id", h.Get)
	e.GET("/media/*", h.ServeMedia)
}

// List returns the most recent messages, newest first.
func (h *MessagesHandler) List(c echo.Context) error {
	limit := 50
	if s := strings.TrimSpace(c.QueryParam("limit")); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 200 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be between 1 and 200")
		}
		limit = n
	}
	items, err := h.messages.ListRecent(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// Get looks a message up by its provider message id and includes the
// owning session.
func (h *MessagesHandler) Get(c echo.Context) error {
	messageID := strings.TrimSpace(c.Param("message_id"))
	if messageID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message id is required")
	}
	msg, err := h.messages.GetByMessageID(c.Request().Context(), messageID)
	if err != nil {
		if errors.Is(err, message.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "message not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	resp := map[string]any{"message": msg}
	if h.sessions != nil {
		sess, err := h.sessions.Get(c.Request().Context(), msg.SessionID)
		if err == nil {
			resp["session"] = sess
		} else if !errors.Is(err, session.ErrNotFound) {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// ServeMedia streams a stored media asset by its storage key.
func (h *MessagesHandler) ServeMedia(c echo.Context) error {
	if h.storage == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "media storage not configured")
	}
	key := strings.TrimSpace(c.Param("*"))
	if key == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "media key is required")
	}
	reader, err := h.storage.Open(c.Request().Context(), key)
	if err != nil {
		if errors.Is(err, media.ErrAssetNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "asset not found")
		}
		if errors.Is(err, media.ErrPathTraversal) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid media key")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	defer reader.Close()

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Response().Header().Set(echo.HeaderContentType, contentType)
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=86400")
	c.Response().WriteHeader(http.StatusOK)
	if _, err := io.Copy(c.Response().Writer, reader); err != nil {
		h.logger.Warn("serve media stream failed", slog.Any("error", err))
	}
	return nil
}
