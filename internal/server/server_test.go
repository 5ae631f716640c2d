package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testHandler struct {
	path string
}

func (h *testHandler) Register(e *echo.Echo) {
	e.GET(h.path, func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
}

func TestNew_RegistersHandlers(t *testing.T) {
	t.Parallel()

	srv := New(nil, "", []Handler{
		&testHandler{path: "/a"},
		nil,
		&testHandler{path: "/b"},
	})
	require.NotNil(t, srv)
	assert.Equal(t, ":8080", srv.addr)

	for _, path := range []string{"/a", "/b"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		srv.echo.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestNew_UnknownRouteIs404(t *testing.T) {
	t.Parallel()

	srv := New(nil, ":9090", nil)
	assert.Equal(t, ":9090", srv.addr)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_RecoversFromPanic(t *testing.T) {
	t.Parallel()

	srv := New(nil, "", nil)
	srv.echo.GET("/panic", func(echo.Context) error { panic("boom") })

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
