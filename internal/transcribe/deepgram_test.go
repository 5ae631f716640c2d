package transcribe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapdeskhq/zapdesk/internal/config"
)

func TestTranscribe(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/listen", r.URL.Path)
		assert.Equal(t, "nova-2", r.URL.Query().Get("model"))
		assert.Equal(t, "pt-BR", r.URL.Query().Get("language"))
		assert.Equal(t, "Token secret", r.Header.Get("Authorization"))
		assert.Equal(t, "audio/ogg", r.Header.Get("Content-Type"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": map[string]any{
				"channels": []any{map[string]any{
					"alternatives": []any{map[string]any{"transcript": " bom dia, tudo bem? "}},
				}},
			},
		})
	}))
	t.Cleanup(srv.Close)

	c := NewDeepgramClient(nil, config.DeepgramConfig{APIKey: "secret"})
	c.SetBaseURL(srv.URL)

	got, err := c.Transcribe(context.Background(), []byte("OggSopus"), "audio/ogg")
	require.NoError(t, err)
	assert.Equal(t, "bom dia, tudo bem?", got)
}

func TestTranscribe_EmptyResult(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"results": map[string]any{"channels": []any{}}})
	}))
	t.Cleanup(srv.Close)

	c := NewDeepgramClient(nil, config.DeepgramConfig{APIKey: "secret"})
	c.SetBaseURL(srv.URL)

	_, err := c.Transcribe(context.Background(), []byte("OggS"), "")
	assert.Error(t, err)
}

func TestTranscribe_NotConfigured(t *testing.T) {
	t.Parallel()

	c := NewDeepgramClient(nil, config.DeepgramConfig{})
	_, err := c.Transcribe(context.Background(), []byte("OggS"), "")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
