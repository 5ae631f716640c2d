// Package assistant is the HTTP client for the conversational
// assistant backing ai-mode sessions.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/zapdeskhq/zapdesk/internal/config"
	"github.com/zapdeskhq/zapdesk/internal/session"
)

// ErrNotConfigured indicates no assistant endpoint is configured.
var ErrNotConfigured = errors.New("assistant not configured")

// Reply is the assistant's structured answer. Text goes out first; a
// file, when present, follows as a media message.
type Reply struct {
	Text    string `json:"text"`
	FileURL string `json:"file,omitempty"`
}

// IsEmpty reports whether there is nothing to send.
func (r *Reply) IsEmpty() bool {
	return r == nil || (strings.TrimSpace(r.Text) == "" && strings.TrimSpace(r.FileURL) == "")
}

type invokeRequest struct {
	SessionID  string `json:"session_id"`
	FromNumber string `json:"from_number"`
	ToNumber   string `json:"to_number,omitempty"`
	Message    string `json:"message"`
}

type Client struct {
	logger  *slog.Logger
	client  *http.Client
	baseURL string
	apiKey  string
}

func NewClient(log *slog.Logger, cfg config.AssistantConfig) *Client {
	if log == nil {
		log = slog.Default()
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		logger:  log.With(slog.String("service", "assistant")),
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
	}
}

// Invoke sends the user's message for the session and returns the
// assistant's reply. A nil reply with nil error means the assistant
// chose to stay silent.
func (c *Client) Invoke(ctx context.Context, text string, sess session.Session) (*Reply, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}
	payload, err := json.Marshal(invokeRequest{
		SessionID:  sess.ID.String(),
		FromNumber: sess.FromNumber,
		ToNumber:   sess.ToNumber,
		Message:    text,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/invoke", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call assistant: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("assistant status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var reply Reply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	if reply.IsEmpty() {
		return nil, nil
	}
	return &reply, nil
}
