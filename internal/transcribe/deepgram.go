// Package transcribe converts voice notes to text via the Deepgram
// speech API.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zapdeskhq/zapdesk/internal/config"
)

// ErrNotConfigured indicates the API key is missing.
var ErrNotConfigured = errors.New("transcriber not configured")

const defaultBaseURL = "https://api.deepgram.com"

// DeepgramClient calls the prerecorded transcription endpoint.
type DeepgramClient struct {
	logger   *slog.Logger
	client   *http.Client
	baseURL  string
	apiKey   string
	model    string
	language string
}

func NewDeepgramClient(log *slog.Logger, cfg config.DeepgramConfig) *DeepgramClient {
	if log == nil {
		log = slog.Default()
	}
	model := cfg.Model
	if model == "" {
		model = config.DefaultDeepgramModel
	}
	language := cfg.Language
	if language == "" {
		language = config.DefaultDeepgramLang
	}
	return &DeepgramClient{
		logger:   log.With(slog.String("service", "transcribe")),
		client:   &http.Client{Timeout: 60 * time.Second},
		baseURL:  defaultBaseURL,
		apiKey:   cfg.APIKey,
		model:    model,
		language: language,
	}
}

// SetBaseURL overrides the API endpoint. Tests point it at a local server.
func (c *DeepgramClient) SetBaseURL(u string) {
	if u != "" {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

type listenResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// Transcribe sends the audio payload and returns the first transcript.
func (c *DeepgramClient) Transcribe(ctx context.Context, audio []byte, mime string) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}
	if len(audio) == 0 {
		return "", errors.New("empty audio payload")
	}
	if mime == "" {
		mime = "audio/ogg"
	}

	q := url.Values{}
	q.Set("model", c.model)
	q.Set("language", c.language)
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")
	endpoint := c.baseURL + "/v1/listen?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(audio))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Content-Type", mime)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call deepgram: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("deepgram status %d", resp.StatusCode)
	}

	var parsed listenResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Results.Channels) == 0 || len(parsed.Results.Channels[0].Alternatives) == 0 {
		return "", errors.New("empty transcription result")
	}
	transcript := strings.TrimSpace(parsed.Results.Channels[0].Alternatives[0].Transcript)
	c.logger.Debug("audio transcribed", slog.Int("bytes", len(audio)), slog.Int("chars", len(transcript)))
	return transcript, nil
}
