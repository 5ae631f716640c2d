// Package evolution is the outbound client for the Evolution API
// WhatsApp gateway.
package evolution

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/zapdeskhq/zapdesk/internal/config"
	"github.com/zapdeskhq/zapdesk/internal/inbound"
	"github.com/zapdeskhq/zapdesk/internal/instance"
	"github.com/zapdeskhq/zapdesk/internal/media"
)

var (
	// ErrNotConfigured indicates neither the instance nor the global
	// config carries gateway credentials.
	ErrNotConfigured = errors.New("evolution gateway not configured")
	// ErrNumberNotOnWhatsApp indicates the gateway rejected the recipient
	// as not registered on WhatsApp.
	ErrNumberNotOnWhatsApp = errors.New("number is not on whatsapp")
	// ErrInstanceNotFound indicates the gateway listing has no entry for
	// the instance.
	ErrInstanceNotFound = errors.New("instance not found on gateway")
)

type Client struct {
	logger *slog.Logger
	client *http.Client
	cfg    config.EvolutionConfig
}

func NewClient(log *slog.Logger, cfg config.EvolutionConfig) *Client {
	if log == nil {
		log = slog.Default()
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		logger: log.With(slog.String("service", "evolution")),
		client: &http.Client{Timeout: timeout},
		cfg:    cfg,
	}
}

// SetHTTPClient overrides the transport client.
func (c *Client) SetHTTPClient(hc *http.Client) {
	if hc != nil {
		c.client = hc
	}
}

// SendText delivers a plain text message through the instance.
func (c *Client) SendText(ctx context.Context, inst instance.Instance, to, text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("empty message text")
	}
	body := sendTextRequest{
		Number:      inbound.CleanNumber(to),
		Options:     defaultSendOptions(),
		TextMessage: textMessage{Text: text},
	}
	if err := c.post(ctx, inst, "/message/sendText/"+inst.InstanceName, body); err != nil {
		return err
	}
	c.logger.Info("text sent",
		slog.String("instance", inst.InstanceName),
		slog.String("to", body.Number))
	return nil
}

// SendFile downloads the file at fileURL and delivers it as a media
// message. The gateway wants the payload inline as base64.
func (c *Client) SendFile(ctx context.Context, inst instance.Instance, to, fileURL, caption string) error {
	data, contentType, err := c.fetchFile(ctx, fileURL)
	if err != nil {
		return fmt.Errorf("fetch file: %w", err)
	}
	body := sendMediaRequest{
		Number:  inbound.CleanNumber(to),
		Options: defaultSendOptions(),
		MediaMessage: mediaMessage{
			MediaType: mediaTypeFromContentType(contentType),
			Media:     base64.StdEncoding.EncodeToString(data),
			FileName:  fileNameFromURL(fileURL),
			Caption:   caption,
		},
	}
	if err := c.post(ctx, inst, "/message/sendMedia/"+inst.InstanceName, body); err != nil {
		return err
	}
	c.logger.Info("file sent",
		slog.String("instance", inst.InstanceName),
		slog.String("to", body.Number),
		slog.String("mediatype", body.MediaMessage.MediaType))
	return nil
}

// FetchConnectionInfo pulls the instance's live state from the gateway
// listing. It satisfies instance.ConnectionFetcher.
func (c *Client) FetchConnectionInfo(ctx context.Context, inst instance.Instance) (instance.ConnectionInfo, error) {
	baseURL, apiKey, err := c.credentials(inst)
	if err != nil {
		return instance.ConnectionInfo{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		baseURL+"/instance/fetchInstances?instanceName="+inst.InstanceName, nil)
	if err != nil {
		return instance.ConnectionInfo{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apikey", apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return instance.ConnectionInfo{}, fmt.Errorf("fetch instances: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return instance.ConnectionInfo{}, fmt.Errorf("fetch instances: status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return instance.ConnectionInfo{}, fmt.Errorf("read response: %w", err)
	}
	var listing []remoteInstance
	if err := json.Unmarshal(raw, &listing); err != nil {
		// Single-object responses happen when filtering by name.
		var one remoteInstance
		if err2 := json.Unmarshal(raw, &one); err2 != nil {
			return instance.ConnectionInfo{}, fmt.Errorf("decode response: %w", err)
		}
		listing = []remoteInstance{one}
	}

	for _, entry := range listing {
		data := entry.data()
		if data.InstanceName != inst.InstanceName && data.InstanceID != inst.EvolutionID {
			continue
		}
		return instance.ConnectionInfo{
			PhoneNumber:   inbound.CleanNumber(data.ownerNumber()),
			ProfileName:   data.ProfileName,
			ProfilePicURL: data.ProfilePictureURL,
			Status:        data.connectionState(),
		}, nil
	}
	return instance.ConnectionInfo{}, ErrInstanceNotFound
}

func (c *Client) post(ctx context.Context, inst instance.Instance, path string, body any) error {
	baseURL, apiKey, err := c.credentials(inst)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("call gateway: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode == http.StatusBadRequest && bytes.Contains(bytes.ToLower(snippet), []byte(`"exists":false`)) {
		return ErrNumberNotOnWhatsApp
	}
	return fmt.Errorf("gateway status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
}

func (c *Client) credentials(inst instance.Instance) (string, string, error) {
	baseURL := strings.TrimRight(inst.BaseURL, "/")
	if baseURL == "" {
		baseURL = strings.TrimRight(c.cfg.BaseURL, "/")
	}
	apiKey := inst.APIKey
	if apiKey == "" {
		apiKey = c.cfg.APIKey
	}
	if baseURL == "" || apiKey == "" {
		return "", "", ErrNotConfigured
	}
	return baseURL, apiKey, nil
}

func (c *Client) fetchFile(ctx context.Context, fileURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("status %d", resp.StatusCode)
	}
	data, err := media.ReadAllWithLimit(resp.Body, media.MaxAssetBytes)
	if err != nil {
		return nil, "", err
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func mediaTypeFromContentType(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return "image"
	case strings.HasPrefix(contentType, "audio/"):
		return "audio"
	case strings.HasPrefix(contentType, "video/"):
		return "video"
	default:
		return "document"
	}
}

func fileNameFromURL(fileURL string) string {
	trimmed := strings.SplitN(fileURL, "?", 2)[0]
	if idx := strings.LastIndexByte(trimmed, '/'); idx >= 0 && idx < len(trimmed)-1 {
		return trimmed[idx+1:]
	}
	return "file"
}
