// Package media resolves encrypted WhatsApp media descriptors into
// stored, decrypted assets.
package media

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/zapdeskhq/zapdesk/internal/inbound"
	"github.com/zapdeskhq/zapdesk/internal/message"
	"github.com/zapdeskhq/zapdesk/internal/wacrypt"
)

// fallbackUserAgent mimics a browser; the CDN refuses the default Go
// client string on direct downloads.
const fallbackUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// Resolver downloads, decrypts, validates and stores inbound media.
type Resolver struct {
	logger      *slog.Logger
	client      *http.Client
	provider    StorageProvider
	transcriber Transcriber
}

func NewResolver(log *slog.Logger, provider StorageProvider) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{
		logger:   log.With(slog.String("service", "media")),
		client:   &http.Client{Timeout: 60 * time.Second},
		provider: provider,
	}
}

// SetTranscriber wires the audio transcription collaborator.
func (r *Resolver) SetTranscriber(t Transcriber) { r.transcriber = t }

// SetHTTPClient overrides the download client.
func (r *Resolver) SetHTTPClient(c *http.Client) {
	if c != nil {
		r.client = c
	}
}

// Resolve fetches and decrypts the media attached to msg, stores the
// plaintext under the given scope and, for audio, transcribes it.
// Images fall back to a direct download when decryption yields garbage;
// audio has no usable fallback.
func (r *Resolver) Resolve(ctx context.Context, scope string, msg *inbound.Message) (Resolution, error) {
	if !msg.HasMedia() {
		return Resolution{}, nil
	}
	if r.provider == nil {
		return Resolution{}, ErrProviderUnavailable
	}

	switch msg.Kind {
	case message.KindAudio:
		return r.resolveAudio(ctx, scope, msg)
	case message.KindImage, message.KindVideo:
		return r.resolveImage(ctx, scope, msg)
	default:
		// Documents keep their descriptor; nothing to decrypt eagerly.
		return Resolution{}, nil
	}
}

func (r *Resolver) resolveAudio(ctx context.Context, scope string, msg *inbound.Message) (Resolution, error) {
	plain, err := r.decrypt(ctx, msg)
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: %s", ErrMediaUnavailable, err)
	}
	format, ok := DetectAudioFormat(plain)
	if !ok {
		// Voice notes are opus-in-ogg; an unknown header after a valid
		// MAC is still worth keeping.
		format = Format{Ext: ".ogg", Mime: "audio/ogg"}
		r.logger.Warn("audio container not recognized, assuming ogg",
			slog.String("message_id", msg.MessageID))
	}

	key, err := r.store(ctx, scope, message.KindAudio, format, plain)
	if err != nil {
		return Resolution{}, err
	}
	res := Resolution{StorageKey: key, Mime: format.Mime}

	if r.transcriber != nil {
		transcript, err := r.transcriber.Transcribe(ctx, plain, format.Mime)
		if err != nil {
			r.logger.Warn("transcription failed",
				slog.String("message_id", msg.MessageID),
				slog.Any("error", err))
		} else {
			res.Transcript = transcript
		}
	}
	return res, nil
}

func (r *Resolver) resolveImage(ctx context.Context, scope string, msg *inbound.Message) (Resolution, error) {
	plain, decErr := r.decrypt(ctx, msg)
	if decErr == nil {
		if format, ok := DetectImageFormat(plain); ok {
			key, err := r.store(ctx, scope, msg.Kind, format, plain)
			if err != nil {
				return Resolution{}, err
			}
			return Resolution{StorageKey: key, Mime: format.Mime}, nil
		}
		decErr = ErrUnrecognizedFormat
	}
	r.logger.Warn("encrypted image path failed, trying direct download",
		slog.String("message_id", msg.MessageID),
		slog.Any("error", decErr))

	plain, format, err := r.downloadDirect(ctx, msg.Media.URL)
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: decrypt: %s; direct: %s", ErrMediaUnavailable, decErr, err)
	}
	key, err := r.store(ctx, scope, msg.Kind, format, plain)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{StorageKey: key, Mime: format.Mime, Fallback: true}, nil
}

func (r *Resolver) decrypt(ctx context.Context, msg *inbound.Message) ([]byte, error) {
	if len(msg.Media.MediaKey) == 0 {
		return nil, wacrypt.ErrEmptyMediaKey
	}
	blob, err := r.download(ctx, msg.Media.URL, nil)
	if err != nil {
		return nil, err
	}
	plain, variant, err := wacrypt.Decrypt(blob, msg.Media.MediaKey, msg.Media.Kind)
	if err != nil {
		return nil, err
	}
	if variant == wacrypt.MACOverCiphertext {
		r.logger.Debug("payload authenticated with ciphertext-only MAC",
			slog.String("message_id", msg.MessageID))
	}
	return plain, nil
}

func (r *Resolver) downloadDirect(ctx context.Context, url string) ([]byte, Format, error) {
	headers := map[string]string{"User-Agent": fallbackUserAgent}
	body, err := r.download(ctx, url, headers)
	if err != nil {
		return nil, Format{}, err
	}
	if bytes.HasPrefix(bytes.TrimSpace(body), []byte("<")) {
		return nil, Format{}, fmt.Errorf("%w: got an html body", ErrUnrecognizedFormat)
	}
	format, ok := DetectImageFormat(body)
	if !ok {
		return nil, Format{}, ErrUnrecognizedFormat
	}
	return body, format, nil
}

func (r *Resolver) download(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("unsupported media url: %q", url)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download media: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download media: status %d", resp.StatusCode)
	}
	return ReadAllWithLimit(resp.Body, MaxAssetBytes)
}

func (r *Resolver) store(ctx context.Context, scope string, kind message.Kind, format Format, data []byte) (string, error) {
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	if scope == "" {
		scope = "default"
	}
	key := path.Join(scope, string(kind), hash[:4], hash+format.Ext)
	if err := r.provider.Put(ctx, key, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("store media: %w", err)
	}
	return key, nil
}
