// Package message persists inbound messages and deduplicates
// redelivered webhooks by provider message id.
package message

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/zapdeskhq/zapdesk/internal/db"
)

// ErrNotFound indicates no message matches the lookup.
var ErrNotFound = errors.New("message not found")

const messageColumns = `id, session_id, owner_id, message_id, kind, content, media_url, media_ref,
	processing_status, response, audio_transcript, sender_name, source, raw_payload,
	received_while_inactive, received_at, created_at, updated_at`

type Service struct {
	dbtx   db.DBTX
	logger *slog.Logger
}

func NewService(log *slog.Logger, dbtx db.DBTX) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		dbtx:   dbtx,
		logger: log.With(slog.String("service", "message")),
	}
}

// PersistOnce inserts the draft unless a row with the same provider
// message id already exists. The second return reports whether the
// message had been seen before.
func (s *Service) PersistOnce(ctx context.Context, draft Draft) (Message, bool, error) {
	raw := draft.RawPayload
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	row := s.dbtx.QueryRow(ctx, `
		INSERT INTO messages (session_id, owner_id, message_id, kind, content, media_url,
			sender_name, source, raw_payload, received_while_inactive, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (message_id) DO NOTHING
		RETURNING `+messageColumns,
		draft.SessionID, draft.OwnerID, draft.MessageID, draft.Kind, draft.Content,
		draft.MediaURL, draft.SenderName, draft.Source, raw,
		draft.ReceivedWhileInactive, draft.ReceivedAt)
	msg, err := scanMessage(row)
	if err == nil {
		return msg, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Message{}, false, fmt.Errorf("persist message: %w", err)
	}

	existing, err := s.GetByMessageID(ctx, draft.MessageID)
	if err != nil {
		return Message{}, false, fmt.Errorf("reread duplicate message: %w", err)
	}
	s.logger.Debug("duplicate delivery ignored", slog.String("message_id", draft.MessageID))
	return existing, true, nil
}

func (s *Service) GetByMessageID(ctx context.Context, messageID string) (Message, error) {
	row := s.dbtx.QueryRow(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE message_id = $1", messageID)
	msg, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Message{}, ErrNotFound
	}
	if err != nil {
		return Message{}, fmt.Errorf("get message: %w", err)
	}
	return msg, nil
}

// ListRecent returns the newest messages first.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.dbtx.Query(ctx,
		"SELECT "+messageColumns+" FROM messages ORDER BY created_at DESC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()
	var out []Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status ProcessingStatus) error {
	return s.update(ctx, id,
		"UPDATE messages SET processing_status = $2, updated_at = now() WHERE id = $1", status)
}

// SetContent replaces the effective text, e.g. after transcription.
func (s *Service) SetContent(ctx context.Context, id uuid.UUID, content string) error {
	return s.update(ctx, id,
		"UPDATE messages SET content = $2, updated_at = now() WHERE id = $1", content)
}

func (s *Service) SetTranscript(ctx context.Context, id uuid.UUID, transcript string) error {
	return s.update(ctx, id,
		"UPDATE messages SET audio_transcript = $2, content = $2, updated_at = now() WHERE id = $1", transcript)
}

func (s *Service) SetResponse(ctx context.Context, id uuid.UUID, response string) error {
	return s.update(ctx, id,
		"UPDATE messages SET response = $2, updated_at = now() WHERE id = $1", response)
}

// SetMediaRef stores the storage key of the resolved media asset.
func (s *Service) SetMediaRef(ctx context.Context, id uuid.UUID, ref string) error {
	return s.update(ctx, id,
		"UPDATE messages SET media_ref = $2, updated_at = now() WHERE id = $1", ref)
}

func (s *Service) update(ctx context.Context, id uuid.UUID, sql string, arg any) error {
	tag, err := s.dbtx.Exec(ctx, sql, id, arg)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanMessage(row pgx.Row) (Message, error) {
	var msg Message
	err := row.Scan(
		&msg.ID, &msg.SessionID, &msg.OwnerID, &msg.MessageID, &msg.Kind, &msg.Content,
		&msg.MediaURL, &msg.MediaRef, &msg.ProcessingStatus, &msg.Response,
		&msg.AudioTranscript, &msg.SenderName, &msg.Source, &msg.RawPayload,
		&msg.ReceivedWhileInactive, &msg.ReceivedAt, &msg.CreatedAt, &msg.UpdatedAt,
	)
	return msg, err
}
