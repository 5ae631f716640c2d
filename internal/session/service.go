// Package session tracks per-contact conversation sessions and their
// routing state.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/zapdeskhq/zapdesk/internal/db"
)

// ErrNotFound indicates no session matches the lookup.
var ErrNotFound = errors.New("session not found")

const sessionColumns = `id, instance_id, owner_id, from_number, to_number, status, created_at, updated_at`

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
		logger: log.With(slog.String("service", "session")),
	}
}

// GetOrCreateActive returns the contact's open session, creating one in
// the ai state when none exists. A partial unique index on active
// sessions makes concurrent first contacts converge on a single row:
// the losing insert returns nothing and re-reads the winner.
func (s *Service) GetOrCreateActive(ctx context.Context, from, to string, instanceID, ownerID *uuid.UUID) (Session, bool, error) {
	sess, err := s.findActive(ctx, from)
	if err == nil {
		return s.backfill(ctx, sess, to, instanceID, ownerID)
	}
	if !errors.Is(err, ErrNotFound) {
		return Session{}, false, err
	}

	row := s.dbtx.QueryRow(ctx, `
		INSERT INTO chat_sessions (instance_id, owner_id, from_number, to_number, status)
		VALUES ($1, $2, $3, $4, 'ai')
		ON CONFLICT (from_number) WHERE status IN ('ai', 'human') DO NOTHING
		RETURNING `+sessionColumns,
		instanceID, ownerID, from, to)
	sess, err = scanSession(row)
	if err == nil {
		s.logger.Info("session created",
			slog.String("session_id", sess.ID.String()),
			slog.String("from", from))
		return sess, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Session{}, false, fmt.Errorf("create session: %w", err)
	}

	// Lost the insert race; the winner's row is active now.
	sess, err = s.findActive(ctx, from)
	if err != nil {
		return Session{}, false, fmt.Errorf("reread session after conflict: %w", err)
	}
	return sess, false, nil
}

func (s *Service) findActive(ctx context.Context, from string) (Session, error) {
	row := s.dbtx.QueryRow(ctx, `
		SELECT `+sessionColumns+` FROM chat_sessions
		WHERE from_number = $1 AND status IN ('ai', 'human')
		ORDER BY created_at DESC LIMIT 1`, from)
	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("find active session: %w", err)
	}
	return sess, nil
}

// backfill fills in links an earlier delivery could not resolve.
func (s *Service) backfill(ctx context.Context, sess Session, to string, instanceID, ownerID *uuid.UUID) (Session, bool, error) {
	needsInstance := sess.InstanceID == nil && instanceID != nil
	needsOwner := sess.OwnerID == nil && ownerID != nil
	needsTo := sess.ToNumber == "" && to != ""
	if !needsInstance && !needsOwner && !needsTo {
		return sess, false, nil
	}
	row := s.dbtx.QueryRow(ctx, `
		UPDATE chat_sessions SET
			instance_id = COALESCE(instance_id, $2),
			owner_id = COALESCE(owner_id, $3),
			to_number = CASE WHEN to_number = '' THEN $4 ELSE to_number END,
			updated_at = now()
		WHERE id = $1
		RETURNING `+sessionColumns,
		sess.ID, instanceID, ownerID, to)
	updated, err := scanSession(row)
	if err != nil {
		return Session{}, false, fmt.Errorf("backfill session: %w", err)
	}
	return updated, false, nil
}

// SetStatus moves a session to the given state and returns the updated
// row.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status Status) (Session, error) {
	row := s.dbtx.QueryRow(ctx,
		"UPDATE chat_sessions SET status = $2, updated_at = now() WHERE id = $1 RETURNING "+sessionColumns,
		id, status)
	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("set session status: %w", err)
	}
	s.logger.Info("session status changed",
		slog.String("session_id", id.String()),
		slog.String("status", string(status)))
	return sess, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Session, error) {
	row := s.dbtx.QueryRow(ctx, "SELECT "+sessionColumns+" FROM chat_sessions WHERE id = $1", id)
	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// HasAnyForNumber reports whether the contact has ever had a session,
// in any state. Used to decide on first-contact onboarding.
func (s *Service) HasAnyForNumber(ctx context.Context, from string) (bool, error) {
	var exists bool
	err := s.dbtx.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM chat_sessions WHERE from_number = $1)", from).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check sessions for number: %w", err)
	}
	return exists, nil
}

func scanSession(row pgx.Row) (Session, error) {
	var sess Session
	err := row.Scan(
		&sess.ID, &sess.InstanceID, &sess.OwnerID, &sess.FromNumber,
		&sess.ToNumber, &sess.Status, &sess.CreatedAt, &sess.UpdatedAt,
	)
	return sess, err
}
