// Package instance manages WhatsApp transport instances registered on
// the Evolution gateway.
package instance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/zapdeskhq/zapdesk/internal/db"
)

// ErrNotFound indicates no instance matches the lookup.
var ErrNotFound = errors.New("instance not found")

const instanceColumns = `id, evolution_id, name, instance_name, base_url, api_key, status,
	phone_number, profile_name, profile_pic_url, is_active, ignore_own_messages,
	authorized_numbers, last_connection, created_at, updated_at`

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
		logger: log.With(slog.String("service", "instance")),
	}
}

// GetByEvolutionID resolves an instance by the gateway-side identifier
// carried in webhook payloads.
func (s *Service) GetByEvolutionID(ctx context.Context, evolutionID string) (Instance, error) {
	return s.getWhere(ctx, "evolution_id = $1", evolutionID)
}

// GetByName resolves an instance by its gateway instance name.
func (s *Service) GetByName(ctx context.Context, name string) (Instance, error) {
	return s.getWhere(ctx, "instance_name = $1", name)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Instance, error) {
	return s.getWhere(ctx, "id = $1", id)
}

func (s *Service) getWhere(ctx context.Context, cond string, arg any) (Instance, error) {
	row := s.dbtx.QueryRow(ctx, "SELECT "+instanceColumns+" FROM instances WHERE "+cond, arg)
	inst, err := scanInstance(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Instance{}, ErrNotFound
	}
	if err != nil {
		return Instance{}, fmt.Errorf("get instance: %w", err)
	}
	return inst, nil
}

func (s *Service) List(ctx context.Context) ([]Instance, error) {
	rows, err := s.dbtx.Query(ctx, "SELECT "+instanceColumns+" FROM instances ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	defer rows.Close()
	var out []Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

// SetActive flips the activation gate and returns the updated instance.
func (s *Service) SetActive(ctx context.Context, id uuid.UUID, active bool) (Instance, error) {
	row := s.dbtx.QueryRow(ctx,
		"UPDATE instances SET is_active = $2, updated_at = now() WHERE id = $1 RETURNING "+instanceColumns,
		id, active)
	inst, err := scanInstance(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Instance{}, ErrNotFound
	}
	if err != nil {
		return Instance{}, fmt.Errorf("set active: %w", err)
	}
	s.logger.Info("instance activation changed",
		slog.String("instance", inst.InstanceName),
		slog.Bool("active", active))
	return inst, nil
}

// UpdateConnectionInfo stores the state fetched from the gateway.
func (s *Service) UpdateConnectionInfo(ctx context.Context, id uuid.UUID, info ConnectionInfo) error {
	var lastConnection *time.Time
	if info.Connected {
		now := time.Now().UTC()
		lastConnection = &now
	}
	_, err := s.dbtx.Exec(ctx, `
		UPDATE instances SET
			phone_number = COALESCE(NULLIF($2, ''), phone_number),
			profile_name = COALESCE(NULLIF($3, ''), profile_name),
			profile_pic_url = COALESCE(NULLIF($4, ''), profile_pic_url),
			status = $5,
			last_connection = COALESCE($6, last_connection),
			updated_at = now()
		WHERE id = $1`,
		id, info.PhoneNumber, info.ProfileName, info.ProfilePicURL, info.Status, lastConnection)
	if err != nil {
		return fmt.Errorf("update connection info: %w", err)
	}
	return nil
}

func scanInstance(row pgx.Row) (Instance, error) {
	var inst Instance
	err := row.Scan(
		&inst.ID, &inst.EvolutionID, &inst.Name, &inst.InstanceName, &inst.BaseURL,
		&inst.APIKey, &inst.Status, &inst.PhoneNumber, &inst.ProfileName,
		&inst.ProfilePicURL, &inst.IsActive, &inst.IgnoreOwnMessages,
		&inst.AuthorizedNumbers, &inst.LastConnection, &inst.CreatedAt, &inst.UpdatedAt,
	)
	return inst, err
}
