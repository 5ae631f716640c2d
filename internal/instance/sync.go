package instance

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// ConnectionFetcher pulls live connection state for an instance from
// the gateway.
type ConnectionFetcher interface {
	FetchConnectionInfo(ctx context.Context, inst Instance) (ConnectionInfo, error)
}

// Syncer refreshes stored instances with the gateway's view of their
// connection state. It runs on a schedule and on demand.
type Syncer struct {
	service *Service
	fetcher ConnectionFetcher
	logger  *slog.Logger
}

func NewSyncer(log *slog.Logger, service *Service, fetcher ConnectionFetcher) *Syncer {
	if log == nil {
		log = slog.Default()
	}
	return &Syncer{
		service: service,
		fetcher: fetcher,
		logger:  log.With(slog.String("service", "instance_sync")),
	}
}

// SyncAll refreshes every registered instance. Failures on one
// instance do not stop the others.
func (s *Syncer) SyncAll(ctx context.Context) error {
	instances, err := s.service.List(ctx)
	if err != nil {
		return fmt.Errorf("list instances: %w", err)
	}
	var failed int
	for _, inst := range instances {
		if err := s.syncInstance(ctx, inst); err != nil {
			failed++
			s.logger.Warn("instance sync failed",
				slog.String("instance", inst.InstanceName),
				slog.Any("error", err))
		}
	}
	s.logger.Info("instance sync finished",
		slog.Int("total", len(instances)),
		slog.Int("failed", failed))
	if failed == len(instances) && failed > 0 {
		return fmt.Errorf("all %d instances failed to sync", failed)
	}
	return nil
}

// SyncOne refreshes a single instance and returns its updated state.
func (s *Syncer) SyncOne(ctx context.Context, id uuid.UUID) (Instance, error) {
	inst, err := s.service.Get(ctx, id)
	if err != nil {
		return Instance{}, err
	}
	if err := s.syncInstance(ctx, inst); err != nil {
		return Instance{}, err
	}
	return s.service.Get(ctx, id)
}

func (s *Syncer) syncInstance(ctx context.Context, inst Instance) error {
	info, err := s.fetcher.FetchConnectionInfo(ctx, inst)
	if err != nil {
		return err
	}
	info.Status = MapGatewayStatus(info.Status)
	info.Connected = info.Status == StatusConnected
	return s.service.UpdateConnectionInfo(ctx, inst.ID, info)
}
