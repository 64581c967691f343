package services

import (
	"context"
	"time"

	"carelink/internal/domain/notification"
	"carelink/internal/registry"
	"carelink/internal/repository"
	care_errors "carelink/pkg/errors"
)

// RegistrySnapshotter provides the live connection view for the debug
// dashboard. A cold registry yields a zero snapshot, never an error.
type RegistrySnapshotter interface {
	Snapshot() registry.Snapshot
}

// DebugMetrics is the payload of the operational dashboard endpoint.
type DebugMetrics struct {
	WindowSeconds int64                      `json:"window_seconds"`
	GeneratedAt   time.Time                  `json:"generated_at"`
	Delivery      notification.DeliveryStats `json:"delivery"`
	Connections   registry.Snapshot          `json:"connections"`
}

// TelemetryService aggregates the append-only delivery log and the live
// registry snapshot. Read-only except for the debug cleanup.
type TelemetryService struct {
	repo     repository.NotificationRepository
	registry RegistrySnapshotter
	clock    func() time.Time
}

func NewTelemetryService(repo repository.NotificationRepository, reg RegistrySnapshotter) *TelemetryService {
	return &TelemetryService{repo: repo, registry: reg, clock: time.Now}
}

func (s *TelemetryService) Metrics(ctx context.Context, window time.Duration) (DebugMetrics, error) {
	if window <= 0 {
		window = time.Hour
	}
	now := s.clock()
	stats, err := s.repo.DeliveryStats(ctx, now.Add(-window))
	if err != nil {
		return DebugMetrics{}, err
	}
	return DebugMetrics{
		WindowSeconds: int64(window.Seconds()),
		GeneratedAt:   now,
		Delivery:      stats,
		Connections:   s.registry.Snapshot(),
	}, nil
}

// Cleanup prunes delivery-log rows older than the retention period. This is
// the only deletion path in the whole subsystem and is debug-gated.
func (s *TelemetryService) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, care_errors.ErrInvalidInput
	}
	return s.repo.DeleteDeliveryLogsBefore(ctx, s.clock().Add(-olderThan))
}
