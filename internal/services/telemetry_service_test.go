package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"carelink/internal/domain/notification"
	"carelink/internal/registry"
	care_errors "carelink/pkg/errors"

	"github.com/google/uuid"
)

type stubSnapshotter struct {
	snap registry.Snapshot
}

func (s *stubSnapshotter) Snapshot() registry.Snapshot { return s.snap }

func seedLog(repo *fakeNotificationRepo, status string, latencyMs int64, age time.Duration, now time.Time) {
	l := notification.DeliveryLog{
		ID:             uuid.New(),
		NotificationID: uuid.New(),
		RecipientID:    uuid.New(),
		Status:         status,
		CreatedAt:      now.Add(-age),
	}
	if status == notification.DeliveryDelivered {
		l.LatencyMs = sql.NullInt64{Int64: latencyMs, Valid: true}
		l.WasConnected = true
	}
	repo.logs = append(repo.logs, &l)
}

func TestMetricsAggregatesWindow(t *testing.T) {
	repo := newFakeNotificationRepo()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	seedLog(repo, notification.DeliveryDelivered, 10, 5*time.Minute, now)
	seedLog(repo, notification.DeliveryDelivered, 30, 10*time.Minute, now)
	seedLog(repo, notification.DeliveryFailed, 0, 15*time.Minute, now)
	seedLog(repo, notification.DeliveryPending, 0, 20*time.Minute, now)
	seedLog(repo, notification.DeliveryPolled, 0, 25*time.Minute, now)
	// Outside the window.
	seedLog(repo, notification.DeliveryDelivered, 500, 2*time.Hour, now)

	snap := registry.Snapshot{TotalConnections: 3, UserCount: 2, HealthRatio: 1}
	svc := NewTelemetryService(repo, &stubSnapshotter{snap: snap})
	svc.clock = fixedClock(now)

	m, err := svc.Metrics(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if m.WindowSeconds != 3600 {
		t.Fatalf("window = %d", m.WindowSeconds)
	}
	d := m.Delivery
	if d.Total != 5 || d.Delivered != 2 || d.Failed != 1 || d.Pending != 1 || d.Polled != 1 {
		t.Fatalf("counts = %+v", d)
	}
	if d.AvgLatencyMs != 20 || d.MinLatencyMs != 10 || d.MaxLatencyMs != 30 {
		t.Fatalf("latency = avg %v min %d max %d", d.AvgLatencyMs, d.MinLatencyMs, d.MaxLatencyMs)
	}
	if m.Connections.TotalConnections != 3 {
		t.Fatalf("registry snapshot not included: %+v", m.Connections)
	}
}

func TestMetricsColdStart(t *testing.T) {
	svc := NewTelemetryService(newFakeNotificationRepo(), &stubSnapshotter{})

	m, err := svc.Metrics(context.Background(), 0)
	if err != nil {
		t.Fatalf("metrics on empty state: %v", err)
	}
	if m.Delivery.Total != 0 || m.Connections.TotalConnections != 0 {
		t.Fatalf("expected zero metrics, got %+v", m)
	}
	if m.WindowSeconds != 3600 {
		t.Fatalf("default window = %d, want 1h", m.WindowSeconds)
	}
}

func TestCleanupPrunesOldRows(t *testing.T) {
	repo := newFakeNotificationRepo()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seedLog(repo, notification.DeliveryDelivered, 5, 40*24*time.Hour, now)
	seedLog(repo, notification.DeliveryDelivered, 5, time.Hour, now)

	svc := NewTelemetryService(repo, &stubSnapshotter{})
	svc.clock = fixedClock(now)

	removed, err := svc.Cleanup(context.Background(), 30*24*time.Hour)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if removed != 1 || len(repo.logs) != 1 {
		t.Fatalf("removed=%d remaining=%d, want 1/1", removed, len(repo.logs))
	}

	if _, err := svc.Cleanup(context.Background(), 0); !errors.Is(err, care_errors.ErrInvalidInput) {
		t.Fatalf("zero retention: got %v, want ErrInvalidInput", err)
	}
}
