package repository

import (
	"context"
	"errors"
	"time"

	"carelink/internal/domain/notification"
	care_errors "carelink/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresNotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &PostgresNotificationRepository{db: db}
}

func (r *PostgresNotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	res := r.db.WithContext(ctx).Create(n)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return care_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresNotificationRepository) GetByID(ctx context.Context, id uuid.UUID) (notification.Notification, error) {
	var n notification.Notification
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&n).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notification.Notification{}, care_errors.ErrNotFound
		}
		return notification.Notification{}, err
	}
	return n, nil
}

func (r *PostgresNotificationRepository) ListForRecipient(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, now time.Time, page, limit int) ([]notification.Notification, int64, error) {
	var notifications []notification.Notification
	var total int64

	q := r.db.WithContext(ctx).
		Model(&notification.Notification{}).
		Where("recipient_id = ? AND (expires_at IS NULL OR expires_at > ?)", recipientID, now)
	if unreadOnly {
		q = q.Where("is_read = false")
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&notifications).Error; err != nil {
		return nil, 0, err
	}

	return notifications, total, nil
}

func (r *PostgresNotificationRepository) MarkRead(ctx context.Context, id, recipientID uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&notification.Notification{}).
		Where("id = ? AND recipient_id = ? AND is_read = false", id, recipientID).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	// RowsAffected 0 means either missing or already read; distinguish so
	// mark-read stays idempotent but a bad id is still a 404.
	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).
			Model(&notification.Notification{}).
			Where("id = ? AND recipient_id = ?", id, recipientID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return care_errors.ErrNotFound
		}
	}
	return nil
}

func (r *PostgresNotificationRepository) MarkAllRead(ctx context.Context, recipientID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&notification.Notification{}).
		Where("recipient_id = ? AND is_read = false", recipientID).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": at,
		}).Error
}

func (r *PostgresNotificationRepository) CreateDeliveryLog(ctx context.Context, l *notification.DeliveryLog) error {
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *PostgresNotificationRepository) MarkPendingPolled(ctx context.Context, recipientID uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&notification.DeliveryLog{}).
		Where("recipient_id = ? AND status = ?", recipientID, notification.DeliveryPending).
		Updates(map[string]interface{}{
			"status":       notification.DeliveryPolled,
			"delivered_at": at,
		})
	return res.RowsAffected, res.Error
}

func (r *PostgresNotificationRepository) DeliveryStats(ctx context.Context, since time.Time) (notification.DeliveryStats, error) {
	var stats notification.DeliveryStats

	type countRow struct {
		Status string
		N      int64
	}
	var counts []countRow
	err := r.db.WithContext(ctx).
		Model(&notification.DeliveryLog{}).
		Select("status, COUNT(*) AS n").
		Where("created_at >= ?", since).
		Group("status").
		Scan(&counts).Error
	if err != nil {
		return stats, err
	}
	for _, row := range counts {
		stats.Total += row.N
		switch row.Status {
		case notification.DeliveryDelivered:
			stats.Delivered = row.N
		case notification.DeliveryPolled:
			stats.Polled = row.N
		case notification.DeliveryFailed:
			stats.Failed = row.N
		case notification.DeliveryPending:
			stats.Pending = row.N
		}
	}

	if stats.Delivered > 0 {
		type latencyRow struct {
			Avg float64
			Min int64
			Max int64
		}
		var lat latencyRow
		err = r.db.WithContext(ctx).
			Model(&notification.DeliveryLog{}).
			Select("AVG(latency_ms) AS avg, MIN(latency_ms) AS min, MAX(latency_ms) AS max").
			Where("created_at >= ? AND status = ? AND latency_ms IS NOT NULL", since, notification.DeliveryDelivered).
			Scan(&lat).Error
		if err != nil {
			return stats, err
		}
		stats.AvgLatencyMs = lat.Avg
		stats.MinLatencyMs = lat.Min
		stats.MaxLatencyMs = lat.Max
	}

	return stats, nil
}

func (r *PostgresNotificationRepository) DeleteDeliveryLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&notification.DeliveryLog{})
	return res.RowsAffected, res.Error
}
