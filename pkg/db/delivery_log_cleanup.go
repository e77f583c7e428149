package db

import (
	"context"
	"time"

	"github.com/smith3v/wx-reminder/pkg/logger"
)

const DeliveryLogCleanupInterval = time.Hour

// CleanupDeliveryLogs deletes log rows created before the cutoff.
func CleanupDeliveryLogs(before time.Time) (int64, error) {
	if DB == nil {
		return 0, nil
	}
	res := DB.Where("created_at <= ?", before).Delete(&DeliveryLog{})
	return res.RowsAffected, res.Error
}

func StartDeliveryLogCleanup(ctx context.Context, interval, retention time.Duration) {
	if interval <= 0 {
		interval = DeliveryLogCleanupInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := CleanupDeliveryLogs(time.Now().UTC().Add(-retention)); err != nil {
				logger.Error("failed to cleanup delivery logs", "error", err)
			}
		}
	}
}
