// Package worker runs background maintenance jobs.
package worker

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/veloura/storefront/internal/models"
)

const (
	DefaultRetention     = 7 * 24 * time.Hour
	DefaultSweepInterval = time.Hour
)

// RetentionWorker deletes completed orders once their archive timestamp is
// older than the retention window.
type RetentionWorker struct {
	DB        *gorm.DB
	Retention time.Duration
	Interval  time.Duration
	Log       *slog.Logger

	done chan struct{}
}

func NewRetentionWorker(db *gorm.DB, log *slog.Logger) *RetentionWorker {
	return &RetentionWorker{
		DB:        db,
		Retention: DefaultRetention,
		Interval:  DefaultSweepInterval,
		Log:       log,
		done:      make(chan struct{}),
	}
}

func (w *RetentionWorker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(w.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := w.Sweep(ctx); err != nil {
					w.Log.Error("retention sweep failed", "error", err)
				}
			case <-w.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	w.Log.Info("retention worker started", "retention", w.Retention.String())
}

func (w *RetentionWorker) Stop() { close(w.done) }

func (w *RetentionWorker) Sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-w.Retention)

	return w.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uint
		if err := tx.Model(&models.Order{}).
			Where("archived_at IS NOT NULL AND archived_at < ?", cutoff).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		if err := tx.Where("order_id IN ?", ids).Delete(&models.OrderItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id IN ?", ids).Delete(&models.Order{}).Error; err != nil {
			return err
		}

		w.Log.Info("retention sweep removed orders", "count", len(ids))
		return nil
	})
}
