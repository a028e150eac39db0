package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/orderstock-backend/internal/orders"
	"github.com/angelmondragon/orderstock-backend/pkg/logger"
	"github.com/angelmondragon/orderstock-backend/pkg/metrics"
)

const (
	cancelledOrderRetentionDays = 180
	cancelledOrderBatchSize     = 200
	cancelledOrderJobName       = "cancelled-order-retention"
)

// CancelledOrderRetentionJobParams configure the purge of old cancelled orders.
type CancelledOrderRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository orders.Repository
	Metrics    *metrics.CronJobMetrics
	Retention  int
	BatchSize  int
}

// NewCancelledOrderRetentionJob deletes cancelled orders, lines included,
// whose cancellation is older than the retention window.
func NewCancelledOrderRetentionJob(params CancelledOrderRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = cancelledOrderRetentionDays
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = cancelledOrderBatchSize
	}
	return &cancelledOrderRetentionJob{
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.Repository,
		metrics:   params.Metrics,
		retention: retention,
		batchSize: batch,
		now:       time.Now,
	}, nil
}

type cancelledOrderRetentionJob struct {
	logg      *logger.Logger
	db        txRunner
	repo      orders.Repository
	metrics   *metrics.CronJobMetrics
	retention int
	batchSize int
	now       func() time.Time
}

func (j *cancelledOrderRetentionJob) Name() string { return cancelledOrderJobName }

func (j *cancelledOrderRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().AddDate(0, 0, -j.retention)
	var total int64
	for {
		var (
			found   int
			deleted int64
		)
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			repo := j.repo.WithTx(tx)
			ids, err := repo.FindCancelledBefore(ctx, cutoff, j.batchSize)
			if err != nil {
				return err
			}
			found = len(ids)
			deleted, err = repo.DeleteOrders(ctx, ids)
			return err
		})
		if err != nil {
			j.metrics.AddRowsDeleted(j.Name(), total)
			return fmt.Errorf("cancelled order retention: %w", err)
		}
		total += deleted
		if found < j.batchSize || deleted == 0 {
			break
		}
	}
	j.metrics.AddRowsDeleted(j.Name(), total)

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   total,
	})
	j.logg.Info(logCtx, "cancelled order purge complete")
	return nil
}
