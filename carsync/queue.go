package carsync

import (
	"context"
	"time"

	"github.com/sevene/garayi-carwash-v2-sub001/models"
)

// dbQueue is the change queue backed by the on-device database.
type dbQueue struct{}

func NewQueue() ChangeQueue {
	return dbQueue{}
}

func (dbQueue) NextPendingBatch(ctx context.Context) ([]models.ChangeLogEntry, error) {
	return models.NextPendingBatch(ctx)
}

func (dbQueue) MarkBatchComplete(ctx context.Context, batchId string) error {
	return models.MarkBatchComplete(ctx, batchId)
}

func (dbQueue) MarkBatchFailure(ctx context.Context, batchId string, nextAttemptAt *time.Time, errMsg string) error {
	return models.MarkBatchFailure(ctx, batchId, nextAttemptAt, errMsg)
}

func (dbQueue) RecordOutcome(ctx context.Context, outcome *models.SyncOutcome) error {
	return models.AppendSyncOutcome(ctx, outcome)
}
