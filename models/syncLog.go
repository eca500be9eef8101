package models

import (
	"context"
	"time"

	"github.com/sevene/garayi-carwash-v2-sub001/config"
)

// SyncOutcome is one classified upload result. Sync failures never block the
// point of sale, so these records (plus logs) are the only place a growing
// backlog or a discarded row becomes visible.
type SyncOutcome struct {
	ID        uint      `gorm:"primary_key" json:"id"`
	EntryId   int64     `gorm:"index" json:"entry_id"`
	BatchId   string    `gorm:"index;type:char(36)" json:"batch_id"`
	TableName string    `gorm:"size:64" json:"table_name"`
	RowId     string    `gorm:"size:64" json:"row_id"`
	Op        ChangeOp  `gorm:"size:10" json:"op"`
	Outcome   string    `gorm:"size:32;not null" json:"outcome"`
	ErrorCode string    `gorm:"size:64" json:"error_code"`
	Message   string    `gorm:"type:text" json:"message"`
	Retryable bool      `gorm:"default:false" json:"retryable"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func AppendSyncOutcome(ctx context.Context, rec *SyncOutcome) error {
	return config.GetDB().WithContext(ctx).Create(rec).Error
}

func RecentSyncOutcomes(ctx context.Context, limit int) ([]SyncOutcome, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []SyncOutcome
	err := config.GetDB().WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
