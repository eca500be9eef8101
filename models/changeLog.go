package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sevene/garayi-carwash-v2-sub001/config"
	"gorm.io/gorm"
)

// Table names as the remote store knows them. Queue entries carry these
// verbatim, so local and remote naming must stay in lockstep.
const (
	TableTickets     = "tickets"
	TableTicketItems = "ticket_items"
	TableCustomers   = "customers"
	TableProducts    = "products"
	TableInventory   = "inventory_levels"
)

// ErrNoPendingChanges means the change log has nothing to upload.
var ErrNoPendingChanges = errors.New("no pending changes")

// ErrBackoffPending means the head transaction failed recently and its next
// attempt window has not opened yet. Later transactions must wait behind it;
// reordering is never allowed because they may touch the same rows.
var ErrBackoffPending = errors.New("head transaction backoff pending")

// ChangeLogEntry is one durable record of a pending row mutation. Entries
// written in the same local transaction share a batch id and are uploaded
// as one unit: either every entry resolves and the batch is marked
// processed, or the whole batch stays queued and is retried verbatim.
type ChangeLogEntry struct {
	ID            int64      `gorm:"primary_key;autoIncrement" json:"id"`
	BatchId       string     `gorm:"index;type:char(36);not null" json:"batch_id"`
	Table         string     `gorm:"column:table_name;size:64;not null" json:"table_name"`
	RowId         string     `gorm:"size:64;not null" json:"row_id"`
	Op            ChangeOp   `gorm:"size:10;not null" json:"op"`
	PayloadJSON   []byte     `gorm:"type:json" json:"payload"`
	IsProcessed   *bool      `gorm:"not null;default:false;index" json:"is_processed"`
	Attempts      int        `gorm:"not null;default:0" json:"attempts"`
	LastError     *string    `gorm:"type:text" json:"last_error"`
	NextAttemptAt *time.Time `json:"next_attempt_at"`
	ProcessedAt   *time.Time `json:"processed_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (ChangeLogEntry) TableName() string {
	return "change_log_entries"
}

// EnqueueChange appends one mutation to the change log inside the caller's
// transaction, so the row write and its queue entry commit atomically.
// payload may be nil for deletes.
func EnqueueChange(tx *gorm.DB, batchId string, tableName string, rowId string, op ChangeOp, payload any) error {
	if batchId == "" {
		return errors.New("batch id is required")
	}

	var payloadJSON []byte
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		payloadJSON = data
	}

	entry := ChangeLogEntry{
		BatchId:     batchId,
		Table:       tableName,
		RowId:       rowId,
		Op:          op,
		PayloadJSON: payloadJSON,
	}
	return tx.Create(&entry).Error
}

// NextPendingBatch returns every entry of the oldest unfinished transaction,
// in enqueue order. Returns ErrNoPendingChanges when the queue is drained and
// ErrBackoffPending while the head transaction waits out its retry window.
func NextPendingBatch(ctx context.Context) ([]ChangeLogEntry, error) {
	db := config.GetDB().WithContext(ctx)

	var head ChangeLogEntry
	err := db.
		Where("is_processed = ?", false).
		Order("id ASC").
		Take(&head).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoPendingChanges
		}
		return nil, err
	}

	if head.NextAttemptAt != nil && head.NextAttemptAt.After(time.Now().UTC()) {
		return nil, ErrBackoffPending
	}

	var entries []ChangeLogEntry
	if err := db.
		Where("batch_id = ? AND is_processed = ?", head.BatchId, false).
		Order("id ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// MarkBatchComplete drops the transaction from the queue. Call only after
// every entry is resolved: applied, recovered, or deliberately discarded.
func MarkBatchComplete(ctx context.Context, batchId string) error {
	now := time.Now().UTC()
	return config.GetDB().WithContext(ctx).
		Model(&ChangeLogEntry{}).
		Where("batch_id = ?", batchId).
		Updates(map[string]interface{}{
			"is_processed":    true,
			"processed_at":    &now,
			"last_error":      nil,
			"next_attempt_at": nil,
		}).Error
}

// MarkBatchFailure records a failed pass over the transaction and schedules
// the next attempt. The batch stays queued; retries are unbounded.
func MarkBatchFailure(ctx context.Context, batchId string, nextAttemptAt *time.Time, errMsg string) error {
	return config.GetDB().WithContext(ctx).
		Model(&ChangeLogEntry{}).
		Where("batch_id = ? AND is_processed = ?", batchId, false).
		Updates(map[string]interface{}{
			"attempts":        gorm.Expr("attempts + 1"),
			"last_error":      &errMsg,
			"next_attempt_at": nextAttemptAt,
		}).Error
}

// PendingChangeCount reports queue depth for status/telemetry.
func PendingChangeCount(ctx context.Context) (int64, error) {
	var count int64
	err := config.GetDB().WithContext(ctx).
		Model(&ChangeLogEntry{}).
		Where("is_processed = ?", false).
		Count(&count).Error
	return count, err
}

// OldestPendingChange returns the head entry, or nil when drained.
func OldestPendingChange(ctx context.Context) (*ChangeLogEntry, error) {
	var head ChangeLogEntry
	err := config.GetDB().WithContext(ctx).
		Where("is_processed = ?", false).
		Order("id ASC").
		Take(&head).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &head, nil
}
