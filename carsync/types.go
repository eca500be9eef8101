// Package carsync drains the local change log against the remote store and
// keeps replay from wedging on rows the remote would always reject.
package carsync

import (
	"context"
	"fmt"
	"time"

	"github.com/sevene/garayi-carwash-v2-sub001/cart"
	"github.com/sevene/garayi-carwash-v2-sub001/models"
)

// Postgres SQLSTATE codes the remote store returns in its error body. The
// recovery policies match on these; anything else is retried as-is.
const (
	RemoteCodeInvalidTextRepresentation = "22P02"
	RemoteCodeUniqueViolation           = "23505"
	RemoteCodeForeignKeyViolation       = "23503"
)

// RemoteError is a machine-readable failure from the remote store.
type RemoteError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *RemoteError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("remote error %s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("remote error %s: %s", e.Code, e.Message)
}

// RemoteStore is the write surface of the shared backend database. The sync
// driver is the only caller; no other code path may touch remote state.
type RemoteStore interface {
	// Upsert inserts the row or overwrites it when the identifier exists.
	Upsert(ctx context.Context, table string, id string, payload map[string]interface{}) error
	// Update partially updates named fields, matched by identifier.
	Update(ctx context.Context, table string, id string, fields map[string]interface{}) error
	// Delete removes the row by identifier.
	Delete(ctx context.Context, table string, id string) error
	// FindBy fetches at most one row matching column = value, or nil when
	// none exists. Used to retarget unique-key conflicts.
	FindBy(ctx context.Context, table string, column string, value string) (map[string]interface{}, error)
}

// AuthChecker is implemented by remote stores whose session can lapse while
// the device is offline. An invalid session pauses draining (transient).
type AuthChecker interface {
	AuthValid() bool
}

// ChangeQueue is the pull side of the local store's durable change log:
// in-order, exactly-once dequeue of whole transactions.
type ChangeQueue interface {
	NextPendingBatch(ctx context.Context) ([]models.ChangeLogEntry, error)
	MarkBatchComplete(ctx context.Context, batchId string) error
	MarkBatchFailure(ctx context.Context, batchId string, nextAttemptAt *time.Time, errMsg string) error
	RecordOutcome(ctx context.Context, rec *models.SyncOutcome) error
}

// Classified outcomes of one queue entry. Everything except OutcomeFailed
// resolves the entry.
const (
	OutcomeApplied     = "applied"
	OutcomeDiscarded   = "discarded"
	OutcomeRetargeted  = "retargeted"
	OutcomeRefCleared  = "ref_cleared"
	OutcomeSoftDeleted = "soft_deleted"
	OutcomeFailed      = "failed"
)

// secondaryKeys names the remote unique column per table that a unique
// violation can be retargeted through. Tables not listed here propagate
// unique violations as non-recoverable.
var secondaryKeys = map[string]string{
	models.TableInventory: "product_id",
	models.TableCustomers: "phone",
}

type SyncStatusResponse struct {
	PendingChanges  int64                `json:"pendingChanges"`
	OldestPendingAt *string              `json:"oldestPendingAt"`
	LastError       *string              `json:"lastError"`
	RecentOutcomes  []models.SyncOutcome `json:"recentOutcomes"`
}

type HoldTicketRequest struct {
	Cart cart.Cart           `json:"cart" binding:"required"`
	Crew map[string][]string `json:"crew"`
}

type ReopenTicketResponse struct {
	Cart cart.Cart           `json:"cart"`
	Crew map[string][]string `json:"crew"`
}

type TicketStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type SanitizeResponse struct {
	RowsFixed int `json:"rowsFixed"`
}
