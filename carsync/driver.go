package carsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sevene/garayi-carwash-v2-sub001/config"
	"github.com/sevene/garayi-carwash-v2-sub001/models"
	"github.com/sevene/garayi-carwash-v2-sub001/utils"
)

// Driver drains the change queue against the remote store. One transaction at
// a time, one driver per process: strict ordering is the whole point, so two
// drainers racing each other is never allowed.
type Driver struct {
	Remote      RemoteStore
	Queue       ChangeQueue
	Logger      *logrus.Logger
	Interval    time.Duration
	BackoffBase time.Duration
	BackoffCap  time.Duration

	mu       sync.Mutex
	running  bool
	lastErr  *string
	kickChan chan struct{}
}

func NewDriver(remote RemoteStore, queue ChangeQueue) *Driver {
	interval := 15 * time.Second
	if v := os.Getenv("SYNC_POLL_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			interval = time.Duration(n) * time.Second
		}
	}
	return &Driver{
		Remote:      remote,
		Queue:       queue,
		Logger:      config.GetLogger(),
		Interval:    interval,
		BackoffBase: 5 * time.Second,
		BackoffCap:  5 * time.Minute,
		kickChan:    make(chan struct{}, 1),
	}
}

// Kick requests an immediate drain pass. Safe from any goroutine; a pass
// already pending coalesces.
func (d *Driver) Kick() {
	select {
	case d.kickChan <- struct{}{}:
	default:
	}
}

// LastError reports the most recent drain failure, cleared on a clean pass.
func (d *Driver) LastError() *string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

func (d *Driver) setLastError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		d.lastErr = nil
		return
	}
	msg := err.Error()
	d.lastErr = &msg
}

// Run polls the queue until ctx is cancelled. Returns an error immediately if
// another Run is already active on this driver.
func (d *Driver) Run(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return errors.New("sync driver is already running")
	}
	d.running = true
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
	}()

	d.Logger.WithFields(logrus.Fields{
		"module":   "carsync",
		"interval": d.Interval.String(),
	}).Info("sync driver started")

	ticker := time.NewTicker(d.Interval)
	defer ticker.Stop()

	for {
		d.processOnce(ctx)

		select {
		case <-ctx.Done():
			d.Logger.WithFields(logrus.Fields{"module": "carsync"}).Info("sync driver stopped")
			return ctx.Err()
		case <-d.kickChan:
		case <-ticker.C:
		}
	}
}

// processOnce drains every ready transaction, stopping on the first failure
// or when the head transaction is waiting out its backoff window.
func (d *Driver) processOnce(ctx context.Context) {
	if d.Remote == nil {
		return
	}
	if ac, ok := d.Remote.(AuthChecker); ok && !ac.AuthValid() {
		d.Logger.WithFields(logrus.Fields{
			"module": "carsync",
		}).Warn("remote session invalid, drain paused")
		return
	}

	for {
		if ctx.Err() != nil {
			return
		}

		entries, err := d.Queue.NextPendingBatch(ctx)
		if err != nil {
			if errors.Is(err, models.ErrNoPendingChanges) || errors.Is(err, models.ErrBackoffPending) {
				return
			}
			config.LogError(d.Logger, "carsync", "processOnce", "fetching next batch", nil, err)
			d.setLastError(err)
			return
		}
		if len(entries) == 0 {
			return
		}

		if err := d.drainBatch(ctx, entries); err != nil {
			d.setLastError(err)
			return
		}
		d.setLastError(nil)
	}
}

// drainBatch applies one transaction's entries in order. Any non-recoverable
// entry fails the whole transaction: nothing is marked processed, a retry
// window is scheduled, and the next pass replays the batch verbatim. Replay
// is safe because every upload is idempotent by row identifier.
func (d *Driver) drainBatch(ctx context.Context, entries []models.ChangeLogEntry) error {
	batchId := entries[0].BatchId

	for _, entry := range entries {
		outcome, errCode, msg := d.applyEntry(ctx, entry)

		rec := &models.SyncOutcome{
			EntryId:   entry.ID,
			BatchId:   entry.BatchId,
			TableName: entry.Table,
			RowId:     entry.RowId,
			Op:        entry.Op,
			Outcome:   outcome,
			ErrorCode: errCode,
			Message:   msg,
			Retryable: outcome == OutcomeFailed,
		}
		if err := d.Queue.RecordOutcome(ctx, rec); err != nil {
			config.LogError(d.Logger, "carsync", "drainBatch", "recording outcome", entry, err)
		}

		logFields := logrus.Fields{
			"module":  "carsync",
			"batchId": batchId,
			"entryId": entry.ID,
			"table":   entry.Table,
			"rowId":   entry.RowId,
			"op":      entry.Op,
			"outcome": outcome,
		}
		if errCode != "" {
			logFields["errorCode"] = errCode
		}

		if outcome == OutcomeFailed {
			d.Logger.WithFields(logFields).Warn(msg)

			next := time.Now().UTC().Add(d.backoffDelay(entry.Attempts))
			if err := d.Queue.MarkBatchFailure(ctx, batchId, &next, msg); err != nil {
				config.LogError(d.Logger, "carsync", "drainBatch", "marking batch failure", entry, err)
				return err
			}
			return fmt.Errorf("batch %s: %s", batchId, msg)
		}
		d.Logger.WithFields(logFields).Info("change entry resolved")
	}

	if err := d.Queue.MarkBatchComplete(ctx, batchId); err != nil {
		config.LogError(d.Logger, "carsync", "drainBatch", "marking batch complete", batchId, err)
		return err
	}
	return nil
}

// backoffDelay doubles per failed attempt, capped. attempts is the count
// before this failure.
func (d *Driver) backoffDelay(attempts int) time.Duration {
	delay := d.BackoffBase
	for i := 0; i < attempts; i++ {
		delay *= 2
		if delay >= d.BackoffCap {
			return d.BackoffCap
		}
	}
	return delay
}

// applyEntry uploads one entry and classifies the result. Outcomes other
// than OutcomeFailed resolve the entry; OutcomeFailed requeues the batch.
func (d *Driver) applyEntry(ctx context.Context, entry models.ChangeLogEntry) (outcome string, errCode string, msg string) {
	// Rows carrying a malformed identifier can never be accepted remotely.
	// Discard locally instead of burning an upload on a guaranteed 22P02.
	if !utils.IsValidUUID(entry.RowId) {
		return OutcomeDiscarded, RemoteCodeInvalidTextRepresentation,
			"row identifier is not a valid uuid, discarded without upload"
	}

	payload, err := entryPayload(entry)
	if err != nil {
		return OutcomeFailed, "", fmt.Sprintf("decoding payload: %v", err)
	}

	err = d.dispatch(ctx, entry, payload)
	if err == nil {
		return OutcomeApplied, "", ""
	}

	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) {
		return OutcomeFailed, "", err.Error()
	}

	switch remoteErr.Code {
	case RemoteCodeInvalidTextRepresentation:
		// Some identifier inside the payload is malformed. The row can
		// never land; replaying it forever would wedge the queue.
		return OutcomeDiscarded, remoteErr.Code, remoteErr.Error()

	case RemoteCodeUniqueViolation:
		if entry.Op != models.ChangeOpPut {
			return OutcomeFailed, remoteErr.Code, remoteErr.Error()
		}
		return d.retargetUniqueConflict(ctx, entry, payload, remoteErr)

	case RemoteCodeForeignKeyViolation:
		if entry.Op == models.ChangeOpDelete {
			return d.softDeleteInsteadOfDelete(ctx, entry, remoteErr)
		}
		if entry.Table == models.TableTicketItems {
			return d.clearProductRef(ctx, entry, payload, remoteErr)
		}
		return OutcomeFailed, remoteErr.Code, remoteErr.Error()

	default:
		return OutcomeFailed, remoteErr.Code, remoteErr.Error()
	}
}

func (d *Driver) dispatch(ctx context.Context, entry models.ChangeLogEntry, payload map[string]interface{}) error {
	switch entry.Op {
	case models.ChangeOpPut:
		return d.Remote.Upsert(ctx, entry.Table, entry.RowId, payload)
	case models.ChangeOpPatch:
		return d.Remote.Update(ctx, entry.Table, entry.RowId, payload)
	case models.ChangeOpDelete:
		return d.Remote.Delete(ctx, entry.Table, entry.RowId)
	default:
		return fmt.Errorf("unknown change op %q", entry.Op)
	}
}

// retargetUniqueConflict recovers a unique-key collision: the same logical
// row already exists remotely under a different identifier, usually because
// two devices created it independently. Look it up by its natural key and
// redirect this entry's fields onto the surviving row.
func (d *Driver) retargetUniqueConflict(ctx context.Context, entry models.ChangeLogEntry, payload map[string]interface{}, remoteErr *RemoteError) (string, string, string) {
	column, ok := secondaryKeys[entry.Table]
	if !ok {
		return OutcomeFailed, remoteErr.Code, remoteErr.Error()
	}
	value, ok := payload[column].(string)
	if !ok || value == "" {
		return OutcomeFailed, remoteErr.Code,
			fmt.Sprintf("unique violation but payload has no %s to retarget by: %v", column, remoteErr)
	}

	existing, err := d.Remote.FindBy(ctx, entry.Table, column, value)
	if err != nil {
		return OutcomeFailed, remoteErr.Code, fmt.Sprintf("retarget lookup: %v", err)
	}
	if existing == nil {
		return OutcomeFailed, remoteErr.Code,
			fmt.Sprintf("unique violation but no remote row matches %s=%s: %v", column, value, remoteErr)
	}
	existingId, ok := existing["id"].(string)
	if !ok || existingId == "" {
		return OutcomeFailed, remoteErr.Code, "retarget lookup returned a row without an id"
	}

	fields := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		if k == "id" {
			continue
		}
		fields[k] = v
	}
	if err := d.Remote.Update(ctx, entry.Table, existingId, fields); err != nil {
		return OutcomeFailed, remoteErr.Code, fmt.Sprintf("retarget update: %v", err)
	}
	return OutcomeRetargeted, remoteErr.Code,
		fmt.Sprintf("redirected onto existing remote row %s via %s=%s", existingId, column, value)
}

// softDeleteInsteadOfDelete recovers a delete blocked by remote children the
// device cannot see. Deactivating the row preserves referential integrity
// while honoring the local intent.
func (d *Driver) softDeleteInsteadOfDelete(ctx context.Context, entry models.ChangeLogEntry, remoteErr *RemoteError) (string, string, string) {
	fields := map[string]interface{}{
		"active":     false,
		"updated_at": time.Now().UTC(),
	}
	if err := d.Remote.Update(ctx, entry.Table, entry.RowId, fields); err != nil {
		return OutcomeFailed, remoteErr.Code,
			fmt.Sprintf("delete blocked by references and soft delete failed: %v", err)
	}
	return OutcomeSoftDeleted, remoteErr.Code, "delete blocked by references, row deactivated instead"
}

// clearProductRef recovers a ticket item whose product reference does not
// exist remotely (stale catalog, or a placeholder id that never will).
// Dropping the reference keeps the priced line; the item still carries its
// own name, sku and price snapshot.
func (d *Driver) clearProductRef(ctx context.Context, entry models.ChangeLogEntry, payload map[string]interface{}, remoteErr *RemoteError) (string, string, string) {
	ref, hasRef := payload["product_id"]
	if !hasRef || ref == nil {
		return OutcomeFailed, remoteErr.Code, remoteErr.Error()
	}

	payload["product_id"] = nil
	payload["kind"] = string(models.ItemKindService)

	if err := d.dispatch(ctx, entry, payload); err != nil {
		return OutcomeFailed, remoteErr.Code,
			fmt.Sprintf("retry after clearing product reference: %v", err)
	}
	return OutcomeRefCleared, remoteErr.Code,
		fmt.Sprintf("cleared dangling product reference %v", ref)
}

func entryPayload(entry models.ChangeLogEntry) (map[string]interface{}, error) {
	if len(entry.PayloadJSON) == 0 {
		return nil, nil
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(entry.PayloadJSON, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}
