package models

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sevene/garayi-carwash-v2-sub001/config"
	"github.com/sevene/garayi-carwash-v2-sub001/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Ticket is a holdable, resumable order. The cached amounts are recomputed
// from the line items on every save; the remote store treats the items as
// the source of truth.
type Ticket struct {
	ID           string          `gorm:"type:char(36);primary_key" json:"id"`
	TicketNumber string          `gorm:"size:32;index;not null" json:"ticket_number"`
	Status       TicketStatus    `gorm:"size:20;not null" json:"status"`
	CustomerId   *string         `gorm:"type:char(36);index" json:"customer_id"`
	Subtotal     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"subtotal"`
	TaxAmount    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tax_amount"`
	TotalAmount  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	Active       *bool           `gorm:"not null;default:true" json:"active"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (t Ticket) syncPayload() map[string]interface{} {
	return map[string]interface{}{
		"id":            t.ID,
		"ticket_number": t.TicketNumber,
		"status":        t.Status,
		"customer_id":   t.CustomerId,
		"subtotal":      t.Subtotal,
		"tax_amount":    t.TaxAmount,
		"total_amount":  t.TotalAmount,
		"active":        utils.DereferencePtr(t.Active, true),
		"updated_at":    t.UpdatedAt,
	}
}

// SaveTicket persists a ticket and its line items and queues the matching
// remote mutations, all in one local transaction. The ticket row is queued
// before its items so the remote foreign key is satisfied on replay; deletes
// of removed items go last.
func SaveTicket(ctx context.Context, ticket *Ticket, items []TicketItem) error {
	if ticket.ID == "" {
		return errors.New("ticket id is required")
	}
	if ticket.Status == "" {
		ticket.Status = TicketStatusPending
	}
	if ticket.Active == nil {
		ticket.Active = utils.NewTrue()
	}

	db := config.GetDB()

	var existing Ticket
	err := db.WithContext(ctx).Where("id = ?", ticket.ID).Take(&existing).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if err == nil && existing.Status.IsTerminal() {
		return errors.New("ticket is closed and cannot be modified")
	}

	// Recompute cached amounts; the caller's values are not trusted.
	subtotal := decimal.Zero
	for i := range items {
		items[i].TicketId = ticket.ID
		items[i].SortOrder = i
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
		subtotal = subtotal.Add(items[i].LineTotal())
	}
	ticket.Subtotal = subtotal
	ticket.TotalAmount = subtotal.Add(ticket.TaxAmount)

	var removed []TicketItem
	if err := db.WithContext(ctx).
		Where("ticket_id = ?", ticket.ID).
		Find(&removed).Error; err != nil {
		return err
	}
	keep := make(map[string]bool, len(items))
	for _, item := range items {
		keep[item.ID] = true
	}

	batchId := uuid.NewString()
	tx := db.Begin()

	if err := tx.WithContext(ctx).Save(ticket).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := EnqueueChange(tx.WithContext(ctx), batchId, TableTickets, ticket.ID, ChangeOpPut, ticket.syncPayload()); err != nil {
		tx.Rollback()
		return err
	}

	for i := range items {
		if err := tx.WithContext(ctx).Save(&items[i]).Error; err != nil {
			tx.Rollback()
			return err
		}
		if err := EnqueueChange(tx.WithContext(ctx), batchId, TableTicketItems, items[i].ID, ChangeOpPut, items[i].syncPayload()); err != nil {
			tx.Rollback()
			return err
		}
	}

	for _, old := range removed {
		if keep[old.ID] {
			continue
		}
		if err := tx.WithContext(ctx).Delete(&TicketItem{}, "id = ?", old.ID).Error; err != nil {
			tx.Rollback()
			return err
		}
		if err := EnqueueChange(tx.WithContext(ctx), batchId, TableTicketItems, old.ID, ChangeOpDelete, nil); err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit().Error
}

// GetTicketWithItems loads a ticket and its line items in stored sort order.
func GetTicketWithItems(ctx context.Context, id string) (*Ticket, []TicketItem, error) {
	db := config.GetDB().WithContext(ctx)

	var ticket Ticket
	if err := db.Where("id = ?", id).Take(&ticket).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, utils.ErrorRecordNotFound
		}
		return nil, nil, err
	}

	var items []TicketItem
	if err := db.
		Where("ticket_id = ?", id).
		Order("sort_order ASC").
		Find(&items).Error; err != nil {
		return nil, nil, err
	}
	return &ticket, items, nil
}

// GetHeldTickets lists resumable tickets for the register UI.
func GetHeldTickets(ctx context.Context) ([]Ticket, error) {
	var tickets []Ticket
	err := config.GetDB().WithContext(ctx).
		Where("status = ? AND active = ?", TicketStatusParked, true).
		Order("created_at ASC").
		Find(&tickets).Error
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

// UpdateTicketStatus moves a ticket through its lifecycle and queues the
// matching partial update. Terminal tickets reject further transitions.
func UpdateTicketStatus(ctx context.Context, id string, status TicketStatus) (*Ticket, error) {
	db := config.GetDB()

	var ticket Ticket
	if err := db.WithContext(ctx).Where("id = ?", id).Take(&ticket).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	if ticket.Status.IsTerminal() {
		return nil, errors.New("ticket is closed and cannot be modified")
	}

	now := time.Now().UTC()
	batchId := uuid.NewString()
	tx := db.Begin()

	if err := tx.WithContext(ctx).
		Model(&Ticket{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": now,
		}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := EnqueueChange(tx.WithContext(ctx), batchId, TableTickets, id, ChangeOpPatch, map[string]interface{}{
		"status":     status,
		"updated_at": now,
	}); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	ticket.Status = status
	ticket.UpdatedAt = now
	return &ticket, nil
}

// SoftDeleteTicket hides a closed ticket. Completed and cancelled tickets
// are immutable except for this flag.
func SoftDeleteTicket(ctx context.Context, id string) error {
	db := config.GetDB()

	var ticket Ticket
	if err := db.WithContext(ctx).Where("id = ?", id).Take(&ticket).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorRecordNotFound
		}
		return err
	}
	if !ticket.Status.IsTerminal() {
		return errors.New("only closed tickets can be deleted")
	}

	now := time.Now().UTC()
	batchId := uuid.NewString()
	tx := db.Begin()

	if err := tx.WithContext(ctx).
		Model(&Ticket{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"active":     false,
			"updated_at": now,
		}).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := EnqueueChange(tx.WithContext(ctx), batchId, TableTickets, id, ChangeOpPatch, map[string]interface{}{
		"active":     false,
		"updated_at": now,
	}); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}
