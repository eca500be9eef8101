package models

import (
	"encoding/json"
	"time"

	"github.com/sevene/garayi-carwash-v2-sub001/utils"
	"github.com/shopspring/decimal"
)

// CrewMember is one entry of a line item's crew snapshot: who performed the
// work, captured at save time. The name is denormalized on purpose so
// historical tickets stay accurate when the roster changes; it is display
// data only and never used to resolve the employee again.
type CrewMember struct {
	PersonId   string `json:"person_id"`
	PersonName string `json:"person_name"`
}

// TicketItem is one priced entry on a ticket. ProductId is a real foreign
// key into the product catalog and must stay null for services; services
// carry their catalog reference in ItemRefId, which the remote store does
// not constrain.
type TicketItem struct {
	ID        string          `gorm:"type:char(36);primary_key" json:"id"`
	TicketId  string          `gorm:"type:char(36);index;not null" json:"ticket_id"`
	Kind      ItemKind        `gorm:"size:10;not null" json:"kind"`
	ProductId *string         `gorm:"type:char(36);index" json:"product_id"`
	ItemRefId *string         `gorm:"type:char(36)" json:"item_ref_id"`
	Name      string          `gorm:"size:255;not null" json:"name"`
	Sku       string          `gorm:"size:64" json:"sku"`
	Quantity  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	SortOrder int             `gorm:"not null;default:0" json:"sort_order"`
	CrewJSON  []byte          `gorm:"type:json" json:"-"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (i *TicketItem) Crew() []CrewMember {
	if len(i.CrewJSON) == 0 {
		return nil
	}
	var crew []CrewMember
	if err := utils.UnmarshalFromJSON(i.CrewJSON, &crew); err != nil {
		return nil
	}
	return crew
}

func (i *TicketItem) SetCrew(crew []CrewMember) {
	if len(crew) == 0 {
		i.CrewJSON = nil
		return
	}
	data, err := utils.MarshalToJSON(crew)
	if err != nil {
		i.CrewJSON = nil
		return
	}
	i.CrewJSON = []byte(data)
}

func (i TicketItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(i.Quantity)
}

// syncPayload is the row shape queued for the remote store.
func (i TicketItem) syncPayload() map[string]interface{} {
	var crew json.RawMessage
	if len(i.CrewJSON) > 0 {
		crew = json.RawMessage(i.CrewJSON)
	}
	return map[string]interface{}{
		"id":          i.ID,
		"ticket_id":   i.TicketId,
		"kind":        i.Kind,
		"product_id":  i.ProductId,
		"item_ref_id": i.ItemRefId,
		"name":        i.Name,
		"sku":         i.Sku,
		"quantity":    i.Quantity,
		"unit_price":  i.UnitPrice,
		"sort_order":  i.SortOrder,
		"crew":        crew,
		"updated_at": i.UpdatedAt,
	}
}
