package cart

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/sevene/garayi-carwash-v2-sub001/models"
	"github.com/sevene/garayi-carwash-v2-sub001/utils"
	"github.com/shopspring/decimal"
)

// UnknownStaffName fills a crew snapshot slot when the employee cannot be
// resolved against the roster at save time.
const UnknownStaffName = "Unknown"

// Projector maps cart state to persistable rows and back. Round-tripping a
// cart through Forward then Reverse preserves item order, quantities,
// prices, kinds and crew membership. Crew display names are snapshot data
// and are not preserved across roster edits, by design.
type Projector struct {
	TaxRate          decimal.Decimal
	ServiceSkuPrefix string
}

func NewProjector(taxRate decimal.Decimal) *Projector {
	return &Projector{
		TaxRate:          taxRate,
		ServiceSkuPrefix: models.ServiceSkuPrefix,
	}
}

// kindOf resolves an item's kind from the explicit field, falling back to
// the SKU prefix convention.
func (p *Projector) kindOf(item Item) models.ItemKind {
	switch item.Kind {
	case models.ItemKindService, models.ItemKindProduct:
		return item.Kind
	}
	if strings.HasPrefix(strings.ToUpper(item.Sku), p.ServiceSkuPrefix) {
		return models.ItemKindService
	}
	return models.ItemKindProduct
}

// Forward shapes the cart into the rows the local store persists. Services
// never get a product foreign key: their catalog reference moves to the
// non-constrained item ref column regardless of how the cart line was
// constructed. Sort order is the line's position in the cart.
func (p *Projector) Forward(c *Cart, crew *CrewSession, roster []models.Employee, status models.TicketStatus) (models.Ticket, []models.TicketItem) {
	names := make(map[string]string, len(roster))
	for _, emp := range roster {
		names[emp.ID] = emp.Name
	}

	ticketId := c.TicketId
	if ticketId == "" {
		ticketId = uuid.NewString()
	}

	items := make([]models.TicketItem, 0, len(c.Items))
	subtotal := decimal.Zero
	for idx, line := range c.Items {
		kind := p.kindOf(line)

		rowId := line.LineId
		if !utils.IsValidUUID(rowId) {
			rowId = uuid.NewString()
		}

		item := models.TicketItem{
			ID:        rowId,
			TicketId:  ticketId,
			Kind:      kind,
			Name:      line.Name,
			Sku:       line.Sku,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			SortOrder: idx,
		}

		if kind == models.ItemKindService {
			item.ProductId = nil
			item.ItemRefId = utils.NilIfEmpty(line.ItemId)
		} else {
			item.ProductId = utils.NilIfEmpty(line.ItemId)
		}

		var snapshot []models.CrewMember
		if crew != nil {
			for _, personId := range crew.CrewFor(line.LineId) {
				name, ok := names[personId]
				if !ok {
					name = UnknownStaffName
				}
				snapshot = append(snapshot, models.CrewMember{PersonId: personId, PersonName: name})
			}
		}
		item.SetCrew(snapshot)

		subtotal = subtotal.Add(item.LineTotal())
		items = append(items, item)
	}

	tax := subtotal.Mul(p.TaxRate).Round(4)
	ticket := models.Ticket{
		ID:           ticketId,
		TicketNumber: c.TicketNumber,
		Status:       status,
		CustomerId:   utils.NilIfEmpty(c.CustomerId),
		Subtotal:     subtotal,
		TaxAmount:    tax,
		TotalAmount:  subtotal.Add(tax),
		Active:       utils.NewTrue(),
	}
	return ticket, items
}

// Reverse rebuilds the in-memory cart from persisted rows when a held
// ticket is reopened. Crew membership is rehydrated by identifier only; the
// snapshotted names are display data. The customer reference is resolved
// against the given list and dropped when no longer present.
func (p *Projector) Reverse(ticket *models.Ticket, rows []models.TicketItem, customers []models.Customer) (*Cart, *CrewSession) {
	sorted := append([]models.TicketItem(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SortOrder < sorted[j].SortOrder
	})

	crew := NewCrewSession()
	items := make([]Item, 0, len(sorted))
	for _, row := range sorted {
		kind := row.Kind
		if kind != models.ItemKindService && kind != models.ItemKindProduct {
			if strings.HasPrefix(strings.ToUpper(row.Sku), p.ServiceSkuPrefix) {
				kind = models.ItemKindService
			} else {
				kind = models.ItemKindProduct
			}
		}

		itemId := ""
		if kind == models.ItemKindService {
			itemId = utils.DereferencePtr(row.ItemRefId)
		} else {
			itemId = utils.DereferencePtr(row.ProductId)
		}

		items = append(items, Item{
			LineId:    row.ID,
			Kind:      kind,
			ItemId:    itemId,
			Sku:       row.Sku,
			Name:      row.Name,
			Quantity:  row.Quantity,
			UnitPrice: row.UnitPrice,
		})

		var memberIds []string
		for _, member := range row.Crew() {
			memberIds = append(memberIds, member.PersonId)
		}
		crew.SetCrew(row.ID, memberIds)
	}

	customerId := ""
	if ticket.CustomerId != nil {
		for _, cust := range customers {
			if cust.ID == *ticket.CustomerId {
				customerId = cust.ID
				break
			}
		}
	}

	return &Cart{
		TicketId:     ticket.ID,
		TicketNumber: ticket.TicketNumber,
		CustomerId:   customerId,
		Items:        items,
	}, crew
}
