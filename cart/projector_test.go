package cart_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sevene/garayi-carwash-v2-sub001/cart"
	"github.com/sevene/garayi-carwash-v2-sub001/models"
	"github.com/sevene/garayi-carwash-v2-sub001/utils"
)

func testRoster() []models.Employee {
	return []models.Employee{
		{ID: "0f0c1c3a-9a34-4f2e-8f62-0f0b5f3c1001", Name: "Aung Aung", Active: utils.NewTrue()},
		{ID: "0f0c1c3a-9a34-4f2e-8f62-0f0b5f3c1002", Name: "Mya Mya", Active: utils.NewTrue()},
	}
}

func TestForwardServiceNeverGetsProductForeignKey(t *testing.T) {
	p := cart.NewProjector(decimal.Zero)

	serviceRef := uuid.NewString()
	c := &cart.Cart{
		TicketNumber: "GCW-2602011853001",
		Items: []cart.Item{
			{
				LineId:    uuid.NewString(),
				Kind:      models.ItemKindService,
				ItemId:    serviceRef,
				Sku:       "SVC-WASH-PREMIUM",
				Name:      "Premium Wash",
				Quantity:  decimal.NewFromInt(1),
				UnitPrice: decimal.NewFromInt(15000),
			},
		},
	}

	_, rows := p.Forward(c, nil, nil, models.TicketStatusParked)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].ProductId != nil {
		t.Fatalf("service row must not carry a product foreign key, got %v", *rows[0].ProductId)
	}
	if rows[0].ItemRefId == nil || *rows[0].ItemRefId != serviceRef {
		t.Fatalf("service catalog reference lost: %v", rows[0].ItemRefId)
	}
}

func TestForwardKindFromSkuPrefix(t *testing.T) {
	p := cart.NewProjector(decimal.Zero)

	c := &cart.Cart{
		Items: []cart.Item{
			{LineId: uuid.NewString(), ItemId: uuid.NewString(), Sku: "svc-wash-basic", Name: "Basic Wash", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(5000)},
			{LineId: uuid.NewString(), ItemId: uuid.NewString(), Sku: "WAX-001", Name: "Carnauba Wax", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(8000)},
		},
	}

	_, rows := p.Forward(c, nil, nil, models.TicketStatusParked)
	if rows[0].Kind != models.ItemKindService {
		t.Fatalf("SVC- sku should classify as service, got %s", rows[0].Kind)
	}
	if rows[1].Kind != models.ItemKindProduct {
		t.Fatalf("non-SVC sku should classify as product, got %s", rows[1].Kind)
	}
}

func TestForwardReplacesNonUUIDLineIds(t *testing.T) {
	p := cart.NewProjector(decimal.Zero)

	c := &cart.Cart{
		Items: []cart.Item{
			{LineId: "svc_3-varA", Kind: models.ItemKindService, Name: "Interior Detail", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(20000)},
		},
	}

	_, rows := p.Forward(c, nil, nil, models.TicketStatusParked)
	if !utils.IsValidUUID(rows[0].ID) {
		t.Fatalf("persisted row id must be a uuid, got %s", rows[0].ID)
	}
}

func TestForwardCrewSnapshotWithUnknownFallback(t *testing.T) {
	p := cart.NewProjector(decimal.Zero)
	roster := testRoster()

	lineId := uuid.NewString()
	crew := cart.NewCrewSession()
	crew.Assign(lineId, roster[0].ID)
	crew.Assign(lineId, "b7e6a1a0-0000-4000-8000-000000000099") // not on roster

	c := &cart.Cart{
		Items: []cart.Item{
			{LineId: lineId, Kind: models.ItemKindService, Name: "Premium Wash", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(15000)},
		},
	}

	_, rows := p.Forward(c, crew, roster, models.TicketStatusParked)
	snapshot := rows[0].Crew()
	if len(snapshot) != 2 {
		t.Fatalf("expected 2 crew members, got %d", len(snapshot))
	}
	if snapshot[0].PersonName != "Aung Aung" {
		t.Fatalf("roster name not snapshotted: %s", snapshot[0].PersonName)
	}
	if snapshot[1].PersonName != cart.UnknownStaffName {
		t.Fatalf("unresolvable employee should snapshot as %q, got %q", cart.UnknownStaffName, snapshot[1].PersonName)
	}
}

func TestForwardTotals(t *testing.T) {
	// 5% tax: service 100 x1 + product 50 x2 = 200 subtotal, 10 tax.
	p := cart.NewProjector(decimal.NewFromFloat(0.05))

	c := &cart.Cart{
		Items: []cart.Item{
			{LineId: uuid.NewString(), Kind: models.ItemKindService, Name: "Wash A", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(100)},
			{LineId: uuid.NewString(), Kind: models.ItemKindProduct, ItemId: uuid.NewString(), Name: "Wax B", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(50)},
		},
	}

	ticket, rows := p.Forward(c, nil, nil, models.TicketStatusParked)
	if !ticket.Subtotal.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("subtotal: expected 200, got %s", ticket.Subtotal)
	}
	if !ticket.TaxAmount.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("tax: expected 10, got %s", ticket.TaxAmount)
	}
	if !ticket.TotalAmount.Equal(decimal.NewFromInt(210)) {
		t.Fatalf("total: expected 210, got %s", ticket.TotalAmount)
	}
	if rows[0].SortOrder != 0 || rows[1].SortOrder != 1 {
		t.Fatalf("sort order must follow cart position: %d, %d", rows[0].SortOrder, rows[1].SortOrder)
	}
}

func TestForwardReverseRoundTrip(t *testing.T) {
	p := cart.NewProjector(decimal.NewFromFloat(0.05))
	roster := testRoster()

	customer := models.Customer{ID: uuid.NewString(), Name: "Ko Zaw", Active: utils.NewTrue()}
	lineA := uuid.NewString()
	lineB := uuid.NewString()
	serviceRef := uuid.NewString()
	productId := uuid.NewString()

	crew := cart.NewCrewSession()
	crew.SetCrew(lineA, []string{roster[0].ID, roster[1].ID})

	original := &cart.Cart{
		TicketNumber: "GCW-2602011853001",
		CustomerId:   customer.ID,
		Items: []cart.Item{
			{LineId: lineA, Kind: models.ItemKindService, ItemId: serviceRef, Sku: "SVC-WASH-PREMIUM", Name: "Premium Wash", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(100)},
			{LineId: lineB, Kind: models.ItemKindProduct, ItemId: productId, Sku: "WAX-001", Name: "Carnauba Wax", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(50)},
		},
	}

	ticket, rows := p.Forward(original, crew, roster, models.TicketStatusParked)

	// Reverse sorts rows itself; hand them over shuffled.
	shuffled := []models.TicketItem{rows[1], rows[0]}
	reopened, reopenedCrew := p.Reverse(&ticket, shuffled, []models.Customer{customer})

	if len(reopened.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(reopened.Items))
	}
	if reopened.TicketNumber != original.TicketNumber {
		t.Fatalf("ticket number lost: %s", reopened.TicketNumber)
	}
	if reopened.CustomerId != customer.ID {
		t.Fatalf("customer lost: %s", reopened.CustomerId)
	}

	first, second := reopened.Items[0], reopened.Items[1]
	if first.Name != "Premium Wash" || second.Name != "Carnauba Wax" {
		t.Fatalf("item order not preserved: %s, %s", first.Name, second.Name)
	}
	if first.Kind != models.ItemKindService || second.Kind != models.ItemKindProduct {
		t.Fatalf("kinds not preserved: %s, %s", first.Kind, second.Kind)
	}
	if first.ItemId != serviceRef {
		t.Fatalf("service catalog reference lost on reopen: %s", first.ItemId)
	}
	if second.ItemId != productId {
		t.Fatalf("product reference lost on reopen: %s", second.ItemId)
	}
	if !first.Quantity.Equal(decimal.NewFromInt(1)) || !second.Quantity.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("quantities not preserved: %s, %s", first.Quantity, second.Quantity)
	}
	if !first.UnitPrice.Equal(decimal.NewFromInt(100)) || !second.UnitPrice.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("prices not preserved: %s, %s", first.UnitPrice, second.UnitPrice)
	}

	members := reopenedCrew.CrewFor(first.LineId)
	if len(members) != 2 || members[0] != roster[0].ID || members[1] != roster[1].ID {
		t.Fatalf("crew membership not preserved: %v", members)
	}
	if got := reopenedCrew.CrewFor(second.LineId); len(got) != 0 {
		t.Fatalf("unexpected crew on product line: %v", got)
	}
}

func TestReverseDropsMissingCustomer(t *testing.T) {
	p := cart.NewProjector(decimal.Zero)

	goneCustomer := uuid.NewString()
	c := &cart.Cart{
		CustomerId: goneCustomer,
		Items: []cart.Item{
			{LineId: uuid.NewString(), Kind: models.ItemKindService, Name: "Basic Wash", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(5000)},
		},
	}

	ticket, rows := p.Forward(c, nil, nil, models.TicketStatusParked)
	reopened, _ := p.Reverse(&ticket, rows, nil)
	if reopened.CustomerId != "" {
		t.Fatalf("unresolvable customer should be dropped, got %s", reopened.CustomerId)
	}
}
