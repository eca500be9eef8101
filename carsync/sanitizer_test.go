package carsync

import (
	"testing"

	"github.com/google/uuid"

	"github.com/sevene/garayi-carwash-v2-sub001/models"
	"github.com/sevene/garayi-carwash-v2-sub001/utils"
)

func strPtr(s string) *string {
	return &s
}

func TestBadProductRefsPicksPlaceholderIds(t *testing.T) {
	goodId := uuid.NewString()
	legacyRow := models.TicketItem{ID: uuid.NewString(), Kind: models.ItemKindProduct, ProductId: strPtr("svc_3-varA")}
	okRow := models.TicketItem{ID: uuid.NewString(), Kind: models.ItemKindProduct, ProductId: strPtr(goodId)}
	noRefRow := models.TicketItem{ID: uuid.NewString(), Kind: models.ItemKindProduct}

	ids := badProductRefs([]models.TicketItem{legacyRow, okRow, noRefRow})
	if len(ids) != 1 || ids[0] != legacyRow.ID {
		t.Fatalf("expected only the placeholder row, got %v", ids)
	}
}

func TestBadProductRefsPicksServiceRowsWithForeignKey(t *testing.T) {
	serviceRow := models.TicketItem{ID: uuid.NewString(), Kind: models.ItemKindService, ProductId: strPtr(uuid.NewString())}
	cleanService := models.TicketItem{ID: uuid.NewString(), Kind: models.ItemKindService, ItemRefId: strPtr(uuid.NewString())}

	ids := badProductRefs([]models.TicketItem{serviceRow, cleanService})
	if len(ids) != 1 || ids[0] != serviceRow.ID {
		t.Fatalf("service rows carrying a product foreign key must be picked, got %v", ids)
	}
}

func TestBadProductRefsDeduplicates(t *testing.T) {
	// Same row appearing twice in the scan still clears once.
	row := models.TicketItem{ID: uuid.NewString(), Kind: models.ItemKindService, ProductId: strPtr("svc_3-varA")}
	ids := badProductRefs([]models.TicketItem{row, row})
	if len(ids) != 1 {
		t.Fatalf("expected deduplicated ids, got %v", ids)
	}
}

func TestBadProductRefsSecondPassFindsNothing(t *testing.T) {
	rows := []models.TicketItem{
		{ID: uuid.NewString(), Kind: models.ItemKindProduct, ProductId: strPtr("svc_3-varA")},
		{ID: uuid.NewString(), Kind: models.ItemKindService, ProductId: strPtr(uuid.NewString())},
	}
	if ids := badProductRefs(rows); len(ids) != 2 {
		t.Fatalf("expected both rows on the first pass, got %v", ids)
	}

	// Apply the repair and scan again.
	for i := range rows {
		rows[i].ProductId = nil
	}
	if ids := badProductRefs(rows); len(ids) != 0 {
		t.Fatalf("repaired rows must not be picked again, got %v", ids)
	}
}

func TestBadProductRefsAcceptsCleanRows(t *testing.T) {
	rows := []models.TicketItem{
		{ID: uuid.NewString(), Kind: models.ItemKindProduct, ProductId: strPtr(uuid.NewString())},
		{ID: uuid.NewString(), Kind: models.ItemKindService},
	}
	if ids := badProductRefs(rows); len(ids) != 0 {
		t.Fatalf("clean rows must not be touched, got %v", ids)
	}
}

func TestPlaceholderIdsAreNotUUIDs(t *testing.T) {
	// The legacy composite format that motivated the scrub.
	for _, legacy := range []string{"svc_3-varA", "svc_12-varB", "wash-basic"} {
		if utils.IsValidUUID(legacy) {
			t.Fatalf("%q must not parse as a uuid", legacy)
		}
	}
}
