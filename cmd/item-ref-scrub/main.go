package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/sevene/garayi-carwash-v2-sub001/config"
	"github.com/sevene/garayi-carwash-v2-sub001/models"
	"github.com/sevene/garayi-carwash-v2-sub001/utils"
)

// item-ref-scrub clears ticket item product references that the remote store
// would reject forever: placeholder ids from the pre-catalog era and service
// lines written with a product foreign key. The running service does the same
// repair at startup; this tool exists for manual runs against a copied
// database file.
//
// Dry-run (default): list affected rows only
//   go run ./cmd/item-ref-scrub
//
// Execute:
//   go run ./cmd/item-ref-scrub -dry-run=false
func main() {
	dryRun := flag.Bool("dry-run", true, "List only (no writes)")
	flag.Parse()

	config.ConnectDatabase()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	ctx := context.Background()

	var rows []models.TicketItem
	if err := db.WithContext(ctx).
		Where("product_id IS NOT NULL").
		Find(&rows).Error; err != nil {
		fmt.Fprintf(os.Stderr, "scan failed: %v\n", err)
		os.Exit(1)
	}

	affected := 0
	for _, row := range rows {
		if row.ProductId == nil {
			continue
		}
		bad := !utils.IsValidUUID(*row.ProductId) || row.Kind == models.ItemKindService
		if !bad {
			continue
		}
		affected++
		fmt.Printf("item=%s ticket=%s kind=%s sku=%s product_ref=%s\n",
			row.ID, row.TicketId, row.Kind, row.Sku, *row.ProductId)

		if !*dryRun {
			if err := db.WithContext(ctx).
				Model(&models.TicketItem{}).
				Where("id = ?", row.ID).
				Updates(map[string]interface{}{
					"product_id": nil,
				}).Error; err != nil {
				fmt.Fprintf(os.Stderr, "update failed for %s: %v\n", row.ID, err)
				os.Exit(1)
			}
		}
	}

	if *dryRun {
		fmt.Printf("dry-run: %d row(s) would be cleared\n", affected)
		return
	}
	fmt.Printf("cleared %d row(s)\n", affected)
}
