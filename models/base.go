package models

import (
	"log"

	"github.com/sevene/garayi-carwash-v2-sub001/config"
)

// MigrateTable migrates the local store schema on startup. The embedded
// store is per-device, so AutoMigrate is the whole migration story here;
// the remote store's schema is owned by the backend.
func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Product{},
		&Service{},
		&Employee{},
		&Customer{},
		&Ticket{},
		&TicketItem{},
		&ChangeLogEntry{},
		&SyncOutcome{},
	)
	if err != nil {
		log.Fatalf("failed to migrate local store: %v", err)
	}
}
