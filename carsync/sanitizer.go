package carsync

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/sevene/garayi-carwash-v2-sub001/config"
	"github.com/sevene/garayi-carwash-v2-sub001/models"
	"github.com/sevene/garayi-carwash-v2-sub001/utils"
)

// badProductRefs picks the ticket item ids whose product reference should
// not exist: references that are not real identifiers, and service lines
// that carry a product foreign key at all.
func badProductRefs(rows []models.TicketItem) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, row := range rows {
		if row.ProductId == nil {
			continue
		}
		bad := !utils.IsValidUUID(*row.ProductId) || row.Kind == models.ItemKindService
		if bad && !seen[row.ID] {
			seen[row.ID] = true
			ids = append(ids, row.ID)
		}
	}
	return ids
}

// SanitizeItemRefs clears product references that would poison uploads:
// legacy placeholder ids and service lines mistakenly written with a real
// foreign key. Local repair only; the rows resync on their next change.
// Idempotent, safe to run at every startup.
func SanitizeItemRefs(ctx context.Context) (int, error) {
	db := config.GetDB().WithContext(ctx)
	logger := config.GetLogger()

	var rows []models.TicketItem
	if err := db.
		Where("product_id IS NOT NULL").
		Find(&rows).Error; err != nil {
		config.LogError(logger, "carsync", "SanitizeItemRefs", "loading ticket items", nil, err)
		return 0, err
	}

	ids := badProductRefs(rows)
	if len(ids) == 0 {
		return 0, nil
	}

	tx := db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	result := tx.Model(&models.TicketItem{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"product_id": nil,
		})
	if result.Error != nil {
		tx.Rollback()
		config.LogError(logger, "carsync", "SanitizeItemRefs", "clearing product references", ids, result.Error)
		return 0, result.Error
	}
	if err := tx.Commit().Error; err != nil {
		return 0, err
	}

	fixed := int(result.RowsAffected)
	logger.WithFields(logrus.Fields{
		"module":    "carsync",
		"rowsFixed": fixed,
	}).Info("cleared dangling product references")
	return fixed, nil
}
