package models

import (
	"context"
	"errors"
	"time"

	"github.com/sevene/garayi-carwash-v2-sub001/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ServiceSkuPrefix is the SKU convention for wash/detailing services. Items
// whose SKU starts with this prefix are services even when the cart row
// carries no explicit kind.
const ServiceSkuPrefix = "SVC-"

// Product is a retail catalog row (wax, air freshener, drinks). Product ids
// are the only values allowed in the ticket item product foreign key.
type Product struct {
	ID           string          `gorm:"type:char(36);primary_key" json:"id"`
	Name         string          `gorm:"size:255;not null" json:"name"`
	Sku          string          `gorm:"size:64;index" json:"sku"`
	Barcode      string          `gorm:"size:64;default:null" json:"barcode"`
	SellingPrice decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"selling_price"`
	Active       *bool           `gorm:"not null;default:true" json:"active"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// Service is a wash/detailing catalog row. Service ids must never appear in
// the product foreign key column; ticket items reference them through the
// non-foreign-key item ref column instead.
type Service struct {
	ID              string          `gorm:"type:char(36);primary_key" json:"id"`
	Name            string          `gorm:"size:255;not null" json:"name"`
	Sku             string          `gorm:"size:64;index" json:"sku"`
	Price           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price"`
	DurationMinutes int             `gorm:"default:0" json:"duration_minutes"`
	Active          *bool           `gorm:"not null;default:true" json:"active"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetProduct(ctx context.Context, id string) (*Product, error) {
	var product Product
	err := config.GetDB().WithContext(ctx).Where("id = ?", id).Take(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

func GetService(ctx context.Context, id string) (*Service, error) {
	var service Service
	err := config.GetDB().WithContext(ctx).Where("id = ?", id).Take(&service).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &service, nil
}

func GetActiveProducts(ctx context.Context) ([]Product, error) {
	var products []Product
	err := config.GetDB().WithContext(ctx).
		Where("active = ?", true).
		Order("name ASC").
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

func GetActiveServices(ctx context.Context) ([]Service, error) {
	var services []Service
	err := config.GetDB().WithContext(ctx).
		Where("active = ?", true).
		Order("name ASC").
		Find(&services).Error
	if err != nil {
		return nil, err
	}
	return services, nil
}

// IsServiceId reports whether id belongs to a service catalog row. Used by
// the save path to keep service ids out of the product foreign key.
func IsServiceId(ctx context.Context, id string) (bool, error) {
	var count int64
	err := config.GetDB().WithContext(ctx).
		Model(&Service{}).
		Where("id = ?", id).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
