package models

import (
	"context"
	"time"

	"github.com/sevene/garayi-carwash-v2-sub001/config"
)

// Employee is the live crew roster. Historical tickets never read from this
// table; they carry their own crew snapshot so roster edits cannot rewrite
// who performed a past wash.
type Employee struct {
	ID        string    `gorm:"type:char(36);primary_key" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Phone     string    `gorm:"size:32;default:null" json:"phone"`
	Active    *bool     `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetActiveEmployees(ctx context.Context) ([]Employee, error) {
	var employees []Employee
	err := config.GetDB().WithContext(ctx).
		Where("active = ?", true).
		Order("name ASC").
		Find(&employees).Error
	if err != nil {
		return nil, err
	}
	return employees, nil
}
