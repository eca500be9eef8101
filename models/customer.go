package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sevene/garayi-carwash-v2-sub001/config"
	"github.com/sevene/garayi-carwash-v2-sub001/utils"
)

type Customer struct {
	ID           string    `gorm:"type:char(36);primary_key" json:"id"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	Phone        string    `gorm:"size:32;index;default:null" json:"phone"`
	Email        string    `gorm:"size:255;default:null" json:"email"`
	VehiclePlate string    `gorm:"size:32;default:null" json:"vehicle_plate"`
	Active       *bool     `gorm:"not null;default:true" json:"active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCustomer struct {
	Name         string `json:"name" binding:"required"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	VehiclePlate string `json:"vehicle_plate"`
}

func (input NewCustomer) validate() error {
	if strings.TrimSpace(input.Name) == "" {
		return errors.New("customer name is required")
	}
	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return errors.New("email is not valid")
	}
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return errors.New("phone number is not valid")
		}
	}
	return nil
}

func CreateCustomer(ctx context.Context, input *NewCustomer) (*Customer, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	customer := Customer{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(input.Name),
		Phone:        utils.NormalizePhoneNumber(strings.TrimSpace(input.Phone), utils.CountryCode),
		Email:        strings.TrimSpace(input.Email),
		VehiclePlate: strings.ToUpper(strings.TrimSpace(input.VehiclePlate)),
		Active:       utils.NewTrue(),
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&customer).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := EnqueueChange(tx.WithContext(ctx), uuid.NewString(), TableCustomers, customer.ID, ChangeOpPut, customer); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func GetCustomers(ctx context.Context) ([]Customer, error) {
	var customers []Customer
	err := config.GetDB().WithContext(ctx).
		Where("active = ?", true).
		Order("name ASC").
		Find(&customers).Error
	if err != nil {
		return nil, err
	}
	return customers, nil
}
