package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/katariastoneworld/stoneworld_backend/config"
	"github.com/katariastoneworld/stoneworld_backend/utils"
	"gorm.io/gorm"
)

type Customer struct {
	ID           int       `gorm:"primary_key" json:"id"`
	Phone        string    `gorm:"size:20;not null;uniqueIndex" json:"phone"`
	Name         string    `gorm:"size:255" json:"name"`
	CustomerName string    `gorm:"size:255" json:"customerName"`
	Address      string    `gorm:"type:text" json:"address"`
	Gstin        string    `gorm:"size:20" json:"gstin"`
	Email        string    `gorm:"size:255" json:"email"`
	Location     string    `gorm:"size:100;index" json:"location"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

type NewCustomer struct {
	Phone        string  `json:"phone" binding:"phone"`
	Name         *string `json:"name"`
	CustomerName *string `json:"customerName"`
	Address      *string `json:"address"`
	Gstin        *string `json:"gstin"`
	Email        *string `json:"email" binding:"omitempty,email"`
	Location     *string `json:"location"`
}

// DisplayName prefers the display name, then the legal name.
func (c *Customer) DisplayName() string {
	if c == nil {
		return ""
	}
	if strings.TrimSpace(c.CustomerName) != "" {
		return c.CustomerName
	}
	return c.Name
}

func requireLocation(ctx context.Context) (string, error) {
	location, ok := utils.GetLocationFromContext(ctx)
	if !ok || strings.TrimSpace(location) == "" {
		return "", utils.NewAppError(utils.ErrUnauthorized, "location is required")
	}
	return location, nil
}

func (input *NewCustomer) validate(ctx context.Context, id int) error {
	// phone is unique across locations
	globalCtx := utils.SetSkipLocationScopeInContext(ctx, true)
	return utils.ValidateUnique[Customer](globalCtx, "", "phone", strings.TrimSpace(input.Phone), id)
}

func CreateCustomer(ctx context.Context, input *NewCustomer) (*Customer, error) {
	location, err := requireLocation(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Phone) == "" {
		return nil, utils.ValidationError("phone is required")
	}
	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	customer := Customer{
		Phone:        strings.TrimSpace(input.Phone),
		Name:         utils.DereferencePtr(input.Name),
		CustomerName: utils.DereferencePtr(input.CustomerName),
		Address:      utils.DereferencePtr(input.Address),
		Gstin:        utils.DereferencePtr(input.Gstin),
		Email:        utils.DereferencePtr(input.Email),
		Location:     location,
	}
	if input.Location != nil && strings.TrimSpace(*input.Location) != "" {
		customer.Location = strings.TrimSpace(*input.Location)
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

// applyTo copies the non-nil fields of input; phone is handled by the caller.
func (input *NewCustomer) applyTo(c *Customer) {
	c.Name = utils.DereferencePtr(input.Name, c.Name)
	c.CustomerName = utils.DereferencePtr(input.CustomerName, c.CustomerName)
	c.Address = utils.DereferencePtr(input.Address, c.Address)
	c.Gstin = utils.DereferencePtr(input.Gstin, c.Gstin)
	c.Email = utils.DereferencePtr(input.Email, c.Email)
	if input.Location != nil && strings.TrimSpace(*input.Location) != "" {
		c.Location = strings.TrimSpace(*input.Location)
	}
}

// UpdateCustomer applies the non-nil fields of input.
func UpdateCustomer(ctx context.Context, id int, input *NewCustomer) (*Customer, error) {
	location, err := requireLocation(ctx)
	if err != nil {
		return nil, err
	}
	customer, err := utils.FetchModel[Customer](ctx, location, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Phone) != "" && input.Phone != customer.Phone {
		if err := input.validate(ctx, id); err != nil {
			return nil, err
		}
		customer.Phone = strings.TrimSpace(input.Phone)
	}
	input.applyTo(customer)

	db := config.GetDB()
	if err := db.WithContext(ctx).Save(customer).Error; err != nil {
		return nil, err
	}
	return customer, nil
}

func DeleteCustomer(ctx context.Context, id int) (*Customer, error) {
	location, err := requireLocation(ctx)
	if err != nil {
		return nil, err
	}
	customer, err := utils.FetchModel[Customer](ctx, location, id)
	if err != nil {
		return nil, err
	}

	for _, table := range []string{GstBill{}.TableName(), NonGstBill{}.TableName()} {
		var count int64
		if err := config.GetDB().WithContext(ctx).Table(table).Where("customer_id = ?", id).Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, utils.ValidationError("bills associated with customer exist")
		}
	}

	if err := config.GetDB().WithContext(ctx).Delete(customer).Error; err != nil {
		return nil, err
	}
	return customer, nil
}

func GetCustomer(ctx context.Context, id int) (*Customer, error) {
	location, err := requireLocation(ctx)
	if err != nil {
		return nil, err
	}
	return utils.FetchModel[Customer](ctx, location, id)
}

// GetCustomerByPhone looks the phone up within the caller's location.
func GetCustomerByPhone(ctx context.Context, phone string) (*Customer, error) {
	location, err := requireLocation(ctx)
	if err != nil {
		return nil, err
	}
	var customer Customer
	err = config.GetDB().WithContext(ctx).
		Where("phone = ? AND location = ?", strings.TrimSpace(phone), location).
		First(&customer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &customer, nil
}

func GetCustomers(ctx context.Context) ([]*Customer, error) {
	location, err := requireLocation(ctx)
	if err != nil {
		return nil, err
	}
	return utils.FetchAllModels[Customer](ctx, location, "name ASC, id ASC")
}
