package models

import (
	"context"
	"time"

	"github.com/katariastoneworld/stoneworld_backend/config"
	"github.com/katariastoneworld/stoneworld_backend/utils"
	"github.com/shopspring/decimal"
)

type ClientPurchase struct {
	ID                  int                      `gorm:"primary_key" json:"id"`
	ClientName          string                   `gorm:"size:255;not null" json:"clientName"`
	PurchaseDescription string                   `gorm:"type:text" json:"purchaseDescription"`
	TotalAmount         decimal.Decimal          `gorm:"type:decimal(20,2);not null" json:"totalAmount"`
	PurchaseDate        time.Time                `gorm:"type:date;not null;index" json:"purchaseDate"`
	Notes               string                   `gorm:"type:text" json:"notes"`
	Location            string                   `gorm:"size:100;not null;index" json:"location"`
	Payments            []*ClientPurchasePayment `gorm:"foreignKey:ClientPurchaseId" json:"payments,omitempty"`
	CreatedAt           time.Time                `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt           time.Time                `gorm:"autoUpdateTime" json:"updatedAt"`
}

type ClientPurchasePayment struct {
	ID               int             `gorm:"primary_key" json:"id"`
	ClientPurchaseId int             `gorm:"index;not null" json:"clientPurchaseId"`
	ClientId         *int            `gorm:"index" json:"clientId"`
	Amount           decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Date             time.Time       `gorm:"type:date;not null;index" json:"date"`
	PaymentMethod    string          `gorm:"size:50" json:"paymentMethod"`
	Notes            string          `gorm:"type:text" json:"notes"`
	Location         string          `gorm:"size:100;not null;index" json:"location"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"createdAt"`
}

type NewClientPurchase struct {
	ClientName          string          `json:"clientName" binding:"required"`
	PurchaseDescription string          `json:"purchaseDescription"`
	TotalAmount         decimal.Decimal `json:"totalAmount"`
	PurchaseDate        *Date           `json:"purchaseDate"`
	Notes               string          `json:"notes"`
}

type NewClientPurchasePayment struct {
	ClientId      *int            `json:"clientId"`
	Amount        decimal.Decimal `json:"amount"`
	Date          *Date           `json:"date"`
	PaymentMethod string          `json:"paymentMethod"`
	Notes         string          `json:"notes"`
}

func (input *NewClientPurchase) validate() error {
	if input.TotalAmount.IsNegative() {
		return utils.ValidationError("totalAmount must not be negative")
	}
	return nil
}

func CreateClientPurchase(ctx context.Context, input *NewClientPurchase) (*ClientPurchase, error) {
	location, err := requireLocation(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}
	purchase := ClientPurchase{
		ClientName:          input.ClientName,
		PurchaseDescription: input.PurchaseDescription,
		TotalAmount:         utils.Round2(input.TotalAmount),
		PurchaseDate:        input.PurchaseDate.OrToday(),
		Notes:               input.Notes,
		Location:            location,
	}
	if err := config.GetDB().WithContext(ctx).Create(&purchase).Error; err != nil {
		return nil, err
	}
	return &purchase, nil
}

func UpdateClientPurchase(ctx context.Context, id int, input *NewClientPurchase) (*ClientPurchase, error) {
	location, err := requireLocation(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}
	purchase, err := utils.FetchModel[ClientPurchase](ctx, location, id)
	if err != nil {
		return nil, err
	}
	purchase.ClientName = input.ClientName
	purchase.PurchaseDescription = input.PurchaseDescription
	purchase.TotalAmount = utils.Round2(input.TotalAmount)
	purchase.PurchaseDate = input.PurchaseDate.OrToday()
	purchase.Notes = input.Notes
	if err := config.GetDB().WithContext(ctx).Save(purchase).Error; err != nil {
		return nil, err
	}
	return purchase, nil
}

// DeleteClientPurchase removes the purchase and its payments in one transaction.
func DeleteClientPurchase(ctx context.Context, id int) (*ClientPurchase, error) {
	location, err := requireLocation(ctx)
	if err != nil {
		return nil, err
	}
	purchase, err := utils.FetchModel[ClientPurchase](ctx, location, id)
	if err != nil {
		return nil, err
	}

	tx := config.GetDB().Begin()
	if err := tx.WithContext(ctx).Where("client_purchase_id = ?", id).Delete(&ClientPurchasePayment{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Delete(purchase).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	return purchase, tx.Commit().Error
}

func GetClientPurchase(ctx context.Context, id int) (*ClientPurchase, error) {
	location, err := requireLocation(ctx)
	if err != nil {
		return nil, err
	}
	return utils.FetchModel[ClientPurchase](ctx, location, id)
}

func GetClientPurchases(ctx context.Context) ([]*ClientPurchase, error) {
	location, err := requireLocation(ctx)
	if err != nil {
		return nil, err
	}
	return utils.FetchAllModels[ClientPurchase](ctx, location, "purchase_date DESC, id DESC")
}

func AddClientPurchasePayment(ctx context.Context, purchaseId int, input *NewClientPurchasePayment) (*ClientPurchasePayment, error) {
	location, err := requireLocation(ctx)
	if err != nil {
		return nil, err
	}
	if !input.Amount.IsPositive() {
		return nil, utils.ValidationError("amount must be greater than zero")
	}
	if _, err := utils.FetchModel[ClientPurchase](ctx, location, purchaseId); err != nil {
		return nil, err
	}
	payment := ClientPurchasePayment{
		ClientPurchaseId: purchaseId,
		ClientId:         input.ClientId,
		Amount:           utils.Round2(input.Amount),
		Date:             input.Date.OrToday(),
		PaymentMethod:    input.PaymentMethod,
		Notes:            input.Notes,
		Location:         location,
	}
	if err := config.GetDB().WithContext(ctx).Create(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetClientPurchasePayments returns the payment history, newest first.
func GetClientPurchasePayments(ctx context.Context, purchaseId int) ([]*ClientPurchasePayment, error) {
	location, err := requireLocation(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := utils.FetchModel[ClientPurchase](ctx, location, purchaseId); err != nil {
		return nil, err
	}
	var payments []*ClientPurchasePayment
	err = config.GetDB().WithContext(ctx).
		Where("client_purchase_id = ? AND location = ?", purchaseId, location).
		Order("date DESC, created_at DESC").
		Find(&payments).Error
	return payments, err
}

func GetAllClientPurchasePayments(ctx context.Context) ([]*ClientPurchasePayment, error) {
	location, err := requireLocation(ctx)
	if err != nil {
		return nil, err
	}
	return utils.FetchAllModels[ClientPurchasePayment](ctx, location, "date DESC, created_at DESC")
}
