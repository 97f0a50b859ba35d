package models

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/katariastoneworld/stoneworld_backend/config"
	"github.com/katariastoneworld/stoneworld_backend/utils"
	"github.com/shopspring/decimal"
)

type Expense struct {
	ID            int             `gorm:"primary_key" json:"id"`
	Type          ExpenseType     `gorm:"size:20;not null;index" json:"type"`
	Category      string          `gorm:"size:100" json:"category"`
	Date          time.Time       `gorm:"type:date;not null;index" json:"date"`
	Description   string          `gorm:"type:text" json:"description"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	PaymentMethod string          `gorm:"size:50" json:"paymentMethod"`
	EmployeeId    *int            `gorm:"index" json:"employeeId"`
	EmployeeName  string          `gorm:"size:255" json:"employeeName"`
	Month         string          `gorm:"size:7" json:"month"`
	Settled       *bool           `json:"settled"`
	Location      string          `gorm:"size:100;not null;index" json:"location"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

type NewExpense struct {
	Type          ExpenseType     `json:"type" binding:"required"`
	Category      string          `json:"category"`
	Date          *Date           `json:"date"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"paymentMethod"`
	EmployeeId    *int            `json:"employeeId"`
	EmployeeName  string          `json:"employeeName"`
	Month         string          `json:"month"`
	Settled       *bool           `json:"settled"`
}

var monthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

func (input *NewExpense) validate(ctx context.Context, location string) error {
	if !input.Amount.IsPositive() {
		return utils.ValidationError("amount must be greater than zero")
	}
	if input.Month != "" && !monthPattern.MatchString(input.Month) {
		return utils.ValidationError("month must be YYYY-MM")
	}
	if input.EmployeeId != nil && *input.EmployeeId > 0 {
		employee, err := utils.FetchModel[Employee](ctx, location, *input.EmployeeId)
		if err != nil {
			return utils.ValidationError("employee not found")
		}
		if strings.TrimSpace(input.EmployeeName) == "" {
			input.EmployeeName = employee.EmployeeName
		}
	}
	if input.Type == ExpenseTypeAdvance && input.Settled == nil {
		input.Settled = utils.NewFalse()
	}
	return nil
}

func (input *NewExpense) apply(e *Expense) {
	e.Type = input.Type
	e.Category = input.Category
	e.Date = input.Date.OrToday()
	e.Description = input.Description
	e.Amount = utils.Round2(input.Amount)
	e.PaymentMethod = input.PaymentMethod
	e.EmployeeId = input.EmployeeId
	e.EmployeeName = input.EmployeeName
	e.Month = input.Month
	e.Settled = input.Settled
}

func CreateExpense(ctx context.Context, input *NewExpense) (*Expense, error) {
	location, err := requireLocation(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, location); err != nil {
		return nil, err
	}
	expense := Expense{Location: location}
	input.apply(&expense)
	if err := config.GetDB().WithContext(ctx).Create(&expense).Error; err != nil {
		return nil, err
	}
	return &expense, nil
}

func UpdateExpense(ctx context.Context, id int, input *NewExpense) (*Expense, error) {
	location, err := requireLocation(ctx)
	if err != nil {
		return nil, err
	}
	expense, err := utils.FetchModel[Expense](ctx, location, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, location); err != nil {
		return nil, err
	}
	input.apply(expense)
	if err := config.GetDB().WithContext(ctx).Save(expense).Error; err != nil {
		return nil, err
	}
	return expense, nil
}

func DeleteExpense(ctx context.Context, id int) (*Expense, error) {
	location, err := requireLocation(ctx)
	if err != nil {
		return nil, err
	}
	expense, err := utils.FetchModel[Expense](ctx, location, id)
	if err != nil {
		return nil, err
	}
	if err := config.GetDB().WithContext(ctx).Delete(expense).Error; err != nil {
		return nil, err
	}
	return expense, nil
}

func GetExpense(ctx context.Context, id int) (*Expense, error) {
	location, err := requireLocation(ctx)
	if err != nil {
		return nil, err
	}
	return utils.FetchModel[Expense](ctx, location, id)
}

func GetExpenses(ctx context.Context) ([]*Expense, error) {
	location, err := requireLocation(ctx)
	if err != nil {
		return nil, err
	}
	return utils.FetchAllModels[Expense](ctx, location, "date DESC, id DESC")
}
