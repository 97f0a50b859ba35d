package models

import (
	"context"
	"time"

	"github.com/katariastoneworld/stoneworld_backend/config"
	"github.com/katariastoneworld/stoneworld_backend/utils"
	"github.com/shopspring/decimal"
)

type Employee struct {
	ID           int             `gorm:"primary_key" json:"id"`
	EmployeeName string          `gorm:"size:255;not null" json:"employeeName"`
	SalaryAmount decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"salaryAmount"`
	JoiningDate  *time.Time      `gorm:"type:date" json:"joiningDate"`
	Location     string          `gorm:"size:100;not null;index" json:"location"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

type NewEmployee struct {
	EmployeeName string          `json:"employeeName" binding:"required"`
	SalaryAmount decimal.Decimal `json:"salaryAmount"`
	JoiningDate  *Date           `json:"joiningDate"`
}

func (input *NewEmployee) validate() error {
	if input.SalaryAmount.IsNegative() {
		return utils.ValidationError("salaryAmount must not be negative")
	}
	return nil
}

func CreateEmployee(ctx context.Context, input *NewEmployee) (*Employee, error) {
	location, err := requireLocation(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}
	employee := Employee{
		EmployeeName: input.EmployeeName,
		SalaryAmount: utils.Round2(input.SalaryAmount),
		JoiningDate:  input.JoiningDate.TimePtr(),
		Location:     location,
	}
	if err := config.GetDB().WithContext(ctx).Create(&employee).Error; err != nil {
		return nil, err
	}
	return &employee, nil
}

func UpdateEmployee(ctx context.Context, id int, input *NewEmployee) (*Employee, error) {
	location, err := requireLocation(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}
	employee, err := utils.FetchModel[Employee](ctx, location, id)
	if err != nil {
		return nil, err
	}
	employee.EmployeeName = input.EmployeeName
	employee.SalaryAmount = utils.Round2(input.SalaryAmount)
	employee.JoiningDate = input.JoiningDate.TimePtr()
	if err := config.GetDB().WithContext(ctx).Save(employee).Error; err != nil {
		return nil, err
	}
	return employee, nil
}

func DeleteEmployee(ctx context.Context, id int) (*Employee, error) {
	location, err := requireLocation(ctx)
	if err != nil {
		return nil, err
	}
	employee, err := utils.FetchModel[Employee](ctx, location, id)
	if err != nil {
		return nil, err
	}
	if err := config.GetDB().WithContext(ctx).Delete(employee).Error; err != nil {
		return nil, err
	}
	return employee, nil
}

func GetEmployee(ctx context.Context, id int) (*Employee, error) {
	location, err := requireLocation(ctx)
	if err != nil {
		return nil, err
	}
	return utils.FetchModel[Employee](ctx, location, id)
}

func GetEmployees(ctx context.Context) ([]*Employee, error) {
	location, err := requireLocation(ctx)
	if err != nil {
		return nil, err
	}
	return utils.FetchAllModels[Employee](ctx, location, "employee_name ASC")
}
