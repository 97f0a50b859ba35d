package models

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/katariastoneworld/stoneworld_backend/config"
	"github.com/katariastoneworld/stoneworld_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const DefaultUnit = "sqft"

type Product struct {
	ID                int             `gorm:"primary_key" json:"id"`
	Name              string          `gorm:"size:255;not null;index" json:"name"`
	Slug              string          `gorm:"size:255;not null;index:uniq_product_slug,unique" json:"slug"`
	CategoryId        *int            `gorm:"index" json:"categoryId"`
	ProductType       string          `gorm:"size:100" json:"productType"`
	Color             string          `gorm:"size:100" json:"color"`
	PricePerUnit      decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"pricePerUnit"`
	Quantity          decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"quantity"`
	Unit              string          `gorm:"size:20;default:'sqft'" json:"unit"`
	PrimaryImageUrl   string          `gorm:"size:500" json:"primaryImageUrl"`
	Description       string          `gorm:"type:text" json:"description"`
	IsFeatured        *bool           `gorm:"not null;default:false" json:"isFeatured"`
	IsActive          *bool           `gorm:"not null;default:true" json:"isActive"`
	MetaKeywords      string          `gorm:"size:500" json:"metaKeywords"`
	LabourCharges     decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"labourCharges"`
	RtoFees           decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"rtoFees"`
	DamageExpenses    decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"damageExpenses"`
	OthersExpenses    decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"othersExpenses"`
	PricePerSqftAfter decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"pricePerSqftAfter"`
	Location          string          `gorm:"size:100;not null;index:uniq_product_slug,unique" json:"location"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

type NewProduct struct {
	Name              string           `json:"name" binding:"required"`
	Slug              string           `json:"slug"`
	CategoryId        *int             `json:"categoryId"`
	ProductType       string           `json:"productType"`
	Color             string           `json:"color"`
	PricePerUnit      *decimal.Decimal `json:"pricePerUnit" binding:"required"`
	Quantity          *decimal.Decimal `json:"quantity" binding:"required"`
	Unit              string           `json:"unit"`
	PrimaryImageUrl   string           `json:"primaryImageUrl"`
	Description       string           `json:"description"`
	IsFeatured        *bool            `json:"isFeatured"`
	IsActive          *bool            `json:"isActive"`
	MetaKeywords      string           `json:"metaKeywords"`
	LabourCharges     *decimal.Decimal `json:"labourCharges"`
	RtoFees           *decimal.Decimal `json:"rtoFees"`
	DamageExpenses    *decimal.Decimal `json:"damageExpenses"`
	OthersExpenses    *decimal.Decimal `json:"othersExpenses"`
	PricePerSqftAfter *decimal.Decimal `json:"pricePerSqftAfter"`
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lower-cases and joins alphanumeric runs with dashes.
func Slugify(s string) string {
	return strings.Trim(slugStrip.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

// check covers the rules that need no database.
func (input *NewProduct) check() error {
	if input.Slug == "" {
		input.Slug = Slugify(input.Name)
	}
	if input.Slug == "" {
		return utils.ValidationError("slug is required")
	}
	switch {
	case input.PricePerUnit == nil:
		return utils.ValidationError("pricePerUnit is required")
	case input.PricePerUnit.IsNegative():
		return utils.ValidationError("pricePerUnit must not be negative")
	case input.Quantity == nil:
		return utils.ValidationError("quantity is required")
	case input.Quantity.IsNegative():
		return utils.ValidationError("quantity must not be negative")
	}
	return nil
}

func (input *NewProduct) validate(ctx context.Context, location string, id int) error {
	if err := input.check(); err != nil {
		return err
	}
	if input.CategoryId != nil && *input.CategoryId > 0 {
		if err := utils.ValidateResourceId[Category](ctx, "", *input.CategoryId); err != nil {
			return utils.ValidationError("category not found")
		}
	}
	return utils.ValidateUnique[Product](ctx, location, "slug", input.Slug, id)
}

func (input *NewProduct) apply(p *Product) {
	p.Name = input.Name
	p.Slug = input.Slug
	p.CategoryId = input.CategoryId
	p.ProductType = input.ProductType
	p.Color = input.Color
	p.PricePerUnit = utils.Round2(utils.DereferencePtr(input.PricePerUnit, p.PricePerUnit))
	p.Quantity = utils.Round2(utils.DereferencePtr(input.Quantity, p.Quantity))
	p.Unit = input.Unit
	if strings.TrimSpace(p.Unit) == "" {
		p.Unit = DefaultUnit
	}
	p.PrimaryImageUrl = input.PrimaryImageUrl
	p.Description = input.Description
	p.MetaKeywords = input.MetaKeywords
	if input.IsFeatured != nil {
		p.IsFeatured = input.IsFeatured
	}
	if input.IsActive != nil {
		p.IsActive = input.IsActive
	}
	p.LabourCharges = utils.DereferencePtr(input.LabourCharges, p.LabourCharges)
	p.RtoFees = utils.DereferencePtr(input.RtoFees, p.RtoFees)
	p.DamageExpenses = utils.DereferencePtr(input.DamageExpenses, p.DamageExpenses)
	p.OthersExpenses = utils.DereferencePtr(input.OthersExpenses, p.OthersExpenses)
	p.PricePerSqftAfter = utils.DereferencePtr(input.PricePerSqftAfter, p.PricePerSqftAfter)
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {
	location, err := requireLocation(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, location, 0); err != nil {
		return nil, err
	}

	product := Product{
		Location:   location,
		IsFeatured: utils.NewFalse(),
		IsActive:   utils.NewTrue(),
	}
	input.apply(&product)

	if err := config.GetDB().WithContext(ctx).Create(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func UpdateProduct(ctx context.Context, id int, input *NewProduct) (*Product, error) {
	location, err := requireLocation(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, location, id); err != nil {
		return nil, err
	}

	var product Product
	// the row lock orders this write after any bill deducting the same stock
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND location = ?", id, location).
			First(&product).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		input.apply(&product)
		return tx.Save(&product).Error
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func DeleteProduct(ctx context.Context, id int) (*Product, error) {
	location, err := requireLocation(ctx)
	if err != nil {
		return nil, err
	}
	product, err := utils.FetchModel[Product](ctx, location, id)
	if err != nil {
		return nil, err
	}
	// bill items keep a weak reference; they retain their snapshot.
	if err := config.GetDB().WithContext(ctx).Delete(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

func GetProduct(ctx context.Context, id int) (*Product, error) {
	location, err := requireLocation(ctx)
	if err != nil {
		return nil, err
	}
	return utils.FetchModel[Product](ctx, location, id)
}

func GetProductBySlug(ctx context.Context, slug string) (*Product, error) {
	location, err := requireLocation(ctx)
	if err != nil {
		return nil, err
	}
	var product Product
	err = config.GetDB().WithContext(ctx).Where("slug = ? AND location = ?", slug, location).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &product, nil
}

func GetProducts(ctx context.Context, activeOnly bool) ([]*Product, error) {
	location, err := requireLocation(ctx)
	if err != nil {
		return nil, err
	}
	dbCtx := config.GetDB().WithContext(ctx).Where("location = ?", location)
	if activeOnly {
		dbCtx = dbCtx.Where("is_active = ?", true)
	}
	var products []*Product
	if err := dbCtx.Order("name ASC, id ASC").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}
