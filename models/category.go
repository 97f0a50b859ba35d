package models

import (
	"context"
	"strings"
	"time"

	"github.com/katariastoneworld/stoneworld_backend/config"
	"github.com/katariastoneworld/stoneworld_backend/utils"
)

type Category struct {
	ID           int       `gorm:"primary_key" json:"id"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	ImageUrl     string    `gorm:"size:500" json:"imageUrl"`
	CategoryType string    `gorm:"size:100;index" json:"categoryType"`
	Description  string    `gorm:"type:text" json:"description"`
	DisplayOrder int       `gorm:"not null;default:0" json:"displayOrder"`
	IsActive     *bool     `gorm:"not null;default:true" json:"isActive"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

type NewCategory struct {
	Name         string `json:"name" binding:"required"`
	ImageUrl     string `json:"imageUrl"`
	CategoryType string `json:"categoryType"`
	Description  string `json:"description"`
	DisplayOrder *int   `json:"displayOrder"`
	IsActive     *bool  `json:"isActive"`
}

func (input *NewCategory) apply(c *Category) {
	c.Name = strings.TrimSpace(input.Name)
	c.ImageUrl = input.ImageUrl
	c.CategoryType = strings.ToLower(strings.TrimSpace(input.CategoryType))
	c.Description = input.Description
	c.DisplayOrder = utils.DereferencePtr(input.DisplayOrder, c.DisplayOrder)
	if input.IsActive != nil {
		c.IsActive = input.IsActive
	}
}

func clearCategoryCache() {
	if err := utils.RemoveRedisList[Category]("active"); err != nil {
		config.LogError(config.GetLogger(), "models", "clearCategoryCache", "RemoveRedisList", nil, err)
	}
}

func CreateCategory(ctx context.Context, input *NewCategory) (*Category, error) {
	category := Category{IsActive: utils.NewTrue()}
	input.apply(&category)
	if err := config.GetDB().WithContext(ctx).Create(&category).Error; err != nil {
		return nil, err
	}
	clearCategoryCache()
	return &category, nil
}

func UpdateCategory(ctx context.Context, id int, input *NewCategory) (*Category, error) {
	category, err := utils.FetchSingleModel[Category](ctx, id)
	if err != nil {
		return nil, err
	}
	input.apply(category)
	if err := config.GetDB().WithContext(ctx).Save(category).Error; err != nil {
		return nil, err
	}
	clearCategoryCache()
	return category, nil
}

func DeleteCategory(ctx context.Context, id int) (*Category, error) {
	category, err := utils.FetchSingleModel[Category](ctx, id)
	if err != nil {
		return nil, err
	}
	count, err := utils.ResourceCountWhere[Product](utils.SetSkipLocationScopeInContext(ctx, true), "", "category_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, utils.ValidationError("products associated with category exist")
	}
	if err := config.GetDB().WithContext(ctx).Delete(category).Error; err != nil {
		return nil, err
	}
	clearCategoryCache()
	return category, nil
}

func GetCategory(ctx context.Context, id int) (*Category, error) {
	return utils.FetchSingleModel[Category](ctx, id)
}

// GetCategories filters by lower-cased type and active flag; the active, untyped list is cached.
func GetCategories(ctx context.Context, categoryType string, activeOnly bool) ([]*Category, error) {
	categoryType = strings.ToLower(strings.TrimSpace(categoryType))
	cacheable := activeOnly && categoryType == ""
	if cacheable {
		cached, err := utils.RetrieveRedisList[Category]("active")
		if err != nil {
			config.LogError(config.GetLogger(), "models", "GetCategories", "RetrieveRedisList", nil, err)
		} else if cached != nil {
			return cached, nil
		}
	}

	dbCtx := config.GetDB().WithContext(ctx)
	if categoryType != "" {
		dbCtx = dbCtx.Where("category_type = ?", categoryType)
	}
	if activeOnly {
		dbCtx = dbCtx.Where("is_active = ?", true)
	}
	var categories []*Category
	if err := dbCtx.Order("display_order ASC, id ASC").Find(&categories).Error; err != nil {
		return nil, err
	}
	if cacheable {
		if err := utils.StoreRedisList(categories, "active"); err != nil {
			config.LogError(config.GetLogger(), "models", "GetCategories", "StoreRedisList", nil, err)
		}
	}
	return categories, nil
}
