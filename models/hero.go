package models

import (
	"context"
	"time"

	"github.com/katariastoneworld/stoneworld_backend/config"
	"github.com/katariastoneworld/stoneworld_backend/utils"
)

type Hero struct {
	ID           int       `gorm:"primary_key" json:"id"`
	Title        string    `gorm:"size:255;not null" json:"title"`
	Subtitle     string    `gorm:"size:500" json:"subtitle"`
	ImageUrl     string    `gorm:"size:500;not null" json:"imageUrl"`
	DisplayOrder int       `gorm:"not null;default:0" json:"displayOrder"`
	IsActive     *bool     `gorm:"not null;default:true" json:"isActive"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

type NewHero struct {
	Title        string `json:"title" binding:"required"`
	Subtitle     string `json:"subtitle"`
	ImageUrl     string `json:"imageUrl" binding:"required"`
	DisplayOrder *int   `json:"displayOrder"`
	IsActive     *bool  `json:"isActive"`
}

func (input *NewHero) apply(h *Hero) {
	h.Title = input.Title
	h.Subtitle = input.Subtitle
	h.ImageUrl = input.ImageUrl
	h.DisplayOrder = utils.DereferencePtr(input.DisplayOrder, h.DisplayOrder)
	if input.IsActive != nil {
		h.IsActive = input.IsActive
	}
}

func clearHeroCache() {
	if err := utils.RemoveRedisList[Hero]("active"); err != nil {
		config.LogError(config.GetLogger(), "models", "clearHeroCache", "RemoveRedisList", nil, err)
	}
}

func CreateHero(ctx context.Context, input *NewHero) (*Hero, error) {
	hero := Hero{IsActive: utils.NewTrue()}
	input.apply(&hero)
	if err := config.GetDB().WithContext(ctx).Create(&hero).Error; err != nil {
		return nil, err
	}
	clearHeroCache()
	return &hero, nil
}

func UpdateHero(ctx context.Context, id int, input *NewHero) (*Hero, error) {
	hero, err := utils.FetchSingleModel[Hero](ctx, id)
	if err != nil {
		return nil, err
	}
	input.apply(hero)
	if err := config.GetDB().WithContext(ctx).Save(hero).Error; err != nil {
		return nil, err
	}
	clearHeroCache()
	return hero, nil
}

func DeleteHero(ctx context.Context, id int) (*Hero, error) {
	hero, err := utils.FetchSingleModel[Hero](ctx, id)
	if err != nil {
		return nil, err
	}
	if err := config.GetDB().WithContext(ctx).Delete(hero).Error; err != nil {
		return nil, err
	}
	clearHeroCache()
	return hero, nil
}

func GetHero(ctx context.Context, id int) (*Hero, error) {
	return utils.FetchSingleModel[Hero](ctx, id)
}

func GetHeroes(ctx context.Context) ([]*Hero, error) {
	return utils.FetchAllModels[Hero](ctx, "", "display_order ASC, id ASC")
}

// GetActiveHeroes is served from redis when cached.
func GetActiveHeroes(ctx context.Context) ([]*Hero, error) {
	cached, err := utils.RetrieveRedisList[Hero]("active")
	if err != nil {
		config.LogError(config.GetLogger(), "models", "GetActiveHeroes", "RetrieveRedisList", nil, err)
	} else if cached != nil {
		return cached, nil
	}

	var heroes []*Hero
	if err := config.GetDB().WithContext(ctx).
		Where("is_active = ?", true).
		Order("display_order ASC, id ASC").
		Find(&heroes).Error; err != nil {
		return nil, err
	}
	if err := utils.StoreRedisList(heroes, "active"); err != nil {
		config.LogError(config.GetLogger(), "models", "GetActiveHeroes", "StoreRedisList", nil, err)
	}
	return heroes, nil
}
