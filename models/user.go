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

type User struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Email     string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	Location  string    `gorm:"size:100;not null;index" json:"location"`
	Role      UserRole  `gorm:"size:20;not null;default:'user'" json:"role"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

type NewUser struct {
	Name     string   `json:"name" binding:"required"`
	Email    string   `json:"email" binding:"required,email"`
	Password string   `json:"password" binding:"required,min=6"`
	Location string   `json:"location" binding:"required"`
	Role     UserRole `json:"role"`
}

type LoginInfo struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

func (input *NewUser) validate(ctx context.Context) error {
	location, ok := config.IsAllowedLocation(input.Location)
	if !ok {
		return utils.ValidationError("location must be one of: %s", strings.Join(config.AllowedLocations(), ", "))
	}
	input.Location = location
	if input.Role == "" {
		input.Role = UserRoleUser
	}
	if input.Role != UserRoleUser && input.Role != UserRoleAdmin {
		return utils.ValidationError("role must be user or admin")
	}
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	return utils.ValidateUnique[User](ctx, "", "email", input.Email, 0)
}

// Register creates a user. The location guard is bypassed so email uniqueness is global.
func Register(ctx context.Context, input *NewUser) (*User, error) {
	ctx = utils.SetSkipLocationScopeInContext(ctx, true)
	if err := input.validate(ctx); err != nil {
		return nil, err
	}
	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := User{
		Name:     strings.TrimSpace(input.Name),
		Email:    input.Email,
		Password: string(hashed),
		Location: input.Location,
		Role:     input.Role,
	}
	if err := config.GetDB().WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func Login(ctx context.Context, email string, password string) (*LoginInfo, error) {
	ctx = utils.SetSkipLocationScopeInContext(ctx, true)
	var user User
	err := config.GetDB().WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewAppError(utils.ErrUnauthorized, "invalid email or password")
		}
		return nil, err
	}

	if err := utils.ComparePassword(user.Password, password); err != nil {
		return nil, utils.NewAppError(utils.ErrUnauthorized, "invalid email or password")
	}

	token, err := utils.JwtGenerate(user.ID, user.Email, string(user.Role), user.Location)
	if err != nil {
		return nil, err
	}
	return &LoginInfo{Token: token, User: &user}, nil
}

func GetUser(ctx context.Context, id int) (*User, error) {
	return utils.FetchSingleModel[User](utils.SetSkipLocationScopeInContext(ctx, true), id)
}
