package utils

import (
	"github.com/katariastoneworld/stoneworld_backend/config"
	"golang.org/x/crypto/bcrypt"
)

// passwordCost is BCRYPT_COST clamped to bcrypt's range; unset means bcrypt.DefaultCost.
func passwordCost() int {
	cost := config.IntFromEnv("BCRYPT_COST", bcrypt.DefaultCost)
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return bcrypt.DefaultCost
	}
	return cost
}

func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), passwordCost())
}

// ComparePassword returns nil when password matches the stored hash.
func ComparePassword(hashed string, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password))
}
