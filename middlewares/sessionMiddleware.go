package middlewares

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/katariastoneworld/stoneworld_backend/config"
	"github.com/katariastoneworld/stoneworld_backend/utils"
)

const revokedTokenPrefix = "RevokedToken:"

// RevokeToken denies token until it would have expired anyway.
func RevokeToken(token string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return config.SetRedisObject(revokedTokenPrefix+token, true, ttl)
}

// SessionMiddleware rejects bearer tokens revoked by logout. Runs before AuthMiddleware.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			c.Next()
			return
		}
		var revoked bool
		exists, err := config.GetRedisObject(revokedTokenPrefix+token, &revoked)
		if err != nil {
			config.LogError(config.GetLogger(), "middlewares", "SessionMiddleware", "revocation lookup", nil, err)
			c.Next()
			return
		}
		if exists && revoked {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"category": utils.ErrUnauthorized, "message": "session has ended"})
			return
		}
		c.Next()
	}
}
