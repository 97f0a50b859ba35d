package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/katariastoneworld/stoneworld_backend/utils"
)

type authString string

const bearerPrefix = "Bearer "

// BearerToken returns the token of an "Authorization: Bearer <token>" header.
func BearerToken(c *gin.Context) string {
	auth := strings.TrimSpace(c.Request.Header.Get("Authorization"))
	if len(auth) <= len(bearerPrefix) || !strings.EqualFold(auth[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(bearerPrefix):])
}

// AuthMiddleware validates a bearer JWT when present and puts its claims in the request context.
// Requests without a token pass through; RequireRole rejects them where a role is needed.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			c.Next()
			return
		}

		validate, err := utils.JwtValidate(token)
		if err != nil || !validate.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"category": utils.ErrUnauthorized, "message": "invalid or expired token"})
			return
		}
		customClaim, _ := validate.Claims.(*utils.JwtCustomClaim)
		if customClaim == nil || strings.TrimSpace(customClaim.Location) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"category": utils.ErrUnauthorized, "message": "token has no location"})
			return
		}

		ctx := context.WithValue(c.Request.Context(), authString("auth"), customClaim)
		ctx = utils.SetTokenInContext(ctx, token)
		ctx = utils.SetLocationInContext(ctx, customClaim.Location)
		ctx = utils.SetRoleInContext(ctx, customClaim.Role)
		ctx = utils.SetUserIdInContext(ctx, customClaim.ID)
		ctx = utils.SetUserEmailInContext(ctx, customClaim.Email)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func CtxValue(ctx context.Context) *utils.JwtCustomClaim {
	raw, _ := ctx.Value(authString("auth")).(*utils.JwtCustomClaim)
	return raw
}

// RequireRole answers 401 without claims and 403 when the role is not one of roles.
// With no roles any authenticated caller passes.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claim := CtxValue(c.Request.Context())
		if claim == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"category": utils.ErrUnauthorized, "message": "authentication required"})
			return
		}
		if len(roles) == 0 {
			c.Next()
			return
		}
		for _, r := range roles {
			if strings.EqualFold(r, claim.Role) {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"category": utils.ErrForbidden, "message": "insufficient role"})
	}
}
