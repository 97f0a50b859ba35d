package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/katariastoneworld/stoneworld_backend/config"
	"github.com/katariastoneworld/stoneworld_backend/middlewares"
	"github.com/katariastoneworld/stoneworld_backend/models"
	"github.com/katariastoneworld/stoneworld_backend/utils"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func registerHandler(c *gin.Context) {
	var input models.NewUser
	if !bindJSON(c, &input) {
		return
	}
	user, err := models.Register(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func loginHandler(c *gin.Context) {
	var input loginRequest
	if !bindJSON(c, &input) {
		return
	}
	info, err := models.Login(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func meHandler(c *gin.Context) {
	userId, ok := utils.GetUserIdFromContext(c.Request.Context())
	if !ok {
		respondError(c, utils.NewAppError(utils.ErrUnauthorized, "authentication required"))
		return
	}
	user, err := models.GetUser(c.Request.Context(), userId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// logoutHandler revokes the caller's token for the rest of its lifetime.
func logoutHandler(c *gin.Context) {
	claim := middlewares.CtxValue(c.Request.Context())
	token := middlewares.BearerToken(c)
	if claim == nil || token == "" {
		respondError(c, utils.NewAppError(utils.ErrUnauthorized, "authentication required"))
		return
	}
	if config.GetRedisDB() == nil {
		c.JSON(http.StatusOK, gin.H{"message": "logged out", "revoked": false})
		return
	}
	if err := middlewares.RevokeToken(token, time.Unix(claim.ExpiresAt, 0)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out", "revoked": true})
}
