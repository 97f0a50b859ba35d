package main

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/katariastoneworld/stoneworld_backend/config"
	"github.com/katariastoneworld/stoneworld_backend/utils"
)

type errorBody struct {
	Category utils.ErrorCategory `json:"category"`
	Message  string              `json:"message"`
	Fields   map[string]string   `json:"fields,omitempty"`
}

// respondError maps err onto its category's status. Internal errors are logged, not exposed.
func respondError(c *gin.Context, err error) {
	category := utils.CategoryOf(err)
	body := errorBody{Category: category}

	var appErr *utils.AppError
	switch {
	case errors.As(err, &appErr) && category != utils.ErrInternal:
		body.Message = appErr.Message
		body.Fields = appErr.Fields
	case category == utils.ErrNotFound:
		body.Message = "resource not found"
	default:
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		config.LogError(config.GetLogger(), "http", c.FullPath(), c.Request.Method, map[string]string{"correlation_id": cid}, err)
		_ = c.Error(err)
		body.Message = "internal server error"
	}
	c.AbortWithStatusJSON(utils.HTTPStatus(category), body)
}

// bindJSON binds and validates the body, answering 400 with per-field tags on failure.
func bindJSON(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		appErr := utils.ValidationError("invalid request body")
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			appErr.Message = "validation failed"
			appErr.Fields = utils.ProcessValidationErrors(err)
		}
		respondError(c, appErr)
		return false
	}
	return true
}

func pathID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(strings.TrimSpace(c.Param(name)))
	if err != nil || id <= 0 {
		respondError(c, utils.ValidationError("%s must be a positive integer", name))
		return 0, false
	}
	return id, true
}

func queryBool(c *gin.Context, name string) bool {
	v, _ := strconv.ParseBool(strings.TrimSpace(c.Query(name)))
	return v
}

func respondDeleted(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
