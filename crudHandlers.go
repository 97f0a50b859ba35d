package main

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Thin adapters from the models' (ctx, input) operations to gin handlers.

func createHandler[In any, Out any](fn func(ctx context.Context, input *In) (Out, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input In
		if !bindJSON(c, &input) {
			return
		}
		out, err := fn(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, out)
	}
}

func updateHandler[In any, Out any](fn func(ctx context.Context, id int, input *In) (Out, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var input In
		if !bindJSON(c, &input) {
			return
		}
		out, err := fn(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func getHandler[Out any](fn func(ctx context.Context, id int) (Out, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		out, err := fn(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func deleteHandler[Out any](fn func(ctx context.Context, id int) (Out, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		if _, err := fn(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		respondDeleted(c)
	}
}

func listHandler[Out any](fn func(ctx context.Context) (Out, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := fn(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}
