package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/katariastoneworld/stoneworld_backend/config"
	"github.com/katariastoneworld/stoneworld_backend/models"
	"github.com/katariastoneworld/stoneworld_backend/notify"
	"github.com/sirupsen/logrus"
)

type notificationProcessor interface {
	Process(ctx context.Context, msg config.NotificationMessage) error
}

// notificationPushHandler consumes Pub/Sub push deliveries. 2xx acks; 500 asks Pub/Sub to redeliver.
func notificationPushHandler(processor notificationProcessor) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			config.LogError(logger, "server", "notificationPushHandler", "io.ReadAll", nil, err)
			c.Status(http.StatusNoContent)
			return
		}
		var envelope notify.PushEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			config.LogError(logger, "server", "notificationPushHandler", "unmarshal envelope", string(body), err)
			c.Status(http.StatusNoContent)
			return
		}
		var msg config.NotificationMessage
		if err := json.Unmarshal(envelope.Message.Data, &msg); err != nil {
			config.LogError(logger, "server", "notificationPushHandler", "unmarshal message", string(envelope.Message.Data), err)
			c.Status(http.StatusNoContent)
			return
		}
		if msg.CorrelationId == "" {
			msg.CorrelationId = envelope.Message.ID
		}

		fields := logrus.Fields{
			"outbox_id":      msg.OutboxId,
			"bill_number":    msg.BillNumber,
			"series":         msg.Series,
			"message_id":     envelope.Message.ID,
			"correlation_id": msg.CorrelationId,
		}
		if err := processor.Process(c.Request.Context(), msg); err != nil {
			if errors.Is(err, notify.ErrStaleMessage) {
				logger.WithFields(fields).Warn("dropping stale notification")
				c.Status(http.StatusNoContent)
				return
			}
			logger.WithFields(fields).Error("notification processing failed: " + err.Error())
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

type outboxReplayRequest struct {
	RecordId int `json:"recordId" binding:"required,gt=0"`
}

// outboxReplayHandler puts a DEAD or FAILED notification back in the queue.
func outboxReplayHandler(c *gin.Context) {
	var req outboxReplayRequest
	if !bindJSON(c, &req) {
		return
	}
	rec, err := models.ReplayNotificationOutbox(c.Request.Context(), req.RecordId)
	if err != nil {
		respondError(c, err)
		return
	}
	config.GetLogger().WithFields(logrus.Fields{
		"outbox_id": rec.ID,
		"bill_id":   rec.BillId,
	}).Info("notification outbox replayed")
	c.JSON(http.StatusOK, gin.H{
		"recordId": rec.ID,
		"status":   rec.Status,
	})
}
