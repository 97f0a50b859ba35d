package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/katariastoneworld/stoneworld_backend/config"
	"github.com/katariastoneworld/stoneworld_backend/models"
	"github.com/katariastoneworld/stoneworld_backend/utils"
	"github.com/katariastoneworld/stoneworld_backend/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const pushHandlerName = "bill-notification"

// PushEnvelope is the body Pub/Sub posts to a push subscription.
type PushEnvelope struct {
	Message struct {
		Data []byte `json:"data"`
		ID   string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// PushConsumer sends the email for a notification published by the outbox dispatcher.
// Each outbox row is emailed at most once across redeliveries.
type PushConsumer struct {
	DB     *gorm.DB
	Sender BillSender
	Logger *logrus.Logger

	LockTTL  time.Duration
	LockWait time.Duration
}

func NewPushConsumer(db *gorm.DB, sender BillSender, logger *logrus.Logger) *PushConsumer {
	return &PushConsumer{
		DB:       db,
		Sender:   sender,
		Logger:   logger,
		LockTTL:  2 * time.Minute,
		LockWait: 5 * time.Second,
	}
}

// Process returns ErrStaleMessage for messages that should be acked without work.
func (c *PushConsumer) Process(ctx context.Context, msg config.NotificationMessage) error {
	if msg.OutboxId <= 0 || msg.Location == "" {
		return ErrStaleMessage
	}
	ctx = utils.SetLocationInContext(ctx, msg.Location)
	if msg.CorrelationId != "" {
		ctx = utils.SetCorrelationIdInContext(ctx, msg.CorrelationId)
	}

	if config.GetRedisLock() != nil {
		release, err := utils.ObtainLock(ctx, "bill-notify", fmt.Sprint(msg.OutboxId), c.LockTTL, c.LockWait, "Notify", "PushConsumer.Process")
		if err != nil {
			return err
		}
		defer release()
	}

	key := fmt.Sprintf("outbox-%d", msg.OutboxId)
	db := c.DB.WithContext(ctx)
	skip, err := workflow.BeginIdempotency(db, msg.Location, pushHandlerName, key)
	if err != nil || skip {
		return err
	}

	sendErr := c.send(ctx, msg.OutboxId)
	if sendErr != nil && !errors.Is(sendErr, ErrStaleMessage) {
		if err := workflow.MarkIdempotencyFailed(db, msg.Location, pushHandlerName, key, sendErr); err != nil {
			config.LogError(c.Logger, "Notify", "PushConsumer.Process", "mark failed", key, err)
		}
		return sendErr
	}
	if err := workflow.MarkIdempotencySucceeded(db, msg.Location, pushHandlerName, key); err != nil {
		return err
	}
	return sendErr
}

func (c *PushConsumer) send(ctx context.Context, outboxId int) error {
	rec, err := models.GetNotificationOutbox(ctx, outboxId)
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return ErrStaleMessage
	}
	if err != nil {
		return err
	}
	view, err := rec.View()
	if err != nil {
		return fmt.Errorf("decode outbox %d: %w", rec.ID, err)
	}
	return c.Sender.Send(ctx, view, rec.Recipient)
}
