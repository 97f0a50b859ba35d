package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/katariastoneworld/stoneworld_backend/config"
	"github.com/katariastoneworld/stoneworld_backend/models"
	"github.com/katariastoneworld/stoneworld_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// OutboxNotifier records the notification in notification_outbox for the dispatcher.
type OutboxNotifier struct {
	DB     *gorm.DB
	Logger *logrus.Logger
}

func NewOutboxNotifier(db *gorm.DB, logger *logrus.Logger) *OutboxNotifier {
	return &OutboxNotifier{DB: db, Logger: logger}
}

func (n *OutboxNotifier) Notify(ctx context.Context, view *models.BillView, email string) {
	email = strings.TrimSpace(email)
	if email == "" || view == nil {
		return
	}
	rec, err := models.NewNotificationOutbox(ctx, view, email)
	if err == nil {
		err = n.DB.WithContext(ctx).Create(rec).Error
	}
	if err != nil {
		config.LogError(n.Logger, "Notify", "OutboxNotifier.Notify", "write outbox", view.BillNumber, err)
	}
}

// PubSubDeliverer publishes claimed outbox rows to PUBSUB_TOPIC.
type PubSubDeliverer struct{}

func (PubSubDeliverer) Deliver(ctx context.Context, rec *models.NotificationOutbox) (string, error) {
	return config.PublishNotification(ctx, MessageFromOutbox(rec))
}

func MessageFromOutbox(rec *models.NotificationOutbox) config.NotificationMessage {
	return config.NotificationMessage{
		OutboxId:      rec.ID,
		Location:      rec.Location,
		BillId:        rec.BillId,
		Series:        string(rec.Series),
		BillNumber:    rec.BillNumber,
		Recipient:     rec.Recipient,
		CorrelationId: rec.CorrelationId,
	}
}

// DirectDeliverer sends claimed outbox rows in-process.
type DirectDeliverer struct {
	Sender BillSender
}

func (d DirectDeliverer) Deliver(ctx context.Context, rec *models.NotificationOutbox) (string, error) {
	view, err := rec.View()
	if err != nil {
		return "", fmt.Errorf("decode outbox %d: %w", rec.ID, err)
	}
	ctx = outboxContext(ctx, rec)
	return "", d.Sender.Send(ctx, view, rec.Recipient)
}

func outboxContext(ctx context.Context, rec *models.NotificationOutbox) context.Context {
	ctx = utils.SetLocationInContext(ctx, rec.Location)
	if rec.CorrelationId != "" {
		ctx = utils.SetCorrelationIdInContext(ctx, rec.CorrelationId)
	}
	return ctx
}

// ErrStaleMessage marks a push message whose outbox row is gone or already resolved.
var ErrStaleMessage = errors.New("notification message is stale")
