package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/katariastoneworld/stoneworld_backend/config"
	"github.com/katariastoneworld/stoneworld_backend/utils"
	"gorm.io/gorm"
)

type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "PENDING"
	OutboxStatusProcessing OutboxStatus = "PROCESSING"
	OutboxStatusSent       OutboxStatus = "SENT"
	OutboxStatusFailed     OutboxStatus = "FAILED"
	OutboxStatusDead       OutboxStatus = "DEAD"
)

// NotificationOutbox is a durable bill email request, delivered by the outbox dispatcher.
type NotificationOutbox struct {
	ID            int          `gorm:"primary_key" json:"id"`
	Location      string       `gorm:"size:100;not null;index" json:"location"`
	BillId        int          `gorm:"not null;index" json:"billId"`
	Series        BillSeries   `gorm:"size:20;not null" json:"series"`
	BillNumber    string       `gorm:"size:50;not null" json:"billNumber"`
	Recipient     string       `gorm:"size:255;not null" json:"recipient"`
	Payload       string       `gorm:"type:longtext;not null" json:"-"`
	Status        OutboxStatus `gorm:"size:20;not null;index:idx_outbox_status_next" json:"status"`
	Attempts      int          `gorm:"not null;default:0" json:"attempts"`
	NextAttemptAt *time.Time   `gorm:"index:idx_outbox_status_next" json:"nextAttemptAt"`
	LockedAt      *time.Time   `json:"lockedAt"`
	LockedBy      *string      `gorm:"size:64" json:"lockedBy"`
	LastError     *string      `gorm:"type:text" json:"lastError"`
	SentAt        *time.Time   `json:"sentAt"`
	MessageId     *string      `gorm:"size:255" json:"messageId"`
	CorrelationId string       `gorm:"size:64" json:"correlationId"`
	CreatedAt     time.Time    `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time    `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (NotificationOutbox) TableName() string { return "notification_outbox" }

// NewNotificationOutbox builds a PENDING row carrying the bill view as JSON.
func NewNotificationOutbox(ctx context.Context, view *BillView, recipient string) (*NotificationOutbox, error) {
	payload, err := json.Marshal(view)
	if err != nil {
		return nil, err
	}
	location, _ := utils.GetLocationFromContext(ctx)
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	return &NotificationOutbox{
		Location:      location,
		BillId:        view.Id,
		Series:        view.BillType,
		BillNumber:    view.BillNumber,
		Recipient:     recipient,
		Payload:       string(payload),
		Status:        OutboxStatusPending,
		CorrelationId: correlationId,
	}, nil
}

// View decodes the stored bill view.
func (o *NotificationOutbox) View() (*BillView, error) {
	var view BillView
	if err := json.Unmarshal([]byte(o.Payload), &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func GetNotificationOutbox(ctx context.Context, id int) (*NotificationOutbox, error) {
	var rec NotificationOutbox
	err := config.GetDB().WithContext(utils.SetSkipLocationScopeInContext(ctx, true)).First(&rec, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// ReplayNotificationOutbox puts a DEAD or FAILED row back to PENDING with a fresh attempt budget.
func ReplayNotificationOutbox(ctx context.Context, id int) (*NotificationOutbox, error) {
	rec, err := GetNotificationOutbox(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status != OutboxStatusDead && rec.Status != OutboxStatusFailed {
		return nil, utils.ValidationError("outbox record %d is %s; only DEAD or FAILED can be replayed", id, rec.Status)
	}
	err = config.GetDB().WithContext(utils.SetSkipLocationScopeInContext(ctx, true)).
		Model(&NotificationOutbox{}).
		Where("id = ? AND status IN ?", id, []OutboxStatus{OutboxStatusDead, OutboxStatusFailed}).
		Updates(map[string]interface{}{
			"status":          OutboxStatusPending,
			"attempts":        0,
			"next_attempt_at": nil,
			"locked_at":       nil,
			"locked_by":       nil,
			"last_error":      nil,
		}).Error
	if err != nil {
		return nil, err
	}
	return GetNotificationOutbox(ctx, id)
}
