package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/katariastoneworld/stoneworld_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OutboxDeliverer hands one claimed notification to its transport.
// The returned id (a Pub/Sub message id, or empty) is stored on the row.
type OutboxDeliverer interface {
	Deliver(ctx context.Context, rec *models.NotificationOutbox) (string, error)
}

type OutboxDispatcher struct {
	DB           *gorm.DB
	Logger       *logrus.Logger
	Deliverer    OutboxDeliverer
	DispatcherID string

	BatchSize      int
	PollInterval   time.Duration
	LockTimeout    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func NewOutboxDispatcher(db *gorm.DB, logger *logrus.Logger, deliverer OutboxDeliverer) *OutboxDispatcher {
	return &OutboxDispatcher{
		DB:             db,
		Logger:         logger,
		Deliverer:      deliverer,
		DispatcherID:   uuid.NewString(),
		BatchSize:      20,
		PollInterval:   time.Second,
		LockTimeout:    2 * time.Minute,
		MaxAttempts:    8,
		InitialBackoff: 10 * time.Second,
		MaxBackoff:     30 * time.Minute,
	}
}

func (d *OutboxDispatcher) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.DispatchOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

// claim locks a batch of due rows with SKIP LOCKED and marks them PROCESSING.
// Rows past MaxAttempts go DEAD instead.
func (d *OutboxDispatcher) claim(ctx context.Context, now time.Time) ([]*models.NotificationOutbox, error) {
	staleBefore := now.Add(-d.LockTimeout)
	var claimed []*models.NotificationOutbox
	err := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.
			Where(`
				(
					status IN ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
				)
				OR
				(
					status = ? AND locked_at IS NOT NULL AND locked_at <= ?
				)
			`, []models.OutboxStatus{models.OutboxStatusPending, models.OutboxStatusFailed}, now,
				models.OutboxStatusProcessing, staleBefore).
			Order("id ASC").
			Limit(d.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		for _, rec := range claimed {
			if d.MaxAttempts > 0 && rec.Attempts >= d.MaxAttempts {
				msg := fmt.Sprintf("max delivery attempts exceeded (%d)", d.MaxAttempts)
				rec.Status = models.OutboxStatusDead
				if err := tx.Model(&models.NotificationOutbox{}).Where("id = ?", rec.ID).Updates(map[string]interface{}{
					"status":          models.OutboxStatusDead,
					"last_error":      &msg,
					"next_attempt_at": nil,
					"locked_at":       nil,
					"locked_by":       nil,
				}).Error; err != nil {
					return err
				}
				continue
			}

			rec.Status = models.OutboxStatusProcessing
			rec.LockedAt = &now
			rec.LockedBy = &d.DispatcherID
			rec.Attempts++
			if err := tx.Model(&models.NotificationOutbox{}).Where("id = ?", rec.ID).Updates(map[string]interface{}{
				"status":          rec.Status,
				"locked_at":       rec.LockedAt,
				"locked_by":       rec.LockedBy,
				"attempts":        gorm.Expr("attempts + 1"),
				"last_error":      nil,
				"next_attempt_at": nil,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return claimed, err
}

// DispatchOnce claims and delivers one batch. It returns the number of rows delivered.
func (d *OutboxDispatcher) DispatchOnce(ctx context.Context) int {
	if d.DB == nil || d.Deliverer == nil {
		return 0
	}
	now := time.Now().UTC()
	claimed, err := d.claim(ctx, now)
	if err != nil {
		if d.Logger != nil {
			d.Logger.WithFields(logrus.Fields{
				"field":         "OutboxDispatcher",
				"dispatcher_id": d.DispatcherID,
			}).Error("outbox claim failed: " + err.Error())
		}
		return 0
	}

	delivered := 0
	for _, rec := range claimed {
		if rec.Status == models.OutboxStatusDead {
			continue
		}
		msgID, deliverErr := d.Deliverer.Deliver(ctx, rec)
		if deliverErr != nil {
			d.markFailed(ctx, rec, deliverErr)
			continue
		}
		d.markSent(ctx, rec.ID, msgID)
		delivered++
	}
	return delivered
}

func (d *OutboxDispatcher) markSent(ctx context.Context, recordID int, msgID string) {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":          models.OutboxStatusSent,
		"sent_at":         &now,
		"locked_at":       nil,
		"locked_by":       nil,
		"next_attempt_at": nil,
	}
	if msgID != "" {
		updates["message_id"] = &msgID
	}
	_ = d.DB.WithContext(ctx).Model(&models.NotificationOutbox{}).Where("id = ?", recordID).Updates(updates).Error
}

// Backoff doubles from InitialBackoff per attempt, capped at MaxBackoff.
func (d *OutboxDispatcher) Backoff(attempt int) time.Duration {
	backoff := d.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if d.MaxBackoff > 0 && backoff > d.MaxBackoff {
			return d.MaxBackoff
		}
	}
	return backoff
}

func (d *OutboxDispatcher) markFailed(ctx context.Context, rec *models.NotificationOutbox, err error) {
	db := d.DB.WithContext(ctx)
	msg := err.Error()
	fields := logrus.Fields{
		"field":       "OutboxDispatcher",
		"record_id":   rec.ID,
		"bill_number": rec.BillNumber,
		"series":      rec.Series,
		"attempt":     rec.Attempts,
	}

	if d.MaxAttempts > 0 && rec.Attempts >= d.MaxAttempts {
		_ = db.Model(&models.NotificationOutbox{}).
			Where("id = ?", rec.ID).
			Updates(map[string]interface{}{
				"status":          models.OutboxStatusDead,
				"last_error":      &msg,
				"next_attempt_at": nil,
				"locked_at":       nil,
				"locked_by":       nil,
			}).Error
		if d.Logger != nil {
			d.Logger.WithFields(fields).Error("notification moved to DEAD after max attempts: " + msg)
		}
		return
	}

	next := time.Now().UTC().Add(d.Backoff(rec.Attempts))
	_ = db.Model(&models.NotificationOutbox{}).
		Where("id = ?", rec.ID).
		Updates(map[string]interface{}{
			"status":          models.OutboxStatusFailed,
			"last_error":      &msg,
			"next_attempt_at": &next,
			"locked_at":       nil,
			"locked_by":       nil,
		}).Error
	if d.Logger != nil {
		fields["next_attempt_at"] = next.Format(time.RFC3339Nano)
		d.Logger.WithFields(fields).Error("notification delivery failed: " + msg)
	}
}
