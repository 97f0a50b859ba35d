package workflow

import (
	"errors"
	"time"

	"github.com/katariastoneworld/stoneworld_backend/models"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

var ErrIdempotencyInProgress = errors.New("idempotency in progress")

const idempotencyStaleAfter = 5 * time.Minute

const (
	mysqlErrDuplicateKey = 1062
	mysqlErrDeadlock     = 1213
)

func isMySQLErr(err error, number uint16) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == number
	}
	return false
}

func isDuplicateKeyErr(err error) bool {
	return isMySQLErr(err, mysqlErrDuplicateKey)
}

// isDeadlockErr reports a transaction InnoDB rolled back to break a lock cycle.
func isDeadlockErr(err error) bool {
	return isMySQLErr(err, mysqlErrDeadlock)
}

func idempotencyWhere(tx *gorm.DB, location, handlerName, messageId string) *gorm.DB {
	return tx.Model(&models.IdempotencyKey{}).
		Where("location = ? AND handler_name = ? AND message_id = ?", location, handlerName, messageId)
}

// BeginIdempotency records STARTED for the message. skip is true when it already SUCCEEDED.
// A fresh STARTED row owned by another worker yields ErrIdempotencyInProgress.
func BeginIdempotency(tx *gorm.DB, location, handlerName, messageId string) (skip bool, err error) {
	key := models.IdempotencyKey{
		Location:    location,
		HandlerName: handlerName,
		MessageId:   messageId,
		Status:      models.IdempotencyStatusStarted,
	}
	if err := tx.Create(&key).Error; err == nil {
		return false, nil
	} else if !isDuplicateKeyErr(err) {
		return false, err
	}

	var existing models.IdempotencyKey
	if err := idempotencyWhere(tx, location, handlerName, messageId).First(&existing).Error; err != nil {
		return false, err
	}

	switch existing.Status {
	case models.IdempotencyStatusSucceeded:
		return true, nil
	case models.IdempotencyStatusStarted:
		if time.Since(existing.UpdatedAt) < idempotencyStaleAfter {
			return false, ErrIdempotencyInProgress
		}
	}
	// stale STARTED or FAILED: take it over
	return false, tx.Model(&models.IdempotencyKey{}).
		Where("id = ?", existing.ID).
		Updates(map[string]interface{}{"status": models.IdempotencyStatusStarted, "last_error": nil}).Error
}

func MarkIdempotencySucceeded(tx *gorm.DB, location, handlerName, messageId string) error {
	return idempotencyWhere(tx, location, handlerName, messageId).
		Updates(map[string]interface{}{"status": models.IdempotencyStatusSucceeded, "last_error": nil}).Error
}

func MarkIdempotencyFailed(tx *gorm.DB, location, handlerName, messageId string, err error) error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return idempotencyWhere(tx, location, handlerName, messageId).
		Updates(map[string]interface{}{"status": models.IdempotencyStatusFailed, "last_error": &msg}).Error
}
