package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/katariastoneworld/stoneworld_backend/config"
	"github.com/katariastoneworld/stoneworld_backend/models"
	"github.com/katariastoneworld/stoneworld_backend/utils"
	"gorm.io/gorm"
)

const seriesLockType = "bill-series"

func seriesLockName(series models.BillSeries) string {
	return fmt.Sprintf("%s:%s", seriesLockType, series)
}

// DefaultSeriesLocker uses redislock when redis is connected and a MySQL advisory lock otherwise.
type DefaultSeriesLocker struct {
	DB          *gorm.DB
	TTL         time.Duration
	Wait        time.Duration
	LockTimeout int
}

func NewDefaultSeriesLocker(db *gorm.DB) *DefaultSeriesLocker {
	return &DefaultSeriesLocker{
		DB:          db,
		TTL:         30 * time.Second,
		Wait:        10 * time.Second,
		LockTimeout: 30,
	}
}

func (l *DefaultSeriesLocker) WithSeriesLock(ctx context.Context, series models.BillSeries, fn func(ctx context.Context) error) error {
	if config.GetRedisLock() != nil {
		return l.withRedisLock(ctx, series, fn)
	}
	return l.withAdvisoryLock(ctx, series, fn)
}

func (l *DefaultSeriesLocker) withRedisLock(ctx context.Context, series models.BillSeries, fn func(ctx context.Context) error) error {
	release, err := utils.ObtainLock(ctx, seriesLockType, string(series), l.TTL, l.Wait, "workflow", "WithSeriesLock")
	if err != nil {
		if errors.Is(err, utils.ErrLockNotObtained) {
			return &utils.AppError{Category: utils.ErrDuplicateBillNumber, Message: "bill series is busy, please retry", Err: err}
		}
		return err
	}
	defer release()
	return fn(ctx)
}

// withAdvisoryLock pins one pooled connection for GET_LOCK, which is session scoped.
func (l *DefaultSeriesLocker) withAdvisoryLock(ctx context.Context, series models.BillSeries, fn func(ctx context.Context) error) error {
	if l.DB == nil {
		return fn(ctx)
	}
	return l.DB.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		if err := AcquireSeriesLock(conn, series, l.LockTimeout); err != nil {
			return err
		}
		defer ReleaseSeriesLock(conn, series)
		return fn(ctx)
	})
}

// AcquireSeriesLock takes the MySQL advisory lock for series on conn.
func AcquireSeriesLock(conn *gorm.DB, series models.BillSeries, timeoutSeconds int) error {
	var ok int
	if err := conn.Raw("SELECT GET_LOCK(?, ?)", seriesLockName(series), timeoutSeconds).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return &utils.AppError{
			Category: utils.ErrDuplicateBillNumber,
			Message:  "bill series is busy, please retry",
			Err:      fmt.Errorf("could not acquire advisory lock %s", seriesLockName(series)),
		}
	}
	return nil
}

func ReleaseSeriesLock(conn *gorm.DB, series models.BillSeries) {
	var _ok int
	_ = conn.Raw("SELECT RELEASE_LOCK(?)", seriesLockName(series)).Scan(&_ok).Error
}
