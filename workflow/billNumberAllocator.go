package workflow

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/katariastoneworld/stoneworld_backend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MaxNumericBillNumber scans the series table for the largest purely numeric bill number.
func MaxNumericBillNumber(tx *gorm.DB, series models.BillSeries) (int64, error) {
	var maxNumber sql.NullInt64
	query := fmt.Sprintf("SELECT MAX(CAST(bill_number AS UNSIGNED)) FROM %s WHERE bill_number REGEXP '^[0-9]+$'", models.BillTableFor(series))
	if err := tx.Raw(query).Scan(&maxNumber).Error; err != nil {
		return 0, err
	}
	if !maxNumber.Valid {
		return 0, nil
	}
	return maxNumber.Int64, nil
}

// lockSeriesCounter reads the series row FOR UPDATE, creating it on first use.
func lockSeriesCounter(tx *gorm.DB, series models.BillSeries) (*models.BillNumberSeries, error) {
	var counter models.BillNumberSeries
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("series = ?", series).First(&counter).Error
	if err == nil {
		return &counter, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	counter = models.BillNumberSeries{Series: series}
	if err := tx.Create(&counter).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return nil, fmt.Errorf("%w: series counter %s created concurrently", ErrDuplicateBillNumber, series)
		}
		return nil, err
	}
	return &counter, nil
}

// AllocateBillNumber returns max(counter, numeric scan) + 1 and advances the counter.
// It must run inside the bill transaction so the counter row stays locked until commit.
func AllocateBillNumber(tx *gorm.DB, series models.BillSeries) (string, error) {
	counter, err := lockSeriesCounter(tx, series)
	if err != nil {
		return "", err
	}
	scanned, err := MaxNumericBillNumber(tx, series)
	if err != nil {
		return "", err
	}
	next := counter.LastNumber
	if scanned > next {
		next = scanned
	}
	next++

	if err := tx.Model(&models.BillNumberSeries{}).
		Where("series = ?", series).
		Update("last_number", next).Error; err != nil {
		return "", err
	}
	return strconv.FormatInt(next, 10), nil
}
