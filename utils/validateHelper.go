package utils

import (
	"context"
	"reflect"

	"github.com/katariastoneworld/stoneworld_backend/config"
)

// check if id exists within location, return RecordNotFound Error
func ValidateResourceId[T any](ctx context.Context, location string, id interface{}) error {
	count, err := ResourceCountWhere[T](ctx, location, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}
	return nil
}

// ValidateUnique fails with a VALIDATION_FAILED AppError naming the column.
func ValidateUnique[T any](ctx context.Context, location string, column string, value interface{}, exceptId interface{}) error {
	var count int64
	var err error
	if exceptId == nil || reflect.ValueOf(exceptId).IsZero() {
		count, err = ResourceCountWhere[T](ctx, location, column+" = ?", value)
	} else {
		count, err = ResourceCountWhere[T](ctx, location, column+" = ? AND NOT id = ?", value, exceptId)
	}

	if err != nil {
		return err
	}
	if count > 0 {
		appErr := ValidationError("duplicate %s", column)
		appErr.Fields = map[string]string{column: "unique"}
		return appErr
	}
	return nil
}

// count records, using WHERE location = ? AND $condition
// location can be blank for global models
func ResourceCountWhere[T any](ctx context.Context, location string, condition string, value ...interface{}) (int64, error) {
	var model T

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&model)
	var count int64
	if location != "" {
		dbCtx = dbCtx.Where("location = ?", location)
	}
	dbCtx = dbCtx.Where(condition, value...)
	if err := dbCtx.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
