package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

type BillSeries string

const (
	BillSeriesGST    BillSeries = "GST"
	BillSeriesNonGST BillSeries = "NON_GST"
)

// ParseBillSeries accepts the path spellings used by the bill routes.
func ParseBillSeries(s string) (BillSeries, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gst":
		return BillSeriesGST, true
	case "nongst", "non_gst", "non-gst":
		return BillSeriesNonGST, true
	default:
		return "", false
	}
}

// PathSegment is the canonical route spelling of the series.
func (s BillSeries) PathSegment() string {
	if s == BillSeriesGST {
		return "gst"
	}
	return "nongst"
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusPartial   PaymentStatus = "PARTIAL"
	PaymentStatusPaid      PaymentStatus = "PAID"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

func (r *UserRole) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(str)) {
	case "", "user":
		*r = UserRoleUser
	case "admin":
		*r = UserRoleAdmin
	default:
		return fmt.Errorf("%s is not a valid role", str)
	}
	return nil
}

type ExpenseType string

const (
	ExpenseTypeDaily   ExpenseType = "daily"
	ExpenseTypeSalary  ExpenseType = "salary"
	ExpenseTypeAdvance ExpenseType = "advance"
)

func (t *ExpenseType) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	switch ExpenseType(strings.ToLower(strings.TrimSpace(str))) {
	case ExpenseTypeDaily:
		*t = ExpenseTypeDaily
	case ExpenseTypeSalary:
		*t = ExpenseTypeSalary
	case ExpenseTypeAdvance:
		*t = ExpenseTypeAdvance
	default:
		return fmt.Errorf("%s is not a valid expense type", str)
	}
	return nil
}
