package models

import "time"

// BillNumberSeries is the row-locked counter behind bill number allocation.
// LastNumber is reconciled against the numeric maximum of the series table on every allocation.
type BillNumberSeries struct {
	Series     BillSeries `gorm:"primaryKey;size:20" json:"series"`
	LastNumber int64      `gorm:"not null;default:0" json:"lastNumber"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (BillNumberSeries) TableName() string { return "bill_number_series" }

// BillTableFor returns the header table of a series.
func BillTableFor(series BillSeries) string {
	if series == BillSeriesGST {
		return GstBill{}.TableName()
	}
	return NonGstBill{}.TableName()
}
