package reports

import (
	"bytes"
	"testing"

	"github.com/katariastoneworld/stoneworld_backend/models"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func TestWriteBillsWorkbook(t *testing.T) {
	views := []*models.BillView{
		{BillNumber: "42", BillType: models.BillSeriesGST, BillDate: "2026-03-14", CustomerName: "Ravi",
			TotalAmount: decimal.RequireFromString("590"), PaymentStatus: models.PaymentStatusPaid},
		{BillNumber: "7", BillType: models.BillSeriesNonGST, BillDate: "2026-03-13", CustomerName: "Asha",
			TotalAmount: decimal.RequireFromString("500.50"), PaymentStatus: models.PaymentStatusPaid},
	}
	var buf bytes.Buffer
	if err := WriteBillsWorkbook(&buf, views); err != nil {
		t.Fatalf("WriteBillsWorkbook: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(billSheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "Bill Number" || rows[1][0] != "42" || rows[2][1] != "NON_GST" {
		t.Fatalf("unexpected rows: %v", rows)
	}
	if got := rows[2][13]; got != "500.5" {
		t.Fatalf("total cell = %q", got)
	}
}
