package reports

import (
	"context"
	"fmt"
	"io"

	"github.com/katariastoneworld/stoneworld_backend/models"
	"github.com/xuri/excelize/v2"
)

const billSheet = "Bills"

var billExportHeaders = []string{
	"Bill Number", "Bill Type", "Bill Date", "Customer", "Mobile", "GSTIN",
	"Total Sqft", "Subtotal", "Tax %", "Tax Amount", "Labour Charge", "Transportation Charge",
	"Discount", "Total Amount", "Payment Status", "Payment Method",
}

func billExportRow(v *models.BillView) []interface{} {
	return []interface{}{
		v.BillNumber, string(v.BillType), v.BillDate, v.CustomerName, v.CustomerMobileNumber, v.Gstin,
		v.TotalSqft.InexactFloat64(), v.Subtotal.InexactFloat64(), v.TaxPercentage.InexactFloat64(),
		v.TaxAmount.InexactFloat64(), v.LabourCharge.InexactFloat64(), v.TransportationCharge.InexactFloat64(),
		v.DiscountAmount.InexactFloat64(), v.TotalAmount.InexactFloat64(), string(v.PaymentStatus), v.PaymentMethod,
	}
}

// WriteBillsWorkbook writes one row per bill, newest first, to w as xlsx.
func WriteBillsWorkbook(w io.Writer, views []*models.BillView) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", billSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(billSheet, "A1", &billExportHeaders); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(billExportHeaders))
	if err := f.SetCellStyle(billSheet, "A1", lastCol+"1", bold); err != nil {
		return err
	}

	for i, v := range views {
		row := billExportRow(v)
		if err := f.SetSheetRow(billSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return err
		}
	}
	return f.Write(w)
}

// ExportBills writes every bill of the caller's location as xlsx.
func ExportBills(ctx context.Context, w io.Writer) error {
	bills, err := models.GetBills(ctx)
	if err != nil {
		return err
	}
	views := make([]*models.BillView, 0, len(bills))
	for _, b := range bills {
		views = append(views, models.NewBillView(b))
	}
	return WriteBillsWorkbook(w, views)
}
