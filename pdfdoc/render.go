package pdfdoc

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/katariastoneworld/stoneworld_backend/models"
	"github.com/katariastoneworld/stoneworld_backend/utils"
	"github.com/shopspring/decimal"
)

const (
	pageMargin  = 10.0
	contentW    = 190.0
	lineH       = 5.0
	displayDate = "02/01/2006"
	fontFamily  = "Helvetica"
)

// TaxSplit is the GST presentation of a bill's tax amount.
type TaxSplit struct {
	SameState   bool
	SellerState string
	BuyerState  string
	CGST        decimal.Decimal
	SGST        decimal.Decimal
	IGST        decimal.Decimal
}

// SplitTax halves the tax into CGST and SGST for an intra-state sale, IGST otherwise.
func SplitTax(taxAmount decimal.Decimal, sellerAddress, buyerAddress string) TaxSplit {
	split := TaxSplit{
		SellerState: ExtractState(sellerAddress),
		BuyerState:  ExtractState(buyerAddress),
	}
	split.SameState = split.SellerState != "" && strings.EqualFold(split.SellerState, split.BuyerState)
	if !taxAmount.IsPositive() {
		return split
	}
	if split.SameState {
		split.CGST = utils.Round2(taxAmount.Div(decimal.NewFromInt(2)))
		split.SGST = taxAmount.Sub(split.CGST)
	} else {
		split.IGST = taxAmount
	}
	return split
}

// IsSimple reports whether the bill is rendered without letterhead and tax block.
func IsSimple(view *models.BillView) bool {
	return view.SimpleBill || !view.TaxPercentage.IsPositive()
}

// FileName is the download name of a bill PDF.
func FileName(view *models.BillView) string {
	return fmt.Sprintf("Bill_%s.pdf", view.BillNumber)
}

// RenderBill renders a full tax invoice, or a simple bill for untaxed or simple bills.
// The full invoice needs a seller profile.
func RenderBill(view *models.BillView, seller *models.Seller, gstCodes map[string]string) ([]byte, error) {
	if view == nil {
		return nil, utils.ValidationError("bill is required")
	}
	if IsSimple(view) {
		return renderSimple(view)
	}
	if seller == nil {
		return nil, utils.NotFoundError("seller profile is not configured")
	}
	return renderTaxInvoice(view, seller, gstCodes)
}

type writer struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func newWriter(title string) *writer {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, 15)
	pdf.SetTitle(title, true)
	pdf.SetCreationDate(time.Now())
	pdf.AddPage()
	return &writer{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
}

func (w *writer) font(style string, size float64) {
	w.pdf.SetFont(fontFamily, style, size)
}

func (w *writer) cell(width float64, text, border, align string, ln int) {
	w.pdf.CellFormat(width, lineH+1, w.tr(text), border, ln, align, false, 0, "")
}

func (w *writer) multi(width float64, text, border, align string) {
	w.pdf.MultiCell(width, lineH, w.tr(text), border, align, false)
}

func (w *writer) bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := w.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func billDate(view *models.BillView) string {
	if t, err := time.Parse(models.BillDateLayout, view.BillDate); err == nil {
		return t.Format(displayDate)
	}
	return view.BillDate
}

func (w *writer) totalRow(label string, amount decimal.Decimal) {
	w.cell(contentW-40, label, "", "R", 0)
	w.cell(40, FormatAmount(amount), "", "R", 1)
}

func renderTaxInvoice(view *models.BillView, seller *models.Seller, gstCodes map[string]string) ([]byte, error) {
	w := newWriter(fmt.Sprintf("Tax Invoice %s", view.BillNumber))
	split := SplitTax(view.TaxAmount, seller.Address, view.Address)
	codeOf := func(state string) string {
		return orDash(gstCodes[strings.ToUpper(state)])
	}

	w.font("B", 10)
	w.cell(contentW, "TAX INVOICE", "", "C", 1)
	w.font("B", 16)
	w.cell(contentW, orDash(seller.Name), "", "C", 1)
	w.font("", 9)
	if seller.SubHeader != "" {
		w.cell(contentW, seller.SubHeader, "", "C", 1)
	}
	w.multi(contentW, orDash(seller.Address), "", "C")
	w.cell(contentW, fmt.Sprintf("Mobile: %s    GSTIN: %s", orDash(seller.Mobile), orDash(seller.Gstin)), "B", "C", 1)
	w.pdf.Ln(2)

	half := contentW / 2
	w.cell(half, "Invoice No: "+view.BillNumber, "", "L", 0)
	w.cell(half, "Date: "+billDate(view), "", "R", 1)
	w.cell(half, fmt.Sprintf("State of Origin: %s (Code %s)", orDash(split.SellerState), codeOf(split.SellerState)), "", "L", 0)
	w.cell(half, fmt.Sprintf("State of Destination: %s (Code %s)", orDash(split.BuyerState), codeOf(split.BuyerState)), "", "R", 1)
	w.pdf.Ln(2)

	w.font("B", 9)
	w.cell(contentW, "Buyer", "B", "L", 1)
	w.font("", 9)
	w.cell(contentW, "Name: "+orDash(view.CustomerName), "", "L", 1)
	if view.Address != "" {
		w.multi(contentW, "Address: "+view.Address, "", "L")
	}
	w.cell(half, "Mobile: "+orDash(view.CustomerMobileNumber), "", "L", 0)
	w.cell(half, "GSTIN: "+orDash(view.Gstin), "", "R", 1)
	w.pdf.Ln(2)

	widths := []float64{12, 18, 62, 16, 22, 25, 35}
	w.font("B", 9)
	for i, h := range []string{"S.No", "HSN", "Description", "Unit", "Qty", "Rate", "Amount"} {
		w.pdf.CellFormat(widths[i], lineH+2, h, "1", 0, "C", false, 0, "")
	}
	w.pdf.Ln(-1)
	w.font("", 9)
	for i, it := range view.Items {
		hsn := "-"
		if it.ProductId != nil {
			hsn = fmt.Sprint(*it.ProductId)
		}
		w.cell(widths[0], fmt.Sprint(i+1), "1", "C", 0)
		w.cell(widths[1], hsn, "1", "C", 0)
		w.cell(widths[2], it.ItemName, "1", "L", 0)
		w.cell(widths[3], it.Unit, "1", "C", 0)
		w.cell(widths[4], FormatAmount(it.Quantity), "1", "R", 0)
		w.cell(widths[5], FormatAmount(it.PricePerUnit), "1", "R", 0)
		w.cell(widths[6], FormatAmount(it.TotalPrice), "1", "R", 1)
	}
	w.pdf.Ln(2)

	rate := view.TaxPercentage
	w.totalRow("Subtotal", view.Subtotal)
	if split.SameState {
		halfRate := rate.Div(decimal.NewFromInt(2))
		w.totalRow(fmt.Sprintf("CGST @ %s%%", halfRate.String()), split.CGST)
		w.totalRow(fmt.Sprintf("SGST @ %s%%", halfRate.String()), split.SGST)
	} else if split.IGST.IsPositive() {
		w.totalRow(fmt.Sprintf("IGST @ %s%%", rate.String()), split.IGST)
	}
	if view.ServiceCharge.IsPositive() {
		w.totalRow("Service Charge", view.ServiceCharge)
	}
	if view.LabourCharge.IsPositive() {
		w.totalRow("Labour Charge", view.LabourCharge)
	}
	if view.TransportationCharge.IsPositive() {
		w.totalRow("Transportation Charge", view.TransportationCharge)
	}
	if view.DiscountAmount.IsPositive() {
		w.totalRow("Discount", view.DiscountAmount.Neg())
	}
	w.font("B", 10)
	w.totalRow("Total", view.TotalAmount)
	w.font("", 9)
	w.multi(contentW, "Amount in words: "+AmountInWords(view.TotalAmount), "T", "L")
	w.pdf.Ln(2)

	if seller.BankName != "" || seller.AccountNumber != "" {
		w.font("B", 9)
		w.cell(contentW, "Bank Details", "", "L", 1)
		w.font("", 9)
		w.cell(contentW, fmt.Sprintf("Bank: %s    A/C No: %s    IFSC: %s", orDash(seller.BankName), orDash(seller.AccountNumber), orDash(seller.IfscCode)), "", "L", 1)
	}
	if seller.TermsAndConditions != "" {
		w.font("B", 9)
		w.cell(contentW, "Terms and Conditions", "", "L", 1)
		w.font("", 8)
		w.multi(contentW, seller.TermsAndConditions, "", "L")
	}
	w.pdf.Ln(8)
	w.font("B", 9)
	w.cell(contentW, "For "+orDash(seller.Name), "", "R", 1)
	w.pdf.Ln(8)
	w.cell(contentW, "Authorised Signatory", "", "R", 1)

	return w.bytes()
}

func renderSimple(view *models.BillView) ([]byte, error) {
	w := newWriter(fmt.Sprintf("Bill %s", view.BillNumber))

	w.font("B", 14)
	w.cell(contentW, "BILL", "", "C", 1)
	w.font("", 9)
	half := contentW / 2
	w.cell(half, "Bill No: "+view.BillNumber, "", "L", 0)
	w.cell(half, "Date: "+billDate(view), "", "R", 1)
	w.pdf.Ln(2)

	widths := []float64{15, 85, 30, 30, 30}
	w.font("B", 9)
	for i, h := range []string{"S.No", "Item", "Qty", "Rate", "Amount"} {
		w.pdf.CellFormat(widths[i], lineH+2, h, "1", 0, "C", false, 0, "")
	}
	w.pdf.Ln(-1)
	w.font("", 9)
	for i, it := range view.Items {
		w.cell(widths[0], fmt.Sprint(i+1), "1", "C", 0)
		w.cell(widths[1], it.ItemName, "1", "L", 0)
		w.cell(widths[2], FormatAmount(it.Quantity), "1", "R", 0)
		w.cell(widths[3], FormatAmount(it.PricePerUnit), "1", "R", 0)
		w.cell(widths[4], FormatAmount(it.TotalPrice), "1", "R", 1)
	}
	w.pdf.Ln(2)
	w.font("B", 10)
	w.totalRow("Total", view.TotalAmount)

	return w.bytes()
}
