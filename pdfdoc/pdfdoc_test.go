package pdfdoc

import (
	"bytes"
	"testing"
	"time"

	"github.com/katariastoneworld/stoneworld_backend/models"
	"github.com/katariastoneworld/stoneworld_backend/utils"
	"github.com/shopspring/decimal"
)

func TestAmountInWords(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0", "ZERO RUPEES ONLY"},
		{"590", "FIVE HUNDRED NINETY RUPEES ONLY"},
		{"1005", "ONE THOUSAND FIVE RUPEES ONLY"},
		{"354.50", "THREE HUNDRED FIFTY FOUR RUPEES AND FIFTY PAISE ONLY"},
		{"250000", "TWO LAKH FIFTY THOUSAND RUPEES ONLY"},
		{"12345678", "ONE CRORE TWENTY THREE LAKH FORTY FIVE THOUSAND SIX HUNDRED SEVENTY EIGHT RUPEES ONLY"},
		{"99.999", "ONE HUNDRED RUPEES ONLY"},
	}
	for _, tc := range cases {
		got := AmountInWords(decimal.RequireFromString(tc.in))
		if got != tc.want {
			t.Errorf("AmountInWords(%s) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	cases := map[string]string{
		"0":         "0.00",
		"590":       "590.00",
		"1234.5":    "1,234.50",
		"123456789": "123,456,789.00",
		"-4500":     "-4,500.00",
	}
	for in, want := range cases {
		if got := FormatAmount(decimal.RequireFromString(in)); got != want {
			t.Errorf("FormatAmount(%s) = %q, want %q", in, got, want)
		}
	}
}

func TestExtractState(t *testing.T) {
	cases := []struct {
		address string
		want    string
	}{
		{"", ""},
		{"Plot 4, Bhondsi, Gurugram, Haryana 122102", "HARYANA"},
		{"12 MG Road, Jaipur, Rajasthan - 302001", "RAJASTHAN"},
		{"Shop 9, Sector 5, Noida City, Gautam Nagar Dist 201301", "GAUTAM NAGAR"},
		{"Near bus stand, Karnal Haryana", "HARYANA"},
		{"Lane 3, Old Town", ""},
	}
	for _, tc := range cases {
		if got := ExtractState(tc.address); got != tc.want {
			t.Errorf("ExtractState(%q) = %q, want %q", tc.address, got, tc.want)
		}
	}
}

func TestSplitTax(t *testing.T) {
	seller := "Kataria Stone World, Bhondsi, Gurugram, Haryana 122102"

	intra := SplitTax(decimal.RequireFromString("90.01"), seller, "Sohna Road, Gurugram, Haryana 122018")
	if !intra.SameState {
		t.Fatalf("expected intra-state split, got %+v", intra)
	}
	if !intra.CGST.Equal(decimal.RequireFromString("45.01")) || !intra.SGST.Equal(decimal.RequireFromString("45")) {
		t.Fatalf("unexpected CGST/SGST: %s/%s", intra.CGST, intra.SGST)
	}
	if !intra.IGST.IsZero() {
		t.Fatalf("IGST should be zero for intra-state, got %s", intra.IGST)
	}

	inter := SplitTax(decimal.RequireFromString("90"), seller, "Civil Lines, Jaipur, Rajasthan 302006")
	if inter.SameState || !inter.IGST.Equal(decimal.RequireFromString("90")) {
		t.Fatalf("expected IGST 90, got %+v", inter)
	}

	unknown := SplitTax(decimal.RequireFromString("90"), seller, "")
	if unknown.SameState || !unknown.IGST.Equal(decimal.RequireFromString("90")) {
		t.Fatalf("a buyer without address is inter-state, got %+v", unknown)
	}
}

func sampleView(tax string, simple bool) *models.BillView {
	pid := 7
	return &models.BillView{
		Id:                   1,
		BillNumber:           "42",
		BillType:             models.BillSeriesGST,
		CustomerMobileNumber: "9876543210",
		CustomerName:         "Ravi Kumar",
		Address:              "Sohna Road, Gurugram, Haryana 122018",
		BillDate:             time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC).Format(models.BillDateLayout),
		Items: []*models.BillItemView{{
			ProductId: &pid, ItemName: "Slab A", Category: "Marble", Unit: "sqft",
			PricePerUnit: decimal.RequireFromString("100"), Quantity: decimal.RequireFromString("5"),
			TotalPrice: decimal.RequireFromString("500"),
		}},
		Subtotal:      decimal.RequireFromString("500"),
		TaxPercentage: decimal.RequireFromString(tax),
		TaxAmount:     decimal.RequireFromString("500").Mul(decimal.RequireFromString(tax)).Div(decimal.NewFromInt(100)),
		TotalAmount:   decimal.RequireFromString("590"),
		SimpleBill:    simple,
	}
}

func TestRenderBill(t *testing.T) {
	seller := &models.Seller{
		Name: "Kataria Stone World", Address: "Bhondsi, Gurugram, Haryana 122102",
		Gstin: "06ABCDE1234F1Z5", BankName: "HDFC", AccountNumber: "0001", IfscCode: "HDFC0000001",
		TermsAndConditions: "Goods once sold will not be taken back.",
	}
	codes := map[string]string{"HARYANA": "06"}

	full, err := RenderBill(sampleView("18", false), seller, codes)
	if err != nil {
		t.Fatalf("RenderBill full: %v", err)
	}
	if !bytes.HasPrefix(full, []byte("%PDF")) {
		t.Fatalf("full invoice is not a PDF")
	}

	simple, err := RenderBill(sampleView("0", false), nil, nil)
	if err != nil {
		t.Fatalf("RenderBill simple: %v", err)
	}
	if !bytes.HasPrefix(simple, []byte("%PDF")) {
		t.Fatalf("simple bill is not a PDF")
	}

	if _, err := RenderBill(sampleView("18", false), nil, codes); !utils.IsCategory(err, utils.ErrNotFound) {
		t.Fatalf("expected NOT_FOUND without seller, got %v", err)
	}
	if _, err := RenderBill(sampleView("18", true), nil, codes); err != nil {
		t.Fatalf("a simple GST bill does not need a seller: %v", err)
	}
}

func TestFileName(t *testing.T) {
	if got := FileName(&models.BillView{BillNumber: "42"}); got != "Bill_42.pdf" {
		t.Fatalf("FileName = %q", got)
	}
}
