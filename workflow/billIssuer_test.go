package workflow

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/katariastoneworld/stoneworld_backend/models"
	"github.com/katariastoneworld/stoneworld_backend/utils"
	"github.com/shopspring/decimal"
)

const testLocation = "Bhondsi"

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func intPtr(i int) *int { return &i }

func testCtx() context.Context {
	return utils.SetLocationInContext(context.Background(), testLocation)
}

func newTestIssuer(store BillingStore, notifier Notifier) *BillIssuer {
	bi := NewBillIssuer(store, &countingLocker{}, notifier)
	bi.maxRetries = 3
	bi.now = func() time.Time { return time.Date(2026, 3, 14, 15, 4, 5, 0, time.Local) }
	return bi
}

func slabA(qty string) models.Product {
	return models.Product{ID: 7, Name: "Slab A", Unit: "sqft", Quantity: dec(qty), Location: testLocation}
}

func slabRequest(tax string, qty string) *BillRequest {
	return &BillRequest{
		CustomerMobileNumber: "9876543210",
		CustomerName:         "Ravi",
		CustomerEmail:        "ravi@example.com",
		Items: []*BillItemRequest{
			{ItemName: "Slab A", Category: "marble", PricePerUnit: dec("100"), Quantity: dec(qty), ProductId: intPtr(7)},
		},
		TaxPercentage:  dec(tax),
		DiscountAmount: decimal.Zero,
	}
}

func assertDec(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Fatalf("%s: expected %s, got %s", name, want, got.StringFixed(2))
	}
}

func TestIssue_GstBillComputesTotalsAndDeductsStock(t *testing.T) {
	store := newFakeBillingStore()
	store.addProduct(slabA("10"))
	store.state.counters[models.BillSeriesGST] = 41
	notifier := &fakeNotifier{}

	view, err := newTestIssuer(store, notifier).Issue(testCtx(), slabRequest("18", "5"))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if view.BillType != models.BillSeriesGST {
		t.Fatalf("expected GST bill, got %s", view.BillType)
	}
	if view.BillNumber != "42" {
		t.Fatalf("expected bill number 42, got %s", view.BillNumber)
	}
	assertDec(t, "subtotal", view.Subtotal, "500.00")
	assertDec(t, "taxAmount", view.TaxAmount, "90.00")
	assertDec(t, "totalAmount", view.TotalAmount, "590.00")
	assertDec(t, "totalSqft", view.TotalSqft, "5")
	assertDec(t, "stock", store.product(7).Quantity, "5.00")
	if view.SimpleBill {
		t.Fatalf("taxed bill must not be simple unless requested")
	}
	if view.BillDate != "2026-03-14" {
		t.Fatalf("unexpected bill date %s", view.BillDate)
	}
	if view.PaymentStatus != models.PaymentStatusPaid {
		t.Fatalf("expected PAID, got %s", view.PaymentStatus)
	}
	if len(view.Items) != 1 || view.Items[0].ProductId == nil || *view.Items[0].ProductId != 7 {
		t.Fatalf("expected one item referencing product 7, got %+v", view.Items)
	}
	assertDec(t, "item total", view.Items[0].TotalPrice, "500.00")
}

func TestIssue_TaxZeroIsNonGstAndSimple(t *testing.T) {
	store := newFakeBillingStore()
	store.addProduct(slabA("10"))

	view, err := newTestIssuer(store, nil).Issue(testCtx(), slabRequest("0", "5"))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if view.BillType != models.BillSeriesNonGST {
		t.Fatalf("expected NON_GST bill, got %s", view.BillType)
	}
	assertDec(t, "taxAmount", view.TaxAmount, "0")
	assertDec(t, "totalAmount", view.TotalAmount, "500")
	if !view.SimpleBill {
		t.Fatalf("tax-zero bill must be simple")
	}
	if view.BillNumber != "1" {
		t.Fatalf("expected first NON_GST number 1, got %s", view.BillNumber)
	}
}

func TestIssue_InsufficientStockMutatesNothing(t *testing.T) {
	store := newFakeBillingStore()
	store.addProduct(slabA("3"))
	notifier := &fakeNotifier{}

	_, err := newTestIssuer(store, notifier).Issue(testCtx(), slabRequest("18", "5"))
	if !utils.IsCategory(err, utils.ErrInsufficientStock) {
		t.Fatalf("expected INSUFFICIENT_STOCK, got %v", err)
	}
	assertDec(t, "stock", store.product(7).Quantity, "3")
	if n := len(store.bills()); n != 0 {
		t.Fatalf("expected no bills, got %d", n)
	}
	if c := store.customer("9876543210"); c != nil {
		t.Fatalf("customer merge must roll back, found %+v", c)
	}
	if store.state.counters[models.BillSeriesGST] != 0 {
		t.Fatalf("bill counter must roll back")
	}
	if len(notifier.calls) != 0 {
		t.Fatalf("failed bills must not notify")
	}
}

func TestIssue_GroupsQuantitiesPerProduct(t *testing.T) {
	tests := []struct {
		name      string
		stock     string
		wantErr   bool
		wantStock string
	}{
		{name: "sum fits", stock: "10", wantStock: "4.00"},
		{name: "each fits but sum does not", stock: "5.5", wantErr: true, wantStock: "5.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeBillingStore()
			store.addProduct(slabA(tt.stock))
			req := slabRequest("0", "2.5")
			req.Items = append(req.Items,
				&BillItemRequest{ItemName: "Slab A", Category: "marble", PricePerUnit: dec("100"), Quantity: dec("2.5"), ProductId: intPtr(7)},
				// resolves by name
				&BillItemRequest{ItemName: "Slab A", Category: "marble", PricePerUnit: dec("90"), Quantity: dec("1")},
			)

			_, err := newTestIssuer(store, nil).Issue(testCtx(), req)
			if tt.wantErr {
				if !utils.IsCategory(err, utils.ErrInsufficientStock) {
					t.Fatalf("expected INSUFFICIENT_STOCK, got %v", err)
				}
			} else if err != nil {
				t.Fatalf("Issue: %v", err)
			}
			assertDec(t, "stock", store.product(7).Quantity, tt.wantStock)
		})
	}
}

func TestIssue_UnknownProductIsOffCatalog(t *testing.T) {
	store := newFakeBillingStore()
	store.addProduct(slabA("10"))
	req := &BillRequest{
		CustomerMobileNumber: "9876543210",
		Items: []*BillItemRequest{
			{ItemName: "Custom cut", Category: "granite", PricePerUnit: dec("250"), Quantity: dec("2"), ProductId: intPtr(999)},
		},
	}

	view, err := newTestIssuer(store, nil).Issue(testCtx(), req)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if store.setQuantityCalls != 0 {
		t.Fatalf("off-catalog items must not touch stock, got %d updates", store.setQuantityCalls)
	}
	assertDec(t, "stock", store.product(7).Quantity, "10")
	if view.Items[0].Unit != models.DefaultUnit {
		t.Fatalf("expected default unit, got %q", view.Items[0].Unit)
	}
}

func TestIssue_ProductInAnotherLocationIsNotResolved(t *testing.T) {
	store := newFakeBillingStore()
	other := slabA("1")
	other.Location = "Tapugada"
	store.addProduct(other)

	if _, err := newTestIssuer(store, nil).Issue(testCtx(), slabRequest("0", "5")); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	assertDec(t, "other location stock", store.product(7).Quantity, "1")
}

func TestIssue_UnitComesFromProductThenRequest(t *testing.T) {
	store := newFakeBillingStore()
	piece := slabA("10")
	piece.Unit = "piece"
	store.addProduct(piece)
	req := slabRequest("0", "1")
	req.Items[0].Unit = "box"
	req.Items = append(req.Items, &BillItemRequest{ItemName: "Adhesive", Category: "misc", PricePerUnit: dec("40"), Quantity: dec("3"), Unit: "packet"})

	view, err := newTestIssuer(store, nil).Issue(testCtx(), req)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if view.Items[0].Unit != "piece" || view.Items[1].Unit != "packet" {
		t.Fatalf("unexpected units %q, %q", view.Items[0].Unit, view.Items[1].Unit)
	}
}

func TestIssue_TotalRules(t *testing.T) {
	tests := []struct {
		name      string
		discount  string
		total     *decimal.Decimal
		labour    *decimal.Decimal
		wantTotal string
	}{
		{name: "explicit total wins", total: decPtr("1000.456"), wantTotal: "1000.46"},
		{name: "discount above subtotal clamps to zero", discount: "1000", wantTotal: "0"},
		{name: "charges are added", discount: "10", labour: decPtr("25.5"), wantTotal: "515.50"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeBillingStore()
			req := slabRequest("0", "5")
			req.Items[0].ProductId = nil
			req.Items[0].ItemName = "Loose tiles"
			if tt.discount != "" {
				req.DiscountAmount = dec(tt.discount)
			}
			req.TotalAmount = tt.total
			req.LabourCharge = tt.labour

			view, err := newTestIssuer(store, nil).Issue(testCtx(), req)
			if err != nil {
				t.Fatalf("Issue: %v", err)
			}
			assertDec(t, "total", view.TotalAmount, tt.wantTotal)
			assertDec(t, "serviceCharge", view.ServiceCharge, "0")
		})
	}
}

func TestIssue_MergesNonEmptyCustomerFields(t *testing.T) {
	store := newFakeBillingStore()
	store.state.customers["9876543210"] = &models.Customer{
		ID: 3, Phone: "9876543210", Name: "Old", CustomerName: "Old", Address: "12 Old Road, Haryana 122001",
		Email: "old@example.com", Location: "Tapugada",
	}
	store.state.nextCustomerID = 3
	req := slabRequest("0", "1")
	req.Items[0].ProductId = nil
	req.CustomerEmail = ""
	req.Gstin = "06abcde1234f1z5"

	view, err := newTestIssuer(store, nil).Issue(testCtx(), req)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	c := store.customer("9876543210")
	if c.ID != 3 || c.Name != "Ravi" || c.Address != "12 Old Road, Haryana 122001" || c.Email != "old@example.com" {
		t.Fatalf("unexpected merge result %+v", c)
	}
	if c.Gstin != "06ABCDE1234F1Z5" || c.Location != testLocation {
		t.Fatalf("expected gstin and location overwritten, got %+v", c)
	}
	if view.CustomerId != 3 || view.CustomerEmail != "old@example.com" {
		t.Fatalf("view must carry merged customer, got %+v", view)
	}
}

func TestIssue_RetriesDuplicateBillNumber(t *testing.T) {
	tests := []struct {
		name       string
		failures   int
		wantErr    bool
		wantNumber string
	}{
		{name: "recovers within budget", failures: 2, wantNumber: "1"},
		{name: "gives up after budget", failures: 5, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeBillingStore()
			store.duplicateFailures = tt.failures
			view, err := newTestIssuer(store, nil).Issue(testCtx(), slabRequest("18", "1"))
			if tt.wantErr {
				if !utils.IsCategory(err, utils.ErrDuplicateBillNumber) {
					t.Fatalf("expected DUPLICATE_BILL_NUMBER, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Issue: %v", err)
			}
			if view.BillNumber != tt.wantNumber {
				t.Fatalf("expected %s, got %s", tt.wantNumber, view.BillNumber)
			}
		})
	}
}

func TestIssue_RetriesDeadlock(t *testing.T) {
	store := newFakeBillingStore()
	store.addProduct(slabA("10"))
	store.deadlockFailures = 1
	view, err := newTestIssuer(store, nil).Issue(testCtx(), slabRequest("18", "4"))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if view.BillNumber != "1" || store.commits != 1 {
		t.Fatalf("bill %s after %d commits", view.BillNumber, store.commits)
	}
	assertDec(t, "stock", store.product(7).Quantity, "6")

	store.deadlockFailures = 5
	_, err = newTestIssuer(store, nil).Issue(testCtx(), slabRequest("0", "1"))
	if !utils.IsCategory(err, utils.ErrDuplicateBillNumber) {
		t.Fatalf("expected retryable conflict after budget, got %v", err)
	}
	assertDec(t, "stock after failed issue", store.product(7).Quantity, "6")
}

func TestRetryableIssue(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{fmt.Errorf("create: %w", ErrDuplicateBillNumber), true},
		{ErrConcurrentCustomer, true},
		{fmt.Errorf("lock products: %w", &mysqlDriver.MySQLError{Number: 1213}), true},
		{&mysqlDriver.MySQLError{Number: 1062}, false},
		{&mysqlDriver.MySQLError{Number: 1205}, false},
		{utils.ValidationError("bad"), false},
	}
	for _, tc := range cases {
		if got := retryableIssue(tc.err); got != tc.want {
			t.Fatalf("retryableIssue(%v) = %v want %v", tc.err, got, tc.want)
		}
	}
}

func TestIssue_ConcurrentBillsGetConsecutiveNumbers(t *testing.T) {
	store := newFakeBillingStore()
	store.addProduct(slabA("100"))
	bi := newTestIssuer(store, nil)

	const n = 25
	numbers := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			view, err := bi.Issue(testCtx(), slabRequest("18", "2"))
			errs[i] = err
			if err == nil {
				numbers[i] = view.BillNumber
			}
		}(i)
	}
	wg.Wait()

	seen := map[int]bool{}
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("Issue %d: %v", i, errs[i])
		}
		num, err := strconv.Atoi(numbers[i])
		if err != nil {
			t.Fatalf("non numeric bill number %q", numbers[i])
		}
		if seen[num] {
			t.Fatalf("bill number %d issued twice", num)
		}
		seen[num] = true
	}
	for i := 1; i <= n; i++ {
		if !seen[i] {
			t.Fatalf("bill number %d missing", i)
		}
	}
	assertDec(t, "stock", store.product(7).Quantity, "50.00")
}

func TestIssue_NotifiesAfterCommit(t *testing.T) {
	store := newFakeBillingStore()
	notifier := &fakeNotifier{}
	req := slabRequest("18", "1")
	req.Items[0].ProductId = nil

	view, err := newTestIssuer(store, notifier).Issue(testCtx(), req)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if len(notifier.calls) != 1 {
		t.Fatalf("expected one notification, got %d", len(notifier.calls))
	}
	call := notifier.calls[0]
	if call.view != view || call.email != "ravi@example.com" {
		t.Fatalf("unexpected notification %+v", call)
	}
	if store.commits != 1 {
		t.Fatalf("expected one commit before notify, got %d", store.commits)
	}
}

func TestIssue_RequiresLocation(t *testing.T) {
	_, err := newTestIssuer(newFakeBillingStore(), nil).Issue(context.Background(), slabRequest("18", "1"))
	if !utils.IsCategory(err, utils.ErrUnauthorized) {
		t.Fatalf("expected UNAUTHORIZED, got %v", err)
	}
}

func TestBillRequestValidate(t *testing.T) {
	req := &BillRequest{
		CustomerMobileNumber: "9876543210",
		TaxPercentage:        dec("-1"),
		DiscountAmount:       dec("-5"),
		TotalAmount:          decPtr("-1"),
		Items: []*BillItemRequest{
			{ItemName: " ", PricePerUnit: dec("0"), Quantity: dec("-2")},
		},
	}
	err := req.Validate()
	if !utils.IsCategory(err, utils.ErrValidationFailed) {
		t.Fatalf("expected VALIDATION_FAILED, got %v", err)
	}
	appErr := err.(*utils.AppError)
	for _, field := range []string{"taxPercentage", "discountAmount", "totalAmount", "items[0].itemName", "items[0].pricePerUnit", "items[0].quantity"} {
		if _, ok := appErr.Fields[field]; !ok {
			t.Fatalf("expected field error for %s, got %v", field, appErr.Fields)
		}
	}

	if err := (&BillRequest{CustomerMobileNumber: "9876543210"}).Validate(); !utils.IsCategory(err, utils.ErrValidationFailed) {
		t.Fatalf("empty item list must fail, got %v", err)
	}

	// 3 x 33.333 would round the subtotal and the item total differently
	precise := slabRequest("18", "3")
	precise.Items[0].PricePerUnit = dec("33.333")
	precise.Items = append(precise.Items, &BillItemRequest{ItemName: "Kota", PricePerUnit: dec("10.50"), Quantity: dec("1.255")})
	err = precise.Validate()
	if !utils.IsCategory(err, utils.ErrValidationFailed) {
		t.Fatalf("expected VALIDATION_FAILED for sub-paise values, got %v", err)
	}
	fields := err.(*utils.AppError).Fields
	if fields["items[0].pricePerUnit"] != "decimals" || fields["items[1].quantity"] != "decimals" {
		t.Fatalf("expected decimals errors, got %v", fields)
	}
	if _, ok := fields["items[1].pricePerUnit"]; ok {
		t.Fatalf("10.50 has two decimals, got %v", fields)
	}
	if err := slabRequest("18", "2.25").Validate(); err != nil {
		t.Fatalf("two-decimal quantity rejected: %v", err)
	}
}

func TestSeriesFor(t *testing.T) {
	if SeriesFor(dec("0.01")) != models.BillSeriesGST {
		t.Fatalf("positive tax must be GST")
	}
	if SeriesFor(decimal.Zero) != models.BillSeriesNonGST {
		t.Fatalf("zero tax must be NON_GST")
	}
}

func TestOutboxDispatcherBackoff(t *testing.T) {
	d := &OutboxDispatcher{InitialBackoff: 10 * time.Second, MaxBackoff: time.Minute}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 10 * time.Second},
		{2, 20 * time.Second},
		{3, 40 * time.Second},
		{4, time.Minute},
		{10, time.Minute},
	}
	for _, tt := range tests {
		if got := d.Backoff(tt.attempt); got != tt.want {
			t.Fatalf("attempt %d: expected %s, got %s", tt.attempt, tt.want, got)
		}
	}
}
