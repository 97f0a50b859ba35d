package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/katariastoneworld/stoneworld_backend/config"
	"github.com/katariastoneworld/stoneworld_backend/models"
	"github.com/katariastoneworld/stoneworld_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("stoneworld/workflow")

var (
	// ErrDuplicateBillNumber is returned by CreateBill when the series already holds the number.
	ErrDuplicateBillNumber = errors.New("duplicate bill number")
	// ErrConcurrentCustomer is returned by SaveCustomer when another bill created the phone first.
	ErrConcurrentCustomer = errors.New("customer created concurrently")
)

func retryableIssue(err error) bool {
	return errors.Is(err, ErrDuplicateBillNumber) || errors.Is(err, ErrConcurrentCustomer) || isDeadlockErr(err)
}

type CustomerDirectory interface {
	// ResolveCustomer returns the customer owning phone, or a new unsaved one.
	ResolveCustomer(ctx context.Context, phone string) (*models.Customer, error)
	SaveCustomer(ctx context.Context, customer *models.Customer) error
}

type ProductStore interface {
	// ProductByID and ProductByName return (nil, nil) when nothing matches in location.
	ProductByID(ctx context.Context, location string, id int) (*models.Product, error)
	ProductByName(ctx context.Context, location string, name string) (*models.Product, error)
	// LockProducts re-reads the products FOR UPDATE in ascending id order.
	LockProducts(ctx context.Context, ids []int) (map[int]*models.Product, error)
	SetProductQuantity(ctx context.Context, id int, quantity decimal.Decimal) error
}

type NumberAllocator interface {
	NextBillNumber(ctx context.Context, series models.BillSeries) (string, error)
}

type BillWriter interface {
	CreateBill(ctx context.Context, bill *models.Bill) error
}

// BillingTx is one database transaction seen through the issuance ports.
type BillingTx interface {
	CustomerDirectory
	ProductStore
	NumberAllocator
	BillWriter
}

type BillingStore interface {
	// WithinTx commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(tx BillingTx) error) error
}

// SeriesLocker serializes fn against every other allocation in the same series.
type SeriesLocker interface {
	WithSeriesLock(ctx context.Context, series models.BillSeries, fn func(ctx context.Context) error) error
}

type Notifier interface {
	Notify(ctx context.Context, view *models.BillView, email string)
}

type BillItemRequest struct {
	ItemName        string          `json:"itemName" binding:"required"`
	Category        string          `json:"category" binding:"required"`
	PricePerUnit    decimal.Decimal `json:"pricePerUnit"`
	Quantity        decimal.Decimal `json:"quantity"`
	ProductImageUrl string          `json:"productImageUrl"`
	ProductId       *int            `json:"productId"`
	Unit            string          `json:"unit"`
}

type BillRequest struct {
	CustomerMobileNumber string             `json:"customerMobileNumber" binding:"required,phone"`
	CustomerName         string             `json:"customerName"`
	Address              string             `json:"address"`
	Gstin                string             `json:"gstin"`
	CustomerEmail        string             `json:"customerEmail" binding:"omitempty,email"`
	Items                []*BillItemRequest `json:"items" binding:"required,min=1,dive,required"`
	TaxPercentage        decimal.Decimal    `json:"taxPercentage"`
	DiscountAmount       decimal.Decimal    `json:"discountAmount"`
	TotalAmount          *decimal.Decimal   `json:"totalAmount"`
	LabourCharge         *decimal.Decimal   `json:"labourCharge"`
	TransportationCharge *decimal.Decimal   `json:"transportationCharge"`
	PaymentMethod        string             `json:"paymentMethod"`
	Notes                string             `json:"notes"`
	SimpleBill           bool               `json:"simpleBill"`
}

// Validate checks the numeric rules binding tags cannot express.
func (r *BillRequest) Validate() error {
	fields := map[string]string{}
	if len(r.Items) == 0 {
		fields["items"] = "min"
	}
	if r.TaxPercentage.IsNegative() {
		fields["taxPercentage"] = "gte"
	}
	if r.DiscountAmount.IsNegative() {
		fields["discountAmount"] = "gte"
	}
	if r.TotalAmount != nil && r.TotalAmount.IsNegative() {
		fields["totalAmount"] = "gte"
	}
	if r.LabourCharge != nil && r.LabourCharge.IsNegative() {
		fields["labourCharge"] = "gte"
	}
	if r.TransportationCharge != nil && r.TransportationCharge.IsNegative() {
		fields["transportationCharge"] = "gte"
	}
	for i, it := range r.Items {
		if it == nil {
			fields[fmt.Sprintf("items[%d]", i)] = "required"
			continue
		}
		if strings.TrimSpace(it.ItemName) == "" {
			fields[fmt.Sprintf("items[%d].itemName", i)] = "required"
		}
		// paise precision keeps the subtotal equal to the sum of item totals
		if !it.PricePerUnit.IsPositive() {
			fields[fmt.Sprintf("items[%d].pricePerUnit", i)] = "gt"
		} else if !it.PricePerUnit.Equal(utils.Round2(it.PricePerUnit)) {
			fields[fmt.Sprintf("items[%d].pricePerUnit", i)] = "decimals"
		}
		if !it.Quantity.IsPositive() {
			fields[fmt.Sprintf("items[%d].quantity", i)] = "gt"
		} else if !it.Quantity.Equal(utils.Round2(it.Quantity)) {
			fields[fmt.Sprintf("items[%d].quantity", i)] = "decimals"
		}
	}
	if len(fields) > 0 {
		appErr := utils.ValidationError("invalid bill request")
		appErr.Fields = fields
		return appErr
	}
	return nil
}

// SeriesFor derives the bill series from the tax rate alone.
func SeriesFor(taxPercentage decimal.Decimal) models.BillSeries {
	if taxPercentage.IsPositive() {
		return models.BillSeriesGST
	}
	return models.BillSeriesNonGST
}

type BillIssuer struct {
	store      BillingStore
	locker     SeriesLocker
	notifier   Notifier
	maxRetries int
	now        func() time.Time
	logger     *logrus.Logger
}

func NewBillIssuer(store BillingStore, locker SeriesLocker, notifier Notifier) *BillIssuer {
	return &BillIssuer{
		store:      store,
		locker:     locker,
		notifier:   notifier,
		maxRetries: config.IntFromEnv("BILL_NUMBER_MAX_RETRIES", 3),
		now:        time.Now,
		logger:     config.GetLogger(),
	}
}

// Issue creates a bill for the caller's location and hands it to the notifier after commit.
func (bi *BillIssuer) Issue(ctx context.Context, req *BillRequest) (*models.BillView, error) {
	location, ok := utils.GetLocationFromContext(ctx)
	if !ok || strings.TrimSpace(location) == "" {
		return nil, utils.NewAppError(utils.ErrUnauthorized, "location is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	series := SeriesFor(req.TaxPercentage)

	ctx, span := tracer.Start(ctx, "BillIssuer.Issue", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	span.SetAttributes(
		attribute.String("bill.series", string(series)),
		attribute.String("bill.location", location),
		attribute.Int("bill.items", len(req.Items)),
	)

	var bill *models.Bill
	var err error
	attempts := bi.maxRetries
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		bill, err = bi.issueOnce(ctx, location, series, req)
		if err == nil || !retryableIssue(err) {
			break
		}
		bi.logger.WithFields(logrus.Fields{
			"field":   "BillIssuer",
			"series":  series,
			"attempt": attempt,
		}).Warn("bill issuance collided, retrying: " + err.Error())
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if retryableIssue(err) {
			return nil, &utils.AppError{Category: utils.ErrDuplicateBillNumber, Message: "bill collided with a concurrent bill, please retry", Err: err}
		}
		return nil, err
	}
	span.SetAttributes(attribute.String("bill.number", bill.BillNumber))

	view := models.NewBillView(bill)
	if bi.notifier != nil {
		bi.notifier.Notify(context.WithoutCancel(ctx), view, bill.Customer.Email)
	}
	return view, nil
}

func (bi *BillIssuer) issueOnce(ctx context.Context, location string, series models.BillSeries, req *BillRequest) (*models.Bill, error) {
	var bill *models.Bill
	run := func(ctx context.Context) error {
		var err error
		bill, err = bi.issueInTx(ctx, location, series, req)
		return err
	}
	var err error
	if bi.locker != nil {
		err = bi.locker.WithSeriesLock(ctx, series, run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		return nil, err
	}
	return bill, nil
}

// issueInTx runs customer merge through stock deduction in one transaction.
func (bi *BillIssuer) issueInTx(ctx context.Context, location string, series models.BillSeries, req *BillRequest) (*models.Bill, error) {
	var bill *models.Bill
	err := bi.store.WithinTx(ctx, func(tx BillingTx) error {
		customer, err := mergeCustomer(ctx, tx, location, req)
		if err != nil {
			return err
		}

		totals := computeTotals(req)

		groups, err := groupStock(ctx, tx, location, req.Items)
		if err != nil {
			return err
		}
		locked, err := lockAndValidateStock(ctx, tx, groups)
		if err != nil {
			return err
		}

		number, err := tx.NextBillNumber(ctx, series)
		if err != nil {
			return err
		}

		bill = bi.buildBill(series, number, customer, req, totals, groups)
		if err := tx.CreateBill(ctx, bill); err != nil {
			return err
		}

		return deductStock(ctx, tx, groups, locked)
	})
	if err != nil {
		return nil, err
	}
	return bill, nil
}

// mergeCustomer overwrites every customer field the request supplies non-empty.
func mergeCustomer(ctx context.Context, tx BillingTx, location string, req *BillRequest) (*models.Customer, error) {
	phone := strings.TrimSpace(req.CustomerMobileNumber)
	customer, err := tx.ResolveCustomer(ctx, phone)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		customer = &models.Customer{}
	}
	customer.Phone = phone
	if v := strings.TrimSpace(req.CustomerName); v != "" {
		customer.Name = v
		customer.CustomerName = v
	}
	if v := strings.TrimSpace(req.Address); v != "" {
		customer.Address = v
	}
	if v := strings.TrimSpace(req.Gstin); v != "" {
		customer.Gstin = strings.ToUpper(v)
	}
	if v := strings.TrimSpace(req.CustomerEmail); v != "" {
		customer.Email = v
	}
	customer.Location = location
	if err := tx.SaveCustomer(ctx, customer); err != nil {
		return nil, err
	}
	return customer, nil
}

type billTotals struct {
	totalSqft            decimal.Decimal
	subtotal             decimal.Decimal
	taxRate              decimal.Decimal
	taxAmount            decimal.Decimal
	labourCharge         decimal.Decimal
	transportationCharge decimal.Decimal
	discount             decimal.Decimal
	total                decimal.Decimal
}

func computeTotals(req *BillRequest) billTotals {
	var t billTotals
	for _, it := range req.Items {
		t.totalSqft = t.totalSqft.Add(it.Quantity)
		t.subtotal = t.subtotal.Add(it.PricePerUnit.Mul(it.Quantity))
	}
	t.totalSqft = utils.Round2(t.totalSqft)
	t.subtotal = utils.Round2(t.subtotal)

	if SeriesFor(req.TaxPercentage) == models.BillSeriesGST {
		t.taxRate = utils.Round2(req.TaxPercentage)
		t.taxAmount = utils.Percent(t.subtotal, req.TaxPercentage)
	}
	t.labourCharge = utils.Round2(utils.DereferencePtr(req.LabourCharge))
	t.transportationCharge = utils.Round2(utils.DereferencePtr(req.TransportationCharge))
	t.discount = utils.Round2(req.DiscountAmount)

	if req.TotalAmount != nil {
		t.total = utils.Round2(*req.TotalAmount)
	} else {
		t.total = utils.ClampZero(utils.Round2(
			t.subtotal.Add(t.taxAmount).Add(t.labourCharge).Add(t.transportationCharge).Sub(t.discount),
		))
	}
	return t
}

func (bi *BillIssuer) buildBill(series models.BillSeries, number string, customer *models.Customer, req *BillRequest, t billTotals, groups []*stockGroup) *models.Bill {
	now := bi.now()
	bill := &models.Bill{
		Series: series,
		BillHeader: models.BillHeader{
			BillNumber:           number,
			CustomerId:           customer.ID,
			BillDate:             time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()),
			TotalSqft:            t.totalSqft,
			Subtotal:             t.subtotal,
			ServiceCharge:        decimal.Zero,
			LabourCharge:         t.labourCharge,
			TransportationCharge: t.transportationCharge,
			DiscountAmount:       t.discount,
			TotalAmount:          t.total,
			PaymentStatus:        models.PaymentStatusPaid,
			PaymentMethod:        strings.TrimSpace(req.PaymentMethod),
			Notes:                req.Notes,
			SimpleBill:           req.SimpleBill || !req.TaxPercentage.IsPositive(),
			CreatedAt:            now,
		},
		TaxRate:   t.taxRate,
		TaxAmount: t.taxAmount,
		Customer:  customer,
	}

	resolved := resolvedProducts(groups)
	for i, it := range req.Items {
		product := resolved[i]
		item := &models.BillItem{
			ProductName:     strings.TrimSpace(it.ItemName),
			ProductType:     it.Category,
			ProductImageUrl: it.ProductImageUrl,
			PricePerUnit:    utils.Round2(it.PricePerUnit),
			Quantity:        utils.Round2(it.Quantity),
			Unit:            itemUnit(product, it),
			ItemTotalPrice:  utils.Round2(it.PricePerUnit.Mul(it.Quantity)),
		}
		if product != nil {
			id := product.ID
			item.ProductId = &id
			if item.ProductImageUrl == "" {
				item.ProductImageUrl = product.PrimaryImageUrl
			}
		} else if it.ProductId != nil && *it.ProductId > 0 {
			id := *it.ProductId
			item.ProductId = &id
		}
		bill.Items = append(bill.Items, item)
	}
	return bill
}

// itemUnit prefers the product's unit, then the request's, then the default.
func itemUnit(product *models.Product, it *BillItemRequest) string {
	if product != nil && strings.TrimSpace(product.Unit) != "" {
		return product.Unit
	}
	if u := strings.TrimSpace(it.Unit); u != "" {
		return u
	}
	return models.DefaultUnit
}
