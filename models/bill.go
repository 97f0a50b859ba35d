package models

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/katariastoneworld/stoneworld_backend/config"
	"github.com/katariastoneworld/stoneworld_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BillHeader holds the columns shared by both bill series.
type BillHeader struct {
	ID                   int             `gorm:"primary_key" json:"id"`
	BillNumber           string          `gorm:"size:50;not null;uniqueIndex" json:"billNumber"`
	CustomerId           int             `gorm:"index;not null" json:"customerId"`
	BillDate             time.Time       `gorm:"type:date;not null;index" json:"billDate"`
	TotalSqft            decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"totalSqft"`
	Subtotal             decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"subtotal"`
	ServiceCharge        decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"serviceCharge"`
	LabourCharge         decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"labourCharge"`
	TransportationCharge decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"transportationCharge"`
	DiscountAmount       decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"discountAmount"`
	TotalAmount          decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"totalAmount"`
	PaymentStatus        PaymentStatus   `gorm:"size:20;not null;default:'PAID'" json:"paymentStatus"`
	PaymentMethod        string          `gorm:"size:50" json:"paymentMethod"`
	Notes                string          `gorm:"type:text" json:"notes"`
	SimpleBill           bool            `gorm:"not null;default:false" json:"simpleBill"`
	CreatedAt            time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt            time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

// BillItem is an immutable line snapshot. ProductId is a weak reference.
type BillItem struct {
	ID              int             `gorm:"primary_key" json:"id"`
	BillId          int             `gorm:"index;not null" json:"billId"`
	ProductId       *int            `gorm:"index" json:"productId"`
	ProductName     string          `gorm:"size:255;not null" json:"productName"`
	ProductType     string          `gorm:"size:100" json:"productType"`
	ProductImageUrl string          `gorm:"size:500" json:"productImageUrl"`
	PricePerUnit    decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"pricePerUnit"`
	Quantity        decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"quantity"`
	Unit            string          `gorm:"size:20;not null;default:'sqft'" json:"unit"`
	ItemTotalPrice  decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"itemTotalPrice"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"createdAt"`
}

type GstBill struct {
	BillHeader `gorm:"embedded"`
	TaxRate    decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	TaxAmount  decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0"`
	Customer   *Customer       `gorm:"foreignKey:CustomerId"`
	Items      []*GstBillItem  `gorm:"foreignKey:BillId"`
}

func (GstBill) TableName() string { return "bills_gst" }

type GstBillItem struct {
	BillItem `gorm:"embedded"`
}

func (GstBillItem) TableName() string { return "bill_items_gst" }

type NonGstBill struct {
	BillHeader `gorm:"embedded"`
	Customer   *Customer         `gorm:"foreignKey:CustomerId"`
	Items      []*NonGstBillItem `gorm:"foreignKey:BillId"`
}

func (NonGstBill) TableName() string { return "bills_non_gst" }

type NonGstBillItem struct {
	BillItem `gorm:"embedded"`
}

func (NonGstBillItem) TableName() string { return "bill_items_non_gst" }

// Bill is the series-agnostic form used by issuance and retrieval.
type Bill struct {
	Series BillSeries
	BillHeader
	TaxRate   decimal.Decimal
	TaxAmount decimal.Decimal
	Customer  *Customer
	Items     []*BillItem
}

func (b *Bill) ToGst() *GstBill {
	g := &GstBill{BillHeader: b.BillHeader, TaxRate: b.TaxRate, TaxAmount: b.TaxAmount}
	for _, it := range b.Items {
		g.Items = append(g.Items, &GstBillItem{BillItem: *it})
	}
	return g
}

func (b *Bill) ToNonGst() *NonGstBill {
	n := &NonGstBill{BillHeader: b.BillHeader}
	for _, it := range b.Items {
		n.Items = append(n.Items, &NonGstBillItem{BillItem: *it})
	}
	return n
}

func BillFromGst(g *GstBill) *Bill {
	b := &Bill{Series: BillSeriesGST, BillHeader: g.BillHeader, TaxRate: g.TaxRate, TaxAmount: g.TaxAmount, Customer: g.Customer}
	for _, it := range g.Items {
		item := it.BillItem
		b.Items = append(b.Items, &item)
	}
	return b
}

func BillFromNonGst(n *NonGstBill) *Bill {
	b := &Bill{Series: BillSeriesNonGST, BillHeader: n.BillHeader, Customer: n.Customer}
	for _, it := range n.Items {
		item := it.BillItem
		b.Items = append(b.Items, &item)
	}
	return b
}

type BillItemView struct {
	Id              int             `json:"id"`
	ProductId       *int            `json:"productId"`
	ItemName        string          `json:"itemName"`
	Category        string          `json:"category"`
	ProductImageUrl string          `json:"productImageUrl"`
	PricePerUnit    decimal.Decimal `json:"pricePerUnit"`
	Quantity        decimal.Decimal `json:"quantity"`
	Unit            string          `json:"unit"`
	TotalPrice      decimal.Decimal `json:"totalPrice"`
}

// BillView is the response shape of a bill.
type BillView struct {
	Id                   int             `json:"id"`
	BillNumber           string          `json:"billNumber"`
	BillType             BillSeries      `json:"billType"`
	CustomerId           int             `json:"customerId"`
	CustomerMobileNumber string          `json:"customerMobileNumber"`
	CustomerName         string          `json:"customerName"`
	Address              string          `json:"address"`
	Gstin                string          `json:"gstin"`
	CustomerEmail        string          `json:"customerEmail"`
	BillDate             string          `json:"billDate"`
	Items                []*BillItemView `json:"items"`
	TotalSqft            decimal.Decimal `json:"totalSqft"`
	Subtotal             decimal.Decimal `json:"subtotal"`
	TaxPercentage        decimal.Decimal `json:"taxPercentage"`
	TaxAmount            decimal.Decimal `json:"taxAmount"`
	ServiceCharge        decimal.Decimal `json:"serviceCharge"`
	LabourCharge         decimal.Decimal `json:"labourCharge"`
	TransportationCharge decimal.Decimal `json:"transportationCharge"`
	DiscountAmount       decimal.Decimal `json:"discountAmount"`
	TotalAmount          decimal.Decimal `json:"totalAmount"`
	PaymentStatus        PaymentStatus   `json:"paymentStatus"`
	PaymentMethod        string          `json:"paymentMethod"`
	Notes                string          `json:"notes"`
	CreatedAt            time.Time       `json:"createdAt"`
	SimpleBill           bool            `json:"simpleBill"`
}

const BillDateLayout = "2006-01-02"

func NewBillView(b *Bill) *BillView {
	v := &BillView{
		Id:                   b.ID,
		BillNumber:           b.BillNumber,
		BillType:             b.Series,
		CustomerId:           b.CustomerId,
		BillDate:             b.BillDate.Format(BillDateLayout),
		Items:                make([]*BillItemView, 0, len(b.Items)),
		TotalSqft:            b.TotalSqft,
		Subtotal:             b.Subtotal,
		TaxPercentage:        b.TaxRate,
		TaxAmount:            b.TaxAmount,
		ServiceCharge:        b.ServiceCharge,
		LabourCharge:         b.LabourCharge,
		TransportationCharge: b.TransportationCharge,
		DiscountAmount:       b.DiscountAmount,
		TotalAmount:          b.TotalAmount,
		PaymentStatus:        b.PaymentStatus,
		PaymentMethod:        b.PaymentMethod,
		Notes:                b.Notes,
		CreatedAt:            b.CreatedAt,
		SimpleBill:           b.SimpleBill,
	}
	if b.Series == BillSeriesNonGST {
		v.TaxPercentage = decimal.Zero
		v.TaxAmount = decimal.Zero
	}
	if c := b.Customer; c != nil {
		v.CustomerMobileNumber = c.Phone
		v.CustomerName = c.DisplayName()
		v.Address = c.Address
		v.Gstin = c.Gstin
		v.CustomerEmail = c.Email
	}
	for _, it := range b.Items {
		unit := it.Unit
		if unit == "" {
			unit = DefaultUnit
		}
		v.Items = append(v.Items, &BillItemView{
			Id:              it.ID,
			ProductId:       it.ProductId,
			ItemName:        it.ProductName,
			Category:        it.ProductType,
			ProductImageUrl: it.ProductImageUrl,
			PricePerUnit:    it.PricePerUnit,
			Quantity:        it.Quantity,
			Unit:            unit,
			TotalPrice:      it.ItemTotalPrice,
		})
	}
	return v
}

/* retrieval, scoped by the owning customer's location */

func scopedBillQuery(ctx context.Context, location string) *gorm.DB {
	return config.GetDB().WithContext(ctx).
		Joins("Customer").
		Where("Customer.location = ?", location).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") })
}

func findBill(ctx context.Context, location string, series BillSeries, cond string, args ...any) (*Bill, error) {
	q := scopedBillQuery(ctx, location)
	var err error
	var bill *Bill
	switch series {
	case BillSeriesGST:
		var g GstBill
		if err = q.Where(cond, args...).First(&g).Error; err == nil {
			bill = BillFromGst(&g)
		}
	case BillSeriesNonGST:
		var n NonGstBill
		if err = q.Where(cond, args...).First(&n).Error; err == nil {
			bill = BillFromNonGst(&n)
		}
	default:
		return nil, utils.ValidationError("invalid bill type: %s", series)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return bill, nil
}

func GetBill(ctx context.Context, series BillSeries, id int) (*Bill, error) {
	location, err := requireLocation(ctx)
	if err != nil {
		return nil, err
	}
	table := GstBill{}.TableName()
	if series == BillSeriesNonGST {
		table = NonGstBill{}.TableName()
	}
	return findBill(ctx, location, series, table+".id = ?", id)
}

// GetBillAnySeries tries the GST series first, then Non-GST.
func GetBillAnySeries(ctx context.Context, id int) (*Bill, error) {
	bill, err := GetBill(ctx, BillSeriesGST, id)
	if err == nil || !errors.Is(err, utils.ErrorRecordNotFound) {
		return bill, err
	}
	return GetBill(ctx, BillSeriesNonGST, id)
}

// GetBillByNumber tries the GST series first, then Non-GST.
func GetBillByNumber(ctx context.Context, billNumber string) (*Bill, error) {
	location, err := requireLocation(ctx)
	if err != nil {
		return nil, err
	}
	billNumber = strings.TrimSpace(billNumber)
	bill, err := findBill(ctx, location, BillSeriesGST, GstBill{}.TableName()+".bill_number = ?", billNumber)
	if err == nil || !errors.Is(err, utils.ErrorRecordNotFound) {
		return bill, err
	}
	return findBill(ctx, location, BillSeriesNonGST, NonGstBill{}.TableName()+".bill_number = ?", billNumber)
}

func listBills(ctx context.Context, location string, cond string, args ...any) ([]*Bill, error) {
	var gst []*GstBill
	q := scopedBillQuery(ctx, location)
	if cond != "" {
		q = q.Where(cond, args...)
	}
	if err := q.Find(&gst).Error; err != nil {
		return nil, err
	}
	var nonGst []*NonGstBill
	q = scopedBillQuery(ctx, location)
	if cond != "" {
		q = q.Where(cond, args...)
	}
	if err := q.Find(&nonGst).Error; err != nil {
		return nil, err
	}

	bills := make([]*Bill, 0, len(gst)+len(nonGst))
	for _, g := range gst {
		bills = append(bills, BillFromGst(g))
	}
	for _, n := range nonGst {
		bills = append(bills, BillFromNonGst(n))
	}
	SortBillsNewestFirst(bills)
	return bills, nil
}

// SortBillsNewestFirst orders by bill date desc, then creation time desc.
func SortBillsNewestFirst(bills []*Bill) {
	sort.SliceStable(bills, func(i, j int) bool {
		if !bills[i].BillDate.Equal(bills[j].BillDate) {
			return bills[i].BillDate.After(bills[j].BillDate)
		}
		return bills[i].CreatedAt.After(bills[j].CreatedAt)
	})
}

func GetBills(ctx context.Context) ([]*Bill, error) {
	location, err := requireLocation(ctx)
	if err != nil {
		return nil, err
	}
	return listBills(ctx, location, "")
}

func GetBillsByCustomerPhone(ctx context.Context, phone string) ([]*Bill, error) {
	location, err := requireLocation(ctx)
	if err != nil {
		return nil, err
	}
	return listBills(ctx, location, "Customer.phone = ?", strings.TrimSpace(phone))
}
