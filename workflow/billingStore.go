package workflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/katariastoneworld/stoneworld_backend/models"
	"github.com/katariastoneworld/stoneworld_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormBillingStore runs bill issuance against MySQL.
type GormBillingStore struct {
	DB *gorm.DB
}

func NewGormBillingStore(db *gorm.DB) *GormBillingStore {
	return &GormBillingStore{DB: db}
}

// bill issuance relies on READ COMMITTED: locking reads see rows committed by the previous holder.
var billingTxOptions = &sql.TxOptions{Isolation: sql.LevelReadCommitted}

func (s *GormBillingStore) WithinTx(ctx context.Context, fn func(tx BillingTx) error) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormBillingTx{tx: tx})
	}, billingTxOptions)
}

type gormBillingTx struct {
	tx *gorm.DB
}

// customers are keyed by phone across every location
func (t *gormBillingTx) globalTx(ctx context.Context) *gorm.DB {
	return t.tx.WithContext(utils.SetSkipLocationScopeInContext(ctx, true))
}

func (t *gormBillingTx) ResolveCustomer(ctx context.Context, phone string) (*models.Customer, error) {
	var customer models.Customer
	err := t.globalTx(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("phone = ?", phone).
		First(&customer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &customer, nil
}

func (t *gormBillingTx) SaveCustomer(ctx context.Context, customer *models.Customer) error {
	db := t.globalTx(ctx)
	if customer.ID == 0 {
		if err := db.Create(customer).Error; err != nil {
			if isDuplicateKeyErr(err) {
				return fmt.Errorf("%w: %s", ErrConcurrentCustomer, customer.Phone)
			}
			return err
		}
		return nil
	}
	return db.Save(customer).Error
}

func (t *gormBillingTx) findProduct(ctx context.Context, query string, args ...any) (*models.Product, error) {
	var product models.Product
	err := t.tx.WithContext(ctx).Where(query, args...).Order("id ASC").First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

func (t *gormBillingTx) ProductByID(ctx context.Context, location string, id int) (*models.Product, error) {
	return t.findProduct(ctx, "id = ? AND location = ?", id, location)
}

func (t *gormBillingTx) ProductByName(ctx context.Context, location string, name string) (*models.Product, error) {
	return t.findProduct(ctx, "name = ? AND location = ?", name, location)
}

func (t *gormBillingTx) LockProducts(ctx context.Context, ids []int) (map[int]*models.Product, error) {
	sorted := append([]int(nil), ids...)
	sort.Ints(sorted)
	var products []*models.Product
	err := t.tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", sorted).
		Order("id ASC").
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	locked := make(map[int]*models.Product, len(products))
	for _, p := range products {
		locked[p.ID] = p
	}
	return locked, nil
}

func (t *gormBillingTx) SetProductQuantity(ctx context.Context, id int, quantity decimal.Decimal) error {
	return t.tx.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Update("quantity", quantity).Error
}

func (t *gormBillingTx) NextBillNumber(ctx context.Context, series models.BillSeries) (string, error) {
	ctx, span := tracer.Start(ctx, "AllocateBillNumber")
	defer span.End()
	return AllocateBillNumber(t.tx.WithContext(ctx), series)
}

// CreateBill writes header and items to the series tables and copies generated ids back.
func (t *gormBillingTx) CreateBill(ctx context.Context, bill *models.Bill) error {
	db := t.tx.WithContext(ctx).Omit("Customer")
	var err error
	switch bill.Series {
	case models.BillSeriesGST:
		row := bill.ToGst()
		if err = db.Create(row).Error; err == nil {
			bill.BillHeader = row.BillHeader
			for i, it := range row.Items {
				bill.Items[i].ID = it.ID
				bill.Items[i].BillId = it.BillId
			}
		}
	case models.BillSeriesNonGST:
		row := bill.ToNonGst()
		if err = db.Create(row).Error; err == nil {
			bill.BillHeader = row.BillHeader
			for i, it := range row.Items {
				bill.Items[i].ID = it.ID
				bill.Items[i].BillId = it.BillId
			}
		}
	default:
		return utils.ValidationError("invalid bill type: %s", bill.Series)
	}
	if err != nil {
		if isDuplicateKeyErr(err) {
			return fmt.Errorf("%w: %s %s", ErrDuplicateBillNumber, bill.Series, bill.BillNumber)
		}
		return err
	}
	return nil
}
