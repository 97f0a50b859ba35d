package workflow

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/katariastoneworld/stoneworld_backend/models"
	"github.com/shopspring/decimal"
)

type fakeState struct {
	customers      map[string]*models.Customer
	products       map[int]*models.Product
	counters       map[models.BillSeries]int64
	bills          []*models.Bill
	nextCustomerID int
	nextBillID     int
}

func (s *fakeState) clone() *fakeState {
	c := &fakeState{
		customers:      map[string]*models.Customer{},
		products:       map[int]*models.Product{},
		counters:       map[models.BillSeries]int64{},
		bills:          append([]*models.Bill(nil), s.bills...),
		nextCustomerID: s.nextCustomerID,
		nextBillID:     s.nextBillID,
	}
	for k, v := range s.customers {
		cp := *v
		c.customers[k] = &cp
	}
	for k, v := range s.products {
		cp := *v
		c.products[k] = &cp
	}
	for k, v := range s.counters {
		c.counters[k] = v
	}
	return c
}

// fakeBillingStore serializes whole transactions and commits by swapping state.
type fakeBillingStore struct {
	mu    sync.Mutex
	state *fakeState

	duplicateFailures int
	deadlockFailures  int
	setQuantityCalls  int
	commits           int
}

func newFakeBillingStore() *fakeBillingStore {
	return &fakeBillingStore{state: &fakeState{
		customers: map[string]*models.Customer{},
		products:  map[int]*models.Product{},
		counters:  map[models.BillSeries]int64{},
	}}
}

func (s *fakeBillingStore) addProduct(p models.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := p
	s.state.products[p.ID] = &cp
}

func (s *fakeBillingStore) product(id int) *models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.state.products[id]
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

func (s *fakeBillingStore) customer(phone string) *models.Customer {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.state.customers[phone]
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

func (s *fakeBillingStore) bills() []*models.Bill {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.Bill(nil), s.state.bills...)
}

func (s *fakeBillingStore) WithinTx(ctx context.Context, fn func(tx BillingTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.state.clone()
	if err := fn(&fakeBillingTx{store: s, state: work}); err != nil {
		return err
	}
	s.state = work
	s.commits++
	return nil
}

type fakeBillingTx struct {
	store *fakeBillingStore
	state *fakeState
}

func (t *fakeBillingTx) ResolveCustomer(ctx context.Context, phone string) (*models.Customer, error) {
	c := t.state.customers[phone]
	if c == nil {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (t *fakeBillingTx) SaveCustomer(ctx context.Context, customer *models.Customer) error {
	if customer.ID == 0 {
		t.state.nextCustomerID++
		customer.ID = t.state.nextCustomerID
	}
	cp := *customer
	t.state.customers[customer.Phone] = &cp
	return nil
}

func (t *fakeBillingTx) ProductByID(ctx context.Context, location string, id int) (*models.Product, error) {
	p := t.state.products[id]
	if p == nil || p.Location != location {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (t *fakeBillingTx) ProductByName(ctx context.Context, location string, name string) (*models.Product, error) {
	ids := make([]int, 0, len(t.state.products))
	for id := range t.state.products {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		p := t.state.products[id]
		if p.Name == name && p.Location == location {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (t *fakeBillingTx) LockProducts(ctx context.Context, ids []int) (map[int]*models.Product, error) {
	if t.store.deadlockFailures > 0 {
		t.store.deadlockFailures--
		return nil, &mysqlDriver.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock; try restarting transaction"}
	}
	locked := map[int]*models.Product{}
	for _, id := range ids {
		if p := t.state.products[id]; p != nil {
			cp := *p
			locked[id] = &cp
		}
	}
	return locked, nil
}

func (t *fakeBillingTx) SetProductQuantity(ctx context.Context, id int, quantity decimal.Decimal) error {
	p := t.state.products[id]
	if p == nil {
		return fmt.Errorf("product %d missing", id)
	}
	p.Quantity = quantity
	t.store.setQuantityCalls++
	return nil
}

func (t *fakeBillingTx) NextBillNumber(ctx context.Context, series models.BillSeries) (string, error) {
	next := t.state.counters[series]
	for _, b := range t.state.bills {
		if b.Series != series {
			continue
		}
		if n, err := strconv.ParseInt(b.BillNumber, 10, 64); err == nil && n > next {
			next = n
		}
	}
	next++
	t.state.counters[series] = next
	return strconv.FormatInt(next, 10), nil
}

func (t *fakeBillingTx) CreateBill(ctx context.Context, bill *models.Bill) error {
	if t.store.duplicateFailures > 0 {
		t.store.duplicateFailures--
		return fmt.Errorf("%w: %s", ErrDuplicateBillNumber, bill.BillNumber)
	}
	for _, b := range t.state.bills {
		if b.Series == bill.Series && b.BillNumber == bill.BillNumber {
			return fmt.Errorf("%w: %s", ErrDuplicateBillNumber, bill.BillNumber)
		}
	}
	t.state.nextBillID++
	bill.ID = t.state.nextBillID
	for i, it := range bill.Items {
		it.ID = i + 1
		it.BillId = bill.ID
	}
	t.state.bills = append(t.state.bills, bill)
	return nil
}

type notification struct {
	view  *models.BillView
	email string
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []notification
}

func (n *fakeNotifier) Notify(ctx context.Context, view *models.BillView, email string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notification{view: view, email: email})
}

// countingLocker serializes per series like the real locker and counts acquisitions.
type countingLocker struct {
	mu       sync.Mutex
	bySeries map[models.BillSeries]*sync.Mutex
	acquired int
}

func (l *countingLocker) WithSeriesLock(ctx context.Context, series models.BillSeries, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	if l.bySeries == nil {
		l.bySeries = map[models.BillSeries]*sync.Mutex{}
	}
	m := l.bySeries[series]
	if m == nil {
		m = &sync.Mutex{}
		l.bySeries[series] = m
	}
	l.acquired++
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()
	return fn(ctx)
}
