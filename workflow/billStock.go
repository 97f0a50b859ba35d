package workflow

import (
	"context"
	"sort"
	"strings"

	"github.com/katariastoneworld/stoneworld_backend/models"
	"github.com/katariastoneworld/stoneworld_backend/utils"
	"github.com/shopspring/decimal"
)

// stockGroup is the summed quantity of every line item resolving to one product.
type stockGroup struct {
	product  *models.Product
	quantity decimal.Decimal
	items    []int
}

// resolveProduct tries the product id, then an exact name match, both within location.
// Items resolving to neither are off-catalog and carry no stock.
func resolveProduct(ctx context.Context, store ProductStore, location string, it *BillItemRequest) (*models.Product, error) {
	if it.ProductId != nil && *it.ProductId > 0 {
		product, err := store.ProductByID(ctx, location, *it.ProductId)
		if err != nil {
			return nil, err
		}
		if product != nil {
			return product, nil
		}
	}
	name := strings.TrimSpace(it.ItemName)
	if name == "" {
		return nil, nil
	}
	return store.ProductByName(ctx, location, name)
}

// groupStock resolves every item and sums rounded quantities per product, ordered by product id.
func groupStock(ctx context.Context, store ProductStore, location string, items []*BillItemRequest) ([]*stockGroup, error) {
	byId := map[int]*stockGroup{}
	for i, it := range items {
		product, err := resolveProduct(ctx, store, location, it)
		if err != nil {
			return nil, err
		}
		if product == nil {
			continue
		}
		g, ok := byId[product.ID]
		if !ok {
			g = &stockGroup{product: product}
			byId[product.ID] = g
		}
		g.quantity = g.quantity.Add(utils.Round2(it.Quantity))
		g.items = append(g.items, i)
	}

	groups := make([]*stockGroup, 0, len(byId))
	for _, g := range byId {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].product.ID < groups[j].product.ID })
	return groups, nil
}

// resolvedProducts maps item index to its product.
func resolvedProducts(groups []*stockGroup) map[int]*models.Product {
	resolved := map[int]*models.Product{}
	for _, g := range groups {
		for _, i := range g.items {
			resolved[i] = g.product
		}
	}
	return resolved
}

func insufficientStock(p *models.Product, requested decimal.Decimal) error {
	appErr := utils.NewAppError(utils.ErrInsufficientStock,
		"insufficient stock for %s: available %s, requested %s",
		p.Name, p.Quantity.StringFixed(2), requested.StringFixed(2))
	appErr.Fields = map[string]string{p.Name: "stock"}
	return appErr
}

// lockAndValidateStock locks every grouped product and fails before any write
// when a product vanished or would go negative.
func lockAndValidateStock(ctx context.Context, store ProductStore, groups []*stockGroup) (map[int]*models.Product, error) {
	if len(groups) == 0 {
		return map[int]*models.Product{}, nil
	}
	ids := make([]int, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.product.ID)
	}
	locked, err := store.LockProducts(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		p, ok := locked[g.product.ID]
		if !ok || p == nil {
			return nil, utils.NotFoundError("product %d not found", g.product.ID)
		}
		g.product = p
		if p.Quantity.Sub(g.quantity).IsNegative() {
			return nil, insufficientStock(p, g.quantity)
		}
	}
	return locked, nil
}

// deductStock writes back current - requested for every group. Rows are still
// locked from validation.
func deductStock(ctx context.Context, store ProductStore, groups []*stockGroup, locked map[int]*models.Product) error {
	for _, g := range groups {
		p := locked[g.product.ID]
		if p == nil {
			return utils.NotFoundError("product %d not found", g.product.ID)
		}
		remaining := utils.Round2(p.Quantity.Sub(g.quantity))
		if remaining.IsNegative() {
			return insufficientStock(p, g.quantity)
		}
		if err := store.SetProductQuantity(ctx, p.ID, remaining); err != nil {
			return err
		}
		p.Quantity = remaining
	}
	return nil
}
