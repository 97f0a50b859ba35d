package reports

import (
	"context"
	"errors"
	"time"

	"github.com/katariastoneworld/stoneworld_backend/config"
	"github.com/katariastoneworld/stoneworld_backend/models"
	"github.com/katariastoneworld/stoneworld_backend/utils"
	"github.com/shopspring/decimal"
)

type SalesByCustomerResponse struct {
	CustomerId        int             `json:"customerId"`
	CustomerName      *string         `json:"customerName,omitempty"`
	CustomerPhone     string          `json:"customerPhone"`
	BillCount         int             `json:"billCount"`
	TotalSales        decimal.Decimal `json:"totalSales"`
	TotalSalesWithTax decimal.Decimal `json:"totalSalesWithTax"`
	TotalDiscount     decimal.Decimal `json:"totalDiscount"`
}

// GetSalesByCustomerReport sums both bill series per customer of the caller's location.
func GetSalesByCustomerReport(ctx context.Context, fromDate, toDate models.Date) ([]*SalesByCustomerResponse, error) {
	location, ok := utils.GetLocationFromContext(ctx)
	if !ok || location == "" {
		return nil, errors.New("location is required")
	}
	if fromDate.IsZero() || toDate.IsZero() {
		return nil, utils.ValidationError("fromDate and toDate are required")
	}
	if toDate.Before(fromDate.Time) {
		return nil, utils.ValidationError("toDate is before fromDate")
	}

	started := time.Now()
	cacheKey := reportCacheKey("salesByCustomer", location, fromDate.Format(models.BillDateLayout), toDate.Format(models.BillDateLayout))
	if reportCacheEnabled() {
		var cached []*SalesByCustomerResponse
		if hit, err := cacheGet(cacheKey, &cached); err == nil && hit {
			return cached, nil
		}
	}

	sql := `
SELECT
    b.customer_id,
    customers.customer_name,
    customers.phone AS customer_phone,
    COUNT(*) AS bill_count,
    SUM(b.subtotal) AS total_sales,
    SUM(b.subtotal + b.tax_amount) AS total_sales_with_tax,
    SUM(b.discount_amount) AS total_discount
FROM
    (SELECT customer_id, bill_date, subtotal, tax_amount, discount_amount FROM bills_gst
     UNION ALL
     SELECT customer_id, bill_date, subtotal, 0 AS tax_amount, discount_amount FROM bills_non_gst) AS b
    JOIN customers ON customers.id = b.customer_id
WHERE
    customers.location = @location
    AND b.bill_date BETWEEN @fromDate AND @toDate
GROUP BY b.customer_id, customers.customer_name, customers.phone
ORDER BY total_sales DESC
`
	var records []*SalesByCustomerResponse
	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql, map[string]interface{}{
		"location": location,
		"fromDate": fromDate.Format(models.BillDateLayout),
		"toDate":   toDate.Format(models.BillDateLayout),
	}).Scan(&records).Error; err != nil {
		return nil, err
	}

	if reportCacheEnabled() {
		_ = cacheSet(cacheKey, records, reportCacheTTL())
	}
	logSlowReport(ctx, "salesByCustomer", started, map[string]any{"rows": len(records)})
	return records, nil
}
