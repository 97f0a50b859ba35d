package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/katariastoneworld/stoneworld_backend/models"
	"github.com/katariastoneworld/stoneworld_backend/models/reports"
	"github.com/katariastoneworld/stoneworld_backend/pdfdoc"
	"github.com/katariastoneworld/stoneworld_backend/utils"
	"github.com/katariastoneworld/stoneworld_backend/workflow"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type billIssuer interface {
	Issue(ctx context.Context, req *workflow.BillRequest) (*models.BillView, error)
}

type billStore interface {
	GetBill(ctx context.Context, series models.BillSeries, id int) (*models.Bill, error)
	GetBillByNumber(ctx context.Context, billNumber string) (*models.Bill, error)
	GetBills(ctx context.Context) ([]*models.Bill, error)
	GetBillsByCustomerPhone(ctx context.Context, phone string) ([]*models.Bill, error)
}

type billRenderer interface {
	RenderPDF(ctx context.Context, view *models.BillView) ([]byte, *models.Seller, error)
}

// modelBillStore reads bills through the location-scoped models queries.
type modelBillStore struct{}

func (modelBillStore) GetBill(ctx context.Context, series models.BillSeries, id int) (*models.Bill, error) {
	return models.GetBill(ctx, series, id)
}

func (modelBillStore) GetBillByNumber(ctx context.Context, billNumber string) (*models.Bill, error) {
	return models.GetBillByNumber(ctx, billNumber)
}

func (modelBillStore) GetBills(ctx context.Context) ([]*models.Bill, error) {
	return models.GetBills(ctx)
}

func (modelBillStore) GetBillsByCustomerPhone(ctx context.Context, phone string) ([]*models.Bill, error) {
	return models.GetBillsByCustomerPhone(ctx, phone)
}

type billHandler struct {
	issuer   billIssuer
	store    billStore
	renderer billRenderer
}

func (h *billHandler) create(c *gin.Context) {
	var req workflow.BillRequest
	if !bindJSON(c, &req) {
		return
	}
	view, err := h.issuer.Issue(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *billHandler) list(c *gin.Context) {
	bills, err := h.store.GetBills(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toViews(bills))
}

// resolve looks a bill up by /:ref/:id where ref is "number", "customer" or a series.
func (h *billHandler) resolve(c *gin.Context) ([]*models.Bill, bool) {
	ctx := c.Request.Context()
	ref := strings.ToLower(strings.TrimSpace(c.Param("ref")))
	switch ref {
	case "number":
		bill, err := h.store.GetBillByNumber(ctx, strings.TrimSpace(c.Param("id")))
		if err != nil {
			respondError(c, err)
			return nil, false
		}
		return []*models.Bill{bill}, true
	case "customer":
		bills, err := h.store.GetBillsByCustomerPhone(ctx, strings.TrimSpace(c.Param("id")))
		if err != nil {
			respondError(c, err)
			return nil, false
		}
		return bills, true
	}

	series, ok := models.ParseBillSeries(ref)
	if !ok {
		respondError(c, utils.ValidationError("invalid bill type %q: use gst or nongst", c.Param("ref")))
		return nil, false
	}
	id, ok := pathID(c, "id")
	if !ok {
		return nil, false
	}
	bill, err := h.store.GetBill(ctx, series, id)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return []*models.Bill{bill}, true
}

func (h *billHandler) get(c *gin.Context) {
	bills, ok := h.resolve(c)
	if !ok {
		return
	}
	if strings.EqualFold(c.Param("ref"), "customer") {
		c.JSON(http.StatusOK, toViews(bills))
		return
	}
	c.JSON(http.StatusOK, models.NewBillView(bills[0]))
}

func (h *billHandler) download(c *gin.Context) {
	if strings.EqualFold(c.Param("ref"), "customer") {
		respondError(c, utils.NotFoundError("route not found"))
		return
	}
	bills, ok := h.resolve(c)
	if !ok {
		return
	}
	view := models.NewBillView(bills[0])
	pdf, _, err := h.renderer.RenderPDF(c.Request.Context(), view)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", pdfdoc.FileName(view)))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func (h *billHandler) export(c *gin.Context) {
	var buf bytes.Buffer
	if err := reports.ExportBills(c.Request.Context(), &buf); err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=bills.xlsx")
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func toViews(bills []*models.Bill) []*models.BillView {
	views := make([]*models.BillView, 0, len(bills))
	for _, b := range bills {
		views = append(views, models.NewBillView(b))
	}
	return views
}
