package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/katariastoneworld/stoneworld_backend/models"
	"github.com/katariastoneworld/stoneworld_backend/models/reports"
	"github.com/katariastoneworld/stoneworld_backend/utils"
)

func customerByPhoneHandler(c *gin.Context) {
	customer, err := models.GetCustomerByPhone(c.Request.Context(), c.Param("phone"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func listProductsHandler(c *gin.Context) {
	products, err := models.GetProducts(c.Request.Context(), queryBool(c, "active"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func productBySlugHandler(c *gin.Context) {
	product, err := models.GetProductBySlug(c.Request.Context(), strings.TrimSpace(c.Param("slug")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func addClientPurchasePaymentHandler(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var input models.NewClientPurchasePayment
	if !bindJSON(c, &input) {
		return
	}
	payment, err := models.AddClientPurchasePayment(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payment)
}

func listCategoriesHandler(c *gin.Context) {
	categories, err := models.GetCategories(c.Request.Context(), c.Query("type"), queryBool(c, "active"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

func getSellerHandler(c *gin.Context) {
	seller, err := models.GetSeller(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if seller == nil {
		respondError(c, utils.NotFoundError("seller profile is not configured"))
		return
	}
	c.JSON(http.StatusOK, seller)
}

func upsertSellerHandler(c *gin.Context) {
	var input models.NewSeller
	if !bindJSON(c, &input) {
		return
	}
	seller, err := models.UpsertSeller(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, seller)
}

func salesByCustomerHandler(c *gin.Context) {
	from, err := queryDate(c, "fromDate")
	if err != nil {
		respondError(c, err)
		return
	}
	to, err := queryDate(c, "toDate")
	if err != nil {
		respondError(c, err)
		return
	}
	rows, err := reports.GetSalesByCustomerReport(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func queryDate(c *gin.Context, name string) (models.Date, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return models.Date{}, utils.ValidationError("%s is required", name)
	}
	t, err := time.ParseInLocation(models.BillDateLayout, raw, time.Local)
	if err != nil {
		return models.Date{}, utils.ValidationError("%s must be YYYY-MM-DD", name)
	}
	return models.Date{Time: t}, nil
}
