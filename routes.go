package main

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/katariastoneworld/stoneworld_backend/config"
	"github.com/katariastoneworld/stoneworld_backend/middlewares"
	"github.com/katariastoneworld/stoneworld_backend/models"
	"github.com/katariastoneworld/stoneworld_backend/utils"
	"github.com/sirupsen/logrus"
)

const (
	roleUser  = string(models.UserRoleUser)
	roleAdmin = string(models.UserRoleAdmin)
)

type routeDeps struct {
	bills         *billHandler
	notifications notificationProcessor
	// ready gates everything except /healthz; nil means always ready.
	ready       func() bool
	rateLimiter *middlewares.RateLimiter
	logger      *logrus.Logger
}

func setupRouter(deps routeDeps) *gin.Engine {
	r := gin.New()
	r.Use(correlationID())
	r.Use(readinessGate(deps.ready))
	r.Use(cors.New(corsConfig()))
	if deps.rateLimiter != nil {
		r.Use(deps.rateLimiter.Middleware)
	}
	r.Use(middlewares.SessionMiddleware())
	r.Use(middlewares.AuthMiddleware())
	r.Use(customErrorLogger(deps.logger))
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.POST("/pubsub/notifications", notificationPushHandler(deps.notifications))

	authed := middlewares.RequireRole()
	admin := middlewares.RequireRole(roleAdmin)

	api := r.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/register", registerHandler)
	auth.POST("/login", loginHandler)
	auth.GET("/me", authed, meHandler)
	auth.POST("/logout", authed, logoutHandler)

	bills := api.Group("/bills")
	bills.POST("", middlewares.RequireRole(roleUser, roleAdmin), deps.bills.create)
	bills.GET("", admin, deps.bills.list)
	bills.GET("/sales", admin, deps.bills.list)
	bills.GET("/export", admin, deps.bills.export)
	bills.GET("/:ref/:id", admin, deps.bills.get)
	bills.GET("/:ref/:id/download", admin, deps.bills.download)

	customers := api.Group("/customers", authed)
	customers.POST("", createHandler(models.CreateCustomer))
	customers.GET("", listHandler(models.GetCustomers))
	customers.GET("/phone/:phone", customerByPhoneHandler)
	customers.GET("/:id", getHandler(models.GetCustomer))
	customers.PUT("/:id", updateHandler(models.UpdateCustomer))
	customers.DELETE("/:id", deleteHandler(models.DeleteCustomer))

	for _, prefix := range []string{"/inventory", "/products"} {
		products := api.Group(prefix, authed)
		products.POST("", createHandler(models.CreateProduct))
		products.GET("", listProductsHandler)
		products.GET("/slug/:slug", productBySlugHandler)
		products.GET("/:id", getHandler(models.GetProduct))
		products.PUT("/:id", updateHandler(models.UpdateProduct))
		products.DELETE("/:id", deleteHandler(models.DeleteProduct))
	}

	employees := api.Group("/employees", authed)
	employees.POST("", createHandler(models.CreateEmployee))
	employees.GET("", listHandler(models.GetEmployees))
	employees.GET("/:id", getHandler(models.GetEmployee))
	employees.PUT("/:id", updateHandler(models.UpdateEmployee))
	employees.DELETE("/:id", deleteHandler(models.DeleteEmployee))

	expenses := api.Group("/expenses", authed)
	expenses.POST("", createHandler(models.CreateExpense))
	expenses.GET("", listHandler(models.GetExpenses))
	expenses.GET("/:id", getHandler(models.GetExpense))
	expenses.PUT("/:id", updateHandler(models.UpdateExpense))
	expenses.DELETE("/:id", deleteHandler(models.DeleteExpense))

	purchases := api.Group("/client-purchases", authed)
	purchases.POST("", createHandler(models.CreateClientPurchase))
	purchases.GET("", listHandler(models.GetClientPurchases))
	purchases.GET("/payments", listHandler(models.GetAllClientPurchasePayments))
	purchases.GET("/:id", getHandler(models.GetClientPurchase))
	purchases.PUT("/:id", updateHandler(models.UpdateClientPurchase))
	purchases.DELETE("/:id", deleteHandler(models.DeleteClientPurchase))
	purchases.POST("/:id/payments", addClientPurchasePaymentHandler)
	purchases.GET("/:id/payments", getHandler(models.GetClientPurchasePayments))

	categories := api.Group("/categories")
	categories.GET("", listCategoriesHandler)
	categories.GET("/:id", getHandler(models.GetCategory))
	categories.POST("", admin, createHandler(models.CreateCategory))
	categories.PUT("/:id", admin, updateHandler(models.UpdateCategory))
	categories.DELETE("/:id", admin, deleteHandler(models.DeleteCategory))

	heroes := api.Group("/heroes")
	heroes.GET("", listHandler(models.GetHeroes))
	heroes.GET("/active", listHandler(models.GetActiveHeroes))
	heroes.GET("/:id", getHandler(models.GetHero))
	heroes.POST("", admin, createHandler(models.CreateHero))
	heroes.PUT("/:id", admin, updateHandler(models.UpdateHero))
	heroes.DELETE("/:id", admin, deleteHandler(models.DeleteHero))

	seller := api.Group("/seller", authed)
	seller.GET("", getSellerHandler)
	seller.PUT("", admin, upsertSellerHandler)
	seller.GET("/state-codes", listHandler(models.GetStateGstCodes))

	api.GET("/reports/sales-by-customer", admin, salesByCustomerHandler)

	uploads := api.Group("/uploads", authed)
	uploads.POST("/image", uploadImageHandler)
	uploads.POST("/sign", signUploadHandler)
	uploads.POST("/complete", completeUploadHandler)
	uploads.GET("/object", uploadObjectHandler)

	r.POST("/internal/ops/notifications/replay", admin, outboxReplayHandler)

	r.NoRoute(customNotFoundHandler)
	return r
}

// correlationID reuses x-correlation-id or mints one, and echoes it back.
func correlationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := strings.TrimSpace(c.GetHeader("x-correlation-id"))
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Header("x-correlation-id", cid)
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	}
}

// readinessGate answers 503 until dependencies are connected. /healthz always passes.
func readinessGate(ready func() bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if ready != nil && !ready() {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, errorBody{Category: utils.ErrInternal, Message: "service is starting"})
			return
		}
		c.Next()
	}
}

// corsConfig allows all origins outside production; production needs CORS_ALLOWED_ORIGINS.
func corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	if config.IsProduction() {
		cfg.AllowOrigins = config.SplitAndTrim(os.Getenv("CORS_ALLOWED_ORIGINS"))
		if len(cfg.AllowOrigins) == 0 {
			cfg.AllowOriginFunc = func(string) bool { return false }
		}
	} else {
		cfg.AllowAllOrigins = true
	}
	cfg.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	cfg.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization", "x-correlation-id")
	cfg.AddExposeHeaders("Content-Length", "Content-Disposition", "x-correlation-id")
	if !cfg.AllowAllOrigins {
		cfg.AllowCredentials = true
	}
	return cfg
}

func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) > 0 && logger != nil {
			logger.Error(c.Errors.String())
		}
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, errorBody{Category: utils.ErrNotFound, Message: "route not found"})
}
