package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/trackpay/trackpay-server/internal/config"
	"github.com/trackpay/trackpay-server/internal/models"
	"github.com/trackpay/trackpay-server/internal/service"
	"github.com/trackpay/trackpay-server/internal/utils"
)

// Handler holds the dependencies for the HTTP handlers
type Handler struct {
	svc service.Service
	app config.AppConfig
	log *utils.Logger
}

// NewHandler creates a new API handler
func NewHandler(svc service.Service, app config.AppConfig) *Handler {
	return &Handler{
		svc: svc,
		app: app,
		log: utils.NewLogger(),
	}
}

// SetupRoutes registers all API routes on the router
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.GET("/", h.Root)
	router.GET("/api/health", h.HealthCheck)
	router.GET("/api/app-config", h.AppConfig)

	auth := router.Group("/api/auth")
	{
		auth.POST("/signup", h.Signup)
		auth.POST("/login", h.Login)
		auth.GET("/me", AuthMiddleware(), h.Me)
	}

	customers := router.Group("/api/customers", AuthMiddleware())
	{
		customers.GET("", h.ListCustomers)
		customers.POST("", h.CreateCustomer)
		customers.GET("/:id", h.GetCustomer)
		customers.PUT("/:id", h.UpdateCustomer)
		customers.DELETE("/:id", h.DeleteCustomer)
		customers.POST("/:id/purchases", h.AddPurchase)
		customers.PUT("/:id/purchases/:purchaseId", h.UpdatePayment)
	}

	transactions := router.Group("/api/transactions", AuthMiddleware())
	{
		transactions.GET("", h.ListTransactions)
		transactions.POST("", h.CreateTransaction)
		transactions.GET("/summary", h.TransactionSummary)
		transactions.DELETE("/:id", h.DeleteTransaction)
	}
}

// Root handlers
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, models.RootResponse{
		Status:      "OK",
		Message:     "TrackPay API is running",
		Version:     h.app.Version,
		Environment: h.app.Environment,
	})
}

func (h *Handler) HealthCheck(c *gin.Context) {
	health, err := h.svc.Health(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, health)
		return
	}
	c.JSON(http.StatusOK, health)
}

func (h *Handler) AppConfig(c *gin.Context) {
	c.JSON(http.StatusOK, models.AppConfigResponse{
		LatestVersion: h.app.Version,
		ForceUpdate:   h.app.ForceUpdate,
		UpdateURL:     h.app.UpdateURL,
		Message:       "A new version of TrackPay is available with improved sync and bug fixes.",
	})
}

// Auth handlers
func (h *Handler) Signup(c *gin.Context) {
	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Username and password are required"})
		return
	}

	resp, err := h.svc.SignUp(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Username and password are required"})
		return
	}

	resp, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Me(c *gin.Context) {
	profile, err := h.svc.CurrentUser(c.Request.Context(), c.GetString("userId"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// Customer handlers
func (h *Handler) ListCustomers(c *gin.Context) {
	resp, err := h.svc.ListCustomers(c.Request.Context(), c.GetString("userId"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetCustomer(c *gin.Context) {
	customer, err := h.svc.GetCustomer(c.Request.Context(), c.GetString("userId"), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, customer)
}

func (h *Handler) CreateCustomer(c *gin.Context) {
	var req models.CreateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Name and phone are required"})
		return
	}

	customer, err := h.svc.CreateCustomer(c.Request.Context(), c.GetString("userId"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, customer)
}

func (h *Handler) UpdateCustomer(c *gin.Context) {
	var req models.UpdateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	customer, err := h.svc.UpdateCustomer(c.Request.Context(), c.GetString("userId"), c.Param("id"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, customer)
}

func (h *Handler) DeleteCustomer(c *gin.Context) {
	err := h.svc.DeleteCustomer(c.Request.Context(), c.GetString("userId"), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse{Message: "Customer deleted successfully"})
}

// Purchase handlers
func (h *Handler) AddPurchase(c *gin.Context) {
	var req models.CreatePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Amount is required"})
		return
	}

	customer, err := h.svc.RecordPurchase(c.Request.Context(), c.GetString("userId"), c.Param("id"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, customer)
}

func (h *Handler) UpdatePayment(c *gin.Context) {
	var req models.UpdatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Paid amount is required"})
		return
	}

	customer, err := h.svc.RecordPayment(
		c.Request.Context(), c.GetString("userId"), c.Param("id"), c.Param("purchaseId"), *req.Paid)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, customer)
}

// Transaction handlers
func (h *Handler) ListTransactions(c *gin.Context) {
	filter, err := transactionFilterFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	transactions, err := h.svc.ListTransactions(c.Request.Context(), c.GetString("userId"), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, transactions)
}

func (h *Handler) CreateTransaction(c *gin.Context) {
	var req models.CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Type, amount, and category are required"})
		return
	}

	txn, err := h.svc.CreateTransaction(c.Request.Context(), c.GetString("userId"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, txn)
}

func (h *Handler) DeleteTransaction(c *gin.Context) {
	err := h.svc.DeleteTransaction(c.Request.Context(), c.GetString("userId"), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse{Message: "Transaction deleted successfully"})
}

func (h *Handler) TransactionSummary(c *gin.Context) {
	filter, err := transactionFilterFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	summary, err := h.svc.TransactionSummary(c.Request.Context(), c.GetString("userId"), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// writeError translates service errors into the API's error responses
func (h *Handler) writeError(c *gin.Context, err error) {
	var validationErr *service.ValidationError
	var notFoundErr *service.NotFoundError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: validationErr.Error()})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: notFoundErr.Error()})
	case errors.Is(err, service.ErrUsernameTaken):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: err.Error()})
	default:
		h.log.Error("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Internal server error"})
	}
}

// transactionFilterFromQuery parses type/category/startDate/endDate query
// parameters. Dates accept RFC 3339 or plain YYYY-MM-DD.
func transactionFilterFromQuery(c *gin.Context) (models.TransactionFilter, error) {
	filter := models.TransactionFilter{
		Type:     c.Query("type"),
		Category: c.Query("category"),
	}

	start, err := parseDateQuery(c.Query("startDate"))
	if err != nil {
		return filter, errors.New("Invalid startDate")
	}
	filter.StartDate = start

	end, err := parseDateQuery(c.Query("endDate"))
	if err != nil {
		return filter, errors.New("Invalid endDate")
	}
	filter.EndDate = end

	return filter, nil
}

func parseDateQuery(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}

	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}

	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
