package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fleetrent/service-rental/internal/application"
	"github.com/fleetrent/service-rental/internal/auth"
	"github.com/fleetrent/service-rental/internal/middleware"
)

// InvoiceHandler handles HTTP requests for invoicing and payments.
type InvoiceHandler struct {
	service *application.InvoiceService
}

// NewInvoiceHandler creates a new InvoiceHandler.
func NewInvoiceHandler(service *application.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{service: service}
}

// RegisterRoutes registers all invoice routes on the given router group.
func (h *InvoiceHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	staffOnly := middleware.RequireRole(auth.RoleStaff)

	invoices := r.Group("/api/v1/invoices")
	invoices.Use(authMW)
	{
		invoices.GET("", staffOnly, h.ListInvoices)
		invoices.GET("/:id", h.GetInvoice)
		invoices.GET("/number/:number", h.GetInvoiceByNumber)
		invoices.POST("/:id/issue", staffOnly, h.IssueInvoice)
		invoices.POST("/:id/payments", staffOnly, h.RecordPayment)
		invoices.GET("/:id/payments", h.ListPayments)
	}

	bookings := r.Group("/api/v1/bookings")
	bookings.Use(authMW)
	{
		bookings.POST("/:id/invoice", staffOnly, h.GenerateInvoice)
		bookings.GET("/:id/invoice", h.GetInvoiceForBooking)
	}
}

// GenerateInvoice handles POST /api/v1/bookings/:id/invoice.
func (h *InvoiceHandler) GenerateInvoice(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid booking ID")
		return
	}
	userID, _ := middleware.GetUserID(c)

	result, err := h.service.GenerateInvoice(c.Request.Context(), bookingID, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	created(c, result)
}

// GetInvoiceForBooking handles GET /api/v1/bookings/:id/invoice.
func (h *InvoiceHandler) GetInvoiceForBooking(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid booking ID")
		return
	}

	result, err := h.service.GetInvoiceForBooking(c.Request.Context(), bookingID)
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, result)
}

// ListInvoices handles GET /api/v1/invoices.
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	page, limit := parsePagination(c)

	result, err := h.service.ListInvoices(c.Request.Context(), page, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// GetInvoice handles GET /api/v1/invoices/:id.
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid invoice ID")
		return
	}

	result, err := h.service.GetInvoice(c.Request.Context(), invoiceID)
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, result)
}

// GetInvoiceByNumber handles GET /api/v1/invoices/number/:number.
func (h *InvoiceHandler) GetInvoiceByNumber(c *gin.Context) {
	result, err := h.service.GetInvoiceByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, result)
}

// IssueInvoice handles POST /api/v1/invoices/:id/issue.
func (h *InvoiceHandler) IssueInvoice(c *gin.Context) {
	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid invoice ID")
		return
	}

	result, err := h.service.IssueInvoice(c.Request.Context(), invoiceID)
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, result)
}

// RecordPayment handles POST /api/v1/invoices/:id/payments.
func (h *InvoiceHandler) RecordPayment(c *gin.Context) {
	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid invoice ID")
		return
	}
	userID, _ := middleware.GetUserID(c)

	var req application.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.service.RecordPayment(c.Request.Context(), invoiceID, userID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	created(c, result)
}

// ListPayments handles GET /api/v1/invoices/:id/payments.
func (h *InvoiceHandler) ListPayments(c *gin.Context) {
	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid invoice ID")
		return
	}

	result, err := h.service.ListPayments(c.Request.Context(), invoiceID)
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, result)
}
