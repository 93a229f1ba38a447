package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fleetrent/service-rental/internal/application"
	"github.com/fleetrent/service-rental/internal/auth"
	bookingDomain "github.com/fleetrent/service-rental/internal/domain/booking"
	"github.com/fleetrent/service-rental/internal/domain/pricing"
	"github.com/fleetrent/service-rental/internal/middleware"
)

// BookingHandler handles HTTP requests for booking operations.
type BookingHandler struct {
	service *application.BookingService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(service *application.BookingService) *BookingHandler {
	return &BookingHandler{service: service}
}

// RegisterRoutes registers all booking routes on the given router group.
// Every lifecycle transition gets its own explicit route; there is no
// generic status-patch endpoint.
func (h *BookingHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)

	bookings := r.Group("/api/v1/bookings")
	bookings.Use(authMW)
	{
		bookings.POST("", middleware.RequireRole(auth.RoleRenter, auth.RoleStaff), h.CreateBooking)
		bookings.GET("", h.ListBookings)
		bookings.GET("/:id", h.GetBooking)
		bookings.GET("/number/:number", h.GetBookingByNumber)
		bookings.POST("/quote", h.PreviewQuote)
		bookings.POST("/:id/confirm", middleware.RequireRole(auth.RoleStaff), h.ConfirmBooking)
		bookings.POST("/:id/collect", middleware.RequireRole(auth.RoleStaff), h.CollectVehicle)
		bookings.POST("/:id/complete", middleware.RequireRole(auth.RoleStaff), h.CompleteRental)
		bookings.POST("/:id/cancel", h.CancelBooking)
	}
}

// CreateBooking handles POST /api/v1/bookings.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req application.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.service.CreateBooking(c.Request.Context(), userID, req)
	if err != nil {
		writeError(c, err)
		return
	}

	created(c, result)
}

// ListBookings handles GET /api/v1/bookings. Renters see their own bookings;
// staff may filter by renter, vehicle or status.
func (h *BookingHandler) ListBookings(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	role, _ := middleware.GetUserRole(c)
	page, limit := parsePagination(c)

	var filter bookingDomain.ListFilter
	if role == auth.RoleRenter {
		filter.RenterID = &userID
	} else {
		if raw := c.Query("renter_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				badRequest(c, "invalid renter_id")
				return
			}
			filter.RenterID = &id
		}
		if raw := c.Query("vehicle_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				badRequest(c, "invalid vehicle_id")
				return
			}
			filter.VehicleID = &id
		}
	}
	if raw := c.Query("status"); raw != "" {
		status, err := bookingDomain.ParseStatus(raw)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		filter.Status = &status
	}

	result, err := h.service.ListBookings(c.Request.Context(), filter, page, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// GetBooking handles GET /api/v1/bookings/:id.
func (h *BookingHandler) GetBooking(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid booking ID")
		return
	}
	userID, role := actingUser(c)

	result, err := h.service.GetBooking(c.Request.Context(), bookingID, userID, isStaff(role))
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, result)
}

// GetBookingByNumber handles GET /api/v1/bookings/number/:number.
func (h *BookingHandler) GetBookingByNumber(c *gin.Context) {
	userID, role := actingUser(c)

	result, err := h.service.GetBookingByNumber(c.Request.Context(), c.Param("number"), userID, isStaff(role))
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, result)
}

// PreviewQuote handles POST /api/v1/bookings/quote.
func (h *BookingHandler) PreviewQuote(c *gin.Context) {
	var req struct {
		VehicleID uuid.UUID                  `json:"vehicle_id" binding:"required"`
		StartDate time.Time                  `json:"start_date" binding:"required"`
		EndDate   time.Time                  `json:"end_date" binding:"required"`
		Packages  []pricing.PackageSelection `json:"packages"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.service.PreviewQuote(c.Request.Context(), req.VehicleID, req.StartDate, req.EndDate, req.Packages)
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, result)
}

// ConfirmBooking handles POST /api/v1/bookings/:id/confirm.
func (h *BookingHandler) ConfirmBooking(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid booking ID")
		return
	}
	userID, _ := middleware.GetUserID(c)

	var req application.ConfirmBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.service.ConfirmBooking(c.Request.Context(), bookingID, userID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, result)
}

// CollectVehicle handles POST /api/v1/bookings/:id/collect.
func (h *BookingHandler) CollectVehicle(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid booking ID")
		return
	}
	userID, _ := middleware.GetUserID(c)

	var req application.CollectVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.service.CollectVehicle(c.Request.Context(), bookingID, userID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, result)
}

// CompleteRental handles POST /api/v1/bookings/:id/complete.
func (h *BookingHandler) CompleteRental(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid booking ID")
		return
	}
	userID, _ := middleware.GetUserID(c)

	var req application.CompleteRentalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.service.CompleteRental(c.Request.Context(), bookingID, userID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, result)
}

// CancelBooking handles POST /api/v1/bookings/:id/cancel.
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid booking ID")
		return
	}
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req application.CancelBookingRequest
	_ = c.ShouldBindJSON(&req)

	result, err := h.service.CancelBooking(c.Request.Context(), bookingID, userID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, result)
}

// --- Helpers ---

func actingUser(c *gin.Context) (uuid.UUID, auth.RoleName) {
	userID, _ := middleware.GetUserID(c)
	role, _ := middleware.GetUserRole(c)
	return userID, role
}

func isStaff(role auth.RoleName) bool {
	return role == auth.RoleStaff || role == auth.RoleAdmin
}

// parsePagination extracts page and limit query parameters with defaults.
func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	return page, limit
}
