package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/fleetrent/service-rental/internal/application"
	"github.com/fleetrent/service-rental/internal/auth"
	"github.com/fleetrent/service-rental/internal/middleware"
)

// AdminHandler exposes the admin dashboard endpoints.
type AdminHandler struct {
	bookings *application.BookingService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(bookings *application.BookingService) *AdminHandler {
	return &AdminHandler{bookings: bookings}
}

// RegisterRoutes registers all admin routes on the given router group.
func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	admin := r.Group("/api/v1/admin")
	admin.Use(middleware.AuthMiddleware(jwtManager), middleware.RequireRole(auth.RoleAdmin))
	{
		admin.GET("/stats/bookings", h.GetBookingStats)
	}
}

// GetBookingStats handles GET /api/v1/admin/stats/bookings.
func (h *AdminHandler) GetBookingStats(c *gin.Context) {
	result, err := h.bookings.GetBookingStats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, result)
}
