package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fleetrent/service-rental/internal/application"
	"github.com/fleetrent/service-rental/internal/auth"
	"github.com/fleetrent/service-rental/internal/middleware"
)

// InspectionHandler handles HTTP requests for condition photos.
type InspectionHandler struct {
	service *application.InspectionService
}

// NewInspectionHandler creates a new InspectionHandler.
func NewInspectionHandler(service *application.InspectionService) *InspectionHandler {
	return &InspectionHandler{service: service}
}

// RegisterRoutes registers all inspection routes on the given router group.
func (h *InspectionHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)

	bookings := r.Group("/api/v1/bookings")
	bookings.Use(authMW)
	{
		bookings.POST("/:id/photos", middleware.RequireRole(auth.RoleStaff), h.AddPhoto)
		bookings.GET("/:id/photos", h.ListPhotos)
	}
}

// AddPhoto handles POST /api/v1/bookings/:id/photos.
func (h *InspectionHandler) AddPhoto(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid booking ID")
		return
	}
	userID, _ := middleware.GetUserID(c)

	var req application.AddPhotoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.service.AddPhoto(c.Request.Context(), bookingID, userID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	created(c, result)
}

// ListPhotos handles GET /api/v1/bookings/:id/photos.
func (h *InspectionHandler) ListPhotos(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid booking ID")
		return
	}

	result, err := h.service.ListPhotos(c.Request.Context(), bookingID)
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, result)
}
