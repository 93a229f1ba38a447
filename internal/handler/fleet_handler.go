package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fleetrent/service-rental/internal/application"
	"github.com/fleetrent/service-rental/internal/auth"
	vehicleDomain "github.com/fleetrent/service-rental/internal/domain/vehicle"
	"github.com/fleetrent/service-rental/internal/middleware"
)

// FleetHandler handles HTTP requests for fleet management.
type FleetHandler struct {
	service *application.FleetService
}

// NewFleetHandler creates a new FleetHandler.
func NewFleetHandler(service *application.FleetService) *FleetHandler {
	return &FleetHandler{service: service}
}

// RegisterRoutes registers all fleet routes on the given router group.
func (h *FleetHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	staffOnly := middleware.RequireRole(auth.RoleStaff)

	vehicles := r.Group("/api/v1/vehicles")
	vehicles.Use(authMW)
	{
		vehicles.GET("", h.ListVehicles)
		vehicles.GET("/:id", h.GetVehicle)
		vehicles.POST("", staffOnly, h.CreateVehicle)
		vehicles.PATCH("/:id", staffOnly, h.UpdateVehicle)
		vehicles.PUT("/:id/availability", staffOnly, h.SetAvailability)
		vehicles.POST("/:id/retire", staffOnly, h.RetireVehicle)
	}
}

// CreateVehicle handles POST /api/v1/vehicles.
func (h *FleetHandler) CreateVehicle(c *gin.Context) {
	var req application.CreateVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.service.CreateVehicle(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	created(c, result)
}

// ListVehicles handles GET /api/v1/vehicles.
func (h *FleetHandler) ListVehicles(c *gin.Context) {
	page, limit := parsePagination(c)

	filter := vehicleDomain.ListFilter{
		OnlyAvailable: c.Query("available") == "true",
	}
	if raw := c.Query("status"); raw != "" {
		filter.Status = vehicleDomain.VehicleStatus(raw)
	}

	result, err := h.service.ListVehicles(c.Request.Context(), filter, page, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// GetVehicle handles GET /api/v1/vehicles/:id.
func (h *FleetHandler) GetVehicle(c *gin.Context) {
	vehicleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid vehicle ID")
		return
	}

	result, err := h.service.GetVehicle(c.Request.Context(), vehicleID)
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, result)
}

// UpdateVehicle handles PATCH /api/v1/vehicles/:id.
func (h *FleetHandler) UpdateVehicle(c *gin.Context) {
	vehicleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid vehicle ID")
		return
	}

	var req application.UpdateVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.service.UpdateVehicle(c.Request.Context(), vehicleID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, result)
}

// SetAvailability handles PUT /api/v1/vehicles/:id/availability.
func (h *FleetHandler) SetAvailability(c *gin.Context) {
	vehicleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid vehicle ID")
		return
	}

	var req application.SetAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.service.SetAvailability(c.Request.Context(), vehicleID, req.Available)
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, result)
}

// RetireVehicle handles POST /api/v1/vehicles/:id/retire.
func (h *FleetHandler) RetireVehicle(c *gin.Context) {
	vehicleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid vehicle ID")
		return
	}

	result, err := h.service.RetireVehicle(c.Request.Context(), vehicleID)
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, result)
}
