package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Kilat-Parking/service-parking/internal/application"
	"github.com/Kilat-Parking/service-parking/pkg/auth"
	"github.com/Kilat-Parking/service-parking/pkg/middleware"
	"github.com/Kilat-Parking/service-parking/pkg/response"
)

// VehicleHandler handles HTTP requests for the caller's vehicles.
type VehicleHandler struct {
	service *application.VehicleService
}

// NewVehicleHandler creates a new VehicleHandler.
func NewVehicleHandler(service *application.VehicleService) *VehicleHandler {
	return &VehicleHandler{service: service}
}

// RegisterRoutes registers vehicle routes.
func (h *VehicleHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	vehicles := r.Group("/api/v1/vehicles")
	vehicles.Use(middleware.AuthMiddleware(jwtManager))
	{
		vehicles.GET("", h.ListVehicles)
		vehicles.POST("", h.CreateVehicle)
		vehicles.GET("/:id", h.GetVehicle)
		vehicles.PUT("/:id", h.UpdateVehicle)
		vehicles.DELETE("/:id", h.DeleteVehicle)
	}
}

// ListVehicles handles GET /api/v1/vehicles.
func (h *VehicleHandler) ListVehicles(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		return
	}

	items, err := h.service.ListMyVehicles(c.Request.Context(), principal)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, items)
}

// CreateVehicle handles POST /api/v1/vehicles.
func (h *VehicleHandler) CreateVehicle(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		return
	}

	var req application.CreateVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	result, err := h.service.CreateVehicle(c.Request.Context(), principal, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// GetVehicle handles GET /api/v1/vehicles/:id.
func (h *VehicleHandler) GetVehicle(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		return
	}
	vehicleID, ok := parseIDParam(c, "vehicle")
	if !ok {
		return
	}

	result, err := h.service.GetVehicle(c.Request.Context(), principal, vehicleID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// UpdateVehicle handles PUT /api/v1/vehicles/:id.
func (h *VehicleHandler) UpdateVehicle(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		return
	}
	vehicleID, ok := parseIDParam(c, "vehicle")
	if !ok {
		return
	}

	var req application.UpdateVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	result, err := h.service.UpdateVehicle(c.Request.Context(), principal, vehicleID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// DeleteVehicle handles DELETE /api/v1/vehicles/:id.
func (h *VehicleHandler) DeleteVehicle(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		return
	}
	vehicleID, ok := parseIDParam(c, "vehicle")
	if !ok {
		return
	}

	if err := h.service.DeleteVehicle(c.Request.Context(), principal, vehicleID); err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessMessage(c, "vehicle deleted")
}
