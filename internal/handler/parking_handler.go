package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Kilat-Parking/service-parking/internal/application"
	"github.com/Kilat-Parking/service-parking/pkg/auth"
	"github.com/Kilat-Parking/service-parking/pkg/middleware"
	"github.com/Kilat-Parking/service-parking/pkg/response"
)

// ParkingHandler handles HTTP requests for parking lots and spots.
type ParkingHandler struct {
	service *application.ParkingService
}

// NewParkingHandler creates a new ParkingHandler.
func NewParkingHandler(service *application.ParkingService) *ParkingHandler {
	return &ParkingHandler{service: service}
}

// RegisterRoutes registers lot and spot routes. Reads are public.
func (h *ParkingHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	adminRole := middleware.RequireRole(auth.RoleAdmin)

	lots := r.Group("/api/v1/parking-lots")
	{
		lots.GET("", h.ListLots)
		lots.GET("/:id", h.GetLot)
		lots.GET("/:id/spots", h.ListSpots)
		lots.POST("", authMW, adminRole, h.CreateLot)
		lots.PUT("/:id", authMW, adminRole, h.UpdateLot)
		lots.DELETE("/:id", authMW, adminRole, h.DeleteLot)
		lots.POST("/:id/reconcile", authMW, adminRole, h.ReconcileLot)
		lots.POST("/:id/spots", authMW, adminRole, h.CreateSpot)
	}

	spots := r.Group("/api/v1/parking-spots")
	{
		spots.GET("/:id", h.GetSpot)
		spots.PUT("/:id", authMW, adminRole, h.UpdateSpot)
		spots.DELETE("/:id", authMW, adminRole, h.DeleteSpot)
	}
}

// ListLots handles GET /api/v1/parking-lots.
func (h *ParkingHandler) ListLots(c *gin.Context) {
	query := application.LotListQuery{City: c.Query("city"), Status: c.Query("status")}
	var ok bool
	if query.MinAvailableSpots, ok = parseOptionalIntQuery(c, "minAvailableSpots"); !ok {
		return
	}
	if query.MaxRate, ok = parseOptionalFloatQuery(c, "maxRate"); !ok {
		return
	}

	page, limit := parsePagination(c)
	items, total, err := h.service.ListLots(c.Request.Context(), query, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, items, total, page, limit)
}

// GetLot handles GET /api/v1/parking-lots/:id.
func (h *ParkingHandler) GetLot(c *gin.Context) {
	lotID, ok := parseIDParam(c, "parking lot")
	if !ok {
		return
	}

	result, err := h.service.GetLot(c.Request.Context(), lotID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// CreateLot handles POST /api/v1/parking-lots.
func (h *ParkingHandler) CreateLot(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		return
	}

	var req application.CreateLotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	result, err := h.service.CreateLot(c.Request.Context(), principal, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// UpdateLot handles PUT /api/v1/parking-lots/:id.
func (h *ParkingHandler) UpdateLot(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		return
	}
	lotID, ok := parseIDParam(c, "parking lot")
	if !ok {
		return
	}

	var req application.UpdateLotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	result, err := h.service.UpdateLot(c.Request.Context(), principal, lotID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// DeleteLot handles DELETE /api/v1/parking-lots/:id.
func (h *ParkingHandler) DeleteLot(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		return
	}
	lotID, ok := parseIDParam(c, "parking lot")
	if !ok {
		return
	}

	if err := h.service.DeleteLot(c.Request.Context(), principal, lotID); err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessMessage(c, "parking lot deleted")
}

// ReconcileLot handles POST /api/v1/parking-lots/:id/reconcile.
func (h *ParkingHandler) ReconcileLot(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		return
	}
	lotID, ok := parseIDParam(c, "parking lot")
	if !ok {
		return
	}

	result, err := h.service.ReconcileLot(c.Request.Context(), principal, lotID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ListSpots handles GET /api/v1/parking-lots/:id/spots.
func (h *ParkingHandler) ListSpots(c *gin.Context) {
	lotID, ok := parseIDParam(c, "parking lot")
	if !ok {
		return
	}

	query := application.SpotListQuery{Status: c.Query("status"), SpotType: c.Query("spotType")}
	items, err := h.service.ListSpots(c.Request.Context(), lotID, query)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, items)
}

// CreateSpot handles POST /api/v1/parking-lots/:id/spots.
func (h *ParkingHandler) CreateSpot(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		return
	}
	lotID, ok := parseIDParam(c, "parking lot")
	if !ok {
		return
	}

	var req application.CreateSpotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	result, err := h.service.CreateSpot(c.Request.Context(), principal, lotID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// GetSpot handles GET /api/v1/parking-spots/:id.
func (h *ParkingHandler) GetSpot(c *gin.Context) {
	spotID, ok := parseIDParam(c, "parking spot")
	if !ok {
		return
	}

	result, err := h.service.GetSpot(c.Request.Context(), spotID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// UpdateSpot handles PUT /api/v1/parking-spots/:id.
func (h *ParkingHandler) UpdateSpot(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		return
	}
	spotID, ok := parseIDParam(c, "parking spot")
	if !ok {
		return
	}

	var req application.UpdateSpotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	result, err := h.service.UpdateSpot(c.Request.Context(), principal, spotID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// DeleteSpot handles DELETE /api/v1/parking-spots/:id.
func (h *ParkingHandler) DeleteSpot(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		return
	}
	spotID, ok := parseIDParam(c, "parking spot")
	if !ok {
		return
	}

	if err := h.service.DeleteSpot(c.Request.Context(), principal, spotID); err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessMessage(c, "parking spot deleted")
}
