package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Kilat-Parking/service-parking/internal/application"
	"github.com/Kilat-Parking/service-parking/internal/domain/access"
	"github.com/Kilat-Parking/service-parking/pkg/auth"
	"github.com/Kilat-Parking/service-parking/pkg/middleware"
	"github.com/Kilat-Parking/service-parking/pkg/response"
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
func (h *BookingHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	adminRole := middleware.RequireRole(auth.RoleAdmin)

	bookings := r.Group("/api/v1/bookings")
	bookings.Use(authMW)
	{
		bookings.POST("", h.CreateBooking)
		bookings.GET("", adminRole, h.ListBookings)
		bookings.GET("/my-bookings", h.MyBookings)
		bookings.GET("/:id", h.GetBooking)
		bookings.PUT("/:id/cancel", h.CancelBooking)
		bookings.POST("/:id/check-in", h.CheckIn)
		bookings.POST("/:id/check-out", h.CheckOut)
		bookings.PUT("/:id/status", adminRole, h.UpdateStatus)
	}
}

// CreateBooking handles POST /api/v1/bookings.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		return
	}

	var req application.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	result, err := h.service.CreateBooking(c.Request.Context(), principal, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// MyBookings handles GET /api/v1/bookings/my-bookings.
func (h *BookingHandler) MyBookings(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		return
	}

	var upcoming *bool
	if raw := c.Query("upcoming"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			response.BadRequest(c, "upcoming must be true or false")
			return
		}
		upcoming = &v
	}

	page, limit := parsePagination(c)
	items, total, err := h.service.ListMyBookings(c.Request.Context(), principal, c.Query("status"), upcoming, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, items, total, page, limit)
}

// ListBookings handles GET /api/v1/bookings (admin).
func (h *BookingHandler) ListBookings(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		return
	}
	query, ok := bookingListQuery(c)
	if !ok {
		return
	}

	page, limit := parsePagination(c)
	items, total, err := h.service.ListAllBookings(c.Request.Context(), principal, query, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, items, total, page, limit)
}

// GetBooking handles GET /api/v1/bookings/:id.
func (h *BookingHandler) GetBooking(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		return
	}
	bookingID, ok := parseIDParam(c, "booking")
	if !ok {
		return
	}

	result, err := h.service.GetBooking(c.Request.Context(), principal, bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// CancelBooking handles PUT /api/v1/bookings/:id/cancel.
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	h.transition(c, h.service.CancelBooking)
}

// CheckIn handles POST /api/v1/bookings/:id/check-in.
func (h *BookingHandler) CheckIn(c *gin.Context) {
	h.transition(c, h.service.CheckIn)
}

// CheckOut handles POST /api/v1/bookings/:id/check-out.
func (h *BookingHandler) CheckOut(c *gin.Context) {
	h.transition(c, h.service.CheckOut)
}

// UpdateStatus handles PUT /api/v1/bookings/:id/status (admin).
func (h *BookingHandler) UpdateStatus(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		return
	}
	bookingID, ok := parseIDParam(c, "booking")
	if !ok {
		return
	}

	var req application.UpdateBookingStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	result, err := h.service.OverrideStatus(c.Request.Context(), principal, bookingID, req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

type bookingAction func(ctx context.Context, principal access.Principal, id uuid.UUID) (*application.BookingDTO, error)

func (h *BookingHandler) transition(c *gin.Context, action bookingAction) {
	principal, ok := principalFrom(c)
	if !ok {
		return
	}
	bookingID, ok := parseIDParam(c, "booking")
	if !ok {
		return
	}

	result, err := action(c.Request.Context(), principal, bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// bookingListQuery reads the admin listing filters from the query string.
func bookingListQuery(c *gin.Context) (application.BookingListQuery, bool) {
	query := application.BookingListQuery{Status: c.Query("status")}
	var ok bool
	if query.UserID, ok = parseOptionalUUIDQuery(c, "userId"); !ok {
		return query, false
	}
	if query.ParkingLotID, ok = parseOptionalUUIDQuery(c, "parkingLotId"); !ok {
		return query, false
	}
	return query, true
}
