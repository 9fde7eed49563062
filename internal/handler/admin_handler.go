package handler

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Kilat-Parking/service-parking/internal/application"
	"github.com/Kilat-Parking/service-parking/internal/report"
	"github.com/Kilat-Parking/service-parking/pkg/auth"
	"github.com/Kilat-Parking/service-parking/pkg/middleware"
	"github.com/Kilat-Parking/service-parking/pkg/response"
)

// AdminBookingHandler handles admin HTTP requests for booking reporting.
type AdminBookingHandler struct {
	service *application.BookingService
}

// NewAdminBookingHandler creates a new AdminBookingHandler.
func NewAdminBookingHandler(service *application.BookingService) *AdminBookingHandler {
	return &AdminBookingHandler{service: service}
}

// RegisterRoutes registers admin booking routes.
func (h *AdminBookingHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	adminRole := middleware.RequireRole(auth.RoleAdmin)

	admin := r.Group("/api/v1/admin")
	admin.Use(authMW, adminRole)
	{
		admin.GET("/stats/bookings", h.BookingStats)
		admin.GET("/bookings/export", h.ExportBookings)
	}
}

// BookingStats handles GET /api/v1/admin/stats/bookings.
func (h *AdminBookingHandler) BookingStats(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		return
	}

	stats, err := h.service.GetBookingStats(c.Request.Context(), principal)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}

// ExportBookings handles GET /api/v1/admin/bookings/export and streams an xlsx workbook.
func (h *AdminBookingHandler) ExportBookings(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		return
	}
	query, ok := bookingListQuery(c)
	if !ok {
		return
	}

	bookings, err := h.service.ExportBookings(c.Request.Context(), principal, query)
	if err != nil {
		response.Error(c, err)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteBookings(&buf, bookings); err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+report.FileName(time.Now())+`"`)
	c.Data(http.StatusOK, report.ContentTypeXLSX, buf.Bytes())
}
