package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	bookingDomain "github.com/Kilat-Parking/service-parking/internal/domain/booking"
	"github.com/Kilat-Parking/service-parking/pkg/domain"
)

// BookingModel is the GORM model for the bookings table.
type BookingModel struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primaryKey"`
	BookingNumber      string     `gorm:"uniqueIndex;not null;size:20"`
	UserID             uuid.UUID  `gorm:"type:uuid;index;not null"`
	ParkingLotID       uuid.UUID  `gorm:"type:uuid;index;not null"`
	ParkingSpotID      *uuid.UUID `gorm:"type:uuid;index:idx_bookings_spot_window"`
	VehicleID          *uuid.UUID `gorm:"type:uuid;index"`
	Status             string     `gorm:"not null;size:30;index"`
	StartTime          time.Time  `gorm:"not null;index:idx_bookings_spot_window"`
	EndTime            time.Time  `gorm:"not null;index:idx_bookings_spot_window"`
	ExpectedCost       float64    `gorm:"type:decimal(10,2);not null"`
	ActualCost         *float64   `gorm:"type:decimal(10,2)"`
	ActualCheckInTime  *time.Time `gorm:""`
	ActualCheckOutTime *time.Time `gorm:""`
	PaymentID          *string    `gorm:"size:100"`
	Version            int64      `gorm:"not null;default:1"`
	CreatedAt          time.Time  `gorm:"not null"`
	UpdatedAt          time.Time  `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (BookingModel) TableName() string {
	return "bookings"
}

// GormBookingRepository is the GORM-based implementation of BookingRepository.
type GormBookingRepository struct {
	db *gorm.DB
}

// NewGormBookingRepository creates a new GormBookingRepository.
func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

// FindByID retrieves a booking by its unique identifier.
func (r *GormBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	return r.findByID(r.db.WithContext(ctx), id)
}

// FindByIDForUpdate retrieves a booking and takes a row lock on it.
func (r *GormBookingRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	return r.findByID(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormBookingRepository) findByID(db *gorm.DB, id uuid.UUID) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := db.Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Booking", id.String())
		}
		return nil, fmt.Errorf("failed to find booking by ID: %w", err)
	}
	return toDomainBooking(&model), nil
}

// FindOverlapping returns bookings on the spot that claim a window intersecting [start, end).
func (r *GormBookingRepository) FindOverlapping(ctx context.Context, spotID uuid.UUID, start, end time.Time) ([]*bookingDomain.Booking, error) {
	var models []BookingModel
	if err := r.db.WithContext(ctx).
		Where("parking_spot_id = ?", spotID).
		Where("status NOT IN ?", freeingStatuses()).
		Where("start_time < ? AND end_time > ?", end.UTC(), start.UTC()).
		Order("start_time ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find overlapping bookings: %w", err)
	}
	return toDomainBookings(models), nil
}

// FindHoldingSpot returns confirmed or active bookings on the spot other than excludeID.
func (r *GormBookingRepository) FindHoldingSpot(ctx context.Context, spotID, excludeID uuid.UUID) ([]*bookingDomain.Booking, error) {
	var models []BookingModel
	if err := r.db.WithContext(ctx).
		Where("parking_spot_id = ? AND id <> ?", spotID, excludeID).
		Where("status IN ?", []string{string(bookingDomain.StatusConfirmed), string(bookingDomain.StatusActive)}).
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find bookings holding spot: %w", err)
	}
	return toDomainBookings(models), nil
}

// List retrieves bookings matching filter with pagination.
func (r *GormBookingRepository) List(ctx context.Context, filter bookingDomain.ListFilter, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	query := r.db.WithContext(ctx).Model(&BookingModel{})
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.ParkingLotID != nil {
		query = query.Where("parking_lot_id = ?", *filter.ParkingLotID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", string(*filter.Status))
	}
	if filter.Upcoming != nil {
		now := filter.Now
		if now.IsZero() {
			now = time.Now()
		}
		if *filter.Upcoming {
			query = query.Where("start_time >= ?", now.UTC())
		} else {
			query = query.Where("end_time < ?", now.UTC())
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	var models []BookingModel
	offset := (page - 1) * limit
	if err := query.
		Order("start_time DESC").
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}

	return toDomainBookings(models), total, nil
}

// FindPendingPaymentBefore returns IDs of pending_payment bookings created before cutoff.
func (r *GormBookingRepository) FindPendingPaymentBefore(ctx context.Context, cutoff time.Time, skip []uuid.UUID, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := excludeIDs(r.db.WithContext(ctx), skip).
		Model(&BookingModel{}).
		Where("status = ? AND created_at < ?", string(bookingDomain.StatusPendingPayment), cutoff.UTC()).
		Order("created_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to find unpaid bookings: %w", err)
	}
	return ids, nil
}

// FindUnclaimedEndedBefore returns IDs of confirmed bookings whose window ended before cutoff.
func (r *GormBookingRepository) FindUnclaimedEndedBefore(ctx context.Context, cutoff time.Time, skip []uuid.UUID, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := excludeIDs(r.db.WithContext(ctx), skip).
		Model(&BookingModel{}).
		Where("status = ? AND end_time < ?", string(bookingDomain.StatusConfirmed), cutoff.UTC()).
		Order("end_time ASC").
		Limit(limit).
		Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to find ended bookings: %w", err)
	}
	return ids, nil
}

// CountByStatus returns booking counts grouped by status (admin).
func (r *GormBookingRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var rows []statusCount
	if err := r.db.WithContext(ctx).
		Model(&BookingModel{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count bookings by status: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// Save persists a new booking.
func (r *GormBookingRepository) Save(ctx context.Context, bk *bookingDomain.Booking) error {
	model := toBookingModel(bk)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.NewConflictError("booking number already exists")
		}
		return fmt.Errorf("failed to save booking: %w", err)
	}
	return nil
}

// Update persists changes to an existing booking with optimistic locking.
func (r *GormBookingRepository) Update(ctx context.Context, bk *bookingDomain.Booking) error {
	model := toBookingModel(bk)

	// The aggregate's version was already incremented, so match on the previous one.
	expectedVersion := bk.Version() - 1
	result := r.db.WithContext(ctx).
		Model(&BookingModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"parking_spot_id":       model.ParkingSpotID,
			"vehicle_id":            model.VehicleID,
			"status":                model.Status,
			"start_time":            model.StartTime,
			"end_time":              model.EndTime,
			"expected_cost":         model.ExpectedCost,
			"actual_cost":           model.ActualCost,
			"actual_check_in_time":  model.ActualCheckInTime,
			"actual_check_out_time": model.ActualCheckOutTime,
			"payment_id":            model.PaymentID,
			"version":               model.Version,
			"updated_at":            model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update booking: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return domain.NewConflictError("booking was modified by another transaction")
	}

	return nil
}

// LockBySpot locks the spot's booking rows in id order.
func (r *GormBookingRepository) LockBySpot(ctx context.Context, spotID uuid.UUID) ([]uuid.UUID, error) {
	return r.lockWhere(ctx, "parking_spot_id = ?", spotID)
}

// LockByLot locks the lot's booking rows in id order.
func (r *GormBookingRepository) LockByLot(ctx context.Context, lotID uuid.UUID) ([]uuid.UUID, error) {
	return r.lockWhere(ctx, "parking_lot_id = ?", lotID)
}

func (r *GormBookingRepository) lockWhere(ctx context.Context, query string, arg uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Model(&BookingModel{}).
		Where(query, arg).
		Order("id").
		Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to lock bookings: %w", err)
	}
	return ids, nil
}

// DetachSpot clears parking_spot_id on the spot's bookings.
func (r *GormBookingRepository) DetachSpot(ctx context.Context, spotID uuid.UUID) error {
	if err := r.db.WithContext(ctx).
		Model(&BookingModel{}).
		Where("parking_spot_id = ?", spotID).
		Updates(map[string]interface{}{"parking_spot_id": nil, "updated_at": time.Now().UTC()}).Error; err != nil {
		return fmt.Errorf("failed to detach spot from bookings: %w", err)
	}
	return nil
}

// DetachVehicle clears vehicle_id on the vehicle's bookings.
func (r *GormBookingRepository) DetachVehicle(ctx context.Context, vehicleID uuid.UUID) error {
	if err := r.db.WithContext(ctx).
		Model(&BookingModel{}).
		Where("vehicle_id = ?", vehicleID).
		Updates(map[string]interface{}{"vehicle_id": nil, "updated_at": time.Now().UTC()}).Error; err != nil {
		return fmt.Errorf("failed to detach vehicle from bookings: %w", err)
	}
	return nil
}

// DeleteByLot removes every booking of the lot.
func (r *GormBookingRepository) DeleteByLot(ctx context.Context, lotID uuid.UUID) error {
	if err := r.db.WithContext(ctx).Where("parking_lot_id = ?", lotID).Delete(&BookingModel{}).Error; err != nil {
		return fmt.Errorf("failed to delete lot bookings: %w", err)
	}
	return nil
}

func excludeIDs(db *gorm.DB, skip []uuid.UUID) *gorm.DB {
	if len(skip) == 0 {
		return db
	}
	return db.Where("id NOT IN ?", skip)
}

// --- Mapping helpers ---

func freeingStatuses() []string {
	out := make([]string, len(bookingDomain.FreeingStatuses))
	for i, s := range bookingDomain.FreeingStatuses {
		out[i] = string(s)
	}
	return out
}

func toBookingModel(bk *bookingDomain.Booking) *BookingModel {
	return &BookingModel{
		ID:                 bk.ID(),
		BookingNumber:      bk.BookingNumber(),
		UserID:             bk.UserID(),
		ParkingLotID:       bk.ParkingLotID(),
		ParkingSpotID:      bk.ParkingSpotID(),
		VehicleID:          bk.VehicleID(),
		Status:             string(bk.Status()),
		StartTime:          bk.StartTime().UTC(),
		EndTime:            bk.EndTime().UTC(),
		ExpectedCost:       bk.ExpectedCost(),
		ActualCost:         bk.ActualCost(),
		ActualCheckInTime:  bk.ActualCheckInTime(),
		ActualCheckOutTime: bk.ActualCheckOutTime(),
		PaymentID:          bk.PaymentID(),
		Version:            bk.Version(),
		CreatedAt:          bk.CreatedAt(),
		UpdatedAt:          bk.UpdatedAt(),
	}
}

func toDomainBooking(m *BookingModel) *bookingDomain.Booking {
	return bookingDomain.ReconstructBooking(
		m.ID,
		m.BookingNumber,
		m.UserID,
		m.ParkingLotID,
		m.ParkingSpotID,
		m.VehicleID,
		bookingDomain.BookingStatus(m.Status),
		m.StartTime.UTC(),
		m.EndTime.UTC(),
		m.ExpectedCost,
		m.ActualCost,
		utcPtr(m.ActualCheckInTime),
		utcPtr(m.ActualCheckOutTime),
		m.PaymentID,
		m.Version,
		m.CreatedAt.UTC(),
		m.UpdatedAt.UTC(),
	)
}

func toDomainBookings(models []BookingModel) []*bookingDomain.Booking {
	bookings := make([]*bookingDomain.Booking, len(models))
	for i := range models {
		bookings[i] = toDomainBooking(&models[i])
	}
	return bookings
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
