package booking

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/Kilat-Parking/service-parking/pkg/domain"
)

const bookingNumberChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CancellationNotice is how far ahead of its start a booking must be cancelled.
const CancellationNotice = time.Hour

// Booking is the aggregate root for the booking domain.
type Booking struct {
	id            uuid.UUID
	bookingNumber string
	userID        uuid.UUID
	parkingLotID  uuid.UUID
	parkingSpotID *uuid.UUID
	vehicleID     *uuid.UUID
	status        BookingStatus

	startTime time.Time
	endTime   time.Time

	expectedCost       float64
	actualCost         *float64
	actualCheckInTime  *time.Time
	actualCheckOutTime *time.Time
	paymentID          *string

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// generateBookingNumber creates a booking number in the format "PK-XXXXXX".
func generateBookingNumber() (string, error) {
	result := make([]byte, 6)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(bookingNumberChars))))
		if err != nil {
			return "", fmt.Errorf("failed to generate booking number: %w", err)
		}
		result[i] = bookingNumberChars[n.Int64()]
	}
	return "PK-" + string(result), nil
}

// MaxWindow is the longest reservation window accepted.
const MaxWindow = 366 * 24 * time.Hour

// ValidateWindow checks that a reservation window is well formed.
func ValidateWindow(start, end time.Time) error {
	var fields []domain.FieldError
	if start.IsZero() {
		fields = append(fields, domain.FieldError{Field: "start_time", Message: "is required"})
	}
	if end.IsZero() {
		fields = append(fields, domain.FieldError{Field: "end_time", Message: "is required"})
	}
	if len(fields) == 0 {
		switch {
		case !start.Before(end):
			fields = append(fields, domain.FieldError{Field: "end_time", Message: "must be after start_time"})
		case end.Sub(start) > MaxWindow:
			fields = append(fields, domain.FieldError{Field: "end_time", Message: "must be within 366 days of start_time"})
		}
	}
	if len(fields) > 0 {
		return domain.NewFieldValidationError(fields...)
	}
	return nil
}

// NewBooking creates a new Booking aggregate in the given initial status
// (confirmed for direct reservations, pending_payment when payment is required first).
func NewBooking(
	userID uuid.UUID,
	parkingLotID uuid.UUID,
	parkingSpotID *uuid.UUID,
	vehicleID *uuid.UUID,
	startTime time.Time,
	endTime time.Time,
	expectedCost float64,
	status BookingStatus,
) (*Booking, error) {
	if userID == uuid.Nil {
		return nil, domain.NewValidationError("user ID is required")
	}
	if parkingLotID == uuid.Nil {
		return nil, domain.NewValidationError("parking lot ID is required")
	}
	if err := ValidateWindow(startTime, endTime); err != nil {
		return nil, err
	}
	if expectedCost < 0 {
		return nil, domain.NewValidationError("expected cost cannot be negative")
	}
	if status != StatusConfirmed && status != StatusPendingPayment {
		return nil, domain.NewValidationError(fmt.Sprintf("bookings cannot be created as %s", status))
	}

	bookingNumber, err := generateBookingNumber()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Booking{
		id:            uuid.New(),
		bookingNumber: bookingNumber,
		userID:        userID,
		parkingLotID:  parkingLotID,
		parkingSpotID: parkingSpotID,
		vehicleID:     vehicleID,
		status:        status,
		startTime:     startTime.UTC(),
		endTime:       endTime.UTC(),
		expectedCost:  expectedCost,
		version:       1,
		createdAt:     now,
		updatedAt:     now,
	}, nil
}

// ReconstructBooking rebuilds a Booking from persistence data (no validation).
func ReconstructBooking(
	id uuid.UUID,
	bookingNumber string,
	userID uuid.UUID,
	parkingLotID uuid.UUID,
	parkingSpotID *uuid.UUID,
	vehicleID *uuid.UUID,
	status BookingStatus,
	startTime time.Time,
	endTime time.Time,
	expectedCost float64,
	actualCost *float64,
	actualCheckInTime *time.Time,
	actualCheckOutTime *time.Time,
	paymentID *string,
	version int64,
	createdAt time.Time,
	updatedAt time.Time,
) *Booking {
	return &Booking{
		id:                 id,
		bookingNumber:      bookingNumber,
		userID:             userID,
		parkingLotID:       parkingLotID,
		parkingSpotID:      parkingSpotID,
		vehicleID:          vehicleID,
		status:             status,
		startTime:          startTime,
		endTime:            endTime,
		expectedCost:       expectedCost,
		actualCost:         actualCost,
		actualCheckInTime:  actualCheckInTime,
		actualCheckOutTime: actualCheckOutTime,
		paymentID:          paymentID,
		version:            version,
		createdAt:          createdAt,
		updatedAt:          updatedAt,
	}
}

// --- Getters ---

// ID returns the booking's unique identifier.
func (b *Booking) ID() uuid.UUID { return b.id }

// BookingNumber returns the human-readable booking number.
func (b *Booking) BookingNumber() string { return b.bookingNumber }

// UserID returns the owning user's ID.
func (b *Booking) UserID() uuid.UUID { return b.userID }

// ParkingLotID returns the lot the booking is for.
func (b *Booking) ParkingLotID() uuid.UUID { return b.parkingLotID }

// ParkingSpotID returns the assigned spot, or nil if none is held.
func (b *Booking) ParkingSpotID() *uuid.UUID { return b.parkingSpotID }

// VehicleID returns the vehicle, or nil if none was given.
func (b *Booking) VehicleID() *uuid.UUID { return b.vehicleID }

// Status returns the current booking status.
func (b *Booking) Status() BookingStatus { return b.status }

// StartTime returns the start of the reserved window.
func (b *Booking) StartTime() time.Time { return b.startTime }

// EndTime returns the end of the reserved window (exclusive).
func (b *Booking) EndTime() time.Time { return b.endTime }

// ExpectedCost returns the estimate computed at creation.
func (b *Booking) ExpectedCost() float64 { return b.expectedCost }

// ActualCost returns the billed amount, or nil before checkout.
func (b *Booking) ActualCost() *float64 { return b.actualCost }

// ActualCheckInTime returns when the vehicle arrived.
func (b *Booking) ActualCheckInTime() *time.Time { return b.actualCheckInTime }

// ActualCheckOutTime returns when the vehicle left.
func (b *Booking) ActualCheckOutTime() *time.Time { return b.actualCheckOutTime }

// PaymentID returns the external payment reference.
func (b *Booking) PaymentID() *string { return b.paymentID }

// Version returns the entity version for optimistic locking.
func (b *Booking) Version() int64 { return b.version }

// CreatedAt returns the creation timestamp.
func (b *Booking) CreatedAt() time.Time { return b.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (b *Booking) UpdatedAt() time.Time { return b.updatedAt }

// Overlaps reports whether the booking's window intersects [start, end).
func (b *Booking) Overlaps(start, end time.Time) bool {
	return b.startTime.Before(end) && b.endTime.After(start)
}

// Conflicting returns the bookings that still claim a window intersecting [start, end).
func Conflicting(bookings []*Booking, start, end time.Time) []*Booking {
	var out []*Booking
	for _, b := range bookings {
		if b.status.ClaimsWindow() && b.Overlaps(start, end) {
			out = append(out, b)
		}
	}
	return out
}

// --- Behavior ---

// ConfirmPayment transitions pending_payment to confirmed and records the payment reference.
func (b *Booking) ConfirmPayment(paymentID string, now time.Time) error {
	if !b.status.CanTransitionTo(StatusConfirmed) {
		return domain.NewInvalidStateError(string(b.status), string(StatusConfirmed))
	}
	if paymentID == "" {
		return domain.NewValidationError("payment ID is required")
	}
	b.paymentID = &paymentID
	b.status = StatusConfirmed
	b.updatedAt = now.UTC()
	return nil
}

// CheckIn transitions confirmed to active and stamps the arrival time if unset.
func (b *Booking) CheckIn(now time.Time) error {
	if !b.status.CanTransitionTo(StatusActive) {
		return domain.NewInvalidStateError(string(b.status), string(StatusActive))
	}
	b.activate(now)
	return nil
}

// CheckOut transitions active to completed, stamping the exit time and billing the stay.
// Checking out a booking that is already completed changes nothing and reports false.
func (b *Booking) CheckOut(now time.Time, hourlyRate float64) (bool, error) {
	if b.status == StatusCompleted {
		return false, nil
	}
	if b.status != StatusActive {
		return false, domain.NewInvalidStateError(string(b.status), string(StatusCompleted))
	}
	if err := b.complete(now, hourlyRate); err != nil {
		return false, err
	}
	return true, nil
}

// Cancel transitions confirmed to cancelled. The start must be at least CancellationNotice away.
func (b *Booking) Cancel(now time.Time) error {
	if b.status != StatusConfirmed {
		return domain.NewStateError(fmt.Sprintf("only confirmed bookings can be cancelled (status is %s)", b.status))
	}
	if b.startTime.Sub(now) < CancellationNotice {
		return domain.NewStateError("bookings can only be cancelled at least 1 hour before the start time")
	}
	b.status = StatusCancelled
	b.updatedAt = now.UTC()
	return nil
}

// Expire transitions any pre-completed status to expired.
func (b *Booking) Expire(now time.Time) error {
	if !b.status.CanTransitionTo(StatusExpired) {
		return domain.NewInvalidStateError(string(b.status), string(StatusExpired))
	}
	b.status = StatusExpired
	b.updatedAt = now.UTC()
	return nil
}

// MarkNoShow transitions a confirmed booking whose window passed without arrival to no_show.
func (b *Booking) MarkNoShow(now time.Time) error {
	if !b.status.CanTransitionTo(StatusNoShow) {
		return domain.NewInvalidStateError(string(b.status), string(StatusNoShow))
	}
	b.status = StatusNoShow
	b.updatedAt = now.UTC()
	return nil
}

// OverrideStatus forces the booking into target on behalf of an administrator. The graph is
// bypassed, but terminal bookings stay terminal. Entering active or completed applies the
// same stamps as check-in and check-out.
func (b *Booking) OverrideStatus(target BookingStatus, now time.Time, hourlyRate float64) error {
	if !target.IsOverrideTarget() {
		return domain.NewValidationError(fmt.Sprintf("status cannot be set to %s", target))
	}
	if b.status.IsTerminal() {
		return domain.NewInvalidStateError(string(b.status), string(target))
	}
	if b.status == target {
		return domain.NewStateError(fmt.Sprintf("booking is already %s", target))
	}

	switch target {
	case StatusActive:
		b.activate(now)
	case StatusCompleted:
		if err := b.complete(now, hourlyRate); err != nil {
			return err
		}
	default:
		b.status = target
		b.updatedAt = now.UTC()
	}
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (b *Booking) IncrementVersion() {
	b.version++
	b.updatedAt = time.Now().UTC()
}

func (b *Booking) activate(now time.Time) {
	now = now.UTC()
	if b.actualCheckInTime == nil {
		b.actualCheckInTime = &now
	}
	b.status = StatusActive
	b.updatedAt = now
}

func (b *Booking) complete(now time.Time, hourlyRate float64) error {
	now = now.UTC()
	if b.actualCheckOutTime == nil {
		b.actualCheckOutTime = &now
	}
	if b.actualCost == nil && b.actualCheckInTime != nil {
		cost, err := ActualCost(*b.actualCheckInTime, *b.actualCheckOutTime, hourlyRate)
		if err != nil {
			return domain.NewValidationError(fmt.Sprintf("cannot bill booking: %v", err))
		}
		b.actualCost = &cost
	}
	b.status = StatusCompleted
	b.updatedAt = now
	return nil
}
