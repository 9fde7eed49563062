package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListFilter narrows booking queries. Nil fields are ignored.
type ListFilter struct {
	UserID       *uuid.UUID
	ParkingLotID *uuid.UUID
	Status       *BookingStatus
	// Upcoming true keeps bookings starting at or after Now; false keeps bookings that ended before Now.
	Upcoming *bool
	Now      time.Time
}

// BookingRepository defines the persistence contract for booking aggregates.
type BookingRepository interface {
	// FindByID retrieves a booking by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// FindByIDForUpdate retrieves a booking and locks its row until the transaction ends.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Booking, error)

	// FindOverlapping returns bookings on the spot whose window intersects [start, end)
	// and whose status still claims the window.
	FindOverlapping(ctx context.Context, spotID uuid.UUID, start, end time.Time) ([]*Booking, error)

	// FindHoldingSpot returns confirmed or active bookings on the spot, excluding excludeID.
	FindHoldingSpot(ctx context.Context, spotID uuid.UUID, excludeID uuid.UUID) ([]*Booking, error)

	// List retrieves bookings matching filter with pagination, newest start first.
	List(ctx context.Context, filter ListFilter, page, limit int) ([]*Booking, int64, error)

	// FindPendingPaymentBefore returns pending_payment bookings created before cutoff,
	// oldest first, leaving out the ids in skip.
	FindPendingPaymentBefore(ctx context.Context, cutoff time.Time, skip []uuid.UUID, limit int) ([]uuid.UUID, error)

	// FindUnclaimedEndedBefore returns confirmed bookings whose window ended before cutoff,
	// earliest end first, leaving out the ids in skip.
	FindUnclaimedEndedBefore(ctx context.Context, cutoff time.Time, skip []uuid.UUID, limit int) ([]uuid.UUID, error)

	// CountByStatus returns booking counts grouped by status (admin).
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// Save persists a new booking.
	Save(ctx context.Context, booking *Booking) error

	// Update persists changes to an existing booking with optimistic locking.
	Update(ctx context.Context, booking *Booking) error

	// LockBySpot locks every booking row of the spot and returns their ids.
	LockBySpot(ctx context.Context, spotID uuid.UUID) ([]uuid.UUID, error)

	// LockByLot locks every booking row of the lot and returns their ids.
	LockByLot(ctx context.Context, lotID uuid.UUID) ([]uuid.UUID, error)

	// DetachSpot clears the spot reference on every booking of the spot.
	DetachSpot(ctx context.Context, spotID uuid.UUID) error

	// DetachVehicle clears the vehicle reference on every booking of the vehicle.
	DetachVehicle(ctx context.Context, vehicleID uuid.UUID) error

	// DeleteByLot removes every booking of the lot.
	DeleteByLot(ctx context.Context, lotID uuid.UUID) error
}
