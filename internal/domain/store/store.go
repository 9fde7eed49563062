package store

import (
	"context"

	"github.com/Kilat-Parking/service-parking/internal/domain/booking"
	"github.com/Kilat-Parking/service-parking/internal/domain/parking"
	"github.com/Kilat-Parking/service-parking/internal/domain/user"
	"github.com/Kilat-Parking/service-parking/internal/domain/vehicle"
)

// Repositories bundles every repository bound to the same connection or transaction.
type Repositories struct {
	Users    user.UserRepository
	Vehicles vehicle.VehicleRepository
	Lots     parking.LotRepository
	Spots    parking.SpotRepository
	Bookings booking.BookingRepository
}

// UnitOfWork runs fn inside one database transaction. The transaction commits when fn
// returns nil and rolls back otherwise; fn's error is returned unchanged.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
