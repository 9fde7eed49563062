package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	bookingDomain "github.com/Kilat-Parking/service-parking/internal/domain/booking"
	"github.com/Kilat-Parking/service-parking/internal/domain/parking"
	"github.com/Kilat-Parking/service-parking/internal/domain/store"
	"github.com/Kilat-Parking/service-parking/pkg/domain"
)

// allocateAttempts bounds how often auto-assignment retries after losing a race for a spot.
const allocateAttempts = 3

// allocateSpot picks the spot for a new booking of lot over [start, end). The lot row must
// already be locked. When spotID is set that spot is validated, otherwise a free one is chosen.
func allocateSpot(ctx context.Context, repos store.Repositories, lot *parking.Lot, spotID *uuid.UUID, start, end time.Time) (*parking.Spot, error) {
	if spotID != nil {
		return claimExplicitSpot(ctx, repos, lot, *spotID, start, end)
	}

	for i := 0; i < allocateAttempts; i++ {
		spot, err := repos.Spots.FindFreeForUpdate(ctx, lot.ID(), start, end)
		if err != nil {
			return nil, err
		}
		if spot == nil {
			break
		}

		// The row was free when selected; a booking committed while we waited on its lock may not be.
		conflicts, err := findConflicts(ctx, repos, spot.ID(), start, end)
		if err != nil {
			return nil, err
		}
		if len(conflicts) == 0 {
			return spot, nil
		}
	}
	return nil, domain.NewConflictError("no spot available for the requested time")
}

func claimExplicitSpot(ctx context.Context, repos store.Repositories, lot *parking.Lot, spotID uuid.UUID, start, end time.Time) (*parking.Spot, error) {
	spot, err := repos.Spots.FindByIDForUpdate(ctx, spotID)
	if err != nil {
		return nil, err
	}
	if spot.ParkingLotID() != lot.ID() {
		return nil, domain.NewFieldValidationError(domain.FieldError{
			Field:   "parking_spot_id",
			Message: "does not belong to the parking lot",
		})
	}
	if !spot.Status().Bookable() {
		return nil, domain.NewConflictError(fmt.Sprintf("spot %s is %s", spot.SpotNumber(), spot.Status()))
	}

	conflicts, err := findConflicts(ctx, repos, spot.ID(), start, end)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		return nil, domain.NewConflictError(fmt.Sprintf("spot %s is already booked for the requested time", spot.SpotNumber()))
	}
	return spot, nil
}

// findConflicts loads the bookings overlapping [start, end) on the spot and keeps those the
// domain rules say still claim the window.
func findConflicts(ctx context.Context, repos store.Repositories, spotID uuid.UUID, start, end time.Time) ([]*bookingDomain.Booking, error) {
	overlapping, err := repos.Bookings.FindOverlapping(ctx, spotID, start, end)
	if err != nil {
		return nil, err
	}
	return bookingDomain.Conflicting(overlapping, start, end), nil
}
