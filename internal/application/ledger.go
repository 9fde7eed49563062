package application

import (
	"context"

	"github.com/google/uuid"

	bookingDomain "github.com/Kilat-Parking/service-parking/internal/domain/booking"
	"github.com/Kilat-Parking/service-parking/internal/domain/parking"
	"github.com/Kilat-Parking/service-parking/internal/domain/store"
)

// The functions in this file are the only writers of a lot's availableSpots. Each runs inside
// the caller's transaction and expects the lot row to be locked already.

// saveSpotStatus persists a spot whose status moved from `from` and mirrors the move into the lot.
func saveSpotStatus(ctx context.Context, repos store.Repositories, lot *parking.Lot, spot *parking.Spot, from parking.SpotStatus) error {
	if err := repos.Spots.Update(ctx, spot); err != nil {
		return err
	}
	if from == spot.Status() {
		return nil
	}
	lot.ApplySpotStatusChange(from, spot.Status())
	return repos.Lots.Update(ctx, lot)
}

// syncBookingSpot applies the spot side effects of bk moving from `from` to its current status.
// from is empty for a booking that was just created.
func syncBookingSpot(ctx context.Context, repos store.Repositories, lot *parking.Lot, bk *bookingDomain.Booking, from bookingDomain.BookingStatus) error {
	spotID := bk.ParkingSpotID()
	if spotID == nil || from == bk.Status() {
		return nil
	}

	spot, err := repos.Spots.FindByIDForUpdate(ctx, *spotID)
	if err != nil {
		return err
	}

	to := bk.Status()
	var (
		prev    parking.SpotStatus
		changed bool
	)
	switch {
	case to == bookingDomain.StatusActive:
		prev, changed = spot.Occupy()
	case to == bookingDomain.StatusConfirmed && from == bookingDomain.StatusActive:
		next, err := nextSpotStatus(ctx, repos, *spotID, bk.ID())
		if err != nil {
			return err
		}
		if next != parking.SpotOccupied {
			next = parking.SpotReserved
		}
		prev, changed = spot.Release(next)
	case to == bookingDomain.StatusConfirmed:
		prev, changed = spot.Reserve()
	case from.HoldsSpot() && !to.HoldsSpot():
		next, err := nextSpotStatus(ctx, repos, *spotID, bk.ID())
		if err != nil {
			return err
		}
		prev, changed = spot.Release(next)
	}

	if !changed {
		return nil
	}
	return saveSpotStatus(ctx, repos, lot, spot, prev)
}

// nextSpotStatus returns the status a spot should take once bookingID stops holding it:
// occupied while another booking is active, reserved while another is confirmed, else available.
func nextSpotStatus(ctx context.Context, repos store.Repositories, spotID, bookingID uuid.UUID) (parking.SpotStatus, error) {
	holders, err := repos.Bookings.FindHoldingSpot(ctx, spotID, bookingID)
	if err != nil {
		return "", err
	}

	next := parking.SpotAvailable
	for _, h := range holders {
		if h.Status() == bookingDomain.StatusActive {
			return parking.SpotOccupied, nil
		}
		next = parking.SpotReserved
	}
	return next, nil
}

// reconcileLot recounts availableSpots from the spot rows.
func reconcileLot(ctx context.Context, repos store.Repositories, lot *parking.Lot) error {
	available, err := repos.Spots.CountAvailableByLot(ctx, lot.ID())
	if err != nil {
		return err
	}
	lot.Reconcile(int(available))
	return repos.Lots.Update(ctx, lot)
}
