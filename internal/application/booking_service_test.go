package application

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kilat-Parking/service-parking/pkg/domain"
	"github.com/Kilat-Parking/service-parking/pkg/events"
)

func TestBookingService_SingleSpotLifecycle(t *testing.T) {
	env := newTestEnv(t, BookingConfig{})
	ctx := context.Background()
	lot, spots := env.seedLot(t, 10, "A1")
	driver := env.driver(t)

	start, end := window(2*time.Hour, time.Hour)
	bk, err := env.bookings.CreateBooking(ctx, driver, CreateBookingRequest{
		ParkingLotID: lot.ID,
		StartTime:    start,
		EndTime:      end,
	})
	require.NoError(t, err)
	assert.Equal(t, "confirmed", bk.Status)
	assert.InDelta(t, 10.0, bk.ExpectedCost, 0.0001)
	require.NotNil(t, bk.ParkingSpotID)
	assert.Equal(t, spots[0].ID, *bk.ParkingSpotID)

	assert.Equal(t, "reserved", env.spotStatus(t, spots[0].ID))
	after := env.lot(t, lot.ID)
	assert.Equal(t, 0, after.AvailableSpots)
	assert.Equal(t, "full", after.Status)

	// A second request without a spot cannot be served.
	other := env.driver(t)
	_, err = env.bookings.CreateBooking(ctx, other, CreateBookingRequest{
		ParkingLotID: lot.ID,
		StartTime:    start.Add(30 * time.Minute),
		EndTime:      end.Add(30 * time.Minute),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no spot available")

	cancelled, err := env.bookings.CancelBooking(ctx, driver, bk.ID)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", cancelled.Status)

	assert.Equal(t, "available", env.spotStatus(t, spots[0].ID))
	after = env.lot(t, lot.ID)
	assert.Equal(t, 1, after.AvailableSpots)
	assert.Equal(t, "open", after.Status)
	env.assertLedger(t, lot.ID)

	assert.Equal(t, []string{events.BookingCreated, events.BookingCancelled}, env.publisher.types())
}

func TestBookingService_AutoAssignSkipsConflictedSpot(t *testing.T) {
	env := newTestEnv(t, BookingConfig{})
	ctx := context.Background()
	lot, spots := env.seedLot(t, 10, "A1", "A2")

	start, end := window(2*time.Hour, 2*time.Hour)
	first, err := env.bookings.CreateBooking(ctx, env.driver(t), CreateBookingRequest{
		ParkingLotID:  lot.ID,
		ParkingSpotID: &spots[0].ID,
		StartTime:     start,
		EndTime:       end,
	})
	require.NoError(t, err)
	require.Equal(t, spots[0].ID, *first.ParkingSpotID)

	second, err := env.bookings.CreateBooking(ctx, env.driver(t), CreateBookingRequest{
		ParkingLotID: lot.ID,
		StartTime:    start.Add(time.Hour),
		EndTime:      end.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, spots[1].ID, *second.ParkingSpotID)

	env.assertLedger(t, lot.ID)
	assert.Equal(t, "full", env.lot(t, lot.ID).Status)
}

func TestBookingService_AutoAssignSkipsSpotClaimedByUnpaidBooking(t *testing.T) {
	env := newTestEnv(t, BookingConfig{RequirePayment: true})
	ctx := context.Background()
	lot, spots := env.seedLot(t, 10, "A1", "A2")

	start, end := window(2*time.Hour, 2*time.Hour)
	_, err := env.bookings.CreateBooking(ctx, env.driver(t), CreateBookingRequest{
		ParkingLotID:  lot.ID,
		ParkingSpotID: &spots[0].ID,
		StartTime:     start,
		EndTime:       end,
	})
	require.NoError(t, err)
	// Both spots are still available; only the booking claims A1's window.
	require.Equal(t, 2, env.lot(t, lot.ID).AvailableSpots)

	second, err := env.bookings.CreateBooking(ctx, env.driver(t), CreateBookingRequest{
		ParkingLotID: lot.ID,
		StartTime:    start.Add(time.Hour),
		EndTime:      end.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, spots[1].ID, *second.ParkingSpotID)

	// Outside the claimed window A1 is the first choice again.
	third, err := env.bookings.CreateBooking(ctx, env.driver(t), CreateBookingRequest{
		ParkingLotID: lot.ID,
		StartTime:    end.Add(4 * time.Hour),
		EndTime:      end.Add(5 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, spots[0].ID, *third.ParkingSpotID)
}

func TestBookingService_AutoAssignPicksLowestSpotNumber(t *testing.T) {
	env := newTestEnv(t, BookingConfig{})
	lot, spots := env.seedLot(t, 10, "B2", "A1", "B1")

	start, end := window(2*time.Hour, time.Hour)
	bk, err := env.bookings.CreateBooking(context.Background(), env.driver(t), CreateBookingRequest{
		ParkingLotID: lot.ID,
		StartTime:    start,
		EndTime:      end,
	})
	require.NoError(t, err)
	assert.Equal(t, spots[1].ID, *bk.ParkingSpotID)
}

func TestBookingService_CreateBookingRejections(t *testing.T) {
	env := newTestEnv(t, BookingConfig{})
	ctx := context.Background()
	lot, spots := env.seedLot(t, 10, "A1", "A2")
	otherLot, otherSpots := env.seedLot(t, 10, "Z1")
	driver := env.driver(t)
	admin := env.admin(t)
	start, end := window(2*time.Hour, time.Hour)

	_, err := env.parking.UpdateSpot(ctx, admin, spots[1].ID, UpdateSpotRequest{Status: strPtr("maintenance")})
	require.NoError(t, err)

	strangerVehicle, err := env.vehicles.CreateVehicle(ctx, env.driver(t), CreateVehicleRequest{LicensePlate: "OTHER1"})
	require.NoError(t, err)

	missingLot := uuid.New()

	tests := []struct {
		name     string
		req      CreateBookingRequest
		wantKind domain.ErrorKind
	}{
		{
			name:     "end before start",
			req:      CreateBookingRequest{ParkingLotID: lot.ID, StartTime: end, EndTime: start},
			wantKind: domain.KindValidation,
		},
		{
			name:     "end equals start",
			req:      CreateBookingRequest{ParkingLotID: lot.ID, StartTime: start, EndTime: start},
			wantKind: domain.KindValidation,
		},
		{
			name:     "unknown lot",
			req:      CreateBookingRequest{ParkingLotID: missingLot, StartTime: start, EndTime: end},
			wantKind: domain.KindNotFound,
		},
		{
			name:     "spot from another lot",
			req:      CreateBookingRequest{ParkingLotID: lot.ID, ParkingSpotID: &otherSpots[0].ID, StartTime: start, EndTime: end},
			wantKind: domain.KindValidation,
		},
		{
			name:     "spot under maintenance",
			req:      CreateBookingRequest{ParkingLotID: lot.ID, ParkingSpotID: &spots[1].ID, StartTime: start, EndTime: end},
			wantKind: domain.KindConflict,
		},
		{
			name:     "vehicle of another user",
			req:      CreateBookingRequest{ParkingLotID: lot.ID, VehicleID: &strangerVehicle.ID, StartTime: start, EndTime: end},
			wantKind: domain.KindForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.bookings.CreateBooking(ctx, driver, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, domain.KindOf(err), "got %v", err)
		})
	}

	env.assertLedger(t, lot.ID)
	env.assertLedger(t, otherLot.ID)
}

func TestBookingService_CreateBookingOnClosedLot(t *testing.T) {
	env := newTestEnv(t, BookingConfig{})
	ctx := context.Background()
	lot, _ := env.seedLot(t, 10, "A1")

	_, err := env.parking.UpdateLot(ctx, env.admin(t), lot.ID, UpdateLotRequest{Status: strPtr("closed")})
	require.NoError(t, err)

	start, end := window(2*time.Hour, time.Hour)
	_, err = env.bookings.CreateBooking(ctx, env.driver(t), CreateBookingRequest{ParkingLotID: lot.ID, StartTime: start, EndTime: end})
	assert.True(t, domain.IsKind(err, domain.KindInvalidState))
}

func TestBookingService_ExplicitSpotOverlap(t *testing.T) {
	env := newTestEnv(t, BookingConfig{})
	ctx := context.Background()
	lot, spots := env.seedLot(t, 10, "A1", "A2")

	start, end := window(2*time.Hour, 2*time.Hour)
	_, err := env.bookings.CreateBooking(ctx, env.driver(t), CreateBookingRequest{
		ParkingLotID: lot.ID, ParkingSpotID: &spots[0].ID, StartTime: start, EndTime: end,
	})
	require.NoError(t, err)

	_, err = env.bookings.CreateBooking(ctx, env.driver(t), CreateBookingRequest{
		ParkingLotID: lot.ID, ParkingSpotID: &spots[0].ID, StartTime: start.Add(time.Hour), EndTime: end.Add(time.Hour),
	})
	assert.True(t, domain.IsKind(err, domain.KindConflict))

	// Back-to-back windows do not overlap, and a reserved spot stays bookable.
	bk, err := env.bookings.CreateBooking(ctx, env.driver(t), CreateBookingRequest{
		ParkingLotID: lot.ID, ParkingSpotID: &spots[0].ID, StartTime: end, EndTime: end.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, spots[0].ID, *bk.ParkingSpotID)
	env.assertLedger(t, lot.ID)
}

func TestBookingService_CancelRules(t *testing.T) {
	env := newTestEnv(t, BookingConfig{})
	ctx := context.Background()
	lot, _ := env.seedLot(t, 10, "A1", "A2")
	driver := env.driver(t)

	soonStart, soonEnd := window(30*time.Minute, time.Hour)
	soon, err := env.bookings.CreateBooking(ctx, driver, CreateBookingRequest{ParkingLotID: lot.ID, StartTime: soonStart, EndTime: soonEnd})
	require.NoError(t, err)

	_, err = env.bookings.CancelBooking(ctx, driver, soon.ID)
	assert.True(t, domain.IsKind(err, domain.KindInvalidState))

	laterStart, laterEnd := window(3*time.Hour, time.Hour)
	later, err := env.bookings.CreateBooking(ctx, driver, CreateBookingRequest{ParkingLotID: lot.ID, StartTime: laterStart, EndTime: laterEnd})
	require.NoError(t, err)

	_, err = env.bookings.CancelBooking(ctx, env.driver(t), later.ID)
	assert.True(t, domain.IsKind(err, domain.KindForbidden))

	_, err = env.bookings.CancelBooking(ctx, env.admin(t), later.ID)
	assert.True(t, domain.IsKind(err, domain.KindForbidden))

	_, err = env.bookings.CancelBooking(ctx, driver, uuid.New())
	assert.True(t, domain.IsKind(err, domain.KindNotFound))

	env.assertLedger(t, lot.ID)
}

func TestBookingService_CheckInAndCheckOut(t *testing.T) {
	env := newTestEnv(t, BookingConfig{})
	ctx := context.Background()
	lot, spots := env.seedLot(t, 10, "A1", "A2")
	driver := env.driver(t)

	v, err := env.vehicles.CreateVehicle(ctx, driver, CreateVehicleRequest{LicensePlate: "abc123"})
	require.NoError(t, err)

	start, end := window(0, 2*time.Hour)
	bk, err := env.bookings.CreateBooking(ctx, driver, CreateBookingRequest{
		ParkingLotID: lot.ID, ParkingSpotID: &spots[0].ID, VehicleID: &v.ID, StartTime: start, EndTime: end,
	})
	require.NoError(t, err)

	_, err = env.bookings.CheckOut(ctx, driver, bk.ID)
	assert.True(t, domain.IsKind(err, domain.KindInvalidState))

	active, err := env.bookings.CheckIn(ctx, driver, bk.ID)
	require.NoError(t, err)
	assert.Equal(t, "active", active.Status)
	assert.Equal(t, "occupied", env.spotStatus(t, spots[0].ID))
	assert.Equal(t, 1, env.lot(t, lot.ID).AvailableSpots)

	env.clock = env.clock.Add(61 * time.Minute)
	done, err := env.bookings.CheckOut(ctx, driver, bk.ID)
	require.NoError(t, err)
	assert.Equal(t, "completed", done.Status)
	require.NotNil(t, done.ActualCost)
	assert.InDelta(t, 20.0, *done.ActualCost, 0.0001)
	assert.Equal(t, "available", env.spotStatus(t, spots[0].ID))
	assert.Equal(t, 2, env.lot(t, lot.ID).AvailableSpots)

	// Checking out again is a no-op.
	env.clock = env.clock.Add(5 * time.Hour)
	again, err := env.bookings.CheckOut(ctx, driver, bk.ID)
	require.NoError(t, err)
	assert.Equal(t, "completed", again.Status)
	assert.InDelta(t, 20.0, *again.ActualCost, 0.0001)
	assert.Equal(t, done.Version, again.Version)

	require.Len(t, env.notifier.sent, 1)
	receipt := env.notifier.sent[0]
	assert.Contains(t, receipt.subject, done.BookingNumber)
	assert.Contains(t, receipt.body, "ABC123")
	assert.Contains(t, receipt.body, "Hours: 2")
	assert.Contains(t, receipt.body, "20.00 USD")

	assert.Equal(t, []string{events.BookingCreated, events.BookingCheckedIn, events.BookingCompleted}, env.publisher.types())
	env.assertLedger(t, lot.ID)
}

func TestBookingService_ReleaseKeepsSpotForNextHolder(t *testing.T) {
	env := newTestEnv(t, BookingConfig{})
	ctx := context.Background()
	lot, spots := env.seedLot(t, 10, "A1")
	first, second := env.driver(t), env.driver(t)

	s1, e1 := window(0, time.Hour)
	b1, err := env.bookings.CreateBooking(ctx, first, CreateBookingRequest{ParkingLotID: lot.ID, ParkingSpotID: &spots[0].ID, StartTime: s1, EndTime: e1})
	require.NoError(t, err)

	s2, e2 := window(4*time.Hour, time.Hour)
	_, err = env.bookings.CreateBooking(ctx, second, CreateBookingRequest{ParkingLotID: lot.ID, ParkingSpotID: &spots[0].ID, StartTime: s2, EndTime: e2})
	require.NoError(t, err)

	_, err = env.bookings.CheckIn(ctx, first, b1.ID)
	require.NoError(t, err)
	env.clock = env.clock.Add(45 * time.Minute)
	_, err = env.bookings.CheckOut(ctx, first, b1.ID)
	require.NoError(t, err)

	// The later confirmed booking still holds the spot.
	assert.Equal(t, "reserved", env.spotStatus(t, spots[0].ID))
	assert.Equal(t, 0, env.lot(t, lot.ID).AvailableSpots)
	env.assertLedger(t, lot.ID)
}

func TestBookingService_OverrideStatus(t *testing.T) {
	env := newTestEnv(t, BookingConfig{})
	ctx := context.Background()
	lot, spots := env.seedLot(t, 10, "A1")
	driver := env.driver(t)
	admin := env.admin(t)

	start, end := window(2*time.Hour, time.Hour)
	bk, err := env.bookings.CreateBooking(ctx, driver, CreateBookingRequest{ParkingLotID: lot.ID, StartTime: start, EndTime: end})
	require.NoError(t, err)

	_, err = env.bookings.OverrideStatus(ctx, driver, bk.ID, "active")
	assert.True(t, domain.IsKind(err, domain.KindForbidden))

	_, err = env.bookings.OverrideStatus(ctx, admin, bk.ID, "parked")
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	active, err := env.bookings.OverrideStatus(ctx, admin, bk.ID, "active")
	require.NoError(t, err)
	assert.NotNil(t, active.ActualCheckInTime)
	assert.Equal(t, "occupied", env.spotStatus(t, spots[0].ID))

	back, err := env.bookings.OverrideStatus(ctx, admin, bk.ID, "confirmed")
	require.NoError(t, err)
	assert.Equal(t, "confirmed", back.Status)
	assert.Equal(t, "reserved", env.spotStatus(t, spots[0].ID))

	expired, err := env.bookings.OverrideStatus(ctx, admin, bk.ID, "expired")
	require.NoError(t, err)
	assert.Equal(t, "expired", expired.Status)
	assert.Equal(t, "available", env.spotStatus(t, spots[0].ID))

	_, err = env.bookings.OverrideStatus(ctx, admin, bk.ID, "confirmed")
	assert.True(t, domain.IsKind(err, domain.KindInvalidState))

	env.assertLedger(t, lot.ID)
	assert.Equal(t, "open", env.lot(t, lot.ID).Status)
}

func TestBookingService_PaymentFlow(t *testing.T) {
	env := newTestEnv(t, BookingConfig{RequirePayment: true, PaymentTimeout: 15 * time.Minute})
	ctx := context.Background()
	lot, spots := env.seedLot(t, 10, "A1")
	driver := env.driver(t)

	start, end := window(2*time.Hour, time.Hour)
	bk, err := env.bookings.CreateBooking(ctx, driver, CreateBookingRequest{ParkingLotID: lot.ID, StartTime: start, EndTime: end})
	require.NoError(t, err)
	assert.Equal(t, "pending_payment", bk.Status)
	assert.Equal(t, "available", env.spotStatus(t, spots[0].ID))

	// The window is claimed while payment is pending.
	_, err = env.bookings.CreateBooking(ctx, env.driver(t), CreateBookingRequest{ParkingLotID: lot.ID, StartTime: start, EndTime: end})
	assert.True(t, domain.IsKind(err, domain.KindConflict))

	_, err = env.bookings.CancelBooking(ctx, driver, bk.ID)
	assert.True(t, domain.IsKind(err, domain.KindInvalidState))

	require.NoError(t, env.bookings.ConfirmPayment(ctx, bk.ID, "pay_123"))
	require.NoError(t, env.bookings.ConfirmPayment(ctx, bk.ID, "pay_123"))

	got, err := env.bookings.GetBooking(ctx, driver, bk.ID)
	require.NoError(t, err)
	assert.Equal(t, "confirmed", got.Status)
	require.NotNil(t, got.PaymentID)
	assert.Equal(t, "pay_123", *got.PaymentID)
	assert.Equal(t, "reserved", env.spotStatus(t, spots[0].ID))

	err = env.bookings.ConfirmPayment(ctx, bk.ID, "pay_other")
	assert.True(t, domain.IsKind(err, domain.KindInvalidState))

	// A late failure leaves the confirmed booking alone.
	require.NoError(t, env.bookings.FailPayment(ctx, bk.ID))
	got, err = env.bookings.GetBooking(ctx, driver, bk.ID)
	require.NoError(t, err)
	assert.Equal(t, "confirmed", got.Status)

	assert.Equal(t, []string{events.BookingCreated, events.BookingConfirmed}, env.publisher.types())
	env.assertLedger(t, lot.ID)
}

func TestBookingService_FailPaymentExpires(t *testing.T) {
	env := newTestEnv(t, BookingConfig{RequirePayment: true})
	ctx := context.Background()
	lot, _ := env.seedLot(t, 10, "A1")
	driver := env.driver(t)

	start, end := window(2*time.Hour, time.Hour)
	bk, err := env.bookings.CreateBooking(ctx, driver, CreateBookingRequest{ParkingLotID: lot.ID, StartTime: start, EndTime: end})
	require.NoError(t, err)

	require.NoError(t, env.bookings.FailPayment(ctx, bk.ID))
	got, err := env.bookings.GetBooking(ctx, driver, bk.ID)
	require.NoError(t, err)
	assert.Equal(t, "expired", got.Status)

	// The window is free again.
	_, err = env.bookings.CreateBooking(ctx, env.driver(t), CreateBookingRequest{ParkingLotID: lot.ID, StartTime: start, EndTime: end})
	assert.NoError(t, err)
}

func TestBookingService_Listings(t *testing.T) {
	env := newTestEnv(t, BookingConfig{})
	ctx := context.Background()
	lot, _ := env.seedLot(t, 10, "A1", "A2", "A3")
	driver := env.driver(t)
	other := env.driver(t)
	admin := env.admin(t)

	pastStart, pastEnd := window(-5*time.Hour, time.Hour)
	_, err := env.bookings.CreateBooking(ctx, driver, CreateBookingRequest{ParkingLotID: lot.ID, StartTime: pastStart, EndTime: pastEnd})
	require.NoError(t, err)
	futureStart, futureEnd := window(5*time.Hour, time.Hour)
	_, err = env.bookings.CreateBooking(ctx, driver, CreateBookingRequest{ParkingLotID: lot.ID, StartTime: futureStart, EndTime: futureEnd})
	require.NoError(t, err)
	_, err = env.bookings.CreateBooking(ctx, other, CreateBookingRequest{ParkingLotID: lot.ID, StartTime: futureStart, EndTime: futureEnd})
	require.NoError(t, err)

	mine, total, err := env.bookings.ListMyBookings(ctx, driver, "", nil, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.True(t, mine[0].StartTime.After(mine[1].StartTime), "newest start first")

	upcoming := true
	mine, total, err = env.bookings.ListMyBookings(ctx, driver, "", &upcoming, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.True(t, mine[0].StartTime.Equal(futureStart))

	past := false
	_, total, err = env.bookings.ListMyBookings(ctx, driver, "confirmed", &past, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	_, _, err = env.bookings.ListMyBookings(ctx, driver, "parked", nil, 1, 20)
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	_, _, err = env.bookings.ListAllBookings(ctx, driver, BookingListQuery{}, 1, 20)
	assert.True(t, domain.IsKind(err, domain.KindForbidden))

	all, total, err := env.bookings.ListAllBookings(ctx, admin, BookingListQuery{UserID: &other.ID}, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, other.ID, all[0].UserID)

	exported, err := env.bookings.ExportBookings(ctx, admin, BookingListQuery{ParkingLotID: &lot.ID})
	require.NoError(t, err)
	assert.Len(t, exported, 3)

	stats, err := env.bookings.GetBookingStats(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalBookings)
	assert.Equal(t, int64(3), stats.ByStatus["confirmed"])

	_, err = env.bookings.GetBooking(ctx, other, mine[0].ID)
	assert.True(t, domain.IsKind(err, domain.KindForbidden))
	_, err = env.bookings.GetBooking(ctx, admin, mine[0].ID)
	assert.NoError(t, err)
}

func TestBookingService_PublishFailureDoesNotFailBooking(t *testing.T) {
	env := newTestEnv(t, BookingConfig{})
	env.publisher.err = assert.AnError
	lot, _ := env.seedLot(t, 10, "A1")

	start, end := window(2*time.Hour, time.Hour)
	bk, err := env.bookings.CreateBooking(context.Background(), env.driver(t), CreateBookingRequest{ParkingLotID: lot.ID, StartTime: start, EndTime: end})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(bk.BookingNumber, "PK-"))
}

func strPtr(s string) *string { return &s }
