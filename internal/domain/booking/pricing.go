package booking

import (
	"math"
	"math/bits"
	"time"

	"github.com/Kilat-Parking/service-parking/pkg/domain"
)

const msPerHour = int64(time.Hour / time.Millisecond)

// maxHourlyRate keeps the rate representable in int64 cents.
const maxHourlyRate = 1e15

// ExpectedCost returns the reservation estimate: the exact duration in hours times the
// hourly rate, rounded half-up to the cent.
func ExpectedCost(start, end time.Time, hourlyRate float64) (float64, error) {
	ms, rateCents, err := costInputs(start, end, hourlyRate)
	if err != nil {
		return 0, err
	}
	// half-up at the cent: floor((ms*rate + msPerHour/2) / msPerHour)
	product, err := mulCents(ms, rateCents)
	if err != nil {
		return 0, err
	}
	if product > math.MaxInt64-msPerHour/2 {
		return 0, errCostOverflow
	}
	return domain.FromCents((product + msPerHour/2) / msPerHour), nil
}

// ActualCost returns the billed amount: the stay rounded up to whole hours times the hourly rate.
func ActualCost(checkIn, checkOut time.Time, hourlyRate float64) (float64, error) {
	ms, rateCents, err := costInputs(checkIn, checkOut, hourlyRate)
	if err != nil {
		return 0, err
	}
	cents, err := mulCents(BillableHours(ms), rateCents)
	if err != nil {
		return 0, err
	}
	return domain.FromCents(cents), nil
}

// BillableHours rounds a duration in milliseconds up to whole hours.
func BillableHours(ms int64) int64 {
	return ms/msPerHour + boolToInt(ms%msPerHour != 0)
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

var errCostOverflow = domain.NewValidationError("cost exceeds the supported range")

func mulCents(a, b int64) (int64, error) {
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi != 0 || lo > math.MaxInt64 {
		return 0, errCostOverflow
	}
	return int64(lo), nil
}

func costInputs(from, to time.Time, hourlyRate float64) (int64, int64, error) {
	if hourlyRate < 0 || math.IsNaN(hourlyRate) {
		return 0, 0, domain.NewValidationError("hourly rate cannot be negative")
	}
	if hourlyRate > maxHourlyRate {
		return 0, 0, errCostOverflow
	}
	d := to.Sub(from)
	if d < 0 {
		return 0, 0, domain.NewValidationError("duration cannot be negative")
	}
	// Sub saturates instead of overflowing.
	if d == time.Duration(math.MaxInt64) {
		return 0, 0, errCostOverflow
	}
	return d.Milliseconds(), domain.ToCents(hourlyRate), nil
}
