package parking

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Kilat-Parking/service-parking/pkg/domain"
)

// Location groups the address and coordinates of a lot.
type Location struct {
	Address   string  `json:"address"`
	City      string  `json:"city"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Lot is the aggregate root for a parking facility. availableSpots is a projection of
// its spots' statuses and only changes through the ledger methods below.
type Lot struct {
	id             uuid.UUID
	name           string
	location       Location
	totalSpots     int
	availableSpots int
	hourlyRate     float64
	status         LotStatus
	ownerID        *uuid.UUID
	createdAt      time.Time
	updatedAt      time.Time
}

// NewLot creates a lot with no spots. status defaults to open, which reads as full until
// a spot becomes available.
func NewLot(name string, location Location, totalSpots int, hourlyRate float64, status LotStatus, ownerID *uuid.UUID) (*Lot, error) {
	name = strings.TrimSpace(name)
	var fields []domain.FieldError
	if name == "" {
		fields = append(fields, domain.FieldError{Field: "name", Message: "is required"})
	}
	if strings.TrimSpace(location.Address) == "" {
		fields = append(fields, domain.FieldError{Field: "address", Message: "is required"})
	}
	if totalSpots < 1 {
		fields = append(fields, domain.FieldError{Field: "total_spots", Message: "must be at least 1"})
	}
	if hourlyRate < 0 {
		fields = append(fields, domain.FieldError{Field: "hourly_rate", Message: "cannot be negative"})
	}
	if status == "" {
		status = LotOpen
	}
	if status == LotFull || !status.IsValid() {
		fields = append(fields, domain.FieldError{Field: "status", Message: "must be one of [open closed maintenance]"})
	}
	if len(fields) > 0 {
		return nil, domain.NewFieldValidationError(fields...)
	}

	// No spots are built yet, so an open lot starts full.
	if status == LotOpen {
		status = LotFull
	}

	now := time.Now().UTC()
	return &Lot{
		id:         uuid.New(),
		name:       name,
		location:   location,
		totalSpots: totalSpots,
		hourlyRate: hourlyRate,
		status:     status,
		ownerID:    ownerID,
		createdAt:  now,
		updatedAt:  now,
	}, nil
}

// ReconstructLot rebuilds a Lot from persistence data (no validation).
func ReconstructLot(
	id uuid.UUID,
	name string,
	location Location,
	totalSpots int,
	availableSpots int,
	hourlyRate float64,
	status LotStatus,
	ownerID *uuid.UUID,
	createdAt time.Time,
	updatedAt time.Time,
) *Lot {
	return &Lot{
		id:             id,
		name:           name,
		location:       location,
		totalSpots:     totalSpots,
		availableSpots: availableSpots,
		hourlyRate:     hourlyRate,
		status:         status,
		ownerID:        ownerID,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
	}
}

func (l *Lot) ID() uuid.UUID        { return l.id }
func (l *Lot) Name() string         { return l.name }
func (l *Lot) Location() Location   { return l.location }
func (l *Lot) TotalSpots() int      { return l.totalSpots }
func (l *Lot) AvailableSpots() int  { return l.availableSpots }
func (l *Lot) HourlyRate() float64  { return l.hourlyRate }
func (l *Lot) Status() LotStatus    { return l.status }
func (l *Lot) OwnerID() *uuid.UUID  { return l.ownerID }
func (l *Lot) CreatedAt() time.Time { return l.createdAt }
func (l *Lot) UpdatedAt() time.Time { return l.updatedAt }

// UpdateDetails changes the descriptive fields of the lot.
func (l *Lot) UpdateDetails(name string, location Location) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.NewFieldValidationError(domain.FieldError{Field: "name", Message: "is required"})
	}
	if strings.TrimSpace(location.Address) == "" {
		return domain.NewFieldValidationError(domain.FieldError{Field: "address", Message: "is required"})
	}
	l.name = name
	l.location = location
	l.touch()
	return nil
}

// SetHourlyRate changes the price per hour for future bookings.
func (l *Lot) SetHourlyRate(rate float64) error {
	if rate < 0 {
		return domain.NewFieldValidationError(domain.FieldError{Field: "hourly_rate", Message: "cannot be negative"})
	}
	l.hourlyRate = rate
	l.touch()
	return nil
}

// SetOwner assigns the administrator responsible for the lot.
func (l *Lot) SetOwner(ownerID *uuid.UUID) {
	l.ownerID = ownerID
	l.touch()
}

// SetStatus changes the operating status. full is derived and cannot be set directly;
// reopening a lot with nothing available lands on full.
func (l *Lot) SetStatus(status LotStatus) error {
	if status == LotFull || !status.IsValid() {
		return domain.NewFieldValidationError(domain.FieldError{Field: "status", Message: "must be one of [open closed maintenance]"})
	}
	l.status = status
	if l.status == LotOpen && l.availableSpots == 0 {
		l.status = LotFull
	}
	l.touch()
	return nil
}

// SetTotalSpots changes capacity. It cannot drop below the number of spots already built.
// availableSpots is then recounted from the live count.
func (l *Lot) SetTotalSpots(total int, existingSpots int, availableCount int) error {
	if total < 1 {
		return domain.NewFieldValidationError(domain.FieldError{Field: "total_spots", Message: "must be at least 1"})
	}
	if total < existingSpots {
		return domain.NewConflictError(fmt.Sprintf("total spots cannot be lower than the %d spots already in the lot", existingSpots))
	}
	l.totalSpots = total
	l.Reconcile(availableCount)
	return nil
}

// HasCapacityFor reports whether another spot may be added to a lot that already has existingSpots.
func (l *Lot) HasCapacityFor(existingSpots int) bool {
	return existingSpots < l.totalSpots
}

// --- Ledger ---

// ApplySpotAdded accounts for a new spot created in status.
func (l *Lot) ApplySpotAdded(status SpotStatus) {
	if status == SpotAvailable {
		l.setAvailable(l.availableSpots + 1)
	}
}

// ApplySpotRemoved accounts for a spot that was in status when deleted.
func (l *Lot) ApplySpotRemoved(status SpotStatus) {
	if status == SpotAvailable {
		l.setAvailable(l.availableSpots - 1)
	}
}

// ApplySpotStatusChange accounts for a spot moving from one status to another.
func (l *Lot) ApplySpotStatusChange(from, to SpotStatus) {
	switch {
	case from == to:
	case from == SpotAvailable:
		l.setAvailable(l.availableSpots - 1)
	case to == SpotAvailable:
		l.setAvailable(l.availableSpots + 1)
	}
}

// Reconcile overwrites the counter with a live count of available spots.
func (l *Lot) Reconcile(availableCount int) {
	l.setAvailable(availableCount)
	l.touch()
}

func (l *Lot) setAvailable(n int) {
	if n < 0 {
		n = 0
	}
	if n > l.totalSpots {
		n = l.totalSpots
	}
	l.availableSpots = n

	switch {
	case n == 0 && l.status != LotClosed && l.status != LotMaintenance:
		l.status = LotFull
	case n > 0 && l.status == LotFull:
		l.status = LotOpen
	}
	l.touch()
}

func (l *Lot) touch() {
	l.updatedAt = time.Now().UTC()
}
