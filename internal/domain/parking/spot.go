package parking

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Kilat-Parking/service-parking/pkg/domain"
)

// Spot is a single bookable space inside a lot.
type Spot struct {
	id           uuid.UUID
	parkingLotID uuid.UUID
	spotNumber   string
	status       SpotStatus
	spotType     SpotType
	createdAt    time.Time
	updatedAt    time.Time
}

// NewSpot creates a spot. status defaults to available and spotType to regular.
func NewSpot(parkingLotID uuid.UUID, spotNumber string, spotType SpotType, status SpotStatus) (*Spot, error) {
	spotNumber = strings.TrimSpace(spotNumber)
	if spotType == "" {
		spotType = SpotRegular
	}
	if status == "" {
		status = SpotAvailable
	}

	var fields []domain.FieldError
	if parkingLotID == uuid.Nil {
		fields = append(fields, domain.FieldError{Field: "parking_lot_id", Message: "is required"})
	}
	if spotNumber == "" {
		fields = append(fields, domain.FieldError{Field: "spot_number", Message: "is required"})
	}
	if !spotType.IsValid() {
		fields = append(fields, domain.FieldError{Field: "spot_type", Message: "must be one of [compact regular large ev_charging handicap]"})
	}
	if !status.IsValid() {
		fields = append(fields, domain.FieldError{Field: "status", Message: "must be one of [available occupied reserved maintenance]"})
	}
	if len(fields) > 0 {
		return nil, domain.NewFieldValidationError(fields...)
	}

	now := time.Now().UTC()
	return &Spot{
		id:           uuid.New(),
		parkingLotID: parkingLotID,
		spotNumber:   spotNumber,
		status:       status,
		spotType:     spotType,
		createdAt:    now,
		updatedAt:    now,
	}, nil
}

// ReconstructSpot rebuilds a Spot from persistence data (no validation).
func ReconstructSpot(id, parkingLotID uuid.UUID, spotNumber string, status SpotStatus, spotType SpotType, createdAt, updatedAt time.Time) *Spot {
	return &Spot{
		id:           id,
		parkingLotID: parkingLotID,
		spotNumber:   spotNumber,
		status:       status,
		spotType:     spotType,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}
}

func (s *Spot) ID() uuid.UUID           { return s.id }
func (s *Spot) ParkingLotID() uuid.UUID { return s.parkingLotID }
func (s *Spot) SpotNumber() string      { return s.spotNumber }
func (s *Spot) Status() SpotStatus      { return s.status }
func (s *Spot) SpotType() SpotType      { return s.spotType }
func (s *Spot) CreatedAt() time.Time    { return s.createdAt }
func (s *Spot) UpdatedAt() time.Time    { return s.updatedAt }

// Rename changes the spot number.
func (s *Spot) Rename(spotNumber string) error {
	spotNumber = strings.TrimSpace(spotNumber)
	if spotNumber == "" {
		return domain.NewFieldValidationError(domain.FieldError{Field: "spot_number", Message: "is required"})
	}
	s.spotNumber = spotNumber
	s.touch()
	return nil
}

// SetType changes the spot category.
func (s *Spot) SetType(t SpotType) error {
	if !t.IsValid() {
		return domain.NewFieldValidationError(domain.FieldError{Field: "spot_type", Message: "must be one of [compact regular large ev_charging handicap]"})
	}
	s.spotType = t
	s.touch()
	return nil
}

// SetStatus changes the status and returns the previous one.
func (s *Spot) SetStatus(to SpotStatus) (SpotStatus, error) {
	if !to.IsValid() {
		return s.status, domain.NewFieldValidationError(domain.FieldError{Field: "status", Message: "must be one of [available occupied reserved maintenance]"})
	}
	from := s.status
	s.status = to
	if from != to {
		s.touch()
	}
	return from, nil
}

// Reserve marks an available spot as reserved. Other statuses are left alone.
func (s *Spot) Reserve() (SpotStatus, bool) {
	return s.move(SpotReserved, SpotAvailable)
}

// Occupy marks an available or reserved spot as occupied.
func (s *Spot) Occupy() (SpotStatus, bool) {
	return s.move(SpotOccupied, SpotAvailable, SpotReserved)
}

// Release moves a reserved or occupied spot to next. Spots under maintenance are left alone.
func (s *Spot) Release(next SpotStatus) (SpotStatus, bool) {
	return s.move(next, SpotReserved, SpotOccupied)
}

func (s *Spot) move(to SpotStatus, allowedFrom ...SpotStatus) (SpotStatus, bool) {
	from := s.status
	if from == to {
		return from, false
	}
	for _, a := range allowedFrom {
		if from == a {
			s.status = to
			s.touch()
			return from, true
		}
	}
	return from, false
}

func (s *Spot) touch() {
	s.updatedAt = time.Now().UTC()
}
