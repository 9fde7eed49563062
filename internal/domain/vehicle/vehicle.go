package vehicle

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Kilat-Parking/service-parking/pkg/domain"
)

// Vehicle is a car registered by a user.
type Vehicle struct {
	id           uuid.UUID
	userID       uuid.UUID
	licensePlate string
	make         string
	model        string
	color        string
	isDefault    bool
	createdAt    time.Time
	updatedAt    time.Time
}

// NormalizePlate upper-cases a plate and strips surrounding whitespace.
func NormalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}

// NewVehicle creates a vehicle owned by userID.
func NewVehicle(userID uuid.UUID, licensePlate, vehicleMake, model, color string, isDefault bool) (*Vehicle, error) {
	licensePlate = NormalizePlate(licensePlate)

	var fields []domain.FieldError
	if userID == uuid.Nil {
		fields = append(fields, domain.FieldError{Field: "user_id", Message: "is required"})
	}
	if licensePlate == "" {
		fields = append(fields, domain.FieldError{Field: "license_plate", Message: "is required"})
	}
	if len(licensePlate) > 20 {
		fields = append(fields, domain.FieldError{Field: "license_plate", Message: "must be at most 20 characters"})
	}
	if len(fields) > 0 {
		return nil, domain.NewFieldValidationError(fields...)
	}

	now := time.Now().UTC()
	return &Vehicle{
		id:           uuid.New(),
		userID:       userID,
		licensePlate: licensePlate,
		make:         strings.TrimSpace(vehicleMake),
		model:        strings.TrimSpace(model),
		color:        strings.TrimSpace(color),
		isDefault:    isDefault,
		createdAt:    now,
		updatedAt:    now,
	}, nil
}

// ReconstructVehicle rebuilds a Vehicle from persistence data (no validation).
func ReconstructVehicle(id, userID uuid.UUID, licensePlate, vehicleMake, model, color string, isDefault bool, createdAt, updatedAt time.Time) *Vehicle {
	return &Vehicle{
		id:           id,
		userID:       userID,
		licensePlate: licensePlate,
		make:         vehicleMake,
		model:        model,
		color:        color,
		isDefault:    isDefault,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}
}

func (v *Vehicle) ID() uuid.UUID        { return v.id }
func (v *Vehicle) UserID() uuid.UUID    { return v.userID }
func (v *Vehicle) LicensePlate() string { return v.licensePlate }
func (v *Vehicle) Make() string         { return v.make }
func (v *Vehicle) Model() string        { return v.model }
func (v *Vehicle) Color() string        { return v.color }
func (v *Vehicle) IsDefault() bool      { return v.isDefault }
func (v *Vehicle) CreatedAt() time.Time { return v.createdAt }
func (v *Vehicle) UpdatedAt() time.Time { return v.updatedAt }

// IsOwnedBy reports whether the vehicle belongs to userID.
func (v *Vehicle) IsOwnedBy(userID uuid.UUID) bool {
	return v.userID == userID
}

// Update changes the descriptive fields. An empty plate keeps the current one.
func (v *Vehicle) Update(licensePlate, vehicleMake, model, color string) error {
	if plate := NormalizePlate(licensePlate); plate != "" {
		if len(plate) > 20 {
			return domain.NewFieldValidationError(domain.FieldError{Field: "license_plate", Message: "must be at most 20 characters"})
		}
		v.licensePlate = plate
	}
	v.make = strings.TrimSpace(vehicleMake)
	v.model = strings.TrimSpace(model)
	v.color = strings.TrimSpace(color)
	v.updatedAt = time.Now().UTC()
	return nil
}

// SetDefault sets or clears the default flag.
func (v *Vehicle) SetDefault(isDefault bool) {
	v.isDefault = isDefault
	v.updatedAt = time.Now().UTC()
}
