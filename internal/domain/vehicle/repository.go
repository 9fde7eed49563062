package vehicle

import (
	"context"

	"github.com/google/uuid"
)

// VehicleRepository defines the persistence contract for vehicles.
type VehicleRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Vehicle, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) ([]*Vehicle, error)
	Save(ctx context.Context, v *Vehicle) error
	Update(ctx context.Context, v *Vehicle) error
	Delete(ctx context.Context, id uuid.UUID) error

	// ClearDefault unsets isDefault on every vehicle of userID except exceptID.
	ClearDefault(ctx context.Context, userID uuid.UUID, exceptID uuid.UUID) error
}
