package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kilat-Parking/service-parking/internal/domain/access"
	"github.com/Kilat-Parking/service-parking/internal/domain/store"
	"github.com/Kilat-Parking/service-parking/internal/domain/vehicle"
)

// CreateVehicleRequest holds the data needed to register a vehicle.
type CreateVehicleRequest struct {
	LicensePlate string `json:"license_plate" binding:"required,max=20"`
	Make         string `json:"make" binding:"max=50"`
	Model        string `json:"model" binding:"max=50"`
	Color        string `json:"color" binding:"max=30"`
	IsDefault    bool   `json:"is_default"`
}

// UpdateVehicleRequest changes a vehicle. An empty plate keeps the current one.
type UpdateVehicleRequest struct {
	LicensePlate string `json:"license_plate" binding:"max=20"`
	Make         string `json:"make" binding:"max=50"`
	Model        string `json:"model" binding:"max=50"`
	Color        string `json:"color" binding:"max=30"`
	IsDefault    *bool  `json:"is_default"`
}

// VehicleDTO is the response representation of a vehicle.
type VehicleDTO struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	LicensePlate string    `json:"license_plate"`
	Make         string    `json:"make"`
	Model        string    `json:"model"`
	Color        string    `json:"color"`
	IsDefault    bool      `json:"is_default"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// VehicleService handles vehicle registration for users.
type VehicleService struct {
	uow    store.UnitOfWork
	repos  store.Repositories
	logger *zap.Logger
}

// NewVehicleService creates a new VehicleService.
func NewVehicleService(uow store.UnitOfWork, repos store.Repositories, logger *zap.Logger) *VehicleService {
	return &VehicleService{uow: uow, repos: repos, logger: logger}
}

// CreateVehicle registers a vehicle for the caller. A default vehicle clears the flag on the others.
func (s *VehicleService) CreateVehicle(ctx context.Context, principal access.Principal, req CreateVehicleRequest) (*VehicleDTO, error) {
	if err := access.Authorize(principal, access.Owned(access.ResourceVehicle, principal.ID), access.ActionCreate); err != nil {
		return nil, err
	}

	v, err := vehicle.NewVehicle(principal.ID, req.LicensePlate, req.Make, req.Model, req.Color, req.IsDefault)
	if err != nil {
		return nil, err
	}

	err = s.uow.Do(ctx, func(ctx context.Context, repos store.Repositories) error {
		if v.IsDefault() {
			if err := setDefault(ctx, repos, v); err != nil {
				return err
			}
		}
		return repos.Vehicles.Save(ctx, v)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("vehicle registered", zap.String("vehicle_id", v.ID().String()), zap.String("user_id", v.UserID().String()))
	result := toVehicleDTO(v)
	return &result, nil
}

// GetVehicle returns a vehicle visible to the caller.
func (s *VehicleService) GetVehicle(ctx context.Context, principal access.Principal, id uuid.UUID) (*VehicleDTO, error) {
	v, err := s.repos.Vehicles.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.Authorize(principal, access.Owned(access.ResourceVehicle, v.UserID()), access.ActionRead); err != nil {
		return nil, err
	}
	result := toVehicleDTO(v)
	return &result, nil
}

// ListMyVehicles returns the caller's vehicles, default first.
func (s *VehicleService) ListMyVehicles(ctx context.Context, principal access.Principal) ([]VehicleDTO, error) {
	if err := access.Authorize(principal, access.Owned(access.ResourceVehicle, principal.ID), access.ActionList); err != nil {
		return nil, err
	}
	vehicles, err := s.repos.Vehicles.FindByUserID(ctx, principal.ID)
	if err != nil {
		return nil, err
	}
	dtos := make([]VehicleDTO, len(vehicles))
	for i, v := range vehicles {
		dtos[i] = toVehicleDTO(v)
	}
	return dtos, nil
}

// UpdateVehicle changes one of the caller's vehicles.
func (s *VehicleService) UpdateVehicle(ctx context.Context, principal access.Principal, id uuid.UUID, req UpdateVehicleRequest) (*VehicleDTO, error) {
	var v *vehicle.Vehicle
	err := s.uow.Do(ctx, func(ctx context.Context, repos store.Repositories) error {
		var err error
		v, err = repos.Vehicles.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := access.Authorize(principal, access.Owned(access.ResourceVehicle, v.UserID()), access.ActionUpdate); err != nil {
			return err
		}

		if err := v.Update(req.LicensePlate, req.Make, req.Model, req.Color); err != nil {
			return err
		}
		if req.IsDefault != nil {
			v.SetDefault(*req.IsDefault)
		}
		if v.IsDefault() {
			if err := setDefault(ctx, repos, v); err != nil {
				return err
			}
		}
		return repos.Vehicles.Update(ctx, v)
	})
	if err != nil {
		return nil, err
	}

	result := toVehicleDTO(v)
	return &result, nil
}

// DeleteVehicle removes one of the caller's vehicles. Bookings keep their history without it.
func (s *VehicleService) DeleteVehicle(ctx context.Context, principal access.Principal, id uuid.UUID) error {
	return s.uow.Do(ctx, func(ctx context.Context, repos store.Repositories) error {
		v, err := repos.Vehicles.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := access.Authorize(principal, access.Owned(access.ResourceVehicle, v.UserID()), access.ActionDelete); err != nil {
			return err
		}
		if err := repos.Bookings.DetachVehicle(ctx, id); err != nil {
			return err
		}
		return repos.Vehicles.Delete(ctx, id)
	})
}

func toVehicleDTO(v *vehicle.Vehicle) VehicleDTO {
	return VehicleDTO{
		ID:           v.ID(),
		UserID:       v.UserID(),
		LicensePlate: v.LicensePlate(),
		Make:         v.Make(),
		Model:        v.Model(),
		Color:        v.Color(),
		IsDefault:    v.IsDefault(),
		CreatedAt:    v.CreatedAt(),
		UpdatedAt:    v.UpdatedAt(),
	}
}

// setDefault clears the owner's other default under the owner's row lock, serializing
// concurrent default changes for one user.
func setDefault(ctx context.Context, repos store.Repositories, v *vehicle.Vehicle) error {
	if _, err := repos.Users.FindByIDForUpdate(ctx, v.UserID()); err != nil {
		return err
	}
	return repos.Vehicles.ClearDefault(ctx, v.UserID(), v.ID())
}
