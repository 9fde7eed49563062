package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kilat-Parking/service-parking/internal/domain/access"
	"github.com/Kilat-Parking/service-parking/internal/domain/parking"
	"github.com/Kilat-Parking/service-parking/internal/domain/store"
	"github.com/Kilat-Parking/service-parking/pkg/cache"
	"github.com/Kilat-Parking/service-parking/pkg/domain"
)

// CreateLotRequest holds the data needed to create a parking lot.
type CreateLotRequest struct {
	Name       string     `json:"name" binding:"required,max=150"`
	Address    string     `json:"address" binding:"required,max=255"`
	City       string     `json:"city" binding:"max=100"`
	Latitude   float64    `json:"latitude" binding:"gte=-90,lte=90"`
	Longitude  float64    `json:"longitude" binding:"gte=-180,lte=180"`
	TotalSpots int        `json:"total_spots" binding:"required,min=1"`
	HourlyRate float64    `json:"hourly_rate" binding:"gte=0"`
	Status     string     `json:"status" binding:"omitempty,oneof=open closed maintenance"`
	OwnerID    *uuid.UUID `json:"owner_id"`
}

// UpdateLotRequest changes a parking lot. Nil fields are left untouched.
type UpdateLotRequest struct {
	Name       *string    `json:"name" binding:"omitempty,max=150"`
	Address    *string    `json:"address" binding:"omitempty,max=255"`
	City       *string    `json:"city" binding:"omitempty,max=100"`
	Latitude   *float64   `json:"latitude" binding:"omitempty,gte=-90,lte=90"`
	Longitude  *float64   `json:"longitude" binding:"omitempty,gte=-180,lte=180"`
	TotalSpots *int       `json:"total_spots" binding:"omitempty,min=1"`
	HourlyRate *float64   `json:"hourly_rate" binding:"omitempty,gte=0"`
	Status     *string    `json:"status" binding:"omitempty,oneof=open closed maintenance"`
	OwnerID    *uuid.UUID `json:"owner_id"`
}

// LotListQuery narrows the lot listing. Empty fields are ignored.
type LotListQuery struct {
	City              string
	Status            string
	MinAvailableSpots *int
	MaxRate           *float64
}

// CreateSpotRequest holds the data needed to add a spot to a lot.
type CreateSpotRequest struct {
	SpotNumber string `json:"spot_number" binding:"required,max=20"`
	SpotType   string `json:"spot_type" binding:"omitempty,oneof=compact regular large ev_charging handicap"`
	Status     string `json:"status" binding:"omitempty,oneof=available occupied reserved maintenance"`
}

// UpdateSpotRequest changes a spot. Nil fields are left untouched.
type UpdateSpotRequest struct {
	SpotNumber *string `json:"spot_number" binding:"omitempty,max=20"`
	SpotType   *string `json:"spot_type" binding:"omitempty,oneof=compact regular large ev_charging handicap"`
	Status     *string `json:"status" binding:"omitempty,oneof=available occupied reserved maintenance"`
}

// SpotListQuery narrows the spot listing of a lot.
type SpotListQuery struct {
	Status   string
	SpotType string
}

// LotDTO is the response representation of a parking lot.
type LotDTO struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	Address        string     `json:"address"`
	City           string     `json:"city"`
	Latitude       float64    `json:"latitude"`
	Longitude      float64    `json:"longitude"`
	TotalSpots     int        `json:"total_spots"`
	AvailableSpots int        `json:"available_spots"`
	HourlyRate     float64    `json:"hourly_rate"`
	Status         string     `json:"status"`
	OwnerID        *uuid.UUID `json:"owner_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// SpotDTO is the response representation of a parking spot.
type SpotDTO struct {
	ID           uuid.UUID `json:"id"`
	ParkingLotID uuid.UUID `json:"parking_lot_id"`
	SpotNumber   string    `json:"spot_number"`
	Status       string    `json:"status"`
	SpotType     string    `json:"spot_type"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ParkingService manages lots and spots and keeps the lot ledger in step with spot changes.
type ParkingService struct {
	uow      store.UnitOfWork
	repos    store.Repositories
	cache    cache.Cache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewParkingService creates a new ParkingService.
func NewParkingService(uow store.UnitOfWork, repos store.Repositories, lotCache cache.Cache, cacheTTL time.Duration, logger *zap.Logger) *ParkingService {
	return &ParkingService{
		uow:      uow,
		repos:    repos,
		cache:    lotCache,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

func lotCacheKey(id uuid.UUID) string {
	return cache.Key("parking-lot", id.String())
}

// CreateLot creates a parking lot with no spots (admin).
func (s *ParkingService) CreateLot(ctx context.Context, principal access.Principal, req CreateLotRequest) (*LotDTO, error) {
	if err := access.Authorize(principal, access.Unowned(access.ResourceLot), access.ActionCreate); err != nil {
		return nil, err
	}

	location := parking.Location{Address: req.Address, City: req.City, Latitude: req.Latitude, Longitude: req.Longitude}
	lot, err := parking.NewLot(req.Name, location, req.TotalSpots, req.HourlyRate, parking.LotStatus(req.Status), req.OwnerID)
	if err != nil {
		return nil, err
	}

	err = s.uow.Do(ctx, func(ctx context.Context, repos store.Repositories) error {
		if err := checkLotOwner(ctx, repos, req.OwnerID); err != nil {
			return err
		}
		return repos.Lots.Save(ctx, lot)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("parking lot created", zap.String("parking_lot_id", lot.ID().String()), zap.String("name", lot.Name()))
	result := toLotDTO(lot)
	return &result, nil
}

// GetLot returns a lot, served from the cache when possible.
func (s *ParkingService) GetLot(ctx context.Context, id uuid.UUID) (*LotDTO, error) {
	key := lotCacheKey(id)
	var cached LotDTO
	if s.cache != nil {
		err := s.cache.Get(ctx, key, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("parking lot cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	lot, err := s.repos.Lots.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	result := toLotDTO(lot)

	if s.cache != nil {
		if err := s.cache.Save(ctx, key, result, s.cacheTTL); err != nil {
			s.logger.Warn("parking lot cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return &result, nil
}

// ListLots returns lots matching query.
func (s *ParkingService) ListLots(ctx context.Context, query LotListQuery, page, limit int) ([]LotDTO, int64, error) {
	filter := parking.LotFilter{City: query.City, MinAvailableSpots: query.MinAvailableSpots, MaxRate: query.MaxRate}
	if query.Status != "" {
		st, err := parking.ParseLotStatus(query.Status)
		if err != nil {
			return nil, 0, domain.NewFieldValidationError(domain.FieldError{Field: "status", Message: err.Error()})
		}
		filter.Status = &st
	}

	lots, total, err := s.repos.Lots.List(ctx, filter, page, limit)
	if err != nil {
		return nil, 0, err
	}
	dtos := make([]LotDTO, len(lots))
	for i, l := range lots {
		dtos[i] = toLotDTO(l)
	}
	return dtos, total, nil
}

// UpdateLot changes a lot (admin). A new capacity triggers a reconciliation of availableSpots.
func (s *ParkingService) UpdateLot(ctx context.Context, principal access.Principal, id uuid.UUID, req UpdateLotRequest) (*LotDTO, error) {
	if err := access.Authorize(principal, access.Unowned(access.ResourceLot), access.ActionUpdate); err != nil {
		return nil, err
	}

	var lot *parking.Lot
	err := s.uow.Do(ctx, func(ctx context.Context, repos store.Repositories) error {
		var err error
		lot, err = repos.Lots.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}

		name, location := lot.Name(), lot.Location()
		if req.Name != nil {
			name = *req.Name
		}
		if req.Address != nil {
			location.Address = *req.Address
		}
		if req.City != nil {
			location.City = *req.City
		}
		if req.Latitude != nil {
			location.Latitude = *req.Latitude
		}
		if req.Longitude != nil {
			location.Longitude = *req.Longitude
		}
		if err := lot.UpdateDetails(name, location); err != nil {
			return err
		}

		if req.HourlyRate != nil {
			if err := lot.SetHourlyRate(*req.HourlyRate); err != nil {
				return err
			}
		}
		if req.OwnerID != nil {
			if err := checkLotOwner(ctx, repos, req.OwnerID); err != nil {
				return err
			}
			lot.SetOwner(req.OwnerID)
		}
		if req.TotalSpots != nil {
			existing, err := repos.Spots.CountByLot(ctx, lot.ID())
			if err != nil {
				return err
			}
			available, err := repos.Spots.CountAvailableByLot(ctx, lot.ID())
			if err != nil {
				return err
			}
			if err := lot.SetTotalSpots(*req.TotalSpots, int(existing), int(available)); err != nil {
				return err
			}
		}
		if req.Status != nil {
			if err := lot.SetStatus(parking.LotStatus(*req.Status)); err != nil {
				return err
			}
		}
		return repos.Lots.Update(ctx, lot)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, id)
	result := toLotDTO(lot)
	return &result, nil
}

// DeleteLot removes a lot together with its spots and bookings (admin).
func (s *ParkingService) DeleteLot(ctx context.Context, principal access.Principal, id uuid.UUID) error {
	if err := access.Authorize(principal, access.Unowned(access.ResourceLot), access.ActionDelete); err != nil {
		return err
	}

	err := s.uow.Do(ctx, func(ctx context.Context, repos store.Repositories) error {
		// Bookings first, matching the booking, lot, spot order of booking transitions.
		if _, err := repos.Bookings.LockByLot(ctx, id); err != nil {
			return err
		}
		if _, err := repos.Lots.FindByIDForUpdate(ctx, id); err != nil {
			return err
		}
		if err := repos.Bookings.DeleteByLot(ctx, id); err != nil {
			return err
		}
		if err := repos.Spots.DeleteByLot(ctx, id); err != nil {
			return err
		}
		return repos.Lots.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info("parking lot deleted", zap.String("parking_lot_id", id.String()))
	s.invalidate(ctx, id)
	return nil
}

// ReconcileLot recounts availableSpots from the spot rows (admin).
func (s *ParkingService) ReconcileLot(ctx context.Context, principal access.Principal, id uuid.UUID) (*LotDTO, error) {
	if err := access.Authorize(principal, access.Unowned(access.ResourceLot), access.ActionUpdate); err != nil {
		return nil, err
	}

	var lot *parking.Lot
	err := s.uow.Do(ctx, func(ctx context.Context, repos store.Repositories) error {
		var err error
		lot, err = repos.Lots.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		return reconcileLot(ctx, repos, lot)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, id)
	result := toLotDTO(lot)
	return &result, nil
}

// CreateSpot adds a spot to a lot (admin). The lot's capacity bounds the number of spots.
func (s *ParkingService) CreateSpot(ctx context.Context, principal access.Principal, lotID uuid.UUID, req CreateSpotRequest) (*SpotDTO, error) {
	if err := access.Authorize(principal, access.Unowned(access.ResourceSpot), access.ActionCreate); err != nil {
		return nil, err
	}

	spot, err := parking.NewSpot(lotID, req.SpotNumber, parking.SpotType(req.SpotType), parking.SpotStatus(req.Status))
	if err != nil {
		return nil, err
	}

	err = s.uow.Do(ctx, func(ctx context.Context, repos store.Repositories) error {
		lot, err := repos.Lots.FindByIDForUpdate(ctx, lotID)
		if err != nil {
			return err
		}
		existing, err := repos.Spots.CountByLot(ctx, lotID)
		if err != nil {
			return err
		}
		if !lot.HasCapacityFor(int(existing)) {
			return domain.NewConflictError("parking lot has reached its total spot capacity")
		}
		if err := repos.Spots.Save(ctx, spot); err != nil {
			return err
		}
		lot.ApplySpotAdded(spot.Status())
		return repos.Lots.Update(ctx, lot)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, lotID)
	result := toSpotDTO(spot)
	return &result, nil
}

// GetSpot returns a single spot.
func (s *ParkingService) GetSpot(ctx context.Context, id uuid.UUID) (*SpotDTO, error) {
	spot, err := s.repos.Spots.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	result := toSpotDTO(spot)
	return &result, nil
}

// ListSpots returns the spots of a lot matching query.
func (s *ParkingService) ListSpots(ctx context.Context, lotID uuid.UUID, query SpotListQuery) ([]SpotDTO, error) {
	if _, err := s.repos.Lots.FindByID(ctx, lotID); err != nil {
		return nil, err
	}

	var filter parking.SpotFilter
	if query.Status != "" {
		st, err := parking.ParseSpotStatus(query.Status)
		if err != nil {
			return nil, domain.NewFieldValidationError(domain.FieldError{Field: "status", Message: err.Error()})
		}
		filter.Status = &st
	}
	if query.SpotType != "" {
		t, err := parking.ParseSpotType(query.SpotType)
		if err != nil {
			return nil, domain.NewFieldValidationError(domain.FieldError{Field: "spot_type", Message: err.Error()})
		}
		filter.SpotType = &t
	}

	spots, err := s.repos.Spots.ListByLot(ctx, lotID, filter)
	if err != nil {
		return nil, err
	}
	dtos := make([]SpotDTO, len(spots))
	for i, sp := range spots {
		dtos[i] = toSpotDTO(sp)
	}
	return dtos, nil
}

// UpdateSpot changes a spot (admin). Status changes are mirrored into the lot.
func (s *ParkingService) UpdateSpot(ctx context.Context, principal access.Principal, id uuid.UUID, req UpdateSpotRequest) (*SpotDTO, error) {
	if err := access.Authorize(principal, access.Unowned(access.ResourceSpot), access.ActionUpdate); err != nil {
		return nil, err
	}

	var spot *parking.Spot
	err := s.uow.Do(ctx, func(ctx context.Context, repos store.Repositories) error {
		var err error
		var lot *parking.Lot
		spot, lot, err = lockSpotWithLot(ctx, repos, id)
		if err != nil {
			return err
		}

		if req.SpotNumber != nil {
			if err := spot.Rename(*req.SpotNumber); err != nil {
				return err
			}
		}
		if req.SpotType != nil {
			if err := spot.SetType(parking.SpotType(*req.SpotType)); err != nil {
				return err
			}
		}
		from := spot.Status()
		if req.Status != nil {
			if from, err = spot.SetStatus(parking.SpotStatus(*req.Status)); err != nil {
				return err
			}
		}
		return saveSpotStatus(ctx, repos, lot, spot, from)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, spot.ParkingLotID())
	result := toSpotDTO(spot)
	return &result, nil
}

// DeleteSpot removes a spot (admin). Its bookings keep their history without the spot reference.
func (s *ParkingService) DeleteSpot(ctx context.Context, principal access.Principal, id uuid.UUID) error {
	if err := access.Authorize(principal, access.Unowned(access.ResourceSpot), access.ActionDelete); err != nil {
		return err
	}

	var lotID uuid.UUID
	err := s.uow.Do(ctx, func(ctx context.Context, repos store.Repositories) error {
		if _, err := repos.Bookings.LockBySpot(ctx, id); err != nil {
			return err
		}
		spot, lot, err := lockSpotWithLot(ctx, repos, id)
		if err != nil {
			return err
		}
		lotID = lot.ID()

		if err := repos.Bookings.DetachSpot(ctx, id); err != nil {
			return err
		}
		lot.ApplySpotRemoved(spot.Status())
		if err := repos.Spots.Delete(ctx, id); err != nil {
			return err
		}
		return repos.Lots.Update(ctx, lot)
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, lotID)
	return nil
}

// lockSpotWithLot locks the lot of a spot and then the spot itself.
func lockSpotWithLot(ctx context.Context, repos store.Repositories, spotID uuid.UUID) (*parking.Spot, *parking.Lot, error) {
	unlocked, err := repos.Spots.FindByID(ctx, spotID)
	if err != nil {
		return nil, nil, err
	}
	lot, err := repos.Lots.FindByIDForUpdate(ctx, unlocked.ParkingLotID())
	if err != nil {
		return nil, nil, err
	}
	spot, err := repos.Spots.FindByIDForUpdate(ctx, spotID)
	if err != nil {
		return nil, nil, err
	}
	return spot, lot, nil
}

// checkLotOwner verifies that ownerID, when set, references an administrator.
func checkLotOwner(ctx context.Context, repos store.Repositories, ownerID *uuid.UUID) error {
	if ownerID == nil {
		return nil
	}
	owner, err := repos.Users.FindByID(ctx, *ownerID)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return domain.NewFieldValidationError(domain.FieldError{Field: "owner_id", Message: "does not reference an existing user"})
		}
		return err
	}
	if !owner.IsAdmin() {
		return domain.NewFieldValidationError(domain.FieldError{Field: "owner_id", Message: "must reference an admin user"})
	}
	return nil
}

func (s *ParkingService) invalidate(ctx context.Context, lotID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, lotCacheKey(lotID)); err != nil {
		s.logger.Warn("failed to invalidate parking lot cache", zap.String("parking_lot_id", lotID.String()), zap.Error(err))
	}
}

func toLotDTO(l *parking.Lot) LotDTO {
	loc := l.Location()
	return LotDTO{
		ID:             l.ID(),
		Name:           l.Name(),
		Address:        loc.Address,
		City:           loc.City,
		Latitude:       loc.Latitude,
		Longitude:      loc.Longitude,
		TotalSpots:     l.TotalSpots(),
		AvailableSpots: l.AvailableSpots(),
		HourlyRate:     l.HourlyRate(),
		Status:         string(l.Status()),
		OwnerID:        l.OwnerID(),
		CreatedAt:      l.CreatedAt(),
		UpdatedAt:      l.UpdatedAt(),
	}
}

func toSpotDTO(sp *parking.Spot) SpotDTO {
	return SpotDTO{
		ID:           sp.ID(),
		ParkingLotID: sp.ParkingLotID(),
		SpotNumber:   sp.SpotNumber(),
		Status:       string(sp.Status()),
		SpotType:     string(sp.SpotType()),
		CreatedAt:    sp.CreatedAt(),
		UpdatedAt:    sp.UpdatedAt(),
	}
}
