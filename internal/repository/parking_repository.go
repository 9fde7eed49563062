package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Kilat-Parking/service-parking/internal/domain/parking"
	"github.com/Kilat-Parking/service-parking/pkg/domain"
)

// LotModel is the GORM model for the parking_lots table.
type LotModel struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Name           string     `gorm:"not null;size:150"`
	Address        string     `gorm:"not null;size:255"`
	City           string     `gorm:"size:100;index"`
	Latitude       float64    `gorm:"not null;default:0"`
	Longitude      float64    `gorm:"not null;default:0"`
	TotalSpots     int        `gorm:"not null"`
	AvailableSpots int        `gorm:"not null;default:0"`
	HourlyRate     float64    `gorm:"type:decimal(10,2);not null"`
	Status         string     `gorm:"not null;size:20;index"`
	OwnerID        *uuid.UUID `gorm:"type:uuid;index"`
	CreatedAt      time.Time  `gorm:"not null"`
	UpdatedAt      time.Time  `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (LotModel) TableName() string {
	return "parking_lots"
}

// SpotModel is the GORM model for the parking_spots table.
type SpotModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	ParkingLotID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_spots_lot_number"`
	SpotNumber   string    `gorm:"not null;size:20;uniqueIndex:idx_spots_lot_number"`
	Status       string    `gorm:"not null;size:20;index"`
	SpotType     string    `gorm:"not null;size:20"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (SpotModel) TableName() string {
	return "parking_spots"
}

// GormLotRepository is the GORM-based implementation of parking.LotRepository.
type GormLotRepository struct {
	db *gorm.DB
}

// NewGormLotRepository creates a new GormLotRepository.
func NewGormLotRepository(db *gorm.DB) *GormLotRepository {
	return &GormLotRepository{db: db}
}

func (r *GormLotRepository) FindByID(ctx context.Context, id uuid.UUID) (*parking.Lot, error) {
	return r.findByID(r.db.WithContext(ctx), id)
}

func (r *GormLotRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*parking.Lot, error) {
	return r.findByID(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormLotRepository) findByID(db *gorm.DB, id uuid.UUID) (*parking.Lot, error) {
	var model LotModel
	if err := db.Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("ParkingLot", id.String())
		}
		return nil, fmt.Errorf("failed to find parking lot by ID: %w", err)
	}
	return toDomainLot(&model), nil
}

// List retrieves lots matching filter with pagination, ordered by name.
func (r *GormLotRepository) List(ctx context.Context, filter parking.LotFilter, page, limit int) ([]*parking.Lot, int64, error) {
	query := r.db.WithContext(ctx).Model(&LotModel{})
	if city := strings.TrimSpace(filter.City); city != "" {
		query = query.Where("LOWER(city) LIKE ?", "%"+strings.ToLower(city)+"%")
	}
	if filter.Status != nil {
		query = query.Where("status = ?", string(*filter.Status))
	}
	if filter.MinAvailableSpots != nil {
		query = query.Where("available_spots >= ?", *filter.MinAvailableSpots)
	}
	if filter.MaxRate != nil {
		query = query.Where("hourly_rate <= ?", *filter.MaxRate)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count parking lots: %w", err)
	}

	var models []LotModel
	offset := (page - 1) * limit
	if err := query.Order("name ASC").Order("id ASC").Offset(offset).Limit(limit).Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list parking lots: %w", err)
	}

	lots := make([]*parking.Lot, len(models))
	for i := range models {
		lots[i] = toDomainLot(&models[i])
	}
	return lots, total, nil
}

func (r *GormLotRepository) Save(ctx context.Context, lot *parking.Lot) error {
	if err := r.db.WithContext(ctx).Create(toLotModel(lot)).Error; err != nil {
		return fmt.Errorf("failed to save parking lot: %w", err)
	}
	return nil
}

func (r *GormLotRepository) Update(ctx context.Context, lot *parking.Lot) error {
	m := toLotModel(lot)
	result := r.db.WithContext(ctx).
		Model(&LotModel{}).
		Where("id = ?", m.ID).
		Updates(map[string]interface{}{
			"name":            m.Name,
			"address":         m.Address,
			"city":            m.City,
			"latitude":        m.Latitude,
			"longitude":       m.Longitude,
			"total_spots":     m.TotalSpots,
			"available_spots": m.AvailableSpots,
			"hourly_rate":     m.HourlyRate,
			"status":          m.Status,
			"owner_id":        m.OwnerID,
			"updated_at":      m.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update parking lot: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("ParkingLot", m.ID.String())
	}
	return nil
}

func (r *GormLotRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&LotModel{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete parking lot: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("ParkingLot", id.String())
	}
	return nil
}

// GormSpotRepository is the GORM-based implementation of parking.SpotRepository.
type GormSpotRepository struct {
	db *gorm.DB
}

// NewGormSpotRepository creates a new GormSpotRepository.
func NewGormSpotRepository(db *gorm.DB) *GormSpotRepository {
	return &GormSpotRepository{db: db}
}

func (r *GormSpotRepository) FindByID(ctx context.Context, id uuid.UUID) (*parking.Spot, error) {
	return r.findByID(r.db.WithContext(ctx), id)
}

func (r *GormSpotRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*parking.Spot, error) {
	return r.findByID(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormSpotRepository) findByID(db *gorm.DB, id uuid.UUID) (*parking.Spot, error) {
	var model SpotModel
	if err := db.Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("ParkingSpot", id.String())
		}
		return nil, fmt.Errorf("failed to find parking spot by ID: %w", err)
	}
	return toDomainSpot(&model), nil
}

// FindFreeForUpdate locks the first available spot of the lot that no claiming booking overlaps.
func (r *GormSpotRepository) FindFreeForUpdate(ctx context.Context, lotID uuid.UUID, start, end time.Time) (*parking.Spot, error) {
	overlapping := r.db.Model(&BookingModel{}).
		Select("1").
		Where("bookings.parking_spot_id = parking_spots.id").
		Where("bookings.status NOT IN ?", freeingStatuses()).
		Where("bookings.start_time < ? AND bookings.end_time > ?", end.UTC(), start.UTC())

	var models []SpotModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("parking_lot_id = ? AND status = ?", lotID, string(parking.SpotAvailable)).
		Where("NOT EXISTS (?)", overlapping).
		Order("spot_number ASC").
		Order("id ASC").
		Limit(1).
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find free parking spot: %w", err)
	}
	if len(models) == 0 {
		return nil, nil
	}
	return toDomainSpot(&models[0]), nil
}

func (r *GormSpotRepository) ListByLot(ctx context.Context, lotID uuid.UUID, filter parking.SpotFilter) ([]*parking.Spot, error) {
	query := r.db.WithContext(ctx).Where("parking_lot_id = ?", lotID)
	if filter.Status != nil {
		query = query.Where("status = ?", string(*filter.Status))
	}
	if filter.SpotType != nil {
		query = query.Where("spot_type = ?", string(*filter.SpotType))
	}

	var models []SpotModel
	if err := query.Order("spot_number ASC").Order("id ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list parking spots: %w", err)
	}

	spots := make([]*parking.Spot, len(models))
	for i := range models {
		spots[i] = toDomainSpot(&models[i])
	}
	return spots, nil
}

func (r *GormSpotRepository) CountByLot(ctx context.Context, lotID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&SpotModel{}).Where("parking_lot_id = ?", lotID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count parking spots: %w", err)
	}
	return count, nil
}

func (r *GormSpotRepository) CountAvailableByLot(ctx context.Context, lotID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&SpotModel{}).
		Where("parking_lot_id = ? AND status = ?", lotID, string(parking.SpotAvailable)).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count available parking spots: %w", err)
	}
	return count, nil
}

func (r *GormSpotRepository) Save(ctx context.Context, spot *parking.Spot) error {
	if err := r.db.WithContext(ctx).Create(toSpotModel(spot)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.NewConflictError(fmt.Sprintf("spot number %s already exists in this lot", spot.SpotNumber()))
		}
		return fmt.Errorf("failed to save parking spot: %w", err)
	}
	return nil
}

func (r *GormSpotRepository) Update(ctx context.Context, spot *parking.Spot) error {
	m := toSpotModel(spot)
	result := r.db.WithContext(ctx).
		Model(&SpotModel{}).
		Where("id = ?", m.ID).
		Updates(map[string]interface{}{
			"spot_number": m.SpotNumber,
			"status":      m.Status,
			"spot_type":   m.SpotType,
			"updated_at":  m.UpdatedAt,
		})
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return domain.NewConflictError(fmt.Sprintf("spot number %s already exists in this lot", spot.SpotNumber()))
		}
		return fmt.Errorf("failed to update parking spot: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("ParkingSpot", m.ID.String())
	}
	return nil
}

func (r *GormSpotRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&SpotModel{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete parking spot: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("ParkingSpot", id.String())
	}
	return nil
}

func (r *GormSpotRepository) DeleteByLot(ctx context.Context, lotID uuid.UUID) error {
	if err := r.db.WithContext(ctx).Where("parking_lot_id = ?", lotID).Delete(&SpotModel{}).Error; err != nil {
		return fmt.Errorf("failed to delete lot spots: %w", err)
	}
	return nil
}

// --- Mapping helpers ---

func toLotModel(l *parking.Lot) *LotModel {
	loc := l.Location()
	return &LotModel{
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

func toDomainLot(m *LotModel) *parking.Lot {
	return parking.ReconstructLot(
		m.ID,
		m.Name,
		parking.Location{
			Address:   m.Address,
			City:      m.City,
			Latitude:  m.Latitude,
			Longitude: m.Longitude,
		},
		m.TotalSpots,
		m.AvailableSpots,
		m.HourlyRate,
		parking.LotStatus(m.Status),
		m.OwnerID,
		m.CreatedAt.UTC(),
		m.UpdatedAt.UTC(),
	)
}

func toSpotModel(s *parking.Spot) *SpotModel {
	return &SpotModel{
		ID:           s.ID(),
		ParkingLotID: s.ParkingLotID(),
		SpotNumber:   s.SpotNumber(),
		Status:       string(s.Status()),
		SpotType:     string(s.SpotType()),
		CreatedAt:    s.CreatedAt(),
		UpdatedAt:    s.UpdatedAt(),
	}
}

func toDomainSpot(m *SpotModel) *parking.Spot {
	return parking.ReconstructSpot(
		m.ID,
		m.ParkingLotID,
		m.SpotNumber,
		parking.SpotStatus(m.Status),
		parking.SpotType(m.SpotType),
		m.CreatedAt.UTC(),
		m.UpdatedAt.UTC(),
	)
}
