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

	"github.com/Kilat-Parking/service-parking/internal/domain/user"
	"github.com/Kilat-Parking/service-parking/internal/domain/vehicle"
	"github.com/Kilat-Parking/service-parking/pkg/domain"
)

// UserModel is the GORM model for the users table.
type UserModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name         string    `gorm:"not null;size:100"`
	Email        string    `gorm:"uniqueIndex;not null;size:255"`
	PasswordHash string    `gorm:"not null;size:255"`
	Role         string    `gorm:"not null;size:20;default:user"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (UserModel) TableName() string {
	return "users"
}

// VehicleModel is the GORM model for the vehicles table.
type VehicleModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID       uuid.UUID `gorm:"type:uuid;index;not null"`
	LicensePlate string    `gorm:"uniqueIndex;not null;size:20"`
	Make         string    `gorm:"size:50"`
	Model        string    `gorm:"size:50"`
	Color        string    `gorm:"size:30"`
	IsDefault    bool      `gorm:"not null;default:false"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (VehicleModel) TableName() string {
	return "vehicles"
}

// GormUserRepository is the GORM-based implementation of user.UserRepository.
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new GormUserRepository.
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	var m UserModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("User", id.String())
		}
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return toDomainUser(&m), nil
}

// FindByIDForUpdate retrieves a user and locks the row until the transaction ends.
func (r *GormUserRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*user.User, error) {
	var m UserModel
	if err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("User", id.String())
		}
		return nil, fmt.Errorf("failed to lock user: %w", err)
	}
	return toDomainUser(&m), nil
}

func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var m UserModel
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("User", email)
		}
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return toDomainUser(&m), nil
}

func (r *GormUserRepository) Save(ctx context.Context, u *user.User) error {
	m := &UserModel{
		ID:           u.ID(),
		Name:         u.Name(),
		Email:        u.Email(),
		PasswordHash: u.PasswordHash(),
		Role:         u.Role(),
		CreatedAt:    u.CreatedAt(),
		UpdatedAt:    u.UpdatedAt(),
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.NewConflictError("email is already registered")
		}
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

func (r *GormUserRepository) UpdatePassword(ctx context.Context, u *user.User) error {
	result := r.db.WithContext(ctx).Model(&UserModel{}).Where("id = ?", u.ID()).Updates(map[string]interface{}{
		"password_hash": u.PasswordHash(),
		"updated_at":    u.UpdatedAt(),
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update password: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("User", u.ID().String())
	}
	return nil
}

func toDomainUser(m *UserModel) *user.User {
	return user.ReconstructUser(m.ID, m.Name, m.Email, m.PasswordHash, m.Role, m.CreatedAt.UTC(), m.UpdatedAt.UTC())
}

// GormVehicleRepository is the GORM-based implementation of vehicle.VehicleRepository.
type GormVehicleRepository struct {
	db *gorm.DB
}

// NewGormVehicleRepository creates a new GormVehicleRepository.
func NewGormVehicleRepository(db *gorm.DB) *GormVehicleRepository {
	return &GormVehicleRepository{db: db}
}

func (r *GormVehicleRepository) FindByID(ctx context.Context, id uuid.UUID) (*vehicle.Vehicle, error) {
	var m VehicleModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Vehicle", id.String())
		}
		return nil, fmt.Errorf("failed to find vehicle by ID: %w", err)
	}
	return toDomainVehicle(&m), nil
}

// FindByUserID lists a user's vehicles, default first.
func (r *GormVehicleRepository) FindByUserID(ctx context.Context, userID uuid.UUID) ([]*vehicle.Vehicle, error) {
	var models []VehicleModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_default DESC").
		Order("created_at ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list vehicles: %w", err)
	}

	vehicles := make([]*vehicle.Vehicle, len(models))
	for i := range models {
		vehicles[i] = toDomainVehicle(&models[i])
	}
	return vehicles, nil
}

func (r *GormVehicleRepository) Save(ctx context.Context, v *vehicle.Vehicle) error {
	if err := r.checkPlate(ctx, v); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(toVehicleModel(v)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errVehicleConflict
		}
		return fmt.Errorf("failed to save vehicle: %w", err)
	}
	return nil
}

func (r *GormVehicleRepository) Update(ctx context.Context, v *vehicle.Vehicle) error {
	if err := r.checkPlate(ctx, v); err != nil {
		return err
	}
	m := toVehicleModel(v)
	result := r.db.WithContext(ctx).
		Model(&VehicleModel{}).
		Where("id = ?", m.ID).
		Updates(map[string]interface{}{
			"license_plate": m.LicensePlate,
			"make":          m.Make,
			"model":         m.Model,
			"color":         m.Color,
			"is_default":    m.IsDefault,
			"updated_at":    m.UpdatedAt,
		})
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return errVehicleConflict
		}
		return fmt.Errorf("failed to update vehicle: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("Vehicle", m.ID.String())
	}
	return nil
}

func (r *GormVehicleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&VehicleModel{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete vehicle: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("Vehicle", id.String())
	}
	return nil
}

func (r *GormVehicleRepository) ClearDefault(ctx context.Context, userID uuid.UUID, exceptID uuid.UUID) error {
	if err := r.db.WithContext(ctx).
		Model(&VehicleModel{}).
		Where("user_id = ? AND id <> ? AND is_default = ?", userID, exceptID, true).
		Updates(map[string]interface{}{"is_default": false, "updated_at": time.Now().UTC()}).Error; err != nil {
		return fmt.Errorf("failed to clear default vehicle: %w", err)
	}
	return nil
}

// errVehicleConflict reports a unique violation that slipped past checkPlate: a concurrent
// registration of the same plate or a second default vehicle.
var errVehicleConflict = domain.NewConflictError("vehicle conflicts with a concurrent change, retry the request")

// checkPlate rejects a plate registered to another vehicle before the write, so the
// unique index only fires on races.
func (r *GormVehicleRepository) checkPlate(ctx context.Context, v *vehicle.Vehicle) error {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&VehicleModel{}).
		Where("license_plate = ? AND id <> ?", v.LicensePlate(), v.ID()).
		Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check license plate: %w", err)
	}
	if count > 0 {
		return duplicatePlate(v.LicensePlate())
	}
	return nil
}

func duplicatePlate(plate string) error {
	err := domain.NewConflictError(fmt.Sprintf("license plate %s is already registered", plate))
	err.Fields = []domain.FieldError{{Field: "license_plate", Message: "is already registered"}}
	return err
}

func toVehicleModel(v *vehicle.Vehicle) *VehicleModel {
	return &VehicleModel{
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

func toDomainVehicle(m *VehicleModel) *vehicle.Vehicle {
	return vehicle.ReconstructVehicle(
		m.ID,
		m.UserID,
		m.LicensePlate,
		m.Make,
		m.Model,
		m.Color,
		m.IsDefault,
		m.CreatedAt.UTC(),
		m.UpdatedAt.UTC(),
	)
}
