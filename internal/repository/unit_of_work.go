package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Kilat-Parking/service-parking/internal/domain/store"
)

// AllModels lists every GORM model, in dependency order, for AutoMigrate.
func AllModels() []interface{} {
	return []interface{}{
		&UserModel{},
		&VehicleModel{},
		&LotModel{},
		&SpotModel{},
		&BookingModel{},
	}
}

// NewRepositories binds every repository to db, which may be a transaction.
func NewRepositories(db *gorm.DB) store.Repositories {
	return store.Repositories{
		Users:    NewGormUserRepository(db),
		Vehicles: NewGormVehicleRepository(db),
		Lots:     NewGormLotRepository(db),
		Spots:    NewGormSpotRepository(db),
		Bookings: NewGormBookingRepository(db),
	}
}

// GormUnitOfWork runs callbacks inside a GORM transaction.
type GormUnitOfWork struct {
	db *gorm.DB
}

// NewGormUnitOfWork creates a new GormUnitOfWork.
func NewGormUnitOfWork(db *gorm.DB) *GormUnitOfWork {
	return &GormUnitOfWork{db: db}
}

// Do runs fn in a transaction with repositories bound to it.
func (u *GormUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, repos store.Repositories) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, NewRepositories(tx))
	})
}
