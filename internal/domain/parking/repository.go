package parking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LotFilter narrows lot listings. Zero values are ignored.
type LotFilter struct {
	City              string
	Status            *LotStatus
	MinAvailableSpots *int
	MaxRate           *float64
}

// SpotFilter narrows spot listings. Nil fields are ignored.
type SpotFilter struct {
	Status   *SpotStatus
	SpotType *SpotType
}

// LotRepository defines the persistence contract for lots.
type LotRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Lot, error)

	// FindByIDForUpdate retrieves a lot and locks its row until the transaction ends.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Lot, error)

	List(ctx context.Context, filter LotFilter, page, limit int) ([]*Lot, int64, error)
	Save(ctx context.Context, lot *Lot) error
	Update(ctx context.Context, lot *Lot) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// SpotRepository defines the persistence contract for spots.
type SpotRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Spot, error)

	// FindByIDForUpdate retrieves a spot and locks its row until the transaction ends.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Spot, error)

	// FindFreeForUpdate locks and returns the first available spot of the lot (by spot number,
	// then id) with no booking claiming an overlapping window. It returns nil when none qualifies.
	FindFreeForUpdate(ctx context.Context, lotID uuid.UUID, start, end time.Time) (*Spot, error)

	ListByLot(ctx context.Context, lotID uuid.UUID, filter SpotFilter) ([]*Spot, error)
	CountByLot(ctx context.Context, lotID uuid.UUID) (int64, error)
	CountAvailableByLot(ctx context.Context, lotID uuid.UUID) (int64, error)
	Save(ctx context.Context, spot *Spot) error
	Update(ctx context.Context, spot *Spot) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByLot(ctx context.Context, lotID uuid.UUID) error
}
