package parking_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kilat-Parking/service-parking/internal/domain/parking"
	"github.com/Kilat-Parking/service-parking/pkg/domain"
)

func newLot(t *testing.T, total int) *parking.Lot {
	t.Helper()
	lot, err := parking.NewLot("Central", parking.Location{Address: "1 Main St", City: "Springfield"}, total, 10, "", nil)
	require.NoError(t, err)
	return lot
}

func TestNewLot(t *testing.T) {
	lot := newLot(t, 3)

	assert.Equal(t, parking.LotFull, lot.Status(), "no spots built yet")
	assert.Equal(t, 3, lot.TotalSpots())
	assert.Equal(t, 0, lot.AvailableSpots())

	lot.ApplySpotAdded(parking.SpotAvailable)
	assert.Equal(t, parking.LotOpen, lot.Status())

	closed, err := parking.NewLot("Depot", parking.Location{Address: "2 Yard"}, 1, 0, parking.LotClosed, nil)
	require.NoError(t, err)
	assert.Equal(t, parking.LotClosed, closed.Status())
}

func TestNewLot_Validation(t *testing.T) {
	tests := []struct {
		name   string
		lname  string
		addr   string
		total  int
		rate   float64
		status parking.LotStatus
		field  string
	}{
		{name: "missing name", lname: " ", addr: "a", total: 1, field: "name"},
		{name: "missing address", lname: "n", addr: "", total: 1, field: "address"},
		{name: "zero capacity", lname: "n", addr: "a", total: 0, field: "total_spots"},
		{name: "negative rate", lname: "n", addr: "a", total: 1, rate: -1, field: "hourly_rate"},
		{name: "full is derived", lname: "n", addr: "a", total: 1, status: parking.LotFull, field: "status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parking.NewLot(tt.lname, parking.Location{Address: tt.addr}, tt.total, tt.rate, tt.status, nil)
			require.Error(t, err)

			var de *domain.Error
			require.ErrorAs(t, err, &de)
			require.NotEmpty(t, de.Fields)
			assert.Equal(t, tt.field, de.Fields[0].Field)
		})
	}
}

func TestLot_Ledger(t *testing.T) {
	lot := newLot(t, 2)

	lot.ApplySpotAdded(parking.SpotAvailable)
	lot.ApplySpotAdded(parking.SpotAvailable)
	assert.Equal(t, 2, lot.AvailableSpots())
	assert.Equal(t, parking.LotOpen, lot.Status())

	lot.ApplySpotStatusChange(parking.SpotAvailable, parking.SpotReserved)
	assert.Equal(t, 1, lot.AvailableSpots())

	lot.ApplySpotStatusChange(parking.SpotReserved, parking.SpotOccupied)
	assert.Equal(t, 1, lot.AvailableSpots())

	lot.ApplySpotStatusChange(parking.SpotAvailable, parking.SpotMaintenance)
	assert.Equal(t, 0, lot.AvailableSpots())
	assert.Equal(t, parking.LotFull, lot.Status())

	lot.ApplySpotStatusChange(parking.SpotOccupied, parking.SpotAvailable)
	assert.Equal(t, 1, lot.AvailableSpots())
	assert.Equal(t, parking.LotOpen, lot.Status())

	lot.ApplySpotRemoved(parking.SpotMaintenance)
	assert.Equal(t, 1, lot.AvailableSpots())

	lot.ApplySpotRemoved(parking.SpotAvailable)
	assert.Equal(t, 0, lot.AvailableSpots())
	assert.Equal(t, parking.LotFull, lot.Status())
}

func TestLot_LedgerClamps(t *testing.T) {
	lot := newLot(t, 1)

	lot.ApplySpotRemoved(parking.SpotAvailable)
	assert.Equal(t, 0, lot.AvailableSpots())

	lot.Reconcile(5)
	assert.Equal(t, 1, lot.AvailableSpots())
}

func TestLot_ClosedStaysClosedWhenEmpty(t *testing.T) {
	lot := newLot(t, 1)
	lot.ApplySpotAdded(parking.SpotAvailable)
	require.NoError(t, lot.SetStatus(parking.LotClosed))

	lot.ApplySpotStatusChange(parking.SpotAvailable, parking.SpotReserved)
	assert.Equal(t, parking.LotClosed, lot.Status())

	lot.ApplySpotStatusChange(parking.SpotReserved, parking.SpotAvailable)
	assert.Equal(t, parking.LotClosed, lot.Status())
}

func TestLot_SetStatus(t *testing.T) {
	lot := newLot(t, 1)

	assert.Error(t, lot.SetStatus(parking.LotFull))
	assert.Error(t, lot.SetStatus("paved"))

	require.NoError(t, lot.SetStatus(parking.LotMaintenance))
	assert.Equal(t, parking.LotMaintenance, lot.Status())

	// Reopening with nothing available lands on full.
	require.NoError(t, lot.SetStatus(parking.LotOpen))
	assert.Equal(t, parking.LotFull, lot.Status())
}

func TestLot_SetTotalSpots(t *testing.T) {
	lot := newLot(t, 3)
	lot.ApplySpotAdded(parking.SpotAvailable)
	lot.ApplySpotAdded(parking.SpotAvailable)

	err := lot.SetTotalSpots(1, 2, 2)
	assert.True(t, domain.IsKind(err, domain.KindConflict))

	err = lot.SetTotalSpots(0, 0, 0)
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	require.NoError(t, lot.SetTotalSpots(2, 2, 2))
	assert.Equal(t, 2, lot.TotalSpots())
	assert.Equal(t, 2, lot.AvailableSpots())
	assert.False(t, lot.HasCapacityFor(2))
	assert.True(t, lot.HasCapacityFor(1))
}

func TestLot_SetOwner(t *testing.T) {
	lot := newLot(t, 1)
	owner := uuid.New()
	lot.SetOwner(&owner)
	require.NotNil(t, lot.OwnerID())
	assert.Equal(t, owner, *lot.OwnerID())
}
